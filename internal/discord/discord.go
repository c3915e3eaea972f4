package discord

import "context"

type FileMessage struct {
	Content     string
	Filename    string
	ContentType string
	FileBody    []byte
}

type SlashCommandDefinition struct {
	Name        string
	Description string
}

type SlashCommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	UserID           string
	RespondEphemeral func(content string) error
}

type VoiceStateEvent struct {
	GuildID         string
	UserID          string
	UserIsBot       bool
	BeforeChannelID string
	AfterChannelID  string
}

type VoiceParticipant struct {
	UserID string
	IsBot  bool
}

// MemberProfile is what the guild knows about a participant.
type MemberProfile struct {
	UserID      string
	DisplayName string
	IsBot       bool
	// Role is the member's highest named guild role, empty when none.
	Role string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	JoinVoiceChannel(guildID, channelID string) (VoiceConnection, error)
	SendChannelMessage(channelID, content string) error
	SendChannelMessageWithFile(channelID string, msg FileMessage) error
	SendDirectMessageWithFile(userID string, msg FileMessage) error
	RegisterVoiceStateUpdateHandler(handler func(VoiceStateEvent))
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
	GetUserVoiceChannelID(guildID, userID string) (string, error)
	ListVoiceChannelParticipants(guildID, channelID string) ([]VoiceParticipant, error)
	GetBotUserID() (string, error)
	ResolveChannelName(channelID string) string
	ResolveMemberProfile(ctx context.Context, guildID, userID string) MemberProfile
	Run() error
}

type VoiceConnection interface {
	Disconnect() error
	// ReceiveAudio delivers Opus packets per speaking user until the
	// connection closes.
	ReceiveAudio(callback func(userID string, opus []byte))
}
