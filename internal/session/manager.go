// Package session owns the lifecycle of meetings in the configured voice
// channel: joining, per-speaker transcription, vote detection, snapshots,
// recaps and the summarizer handoff.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/gijiroku/internal/audio"
	"github.com/foxseedlab/gijiroku/internal/classifier"
	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/foxseedlab/gijiroku/internal/decision"
	"github.com/foxseedlab/gijiroku/internal/discord"
	"github.com/foxseedlab/gijiroku/internal/generator"
	"github.com/foxseedlab/gijiroku/internal/repository"
	"github.com/foxseedlab/gijiroku/internal/snapshot"
	"github.com/foxseedlab/gijiroku/internal/status"
	"github.com/foxseedlab/gijiroku/internal/summarizer"
	"github.com/foxseedlab/gijiroku/internal/transcriber"
	"github.com/foxseedlab/gijiroku/internal/transcript"
	"github.com/robfig/cron/v3"
)

const fileIDTimeLayout = "20060102_150405"

var unsafeFileIDChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

type Dependencies struct {
	Repository   repository.Repository
	Discord      discord.Client
	Snapshots    *snapshot.Store
	Summarizer   summarizer.Runner
	Status       status.Reporter
	Classifier   classifier.ZeroShot
	Generator    generator.Generator
	Recognizer   transcriber.Recognizer
	NewVAD       transcriber.VADFactory
	NewDecoder   audio.DecoderFactory
	NewResampler audio.ResamplerFactory
}

type Manager struct {
	cfg  *config.Config
	deps Dependencies
	now  func() time.Time

	// ctx outlives every meeting; Shutdown cancels it after the last
	// meeting finishes.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	meetings map[string]*meeting
	botID    string
	closing  bool

	shutdowns sync.WaitGroup
}

type ManagerOption func(*Manager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(cfg *config.Config, deps Dependencies, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		deps:     deps,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		meetings: make(map[string]*meeting),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sessionKey(guildID, channelID string) string {
	return guildID + ":" + channelID
}

// SetBotUserID lets the manager recognize its own voice state updates.
func (m *Manager) SetBotUserID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botID = id
}

func (m *Manager) isSelf(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botID != "" && m.botID == userID
}

func (m *Manager) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	slog.Info("voice state update received", "guild_id", event.GuildID, "user_id", event.UserID, "before_channel_id", event.BeforeChannelID, "after_channel_id", event.AfterChannelID)
	if event.GuildID != m.cfg.DiscordGuildID {
		slog.Info("ignoring voice event for different guild", "event_guild_id", event.GuildID, "configured_guild_id", m.cfg.DiscordGuildID)
		return
	}
	target := m.cfg.DiscordVCID
	if event.BeforeChannelID == event.AfterChannelID {
		return
	}

	if m.isSelf(event.UserID) {
		if event.BeforeChannelID == target && event.AfterChannelID != target {
			m.endMeeting(event.GuildID, target, "bot was removed from voice channel")
		}
		return
	}
	if event.UserIsBot && !m.cfg.DiscordCountOtherBots {
		slog.Info("ignoring bot voice event", "user_id", event.UserID)
		return
	}

	switch {
	case event.AfterChannelID == target:
		if err := m.join(event.GuildID, target, event.UserID); err != nil {
			slog.Error("failed to handle participant join", "error", err, "user_id", event.UserID)
		}
	case event.BeforeChannelID == target:
		m.leave(event.GuildID, target, event.UserID)
	}
}

// SyncParticipants starts a meeting for anyone already in the voice channel
// when the bot comes online.
func (m *Manager) SyncParticipants() error {
	guildID, channelID := m.cfg.DiscordGuildID, m.cfg.DiscordVCID
	participants, err := m.deps.Discord.ListVoiceChannelParticipants(guildID, channelID)
	if err != nil {
		return fmt.Errorf("list voice channel participants: %w", err)
	}
	for _, p := range participants {
		if m.isSelf(p.UserID) || (p.IsBot && !m.cfg.DiscordCountOtherBots) {
			continue
		}
		if err := m.join(guildID, channelID, p.UserID); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) join(guildID, channelID, userID string) error {
	profile := m.deps.Discord.ResolveMemberProfile(m.ctx, guildID, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return nil
	}
	key := sessionKey(guildID, channelID)
	mt, ok := m.meetings[key]
	if !ok {
		var err error
		mt, err = m.startMeetingLocked(guildID, channelID)
		if err != nil {
			return err
		}
		m.meetings[key] = mt
	}
	n := mt.addParticipant(userID, profile)
	slog.Info("participant joined meeting", append(mt.logAttrs(), "user_id", userID, "participants", n)...)
	return nil
}

func (m *Manager) leave(guildID, channelID, userID string) {
	key := sessionKey(guildID, channelID)
	m.mu.Lock()
	mt, ok := m.meetings[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	empty := mt.removeParticipant(userID)
	if empty {
		delete(m.meetings, key)
	}
	m.mu.Unlock()

	slog.Info("participant left meeting", append(mt.logAttrs(), "user_id", userID)...)
	if empty {
		m.shutdowns.Go(func() { mt.shutdown("all participants left voice channel") })
	}
}

func (m *Manager) endMeeting(guildID, channelID, reason string) {
	key := sessionKey(guildID, channelID)
	m.mu.Lock()
	mt, ok := m.meetings[key]
	delete(m.meetings, key)
	m.mu.Unlock()
	if ok {
		m.shutdowns.Go(func() { mt.shutdown(reason) })
	}
}

// startMeetingLocked joins voice and brings up a meeting's runtime. The
// caller holds m.mu.
func (m *Manager) startMeetingLocked(guildID, channelID string) (*meeting, error) {
	ctx := m.ctx
	slog.Info("start meeting requested", "guild_id", guildID, "channel_id", channelID)

	orphan, err := m.deps.Repository.GetRunningSessionByChannel(ctx, guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("query running session: %w", err)
	}
	if orphan != nil {
		slog.Warn("found orphan running session in repository; closing and continuing", "session_id", orphan.ID, "guild_id", guildID, "channel_id", channelID)
		if err := m.deps.Repository.UpdateSessionCompleted(ctx, repository.CompleteSessionInput{
			SessionID:    orphan.ID,
			EndedAt:      m.now(),
			UtteranceNum: orphan.UtteranceNum,
		}); err != nil {
			return nil, fmt.Errorf("complete orphan session %s: %w", orphan.ID, err)
		}
	}

	voice, err := m.deps.Discord.JoinVoiceChannel(guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("join voice channel: %w", err)
	}
	slog.Info("joined voice channel", "guild_id", guildID, "channel_id", channelID)

	startedAt := m.now()
	roomName := m.deps.Discord.ResolveChannelName(channelID)
	fileID := newFileID(roomName, startedAt)
	record, err := m.deps.Repository.CreateSession(ctx, repository.CreateSessionInput{
		GuildID:   guildID,
		ChannelID: channelID,
		RoomName:  roomName,
		FileID:    fileID,
		StartedAt: startedAt,
	})
	if err != nil {
		_ = voice.Disconnect()
		return nil, fmt.Errorf("create session: %w", err)
	}

	store := transcript.NewStore(roomName, fileID, startedAt, m.deps.Repository, transcript.WithClock(m.now))
	meetingCtx, cancel := context.WithCancel(ctx)
	bgCtx, bgCancel := context.WithCancel(meetingCtx)
	mt := &meeting{
		m:            m,
		guildID:      guildID,
		channelID:    channelID,
		record:       record,
		store:        store,
		voice:        voice,
		scheduler:    cron.New(),
		ctx:          meetingCtx,
		cancel:       cancel,
		bgCtx:        bgCtx,
		bgCancel:     bgCancel,
		participants: make(map[string]struct{}),
		tracks:       make(map[string]*track),
	}
	mt.detector = decision.NewDetector(m.deps.Classifier, m.deps.Generator,
		&channelPublisher{discord: m.deps.Discord, channelID: channelID, names: mt.displayName},
		decision.WithWindowSize(m.cfg.DecisionWindowSize),
		decision.WithCooldown(m.cfg.DecisionCooldown()),
		decision.WithQueueSize(m.cfg.DecisionQueueSize),
		decision.WithClock(m.now),
	)
	if err := mt.start(); err != nil {
		m.shutdowns.Go(func() { mt.shutdown("meeting failed to start") })
		return nil, err
	}

	slog.Info("meeting started", mt.logAttrs()...)
	if err := m.deps.Discord.SendChannelMessage(channelID, messageMeetingStarted); err != nil {
		slog.Warn("failed to announce meeting start", append(mt.logAttrs(), "error", err)...)
	}
	return mt, nil
}

func newFileID(roomName string, startedAt time.Time) string {
	base := strings.Trim(unsafeFileIDChars.ReplaceAllString(roomName, "_"), "_")
	if base == "" {
		base = "meeting"
	}
	return base + "_" + startedAt.Format(fileIDTimeLayout)
}

func (m *Manager) HandleSlashCommand(event discord.SlashCommandEvent) {
	respond := func(content string) {
		if err := event.RespondEphemeral(content); err != nil {
			slog.Warn("failed to respond to slash command", "command", event.CommandName, "user_id", event.UserID, "error", err)
		}
	}
	if event.GuildID != m.cfg.DiscordGuildID {
		respond(messageEphemeralWrongGuild)
		return
	}
	if event.CommandName != slashCommandRecap {
		respond(messageEphemeralUnknownCommand)
		return
	}

	channelID, err := m.deps.Discord.GetUserVoiceChannelID(event.GuildID, event.UserID)
	if err != nil {
		slog.Warn("failed to look up requester voice channel", "user_id", event.UserID, "error", err)
		respond(messageEphemeralLookupFailed)
		return
	}
	if channelID != m.cfg.DiscordVCID {
		respond(messageEphemeralJoinVCFirst)
		return
	}

	m.mu.Lock()
	mt, ok := m.meetings[sessionKey(event.GuildID, channelID)]
	m.mu.Unlock()
	if !ok || !mt.requestRecap(event.UserID) {
		respond(messageEphemeralNoMeeting)
		return
	}
	slog.Info("recap requested", append(mt.logAttrs(), "requester_id", event.UserID)...)
	respond(messageEphemeralRecapAccepted)
}

// Shutdown ends every active meeting and waits for their shutdown
// sequences, including the summarizer handoff, until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	active := make([]*meeting, 0, len(m.meetings))
	for key, mt := range m.meetings {
		active = append(active, mt)
		delete(m.meetings, key)
	}
	m.mu.Unlock()

	for _, mt := range active {
		m.shutdowns.Go(func() { mt.shutdown("bot is shutting down") })
	}

	done := make(chan struct{})
	go func() {
		m.shutdowns.Wait()
		close(done)
	}()
	defer m.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for meetings to finish: %w", ctx.Err())
	}
}
