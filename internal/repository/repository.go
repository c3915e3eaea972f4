package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	GuildID   string
	ChannelID string
	RoomName  string
	FileID    string
	StartedAt time.Time
}

type CompleteSessionInput struct {
	SessionID    string
	EndedAt      time.Time
	UtteranceNum int64
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	UpdateSessionCompleted(ctx context.Context, input CompleteSessionInput) error
	UpdateSummaryStatus(ctx context.Context, sessionID, status string) error
	GetRunningSessionByChannel(ctx context.Context, guildID, channelID string) (*Session, error)
}

// UtteranceLog is the append-only per-session utterance log keyed by the
// session file id.
type UtteranceLog interface {
	AppendUtterance(ctx context.Context, logID string, u Utterance) error
	ListUtterances(ctx context.Context, logID string) ([]Utterance, error)
}

type Repository interface {
	SessionRepository
	UtteranceLog
}
