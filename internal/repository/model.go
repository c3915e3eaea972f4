package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	ID            string
	GuildID       string
	ChannelID     string
	RoomName      string
	FileID        string
	StartedAt     time.Time
	EndedAt       *time.Time
	Status        SessionStatus
	SummaryStatus string
	UtteranceNum  int64
}

// Utterance is one persisted line of a session's append-only log.
type Utterance struct {
	SequenceID int64
	SpokenAt   time.Time
	SpeakerID  string
	Content    string
}
