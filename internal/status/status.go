package status

import "context"

type SessionStatus string

const (
	BeforeStart SessionStatus = "BEFORE_START"
	InProgress  SessionStatus = "IN_PROGRESS"
	Completed   SessionStatus = "COMPLETED"
)

// Reporter tells the meeting backend how far a room's summary has progressed.
type Reporter interface {
	UpdateStatus(ctx context.Context, roomName string, status SessionStatus) error
}
