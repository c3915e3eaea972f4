package transcriber

import (
	"context"
	"time"

	"github.com/foxseedlab/gijiroku/internal/audio"
)

type EventType int

const (
	EventInterim EventType = iota
	EventFinal
)

func (t EventType) String() string {
	if t == EventFinal {
		return "final"
	}
	return "interim"
}

type SpeechEvent struct {
	Type       EventType
	Text       string
	Confidence float32
}

// Recognizer turns one speech segment into recognition events.
type Recognizer interface {
	Recognize(ctx context.Context, segment audio.Frame) ([]SpeechEvent, error)
}

type VADEventType int

const (
	SpeechStart VADEventType = iota
	SpeechEnd
)

// VoiceActivityDetector is fed consecutive frames of one track and reports
// speech boundaries.
type VoiceActivityDetector interface {
	Process(frame audio.Frame) []VADEventType
	Speaking() bool
}

type VADConfig struct {
	MinSpeech         time.Duration
	MinSilence        time.Duration
	NoSpeechThreshold float64
}

type VADFactory func() VoiceActivityDetector
