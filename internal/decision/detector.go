// Package decision watches final transcript lines for requests to decide or
// vote on something and publishes one event per confirmed request.
package decision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/foxseedlab/gijiroku/internal/classifier"
	"github.com/foxseedlab/gijiroku/internal/generator"
)

const (
	DefaultCooldown  = 30 * time.Second
	DefaultQueueSize = 256
)

type Event struct {
	Topic     string    `json:"topic"`
	Options   []string  `json:"options"`
	Proposer  string    `json:"proposer"`
	CreatedAt time.Time `json:"created_at"`
}

type Publisher interface {
	PublishVoteCreated(ctx context.Context, event Event) error
}

type segment struct {
	speakerID string
	text      string
}

type Detector struct {
	classifier classifier.ZeroShot
	generator  generator.Generator
	publisher  Publisher

	window   *Window
	cooldown time.Duration
	now      func() time.Time
	queue    chan segment

	lastTopic     string
	lastEmittedAt time.Time
}

type Option func(*Detector)

func WithWindowSize(size int) Option {
	return func(d *Detector) {
		d.window = NewWindow(size)
	}
}

func WithCooldown(cooldown time.Duration) Option {
	return func(d *Detector) {
		if cooldown > 0 {
			d.cooldown = cooldown
		}
	}
}

func WithQueueSize(size int) Option {
	return func(d *Detector) {
		if size > 0 {
			d.queue = make(chan segment, size)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDetector(zs classifier.ZeroShot, gen generator.Generator, pub Publisher, opts ...Option) *Detector {
	d := &Detector{
		classifier: zs,
		generator:  gen,
		publisher:  pub,
		window:     NewWindow(DefaultWindowSize),
		cooldown:   DefaultCooldown,
		now:        time.Now,
		queue:      make(chan segment, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnSegment queues a final line for detection. It never blocks; when the
// queue is full the line is dropped.
func (d *Detector) OnSegment(speakerID, text string) {
	select {
	case d.queue <- segment{speakerID: speakerID, text: text}:
	default:
		slog.Warn("decision queue is full; dropping segment", "user_id", speakerID)
	}
}

// HandleTranscript lets the detector act as a pipeline sink.
func (d *Detector) HandleTranscript(_ context.Context, speakerID, text string) {
	d.OnSegment(speakerID, text)
}

// Run processes queued segments one at a time until ctx is done.
func (d *Detector) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case seg := <-d.queue:
			d.handle(ctx, seg)
		}
	}
}

func (d *Detector) handle(ctx context.Context, seg segment) {
	d.window.Push(formatLine(seg.speakerID, seg.text))

	if !d.lastEmittedAt.IsZero() && d.now().Sub(d.lastEmittedAt) < d.cooldown {
		slog.Debug("decision cooldown active; skipping segment", "user_id", seg.speakerID, "last_topic", d.lastTopic)
		return
	}

	result, err := d.classifier.Classify(ctx, seg.text, CandidateLabels())
	if err != nil {
		slog.Error("failed to classify segment", "user_id", seg.speakerID, "error", err)
		return
	}
	label, score, ok := result.Top()
	if !ok || label != DecisionLabel {
		slog.Debug("segment is not a decision request", "user_id", seg.speakerID, "label", label, "score", score)
		return
	}

	raw, err := d.generator.Generate(ctx, generator.Request{
		Prompt: buildConfirmPrompt(d.window, seg.speakerID, seg.text),
		JSON:   true,
	})
	if err != nil {
		slog.Error("failed to confirm decision request", "user_id", seg.speakerID, "error", err)
		return
	}
	ext, err := parseConfirmation(raw)
	if err != nil {
		if errors.Is(err, errNotAVote) {
			slog.Debug("decision request was not confirmed", "user_id", seg.speakerID)
		} else {
			slog.Warn("failed to parse confirmation response", "user_id", seg.speakerID, "error", err)
		}
		return
	}

	now := d.now()
	d.lastTopic = ext.Topic
	d.lastEmittedAt = now

	event := Event{Topic: ext.Topic, Options: ext.Options, Proposer: seg.speakerID, CreatedAt: now}
	slog.Info("vote request detected", "topic", event.Topic, "options", event.Options, "proposer", event.Proposer)
	if err := d.publisher.PublishVoteCreated(ctx, event); err != nil {
		slog.Error("failed to publish vote event", "topic", event.Topic, "error", err)
	}
}
