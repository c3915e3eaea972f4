// Package pipeline turns one participant's audio track into final transcript
// lines. Each track runs three stages: feed and resample, VAD segmentation,
// and sequential recognition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/gijiroku/internal/audio"
	"github.com/foxseedlab/gijiroku/internal/transcriber"
)

const (
	defaultPreRoll       = 300 * time.Millisecond
	defaultMaxSegment    = 55 * time.Second
	frameChannelLength   = 64
	segmentChannelLength = 8
)

// Sink receives final transcript lines in recognition order.
type Sink interface {
	HandleTranscript(ctx context.Context, speakerID, text string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, speakerID, text string)

func (f SinkFunc) HandleTranscript(ctx context.Context, speakerID, text string) {
	f(ctx, speakerID, text)
}

type Config struct {
	SpeakerID  string
	Resampler  audio.Resampler
	VAD        transcriber.VoiceActivityDetector
	Recognizer transcriber.Recognizer
	Sinks      []Sink
	// PreRoll is the audio kept from before the VAD start so the onset is
	// not clipped. It should be at least the VAD's minimum speech duration.
	PreRoll    time.Duration
	MaxSegment time.Duration
}

type Pipeline struct {
	cfg Config

	frames   atomic.Int64
	segments atomic.Int64
	finals   atomic.Int64
}

func New(cfg Config) *Pipeline {
	if cfg.PreRoll <= 0 {
		cfg.PreRoll = defaultPreRoll
	}
	if cfg.MaxSegment <= 0 {
		cfg.MaxSegment = defaultMaxSegment
	}
	return &Pipeline{cfg: cfg}
}

// Run processes src until it ends, ctx is cancelled, or recognition fails.
// When src ends, buffered speech is flushed and recognized before Run
// returns. A recognition error stops the pipeline and is returned.
func (p *Pipeline) Run(ctx context.Context, src audio.FrameSource) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	frames := make(chan audio.Frame, frameChannelLength)
	segments := make(chan audio.Frame, segmentChannelLength)

	var (
		wg       sync.WaitGroup
		recogErr error
	)
	wg.Go(func() {
		p.feed(ctx, src, frames)
	})
	wg.Go(func() {
		p.segment(ctx, frames, segments)
	})
	wg.Go(func() {
		recogErr = p.recognize(ctx, segments)
		if recogErr != nil {
			cancel(recogErr)
		}
	})
	wg.Wait()

	slog.Info("audio track pipeline finished",
		"speaker_id", p.cfg.SpeakerID,
		"frames", p.frames.Load(),
		"segments", p.segments.Load(),
		"finals", p.finals.Load(),
		"error", recogErr)
	return recogErr
}

func (p *Pipeline) feed(ctx context.Context, src audio.FrameSource, out chan<- audio.Frame) {
	defer close(out)
	for {
		frame, err := src.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) {
				slog.Warn("audio source failed; ending input", "speaker_id", p.cfg.SpeakerID, "error", err)
			}
			return
		}
		if len(frame.Samples) == 0 {
			continue
		}
		resampled, err := p.cfg.Resampler.Process(frame)
		if err != nil {
			slog.Warn("resampling failed; ending input", "speaker_id", p.cfg.SpeakerID, "error", err)
			return
		}
		if len(resampled.Samples) == 0 {
			continue
		}
		p.frames.Add(1)
		select {
		case out <- resampled:
		case <-ctx.Done():
			return
		}
	}
}

type segmenter struct {
	preRoll    []audio.Frame
	preRollDur time.Duration
	buffer     []audio.Frame
	bufferDur  time.Duration
	buffering  bool
	maxPreRoll time.Duration
	maxSegment time.Duration
	vad        transcriber.VoiceActivityDetector
	send       func(audio.Frame) bool
}

func (p *Pipeline) segment(ctx context.Context, in <-chan audio.Frame, out chan<- audio.Frame) {
	defer close(out)
	s := &segmenter{
		maxPreRoll: p.cfg.PreRoll,
		maxSegment: p.cfg.MaxSegment,
		vad:        p.cfg.VAD,
		send: func(seg audio.Frame) bool {
			p.segments.Add(1)
			select {
			case out <- seg:
				return true
			case <-ctx.Done():
				return false
			}
		},
	}
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-in:
			if !ok {
				if ctx.Err() == nil {
					s.flush()
				}
				return
			}
			if !s.push(frame) {
				return
			}
		}
	}
}

func (s *segmenter) push(frame audio.Frame) bool {
	events := s.vad.Process(frame)
	if s.buffering {
		s.buffer = append(s.buffer, frame)
		s.bufferDur += frame.Duration()
	} else {
		s.preRoll = append(s.preRoll, frame)
		s.preRollDur += frame.Duration()
		for len(s.preRoll) > 1 && s.preRollDur-s.preRoll[0].Duration() >= s.maxPreRoll {
			s.preRollDur -= s.preRoll[0].Duration()
			s.preRoll = s.preRoll[1:]
		}
	}

	for _, ev := range events {
		switch ev {
		case transcriber.SpeechStart:
			if s.buffering {
				continue
			}
			s.buffering = true
			s.buffer = s.preRoll
			s.bufferDur = s.preRollDur
			s.preRoll = nil
			s.preRollDur = 0
		case transcriber.SpeechEnd:
			if !s.buffering {
				continue
			}
			s.buffering = false
			if !s.emit() {
				return false
			}
		}
	}

	if s.buffering && s.bufferDur >= s.maxSegment {
		return s.emit()
	}
	return true
}

// flush emits buffered speech at end of input.
func (s *segmenter) flush() {
	if len(s.buffer) == 0 {
		return
	}
	s.emit()
}

func (s *segmenter) emit() bool {
	if len(s.buffer) == 0 {
		return true
	}
	seg := audio.Concat(s.buffer)
	s.buffer = nil
	s.bufferDur = 0
	return s.send(seg)
}

func (p *Pipeline) recognize(ctx context.Context, in <-chan audio.Frame) error {
	for {
		var (
			seg audio.Frame
			ok  bool
		)
		select {
		case <-ctx.Done():
			return nil
		case seg, ok = <-in:
			if !ok || ctx.Err() != nil {
				return nil
			}
		}

		events, err := p.cfg.Recognizer.Recognize(ctx, seg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("speech recognition failed; stopping track", "speaker_id", p.cfg.SpeakerID, "segment_duration", seg.Duration(), "error", err)
			return fmt.Errorf("recognize segment for %s: %w", p.cfg.SpeakerID, err)
		}
		for _, ev := range events {
			if ev.Type != transcriber.EventFinal {
				continue
			}
			text := strings.TrimSpace(ev.Text)
			if text == "" {
				continue
			}
			p.finals.Add(1)
			for _, sink := range p.cfg.Sinks {
				sink.HandleTranscript(ctx, p.cfg.SpeakerID, text)
			}
		}
	}
}
