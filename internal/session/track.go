package session

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/foxseedlab/gijiroku/internal/audio"
)

const warnSampleInterval = 100

// track buffers one participant's Opus packets between the voice receiver
// and that participant's pipeline.
type track struct {
	userID  string
	packets chan []byte
	dropped int64
}

func newTrack(userID string, queueLength int) *track {
	return &track{userID: userID, packets: make(chan []byte, queueLength)}
}

// offer enqueues a packet without blocking. The caller holds the meeting
// lock, so offer never races with end.
func (t *track) offer(packet []byte) bool {
	select {
	case t.packets <- packet:
		return true
	default:
		t.dropped++
		return false
	}
}

// end signals end of input to the pipeline reading this track.
func (t *track) end() {
	close(t.packets)
}

// trackSource decodes a track's packets into PCM frames. Discord stops
// sending packets while a user is silent, so after a gap of one frame
// interval the source emits silent frames, up to silenceFill past the last
// packet, letting the VAD observe the silence in real time.
type trackSource struct {
	userID       string
	packets      <-chan []byte
	decoder      audio.Decoder
	silenceFill  time.Duration
	decodeErrors int64

	template audio.Frame
	filled   time.Duration
}

func (s *trackSource) ReadFrame(ctx context.Context) (audio.Frame, error) {
	for {
		var (
			timer *time.Timer
			gap   <-chan time.Time
		)
		interval := s.template.Duration()
		if interval > 0 && s.filled < s.silenceFill {
			timer = time.NewTimer(interval)
			gap = timer.C
		}
		frame, ok, err := s.next(ctx, gap, interval)
		if timer != nil {
			timer.Stop()
		}
		if err != nil || ok {
			return frame, err
		}
	}
}

// next waits for one packet or one silent frame interval. ok is false when
// a packet failed to decode.
func (s *trackSource) next(ctx context.Context, gap <-chan time.Time, interval time.Duration) (audio.Frame, bool, error) {
	select {
	case <-ctx.Done():
		return audio.Frame{}, false, ctx.Err()
	case <-gap:
		s.filled += interval
		return silentFrame(s.template), true, nil
	case packet, ok := <-s.packets:
		if !ok {
			return audio.Frame{}, false, io.EOF
		}
		frame, err := s.decoder.Decode(packet)
		if err != nil {
			s.decodeErrors++
			if s.decodeErrors == 1 || s.decodeErrors%warnSampleInterval == 0 {
				slog.Warn("failed to decode opus packet", "user_id", s.userID, "decode_errors", s.decodeErrors, "error", err)
			}
			return audio.Frame{}, false, nil
		}
		s.template = frame
		s.filled = 0
		return frame, true, nil
	}
}

func silentFrame(like audio.Frame) audio.Frame {
	return audio.Frame{
		Samples:    make([]int16, len(like.Samples)),
		SampleRate: like.SampleRate,
		Channels:   like.Channels,
	}
}
