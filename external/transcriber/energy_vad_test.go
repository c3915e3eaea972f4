package transcriber

import (
	"testing"
	"time"

	"github.com/foxseedlab/gijiroku/internal/audio"
	"github.com/foxseedlab/gijiroku/internal/transcriber"
)

func frame(amplitude int16) audio.Frame {
	samples := make([]int16, 320)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return audio.Frame{Samples: samples, SampleRate: 16000, Channels: 1}
}

func feed(v *EnergyVAD, f audio.Frame, n int) []transcriber.VADEventType {
	var events []transcriber.VADEventType
	for i := 0; i < n; i++ {
		events = append(events, v.Process(f)...)
	}
	return events
}

func newTestVAD() *EnergyVAD {
	return NewEnergyVAD(transcriber.VADConfig{
		MinSpeech:         100 * time.Millisecond,
		MinSilence:        2 * time.Second,
		NoSpeechThreshold: 0.02,
	})
}

func TestEnergyVAD_StartsAfterMinSpeech(t *testing.T) {
	v := newTestVAD()
	// 20ms frames: four voiced frames are not enough
	if events := feed(v, frame(8000), 4); len(events) != 0 {
		t.Fatalf("unexpected events: %v", events)
	}
	events := feed(v, frame(8000), 1)
	if len(events) != 1 || events[0] != transcriber.SpeechStart {
		t.Fatalf("expected speech start, got %v", events)
	}
	if !v.Speaking() {
		t.Fatal("expected speaking state")
	}
}

func TestEnergyVAD_ShortBurstIgnored(t *testing.T) {
	v := newTestVAD()
	feed(v, frame(8000), 3)
	feed(v, frame(0), 1)
	if events := feed(v, frame(8000), 3); len(events) != 0 {
		t.Fatalf("unexpected events after interrupted burst: %v", events)
	}
}

func TestEnergyVAD_EndsAfterMinSilence(t *testing.T) {
	v := newTestVAD()
	feed(v, frame(8000), 5)
	// 99 silent frames = 1.98s
	if events := feed(v, frame(0), 99); len(events) != 0 {
		t.Fatalf("unexpected events before min silence: %v", events)
	}
	events := feed(v, frame(0), 1)
	if len(events) != 1 || events[0] != transcriber.SpeechEnd {
		t.Fatalf("expected speech end, got %v", events)
	}
	if v.Speaking() {
		t.Fatal("expected idle state")
	}
}

func TestEnergyVAD_VoiceResetsSilence(t *testing.T) {
	v := newTestVAD()
	feed(v, frame(8000), 5)
	feed(v, frame(0), 90)
	feed(v, frame(8000), 1)
	if events := feed(v, frame(0), 90); len(events) != 0 {
		t.Fatalf("silence counter was not reset: %v", events)
	}
}
