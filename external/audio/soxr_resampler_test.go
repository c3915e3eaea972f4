package audio

import (
	"testing"

	"github.com/foxseedlab/gijiroku/internal/audio"
)

func TestDownmix_AveragesChannels(t *testing.T) {
	got := downmix(audio.Frame{Samples: []int16{100, 300, -200, 0}, SampleRate: 48000, Channels: 2})
	if len(got) != 2 || got[0] != 200 || got[1] != -100 {
		t.Fatalf("unexpected mono samples: %v", got)
	}
}

func TestFloatToPCM_Clamps(t *testing.T) {
	if floatToPCM(2) != 32767 || floatToPCM(-2) != -32768 || floatToPCM(0) != 0 {
		t.Fatal("unexpected clamp behaviour")
	}
}

func TestSoxrResampler_PassthroughSameRate(t *testing.T) {
	r, err := NewSoxrResampler(16000, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := r.Process(audio.Frame{Samples: []int16{10, 20, 30, 40}, SampleRate: 16000, Channels: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Channels != 1 || out.SampleRate != 16000 || len(out.Samples) != 2 || out.Samples[1] != 35 {
		t.Fatalf("unexpected frame: %+v", out)
	}
}

func TestSoxrResampler_RejectsWrongRate(t *testing.T) {
	r, err := NewSoxrResampler(48000, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Process(audio.Frame{Samples: []int16{1}, SampleRate: 44100, Channels: 1}); err == nil {
		t.Fatal("expected error for mismatched input rate")
	}
}

func TestSoxrResampler_Downsamples(t *testing.T) {
	r, err := NewSoxrResampler(48000, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total := 0
	for i := 0; i < 50; i++ {
		out, err := r.Process(audio.Frame{Samples: make([]int16, 960*2), SampleRate: 48000, Channels: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.SampleRate != 16000 || out.Channels != 1 {
			t.Fatalf("unexpected format: %+v", out)
		}
		total += len(out.Samples)
	}
	// one second of input; allow for filter latency
	if total < 8000 || total > 16100 {
		t.Fatalf("unexpected output sample count: %d", total)
	}
}
