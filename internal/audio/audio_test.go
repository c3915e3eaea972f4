package audio

import (
	"testing"
	"time"
)

func TestFrameDuration(t *testing.T) {
	f := Frame{Samples: make([]int16, 960*2), SampleRate: 48000, Channels: 2}
	if f.Duration() != 20*time.Millisecond {
		t.Fatalf("unexpected duration: %v", f.Duration())
	}
	if (Frame{}).Duration() != 0 {
		t.Fatal("expected zero duration for empty format")
	}
}

func TestFrameBytes(t *testing.T) {
	f := Frame{Samples: []int16{1, -1, 256}, SampleRate: 16000, Channels: 1}
	got := f.Bytes()
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x01}
	if string(got) != string(want) {
		t.Fatalf("unexpected bytes: %v", got)
	}
}

func TestConcat(t *testing.T) {
	a := Frame{Samples: []int16{1, 2}, SampleRate: 16000, Channels: 1}
	b := Frame{Samples: []int16{3}, SampleRate: 16000, Channels: 1}
	got := Concat([]Frame{a, b})
	if len(got.Samples) != 3 || got.Samples[2] != 3 || got.SampleRate != 16000 {
		t.Fatalf("unexpected frame: %+v", got)
	}
	if len(Concat(nil).Samples) != 0 {
		t.Fatal("expected empty frame")
	}
}
