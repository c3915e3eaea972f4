//go:build !opus

package audio

import (
	"log/slog"
	"sync"

	"github.com/foxseedlab/gijiroku/internal/audio"
)

const (
	sampleRate      = 48000
	channels        = 2
	samplesPerFrame = sampleRate * 20 / 1000 * channels
)

var warnStubOnce sync.Once

// silentDecoder stands in when the binary is built without the opus tag. Every
// packet decodes to 20ms of silence so the rest of the pipeline keeps running.
type silentDecoder struct{}

func NewOpusDecoder() (audio.Decoder, error) {
	warnStubOnce.Do(func() {
		slog.Warn("built without opus support; voice packets decode to silence")
	})
	return silentDecoder{}, nil
}

func (silentDecoder) Decode(_ []byte) (audio.Frame, error) {
	return audio.Frame{Samples: make([]int16, samplesPerFrame), SampleRate: sampleRate, Channels: channels}, nil
}
