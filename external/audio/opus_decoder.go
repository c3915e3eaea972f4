//go:build opus

package audio

import (
	"fmt"

	"github.com/foxseedlab/gijiroku/internal/audio"
	"github.com/hraban/opus"
)

const (
	sampleRate = 48000
	channels   = 2
	// 120ms is the longest Opus frame.
	maxFrameSamples = sampleRate * 120 / 1000 * channels
)

type OpusDecoder struct {
	dec *opus.Decoder
	pcm []int16
}

func NewOpusDecoder() (audio.Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec, pcm: make([]int16, maxFrameSamples)}, nil
}

func (d *OpusDecoder) Decode(packet []byte) (audio.Frame, error) {
	n, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		return audio.Frame{}, fmt.Errorf("decode opus packet: %w", err)
	}
	samples := make([]int16, n*channels)
	copy(samples, d.pcm[:n*channels])
	return audio.Frame{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}
