package audio

import (
	"context"
	"time"
)

// Frame is a block of interleaved signed 16-bit PCM.
type Frame struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration is the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	perChannel := len(f.Samples) / f.Channels
	return time.Duration(perChannel) * time.Second / time.Duration(f.SampleRate)
}

// Bytes encodes the samples as little-endian LINEAR16.
func (f Frame) Bytes() []byte {
	b := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		b[i*2] = byte(s)
		b[i*2+1] = byte(uint16(s) >> 8)
	}
	return b
}

// Concat joins frames that share a format.
func Concat(frames []Frame) Frame {
	if len(frames) == 0 {
		return Frame{}
	}
	total := 0
	for _, f := range frames {
		total += len(f.Samples)
	}
	out := Frame{
		Samples:    make([]int16, 0, total),
		SampleRate: frames[0].SampleRate,
		Channels:   frames[0].Channels,
	}
	for _, f := range frames {
		out.Samples = append(out.Samples, f.Samples...)
	}
	return out
}

// FrameSource yields decoded frames for one track. ReadFrame returns io.EOF
// once the track has ended.
type FrameSource interface {
	ReadFrame(ctx context.Context) (Frame, error)
}

type Decoder interface {
	Decode(packet []byte) (Frame, error)
}

type DecoderFactory func() (Decoder, error)

type Resampler interface {
	Process(in Frame) (Frame, error)
}

type ResamplerFactory func() (Resampler, error)
