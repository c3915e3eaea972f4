package audio

import (
	"fmt"

	"github.com/foxseedlab/gijiroku/internal/audio"
	resampling "github.com/tphakala/go-audio-resampling"
)

// SoxrResampler downmixes to mono and converts to the target rate.
type SoxrResampler struct {
	sourceRate int
	targetRate int
	resampler  resampling.Resampler
}

func NewSoxrResampler(sourceRate, targetRate int) (audio.Resampler, error) {
	r := &SoxrResampler{sourceRate: sourceRate, targetRate: targetRate}
	if sourceRate == targetRate {
		return r, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(sourceRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	r.resampler = rs
	return r, nil
}

func (r *SoxrResampler) Process(in audio.Frame) (audio.Frame, error) {
	if in.SampleRate != r.sourceRate {
		return audio.Frame{}, fmt.Errorf("unexpected input rate %d, want %d", in.SampleRate, r.sourceRate)
	}
	mono := downmix(in)
	if r.resampler == nil {
		return audio.Frame{Samples: mono, SampleRate: r.targetRate, Channels: 1}, nil
	}

	input := make([]float64, len(mono))
	for i, s := range mono {
		input[i] = float64(s) / 32768.0
	}
	output, err := r.resampler.Process(input)
	if err != nil {
		return audio.Frame{}, fmt.Errorf("resample: %w", err)
	}
	samples := make([]int16, len(output))
	for i, s := range output {
		samples[i] = floatToPCM(s)
	}
	return audio.Frame{Samples: samples, SampleRate: r.targetRate, Channels: 1}, nil
}

func downmix(in audio.Frame) []int16 {
	if in.Channels <= 1 {
		out := make([]int16, len(in.Samples))
		copy(out, in.Samples)
		return out
	}
	frames := len(in.Samples) / in.Channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < in.Channels; c++ {
			sum += int32(in.Samples[i*in.Channels+c])
		}
		out[i] = int16(sum / int32(in.Channels))
	}
	return out
}

func floatToPCM(s float64) int16 {
	if s > 1.0 {
		return 32767
	}
	if s < -1.0 {
		return -32768
	}
	return int16(s * 32767.0)
}
