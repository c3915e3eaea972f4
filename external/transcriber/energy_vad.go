package transcriber

import (
	"math"
	"time"

	"github.com/foxseedlab/gijiroku/internal/audio"
	"github.com/foxseedlab/gijiroku/internal/transcriber"
)

// EnergyVAD flags speech when a frame's normalized RMS reaches the threshold.
// Speech starts after MinSpeech of consecutive voiced audio and ends after
// MinSilence of consecutive unvoiced audio.
type EnergyVAD struct {
	cfg       transcriber.VADConfig
	speaking  bool
	voicedFor time.Duration
	silentFor time.Duration
}

func NewEnergyVAD(cfg transcriber.VADConfig) *EnergyVAD {
	return &EnergyVAD{cfg: cfg}
}

func (v *EnergyVAD) Speaking() bool {
	return v.speaking
}

func (v *EnergyVAD) Process(frame audio.Frame) []transcriber.VADEventType {
	d := frame.Duration()
	if d == 0 {
		return nil
	}
	voiced := rms(frame.Samples) >= v.cfg.NoSpeechThreshold

	if !v.speaking {
		if !voiced {
			v.voicedFor = 0
			return nil
		}
		v.voicedFor += d
		if v.voicedFor < v.cfg.MinSpeech {
			return nil
		}
		v.speaking = true
		v.silentFor = 0
		return []transcriber.VADEventType{transcriber.SpeechStart}
	}

	if voiced {
		v.silentFor = 0
		return nil
	}
	v.silentFor += d
	if v.silentFor < v.cfg.MinSilence {
		return nil
	}
	v.speaking = false
	v.voicedFor = 0
	v.silentFor = 0
	return []transcriber.VADEventType{transcriber.SpeechEnd}
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
