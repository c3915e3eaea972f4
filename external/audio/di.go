package audio

import (
	"github.com/foxseedlab/gijiroku/internal/audio"
	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.ProvideValue(injector, audio.DecoderFactory(NewOpusDecoder))
	do.Provide(injector, func(i do.Injector) (audio.ResamplerFactory, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return func() (audio.Resampler, error) {
			return NewSoxrResampler(cfg.AudioSourceSampleRate, cfg.AudioTargetSampleRate)
		}, nil
	})
}
