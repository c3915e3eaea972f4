package transcriber

import (
	"context"
	"time"

	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/foxseedlab/gijiroku/internal/transcriber"
	"github.com/samber/do/v2"
)

const speechClientInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Recognizer, error) {
		c := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), speechClientInitTimeout)
		defer cancel()
		return NewCloudSpeechRecognizer(ctx, CloudSpeechConfig{
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Language:        c.TranscribeLanguage,
			Location:        c.GoogleCloudSpeechLocation,
			Model:           c.GoogleCloudSpeechModel,
			PrimingPrompt:   c.STTPrimingPrompt,
			MinConfidence:   c.STTMinConfidence,
		})
	})
	do.Provide(injector, func(i do.Injector) (transcriber.VADFactory, error) {
		c := do.MustInvoke[*config.Config](i)
		vadCfg := transcriber.VADConfig{
			MinSpeech:         c.VADMinSpeech(),
			MinSilence:        c.VADMinSilence(),
			NoSpeechThreshold: c.VADNoSpeechThreshold,
		}
		return func() transcriber.VoiceActivityDetector {
			return NewEnergyVAD(vadCfg)
		}, nil
	})
}
