package session

import (
	"github.com/foxseedlab/gijiroku/internal/audio"
	"github.com/foxseedlab/gijiroku/internal/classifier"
	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/foxseedlab/gijiroku/internal/discord"
	"github.com/foxseedlab/gijiroku/internal/generator"
	"github.com/foxseedlab/gijiroku/internal/repository"
	"github.com/foxseedlab/gijiroku/internal/snapshot"
	"github.com/foxseedlab/gijiroku/internal/status"
	"github.com/foxseedlab/gijiroku/internal/summarizer"
	"github.com/foxseedlab/gijiroku/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewManager(cfg, Dependencies{
			Repository:   do.MustInvoke[repository.Repository](i),
			Discord:      do.MustInvoke[discord.Client](i),
			Snapshots:    do.MustInvoke[*snapshot.Store](i),
			Summarizer:   do.MustInvoke[summarizer.Runner](i),
			Status:       do.MustInvoke[status.Reporter](i),
			Classifier:   do.MustInvoke[classifier.ZeroShot](i),
			Generator:    do.MustInvoke[generator.Generator](i),
			Recognizer:   do.MustInvoke[transcriber.Recognizer](i),
			NewVAD:       do.MustInvoke[transcriber.VADFactory](i),
			NewDecoder:   do.MustInvoke[audio.DecoderFactory](i),
			NewResampler: do.MustInvoke[audio.ResamplerFactory](i),
		}), nil
	})
}
