package summarizer

import (
	"fmt"

	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/foxseedlab/gijiroku/internal/generator"
	"github.com/foxseedlab/gijiroku/internal/snapshot"
	"github.com/foxseedlab/gijiroku/internal/summarizer"
	"github.com/foxseedlab/gijiroku/internal/summary"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (summarizer.Runner, error) {
		c := do.MustInvoke[*config.Config](i)
		switch c.SummarizerMode {
		case config.SummarizerModeProcess:
			return NewProcessRunner(c.SummarizerCommand), nil
		case config.SummarizerModeInProcess:
			service := summary.NewService(
				do.MustInvoke[*snapshot.Store](i),
				do.MustInvoke[generator.Generator](i),
			)
			return NewInProcessRunner(service), nil
		default:
			return nil, fmt.Errorf("unsupported summarizer mode: %q", c.SummarizerMode)
		}
	})
}
