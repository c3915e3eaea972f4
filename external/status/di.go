package status

import (
	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/foxseedlab/gijiroku/internal/status"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (status.Reporter, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPReporter(c.SessionStatusURL), nil
	})
}
