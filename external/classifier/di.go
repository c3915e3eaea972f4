package classifier

import (
	"github.com/foxseedlab/gijiroku/internal/classifier"
	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (classifier.ZeroShot, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPZeroShot(c.ClassifierURL, c.ClassifierToken, ""), nil
	})
}
