package generator

import (
	"context"
	"fmt"

	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/foxseedlab/gijiroku/internal/generator"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (generator.Generator, error) {
		cfg := do.MustInvoke[config.GeneratorConfig](i)
		return New(context.Background(), cfg)
	})
}

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.GeneratorConfig) (generator.Generator, error) {
	switch cfg.Provider {
	case config.GeneratorProviderGemini:
		return NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxAttempts)
	case config.GeneratorProviderOpenAI:
		return NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.MaxAttempts), nil
	default:
		return nil, fmt.Errorf("unsupported generator provider: %q", cfg.Provider)
	}
}
