package generator

import "context"

type Request struct {
	Prompt      string
	JSON        bool
	Temperature float32
}

// Generator completes a single-turn prompt and returns the model text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
