package generator

import (
	"context"
	"fmt"

	"github.com/foxseedlab/gijiroku/internal/generator"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type chatCompletions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type OpenAIGenerator struct {
	completions chatCompletions
	model       string
	retry       retryPolicy
}

func NewOpenAIGenerator(apiKey, baseURL, model string, maxAttempts int) *OpenAIGenerator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return newOpenAIGenerator(&client.Chat.Completions, model, maxAttempts)
}

func newOpenAIGenerator(completions chatCompletions, model string, maxAttempts int) *OpenAIGenerator {
	return &OpenAIGenerator{completions: completions, model: model, retry: newRetryPolicy(maxAttempts)}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req generator.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
		Temperature: openai.Float(float64(req.Temperature)),
	}
	return g.retry.do(ctx, "openai", func(ctx context.Context) (string, error) {
		resp, err := g.completions.New(ctx, params)
		if err != nil {
			return "", err
		}
		if resp == nil || len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
}

var _ generator.Generator = (*OpenAIGenerator)(nil)
