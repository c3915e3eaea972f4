package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/foxseedlab/gijiroku/internal/generator"
	"google.golang.org/genai"
)

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiGenerator struct {
	models geminiModels
	model  string
	retry  retryPolicy
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string, maxAttempts int) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiGenerator(client.Models, model, maxAttempts), nil
}

func newGeminiGenerator(models geminiModels, model string, maxAttempts int) *GeminiGenerator {
	return &GeminiGenerator{models: models, model: model, retry: newRetryPolicy(maxAttempts)}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req generator.Request) (string, error) {
	temperature := req.Temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(req.Prompt)},
	}}
	return g.retry.do(ctx, "gemini", func(ctx context.Context) (string, error) {
		resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
		if err != nil {
			return "", err
		}
		return geminiText(resp)
	})
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}

var _ generator.Generator = (*GeminiGenerator)(nil)
