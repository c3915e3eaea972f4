package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

const (
	defaultMaxAttempts    = 3
	defaultBackoffInitial = 2 * time.Second
	defaultBackoffMax     = 10 * time.Second
)

type retryPolicy struct {
	maxAttempts int
	newBackoff  func() *gax.Backoff
	sleep       func(ctx context.Context, d time.Duration) error
}

func newRetryPolicy(maxAttempts int) retryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return retryPolicy{
		maxAttempts: maxAttempts,
		newBackoff: func() *gax.Backoff {
			return &gax.Backoff{Initial: defaultBackoffInitial, Max: defaultBackoffMax, Multiplier: 2}
		},
		sleep: gax.Sleep,
	}
}

// do runs fn until it succeeds, returns a non-retryable error, or the attempt
// cap is reached.
func (p retryPolicy) do(ctx context.Context, provider string, fn func(ctx context.Context) (string, error)) (string, error) {
	bo := p.newBackoff()
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == p.maxAttempts {
			break
		}
		pause := bo.Pause()
		slog.Warn("generator call failed; retrying", "provider", provider, "attempt", attempt, "max_attempts", p.maxAttempts, "pause", pause, "error", err)
		if err := p.sleep(ctx, pause); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%s generate: %w", provider, lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if code := httpStatusCode(err); code != 0 {
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func httpStatusCode(err error) int {
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return geminiErr.Code
	}
	var geminiErrPtr *genai.APIError
	if errors.As(err, &geminiErrPtr) {
		return geminiErrPtr.Code
	}
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode
	}
	var gaxErr *apierror.APIError
	if errors.As(err, &gaxErr) {
		return gaxErr.HTTPCode()
	}
	return 0
}
