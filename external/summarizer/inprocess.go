package summarizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foxseedlab/gijiroku/internal/summarizer"
	"github.com/foxseedlab/gijiroku/internal/summary"
)

type summaryService interface {
	Final(ctx context.Context, fileID string) (string, error)
	Recap(ctx context.Context, in summary.RecapInput) (string, error)
}

// InProcessRunner runs the summary service on a goroutine of this process.
type InProcessRunner struct {
	service summaryService
}

func NewInProcessRunner(service summaryService) *InProcessRunner {
	return &InProcessRunner{service: service}
}

func (r *InProcessRunner) RequestSummary(ctx context.Context, fileID string) (summarizer.Job, error) {
	return r.start(ctx, func(ctx context.Context) (string, error) {
		return r.service.Final(ctx, fileID)
	}), nil
}

func (r *InProcessRunner) RequestRecap(ctx context.Context, req summarizer.RecapRequest) (summarizer.Job, error) {
	return r.start(ctx, func(ctx context.Context) (string, error) {
		return r.service.Recap(ctx, summary.RecapInput{
			FileID:         req.FileID,
			EndUtteranceID: req.EndID,
			InputFolder:    req.InputFolder,
			OutputFolder:   req.OutputFolder,
		})
	}), nil
}

func (r *InProcessRunner) start(ctx context.Context, fn func(ctx context.Context) (string, error)) summarizer.Job {
	job := &goroutineJob{done: make(chan struct{})}
	go func() {
		defer close(job.done)
		defer func() {
			if rec := recover(); rec != nil {
				job.err = fmt.Errorf("summary panicked: %v", rec)
			}
		}()
		key, err := fn(ctx)
		if err != nil {
			job.err = err
			return
		}
		slog.Info("in-process summary finished", "key", key)
	}()
	return job
}

type goroutineJob struct {
	done chan struct{}
	err  error
}

func (j *goroutineJob) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.done:
		return j.err
	}
}

var _ summarizer.Runner = (*InProcessRunner)(nil)
