package summarizer

import "context"

type RecapRequest struct {
	FileID       string
	InputFolder  string
	OutputFolder string
	EndID        int64
}

// Job is a summarization started in the background.
type Job interface {
	// Wait blocks until the job finishes and reports whether it succeeded.
	Wait(ctx context.Context) error
}

// Runner starts summarization work for persisted snapshots.
type Runner interface {
	RequestSummary(ctx context.Context, fileID string) (Job, error)
	RequestRecap(ctx context.Context, req RecapRequest) (Job, error)
}
