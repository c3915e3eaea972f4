package summarizer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/foxseedlab/gijiroku/internal/summarizer"
)

type commandFactory func(ctx context.Context, name string, args ...string) *exec.Cmd

// ProcessRunner runs the summarizer as a detached child process that
// outlives the request context. Exit status 0 is success.
type ProcessRunner struct {
	command    []string
	newCommand commandFactory
}

func NewProcessRunner(command string) *ProcessRunner {
	return &ProcessRunner{
		command:    strings.Fields(command),
		newCommand: exec.CommandContext,
	}
}

func (r *ProcessRunner) RequestSummary(ctx context.Context, fileID string) (summarizer.Job, error) {
	return r.start(ctx, "final", "--file-id", fileID)
}

func (r *ProcessRunner) RequestRecap(ctx context.Context, req summarizer.RecapRequest) (summarizer.Job, error) {
	args := []string{"recap", "--file-id", req.FileID}
	if req.InputFolder != "" {
		args = append(args, "--input-folder", req.InputFolder)
	}
	if req.OutputFolder != "" {
		args = append(args, "--output-folder", req.OutputFolder)
	}
	if req.EndID > 0 {
		args = append(args, "--end-id", strconv.FormatInt(req.EndID, 10))
	}
	return r.start(ctx, args...)
}

func (r *ProcessRunner) start(ctx context.Context, args ...string) (summarizer.Job, error) {
	if len(r.command) == 0 {
		return nil, fmt.Errorf("summarizer command is empty")
	}
	argv := append(append([]string{}, r.command[1:]...), args...)
	cmd := r.newCommand(context.WithoutCancel(ctx), r.command[0], argv...)
	job := &processJob{cmd: cmd, done: make(chan struct{})}
	cmd.Stdout = &job.output
	cmd.Stderr = &job.output
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start summarizer: %w", err)
	}
	slog.Info("summarizer process started", "pid", cmd.Process.Pid, "args", args)
	go job.reap()
	return job, nil
}

type processJob struct {
	cmd    *exec.Cmd
	output bytes.Buffer
	done   chan struct{}
	err    error
}

func (j *processJob) reap() {
	defer close(j.done)
	if err := j.cmd.Wait(); err != nil {
		j.err = fmt.Errorf("summarizer exited with error: %w: %s", err, lastLine(j.output.String()))
		return
	}
	slog.Info("summarizer process finished", "pid", j.cmd.Process.Pid)
}

// Wait returns when the process exits or ctx is done. Cancelling ctx does not
// kill the process.
func (j *processJob) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.done:
		return j.err
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

var _ summarizer.Runner = (*ProcessRunner)(nil)
