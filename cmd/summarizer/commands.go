package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	configloader "github.com/foxseedlab/gijiroku/external/config"
	generatorimpl "github.com/foxseedlab/gijiroku/external/generator"
	objectstoreimpl "github.com/foxseedlab/gijiroku/external/objectstore"
	"github.com/foxseedlab/gijiroku/internal/config"
	"github.com/foxseedlab/gijiroku/internal/snapshot"
	"github.com/foxseedlab/gijiroku/internal/summary"
	"github.com/spf13/cobra"
)

type summaryRunner interface {
	Final(ctx context.Context, fileID string) (string, error)
	Recap(ctx context.Context, in summary.RecapInput) (string, error)
}

// newService is replaced in tests.
var newService = func(ctx context.Context) (summaryRunner, error) {
	cfg, err := configloader.LoadSummarizer()
	if err != nil {
		return nil, err
	}
	initLogger(cfg)

	objects, err := objectstoreimpl.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("create object store: %w", err)
	}
	gen, err := generatorimpl.New(ctx, cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	return summary.NewService(snapshot.New(objects), gen), nil
}

func initLogger(cfg *config.SummarizerConfig) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "summarizer",
		Short:         "Generate meeting recaps and final minutes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFinalCmd(), newRecapCmd())
	return root
}

func newFinalCmd() *cobra.Command {
	var fileIDs []string
	cmd := &cobra.Command{
		Use:   "final",
		Short: "Write final minutes for finished meetings",
		Long: `Read meeting_logs/<file-id>.json and write Summarize/<file-id>_final.json.

Examples:
  summarizer final --file-id weekly_20250301_100000
  summarizer final --file-id a --file-id b`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(fileIDs) == 0 {
				return errors.New("at least one --file-id is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := newService(ctx)
			if err != nil {
				return err
			}
			var failed []string
			for _, id := range fileIDs {
				key, err := svc.Final(ctx, id)
				if err != nil {
					slog.Error("final summary failed", "file_id", id, "error", err)
					failed = append(failed, id)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			if len(failed) > 0 {
				return fmt.Errorf("final summary failed for %v", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&fileIDs, "file-id", nil, "meeting file id (repeatable)")
	return cmd
}

func newRecapCmd() *cobra.Command {
	var in summary.RecapInput
	cmd := &cobra.Command{
		Use:   "recap",
		Short: "Write a catch-up recap for a meeting in progress",
		Long: `Read <input-folder>/<file-id>.json and write <output-folder>/<base>_recap.json,
where a trailing _request_recap on the file id is dropped.

Examples:
  summarizer recap --file-id weekly_20250301_100000_3f2a_request_recap
  summarizer recap --file-id weekly_20250301_100000 --end-id 120 --input-folder meeting_logs`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.FileID == "" {
				return errors.New("--file-id is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := newService(ctx)
			if err != nil {
				return err
			}
			key, err := svc.Recap(ctx, in)
			if err != nil {
				return fmt.Errorf("recap %s: %w", in.FileID, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.FileID, "file-id", "", "recap input file id")
	cmd.Flags().Int64Var(&in.EndUtteranceID, "end-id", 0, "last utterance id to include")
	cmd.Flags().StringVar(&in.InputFolder, "input-folder", summary.RecapInputFolder, "input folder")
	cmd.Flags().StringVar(&in.OutputFolder, "output-folder", summary.RecapOutputFolder, "output folder")
	return cmd
}
