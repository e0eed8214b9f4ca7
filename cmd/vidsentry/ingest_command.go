package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vidsentry/internal/ingest"
	"vidsentry/internal/stability"
	"vidsentry/internal/watcher"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var skipStability bool

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Run detection for a single video and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat source file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("source path %q is a directory", path)
			}
			if !watcher.Eligible(path) {
				return fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := commandLogger(cfg)
			_, st, coord, err := ctx.openCoordinator(logger)
			if err != nil {
				return err
			}
			defer st.Close()

			runCtx := cmd.Context()
			if !skipStability {
				result, err := stability.AwaitStable(runCtx, path, stability.Options{
					PollInterval:       cfg.PollInterval(),
					RequiredEqualReads: cfg.Stability.RequiredEqualReads,
					Logger:             logger,
				})
				if err != nil {
					return fmt.Errorf("wait for stable size: %w", err)
				}
				if result == stability.Vanished {
					return fmt.Errorf("%s disappeared before it finished copying", path)
				}
			}

			pipeline := newPipeline(cfg, logger)
			orchestrator := ingest.New(coord, pipeline.Decoder, pipeline.Detector, pipeline.Notifier, ingest.OptionsFromConfig(cfg), logger)
			outcome, err := orchestrator.Ingest(runCtx, path)
			if err != nil {
				return err
			}
			return printOutcome(cmd, outcome, coord.ArtifactPath(outcome.Filename))
		},
	}

	cmd.Flags().BoolVar(&skipStability, "skip-stability", false, "Process immediately without waiting for the file size to settle")
	return cmd
}

func printOutcome(cmd *cobra.Command, outcome ingest.Outcome, artifactPath string) error {
	out := cmd.OutOrStdout()
	switch outcome.State {
	case ingest.Persisted:
		fmt.Fprintf(out, "Processed %s (%d frames) in %s\n", outcome.Filename, outcome.TotalFrames, outcome.Duration.Round(time.Millisecond))
		fmt.Fprintf(out, "Classes: %s\n", classList(outcome.Summary.ClassesDetected))
		fmt.Fprintf(out, "Artifact: %s\n", artifactPath)
		return nil
	case ingest.Duplicate:
		fmt.Fprintf(out, "%s was already processed; remove it first to re-run detection\n", outcome.Filename)
		return nil
	default:
		if outcome.Err != nil {
			return fmt.Errorf("detection failed for %s: %w", outcome.Filename, outcome.Err)
		}
		return errors.New("detection failed for " + outcome.Filename)
	}
}
