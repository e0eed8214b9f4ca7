package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove leftovers of interrupted runs and restore missing artifacts",
		Long: "Deletes claimed videos that never finished, artifacts no video owns, and stale temp files,\n" +
			"then rewrites missing artifacts from their stored rows. Refuses while the daemon is running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := acquireDaemonLock(cfg)
			if err != nil {
				if errors.Is(err, errDaemonRunning) {
					return fmt.Errorf("%w; it reconciles on start, or stop it first", errDaemonRunning)
				}
				return err
			}
			defer lock.Unlock()

			_, st, coord, err := ctx.openCoordinator(commandLogger(cfg))
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := coord.Reconcile(cmd.Context())
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			out := cmd.OutOrStdout()
			if !report.Changed() {
				fmt.Fprintln(out, "Nothing to reconcile")
				return nil
			}
			printNames := func(label string, names []string) {
				if len(names) == 0 {
					return
				}
				fmt.Fprintf(out, "%s (%d):\n", label, len(names))
				for _, name := range names {
					fmt.Fprintf(out, "  %s\n", name)
				}
			}
			printNames("Removed unfinished videos", report.RemovedPlaceholders)
			printNames("Removed orphaned artifacts", report.RemovedArtifacts)
			printNames("Removed temp files", report.RemovedTempFiles)
			printNames("Restored artifacts", report.RestoredArtifacts)
			return nil
		},
	}
}
