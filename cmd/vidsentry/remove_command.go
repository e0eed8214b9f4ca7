package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <filename>",
		Short: "Delete the stored record and artifact for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			_, st, coord, err := ctx.openCoordinator(commandLogger(cfg))
			if err != nil {
				return err
			}
			defer st.Close()

			filename := filepath.Base(args[0])
			removed, err := coord.DeleteByFilename(cmd.Context(), filename)
			if err != nil {
				return fmt.Errorf("remove %s: %w", filename, err)
			}
			out := cmd.OutOrStdout()
			if !removed {
				fmt.Fprintf(out, "No record for %s\n", filename)
				return nil
			}
			fmt.Fprintf(out, "Removed %s\n", filename)
			return nil
		},
	}
}
