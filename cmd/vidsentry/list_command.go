package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidsentry/internal/api"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed and in-flight videos",
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

			videos, err := api.NewVideoService(st, coord).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list videos: %w", err)
			}
			if jsonOut {
				if videos == nil {
					videos = []api.Video{}
				}
				return writeJSON(cmd, api.VideoListResponse{Items: videos})
			}

			out := cmd.OutOrStdout()
			if len(videos) == 0 {
				fmt.Fprintln(out, "No videos recorded")
				return nil
			}
			rows := make([][]string, 0, len(videos))
			for _, v := range videos {
				rows = append(rows, []string{
					fmt.Sprintf("%d", v.ID),
					v.Filename,
					v.Status,
					classList(v.ClassesDetected),
					maxCountList(v.MaxCountPerFrame),
					formatTimestamp(v.DetectedAt),
				})
			}
			if !isTerminal(out) {
				fmt.Fprint(out, renderPlain(rows))
				return nil
			}
			headers := []string{"ID", "Filename", "Status", "Classes", "Max per frame", "Detected"}
			fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}
