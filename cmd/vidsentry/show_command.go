package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"vidsentry/internal/api"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOut    bool
		showFrames bool
	)

	cmd := &cobra.Command{
		Use:   "show <filename>",
		Short: "Show the detection summary for a video",
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
			detail, err := api.NewVideoService(st, coord).Describe(cmd.Context(), filename)
			if err != nil {
				return fmt.Errorf("describe %s: %w", filename, err)
			}
			if detail == nil {
				return fmt.Errorf("no record for %s", filename)
			}
			if jsonOut {
				return writeJSON(cmd, api.VideoResponse{Video: *detail})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-12s %s\n", "Video:", detail.Filename)
			fmt.Fprintf(out, "%-12s %s\n", "Status:", detail.Status)
			fmt.Fprintf(out, "%-12s %s\n", "Claimed:", formatTimestamp(detail.CreatedAt))
			if detail.Status != api.VideoStatusCompleted {
				fmt.Fprintln(out, "Detection has not finished for this video")
				return nil
			}
			fmt.Fprintf(out, "%-12s %s\n", "Detected:", formatTimestamp(detail.DetectedAt))
			fmt.Fprintf(out, "%-12s %s\n", "Artifact:", detail.ArtifactPath)
			fmt.Fprintf(out, "%-12s %d (%d with objects)\n", "Frames:", detail.TotalFrames, detail.FramesWithObjects)
			fmt.Fprintf(out, "%-12s %s\n", "Classes:", classList(detail.ClassesDetected))

			if len(detail.MaxCountPerFrame) > 0 {
				classes := make([]string, 0, len(detail.MaxCountPerFrame))
				for class := range detail.MaxCountPerFrame {
					classes = append(classes, class)
				}
				sort.Strings(classes)
				rows := make([][]string, 0, len(classes))
				for _, class := range classes {
					rows = append(rows, []string{displayClass(class), fmt.Sprintf("%d", detail.MaxCountPerFrame[class])})
				}
				fmt.Fprintln(out)
				if isTerminal(out) {
					fmt.Fprintln(out, renderTable([]string{"Class", "Max per frame"}, rows, []columnAlignment{alignLeft, alignRight}))
				} else {
					fmt.Fprint(out, renderPlain(rows))
				}
			}

			if !showFrames {
				return nil
			}
			artifact, err := coord.ReadArtifact(filename)
			if err != nil {
				return fmt.Errorf("read artifact: %w", err)
			}
			fmt.Fprintln(out)
			for _, frame := range artifact.Frames {
				if !frame.ObjectsDetected {
					continue
				}
				parts := make([]string, len(frame.Detections))
				for i, det := range frame.Detections {
					parts[i] = fmt.Sprintf("%s (%.2f)", det.ClassName, det.Confidence)
				}
				fmt.Fprintf(out, "frame %d: %s\n", frame.Frame, strings.Join(parts, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	cmd.Flags().BoolVar(&showFrames, "frames", false, "List every frame that kept detections")
	return cmd
}
