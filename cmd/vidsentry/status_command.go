package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidsentry/internal/api"
	"vidsentry/internal/config"
	"vidsentry/internal/preflight"
	"vidsentry/internal/store"
)

const statusRequestTimeout = 2 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and database status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			writeLines(out, renderSectionHeader("Daemon", colorize)...)
			if daemonRunning(cfg) {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
				remote, err := fetchDaemonStatus(cmd.Context(), cfg)
				switch {
				case err != nil:
					fmt.Fprintln(out, renderStatusLine("API", statusWarn, err.Error(), colorize))
				case remote != nil:
					fmt.Fprintln(out, renderStatusLine("API", statusOK, cfg.Paths.APIBind, colorize))
					writeLines(out,
						renderValueLine("PID", fmt.Sprintf("%d", remote.PID)),
						renderValueLine("Workers", fmt.Sprintf("%d busy of %d", len(remote.Workflow.Active), remote.Workflow.Workers)),
						renderValueLine("Queued", fmt.Sprintf("%d", remote.Workflow.Queued)),
						renderValueLine("Awaiting stability", fmt.Sprintf("%d", remote.WatcherPending)),
						renderValueLine("Processed", fmt.Sprintf("%d (%d duplicate, %d failed)", remote.Workflow.Processed, remote.Workflow.Duplicates, remote.Workflow.Failed)),
					)
					if remote.Workflow.LastError != "" {
						fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, remote.Workflow.LastError, colorize))
					}
				default:
					fmt.Fprintln(out, renderStatusLine("API", statusInfo, "disabled", colorize))
				}
			} else {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
			}
			fmt.Fprintln(out)

			writeLines(out, renderSectionHeader("Dependencies", colorize)...)
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(out)

			writeLines(out, renderSectionHeader("Database", colorize)...)
			st, err := store.Open(cfg)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Database", statusError, err.Error(), colorize))
				return nil
			}
			defer st.Close()
			renderDatabaseHealth(cmd.Context(), out, st, colorize)
			return nil
		},
	}
}

func renderDatabaseHealth(ctx context.Context, out io.Writer, st *store.Store, colorize bool) {
	health, err := st.CheckHealth(ctx)
	switch {
	case err != nil:
		fmt.Fprintln(out, renderStatusLine("Database", statusError, err.Error(), colorize))
		return
	case health.Error != "":
		fmt.Fprintln(out, renderStatusLine("Database", statusError, health.Error, colorize))
	case !health.IntegrityCheck || len(health.MissingTables) > 0:
		detail := "integrity check failed"
		if len(health.MissingTables) > 0 {
			detail = "missing tables: " + strings.Join(health.MissingTables, ", ")
		}
		fmt.Fprintln(out, renderStatusLine("Database", statusError, detail, colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Database", statusOK, health.DBPath, colorize))
	}
	fmt.Fprintln(out, renderValueLine("Schema version", fmt.Sprintf("%d", health.SchemaVersion)))
	fmt.Fprintln(out, renderValueLine("Foreign keys", yesNo(health.ForeignKeys)))

	stats, err := st.Stats(ctx)
	if err != nil {
		fmt.Fprintln(out, renderStatusLine("Videos", statusError, err.Error(), colorize))
		return
	}
	fmt.Fprintln(out, renderValueLine("Videos", fmt.Sprintf("%d (%d completed, %d pending)", stats.Videos, stats.Completed, stats.Pending)))
}

// fetchDaemonStatus queries the running daemon's API. It returns nil without
// error when the API is disabled.
func fetchDaemonStatus(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return nil, fmt.Errorf("invalid api bind %q: %w", bind, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	reqCtx, cancel := context.WithTimeout(ctx, statusRequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+net.JoinHostPort(host, port)+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned %s", resp.Status)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode api status: %w", err)
	}
	return &status, nil
}

func writeLines(out io.Writer, lines ...string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
