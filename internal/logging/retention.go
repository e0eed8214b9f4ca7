package logging

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vidsentry/internal/config"
)

// PruneOptions selects the log files PruneLogs may delete.
type PruneOptions struct {
	Dir string
	// Pattern matches base names; empty matches every regular file.
	Pattern string
	// MaxAge of zero disables pruning.
	MaxAge time.Duration
	// Keep lists paths that are never removed, such as the active log.
	Keep []string
	Now  func() time.Time
}

// PruneOptionsFromConfig targets rotated daemon logs older than
// logging.retention_days, keeping the file the daemon writes to.
func PruneOptionsFromConfig(cfg *config.Config) PruneOptions {
	dir := strings.TrimSpace(cfg.Paths.LogDir)
	opts := PruneOptions{Dir: dir, Pattern: "*.log"}
	if cfg.Logging.RetentionDays > 0 {
		opts.MaxAge = time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour
	}
	if dir != "" {
		opts.Keep = []string{LogFilePath(dir)}
	}
	return opts
}

// PruneLogs removes expired files from opts.Dir and returns the removed paths
// in name order. A missing directory prunes nothing. Files that cannot be
// removed are logged and skipped.
func PruneLogs(logger *slog.Logger, opts PruneOptions) ([]string, error) {
	if opts.MaxAge <= 0 || strings.TrimSpace(opts.Dir) == "" {
		return nil, nil
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	cutoff := now().Add(-opts.MaxAge)

	keep := make(map[string]struct{}, len(opts.Keep))
	for _, path := range opts.Keep {
		if abs, ok := absPath(path); ok {
			keep[abs] = struct{}{}
		}
	}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var removed []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !matchesPattern(opts.Pattern, entry.Name()) {
			continue
		}
		path, _ := absPath(filepath.Join(opts.Dir, entry.Name()))
		if _, skip := keep[path]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "expired log not removed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of paths.log_dir"),
				String(FieldImpact, "old log file stays on disk"),
			)
			continue
		}
		removed = append(removed, path)
	}
	if len(removed) > 0 && logger != nil {
		logger.Info("expired logs pruned",
			Int("count", len(removed)),
			String("dir", opts.Dir),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed, nil
}

func matchesPattern(pattern, name string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return true
	}
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}

func absPath(path string) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path), true
	}
	return abs, true
}
