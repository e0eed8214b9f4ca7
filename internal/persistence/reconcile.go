package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vidsentry/internal/detection"
	"vidsentry/internal/fileutil"
	"vidsentry/internal/logging"
)

// ReconcileReport lists what a reconciliation pass changed.
type ReconcileReport struct {
	RemovedPlaceholders []string
	RemovedArtifacts    []string
	RemovedTempFiles    []string
	RestoredArtifacts   []string
}

// Changed reports whether the pass touched anything.
func (r ReconcileReport) Changed() bool {
	return len(r.RemovedPlaceholders)+len(r.RemovedArtifacts)+len(r.RemovedTempFiles)+len(r.RestoredArtifacts) > 0
}

// Reconcile repairs state left behind by an interrupted run. It must not run
// while ingestion is in flight: in-flight claims look like orphaned
// placeholders.
func (c *Coordinator) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	orphans, err := c.store.VideosWithoutDetection(ctx)
	if err != nil {
		return report, fmt.Errorf("reconcile: %w", err)
	}
	for _, video := range orphans {
		if err := c.Rollback(ctx, video.ID); err != nil {
			return report, fmt.Errorf("reconcile placeholder %s: %w", video.Filename, err)
		}
		report.RemovedPlaceholders = append(report.RemovedPlaceholders, video.Filename)
	}

	listings, err := c.store.ListVideos(ctx)
	if err != nil {
		return report, fmt.Errorf("reconcile: %w", err)
	}
	known := make(map[string]int64, len(listings))
	for _, listing := range listings {
		known[listing.Filename] = listing.ID
	}

	entries, err := os.ReadDir(c.artifactDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return report, fmt.Errorf("reconcile: read artifact dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(c.artifactDir, name)
		switch {
		case strings.HasSuffix(name, fileutil.TempSuffix):
			if _, err := fileutil.RemoveIfExists(path); err != nil {
				return report, fmt.Errorf("reconcile: remove %s: %w", name, err)
			}
			report.RemovedTempFiles = append(report.RemovedTempFiles, name)
		case strings.EqualFold(filepath.Ext(name), ".json"):
			owner, ok := c.artifactOwner(path)
			if !ok {
				continue
			}
			if _, claimed := known[owner]; claimed {
				continue
			}
			if _, err := fileutil.RemoveIfExists(path); err != nil {
				return report, fmt.Errorf("reconcile: remove %s: %w", name, err)
			}
			report.RemovedArtifacts = append(report.RemovedArtifacts, name)
		}
	}

	for _, listing := range listings {
		if !listing.HasDetection {
			continue
		}
		restored, err := c.restoreArtifact(ctx, listing.ID, listing.Filename)
		if err != nil {
			return report, fmt.Errorf("reconcile: restore %s: %w", listing.Filename, err)
		}
		if restored {
			report.RestoredArtifacts = append(report.RestoredArtifacts, listing.Filename)
		}
	}

	if report.Changed() {
		c.logger.Info("reconciliation repaired state",
			logging.Int("placeholders_removed", len(report.RemovedPlaceholders)),
			logging.Int("artifacts_removed", len(report.RemovedArtifacts)),
			logging.Int("temp_files_removed", len(report.RemovedTempFiles)),
			logging.Int("artifacts_restored", len(report.RestoredArtifacts)),
			logging.String(logging.FieldEventType, "reconcile_repaired"),
		)
	}
	return report, nil
}

func (c *Coordinator) artifactOwner(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	artifact, err := detection.DecodeArtifact(data)
	if err != nil || strings.TrimSpace(artifact.VideoFilename) == "" {
		logging.WarnWithContext(c.logger, "unrecognized file in artifact dir; leaving in place", "reconcile_unknown_file",
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "remove the file manually if it is not needed"),
			logging.String(logging.FieldImpact, "file is ignored by reconciliation"),
		)
		return "", false
	}
	return artifact.VideoFilename, true
}

func (c *Coordinator) restoreArtifact(ctx context.Context, videoID int64, filename string) (bool, error) {
	path := c.ArtifactPath(filename)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	record, err := c.store.GetDetection(ctx, videoID)
	if err != nil || record == nil {
		return false, err
	}
	artifact, err := detection.DecodeArtifact(record.DetectionJSON)
	if err != nil {
		return false, err
	}
	data, err := artifact.Encode()
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(c.artifactDir, 0o755); err != nil {
		return false, err
	}
	tmp, err := fileutil.WriteTemp(path, data)
	if err != nil {
		return false, err
	}
	if err := fileutil.Promote(tmp, path); err != nil {
		_, _ = fileutil.RemoveIfExists(tmp)
		return false, err
	}
	return true, nil
}
