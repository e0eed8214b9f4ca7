package persistence

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"vidsentry/internal/detection"
	"vidsentry/internal/fileutil"
	"vidsentry/internal/logging"
	"vidsentry/internal/services"
	"vidsentry/internal/store"
)

// ErrDuplicate reports that a filename is already claimed.
var ErrDuplicate = store.ErrDuplicate

// Coordinator owns video rows, summary rows, and artifact files.
type Coordinator struct {
	store       *store.Store
	artifactDir string
	logger      *slog.Logger
}

// New constructs a coordinator writing artifacts under artifactDir.
func New(st *store.Store, artifactDir string, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:       st,
		artifactDir: artifactDir,
		logger:      logging.NewComponentLogger(logger, "persistence"),
	}
}

// ArtifactDir returns the directory artifacts are written to.
func (c *Coordinator) ArtifactDir() string {
	return c.artifactDir
}

// ArtifactPath derives the artifact location from the video's base name
// without its extension.
func (c *Coordinator) ArtifactPath(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(c.artifactDir, stem+".json")
}

// ExistsByFilename reports whether filename has been claimed.
func (c *Coordinator) ExistsByFilename(ctx context.Context, filename string) (bool, error) {
	exists, err := c.store.VideoExists(ctx, filename)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "persistence", "exists", filename, err)
	}
	return exists, nil
}

// CreatePlaceholder claims filename and returns the new video id. A claim that
// loses a race returns an error matching ErrDuplicate.
func (c *Coordinator) CreatePlaceholder(ctx context.Context, filename string) (int64, error) {
	video, err := c.store.InsertVideo(ctx, filename)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, err
		}
		return 0, services.Wrap(services.ErrTransient, "persistence", "claim", filename, err)
	}
	return video.ID, nil
}

// Rollback removes the claim for videoID along with any artifact it owns.
// Rolling back an unknown id is a no-op.
func (c *Coordinator) Rollback(ctx context.Context, videoID int64) error {
	ctx = context.WithoutCancel(ctx)
	video, err := c.store.GetVideo(ctx, videoID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "persistence", "rollback", "lookup video", err)
	}
	if video == nil {
		return nil
	}
	// The row goes even when the artifact cannot be cleared; reconcile
	// removes artifacts left without an owner.
	_, artifactErr := c.removeOwnedArtifact(video.Filename)
	if _, err := c.store.DeleteVideo(ctx, videoID); err != nil {
		return services.Wrap(services.ErrTransient, "persistence", "rollback", "delete video", errors.Join(err, artifactErr))
	}
	c.logger.Debug("claim rolled back",
		logging.VideoID(videoID),
		logging.Video(video.Filename),
	)
	if artifactErr != nil {
		return services.Wrap(services.ErrTransient, "persistence", "rollback", "remove artifact", artifactErr)
	}
	return nil
}

// Commit records artifact and summary for videoID as one unit. On failure the
// video claim is rolled back and no artifact or summary remains.
func (c *Coordinator) Commit(ctx context.Context, videoID int64, artifact detection.Artifact, summary detection.Summary) (err error) {
	defer func() {
		if err == nil {
			return
		}
		if rbErr := c.Rollback(ctx, videoID); rbErr != nil {
			logging.ErrorWithContext(c.logger, "rollback after failed commit failed", "rollback_failed",
				logging.VideoID(videoID),
				logging.Error(rbErr),
				logging.String(logging.FieldErrorHint, "run 'vidsentry reconcile' to clear the placeholder"),
			)
		}
	}()

	if err := artifact.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "persistence", "commit", "invalid artifact", err)
	}
	data, err := artifact.Encode()
	if err != nil {
		return services.Wrap(services.ErrValidation, "persistence", "commit", "encode artifact", err)
	}

	final := c.ArtifactPath(artifact.VideoFilename)
	if err := os.MkdirAll(c.artifactDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "persistence", "commit", "create artifact dir", err)
	}
	tmp, err := fileutil.WriteTemp(final, data)
	if err != nil {
		return services.Wrap(services.ErrTransient, "persistence", "commit", "write artifact", err)
	}
	promoted := false
	defer func() {
		if !promoted {
			_, _ = fileutil.RemoveIfExists(tmp)
		}
	}()

	if _, err := c.store.InsertDetection(ctx, videoID, data, summary, func() error {
		if err := fileutil.Promote(tmp, final); err != nil {
			return err
		}
		promoted = true
		return nil
	}); err != nil {
		return services.Wrap(services.ErrTransient, "persistence", "commit", "record summary", err)
	}

	c.logger.Info("detection committed",
		logging.VideoID(videoID),
		logging.Video(artifact.VideoFilename),
		logging.String("artifact", final),
		logging.String(logging.FieldEventType, "detection_committed"),
	)
	return nil
}

// DeleteByFilename removes the artifact and the claim for filename. It
// reports false when filename was never recorded.
func (c *Coordinator) DeleteByFilename(ctx context.Context, filename string) (bool, error) {
	video, err := c.store.FindVideo(ctx, filename)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "persistence", "delete", filename, err)
	}
	if video == nil {
		return false, nil
	}
	if _, err := c.removeOwnedArtifact(filename); err != nil {
		return false, services.Wrap(services.ErrTransient, "persistence", "delete", "remove artifact", err)
	}
	deleted, err := c.store.DeleteVideo(ctx, video.ID)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "persistence", "delete", filename, err)
	}
	return deleted, nil
}

// ReadArtifact loads the on-disk artifact for filename.
func (c *Coordinator) ReadArtifact(filename string) (detection.Artifact, error) {
	data, err := os.ReadFile(c.ArtifactPath(filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return detection.Artifact{}, services.Wrap(services.ErrNotFound, "persistence", "read artifact", filename, err)
		}
		return detection.Artifact{}, services.Wrap(services.ErrTransient, "persistence", "read artifact", filename, err)
	}
	return detection.DecodeArtifact(data)
}

// removeOwnedArtifact deletes the artifact at filename's path unless it
// belongs to a different video sharing the same base name.
func (c *Coordinator) removeOwnedArtifact(filename string) (bool, error) {
	path := c.ArtifactPath(filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if artifactAbsent(err) {
			return false, nil
		}
		return false, err
	}
	if artifact, decodeErr := detection.DecodeArtifact(data); decodeErr == nil &&
		artifact.VideoFilename != "" && artifact.VideoFilename != filename {
		c.logger.Debug("artifact owned by another video; keeping",
			logging.String("path", path),
			logging.String("owner", artifact.VideoFilename),
		)
		return false, nil
	}
	return fileutil.RemoveIfExists(path)
}

// artifactAbsent reports whether a read failed because no artifact can exist
// at the path, including when the artifact directory is not a directory.
func artifactAbsent(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
