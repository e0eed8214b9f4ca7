package persistence_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsentry/internal/detection"
	"vidsentry/internal/logging"
	"vidsentry/internal/persistence"
	"vidsentry/internal/services"
	"vidsentry/internal/store"
	"vidsentry/internal/testsupport"
)

func newCoordinator(t *testing.T) (*persistence.Coordinator, *store.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return persistence.New(st, cfg.Paths.ArtifactDir, logging.NewNop()), st, cfg.Paths.ArtifactDir
}

func sampleArtifact(filename string) (detection.Artifact, detection.Summary) {
	frames := []detection.FrameRecord{
		detection.NewFrameRecord(1, []detection.FrameDetection{{BBox: detection.BoundingBox{1, 2, 3, 4}, Confidence: 0.9, ClassID: 0, ClassName: "person"}}),
		detection.NewFrameRecord(2, nil),
	}
	return detection.NewArtifact(filename, frames), detection.Summarize(frames)
}

func TestArtifactPathUsesStem(t *testing.T) {
	coord, _, dir := newCoordinator(t)
	assert.Equal(t, filepath.Join(dir, "clip.json"), coord.ArtifactPath("clip.mp4"))
	assert.Equal(t, filepath.Join(dir, "my.holiday.json"), coord.ArtifactPath("/videos/my.holiday.MKV"))
}

func TestCreatePlaceholderDedupes(t *testing.T) {
	coord, _, _ := newCoordinator(t)
	ctx := context.Background()

	id, err := coord.CreatePlaceholder(ctx, "a.mp4")
	require.NoError(t, err)
	assert.NotZero(t, id)

	exists, err := coord.ExistsByFilename(ctx, "a.mp4")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = coord.CreatePlaceholder(ctx, "a.mp4")
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
}

func TestCommitWritesArtifactAndSummary(t *testing.T) {
	coord, st, dir := newCoordinator(t)
	ctx := context.Background()

	id, err := coord.CreatePlaceholder(ctx, "cam.mp4")
	require.NoError(t, err)
	artifact, summary := sampleArtifact("cam.mp4")
	require.NoError(t, coord.Commit(ctx, id, artifact, summary))

	onDisk, err := coord.ReadArtifact("cam.mp4")
	require.NoError(t, err)
	assert.Equal(t, artifact, onDisk)

	record, err := st.GetDetection(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, []string{"person"}, record.Summary.ClassesDetected)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not linger")
	assert.Equal(t, "cam.json", entries[0].Name())
}

func TestCommitInvalidArtifactRollsBack(t *testing.T) {
	coord, st, dir := newCoordinator(t)
	ctx := context.Background()

	id, err := coord.CreatePlaceholder(ctx, "broken.mp4")
	require.NoError(t, err)
	artifact, summary := sampleArtifact("broken.mp4")
	artifact.TotalFrames = 5

	err = coord.Commit(ctx, id, artifact, summary)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrValidation))

	video, err := st.GetVideo(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, video, "claim must be rolled back")
	_, statErr := os.Stat(filepath.Join(dir, "broken.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCommitUnwritableArtifactDirRollsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	blocker := filepath.Join(testsupport.BaseDir(cfg), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	coord := persistence.New(st, blocker, logging.NewNop())
	ctx := context.Background()

	id, err := coord.CreatePlaceholder(ctx, "cam.mp4")
	require.NoError(t, err)
	artifact, summary := sampleArtifact("cam.mp4")
	require.Error(t, coord.Commit(ctx, id, artifact, summary))

	exists, err := coord.ExistsByFilename(ctx, "cam.mp4")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRollbackIsIdempotent(t *testing.T) {
	coord, _, _ := newCoordinator(t)
	ctx := context.Background()

	id, err := coord.CreatePlaceholder(ctx, "r.mp4")
	require.NoError(t, err)
	require.NoError(t, coord.Rollback(ctx, id))
	require.NoError(t, coord.Rollback(ctx, id))

	exists, err := coord.ExistsByFilename(ctx, "r.mp4")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRollbackDeletesClaimWhenArtifactUnreadable(t *testing.T) {
	coord, _, dir := newCoordinator(t)
	ctx := context.Background()

	id, err := coord.CreatePlaceholder(ctx, "stuck.mp4")
	require.NoError(t, err)
	// A directory at the artifact path cannot be read or removed as a file.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "stuck.json", "inner"), 0o755))

	err = coord.Rollback(ctx, id)
	require.Error(t, err)

	exists, err := coord.ExistsByFilename(ctx, "stuck.mp4")
	require.NoError(t, err)
	assert.False(t, exists, "claim must be removed even when the artifact is not")
}

func TestDeleteByFilename(t *testing.T) {
	coord, st, dir := newCoordinator(t)
	ctx := context.Background()

	deleted, err := coord.DeleteByFilename(ctx, "never.mp4")
	require.NoError(t, err)
	assert.False(t, deleted)

	id, err := coord.CreatePlaceholder(ctx, "cam.mp4")
	require.NoError(t, err)
	artifact, summary := sampleArtifact("cam.mp4")
	require.NoError(t, coord.Commit(ctx, id, artifact, summary))

	deleted, err = coord.DeleteByFilename(ctx, "cam.mp4")
	require.NoError(t, err)
	assert.True(t, deleted)

	record, err := st.GetDetection(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, record)
	_, statErr := os.Stat(filepath.Join(dir, "cam.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteKeepsArtifactOwnedBySibling(t *testing.T) {
	coord, _, dir := newCoordinator(t)
	ctx := context.Background()

	mkvID, err := coord.CreatePlaceholder(ctx, "cam.mkv")
	require.NoError(t, err)
	artifact, summary := sampleArtifact("cam.mkv")
	require.NoError(t, coord.Commit(ctx, mkvID, artifact, summary))

	_, err = coord.CreatePlaceholder(ctx, "cam.mp4")
	require.NoError(t, err)
	deleted, err := coord.DeleteByFilename(ctx, "cam.mp4")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, statErr := os.Stat(filepath.Join(dir, "cam.json"))
	assert.NoError(t, statErr, "artifact of cam.mkv must survive")
}

func TestReconcileRepairsState(t *testing.T) {
	coord, st, dir := newCoordinator(t)
	ctx := context.Background()

	// Completed video whose artifact went missing.
	doneID, err := coord.CreatePlaceholder(ctx, "done.mp4")
	require.NoError(t, err)
	artifact, summary := sampleArtifact("done.mp4")
	require.NoError(t, coord.Commit(ctx, doneID, artifact, summary))
	require.NoError(t, os.Remove(filepath.Join(dir, "done.json")))

	// Placeholder from a crashed run.
	_, err = coord.CreatePlaceholder(ctx, "crashed.mp4")
	require.NoError(t, err)

	// Artifact nobody claims, a stale temp file, and an unrelated file.
	orphan, _ := sampleArtifact("orphan.mp4")
	data, err := orphan.Encode()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orphan.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".x.json.123.tmp"), []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("not an artifact"), 0o644))

	report, err := coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Changed())
	assert.Equal(t, []string{"crashed.mp4"}, report.RemovedPlaceholders)
	assert.Equal(t, []string{"orphan.json"}, report.RemovedArtifacts)
	assert.Equal(t, []string{".x.json.123.tmp"}, report.RemovedTempFiles)
	assert.Equal(t, []string{"done.mp4"}, report.RestoredArtifacts)

	restored, err := coord.ReadArtifact("done.mp4")
	require.NoError(t, err)
	assert.Equal(t, artifact, restored)

	exists, err := st.VideoExists(ctx, "crashed.mp4")
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = os.Stat(filepath.Join(dir, "notes.json"))
	assert.NoError(t, err)

	again, err := coord.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}
