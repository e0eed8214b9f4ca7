package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"vidsentry/internal/api"
	"vidsentry/internal/detection"
	"vidsentry/internal/logging"
	"vidsentry/internal/persistence"
	"vidsentry/internal/testsupport"
)

// commitVideo records a finished detection for filename directly through the
// persistence layer.
func commitVideo(t *testing.T, env *cliTestEnv, filename string, frames []detection.FrameRecord) {
	t.Helper()
	st := env.openStore(t)
	coord := persistence.New(st, env.cfg.Paths.ArtifactDir, logging.NewNop())
	ctx := context.Background()
	id, err := coord.CreatePlaceholder(ctx, filename)
	if err != nil {
		t.Fatalf("CreatePlaceholder: %v", err)
	}
	if err := coord.Commit(ctx, id, detection.NewArtifact(filename, frames), detection.Summarize(frames)); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func sampleFrames() []detection.FrameRecord {
	return []detection.FrameRecord{
		detection.NewFrameRecord(1, []detection.FrameDetection{
			{BBox: detection.BoundingBox{1, 2, 3, 4}, Confidence: 0.91, ClassID: 2, ClassName: "car"},
			{BBox: detection.BoundingBox{5, 6, 7, 8}, Confidence: 0.8, ClassID: 0, ClassName: "person"},
		}),
		detection.NewFrameRecord(2, nil),
	}
}

func TestListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "No videos recorded")

	out, _, err = runCLI(t, []string{"list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}
	var resp api.VideoListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode list json: %v\n%s", err, out)
	}
	if resp.Items == nil || len(resp.Items) != 0 {
		t.Fatalf("expected empty items array, got %#v", resp.Items)
	}
}

func TestListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	commitVideo(t, env, "cam.mp4", sampleFrames())
	testsupport.MustInsertVideo(t, env.openStore(t), "inflight.mp4")

	out, _, err := runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two rows, got:\n%s", out)
	}
	requireContains(t, out, "cam.mp4\tcompleted\tCar, Person\tcar=1 person=1")
	requireContains(t, out, "inflight.mp4\tpending\tnone\t-\t-")

	out, _, err = runCLI(t, []string{"show", "cam.mp4", "--frames"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, filepath.Join(env.cfg.Paths.ArtifactDir, "cam.json"))
	requireContains(t, out, "2 (1 with objects)")
	requireContains(t, out, "Car, Person")
	requireContains(t, out, "frame 1: car (0.91), person (0.80)")

	out, _, err = runCLI(t, []string{"show", "inflight.mp4"}, env.configPath)
	if err != nil {
		t.Fatalf("show pending: %v", err)
	}
	requireContains(t, out, "Detection has not finished")

	out, _, err = runCLI(t, []string{"show", "cam.mp4", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var detail api.VideoResponse
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("decode show json: %v", err)
	}
	if detail.Video.TotalFrames != 2 || detail.Video.MaxCountPerFrame["car"] != 1 {
		t.Fatalf("unexpected detail: %#v", detail.Video)
	}

	if _, _, err := runCLI(t, []string{"show", "missing.mp4"}, env.configPath); err == nil {
		t.Fatal("expected show of unknown video to fail")
	}
}

func TestRemoveCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	commitVideo(t, env, "cam.mp4", sampleFrames())

	out, _, err := runCLI(t, []string{"remove", "cam.mp4"}, env.configPath)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "Removed cam.mp4")
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.ArtifactDir, "cam.json")); !os.IsNotExist(err) {
		t.Fatalf("expected artifact deleted, stat err=%v", err)
	}

	out, _, err = runCLI(t, []string{"remove", "cam.mp4"}, env.configPath)
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	requireContains(t, out, "No record for cam.mp4")
}

func TestReconcileCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustInsertVideo(t, env.openStore(t), "crashed.mp4")

	out, _, err := runCLI(t, []string{"reconcile"}, env.configPath)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	requireContains(t, out, "Removed unfinished videos (1)")
	requireContains(t, out, "crashed.mp4")

	out, _, err = runCLI(t, []string{"reconcile"}, env.configPath)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	requireContains(t, out, "Nothing to reconcile")
}

func TestReconcileRefusesWhileDaemonRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	lock := flock.New(env.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	_, _, err = runCLI(t, []string{"reconcile"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "daemon is running") {
		t.Fatalf("expected daemon running error, got %v", err)
	}
}

func TestStatusReportsSections(t *testing.T) {
	env := setupCLITestEnv(t)
	commitVideo(t, env, "cam.mp4", sampleFrames())

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[INFO] not running")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "[OK] "+env.cfg.Detector.Endpoint)
	requireNotContains(t, out, "[ERROR]")
	requireContains(t, out, "== Database ==")
	requireContains(t, out, "1 (1 completed, 0 pending)")
}

func TestStatusWithDaemonLockHeld(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Paths.APIBind = ""
	writeTestConfig(t, env.configPath, env.cfg)

	lock := flock.New(env.cfg.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] running")
	requireContains(t, out, "[INFO] disabled")
}

func TestIngestCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	scene := testsupport.NewScene()
	scene.Add("clip.mp4", testsupport.ScriptedVideo{
		Frames: testsupport.RepeatFrames(12, testsupport.Detections("person", 2, 0.9)),
	})
	useScene(t, scene)

	source := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, source, 2048)

	out, _, err := runCLI(t, []string{"ingest", "--skip-stability", source}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "Processed clip.mp4 (12 frames)")
	requireContains(t, out, "Classes: Person")
	requireContains(t, out, filepath.Join(env.cfg.Paths.ArtifactDir, "clip.json"))

	out, _, err = runCLI(t, []string{"ingest", "--skip-stability", source}, env.configPath)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	requireContains(t, out, "already processed")
	if scene.Opens("clip.mp4") != 1 {
		t.Fatalf("expected one decode, got %d", scene.Opens("clip.mp4"))
	}
}

func TestIngestWaitsForStability(t *testing.T) {
	env := setupCLITestEnv(t)
	scene := testsupport.NewScene()
	scene.Add("steady.mkv", testsupport.ScriptedVideo{Frames: testsupport.RepeatFrames(2, nil)})
	useScene(t, scene)

	source := filepath.Join(t.TempDir(), "steady.mkv")
	testsupport.WriteFile(t, source, 512)

	out, _, err := runCLI(t, []string{"ingest", source}, env.configPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "Processed steady.mkv (2 frames)")
	requireContains(t, out, "Classes: none")
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	env := setupCLITestEnv(t)
	source := filepath.Join(t.TempDir(), "notes.txt")
	testsupport.WriteFile(t, source, 16)

	_, _, err := runCLI(t, []string{"ingest", source}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unsupported file extension") {
		t.Fatalf("expected extension error, got %v", err)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, "vidsentry.log")
	if err := os.WriteFile(path, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(out) != "second\nthird" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
