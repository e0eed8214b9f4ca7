package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vidsentry/internal/api"
	"vidsentry/internal/config"
	"vidsentry/internal/deps"
	"vidsentry/internal/ingest"
	"vidsentry/internal/logging"
	"vidsentry/internal/notifications"
	"vidsentry/internal/persistence"
	"vidsentry/internal/preflight"
	"vidsentry/internal/stability"
	"vidsentry/internal/store"
	"vidsentry/internal/watcher"
	"vidsentry/internal/workflow"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *store.Store
	coord        *persistence.Coordinator
	orchestrator *ingest.Orchestrator
	workflow     *workflow.Manager
	notifier     notifications.Service

	lockPath string
	lock     *flock.Flock

	// lifecycle serializes Start and Stop; state guards the fields Status reads.
	lifecycle sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	state     sync.RWMutex
	watcher   *watcher.Watcher
	api       *apiServer
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	Workflow       workflow.StatusSummary
	Store          store.Stats
	StoreError     string
	WatcherPending int
	DatabasePath   string
	LockFilePath   string
	WatchDir       string
	ArtifactDir    string
	Dependencies   []deps.Status
}

// New constructs a daemon with initialized dependencies. The store is owned by
// the daemon from here on and closed by Close.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, pipeline Pipeline) (*Daemon, error) {
	if cfg == nil || st == nil || pipeline.Decoder == nil || pipeline.Detector == nil {
		return nil, errors.New("daemon requires config, store, decoder, and detector")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := pipeline.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}

	coord := persistence.New(st, cfg.Paths.ArtifactDir, logger)
	orchestrator := ingest.New(coord, pipeline.Decoder, pipeline.Detector, notifier, ingest.OptionsFromConfig(cfg), logger)
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        st,
		coord:        coord,
		orchestrator: orchestrator,
		workflow:     workflow.NewManager(cfg, orchestrator, logger),
		notifier:     notifier,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, reconciles leftovers from earlier runs, and
// launches the watcher, the worker pool, and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vidsentry daemon instance is already running")
	}

	d.runPreflight(ctx)
	d.cleanupLogs()

	if d.cfg.Workflow.ReconcileOnStart {
		if err := d.reconcile(ctx); err != nil {
			d.unlock()
			return err
		}
	}

	w, err := watcher.New(watcher.Options{
		Dir: d.cfg.Paths.WatchDir,
		Stability: stability.Options{
			PollInterval:       d.cfg.PollInterval(),
			RequiredEqualReads: d.cfg.Stability.RequiredEqualReads,
		},
		Buffer: d.cfg.Workflow.QueueSize,
		Logger: d.logger,
	})
	if err != nil {
		d.unlock()
		return fmt.Errorf("create watcher: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	srv := newAPIServer(d.cfg, d, d.logger)
	if err := srv.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		d.unlock()
		return err
	}

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		if err := w.Run(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "directory watch stopped", "watcher_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the watch directory still exists and inotify limits are not exhausted"),
				logging.String(logging.FieldImpact, "new files are not picked up until restart"),
			)
		}
	}()
	go func() {
		defer d.wg.Done()
		d.workflow.Consume(runCtx, w.Events())
	}()

	d.cancel = cancel
	d.state.Lock()
	d.watcher = w
	d.api = srv
	d.startedAt = time.Now()
	d.state.Unlock()
	d.running.Store(true)
	d.logger.Info("vidsentry daemon started",
		logging.String("watch_dir", d.cfg.Paths.WatchDir),
		logging.String("artifact_dir", d.cfg.Paths.ArtifactDir),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. In-flight
// videos are cancelled and rolled back.
func (d *Daemon) Stop() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.workflow.Stop()

	d.state.Lock()
	srv := d.api
	d.api = nil
	d.watcher = nil
	d.state.Unlock()
	srv.stop()

	d.unlock()
	d.running.Store(false)
	d.logger.Info("vidsentry daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Remove deletes the record and artifact for filename. While the daemon runs
// the removal waits for any in-flight ingest of the same file.
func (d *Daemon) Remove(ctx context.Context, filename string) (bool, error) {
	removed, err := d.workflow.Remove(ctx, filename)
	if errors.Is(err, workflow.ErrNotRunning) {
		return d.orchestrator.Remove(ctx, filename)
	}
	return removed, err
}

// Videos returns the read-only video service backing the API.
func (d *Daemon) Videos() *api.VideoService {
	return api.NewVideoService(d.store, d.coord)
}

// APIAddress returns the address the API server is listening on, or "" when
// the API is disabled or the daemon is stopped.
func (d *Daemon) APIAddress() string {
	d.state.RLock()
	defer d.state.RUnlock()
	return d.api.address()
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		WatchDir:     d.cfg.Paths.WatchDir,
		ArtifactDir:  d.cfg.Paths.ArtifactDir,
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}

	d.state.RLock()
	if d.watcher != nil {
		status.WatcherPending = d.watcher.Pending()
	}
	status.StartedAt = d.startedAt
	d.state.RUnlock()

	stats, err := d.store.Stats(ctx)
	if err != nil {
		status.StoreError = err.Error()
	}
	status.Store = stats
	return status
}

// APIStatus renders Status as its transport representation.
func (d *Daemon) APIStatus(ctx context.Context) api.DaemonStatus {
	status := d.Status(ctx)
	return api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		DatabasePath:   status.DatabasePath,
		LockFilePath:   status.LockFilePath,
		WatchDir:       status.WatchDir,
		ArtifactDir:    status.ArtifactDir,
		WatcherPending: status.WatcherPending,
		Workflow:       api.FromStatusSummary(status.Workflow),
		Store:          api.FromStats(status.Store),
		Dependencies:   api.FromDependencies(status.Dependencies),
	}
}

func (d *Daemon) runPreflight(ctx context.Context) {
	if missing := deps.Missing(preflight.CheckSystemDeps(d.cfg)); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			names = append(names, m.Command)
		}
		logging.ErrorWithContext(d.logger, "decoder binaries missing", "decoder_unavailable",
			logging.String("binaries", strings.Join(names, ", ")),
			logging.String(logging.FieldErrorHint, missing[0].Detail),
			logging.String(logging.FieldImpact, "every video fails until the binaries are installed"),
		)
	}
	for _, result := range preflight.Failures(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'vidsentry status' for the full report"),
			logging.String(logging.FieldImpact, "videos may fail until the dependency is available"),
		)
	}
}

func (d *Daemon) reconcile(ctx context.Context) error {
	report, err := d.coord.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if report.Changed() {
		d.logger.Info("reconciled store with artifact directory",
			logging.Int("removed_placeholders", len(report.RemovedPlaceholders)),
			logging.Int("removed_artifacts", len(report.RemovedArtifacts)),
			logging.Int("removed_temp_files", len(report.RemovedTempFiles)),
			logging.Int("restored_artifacts", len(report.RestoredArtifacts)),
		)
	}
	return nil
}

func (d *Daemon) cleanupLogs() {
	if _, err := logging.PruneLogs(d.logger, logging.PruneOptionsFromConfig(d.cfg)); err != nil {
		logging.WarnWithContext(d.logger, "log retention skipped", "log_retention_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old log files stay on disk until the next start"),
		)
	}
}

func (d *Daemon) unlock() {
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.String("lock", filepath.Clean(d.lockPath)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
}
