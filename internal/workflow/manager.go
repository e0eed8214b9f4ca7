package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vidsentry/internal/config"
	"vidsentry/internal/logging"
)

// ErrNotRunning is returned by Submit when the manager is stopped.
var ErrNotRunning = errors.New("workflow not running")

// Manager runs queued jobs on a fixed pool of workers.
type Manager struct {
	ingester  Ingester
	workers   int
	queueSize int
	logger    *slog.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    <-chan struct{}
	wg      sync.WaitGroup
	queue   chan Job
	work    chan Job

	// active holds filenames a worker currently owns; backlog holds jobs
	// waiting behind them in arrival order.
	active  map[string]struct{}
	backlog map[string][]Job

	counters counters
	started  time.Time
}

type counters struct {
	processed  int
	failed     int
	duplicates int
	removed    int
	lastErr    error
	lastVideo  string
	lastState  string
	lastFinish time.Time
}

// NewManager constructs a manager sized from cfg.Workflow.
func NewManager(cfg *config.Config, ingester Ingester, logger *slog.Logger) *Manager {
	workers := cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.Workflow.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	return &Manager{
		ingester:  ingester,
		workers:   workers,
		queueSize: queueSize,
		logger:    logging.NewComponentLogger(logger, "workflow"),
	}
}
