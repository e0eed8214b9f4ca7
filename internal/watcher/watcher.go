package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"vidsentry/internal/logging"
	"vidsentry/internal/stability"
)

// EventKind classifies a watcher event.
type EventKind int

const (
	FileArrived EventKind = iota + 1
	FileRemoved
)

func (k EventKind) String() string {
	switch k {
	case FileArrived:
		return "arrived"
	case FileRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is emitted for each admitted arrival and each removal.
type Event struct {
	Kind     EventKind
	Path     string
	Filename string
}

var allowedExtensions = map[string]struct{}{
	".mp4": {},
	".avi": {},
	".mov": {},
	".mkv": {},
}

// Eligible reports whether path has an allowed video extension.
func Eligible(path string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Options configures a Watcher.
type Options struct {
	Dir       string
	Stability stability.Options
	// Buffer sizes the event channel.
	Buffer int
	Logger *slog.Logger
}

// Watcher turns filesystem notifications into Events.
type Watcher struct {
	dir       string
	stability stability.Options
	events    chan Event
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingWait
	// subdirs holds direct sub-directories so their removal is not reported.
	subdirs map[string]struct{}
	wg      sync.WaitGroup
}

type pendingWait struct {
	cancel context.CancelFunc
}

// New validates opts and returns a watcher. Run starts it.
func New(opts Options) (*Watcher, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, errors.New("watcher: directory required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watcher: %s is not a directory", dir)
	}
	buffer := opts.Buffer
	if buffer < 0 {
		buffer = 0
	}
	logger := logging.NewComponentLogger(opts.Logger, "watcher")
	stab := opts.Stability
	if stab.Logger == nil {
		stab.Logger = logger
	}
	return &Watcher{
		dir:       filepath.Clean(dir),
		stability: stab,
		events:    make(chan Event, buffer),
		logger:    logger,
		pending:   make(map[string]*pendingWait),
		subdirs:   make(map[string]struct{}),
	}, nil
}

// Events returns the channel Run delivers to. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run watches until ctx ends. It returns nil on cancellation and an error if
// the watch cannot be established or the notification stream fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watcher: watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory", logging.String("dir", w.dir))

	defer w.wg.Wait()
	defer w.cancelPending()

	if err := w.scan(ctx); err != nil {
		logging.WarnWithContext(w.logger, "initial scan failed", "scan_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "files present before start are not ingested until touched"),
		)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return errors.New("watcher: notification stream closed")
			}
			w.handle(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watcher: notification stream closed")
			}
			logging.WarnWithContext(w.logger, "filesystem notification error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some events may have been missed"),
			)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if filepath.Dir(path) != w.dir {
		return
	}
	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.trackDir(path)
			return
		}
		w.arrive(ctx, path)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.forgetDir(path) || !Eligible(path) {
			return
		}
		w.abandon(path)
		w.emit(ctx, Event{Kind: FileRemoved, Path: path, Filename: filepath.Base(path)})
	}
}

// scan admits eligible files already in the directory.
func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			w.trackDir(filepath.Join(w.dir, entry.Name()))
			continue
		}
		w.arrive(ctx, filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

// arrive starts a stability wait for path unless one is already running.
func (w *Watcher) arrive(ctx context.Context, path string) {
	if !Eligible(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	if _, busy := w.pending[path]; busy {
		w.mu.Unlock()
		return
	}
	waitCtx, cancel := context.WithCancel(ctx)
	wait := &pendingWait{cancel: cancel}
	w.pending[path] = wait
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer w.finish(path, wait)
		w.logger.Debug("awaiting stability", logging.String("path", path))
		result, err := stability.AwaitStable(waitCtx, path, w.stability)
		if err != nil || result != stability.Stable {
			return
		}
		w.logger.Info("file arrived", logging.String("path", path))
		w.emit(waitCtx, Event{Kind: FileArrived, Path: path, Filename: filepath.Base(path)})
	}()
}

func (w *Watcher) finish(path string, wait *pendingWait) {
	wait.cancel()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[path] == wait {
		delete(w.pending, path)
	}
}

// abandon stops a stability wait for a path that went away.
func (w *Watcher) abandon(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if wait, ok := w.pending[path]; ok {
		wait.cancel()
		delete(w.pending, path)
	}
}

func (w *Watcher) trackDir(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subdirs[path] = struct{}{}
}

// forgetDir reports whether path was a known sub-directory.
func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.subdirs[path]; ok {
		delete(w.subdirs, path)
		return true
	}
	return false
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, wait := range w.pending {
		wait.cancel()
	}
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// Pending reports how many files are awaiting stability.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
