package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"vidsentry/internal/ingest"
	"vidsentry/internal/logging"
	"vidsentry/internal/services"
	"vidsentry/internal/watcher"
)

// Start launches the dispatcher and workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.ingester == nil {
		m.mu.Unlock()
		return errors.New("workflow ingester not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = runCtx.Done()
	m.running = true
	m.queue = make(chan Job, m.queueSize)
	m.work = make(chan Job)
	m.active = make(map[string]struct{})
	m.backlog = make(map[string][]Job)
	m.started = timeNow()
	m.wg.Add(m.workers + 1)
	m.mu.Unlock()

	go m.dispatch(runCtx)
	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx)
	}
	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Int("queue_size", m.queueSize),
	)
	return nil
}

// Stop cancels in-flight jobs and waits for workers to exit. Queued jobs are
// dropped; their files are picked up again by the next start-up scan.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Submit queues job, blocking while the queue is full.
func (m *Manager) Submit(ctx context.Context, job Job) error {
	m.mu.RLock()
	running := m.running
	queue := m.queue
	m.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	select {
	case queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Remove deletes the records for filename and reports whether any existed.
// It waits behind any job already running or parked for the same filename.
func (m *Manager) Remove(ctx context.Context, filename string) (bool, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	m.mu.RLock()
	done := m.done
	m.mu.RUnlock()

	result := make(chan removeResult, 1)
	job := Job{Kind: watcher.FileRemoved, Path: filename, Filename: filename, result: result}
	if err := m.Submit(ctx, job); err != nil {
		return false, err
	}
	select {
	case r := <-result:
		return r.removed, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	case <-done:
		select {
		case r := <-result:
			return r.removed, r.err
		default:
			return false, ErrNotRunning
		}
	}
}

// Consume submits every event from events until the channel closes or ctx
// ends.
func (m *Manager) Consume(ctx context.Context, events <-chan watcher.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := m.Submit(ctx, JobFromEvent(ev)); err != nil {
				if !errors.Is(err, context.Canceled) {
					logging.WarnWithContext(m.logger, "event dropped", "event_dropped",
						logging.Video(ev.Filename),
						logging.Error(err),
						logging.String(logging.FieldImpact, "file will be picked up on next start"),
					)
				}
				return
			}
		}
	}
}

// dispatch moves jobs from the queue to idle workers, parking jobs whose
// filename is already owned by a worker.
func (m *Manager) dispatch(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.queue:
			if !m.claim(job) {
				continue
			}
			select {
			case m.work <- job:
			case <-ctx.Done():
				return
			}
		}
	}
}

// claim marks job's filename active, or parks job behind the active one.
func (m *Manager) claim(job Job) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := job.key()
	if _, busy := m.active[key]; busy {
		m.backlog[key] = append(m.backlog[key], job)
		return false
	}
	m.active[key] = struct{}{}
	return true
}

// release hands back the next parked job for key, or frees key.
func (m *Manager) release(key string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if parked := m.backlog[key]; len(parked) > 0 {
		next := parked[0]
		if len(parked) == 1 {
			delete(m.backlog, key)
		} else {
			m.backlog[key] = parked[1:]
		}
		return next, true
	}
	delete(m.active, key)
	return Job{}, false
}

func (m *Manager) runWorker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.work:
			for {
				m.process(ctx, job)
				next, ok := m.release(job.key())
				if !ok || ctx.Err() != nil {
					break
				}
				job = next
			}
		}
	}
}

func (m *Manager) process(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	switch job.Kind {
	case watcher.FileArrived:
		outcome, err := m.ingester.Ingest(ctx, job.Path)
		if err != nil && errors.Is(err, context.Canceled) {
			return
		}
		m.record(outcome)
	case watcher.FileRemoved:
		removed, err := m.ingester.Remove(ctx, job.Filename)
		m.recordRemoval(job.Filename, removed, err)
		if job.result != nil {
			job.result <- removeResult{removed: removed, err: err}
		}
	default:
		m.logger.Warn("unknown job kind", logging.String("kind", job.Kind.String()))
	}
}

func (m *Manager) record(outcome ingest.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &m.counters
	c.lastVideo = outcome.Filename
	c.lastState = outcome.State.String()
	c.lastFinish = timeNow()
	switch outcome.State {
	case ingest.Persisted:
		c.processed++
	case ingest.Duplicate:
		c.duplicates++
	case ingest.Failed:
		c.failed++
		c.lastErr = outcome.Err
	}
}

func (m *Manager) recordRemoval(filename string, removed bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.counters.lastErr = services.Wrap(services.ErrTransient, "workflow", "remove", filename, err)
		return
	}
	if removed {
		m.counters.removed++
	}
}
