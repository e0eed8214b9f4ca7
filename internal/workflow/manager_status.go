package workflow

import (
	"sort"
	"time"
)

var timeNow = time.Now

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	Workers    int
	Queued     int
	Active     []string
	Parked     int
	Processed  int
	Failed     int
	Duplicates int
	Removed    int
	LastError  string
	LastVideo  string
	LastState  string
	LastFinish time.Time
	StartedAt  time.Time
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatusSummary{
		Running:    m.running,
		Workers:    m.workers,
		Queued:     len(m.queue),
		Processed:  m.counters.processed,
		Failed:     m.counters.failed,
		Duplicates: m.counters.duplicates,
		Removed:    m.counters.removed,
		LastVideo:  m.counters.lastVideo,
		LastState:  m.counters.lastState,
		LastFinish: m.counters.lastFinish,
		StartedAt:  m.started,
	}
	for name := range m.active {
		summary.Active = append(summary.Active, name)
	}
	sort.Strings(summary.Active)
	for _, parked := range m.backlog {
		summary.Parked += len(parked)
	}
	if m.counters.lastErr != nil {
		summary.LastError = m.counters.lastErr.Error()
	}
	return summary
}
