package ingest

import (
	"time"

	"vidsentry/internal/detection"
)

// State is a step of the per-file ingestion lifecycle.
type State int

const (
	Pending State = iota
	Detecting
	Filtering
	Persisted
	Duplicate
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Detecting:
		return "detecting"
	case Filtering:
		return "filtering"
	case Persisted:
		return "persisted"
	case Duplicate:
		return "duplicate"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends the lifecycle.
func (s State) Terminal() bool {
	return s == Persisted || s == Duplicate || s == Failed
}

// Outcome describes how one ingestion ended.
type Outcome struct {
	Filename    string
	VideoID     int64
	State       State
	TotalFrames int
	Summary     detection.Summary
	RequestID   string
	Duration    time.Duration
	Err         error
}
