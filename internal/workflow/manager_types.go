package workflow

import (
	"context"

	"vidsentry/internal/ingest"
	"vidsentry/internal/watcher"
)

// Ingester is the pipeline surface the manager drives.
type Ingester interface {
	Ingest(ctx context.Context, path string) (ingest.Outcome, error)
	Remove(ctx context.Context, filename string) (bool, error)
}

// Job is one queued unit of work.
type Job struct {
	Kind     watcher.EventKind
	Path     string
	Filename string

	// result receives the outcome of a removal submitted through Remove.
	result chan removeResult
}

type removeResult struct {
	removed bool
	err     error
}

// JobFromEvent converts a watcher event into a job.
func JobFromEvent(ev watcher.Event) Job {
	return Job{Kind: ev.Kind, Path: ev.Path, Filename: ev.Filename}
}

func (j Job) key() string {
	return j.Filename
}
