// Package stability decides when a file has finished being written by
// watching its size settle across consecutive polls.
package stability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"vidsentry/internal/logging"
)

// Result describes how AwaitStable finished.
type Result int

const (
	// Stable means the size held for the required number of reads.
	Stable Result = iota + 1
	// Vanished means the file was absent when the wait was abandoned.
	Vanished
)

func (r Result) String() string {
	switch r {
	case Stable:
		return "stable"
	case Vanished:
		return "vanished"
	default:
		return "unknown"
	}
}

const (
	DefaultPollInterval       = time.Second
	DefaultRequiredEqualReads = 2
)

// Options tunes the stability poll.
type Options struct {
	PollInterval       time.Duration
	RequiredEqualReads int
	Logger             *slog.Logger
}

func (o Options) normalized() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.RequiredEqualReads <= 0 {
		o.RequiredEqualReads = DefaultRequiredEqualReads
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

// AwaitStable polls path until its size is unchanged for RequiredEqualReads
// consecutive reads. A failed stat is treated as transient and retried on the
// next tick without touching the streak. When ctx ends while the file is
// missing the result is Vanished; when it ends while the file exists the
// context error is returned.
func AwaitStable(ctx context.Context, path string, opts Options) (Result, error) {
	opts = opts.normalized()
	lastSize := int64(-1)
	streak := 0
	missing := false

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			if !missing {
				opts.Logger.Debug("file unreadable; retrying", logging.String("path", path), logging.Error(err))
			}
			missing = true
		} else {
			missing = false
			size := info.Size()
			if size == lastSize {
				streak++
			} else {
				streak = 0
				lastSize = size
			}
			if streak >= opts.RequiredEqualReads {
				opts.Logger.Debug("file stable", logging.String("path", path), logging.Int64("size_bytes", size))
				return Stable, nil
			}
		}

		select {
		case <-ctx.Done():
			if missing {
				return Vanished, nil
			}
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}
