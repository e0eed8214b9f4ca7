package detector

import (
	"context"
	"image"

	"golang.org/x/sync/semaphore"

	"vidsentry/internal/detection"
)

// Limited bounds the number of concurrent Detect calls reaching the wrapped
// detector. Waiting callers honor context cancellation.
type Limited struct {
	inner Detector
	sem   *semaphore.Weighted
}

// NewLimited wraps inner with maxConcurrent slots. Values below one mean one.
func NewLimited(inner Detector, maxConcurrent int) *Limited {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limited{inner: inner, sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Detect waits for a free slot and then calls the wrapped detector.
func (l *Limited) Detect(ctx context.Context, frame image.Image, confidence, iou float64) ([]detection.FrameDetection, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.inner.Detect(ctx, frame, confidence, iou)
}
