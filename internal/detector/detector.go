package detector

import (
	"context"
	"image"

	"vidsentry/internal/detection"
)

// Detector runs object detection on a single frame.
type Detector interface {
	Detect(ctx context.Context, frame image.Image, confidence, iou float64) ([]detection.FrameDetection, error)
}

// Func adapts a plain function to the Detector interface.
type Func func(ctx context.Context, frame image.Image, confidence, iou float64) ([]detection.FrameDetection, error)

// Detect calls f.
func (f Func) Detect(ctx context.Context, frame image.Image, confidence, iou float64) ([]detection.FrameDetection, error) {
	return f(ctx, frame, confidence, iou)
}
