package detection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsentry/internal/detection"
)

func det(class string) detection.FrameDetection {
	return detection.FrameDetection{BBox: detection.BoundingBox{0, 0, 10, 10}, Confidence: 0.9, ClassName: class}
}

// framesWith builds total frames where each class appears in the listed indices.
func framesWith(total int, classes map[string][]int) []detection.FrameRecord {
	byFrame := make(map[int][]detection.FrameDetection)
	for class, indices := range classes {
		for _, idx := range indices {
			byFrame[idx] = append(byFrame[idx], det(class))
		}
	}
	frames := make([]detection.FrameRecord, 0, total)
	for i := 1; i <= total; i++ {
		frames = append(frames, detection.NewFrameRecord(i, byFrame[i]))
	}
	return frames
}

func keptFrames(frames []detection.FrameRecord, class string) []int {
	var out []int
	for _, frame := range frames {
		for _, d := range frame.Detections {
			if d.ClassName == class {
				out = append(out, frame.Frame)
				break
			}
		}
	}
	return out
}

func TestFilterKeepsOnlyRunsLongerThanThreshold(t *testing.T) {
	frames := framesWith(12, map[string][]int{"car": {1, 2, 3, 9, 10, 11, 12}})

	out := detection.Filter(frames, detection.FilterOptions{FrameThreshold: 3, GapTolerance: 3})

	require.Len(t, out, 12)
	assert.Equal(t, []int{9, 10, 11, 12}, keptFrames(out, "car"))
	for _, frame := range out[:8] {
		assert.False(t, frame.ObjectsDetected, "frame %d", frame.Frame)
		assert.Zero(t, frame.NumDetections, "frame %d", frame.Frame)
		assert.Empty(t, frame.Detections, "frame %d", frame.Frame)
	}
	for _, frame := range out[8:] {
		assert.True(t, frame.ObjectsDetected, "frame %d", frame.Frame)
		assert.Equal(t, 1, frame.NumDetections, "frame %d", frame.Frame)
	}
}

func TestFilterRejectsRunEqualToThreshold(t *testing.T) {
	frames := framesWith(5, map[string][]int{"dog": {1, 2, 3}})
	out := detection.Filter(frames, detection.FilterOptions{FrameThreshold: 3, GapTolerance: 0})
	assert.Empty(t, keptFrames(out, "dog"))

	out = detection.Filter(frames, detection.FilterOptions{FrameThreshold: 2, GapTolerance: 0})
	assert.Equal(t, []int{1, 2, 3}, keptFrames(out, "dog"))
}

func TestFilterGapBoundary(t *testing.T) {
	// 1 -> 5 leaves three missed frames, exactly gap tolerance 3.
	bridged := framesWith(6, map[string][]int{"cat": {1, 5}})
	out := detection.Filter(bridged, detection.FilterOptions{FrameThreshold: 1, GapTolerance: 3})
	assert.Equal(t, []int{1, 5}, keptFrames(out, "cat"))

	// 1 -> 6 leaves four missed frames and splits the run.
	split := framesWith(6, map[string][]int{"cat": {1, 6}})
	out = detection.Filter(split, detection.FilterOptions{FrameThreshold: 1, GapTolerance: 3})
	assert.Empty(t, keptFrames(out, "cat"))
}

func TestFilterTreatsClassesIndependently(t *testing.T) {
	frames := framesWith(20, map[string][]int{
		"person": {1, 2, 3, 4, 5, 6},
		"bird":   {10},
	})
	out := detection.Filter(frames, detection.FilterOptions{FrameThreshold: 5, GapTolerance: 1})
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, keptFrames(out, "person"))
	assert.Empty(t, keptFrames(out, "bird"))
}

func TestFilterIgnoresDetectionOrderWithinFrame(t *testing.T) {
	a := framesWith(4, map[string][]int{"car": {1, 2, 3}, "truck": {2, 3, 4}})
	b := make([]detection.FrameRecord, len(a))
	for i, frame := range a {
		reversed := make([]detection.FrameDetection, len(frame.Detections))
		for j, d := range frame.Detections {
			reversed[len(frame.Detections)-1-j] = d
		}
		b[i] = detection.NewFrameRecord(frame.Frame, reversed)
	}
	opts := detection.FilterOptions{FrameThreshold: 2, GapTolerance: 0}
	outA := detection.Filter(a, opts)
	outB := detection.Filter(b, opts)
	for _, class := range []string{"car", "truck"} {
		assert.Equal(t, keptFrames(outA, class), keptFrames(outB, class), class)
	}
	assert.Equal(t, detection.Summarize(outA), detection.Summarize(outB))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	frames := framesWith(3, map[string][]int{"car": {2}})
	_ = detection.Filter(frames, detection.DefaultFilterOptions())
	require.Len(t, frames[1].Detections, 1)
	assert.True(t, frames[1].ObjectsDetected)
}

func TestFilterEmptyInput(t *testing.T) {
	assert.Empty(t, detection.Filter(nil, detection.DefaultFilterOptions()))
}

func TestFilterMultipleDetectionsCountOnce(t *testing.T) {
	frames := framesWith(3, map[string][]int{"car": {1, 2, 3}})
	frames[1] = detection.NewFrameRecord(2, []detection.FrameDetection{det("car"), det("car")})
	out := detection.Filter(frames, detection.FilterOptions{FrameThreshold: 2, GapTolerance: 0})
	assert.Equal(t, 2, out[1].NumDetections)
}

func TestRuns(t *testing.T) {
	assert.Nil(t, detection.Runs(nil, 3))
	assert.Equal(t, [][]int{{1, 2, 3}, {9, 10, 11, 12}}, detection.Runs([]int{1, 2, 3, 9, 10, 11, 12}, 3))
	assert.Equal(t, [][]int{{1}, {3}, {5}}, detection.Runs([]int{1, 3, 5}, 0))
	assert.Equal(t, [][]int{{1, 3, 5}}, detection.Runs([]int{1, 3, 5}, 1))
}

func TestDefaultFilterOptions(t *testing.T) {
	opts := detection.DefaultFilterOptions()
	assert.Equal(t, 10, opts.FrameThreshold)
	assert.Equal(t, 3, opts.GapTolerance)
}
