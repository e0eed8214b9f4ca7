package detection

import "sort"

const (
	// DefaultFrameThreshold is the run length a class must exceed to be kept.
	DefaultFrameThreshold = 10
	// DefaultGapTolerance is the number of missed frames a run may bridge.
	DefaultGapTolerance = 3
)

// FilterOptions tunes the temporal run-length filter.
type FilterOptions struct {
	FrameThreshold int
	GapTolerance   int
}

// DefaultFilterOptions returns the stock filter parameters.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{FrameThreshold: DefaultFrameThreshold, GapTolerance: DefaultGapTolerance}
}

// Filter drops detections of classes that do not persist across a run of
// nearby frames. Consecutive indices of a class belong to the same run when
// next-last <= GapTolerance+1; a run survives only when its length is strictly
// greater than FrameThreshold. The input slice is not modified.
func Filter(frames []FrameRecord, opts FilterOptions) []FrameRecord {
	good := make(map[string]map[int]struct{})
	for class, indices := range classIndices(frames) {
		for _, run := range Runs(indices, opts.GapTolerance) {
			if len(run) <= opts.FrameThreshold {
				continue
			}
			set, ok := good[class]
			if !ok {
				set = make(map[int]struct{})
				good[class] = set
			}
			for _, idx := range run {
				set[idx] = struct{}{}
			}
		}
	}

	out := make([]FrameRecord, len(frames))
	for i, frame := range frames {
		kept := make([]FrameDetection, 0, len(frame.Detections))
		for _, det := range frame.Detections {
			if _, ok := good[det.ClassName][frame.Frame]; ok {
				kept = append(kept, det)
			}
		}
		out[i] = NewFrameRecord(frame.Frame, kept)
	}
	return out
}

// Runs splits ascending, de-duplicated frame indices into maximal runs.
func Runs(indices []int, gapTolerance int) [][]int {
	if len(indices) == 0 {
		return nil
	}
	var runs [][]int
	current := []int{indices[0]}
	for _, idx := range indices[1:] {
		if idx-current[len(current)-1] <= gapTolerance+1 {
			current = append(current, idx)
			continue
		}
		runs = append(runs, current)
		current = []int{idx}
	}
	return append(runs, current)
}

func classIndices(frames []FrameRecord) map[string][]int {
	sets := make(map[string]map[int]struct{})
	for _, frame := range frames {
		for _, det := range frame.Detections {
			set, ok := sets[det.ClassName]
			if !ok {
				set = make(map[int]struct{})
				sets[det.ClassName] = set
			}
			set[frame.Frame] = struct{}{}
		}
	}
	out := make(map[string][]int, len(sets))
	for class, set := range sets {
		indices := make([]int, 0, len(set))
		for idx := range set {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		out[class] = indices
	}
	return out
}
