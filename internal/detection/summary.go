package detection

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Summary aggregates the filtered frames of one video. Both fields are nil
// when no detections survived filtering.
type Summary struct {
	ClassesDetected  []string       `json:"classes_detected"`
	MaxCountPerFrame map[string]int `json:"max_count_per_frame"`
}

// Summarize computes the sorted class set and the per-class maximum number of
// simultaneous detections in any single frame.
func Summarize(frames []FrameRecord) Summary {
	maxCounts := make(map[string]int)
	for _, frame := range frames {
		counts := make(map[string]int)
		for _, det := range frame.Detections {
			counts[det.ClassName]++
		}
		for class, n := range counts {
			if n > maxCounts[class] {
				maxCounts[class] = n
			}
		}
	}
	if len(maxCounts) == 0 {
		return Summary{}
	}
	classes := make([]string, 0, len(maxCounts))
	for class := range maxCounts {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return Summary{ClassesDetected: classes, MaxCountPerFrame: maxCounts}
}

// Empty reports whether no class survived filtering.
func (s Summary) Empty() bool {
	return len(s.ClassesDetected) == 0
}

// ClassSeparator joins class names in the classes_detected column, so class
// names may not contain it.
const ClassSeparator = ","

// ClassesColumn returns the comma-joined class list for storage, or false when
// the summary is empty and the column should be NULL.
func (s Summary) ClassesColumn() (string, bool) {
	if s.Empty() {
		return "", false
	}
	return strings.Join(s.ClassesDetected, ClassSeparator), true
}

// MaxCountColumn returns the JSON-encoded per-class maxima, or false when the
// column should be NULL.
func (s Summary) MaxCountColumn() (string, bool, error) {
	if len(s.MaxCountPerFrame) == 0 {
		return "", false, nil
	}
	data, err := json.Marshal(s.MaxCountPerFrame)
	if err != nil {
		return "", false, fmt.Errorf("encode max count per frame: %w", err)
	}
	return string(data), true, nil
}

// ParseSummaryColumns rebuilds a Summary from its stored column values.
func ParseSummaryColumns(classes string, classesValid bool, maxCounts string, maxValid bool) (Summary, error) {
	var summary Summary
	if classesValid && strings.TrimSpace(classes) != "" {
		summary.ClassesDetected = strings.Split(classes, ClassSeparator)
	}
	if maxValid && strings.TrimSpace(maxCounts) != "" {
		if err := json.Unmarshal([]byte(maxCounts), &summary.MaxCountPerFrame); err != nil {
			return Summary{}, fmt.Errorf("decode max count per frame: %w", err)
		}
	}
	return summary, nil
}
