package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// BoundingBox holds x1, y1, x2, y2 in source pixel coordinates.
type BoundingBox [4]float64

// FrameDetection is a single object reported by the detector for one frame.
type FrameDetection struct {
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
	ClassID    int         `json:"class_id"`
	ClassName  string      `json:"class_name"`
}

// Validate rejects detections the rest of the pipeline cannot reason about.
func (d FrameDetection) Validate() error {
	for i, v := range d.BBox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bbox[%d] is not finite", i)
		}
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 {
		return fmt.Errorf("confidence %v must be a non-negative number", d.Confidence)
	}
	if d.ClassID < 0 {
		return fmt.Errorf("class id %d must not be negative", d.ClassID)
	}
	if strings.TrimSpace(d.ClassName) == "" {
		return errors.New("class name is empty")
	}
	if strings.Contains(d.ClassName, ClassSeparator) {
		return fmt.Errorf("class name %q contains %q", d.ClassName, ClassSeparator)
	}
	return nil
}

// FrameRecord is the detection result for one decoded frame. Frame indices are 1-based.
type FrameRecord struct {
	Frame           int              `json:"frame"`
	ObjectsDetected bool             `json:"objects_detected"`
	NumDetections   int              `json:"num_detections"`
	Detections      []FrameDetection `json:"detections"`
}

// NewFrameRecord builds a record whose derived fields agree with detections.
func NewFrameRecord(index int, detections []FrameDetection) FrameRecord {
	kept := make([]FrameDetection, len(detections))
	copy(kept, detections)
	return FrameRecord{
		Frame:           index,
		ObjectsDetected: len(kept) > 0,
		NumDetections:   len(kept),
		Detections:      kept,
	}
}

// Artifact is the canonical filtered detection output for one video.
type Artifact struct {
	VideoFilename string        `json:"video_filename"`
	TotalFrames   int           `json:"total_frames"`
	Frames        []FrameRecord `json:"frames"`
}

// NewArtifact assembles an artifact, deriving TotalFrames from frames.
func NewArtifact(filename string, frames []FrameRecord) Artifact {
	if frames == nil {
		frames = []FrameRecord{}
	}
	return Artifact{VideoFilename: filename, TotalFrames: len(frames), Frames: frames}
}

// Validate checks that frames are contiguous from 1 and match TotalFrames.
func (a Artifact) Validate() error {
	if strings.TrimSpace(a.VideoFilename) == "" {
		return errors.New("artifact video filename is empty")
	}
	if len(a.Frames) != a.TotalFrames {
		return fmt.Errorf("artifact has %d frames, total_frames is %d", len(a.Frames), a.TotalFrames)
	}
	for i, frame := range a.Frames {
		if frame.Frame != i+1 {
			return fmt.Errorf("frame %d at position %d breaks 1-based ordering", frame.Frame, i)
		}
		if frame.NumDetections != len(frame.Detections) || frame.ObjectsDetected != (len(frame.Detections) > 0) {
			return fmt.Errorf("frame %d derived fields disagree with detections", frame.Frame)
		}
		for _, det := range frame.Detections {
			if err := det.Validate(); err != nil {
				return fmt.Errorf("frame %d: %w", frame.Frame, err)
			}
		}
	}
	return nil
}

// Encode renders the artifact as indented JSON terminated by a newline.
func (a Artifact) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeArtifact parses an artifact previously produced by Encode.
func DecodeArtifact(data []byte) (Artifact, error) {
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("decode artifact: %w", err)
	}
	return artifact, nil
}
