package testsupport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"vidsentry/internal/decoder"
	"vidsentry/internal/detection"
	"vidsentry/internal/detector"
)

// ScriptedVideo describes what the fake decoder and detector produce for one
// file. Frames[i] holds the raw detections for frame i+1.
type ScriptedVideo struct {
	Frames [][]detection.FrameDetection
	// OpenErr fails Open.
	OpenErr error
	// DecodeErrAt fails Next when reading this 1-based frame.
	DecodeErrAt int
	// DetectErrAt fails Detect for this 1-based frame.
	DetectErrAt int
	// Gate, when set, blocks every Detect call for this video until it is
	// closed or the context ends.
	Gate chan struct{}
}

// ErrScripted is returned by scripted decode and detect failures.
var ErrScripted = errors.New("scripted failure")

// Scene pairs a fake Decoder and Detector driven by per-file scripts keyed by
// base name. Frames emitted by the decoder carry their detections to the
// detector through the image pointer, so concurrent videos do not interfere.
type Scene struct {
	mu       sync.Mutex
	videos   map[string]ScriptedVideo
	frames   map[*image.RGBA]sceneFrame
	opens    map[string]int
	detected atomic.Int64
}

type sceneFrame struct {
	filename string
	index    int
	dets     []detection.FrameDetection
	fail     bool
	gate     chan struct{}
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{
		videos: make(map[string]ScriptedVideo),
		frames: make(map[*image.RGBA]sceneFrame),
		opens:  make(map[string]int),
	}
}

// Add registers a script for filename (base name).
func (s *Scene) Add(filename string, video ScriptedVideo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[filepath.Base(filename)] = video
}

// Opens reports how many times filename was opened.
func (s *Scene) Opens(filename string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[filepath.Base(filename)]
}

// DetectCalls reports the number of Detect calls across all videos.
func (s *Scene) DetectCalls() int64 {
	return s.detected.Load()
}

// Decoder returns the scene's decoder.
func (s *Scene) Decoder() decoder.Decoder {
	return sceneDecoder{scene: s}
}

// Detector returns the scene's detector.
func (s *Scene) Detector() detector.Detector {
	return detector.Func(s.detect)
}

func (s *Scene) detect(ctx context.Context, frame image.Image, _, _ float64) ([]detection.FrameDetection, error) {
	s.detected.Add(1)
	rgba, ok := frame.(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("unexpected frame type %T", frame)
	}
	s.mu.Lock()
	entry, ok := s.frames[rgba]
	delete(s.frames, rgba)
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("frame not produced by this scene")
	}
	if entry.gate != nil {
		select {
		case <-entry.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if entry.fail {
		return nil, fmt.Errorf("detect %s frame %d: %w", entry.filename, entry.index, ErrScripted)
	}
	return append([]detection.FrameDetection(nil), entry.dets...), nil
}

type sceneDecoder struct {
	scene *Scene
}

func (d sceneDecoder) Open(_ context.Context, path string) (decoder.FrameSource, error) {
	name := filepath.Base(path)
	d.scene.mu.Lock()
	defer d.scene.mu.Unlock()
	d.scene.opens[name]++
	video, ok := d.scene.videos[name]
	if !ok {
		return nil, fmt.Errorf("open %s: no script", name)
	}
	if video.OpenErr != nil {
		return nil, video.OpenErr
	}
	return &sceneSource{scene: d.scene, filename: name, video: video}, nil
}

type sceneSource struct {
	scene    *Scene
	filename string
	video    ScriptedVideo
	next     int
}

func (s *sceneSource) Next() (decoder.Frame, error) {
	if s.next >= len(s.video.Frames) {
		return decoder.Frame{}, io.EOF
	}
	index := s.next + 1
	if s.video.DecodeErrAt == index {
		return decoder.Frame{}, fmt.Errorf("decode %s frame %d: %w", s.filename, index, ErrScripted)
	}
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	s.scene.mu.Lock()
	s.scene.frames[img] = sceneFrame{
		filename: s.filename,
		index:    index,
		dets:     s.video.Frames[s.next],
		fail:     s.video.DetectErrAt == index,
		gate:     s.video.Gate,
	}
	s.scene.mu.Unlock()
	s.next++
	return decoder.Frame{Index: index, Image: img}, nil
}

func (s *sceneSource) Close() error { return nil }

// Detections builds n identical detections of class with the given confidence.
func Detections(class string, n int, confidence float64) []detection.FrameDetection {
	out := make([]detection.FrameDetection, n)
	for i := range out {
		out[i] = detection.FrameDetection{
			BBox:       detection.BoundingBox{float64(i), 0, float64(i) + 10, 10},
			Confidence: confidence,
			ClassID:    classID(class),
			ClassName:  class,
		}
	}
	return out
}

// RepeatFrames returns count frames each holding dets.
func RepeatFrames(count int, dets []detection.FrameDetection) [][]detection.FrameDetection {
	frames := make([][]detection.FrameDetection, count)
	for i := range frames {
		frames[i] = dets
	}
	return frames
}

func classID(class string) int {
	switch class {
	case "person":
		return 0
	case "car":
		return 2
	case "dog":
		return 16
	default:
		return 99
	}
}
