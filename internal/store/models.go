package store

import (
	"time"

	"vidsentry/internal/detection"
)

// Video is a claimed filename. A video without a detection row is either in
// flight or a leftover from an interrupted run.
type Video struct {
	ID        int64
	Filename  string
	CreatedAt time.Time
}

// DetectionRecord is the persisted result of a completed pipeline run.
type DetectionRecord struct {
	ID            int64
	VideoID       int64
	DetectionJSON []byte
	Summary       detection.Summary
	CreatedAt     time.Time
}

// VideoListing pairs a video with its summary for list views.
type VideoListing struct {
	Video
	HasDetection bool
	Summary      detection.Summary
	DetectedAt   time.Time
}

// Stats counts rows by lifecycle state.
type Stats struct {
	Videos    int
	Completed int
	Pending   int
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingTables    []string
	IntegrityCheck   bool
	ForeignKeys      bool
	TotalVideos      int
	Error            string
}
