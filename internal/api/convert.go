package api

import (
	"time"

	"vidsentry/internal/deps"
	"vidsentry/internal/detection"
	"vidsentry/internal/store"
	"vidsentry/internal/workflow"
)

// FromListing converts a store listing into its API representation.
func FromListing(listing store.VideoListing) Video {
	dto := Video{
		ID:              listing.ID,
		Filename:        listing.Filename,
		Status:          VideoStatusPending,
		ClassesDetected: []string{},
		CreatedAt:       formatTime(listing.CreatedAt),
	}
	if listing.HasDetection {
		dto.Status = VideoStatusCompleted
		dto.DetectedAt = formatTime(listing.DetectedAt)
		applySummary(&dto, listing.Summary)
	}
	return dto
}

// FromListings converts a slice of listings, preserving order.
func FromListings(listings []store.VideoListing) []Video {
	out := make([]Video, 0, len(listings))
	for _, listing := range listings {
		out = append(out, FromListing(listing))
	}
	return out
}

// FromDetail builds a VideoDetail from a video, its detection row (which may
// be nil), and the decoded artifact when available.
func FromDetail(video store.Video, record *store.DetectionRecord, artifact *detection.Artifact, artifactPath string) VideoDetail {
	listing := store.VideoListing{Video: video}
	if record != nil {
		listing.HasDetection = true
		listing.Summary = record.Summary
		listing.DetectedAt = record.CreatedAt
	}
	detail := VideoDetail{Video: FromListing(listing)}
	if record == nil {
		return detail
	}
	detail.ArtifactPath = artifactPath
	if artifact != nil {
		detail.TotalFrames = artifact.TotalFrames
		for _, frame := range artifact.Frames {
			if frame.ObjectsDetected {
				detail.FramesWithObjects++
			}
		}
	}
	return detail
}

// FromStatusSummary converts a workflow summary into its API representation.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	active := summary.Active
	if active == nil {
		active = []string{}
	}
	return WorkflowStatus{
		Running:    summary.Running,
		Workers:    summary.Workers,
		Queued:     summary.Queued,
		Active:     active,
		Parked:     summary.Parked,
		Processed:  summary.Processed,
		Failed:     summary.Failed,
		Duplicates: summary.Duplicates,
		Removed:    summary.Removed,
		LastError:  summary.LastError,
		LastVideo:  summary.LastVideo,
		LastState:  summary.LastState,
		LastFinish: formatTime(summary.LastFinish),
		StartedAt:  formatTime(summary.StartedAt),
	}
}

// FromStats converts store counts.
func FromStats(stats store.Stats) StoreStats {
	return StoreStats{Videos: stats.Videos, Completed: stats.Completed, Pending: stats.Pending}
}

// FromDependencies converts binary availability results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

func applySummary(dto *Video, summary detection.Summary) {
	if len(summary.ClassesDetected) > 0 {
		dto.ClassesDetected = append([]string(nil), summary.ClassesDetected...)
	}
	if len(summary.MaxCountPerFrame) > 0 {
		dto.MaxCountPerFrame = make(map[string]int, len(summary.MaxCountPerFrame))
		for class, count := range summary.MaxCountPerFrame {
			dto.MaxCountPerFrame[class] = count
		}
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
