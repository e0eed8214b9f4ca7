package api

import (
	"context"
	"errors"
	"os"
	"strings"

	"vidsentry/internal/detection"
	"vidsentry/internal/store"
)

// VideoReader abstracts the store queries needed for API views.
type VideoReader interface {
	ListVideos(ctx context.Context) ([]store.VideoListing, error)
	FindVideo(ctx context.Context, filename string) (*store.Video, error)
	GetDetection(ctx context.Context, videoID int64) (*store.DetectionRecord, error)
}

// ArtifactReader locates and loads per-video artifacts.
type ArtifactReader interface {
	ArtifactPath(filename string) string
	ReadArtifact(filename string) (detection.Artifact, error)
}

// VideoService exposes read-only video queries returning API DTOs.
type VideoService struct {
	store     VideoReader
	artifacts ArtifactReader
}

// NewVideoService constructs a VideoService. artifacts may be nil, in which
// case detail views omit artifact information.
func NewVideoService(store VideoReader, artifacts ArtifactReader) *VideoService {
	if store == nil {
		return nil
	}
	return &VideoService{store: store, artifacts: artifacts}
}

// List returns every claimed video in claim order.
func (s *VideoService) List(ctx context.Context) ([]Video, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	listings, err := s.store.ListVideos(ctx)
	if err != nil {
		return nil, err
	}
	return FromListings(listings), nil
}

// Describe fetches a single video by filename. It returns nil when the
// filename has never been claimed.
func (s *VideoService) Describe(ctx context.Context, filename string) (*VideoDetail, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, nil
	}
	video, err := s.store.FindVideo(ctx, filename)
	if err != nil || video == nil {
		return nil, err
	}
	record, err := s.store.GetDetection(ctx, video.ID)
	if err != nil {
		return nil, err
	}

	var (
		artifact     *detection.Artifact
		artifactPath string
	)
	if record != nil && s.artifacts != nil {
		artifactPath = s.artifacts.ArtifactPath(filename)
		loaded, err := s.artifacts.ReadArtifact(filename)
		switch {
		case err == nil:
			// a sibling with the same stem may own the file
			if loaded.VideoFilename == video.Filename {
				artifact = &loaded
			}
		case errors.Is(err, os.ErrNotExist):
			// reconciliation restores it from the row
		default:
			return nil, err
		}
	}
	detail := FromDetail(*video, record, artifact, artifactPath)
	return &detail, nil
}
