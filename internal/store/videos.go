package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const videoColumns = "id, filename, created_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		video      Video
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&video.ID, &video.Filename, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = created
	}
	return &video, nil
}

// InsertVideo claims filename. ErrDuplicate is returned when another caller
// already holds the claim.
func (s *Store) InsertVideo(ctx context.Context, filename string) (*Video, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, errors.New("filename is empty")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO videos (filename, created_at) VALUES (?, ?)`,
		filename,
		formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, filename)
		}
		return nil, fmt.Errorf("insert video: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Video{ID: id, Filename: filename, CreatedAt: now}, nil
}

// FindVideo returns the video claimed under filename, or nil when none exists.
func (s *Store) FindVideo(ctx context.Context, filename string) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+videoColumns+` FROM videos WHERE filename = ?`, filename)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find video: %w", err)
	}
	return video, nil
}

// GetVideo fetches a video by identifier, or nil when none exists.
func (s *Store) GetVideo(ctx context.Context, id int64) (*Video, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// VideoExists reports whether filename has been claimed.
func (s *Store) VideoExists(ctx context.Context, filename string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM videos WHERE filename = ?`, filename).Scan(&count); err != nil {
		return false, fmt.Errorf("check video: %w", err)
	}
	return count > 0, nil
}

// DeleteVideo removes a video and its detection row in one transaction. It
// reports false when no video had that id.
func (s *Store) DeleteVideo(ctx context.Context, id int64) (bool, error) {
	ctx = ensureContext(ctx)
	var deleted bool
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM detections WHERE video_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		deleted = affected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete video: %w", err)
	}
	return deleted, nil
}

// ListVideos returns every video with its summary, oldest first.
func (s *Store) ListVideos(ctx context.Context) ([]VideoListing, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
        SELECT v.id, v.filename, v.created_at, d.id, d.classes_detected, d.max_count_per_frame, d.created_at
        FROM videos v
        LEFT JOIN detections d ON d.video_id = v.id
        ORDER BY v.created_at, v.id`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var listings []VideoListing
	for rows.Next() {
		var (
			listing     VideoListing
			createdRaw  sql.NullString
			detectionID sql.NullInt64
			classes     sql.NullString
			maxCounts   sql.NullString
			detectedRaw sql.NullString
		)
		if err := rows.Scan(&listing.ID, &listing.Filename, &createdRaw, &detectionID, &classes, &maxCounts, &detectedRaw); err != nil {
			return nil, fmt.Errorf("scan video listing: %w", err)
		}
		if created, err := parseTimeString(createdRaw.String); err == nil {
			listing.CreatedAt = created
		}
		listing.HasDetection = detectionID.Valid
		if listing.HasDetection {
			summary, err := parseSummary(classes, maxCounts)
			if err != nil {
				return nil, fmt.Errorf("video %s: %w", listing.Filename, err)
			}
			listing.Summary = summary
			if detected, err := parseTimeString(detectedRaw.String); err == nil {
				listing.DetectedAt = detected
			}
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// VideosWithoutDetection returns claimed videos that never got a summary.
func (s *Store) VideosWithoutDetection(ctx context.Context) ([]Video, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
        SELECT v.id, v.filename, v.created_at
        FROM videos v
        WHERE NOT EXISTS (SELECT 1 FROM detections d WHERE d.video_id = v.id)
        ORDER BY v.id`)
	if err != nil {
		return nil, fmt.Errorf("query videos without detection: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}
