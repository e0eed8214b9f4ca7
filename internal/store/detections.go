package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vidsentry/internal/detection"
)

// InsertDetection stores the summary row for videoID. When finalize is not
// nil it runs after the insert and before the commit; an error from finalize
// discards the insert. This lets callers tie an on-disk write to the row.
func (s *Store) InsertDetection(ctx context.Context, videoID int64, artifactJSON []byte, summary detection.Summary, finalize func() error) (int64, error) {
	ctx = ensureContext(ctx)
	if !json.Valid(artifactJSON) {
		return 0, errors.New("insert detection: artifact is not valid JSON")
	}
	classes, classesValid := summary.ClassesColumn()
	maxCounts, maxValid, err := summary.MaxCountColumn()
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin detection tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	err = retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = tx.ExecContext(ctx,
			`INSERT INTO detections (video_id, detection_json, classes_detected, max_count_per_frame, created_at)
             VALUES (?, ?, ?, ?, ?)`,
			videoID,
			string(artifactJSON),
			nullableString(classes, classesValid),
			nullableString(maxCounts, maxValid),
			formatTime(time.Now()),
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("insert detection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if finalize != nil {
		if err := finalize(); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit detection: %w", err)
	}
	return id, nil
}

// GetDetection returns the detection row for videoID, or nil when none exists.
func (s *Store) GetDetection(ctx context.Context, videoID int64) (*DetectionRecord, error) {
	var (
		record     DetectionRecord
		payload    string
		classes    sql.NullString
		maxCounts  sql.NullString
		createdRaw sql.NullString
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, video_id, detection_json, classes_detected, max_count_per_frame, created_at
         FROM detections WHERE video_id = ?`,
		videoID,
	).Scan(&record.ID, &record.VideoID, &payload, &classes, &maxCounts, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get detection: %w", err)
	}
	record.DetectionJSON = []byte(payload)
	if record.Summary, err = parseSummary(classes, maxCounts); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	return &record, nil
}

func parseSummary(classes, maxCounts sql.NullString) (detection.Summary, error) {
	return detection.ParseSummaryColumns(classes.String, classes.Valid, maxCounts.String, maxCounts.Valid)
}
