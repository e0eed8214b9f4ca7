package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidsentry/internal/config"
	"vidsentry/internal/decoder"
	"vidsentry/internal/detection"
	"vidsentry/internal/detector"
	"vidsentry/internal/logging"
	"vidsentry/internal/notifications"
	"vidsentry/internal/persistence"
	"vidsentry/internal/services"
)

const progressEvery = 500

// Options carries the thresholds applied to every video.
type Options struct {
	ConfidenceThreshold float64
	IoUThreshold        float64
	Filter              detection.FilterOptions
}

// OptionsFromConfig extracts ingestion options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ConfidenceThreshold: cfg.Detector.ConfidenceThreshold,
		IoUThreshold:        cfg.Detector.IoUThreshold,
		Filter: detection.FilterOptions{
			FrameThreshold: cfg.Filter.FrameThreshold,
			GapTolerance:   cfg.Filter.GapTolerance,
		},
	}
}

// Orchestrator drives videos through claim, detection, filtering and commit.
type Orchestrator struct {
	coord    *persistence.Coordinator
	decoder  decoder.Decoder
	detector detector.Detector
	notifier notifications.Service
	opts     Options
	logger   *slog.Logger
}

// New constructs an orchestrator. A nil notifier disables notifications.
func New(coord *persistence.Coordinator, dec decoder.Decoder, det detector.Detector, notifier notifications.Service, opts Options, logger *slog.Logger) *Orchestrator {
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	return &Orchestrator{
		coord:    coord,
		decoder:  dec,
		detector: det,
		notifier: notifier,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "ingest"),
	}
}

// Ingest processes the video at path. Pipeline failures are rolled back and
// reported through Outcome.Err; the returned error is non-nil only when ctx
// ended before the video was finished.
func (o *Orchestrator) Ingest(ctx context.Context, path string) (Outcome, error) {
	filename := filepath.Base(path)
	requestID := uuid.NewString()
	started := time.Now()
	outcome := Outcome{Filename: filename, State: Pending, RequestID: requestID}

	ctx = services.WithVideo(ctx, filename)
	ctx = services.WithRequestID(ctx, requestID)
	logger := logging.WithContext(ctx, o.logger)

	finish := func(state State, err error) (Outcome, error) {
		outcome.State = state
		outcome.Err = err
		outcome.Duration = time.Since(started)
		if ctxErr := ctx.Err(); ctxErr != nil && state == Failed {
			return outcome, ctxErr
		}
		return outcome, nil
	}

	exists, err := o.coord.ExistsByFilename(ctx, filename)
	if err != nil {
		o.reportFailure(ctx, logger, filename, err)
		return finish(Failed, err)
	}
	if exists {
		logger.Info("duplicate arrival skipped", logging.String(logging.FieldEventType, "duplicate_skipped"))
		return finish(Duplicate, nil)
	}

	videoID, err := o.coord.CreatePlaceholder(ctx, filename)
	if err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			logger.Info("duplicate claim skipped", logging.String(logging.FieldEventType, "duplicate_skipped"))
			return finish(Duplicate, nil)
		}
		o.reportFailure(ctx, logger, filename, err)
		return finish(Failed, err)
	}
	outcome.VideoID = videoID
	logger.Info("video claimed", logging.VideoID(videoID), logging.String("path", path))

	fail := func(err error) (Outcome, error) {
		if rbErr := o.coord.Rollback(ctx, videoID); rbErr != nil {
			logging.ErrorWithContext(logger, "rollback failed", "rollback_failed",
				logging.VideoID(videoID),
				logging.Error(rbErr),
				logging.String(logging.FieldErrorHint, "run 'vidsentry reconcile' to clear the placeholder"),
			)
		}
		o.reportFailure(ctx, logger, filename, err)
		return finish(Failed, err)
	}

	outcome.State = Detecting
	detectCtx := services.WithStage(ctx, Detecting.String())
	raw, err := o.detect(detectCtx, logger, path)
	if err != nil {
		return fail(err)
	}
	outcome.TotalFrames = len(raw)

	outcome.State = Filtering
	filtered := detection.Filter(raw, o.opts.Filter)
	summary := detection.Summarize(filtered)
	artifact := detection.NewArtifact(filename, filtered)

	if err := o.coord.Commit(ctx, videoID, artifact, summary); err != nil {
		// Commit already rolled back the claim.
		o.reportFailure(ctx, logger, filename, err)
		return finish(Failed, err)
	}
	outcome.Summary = summary

	logger.Info("detection persisted",
		logging.VideoID(videoID),
		logging.Int("total_frames", artifact.TotalFrames),
		logging.Any("classes", summary.ClassesDetected),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "ingest_completed"),
	)
	if err := o.notifier.NotifyDetectionCompleted(ctx, filename, summary.ClassesDetected); err != nil {
		logging.WarnWithContext(logger, "completion notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no completion notification was delivered"),
		)
	}
	return finish(Persisted, nil)
}

// detect decodes path and returns one raw FrameRecord per frame, keeping only
// detections at or above the confidence threshold.
func (o *Orchestrator) detect(ctx context.Context, logger *slog.Logger, path string) ([]detection.FrameRecord, error) {
	src, err := o.decoder.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer src.Close()

	var frames []detection.FrameRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", len(frames)+1, err)
		}
		index := len(frames) + 1
		dets, err := o.detector.Detect(ctx, frame.Image, o.opts.ConfidenceThreshold, o.opts.IoUThreshold)
		if err != nil {
			return nil, fmt.Errorf("detect frame %d: %w", index, err)
		}
		frames = append(frames, detection.NewFrameRecord(index, o.keepConfident(dets)))
		if index%progressEvery == 0 {
			logger.Debug("detection progress", logging.Int("frames", index))
		}
	}
	return frames, nil
}

func (o *Orchestrator) keepConfident(dets []detection.FrameDetection) []detection.FrameDetection {
	kept := dets[:0:0]
	for _, det := range dets {
		if det.Confidence >= o.opts.ConfidenceThreshold {
			kept = append(kept, det)
		}
	}
	return kept
}

func (o *Orchestrator) reportFailure(ctx context.Context, logger *slog.Logger, filename string, err error) {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("ingestion abandoned on shutdown", logging.Error(err))
		return
	}
	logging.ErrorWithContext(logger, "ingestion failed", "ingest_failed",
		logging.Error(err),
		logging.String("failure_kind", services.FailureKind(err)),
		logging.String(logging.FieldErrorHint, failureHint(err)),
	)
	if notifyErr := o.notifier.NotifyDetectionFailed(context.WithoutCancel(ctx), filename, err); notifyErr != nil {
		logging.WarnWithContext(logger, "failure notification failed", "notification_failed",
			logging.Error(notifyErr),
			logging.String(logging.FieldImpact, "no failure notification was delivered"),
		)
	}
}

func failureHint(err error) string {
	switch services.FailureKind(err) {
	case "external_tool":
		return "check that ffmpeg and the detector service are reachable"
	case "validation":
		return "the source may not be a readable video"
	case "timeout":
		return "the detector did not answer in time; raise detector.timeout_seconds"
	default:
		return "check logs for details"
	}
}

// Remove deletes everything recorded for filename. It reports false when
// nothing was recorded.
func (o *Orchestrator) Remove(ctx context.Context, filename string) (bool, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	ctx = services.WithVideo(ctx, filename)
	logger := logging.WithContext(ctx, o.logger)

	deleted, err := o.coord.DeleteByFilename(ctx, filename)
	if err != nil {
		logging.ErrorWithContext(logger, "remove failed", "remove_failed", logging.Error(err))
		return false, err
	}
	if deleted {
		logger.Info("records removed", logging.String(logging.FieldEventType, "video_removed"))
	}
	return deleted, nil
}
