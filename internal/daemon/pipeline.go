package daemon

import (
	"log/slog"

	"vidsentry/internal/config"
	"vidsentry/internal/decoder"
	"vidsentry/internal/detector"
	"vidsentry/internal/notifications"
)

// Pipeline holds the external capabilities the orchestrator drives.
type Pipeline struct {
	Decoder  decoder.Decoder
	Detector detector.Detector
	Notifier notifications.Service
}

// DefaultPipeline builds the production capabilities from cfg: ffmpeg frame
// decoding, the HTTP inference service bounded to max_concurrent in-flight
// calls, and ntfy notifications.
func DefaultPipeline(cfg *config.Config, logger *slog.Logger) Pipeline {
	client := detector.NewHTTPClient(detector.Config{
		Endpoint:       cfg.Detector.Endpoint,
		Model:          cfg.Detector.Model,
		TimeoutSeconds: cfg.Detector.TimeoutSeconds,
	})
	return Pipeline{
		Decoder:  decoder.NewFFmpeg(cfg.Decoder.FFmpegBinary, cfg.Decoder.FFprobeBinary, logger),
		Detector: detector.NewLimited(client, cfg.Detector.MaxConcurrent),
		Notifier: notifications.NewService(cfg),
	}
}
