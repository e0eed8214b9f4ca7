package config

const (
	defaultWatchDir               = "~/vidsentry/inbox"
	defaultArtifactSubdir         = "detections"
	defaultStateDir               = "~/.local/share/vidsentry"
	defaultLogDir                 = "~/.local/share/vidsentry/logs"
	defaultDatabaseFile           = "vidsentry.db"
	defaultAPIBind                = "127.0.0.1:7490"
	defaultDetectorEndpoint       = "http://127.0.0.1:8081"
	defaultDetectorModel          = "yolov8n.pt"
	defaultConfidenceThreshold    = 0.5
	defaultIoUThreshold           = 0.5
	defaultDetectorTimeoutSeconds = 30
	defaultDetectorMaxConcurrent  = 1
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultFrameThreshold         = 10
	defaultGapTolerance           = 3
	defaultPollIntervalSeconds    = 1.0
	defaultRequiredEqualReads     = 2
	defaultWorkers                = 2
	defaultQueueSize              = 64
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir: defaultWatchDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Detector: Detector{
			Endpoint:            defaultDetectorEndpoint,
			Model:               defaultDetectorModel,
			ConfidenceThreshold: defaultConfidenceThreshold,
			IoUThreshold:        defaultIoUThreshold,
			TimeoutSeconds:      defaultDetectorTimeoutSeconds,
			MaxConcurrent:       defaultDetectorMaxConcurrent,
		},
		Decoder: Decoder{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Filter: Filter{
			FrameThreshold: defaultFrameThreshold,
			GapTolerance:   defaultGapTolerance,
		},
		Stability: Stability{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			RequiredEqualReads:  defaultRequiredEqualReads,
		},
		Workflow: Workflow{
			Workers:          defaultWorkers,
			QueueSize:        defaultQueueSize,
			ReconcileOnStart: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			OnSuccess:      true,
			OnFailure:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
