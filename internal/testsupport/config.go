package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidsentry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WatchDir = filepath.Join(base, "watch")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "watch", "detections")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Database.Path = filepath.Join(base, "state", "vidsentry.db")
	cfgVal.Stability.PollIntervalSeconds = 0.02
	cfgVal.Notifications.OnSuccess = false
	cfgVal.Notifications.OnFailure = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithFilter overrides the temporal filter parameters.
func WithFilter(frameThreshold, gapTolerance int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Filter.FrameThreshold = frameThreshold
		b.cfg.Filter.GapTolerance = gapTolerance
	}
}

// WithPollInterval overrides the stability poll interval.
func WithPollInterval(d time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Stability.PollIntervalSeconds = d.Seconds()
	}
}

// WithDetectorEndpoint points the detector at a test server.
func WithDetectorEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detector.Endpoint = endpoint
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
