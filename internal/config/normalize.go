package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	envWatchDir         = "VIDSENTRY_WATCH_DIR"
	envDetectorEndpoint = "VIDSENTRY_DETECTOR_ENDPOINT"
	envDatabasePath     = "VIDSENTRY_DATABASE_PATH"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeDetector()
	c.normalizeDecoder()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(envWatchDir); ok && strings.TrimSpace(value) != "" {
		c.Paths.WatchDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		c.Paths.WatchDir = defaultWatchDir
	}

	var err error
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		c.Paths.ArtifactDir = filepath.Join(c.Paths.WatchDir, defaultArtifactSubdir)
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeDatabase() error {
	if value, ok := os.LookupEnv(envDatabasePath); ok && strings.TrimSpace(value) != "" {
		c.Database.Path = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = filepath.Join(c.Paths.StateDir, defaultDatabaseFile)
	}
	var err error
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDetector() {
	if value, ok := os.LookupEnv(envDetectorEndpoint); ok && strings.TrimSpace(value) != "" {
		c.Detector.Endpoint = value
	}
	c.Detector.Endpoint = strings.TrimRight(strings.TrimSpace(c.Detector.Endpoint), "/")
	c.Detector.Model = strings.TrimSpace(c.Detector.Model)
	if c.Detector.TimeoutSeconds <= 0 {
		c.Detector.TimeoutSeconds = defaultDetectorTimeoutSeconds
	}
}

func (c *Config) normalizeDecoder() {
	c.Decoder.FFmpegBinary = strings.TrimSpace(c.Decoder.FFmpegBinary)
	if c.Decoder.FFmpegBinary == "" {
		c.Decoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Decoder.FFprobeBinary = strings.TrimSpace(c.Decoder.FFprobeBinary)
	if c.Decoder.FFprobeBinary == "" {
		c.Decoder.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
