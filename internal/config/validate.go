package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	if err := c.validateStability(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		return errors.New("paths.watch_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		return errors.New("paths.artifact_dir must be set")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	return nil
}

func (c *Config) validateDetector() error {
	endpoint := strings.TrimSpace(c.Detector.Endpoint)
	if endpoint == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/vidsentry/config.toml"
		}
		return fmt.Errorf("detector.endpoint is required. Set %s or edit %s (create with 'vidsentry config init')", envDetectorEndpoint, defaultPath)
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("detector.endpoint %q must be an absolute http(s) URL", endpoint)
	}
	if err := ensureUnitInterval(map[string]float64{
		"detector.confidence_threshold": c.Detector.ConfidenceThreshold,
		"detector.iou_threshold":        c.Detector.IoUThreshold,
	}); err != nil {
		return err
	}
	if c.Detector.MaxConcurrent < 1 {
		return errors.New("detector.max_concurrent must be at least 1")
	}
	return nil
}

func (c *Config) validateFilter() error {
	if c.Filter.FrameThreshold < 0 {
		return errors.New("filter.frame_threshold must not be negative")
	}
	if c.Filter.GapTolerance < 0 {
		return errors.New("filter.gap_tolerance must not be negative")
	}
	return nil
}

func (c *Config) validateStability() error {
	if c.Stability.PollIntervalSeconds <= 0 || math.IsNaN(c.Stability.PollIntervalSeconds) {
		return errors.New("stability.poll_interval_seconds must be positive")
	}
	if c.Stability.RequiredEqualReads < 1 {
		return errors.New("stability.required_equal_reads must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.workers":              c.Workflow.Workers,
		"workflow.queue_size":           c.Workflow.QueueSize,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func ensureUnitInterval(values map[string]float64) error {
	for key, value := range values {
		if math.IsNaN(value) || value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}
	return nil
}
