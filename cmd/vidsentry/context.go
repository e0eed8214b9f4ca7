package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"vidsentry/internal/config"
	"vidsentry/internal/daemon"
	"vidsentry/internal/logging"
	"vidsentry/internal/persistence"
	"vidsentry/internal/store"
)

// newPipeline builds the decoder, detector, and notifier used by run and
// ingest. Tests swap it for scripted fakes.
var newPipeline = daemon.DefaultPipeline

var errDaemonRunning = errors.New("the vidsentry daemon is running")

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// openCoordinator opens the store and wraps it in a persistence coordinator.
// The caller closes the returned store.
func (c *commandContext) openCoordinator(logger *slog.Logger) (*config.Config, *store.Store, *persistence.Coordinator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return cfg, st, persistence.New(st, cfg.Paths.ArtifactDir, logger), nil
}

// acquireDaemonLock takes the daemon lock so no daemon can start while a
// maintenance command runs. It fails with errDaemonRunning when held.
func acquireDaemonLock(cfg *config.Config) (*flock.Flock, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("probe daemon lock: %w", err)
	}
	if !ok {
		return nil, errDaemonRunning
	}
	return lock, nil
}

// daemonRunning reports whether another process holds the daemon lock.
func daemonRunning(cfg *config.Config) bool {
	lock, err := acquireDaemonLock(cfg)
	if err != nil {
		return errors.Is(err, errDaemonRunning)
	}
	_ = lock.Unlock()
	return false
}

func commandLogger(cfg *config.Config) *slog.Logger {
	level := "warn"
	if cfg != nil && strings.EqualFold(cfg.Logging.Level, "debug") {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
