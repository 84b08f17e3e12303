package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"seriate/internal/config"
	"seriate/internal/logging"
	"seriate/internal/pipeline"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
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
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// overrideDataDir repoints every derived path at dir for this invocation.
func (c *commandContext) overrideDataDir(dir string) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	expanded, err := config.ExpandPath(strings.TrimSpace(dir))
	if err != nil {
		return err
	}
	cfg.Paths.DataDir = expanded
	cfg.Paths.DatabasePath = filepath.Join(expanded, "seriate.db")
	cfg.Grouping.OverridesPath = filepath.Join(expanded, "series_overrides.json")
	return cfg.EnsureDirectories()
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		c.logger = logging.New(logging.Options{
			Format: cfg.Logging.Format,
			Level:  logging.ParseLevel(cfg.Logging.Level),
		})
	})
	return c.logger, nil
}

func (c *commandContext) newRunner() (*pipeline.Runner, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, logger)
}
