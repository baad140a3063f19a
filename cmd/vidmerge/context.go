package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vidmerge/internal/artifact"
	"vidmerge/internal/artifact/s3store"
	"vidmerge/internal/config"
	"vidmerge/internal/logging"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
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

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// JSONMode reports whether --json was given.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// logger builds the configured logger for long-running commands.
func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// openStore returns the configured artifact store backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (artifact.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendS3:
		store, err := s3store.NewFromConfig(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open s3 store: %w", err)
		}
		return store, nil
	default:
		return artifact.NewFSStore(cfg.Store.FSRoot, logger), nil
	}
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
