package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"marketscout/internal/api"
	"marketscout/internal/config"
	"marketscout/internal/daemonctl"
	"marketscout/internal/daemonrun"
	"marketscout/internal/logging"
	"marketscout/internal/queue"
)

type commandContext struct {
	configFlag *string
	jsonOutput bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
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

// withService opens the store for the duration of fn. Daily run operations
// are not wired; commands that need them use withComponents.
func (c *commandContext) withService(fn func(*api.Service, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()
	return fn(api.NewService(store, nil), store)
}

// withComponents builds the full pipeline in-process.
func (c *commandContext) withComponents(cmd *cobra.Command, logger *slog.Logger, fn func(*daemonrun.Components, *api.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	components, err := daemonrun.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	svc := api.NewService(components.Store, components.Orchestrator, api.WithWorkflow(components.Workflow))
	return fn(components, svc)
}

// daemonClient returns a client when the daemon API answers, nil otherwise.
func (c *commandContext) daemonClient(ctx context.Context) *daemonctl.Client {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil
	}
	client, err := daemonctl.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil || client == nil {
		return nil
	}
	if _, err := client.Status(ctx); err != nil {
		return nil
	}
	return client
}

// commandLogger logs to stderr at the configured level, or warn when quiet.
func (c *commandContext) commandLogger(quiet bool) *slog.Logger {
	cfg, err := c.ensureConfig()
	level := "info"
	format := "console"
	if err == nil {
		level = cfg.Logging.Level
		format = cfg.Logging.Format
	}
	if quiet {
		level = "warn"
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           format,
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
