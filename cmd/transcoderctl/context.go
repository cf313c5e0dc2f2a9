package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"transcoderctl/internal/alerts"
	"transcoderctl/internal/api"
	"transcoderctl/internal/config"
	"transcoderctl/internal/ledger"
	"transcoderctl/internal/logging"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	ledgerOnce sync.Once
	ledger     *ledger.Store
	ledgerErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
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
		if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
			cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(*c.apiFlag), "/")
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// loggerValue builds the configured logger once. A logger that cannot be
// built falls back to a no-op so commands still run.
func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg := c.configValue()
		if cfg == nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewFromConfig(cfg, c.loggerValue())
}

// ledgerStore opens the ledger once. It returns nil without error when the
// ledger is disabled.
func (c *commandContext) ledgerStore() (*ledger.Store, error) {
	c.ledgerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.ledgerErr = err
			return
		}
		store, err := ledger.OpenConfig(cfg)
		if errors.Is(err, ledger.ErrDisabled) {
			return
		}
		if err != nil {
			c.ledgerErr = fmt.Errorf("open ledger: %w", err)
			return
		}
		c.ledger = store
	})
	return c.ledger, c.ledgerErr
}

// alertBoard prints every notice raised by the internal packages to the
// command's stderr.
func (c *commandContext) alertBoard(cmd *cobra.Command) *alerts.Board {
	var delay time.Duration
	if cfg := c.configValue(); cfg != nil {
		delay = cfg.AlertDismissDelay()
	}
	out := cmd.ErrOrStderr()
	colorize := shouldColorize(out)
	return alerts.NewBoard(delay, alerts.WithOnChange(func(a alerts.Alert, shown bool) {
		if !shown {
			return
		}
		fmt.Fprintln(out, renderAlert(a, colorize))
	}))
}

func (c *commandContext) close() {
	if c.ledger != nil {
		_ = c.ledger.Close()
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
