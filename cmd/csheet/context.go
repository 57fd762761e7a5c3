package main

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"csheet/internal/catalog"
	"csheet/internal/config"
	"csheet/internal/logging"
)

type commandContext struct {
	configFlag *string
	mediaFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, mediaFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		mediaFlag:  mediaFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.mediaFlag != nil && strings.TrimSpace(*c.mediaFlag) != "" {
			media, err := config.ExpandPath(strings.TrimSpace(*c.mediaFlag))
			if err != nil {
				c.configErr = err
				return
			}
			cfg.Paths.MediaDir = media
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configPath is the --config value, empty when the default location applies.
func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// loggerFor returns the configured logger, falling back to a no-op logger
// when logging cannot be initialised.
func (c *commandContext) loggerFor() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) mediaDir() (string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	dir := strings.TrimSpace(cfg.Paths.MediaDir)
	if dir == "" {
		return "", errors.New("no media directory: set media_dir, CSHEET_MEDIA_DIR, or --media")
	}
	return dir, nil
}

func (c *commandContext) withCatalog(fn func(*catalog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg, c.loggerFor())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
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
