package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateViewer(); err != nil {
		return err
	}
	if err := c.validateThumbnails(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateViewer() error {
	if c.Viewer.WorkerNumber <= 0 {
		return errors.New("viewer.worker_number must be positive")
	}
	if c.Viewer.PreloadMargin < 0 {
		return errors.New("viewer.preload_margin must be >= 0")
	}
	if c.Viewer.TargetHeight <= 0 {
		return errors.New("viewer.target_height must be positive")
	}
	if c.Viewer.PlaceholderWidth <= 0 || c.Viewer.PlaceholderHeight <= 0 {
		return errors.New("viewer.placeholder_width and viewer.placeholder_height must be positive")
	}
	if c.Viewer.RefreshIntervalSeconds < 0 {
		return errors.New("viewer.refresh_interval_seconds must be >= 0")
	}
	if c.Viewer.ProbeTimeoutSeconds <= 0 {
		return errors.New("viewer.probe_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateThumbnails() error {
	if c.Thumbnails.Width <= 0 {
		return errors.New("thumbnails.width must be positive")
	}
	if c.Thumbnails.PreviewWidth <= 0 {
		return errors.New("thumbnails.preview_width must be positive")
	}
	if c.Thumbnails.PreviewSeconds <= 0 {
		return errors.New("thumbnails.preview_seconds must be positive")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.ExpireDays <= 0 {
		return errors.New("catalog.expire_days must be positive")
	}
	if len(c.Catalog.Extensions) == 0 {
		return errors.New("catalog.extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	for _, level := range append([]string{c.Logging.Level}, overrideLevels(c.Logging.ComponentOverrides)...) {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging level: unsupported value %q", level)
		}
	}
	return nil
}

func overrideLevels(overrides map[string]string) []string {
	levels := make([]string, 0, len(overrides))
	for _, level := range overrides {
		levels = append(levels, level)
	}
	return levels
}
