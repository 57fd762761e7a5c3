package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeThumbnails()
	c.normalizeCatalog()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		if value, ok := os.LookupEnv("CSHEET_MEDIA_DIR"); ok {
			c.Paths.MediaDir = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PackDir) == "" {
		c.Paths.PackDir = defaultPackDir
	}
	if c.Paths.PackDir, err = expandPath(c.Paths.PackDir); err != nil {
		return fmt.Errorf("paths.pack_dir: %w", err)
	}
	c.Paths.Bind = strings.TrimSpace(c.Paths.Bind)
	if c.Paths.Bind == "" {
		c.Paths.Bind = defaultBind
	}
	return nil
}

func (c *Config) normalizeThumbnails() {
	c.Thumbnails.FFmpegBinary = strings.TrimSpace(c.Thumbnails.FFmpegBinary)
	if c.Thumbnails.FFmpegBinary == "" {
		c.Thumbnails.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Thumbnails.Concurrency <= 0 {
		c.Thumbnails.Concurrency = defaultThumbnailConcurrency
	}
}

func (c *Config) normalizeCatalog() {
	if len(c.Catalog.Extensions) == 0 {
		c.Catalog.Extensions = append([]string(nil), defaultExtensions...)
		return
	}
	normalized := make([]string, 0, len(c.Catalog.Extensions))
	seen := make(map[string]struct{}, len(c.Catalog.Extensions))
	for _, ext := range c.Catalog.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		normalized = append(normalized, ext)
	}
	c.Catalog.Extensions = normalized
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
	if len(c.Logging.ComponentOverrides) > 0 {
		normalized := make(map[string]string, len(c.Logging.ComponentOverrides))
		for component, level := range c.Logging.ComponentOverrides {
			component = strings.ToLower(strings.TrimSpace(component))
			if component == "" {
				continue
			}
			normalized[component] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentOverrides = normalized
	}
}
