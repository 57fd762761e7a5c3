package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	MediaDir string `toml:"media_dir"`
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
	PackDir  string `toml:"pack_dir"`
	Bind     string `toml:"bind"`
}

// Viewer contains the lifecycle controller and work queue limits.
type Viewer struct {
	// WorkerNumber caps concurrently active background refresh jobs.
	WorkerNumber int `toml:"worker_number"`
	// PreloadMargin grows the viewport (in pixels) before intersection tests so
	// cells start loading just before they scroll into view.
	PreloadMargin     int `toml:"preload_margin"`
	TargetHeight      int `toml:"target_height"`
	PlaceholderWidth  int `toml:"placeholder_width"`
	PlaceholderHeight int `toml:"placeholder_height"`
	// RefreshIntervalSeconds re-sweeps appeared cells while auto refresh is on.
	// Zero disables the periodic sweep.
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`
	ProbeTimeoutSeconds    int `toml:"probe_timeout_seconds"`
}

// Thumbnails contains poster and preview generation settings.
type Thumbnails struct {
	Width          int    `toml:"width"`
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	PreviewSeconds int    `toml:"preview_seconds"`
	PreviewWidth   int    `toml:"preview_width"`
	Concurrency    int    `toml:"concurrency"`
}

// Catalog contains media catalog cache settings.
type Catalog struct {
	ExpireDays int      `toml:"expire_days"`
	Extensions []string `toml:"extensions"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
}

// Config encapsulates all configuration values for csheet.
//
// Configuration sections by subsystem:
//   - Paths: media folder, caches, logs, pack output, server bind address
//   - Viewer: lifecycle controller geometry and work queue throttling
//   - Thumbnails: poster scaling and ffmpeg preview generation
//   - Catalog: media scanning and cache expiry
//   - Logging: log format, level, and per-component overrides
type Config struct {
	Paths      Paths      `toml:"paths"`
	Viewer     Viewer     `toml:"viewer"`
	Thumbnails Thumbnails `toml:"thumbnails"`
	Catalog    Catalog    `toml:"catalog"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/csheet/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("csheet.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for server operation.
// The media folder is never created: it belongs to the pipeline that fills it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir, c.Paths.PackDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CatalogPath returns the SQLite catalog database location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.CacheDir, "catalog.db")
}

// ThumbnailDir returns the directory holding generated posters and previews.
func (c *Config) ThumbnailDir() string {
	return filepath.Join(c.Paths.CacheDir, "thumbs")
}

// LockPath returns the single-instance lock file for the server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "csheet.lock")
}

// ProbeTimeout returns the per-probe network timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Viewer.ProbeTimeoutSeconds) * time.Second
}

// RefreshInterval returns the auto-refresh sweep interval (zero disables it).
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Viewer.RefreshIntervalSeconds) * time.Second
}

// CatalogExpiry returns how long catalog records stay valid.
func (c *Config) CatalogExpiry() time.Duration {
	return time.Duration(c.Catalog.ExpireDays) * 24 * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
