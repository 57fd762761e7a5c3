package config

const (
	defaultCacheDir               = "~/.cache/csheet"
	defaultLogDir                 = "~/.local/share/csheet/logs"
	defaultPackDir                = "~/.local/share/csheet/packs"
	defaultBind                   = "127.0.0.1:5000"
	defaultWorkerNumber           = 20
	defaultPreloadMargin          = 200
	defaultTargetHeight           = 200
	defaultPlaceholderWidth       = 64
	defaultPlaceholderHeight      = 36
	defaultProbeTimeoutSeconds    = 30
	defaultThumbnailWidth         = 320
	defaultFFmpegBinary           = "ffmpeg"
	defaultPreviewSeconds         = 3
	defaultPreviewWidth           = 320
	defaultThumbnailConcurrency   = 4
	defaultCatalogExpireDays      = 30
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultRefreshIntervalSeconds = 0
)

var defaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".mov", ".mp4"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
			PackDir:  defaultPackDir,
			Bind:     defaultBind,
		},
		Viewer: Viewer{
			WorkerNumber:           defaultWorkerNumber,
			PreloadMargin:          defaultPreloadMargin,
			TargetHeight:           defaultTargetHeight,
			PlaceholderWidth:       defaultPlaceholderWidth,
			PlaceholderHeight:      defaultPlaceholderHeight,
			RefreshIntervalSeconds: defaultRefreshIntervalSeconds,
			ProbeTimeoutSeconds:    defaultProbeTimeoutSeconds,
		},
		Thumbnails: Thumbnails{
			Width:          defaultThumbnailWidth,
			FFmpegBinary:   defaultFFmpegBinary,
			PreviewSeconds: defaultPreviewSeconds,
			PreviewWidth:   defaultPreviewWidth,
			Concurrency:    defaultThumbnailConcurrency,
		},
		Catalog: Catalog{
			ExpireDays: defaultCatalogExpireDays,
			Extensions: append([]string(nil), defaultExtensions...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
