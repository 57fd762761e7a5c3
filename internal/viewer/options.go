package viewer

import (
	"log/slog"
	"time"

	"csheet/internal/config"
	"csheet/internal/lifecycle"
	"csheet/internal/probe"
	"csheet/internal/stamp"
	"csheet/internal/workqueue"
)

// Options configure a Session.
type Options struct {
	Workers         int
	PreloadMargin   float64
	Geometry        lifecycle.Geometry
	RefreshInterval time.Duration
	// Fallback downgrades to a lower tier when a load fails.
	Fallback  bool
	Prober    probe.Prober
	Stamper   *stamp.Stamper
	Logger    *slog.Logger
	SessionID string
}

// OptionsFromConfig maps the [viewer] section onto session options. The
// prober resolves relative resource URLs against baseURL.
func OptionsFromConfig(cfg *config.Config, baseURL string, logger *slog.Logger) Options {
	opts := Options{
		Workers: workqueue.DefaultWorkers,
		Logger:  logger,
	}
	if cfg == nil {
		opts.Prober = probe.NewHTTP(probe.WithBaseURL(baseURL))
		return opts
	}
	opts.Workers = cfg.Viewer.WorkerNumber
	opts.PreloadMargin = float64(cfg.Viewer.PreloadMargin)
	opts.Geometry = lifecycle.Geometry{
		TargetHeight:      float64(cfg.Viewer.TargetHeight),
		PlaceholderWidth:  float64(cfg.Viewer.PlaceholderWidth),
		PlaceholderHeight: float64(cfg.Viewer.PlaceholderHeight),
	}
	opts.RefreshInterval = cfg.RefreshInterval()
	opts.Prober = probe.NewHTTP(
		probe.WithBaseURL(baseURL),
		probe.WithTimeout(cfg.ProbeTimeout()),
	)
	return opts
}
