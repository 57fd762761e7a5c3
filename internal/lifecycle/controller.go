package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"csheet/internal/cell"
	"csheet/internal/eventloop"
	"csheet/internal/logging"
	"csheet/internal/probe"
	"csheet/internal/stamp"
)

// Controller owns tier transitions for one grid.
type Controller struct {
	ctx      context.Context
	store    *cell.Store
	loop     *eventloop.Loop
	prober   probe.Prober
	stamper  *stamp.Stamper
	geometry Geometry
	logger   *slog.Logger
	onChange []func(*cell.Cell)
}

// Config wires a Controller.
type Config struct {
	Store    *cell.Store
	Loop     *eventloop.Loop
	Prober   probe.Prober
	Stamper  *stamp.Stamper
	Geometry Geometry
	Logger   *slog.Logger
}

// New constructs a controller and gives every cell its placeholder box.
func New(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.Store == nil || cfg.Loop == nil || cfg.Prober == nil {
		return nil, errors.New("lifecycle controller requires store, loop, and prober")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Stamper == nil {
		cfg.Stamper = stamp.New()
	}
	ctl := &Controller{
		ctx:      ctx,
		store:    cfg.Store,
		loop:     cfg.Loop,
		prober:   cfg.Prober,
		stamper:  cfg.Stamper,
		geometry: cfg.Geometry.normalized(),
		logger:   logging.NewComponentLogger(cfg.Logger, "lifecycle"),
	}
	ctl.store.Each(func(c *cell.Cell) bool {
		if c.Shrunk() {
			c.Box = ctl.geometry.Placeholder()
		}
		return true
	})
	return ctl, nil
}

// OnChange registers fn to run after every cell transition.
func (ctl *Controller) OnChange(fn func(*cell.Cell)) {
	if fn != nil {
		ctl.onChange = append(ctl.onChange, fn)
	}
}

// Store returns the controlled store.
func (ctl *Controller) Store() *cell.Store { return ctl.store }

// Counter returns the loaded/total counter.
func (ctl *Controller) Counter() cell.Counter { return ctl.store.Counter() }

// LoadTier requests the resource for tier on c.
func (ctl *Controller) LoadTier(c *cell.Cell, tier cell.Tier, opts Options) {
	if c == nil || !tier.Valid() {
		return
	}
	if c.Loading(tier) {
		ctl.finish(opts, Result{CellID: c.ID, Tier: tier, Outcome: OutcomeDeduped})
		return
	}
	if opts.SkipIfLoaded && c.Loaded(tier) {
		ctl.finish(opts, Result{CellID: c.ID, Tier: tier, Outcome: OutcomeSkipped, URL: c.Source(tier)})
		return
	}

	raw := c.URL(tier)
	if stamp.IsNull(raw) {
		ctl.store.FailLoad(c, tier)
		ctl.afterFailure(c, tier, opts, Result{CellID: c.ID, Tier: tier, Outcome: OutcomeFailed, Err: probe.ErrUnavailable})
		return
	}

	target := raw
	if opts.ForceRefresh || c.Source(tier) != "" {
		target = ctl.stamper.Stamp(raw)
	}

	ctl.store.BeginLoad(c, tier)
	ctl.notify(c)
	ctx := opts.Context
	if ctx == nil {
		ctx = ctl.ctx
	}

	type outcome struct {
		dims probe.Dimensions
		err  error
	}
	started := eventloop.Go(ctl.loop, ctx, func(ctx context.Context) outcome {
		dims, err := ctl.prober.Probe(ctx, target)
		return outcome{dims: dims, err: err}
	}, func(out outcome) {
		ctl.complete(c, tier, target, opts, out.dims, out.err)
	})
	if !started {
		ctl.store.CancelLoad(c, tier)
	}
}

func (ctl *Controller) complete(c *cell.Cell, tier cell.Tier, target string, opts Options, dims probe.Dimensions, err error) {
	result := Result{CellID: c.ID, Tier: tier, URL: target, Dimensions: dims, Err: err}
	if opts.Guard != nil && !opts.Guard() {
		ctl.store.CancelLoad(c, tier)
		ctl.notify(c)
		result.Outcome = OutcomeDiscarded
		ctl.logger.Debug("load no longer relevant",
			logging.CellID(c.ID),
			logging.Tier(tier.String()),
		)
		ctl.finish(opts, result)
		return
	}

	if err != nil {
		ctl.store.FailLoad(c, tier)
		result.Outcome = OutcomeFailed
		ctl.afterFailure(c, tier, opts, result)
		return
	}

	ctl.store.CompleteLoad(c, tier, target, dims.Aspect())
	ctl.Expand(c)
	c.Box = ctl.geometry.Expanded(c.Aspect)
	ctl.notify(c)
	result.Outcome = OutcomeLoaded
	ctl.logger.Debug("tier loaded",
		logging.CellID(c.ID),
		logging.Tier(tier.String()),
		logging.Int("width", dims.Width),
		logging.Int("height", dims.Height),
	)
	ctl.finish(opts, result)
}

func (ctl *Controller) afterFailure(c *cell.Cell, tier cell.Tier, opts Options, result Result) {
	if !c.Expanded() {
		ctl.Shrink(c)
	}
	ctl.notify(c)
	attrs := []logging.Attr{
		logging.CellID(c.ID),
		logging.Tier(tier.String()),
		logging.Bool("stale_kept", c.Source(tier) != ""),
	}
	if result.Err != nil {
		attrs = append(attrs, logging.Error(result.Err))
	}
	ctl.logger.Debug("tier load failed", logging.Args(attrs...)...)

	if opts.Fallback {
		if lower, ok := tier.Lower(); ok {
			ctl.LoadTier(c, lower, opts)
			return
		}
	}
	ctl.finish(opts, result)
}

func (ctl *Controller) finish(opts Options, result Result) {
	if opts.Done != nil {
		opts.Done(result)
	}
}

// UnloadTier releases the source held for tier. Unloading the poster of a
// cell that never loaded successfully shrinks it.
func (ctl *Controller) UnloadTier(c *cell.Cell, tier cell.Tier) {
	if c == nil || !tier.Valid() {
		return
	}
	changed := ctl.store.Release(c, tier)
	if tier == cell.TierPoster && !c.Expanded() {
		ctl.Shrink(c)
	}
	if changed {
		ctl.notify(c)
	}
}

// Shrink marks c as shrunk and gives it the placeholder box.
func (ctl *Controller) Shrink(c *cell.Cell) {
	if c == nil || !ctl.store.SetExpanded(c, false) {
		return
	}
	c.Box = ctl.geometry.Placeholder()
	ctl.notify(c)
}

// Expand marks c as expanded and sizes it from its aspect ratio.
func (ctl *Controller) Expand(c *cell.Cell) {
	if c == nil || !ctl.store.SetExpanded(c, true) {
		return
	}
	c.Box = ctl.geometry.Expanded(c.Aspect)
	ctl.notify(c)
}

func (ctl *Controller) notify(c *cell.Cell) {
	for _, fn := range ctl.onChange {
		fn(c)
	}
}
