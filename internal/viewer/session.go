package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"csheet/internal/cell"
	"csheet/internal/eventloop"
	"csheet/internal/lifecycle"
	"csheet/internal/logging"
	"csheet/internal/navigation"
	"csheet/internal/visibility"
	"csheet/internal/workqueue"
)

// Session is one grid instance.
type Session struct {
	id      string
	opts    Options
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	loop    *eventloop.Loop
	store   *cell.Store
	tracker *visibility.Tracker
	ctl     *lifecycle.Controller
	queue   *workqueue.Queue

	// Loop-owned state.
	gridActive  bool
	autoRefresh bool
	hovered     map[string]bool
	viewing     string
	stopTicker  context.CancelFunc
	listeners   []func(View)
}

// New builds a session over cells in grid order. Nothing loads until Run is
// called and cells are laid out inside the viewport.
func New(cells []cell.Spec, opts Options) (*Session, error) {
	if opts.Prober == nil {
		return nil, errors.New("viewer session requires a prober")
	}
	store, err := cell.NewStore(cells)
	if err != nil {
		return nil, fmt.Errorf("build cell store: %w", err)
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	logger := logging.NewComponentLogger(opts.Logger, "viewer").With(
		logging.SessionID(opts.SessionID),
	)

	ctx, cancel := context.WithCancel(context.Background())
	loop := eventloop.New(logger)
	ctl, err := lifecycle.New(ctx, lifecycle.Config{
		Store:    store,
		Loop:     loop,
		Prober:   opts.Prober,
		Stamper:  opts.Stamper,
		Geometry: opts.Geometry,
		Logger:   opts.Logger,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Session{
		id:         opts.SessionID,
		opts:       opts,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		loop:       loop,
		store:      store,
		ctl:        ctl,
		gridActive: true,
		hovered:    make(map[string]bool),
	}
	s.tracker = visibility.New(opts.PreloadMargin, s.handleVisibility)
	s.queue = workqueue.New(ctx, opts.Workers, s.admit, s.runJob, opts.Logger)
	ctl.OnChange(s.changed)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Run drives the session until ctx is cancelled or Close is called.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Debug("viewer session started", logging.Int("cells", s.store.Len()))
	err := s.loop.Run(ctx)
	s.cancel()
	if s.stopTicker != nil {
		s.stopTicker()
	}
	s.logger.Debug("viewer session stopped")
	return err
}

// Close stops the session. In-flight probes are cancelled.
func (s *Session) Close() {
	s.cancel()
	s.loop.Stop()
}

// Idle waits until no event or probe is outstanding.
func (s *Session) Idle(ctx context.Context) error {
	return s.loop.Quiesce(ctx)
}

// OnChange registers fn to receive the projection of every changed cell. It
// must be called before Run.
func (s *Session) OnChange(fn func(View)) {
	if fn != nil {
		s.listeners = append(s.listeners, fn)
	}
}

func (s *Session) post(fn func()) error {
	if !s.loop.Post(fn) {
		return eventloop.ErrStopped
	}
	return nil
}

// Scroll moves the viewport.
func (s *Session) Scroll(viewport visibility.Rect) error {
	return s.post(func() { s.tracker.Scroll(viewport) })
}

// Layout places (or moves) a cell on the page.
func (s *Session) Layout(id string, rect visibility.Rect) error {
	return s.post(func() {
		if _, ok := s.store.Get(id); !ok {
			s.logger.Debug("layout for unknown cell ignored", logging.CellID(id))
			return
		}
		s.tracker.Relayout(id, rect)
	})
}

// Remove takes a cell off the page, releasing its resources if it was shown.
func (s *Session) Remove(id string) error {
	return s.post(func() { s.tracker.Unobserve(id) })
}

// Hover loads the small tier of id. The result is kept only while the
// pointer is still over the cell and the cell is on screen.
func (s *Session) Hover(id string) error {
	return s.withCell(id, func(c *cell.Cell) {
		s.hovered[c.ID] = true
		s.ctl.LoadTier(c, cell.TierSmall, lifecycle.Options{
			SkipIfLoaded: true,
			Fallback:     s.opts.Fallback,
			Guard:        func() bool { return s.hovered[c.ID] && s.tracker.Appeared(c.ID) },
		})
	})
}

// Leave releases the small tier of id.
func (s *Session) Leave(id string) error {
	return s.withCell(id, func(c *cell.Cell) {
		delete(s.hovered, c.ID)
		s.ctl.UnloadTier(c, cell.TierSmall)
	})
}

// Zoom opens the full-resolution viewer on id. Opening it on another cell
// releases the previous one.
func (s *Session) Zoom(id string) error {
	return s.withCell(id, func(c *cell.Cell) {
		s.openViewer(c, lifecycle.Options{ForceRefresh: true, Fallback: s.opts.Fallback})
	})
}

// CloseViewer releases the full tier of id.
func (s *Session) CloseViewer(id string) error {
	return s.withCell(id, func(c *cell.Cell) {
		if s.viewing == c.ID {
			s.viewing = ""
		}
		s.ctl.UnloadTier(c, cell.TierFull)
	})
}

// Navigate resolves the prev/next control for id, releases the full tier of
// id and moves the viewer to the target. A missing target yields a disabled
// control and leaves the viewer where it is.
func (s *Session) Navigate(ctx context.Context, id string, dir navigation.Direction) (navigation.Target, error) {
	var target navigation.Target
	err := s.loop.Do(ctx, func() {
		target = navigation.Link(s.store, id, dir)
		if target.Disabled {
			return
		}
		if from, ok := s.store.Get(id); ok {
			s.ctl.UnloadTier(from, cell.TierFull)
		}
		s.openViewer(target.Cell, lifecycle.Options{SkipIfLoaded: true})
		// Cells must not escape the loop.
		target.Cell = nil
	})
	return target, err
}

func (s *Session) openViewer(c *cell.Cell, opts lifecycle.Options) {
	if s.viewing != "" && s.viewing != c.ID {
		if prev, ok := s.store.Get(s.viewing); ok {
			s.ctl.UnloadTier(prev, cell.TierFull)
		}
	}
	s.viewing = c.ID
	opts.Guard = func() bool { return s.viewing == c.ID }
	s.ctl.LoadTier(c, cell.TierFull, opts)
}

// SetGridActive records whether the grid view is showing. Queued jobs are
// dropped while it is not.
func (s *Session) SetGridActive(active bool) error {
	return s.post(func() { s.gridActive = active })
}

// StartAutoRefresh clears the queue and force refreshes every appeared cell,
// then keeps refreshing on the configured interval.
func (s *Session) StartAutoRefresh() error {
	return s.post(func() {
		s.queue.Clear()
		s.autoRefresh = true
		s.sweep()
		s.startTicker()
		s.logger.Info("auto refresh started",
			logging.Int("workers", s.queue.Workers()),
			logging.Duration("interval", s.opts.RefreshInterval),
		)
	})
}

// StopAutoRefresh clears the queue and returns to direct loading.
func (s *Session) StopAutoRefresh() error {
	return s.post(func() {
		s.queue.Clear()
		s.autoRefresh = false
		if s.stopTicker != nil {
			s.stopTicker()
			s.stopTicker = nil
		}
		s.logger.Info("auto refresh stopped")
	})
}

// RefreshAll queues a forced refresh for every appeared cell.
func (s *Session) RefreshAll() error {
	return s.post(s.sweep)
}

// Counter returns the loaded/total counter.
func (s *Session) Counter(ctx context.Context) (cell.Counter, error) {
	var counter cell.Counter
	err := s.loop.Do(ctx, func() { counter = s.store.Counter() })
	return counter, err
}

// Stats returns the work queue accounting.
func (s *Session) Stats(ctx context.Context) (workqueue.Stats, error) {
	var stats workqueue.Stats
	err := s.loop.Do(ctx, func() { stats = s.queue.Stats() })
	return stats, err
}

// Snapshot projects every cell.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.loop.Do(ctx, func() { snap = s.snapshot() })
	return snap, err
}

// View projects one cell.
func (s *Session) View(ctx context.Context, id string) (View, error) {
	var (
		view View
		err  error
	)
	if doErr := s.loop.Do(ctx, func() {
		c, lookupErr := s.store.Lookup(id)
		if lookupErr != nil {
			err = lookupErr
			return
		}
		view = project(c)
	}); doErr != nil {
		return View{}, doErr
	}
	return view, err
}

func (s *Session) snapshot() Snapshot {
	counter := s.store.Counter()
	snap := Snapshot{
		SessionID: s.id,
		Counter:   navigation.RenderCounter(counter),
		Loaded:    counter.Loaded(),
		Total:     counter.Total,
		Cells:     make([]View, 0, s.store.Len()),
	}
	s.store.Each(func(c *cell.Cell) bool {
		snap.Cells = append(snap.Cells, project(c))
		return true
	})
	return snap
}

func (s *Session) withCell(id string, fn func(*cell.Cell)) error {
	return s.post(func() {
		c, ok := s.store.Get(id)
		if !ok {
			s.logger.Debug("event for unknown cell ignored", logging.CellID(id))
			return
		}
		fn(c)
	})
}

func (s *Session) handleVisibility(ev visibility.Event) {
	c, ok := s.store.Get(ev.ID)
	if !ok {
		return
	}
	switch ev.Kind {
	case visibility.Appear:
		if s.autoRefresh {
			s.queue.Enqueue(workqueue.Job{CellID: c.ID, SkipIfLoaded: true})
			return
		}
		s.ctl.LoadTier(c, cell.TierPoster, lifecycle.Options{
			SkipIfLoaded: true,
			Fallback:     s.opts.Fallback,
			Guard:        func() bool { return s.tracker.Appeared(c.ID) },
		})
	case visibility.Disappear:
		delete(s.hovered, c.ID)
		s.ctl.UnloadTier(c, cell.TierSmall)
		s.ctl.UnloadTier(c, cell.TierFull)
		s.ctl.UnloadTier(c, cell.TierPoster)
	}
}

func (s *Session) admit(job workqueue.Job) bool {
	return s.gridActive && s.tracker.Appeared(job.CellID)
}

func (s *Session) runJob(ctx context.Context, job workqueue.Job, ticket *workqueue.Ticket) {
	c, ok := s.store.Get(job.CellID)
	if !ok {
		ticket.Done()
		return
	}
	s.ctl.LoadTier(c, cell.TierPoster, lifecycle.Options{
		Context:      ctx,
		SkipIfLoaded: job.SkipIfLoaded,
		ForceRefresh: !job.SkipIfLoaded,
		Guard: func() bool {
			return ticket.Live() && s.gridActive && s.tracker.Appeared(c.ID)
		},
		Done: func(lifecycle.Result) { ticket.Done() },
	})
}

func (s *Session) sweep() {
	for _, id := range s.tracker.AppearedIDs() {
		s.queue.Enqueue(workqueue.Job{CellID: id})
	}
}

func (s *Session) startTicker() {
	if s.opts.RefreshInterval <= 0 || s.stopTicker != nil {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.stopTicker = cancel
	interval := s.opts.RefreshInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.loop.Post(func() {
					if s.autoRefresh && ctx.Err() == nil {
						s.sweep()
					}
				})
			}
		}
	}()
}

func (s *Session) changed(c *cell.Cell) {
	if len(s.listeners) == 0 {
		return
	}
	view := project(c)
	for _, fn := range s.listeners {
		fn(view)
	}
}
