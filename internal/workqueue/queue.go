// Package workqueue throttles background refresh jobs through a FIFO queue
// with a bounded number of active jobs.
//
// A Queue is owned by the viewer session's event loop and is not safe for
// concurrent use. Clear is the only cancellation primitive: it drains the
// queue, resets the active count, and invalidates every outstanding ticket.
package workqueue

import (
	"context"
	"log/slog"

	"csheet/internal/logging"
)

// DefaultWorkers is the active job cap when none is configured.
const DefaultWorkers = 20

// Job refreshes one cell.
type Job struct {
	CellID       string
	SkipIfLoaded bool
}

// Runner starts a job. It must eventually call ticket.Done exactly once,
// from the owning loop, whether the job succeeded or failed.
type Runner func(ctx context.Context, job Job, ticket *Ticket)

// Admit decides at consumption time whether a job is still worth running.
type Admit func(Job) bool

// Stats is a snapshot of queue accounting.
type Stats struct {
	Pending    int
	Active     int
	Started    int
	Dropped    int
	Completed  int
	PeakActive int
	Epoch      uint64
}

// Queue is a FIFO of refresh jobs.
type Queue struct {
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	workers int
	admit   Admit
	run     Runner
	logger  *slog.Logger

	pending []Job
	active  int
	epoch   uint64
	stats   Stats
	pumping bool
}

// New constructs a queue. workers <= 0 selects DefaultWorkers.
func New(ctx context.Context, workers int, admit Admit, run Runner, logger *slog.Logger) *Queue {
	if ctx == nil {
		ctx = context.Background()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if admit == nil {
		admit = func(Job) bool { return true }
	}
	q := &Queue{
		parent:  ctx,
		workers: workers,
		admit:   admit,
		run:     run,
		logger:  logging.NewComponentLogger(logger, "workqueue"),
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	return q
}

// Workers returns the active job cap.
func (q *Queue) Workers() int { return q.workers }

// Enqueue appends job and starts queued work while capacity allows.
func (q *Queue) Enqueue(job Job) {
	q.pending = append(q.pending, job)
	q.pump()
}

// Clear drops every queued job, resets the active count to zero, and
// invalidates tickets handed out before the call.
func (q *Queue) Clear() {
	dropped := len(q.pending)
	abandoned := q.active
	q.pending = nil
	q.active = 0
	q.epoch++
	q.cancel()
	q.ctx, q.cancel = context.WithCancel(q.parent)
	if dropped > 0 || abandoned > 0 {
		q.logger.Debug("work queue cleared",
			logging.Int("dropped", dropped),
			logging.Int("abandoned", abandoned),
			logging.Uint64("epoch", q.epoch),
		)
	}
}

// Close cancels outstanding work. The queue must not be used afterwards.
func (q *Queue) Close() {
	q.pending = nil
	q.active = 0
	q.epoch++
	q.cancel()
}

// Stats returns the current accounting.
func (q *Queue) Stats() Stats {
	s := q.stats
	s.Pending = len(q.pending)
	s.Active = q.active
	s.Epoch = q.epoch
	return s
}

func (q *Queue) pump() {
	// Runners may finish synchronously; the outer pump picks up the slack.
	if q.pumping {
		return
	}
	q.pumping = true
	defer func() { q.pumping = false }()
	for q.active < q.workers && len(q.pending) > 0 {
		job := q.pending[0]
		q.pending = q.pending[1:]
		if !q.admit(job) {
			q.stats.Dropped++
			continue
		}
		q.active++
		q.stats.Started++
		if q.active > q.stats.PeakActive {
			q.stats.PeakActive = q.active
		}
		ticket := &Ticket{queue: q, epoch: q.epoch}
		if q.run == nil {
			ticket.Done()
			continue
		}
		q.run(q.ctx, job, ticket)
	}
}

func (q *Queue) finish(epoch uint64) {
	if epoch != q.epoch {
		return
	}
	if q.active > 0 {
		q.active--
	}
	q.stats.Completed++
	q.pump()
}

// Ticket tracks one started job.
type Ticket struct {
	queue *Queue
	epoch uint64
	done  bool
}

// Live reports whether the queue has not been cleared since the job started.
func (t *Ticket) Live() bool {
	return t != nil && !t.done && t.queue.epoch == t.epoch
}

// Done releases the job's capacity. Extra calls and calls after Clear are
// ignored.
func (t *Ticket) Done() {
	if t == nil || t.done {
		return
	}
	t.done = true
	t.queue.finish(t.epoch)
}
