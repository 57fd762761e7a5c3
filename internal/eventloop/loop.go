// Package eventloop runs posted tasks one at a time on a single goroutine.
//
// State owned by a loop is only touched from tasks running on it, so it needs
// no locking. Blocking work runs through Go, which executes off the loop and
// posts its continuation back.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"csheet/internal/logging"
)

var (
	// ErrStopped is returned when a task cannot run because the loop exited.
	ErrStopped = errors.New("event loop stopped")
	// ErrRunning is returned by a second concurrent call to Run.
	ErrRunning = errors.New("event loop already running")
)

// Loop is a single-goroutine FIFO task runner.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []func()
	stopped bool
	busy    int
	idle    chan struct{}

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	running  atomic.Bool
}

// New constructs an idle loop. Tasks may be posted before Run.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = logging.NewNop()
	}
	idle := make(chan struct{})
	close(idle)
	return &Loop{
		logger: logger,
		idle:   idle,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.shutdown()

	for {
		if task, ok := l.next(); ok {
			l.exec(task)
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-l.quit:
			return nil
		case <-l.wake:
		}
	}
}

// Stop asks Run to return after the current task.
func (l *Loop) Stop() {
	l.quitOnce.Do(func() { close(l.quit) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post enqueues fn without blocking. It returns false once the loop stopped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.acquireLocked()
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Go runs work on its own goroutine and posts then(result) back to the loop.
// It returns false when the loop already stopped; then is dropped silently if
// the loop stops while work is running.
func Go[T any](l *Loop, ctx context.Context, work func(context.Context) T, then func(T)) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.acquireLocked()
	l.mu.Unlock()

	go func() {
		defer l.release(1)
		result := work(ctx)
		if then != nil {
			l.Post(func() { then(result) })
		}
	}()
	return true
}

// Quiesce waits until no task is queued and no Go work is outstanding.
func (l *Loop) Quiesce(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.busy == 0 {
			l.mu.Unlock()
			return nil
		}
		idle := l.idle
		l.mu.Unlock()
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return ErrStopped
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil, false
	}
	task := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return task, true
}

func (l *Loop) exec(task func()) {
	defer l.release(1)
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(l.logger, "event loop task panicked", "task_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "a viewer handler panicked; state for that cell may be stale"),
			)
		}
	}()
	task()
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	l.stopped = true
	dropped := len(l.tasks)
	l.tasks = nil
	l.mu.Unlock()
	if dropped > 0 {
		l.release(dropped)
	}
	close(l.done)
}

func (l *Loop) acquireLocked() {
	if l.busy == 0 {
		l.idle = make(chan struct{})
	}
	l.busy++
}

func (l *Loop) release(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy == 0 {
		return
	}
	l.busy -= n
	if l.busy <= 0 {
		l.busy = 0
		close(l.idle)
	}
}
