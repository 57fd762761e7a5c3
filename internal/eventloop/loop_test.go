package eventloop_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"csheet/internal/eventloop"
)

func startLoop(t *testing.T) (*eventloop.Loop, context.CancelFunc) {
	t.Helper()
	loop := eventloop.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop, cancel
}

func TestPostRunsInOrder(t *testing.T) {
	loop, _ := startLoop(t)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		loop.Post(func() { order = append(order, i) })
	}
	if err := loop.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(order))
	}
}

func TestGoPostsContinuationToLoop(t *testing.T) {
	loop, _ := startLoop(t)
	var onLoop atomic.Bool
	var got int
	var inLoop atomic.Bool

	loop.Post(func() { inLoop.Store(true) })
	eventloop.Go(loop, context.Background(), func(context.Context) int {
		return 42
	}, func(v int) {
		onLoop.Store(inLoop.Load())
		got = v
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := loop.Quiesce(ctx); err != nil {
		t.Fatalf("Quiesce: %v", err)
	}
	if err := loop.Do(ctx, func() {
		if got != 42 {
			t.Errorf("expected 42, got %d", got)
		}
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !onLoop.Load() {
		t.Fatal("continuation should run after earlier posted tasks")
	}
}

func TestPostAfterStopFails(t *testing.T) {
	loop := eventloop.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	cancel()
	<-loop.Done()

	if loop.Post(func() {}) {
		t.Fatal("Post should fail after stop")
	}
	if err := loop.Do(context.Background(), func() {}); !errors.Is(err, eventloop.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if eventloop.Go(loop, context.Background(), func(context.Context) int { return 0 }, nil) {
		t.Fatal("Go should fail after stop")
	}
}

func TestRunTwiceFails(t *testing.T) {
	loop, _ := startLoop(t)
	if err := loop.Do(context.Background(), func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if err := loop.Run(context.Background()); !errors.Is(err, eventloop.ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	loop, _ := startLoop(t)
	loop.Post(func() { panic("boom") })
	ran := false
	if err := loop.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Fatal("loop should keep running after a panic")
	}
}

func TestStopReturnsRun(t *testing.T) {
	loop := eventloop.New(nil)
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(context.Background()) }()
	loop.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
