package workqueue

import (
	"context"
	"testing"
)

type started struct {
	job    Job
	ctx    context.Context
	ticket *Ticket
}

type fakeRunner struct {
	runs []started
}

func (f *fakeRunner) run(ctx context.Context, job Job, ticket *Ticket) {
	f.runs = append(f.runs, started{job: job, ctx: ctx, ticket: ticket})
}

func TestQueueCapsActiveJobs(t *testing.T) {
	runner := &fakeRunner{}
	q := New(context.Background(), 3, nil, runner.run, nil)
	for i := 0; i < 10; i++ {
		q.Enqueue(Job{CellID: string(rune('a' + i))})
	}
	if got := q.Stats(); got.Active != 3 || got.Pending != 7 {
		t.Fatalf("unexpected stats %+v", got)
	}

	for i := 0; i < 10; i++ {
		runner.runs[i].ticket.Done()
		if got := q.Stats(); got.Active > 3 {
			t.Fatalf("active exceeded cap: %+v", got)
		}
	}
	got := q.Stats()
	if got.Active != 0 || got.Pending != 0 || got.Completed != 10 || got.PeakActive != 3 {
		t.Fatalf("unexpected final stats %+v", got)
	}
	for i, r := range runner.runs {
		if r.job.CellID != string(rune('a'+i)) {
			t.Fatalf("jobs started out of FIFO order at %d: %s", i, r.job.CellID)
		}
	}
}

func TestQueueDropsInvisibleJobsWithoutCapacity(t *testing.T) {
	runner := &fakeRunner{}
	visible := map[string]bool{"a": true, "c": true}
	q := New(context.Background(), 1, func(j Job) bool { return visible[j.CellID] }, runner.run, nil)

	q.Enqueue(Job{CellID: "a"})
	q.Enqueue(Job{CellID: "b"})
	q.Enqueue(Job{CellID: "c"})
	q.Enqueue(Job{CellID: "d"})

	runner.runs[0].ticket.Done()
	if len(runner.runs) != 2 || runner.runs[1].job.CellID != "c" {
		t.Fatalf("expected c to start after a, got %d runs", len(runner.runs))
	}
	runner.runs[1].ticket.Done()

	got := q.Stats()
	if got.Active != 0 || got.Dropped != 2 || got.Started != 2 || got.Completed != 2 || got.Pending != 0 {
		t.Fatalf("unexpected stats %+v", got)
	}
}

func TestQueueAllowsDuplicateJobs(t *testing.T) {
	runner := &fakeRunner{}
	q := New(context.Background(), 5, nil, runner.run, nil)
	q.Enqueue(Job{CellID: "a"})
	q.Enqueue(Job{CellID: "a", SkipIfLoaded: true})
	if len(runner.runs) != 2 || !runner.runs[1].job.SkipIfLoaded {
		t.Fatalf("expected two independent jobs, got %+v", runner.runs)
	}
}

func TestClearResetsAccountingAndInvalidatesTickets(t *testing.T) {
	runner := &fakeRunner{}
	q := New(context.Background(), 2, nil, runner.run, nil)
	for i := 0; i < 5; i++ {
		q.Enqueue(Job{CellID: "x"})
	}
	old := runner.runs[0]

	q.Clear()
	if got := q.Stats(); got.Active != 0 || got.Pending != 0 {
		t.Fatalf("clear should reset accounting, got %+v", got)
	}
	if old.ticket.Live() {
		t.Fatal("tickets from before Clear must not be live")
	}
	if old.ctx.Err() == nil {
		t.Fatal("context of cleared jobs should be cancelled")
	}

	q.Enqueue(Job{CellID: "y"})
	fresh := runner.runs[len(runner.runs)-1]
	if !fresh.ticket.Live() || fresh.ctx.Err() != nil {
		t.Fatal("new jobs should run in a fresh epoch")
	}

	old.ticket.Done()
	runner.runs[1].ticket.Done()
	if got := q.Stats(); got.Active != 1 || got.Completed != 0 {
		t.Fatalf("stale completions must not change accounting, got %+v", got)
	}
	fresh.ticket.Done()
	fresh.ticket.Done()
	if got := q.Stats(); got.Active != 0 || got.Completed != 1 {
		t.Fatalf("unexpected stats %+v", got)
	}
}

func TestDefaultWorkers(t *testing.T) {
	q := New(context.Background(), 0, nil, nil, nil)
	if q.Workers() != DefaultWorkers {
		t.Fatalf("expected %d workers, got %d", DefaultWorkers, q.Workers())
	}
	q.Enqueue(Job{CellID: "a"})
	if got := q.Stats(); got.Completed != 1 || got.Active != 0 {
		t.Fatalf("jobs without a runner complete immediately, got %+v", got)
	}
}
