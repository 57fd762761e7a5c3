package visibility

import (
	"reflect"
	"testing"
)

type recorder struct {
	events []Event
}

func (r *recorder) emit(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) take() []Event {
	out := r.events
	r.events = nil
	return out
}

func row(y float64) Rect { return Rect{X: 0, Y: y, Width: 100, Height: 100} }

func TestScrollEmitsTransitionsOnce(t *testing.T) {
	rec := &recorder{}
	tr := New(50, rec.emit)
	tr.Observe("a", row(0))
	tr.Observe("b", row(400))
	tr.Observe("c", row(1000))
	if got := rec.take(); len(got) != 0 {
		t.Fatalf("nothing should appear before the first scroll, got %v", got)
	}

	tr.Scroll(Rect{Width: 800, Height: 300})
	want := []Event{{Kind: Appear, ID: "a"}}
	if got := rec.take(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	tr.Scroll(Rect{Y: 20, Width: 800, Height: 300})
	if got := rec.take(); len(got) != 0 {
		t.Fatalf("repeated scroll must not re-emit, got %v", got)
	}

	tr.Scroll(Rect{Y: 300, Width: 800, Height: 300})
	want = []Event{{Kind: Disappear, ID: "a"}, {Kind: Appear, ID: "b"}}
	if got := rec.take(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if !tr.Appeared("b") || tr.Appeared("a") {
		t.Fatal("unexpected appeared state")
	}
}

func TestMarginPreloadsNearbyCells(t *testing.T) {
	rec := &recorder{}
	tr := New(200, rec.emit)
	tr.Observe("near", row(450))
	tr.Scroll(Rect{Width: 800, Height: 300})
	if !tr.Appeared("near") {
		t.Fatal("cell within the margin should appear")
	}
}

func TestObserveInsideViewportAppears(t *testing.T) {
	rec := &recorder{}
	tr := New(0, rec.emit)
	tr.Scroll(Rect{Width: 800, Height: 600})
	tr.Observe("a", row(10))
	if got := rec.take(); !reflect.DeepEqual(got, []Event{{Kind: Appear, ID: "a"}}) {
		t.Fatalf("unexpected events %v", got)
	}
	tr.Relayout("a", row(2000))
	if got := rec.take(); !reflect.DeepEqual(got, []Event{{Kind: Disappear, ID: "a"}}) {
		t.Fatalf("relayout out of view should disappear, got %v", got)
	}
}

func TestUnobserveAppearedCellDisappears(t *testing.T) {
	rec := &recorder{}
	tr := New(0, rec.emit)
	tr.Scroll(Rect{Width: 800, Height: 600})
	tr.Observe("a", row(0))
	tr.Observe("b", row(5000))
	rec.take()

	tr.Unobserve("a")
	tr.Unobserve("b")
	tr.Unobserve("missing")
	if got := rec.take(); !reflect.DeepEqual(got, []Event{{Kind: Disappear, ID: "a"}}) {
		t.Fatalf("unexpected events %v", got)
	}
	if tr.Observed("a") {
		t.Fatal("a should no longer be observed")
	}
}

func TestAppearedIDsInObservationOrder(t *testing.T) {
	tr := New(0, nil)
	tr.Observe("c", row(200))
	tr.Observe("a", row(0))
	tr.Observe("b", row(100))
	tr.Scroll(Rect{Width: 800, Height: 1000})
	if got := tr.AppearedIDs(); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("unexpected order %v", got)
	}
}
