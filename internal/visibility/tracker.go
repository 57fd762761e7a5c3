// Package visibility tracks which grid cells intersect the viewport.
package visibility

import "sort"

// Rect is an axis-aligned rectangle in page coordinates.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Grow expands r by margin on every side.
func (r Rect) Grow(margin float64) Rect {
	return Rect{X: r.X - margin, Y: r.Y - margin, Width: r.Width + 2*margin, Height: r.Height + 2*margin}
}

// Intersects reports whether r and o overlap. Touching edges do not count.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// EventKind distinguishes appear and disappear transitions.
type EventKind int

const (
	Appear EventKind = iota
	Disappear
)

func (k EventKind) String() string {
	if k == Appear {
		return "appear"
	}
	return "disappear"
}

// Event is one visibility transition.
type Event struct {
	Kind EventKind
	ID   string
}

type entry struct {
	rect     Rect
	appeared bool
	order    int
}

// Tracker keeps a boolean appeared state per observed cell. It is not safe
// for concurrent use; the viewer session drives it from its loop.
type Tracker struct {
	margin   float64
	viewport Rect
	entries  map[string]*entry
	seq      int
	emit     func(Event)
}

// New constructs a tracker that reports transitions to emit.
func New(margin float64, emit func(Event)) *Tracker {
	if margin < 0 {
		margin = 0
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Tracker{margin: margin, entries: make(map[string]*entry), emit: emit}
}

// Observe starts tracking id. A cell already inside the viewport appears.
func (t *Tracker) Observe(id string, rect Rect) {
	if e, ok := t.entries[id]; ok {
		e.rect = rect
		t.update(id, e)
		return
	}
	e := &entry{rect: rect, order: t.seq}
	t.seq++
	t.entries[id] = e
	t.update(id, e)
}

// Relayout moves an observed cell. Unknown ids are observed.
func (t *Tracker) Relayout(id string, rect Rect) {
	t.Observe(id, rect)
}

// Unobserve stops tracking id, emitting Disappear if it had appeared.
func (t *Tracker) Unobserve(id string) {
	e, ok := t.entries[id]
	if !ok {
		return
	}
	delete(t.entries, id)
	if e.appeared {
		t.emit(Event{Kind: Disappear, ID: id})
	}
}

// Scroll moves the viewport and emits transitions in observation order.
func (t *Tracker) Scroll(viewport Rect) {
	t.viewport = viewport
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return t.entries[ids[i]].order < t.entries[ids[j]].order
	})
	for _, id := range ids {
		if e, ok := t.entries[id]; ok {
			t.update(id, e)
		}
	}
}

// Viewport returns the last viewport passed to Scroll.
func (t *Tracker) Viewport() Rect { return t.viewport }

// Appeared reports whether id is currently inside the grown viewport.
func (t *Tracker) Appeared(id string) bool {
	e, ok := t.entries[id]
	return ok && e.appeared
}

// Observed reports whether id is tracked.
func (t *Tracker) Observed(id string) bool {
	_, ok := t.entries[id]
	return ok
}

// AppearedIDs returns the appeared cells in observation order.
func (t *Tracker) AppearedIDs() []string {
	type pair struct {
		id    string
		order int
	}
	list := make([]pair, 0, len(t.entries))
	for id, e := range t.entries {
		if e.appeared {
			list = append(list, pair{id: id, order: e.order})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].order < list[j].order })
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.id
	}
	return ids
}

func (t *Tracker) update(id string, e *entry) {
	inside := e.rect.Intersects(t.viewport.Grow(t.margin)) && !t.viewport.Empty()
	if inside == e.appeared {
		return
	}
	e.appeared = inside
	if inside {
		t.emit(Event{Kind: Appear, ID: id})
	} else {
		t.emit(Event{Kind: Disappear, ID: id})
	}
}
