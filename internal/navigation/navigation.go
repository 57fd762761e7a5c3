// Package navigation walks a grid in position order, skipping shrunk cells.
package navigation

import "csheet/internal/cell"

// Direction selects the walk direction.
type Direction int

const (
	Next Direction = iota
	Prev
)

func (d Direction) String() string {
	if d == Prev {
		return "prev"
	}
	return "next"
}

// Target is a rendered navigation control.
type Target struct {
	Cell     *cell.Cell
	Href     string
	Disabled bool
}

// Step returns the first non-shrunk sibling of id in direction dir.
func Step(store *cell.Store, id string, dir Direction) (*cell.Cell, bool) {
	if store == nil {
		return nil, false
	}
	from, ok := store.Get(id)
	if !ok {
		return nil, false
	}
	delta := 1
	if dir == Prev {
		delta = -1
	}
	for pos := from.Position + delta; ; pos += delta {
		c, ok := store.At(pos)
		if !ok {
			return nil, false
		}
		if !c.Shrunk() {
			return c, true
		}
	}
}

// NextOf returns the next non-shrunk cell after id.
func NextOf(store *cell.Store, id string) (*cell.Cell, bool) {
	return Step(store, id, Next)
}

// PrevOf returns the previous non-shrunk cell before id.
func PrevOf(store *cell.Store, id string) (*cell.Cell, bool) {
	return Step(store, id, Prev)
}

// Link renders the control for dir. A missing target disables the control
// instead of producing an "#undefined" link.
func Link(store *cell.Store, id string, dir Direction) Target {
	c, ok := Step(store, id, dir)
	if !ok {
		return Target{Disabled: true}
	}
	return Target{Cell: c, Href: "#" + c.ID}
}

// RenderCounter renders "{total-shrunk}/{total}".
func RenderCounter(counter cell.Counter) string {
	return counter.String()
}
