package cell

import (
	"errors"
	"fmt"
	"strings"
)

// Store owns the ordered cells of one grid and the shrunk counter.
type Store struct {
	cells   []*Cell
	byID    map[string]*Cell
	counter Counter
}

// NewStore builds a store in position order. Every cell starts shrunk.
func NewStore(specs []Spec) (*Store, error) {
	s := &Store{
		cells: make([]*Cell, 0, len(specs)),
		byID:  make(map[string]*Cell, len(specs)),
	}
	for i, spec := range specs {
		id := strings.TrimSpace(spec.ID)
		if id == "" {
			return nil, fmt.Errorf("cell %d: missing id", i)
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("cell %d: duplicate id %q", i, id)
		}
		c := &Cell{ID: id, Position: i, Drag: spec.Drag}
		c.urls[TierPoster] = spec.Poster
		c.urls[TierSmall] = spec.Small
		c.urls[TierFull] = spec.Full
		s.cells = append(s.cells, c)
		s.byID[id] = c
	}
	s.counter = Counter{Shrunk: len(s.cells), Total: len(s.cells)}
	return s, nil
}

// ErrUnknownCell is returned for ids not present in the store.
var ErrUnknownCell = errors.New("unknown cell")

// Get looks a cell up by id.
func (s *Store) Get(id string) (*Cell, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Lookup is Get returning ErrUnknownCell.
func (s *Store) Lookup(id string) (*Cell, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCell, id)
	}
	return c, nil
}

// At returns the cell at position.
func (s *Store) At(position int) (*Cell, bool) {
	if position < 0 || position >= len(s.cells) {
		return nil, false
	}
	return s.cells[position], true
}

// Len returns the number of cells.
func (s *Store) Len() int { return len(s.cells) }

// Each visits cells in position order until fn returns false.
func (s *Store) Each(fn func(*Cell) bool) {
	for _, c := range s.cells {
		if !fn(c) {
			return
		}
	}
}

// Counter returns the current counter.
func (s *Store) Counter() Counter { return s.counter }

// BeginLoad marks t as loading. It returns false when a load is already in
// flight for the same tier.
func (s *Store) BeginLoad(c *Cell, t Tier) bool {
	if !t.Valid() || c.states[t] == StateLoading {
		return false
	}
	c.states[t] = StateLoading
	return true
}

// CompleteLoad records a successful load. The aspect ratio is only set once.
func (s *Store) CompleteLoad(c *Cell, t Tier, source string, aspect float64) {
	if !t.Valid() {
		return
	}
	c.states[t] = StateLoaded
	c.sources[t] = source
	c.failed = false
	if c.Aspect == 0 && aspect > 0 {
		c.Aspect = aspect
	}
}

// FailLoad records a failed attempt. Any previously held source is kept.
func (s *Store) FailLoad(c *Cell, t Tier) {
	if !t.Valid() {
		return
	}
	if c.sources[t] != "" {
		c.states[t] = StateLoaded
	} else {
		c.states[t] = StateFailed
	}
	c.failed = true
}

// CancelLoad releases the in-flight mark without recording an outcome.
func (s *Store) CancelLoad(c *Cell, t Tier) {
	if !t.Valid() || c.states[t] != StateLoading {
		return
	}
	if c.sources[t] != "" {
		c.states[t] = StateLoaded
	} else {
		c.states[t] = StateUnloaded
	}
}

// Release drops the source held for t. An in-flight load keeps its mark.
// It reports whether anything changed.
func (s *Store) Release(c *Cell, t Tier) bool {
	if !t.Valid() {
		return false
	}
	changed := c.sources[t] != ""
	c.sources[t] = ""
	if c.states[t] != StateLoading && c.states[t] != StateUnloaded {
		c.states[t] = StateUnloaded
		changed = true
	}
	return changed
}

// SetExpanded flips the expanded flag and keeps the counter in step. It
// reports whether the flag changed.
func (s *Store) SetExpanded(c *Cell, expanded bool) bool {
	if c.expanded == expanded {
		return false
	}
	c.expanded = expanded
	if expanded {
		s.counter.Shrunk--
	} else {
		s.counter.Shrunk++
	}
	return true
}
