package cell

// Box is the display geometry of a cell in pixels.
type Box struct {
	Width  float64
	Height float64
}

// Spec is the static data a grid supplies for one cell.
type Spec struct {
	ID     string
	Poster string
	Small  string
	Full   string
	Drag   string
}

// Cell is one grid entry.
type Cell struct {
	ID       string
	Position int
	Drag     string
	// Aspect is width/height; zero until the first sized success.
	Aspect float64
	Box    Box

	urls     [tierCount]string
	sources  [tierCount]string
	states   [tierCount]TierState
	expanded bool
	failed   bool
}

// URL returns the configured resource reference for t.
func (c *Cell) URL(t Tier) string {
	if !t.Valid() {
		return ""
	}
	return c.urls[t]
}

// Source returns the active resource reference for t, or "" when released.
func (c *Cell) Source(t Tier) string {
	if !t.Valid() {
		return ""
	}
	return c.sources[t]
}

// State returns the load state of t.
func (c *Cell) State(t Tier) TierState {
	if !t.Valid() {
		return StateUnloaded
	}
	return c.states[t]
}

// Loading reports whether a probe is in flight for t.
func (c *Cell) Loading(t Tier) bool {
	return c.State(t) == StateLoading
}

// Loaded reports whether t currently holds a source from a successful load.
func (c *Cell) Loaded(t Tier) bool {
	return c.State(t) == StateLoaded && c.Source(t) != ""
}

// Expanded reports whether a poster has rendered successfully at least once.
func (c *Cell) Expanded() bool { return c.expanded }

// Shrunk is the negation of Expanded.
func (c *Cell) Shrunk() bool { return !c.expanded }

// Updating reports whether any tier is loading.
func (c *Cell) Updating() bool {
	for _, st := range c.states {
		if st == StateLoading {
			return true
		}
	}
	return false
}

// Failed reports the failure flag; it is never true while updating.
func (c *Cell) Failed() bool {
	return c.failed && !c.Updating()
}

// Display derives the active visual state from the held sources.
func (c *Cell) Display() Display {
	if c.sources[TierFull] != "" {
		return DisplayFull
	}
	if c.sources[TierPoster] != "" || c.sources[TierSmall] != "" {
		return DisplayPoster
	}
	return DisplayNone
}

// Classes returns the visual classes of the cell in a stable order.
func (c *Cell) Classes() []string {
	classes := make([]string, 0, 2)
	if c.expanded {
		classes = append(classes, "expanded")
	} else {
		classes = append(classes, "shrunk")
	}
	switch {
	case c.Updating():
		classes = append(classes, "updating")
	case c.Failed():
		classes = append(classes, "failed")
	}
	return classes
}
