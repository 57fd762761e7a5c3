package cell

import (
	"fmt"
	"strings"
)

// Tier is a resource fidelity level, ordered low to high.
type Tier int

const (
	TierPoster Tier = iota
	TierSmall
	TierFull

	tierCount = int(TierFull) + 1
)

// Tiers lists every tier in fidelity order.
var Tiers = []Tier{TierPoster, TierSmall, TierFull}

func (t Tier) String() string {
	switch t {
	case TierPoster:
		return "poster"
	case TierSmall:
		return "small"
	case TierFull:
		return "full"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t >= TierPoster && t <= TierFull
}

// Lower returns the next lower tier, or false at the poster tier.
func (t Tier) Lower() (Tier, bool) {
	if t <= TierPoster || !t.Valid() {
		return t, false
	}
	return t - 1, true
}

// ParseTier accepts tier names and the aliases used by the media routes.
func ParseTier(raw string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "poster", "thumb", "thumbnail":
		return TierPoster, nil
	case "small", "preview":
		return TierSmall, nil
	case "full", "viewer":
		return TierFull, nil
	default:
		return 0, fmt.Errorf("unknown tier %q", raw)
	}
}

// TierState tracks one tier of one cell.
type TierState int

const (
	StateUnloaded TierState = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s TierState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Display is the single active visual state of a cell.
type Display int

const (
	DisplayNone Display = iota
	DisplayPoster
	DisplayFull
)

func (d Display) String() string {
	switch d {
	case DisplayPoster:
		return "poster"
	case DisplayFull:
		return "full"
	default:
		return "none"
	}
}
