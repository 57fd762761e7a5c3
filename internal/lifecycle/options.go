package lifecycle

import (
	"context"
	"fmt"

	"csheet/internal/cell"
	"csheet/internal/probe"
)

// Options tune one LoadTier call.
type Options struct {
	// ForceRefresh stamps the URL so caches are bypassed.
	ForceRefresh bool
	// SkipIfLoaded turns the call into a no-op when the tier already holds a
	// successful load.
	SkipIfLoaded bool
	// Guard is evaluated when the probe returns. Returning false discards the
	// outcome and only releases the in-flight mark.
	Guard func() bool
	// Done receives the outcome after cell state has been updated. It runs
	// once per LoadTier call.
	Done func(Result)
	// Context bounds the probe. Defaults to the controller context.
	Context context.Context
	// Fallback retries the next lower tier after a failure, with the same
	// Guard. Done then reports the last tier attempted; Result.Tier tells
	// which one.
	Fallback bool
}

// Outcome classifies a LoadTier result.
type Outcome int

const (
	OutcomeLoaded Outcome = iota
	OutcomeFailed
	OutcomeDeduped
	OutcomeSkipped
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeFailed:
		return "failed"
	case OutcomeDeduped:
		return "deduped"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result reports how a LoadTier call ended.
type Result struct {
	CellID     string
	Tier       cell.Tier
	Outcome    Outcome
	URL        string
	Dimensions probe.Dimensions
	Err        error
}

// Geometry sizes cell boxes.
type Geometry struct {
	TargetHeight      float64
	PlaceholderWidth  float64
	PlaceholderHeight float64
}

// DefaultGeometry mirrors the configuration defaults.
func DefaultGeometry() Geometry {
	return Geometry{TargetHeight: 200, PlaceholderWidth: 64, PlaceholderHeight: 36}
}

func (g Geometry) normalized() Geometry {
	def := DefaultGeometry()
	if g.TargetHeight <= 0 {
		g.TargetHeight = def.TargetHeight
	}
	if g.PlaceholderWidth <= 0 {
		g.PlaceholderWidth = def.PlaceholderWidth
	}
	if g.PlaceholderHeight <= 0 {
		g.PlaceholderHeight = def.PlaceholderHeight
	}
	return g
}

// Placeholder is the box of a shrunk cell.
func (g Geometry) Placeholder() cell.Box {
	return cell.Box{Width: g.PlaceholderWidth, Height: g.PlaceholderHeight}
}

// Expanded is the box of an expanded cell. Unknown aspect ratios fall back to
// the placeholder proportions.
func (g Geometry) Expanded(aspect float64) cell.Box {
	if aspect <= 0 {
		aspect = g.PlaceholderWidth / g.PlaceholderHeight
	}
	return cell.Box{Width: g.TargetHeight * aspect, Height: g.TargetHeight}
}
