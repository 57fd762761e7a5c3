package viewer

import (
	"csheet/internal/cell"
)

// View is the rendered projection of one cell.
type View struct {
	ID       string            `json:"id"`
	Position int               `json:"position"`
	Classes  []string          `json:"classes"`
	Display  string            `json:"display"`
	Box      cell.Box          `json:"box"`
	Aspect   float64           `json:"aspect"`
	Expanded bool              `json:"expanded"`
	Updating bool              `json:"updating"`
	Failed   bool              `json:"failed"`
	Sources  map[string]string `json:"sources,omitempty"`
	Drag     string            `json:"drag,omitempty"`
}

// Snapshot is the projection of a whole grid.
type Snapshot struct {
	SessionID string `json:"session_id"`
	Counter   string `json:"counter"`
	Loaded    int    `json:"loaded"`
	Total     int    `json:"total"`
	Cells     []View `json:"cells"`
}

func project(c *cell.Cell) View {
	v := View{
		ID:       c.ID,
		Position: c.Position,
		Classes:  c.Classes(),
		Display:  c.Display().String(),
		Box:      c.Box,
		Aspect:   c.Aspect,
		Expanded: c.Expanded(),
		Updating: c.Updating(),
		Failed:   c.Failed(),
		Drag:     c.Drag,
	}
	for _, tier := range cell.Tiers {
		if src := c.Source(tier); src != "" {
			if v.Sources == nil {
				v.Sources = make(map[string]string, len(cell.Tiers))
			}
			v.Sources[tier.String()] = src
		}
	}
	return v
}
