package cell

import "strconv"

// Counter tracks shrunk cells against the grid total.
type Counter struct {
	Shrunk int
	Total  int
}

// Loaded returns the number of expanded cells.
func (c Counter) Loaded() int {
	return c.Total - c.Shrunk
}

func (c Counter) String() string {
	return strconv.Itoa(c.Loaded()) + "/" + strconv.Itoa(c.Total)
}
