// Package cell holds the typed per-cell state of a contact sheet grid.
//
// A Store is owned by a single goroutine (the viewer session's loop) and is
// not safe for concurrent use. Visual classes such as "expanded" or "failed"
// are derived from the store, never written into it.
package cell
