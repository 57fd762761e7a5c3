package catalog

import "errors"

var (
	// ErrNotFound is returned when an item id is not in the catalog.
	ErrNotFound = errors.New("catalog item not found")
	// ErrSchemaMismatch indicates the database schema version doesn't match.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
