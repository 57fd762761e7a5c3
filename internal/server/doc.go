// Package server serves a media folder as a contact sheet over HTTP.
//
// The server owns the catalog for one media directory, renders the sheet
// page, streams source files and derived artifacts, exposes the cell list to
// headless viewers, and builds packed archives on request while publishing
// their progress as server-sent events. A flock on the cache directory keeps
// a second instance from serving the same cache concurrently.
package server
