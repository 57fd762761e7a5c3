// Package preflight checks that the configured folders and helper binaries
// are usable before the server starts.
package preflight
