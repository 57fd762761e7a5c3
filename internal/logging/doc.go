// Package logging assembles structured slog loggers and formatting helpers used
// across csheet components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes field constants so the viewer, the work queue, and the
// server tag log lines with cell identifiers and resource tiers the same way.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
