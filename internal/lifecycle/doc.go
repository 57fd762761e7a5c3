// Package lifecycle decides which resource tier each grid cell holds.
//
// The Controller issues probes for tier loads, reconciles their completions
// with the current cell state, and applies the shrink/expand transitions that
// drive the loaded/total counter. All methods must be called on the session's
// event loop; probe completions are posted back to that loop.
//
// Failures are absorbed into cell state. A failed load is terminal for that
// attempt and is only retried by a later explicit trigger.
package lifecycle
