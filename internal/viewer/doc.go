// Package viewer wires one contact sheet grid into a session.
//
// A Session owns the event loop, the cell store, the visibility tracker, the
// lifecycle controller, and the refresh work queue. Every public method may
// be called from any goroutine; the work itself always runs on the loop, so
// none of the owned components need locking.
//
// Grid events flow as follows:
//
//   - Appear loads the poster tier, directly or through the work queue while
//     auto-refresh is active.
//   - Disappear releases every tier source; expanded state and aspect ratio
//     survive.
//   - Hover/Leave load and release the small tier.
//   - Zoom/CloseViewer load (force refreshed) and release the full tier.
package viewer
