// Package thumbnail renders the derived artifacts a contact sheet serves next
// to each source file: a JPEG poster thumbnail for every item and an animated
// GIF preview for video clips.
//
// Still images are decoded and scaled in-process with golang.org/x/image/draw.
// Video posters and previews are produced by ffmpeg through an injectable
// command runner so tests never need the real binary. Concurrent requests for
// the same artifact collapse into one generation via singleflight, and Warm
// fans out over a catalog listing with a bounded errgroup.
package thumbnail
