package thumbnail

import "errors"

var (
	// ErrNoPreview reports that the item kind has no animated preview.
	ErrNoPreview = errors.New("thumbnail: no preview for item")
	// ErrFFmpegUnavailable reports that a video artifact was requested but
	// no ffmpeg binary could be resolved.
	ErrFFmpegUnavailable = errors.New("thumbnail: ffmpeg unavailable")
)
