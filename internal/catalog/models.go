package catalog

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind distinguishes still images from video clips.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var videoExtensions = map[string]struct{}{
	".mov": {},
	".mp4": {},
	".m4v": {},
	".webm": {},
}

// KindOf classifies a file by extension.
func KindOf(path string) Kind {
	if _, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return KindVideo
	}
	return KindImage
}

// Item is one shot in a contact sheet.
type Item struct {
	ID        string
	Name      string
	Dir       string
	Path      string
	Preview   string
	Thumb     string
	Kind      Kind
	Size      int64
	ModTime   time.Time
	UpdatedAt time.Time
}

// FileName returns the base name of the source file.
func (i Item) FileName() string {
	return filepath.Base(i.Path)
}

// IsVideo reports whether the item is a video clip.
func (i Item) IsVideo() bool {
	return i.Kind == KindVideo
}
