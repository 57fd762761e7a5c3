package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultExtensions are the media types a sheet shows.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".mov", ".mp4"}

// ItemID derives the stable identifier of a media file.
func ItemID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String()
}

// SheetTitle turns a folder name into a display title.
func SheetTitle(dir string) string {
	name := filepath.Base(filepath.Clean(dir))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return cases.Title(language.Und, cases.NoLower).String(strings.TrimSpace(name))
}

// Scan lists the newest version of every shot directly inside dir.
func Scan(ctx context.Context, dir string, extensions []string) ([]Item, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read media dir: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve media dir: %w", err)
	}

	candidates := make([]Candidate, 0, len(entries))
	sizes := make(map[string]int64, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(absDir, entry.Name())
		candidates = append(candidates, Candidate{Path: path, ModTime: info.ModTime()})
		sizes[path] = info.Size()
	}

	kept := FilterNewest(candidates)
	items := make([]Item, 0, len(kept))
	for _, c := range kept {
		items = append(items, Item{
			ID:      ItemID(c.Path),
			Name:    ShotName(c.Path),
			Dir:     absDir,
			Path:    c.Path,
			Kind:    KindOf(c.Path),
			Size:    sizes[c.Path],
			ModTime: c.ModTime,
		})
	}
	return items, nil
}
