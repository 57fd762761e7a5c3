package pack

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"csheet/internal/catalog"
	"csheet/internal/logging"
	"csheet/internal/sheet"
	"csheet/internal/thumbnail"
)

var (
	// ErrBusy reports that another archive is being built.
	ErrBusy = errors.New("pack: already packing")
	// ErrEmpty reports that there is nothing to pack.
	ErrEmpty = errors.New("pack: no items")
)

// Artifacts produces the derived files packed next to each source.
type Artifacts interface {
	Thumb(ctx context.Context, item catalog.Item) (string, error)
	Preview(ctx context.Context, item catalog.Item) (string, error)
}

// Archive is a finished zip on disk.
type Archive struct {
	Path string
	Name string
	Size int64
}

// Remove deletes the archive file.
func (a *Archive) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	return os.Remove(a.Path)
}

// Packer builds archives into a working directory.
type Packer struct {
	dir       string
	artifacts Artifacts
	progress  *Progress
	logger    *slog.Logger
}

// New constructs a Packer. A nil progress hub gets a private one.
func New(dir string, artifacts Artifacts, progress *Progress, logger *slog.Logger) *Packer {
	if progress == nil {
		progress = NewProgress()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Packer{
		dir:       dir,
		artifacts: artifacts,
		progress:  progress,
		logger:    logging.NewComponentLogger(logger, "pack"),
	}
}

// Progress returns the hub the packer publishes to.
func (p *Packer) Progress() *Progress { return p.progress }

// Pack writes title.html plus every item into a new archive. The caller
// owns the returned archive and should Remove it once delivered.
func (p *Packer) Pack(ctx context.Context, title string, items []catalog.Item) (*Archive, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	if !p.progress.begin() {
		return nil, ErrBusy
	}
	defer p.progress.Set(Idle)

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create pack dir: %w", err)
	}
	f, err := os.CreateTemp(p.dir, safeName(title)+"-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	archive := &Archive{Path: f.Name(), Name: safeName(title) + ".zip"}
	fail := func(err error) (*Archive, error) {
		_ = f.Close()
		_ = archive.Remove()
		return nil, err
	}

	p.logger.Info("packing started",
		logging.String("title", title),
		logging.Int("items", len(items)),
		logging.String("archive", archive.Path),
	)

	zw := zip.NewWriter(f)
	if err := p.writePage(zw, title, items); err != nil {
		return fail(err)
	}
	total := len(items)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		p.writeItem(ctx, zw, item)
		p.progress.Set(float64(i+1) * 100 / float64(total))
	}
	if err := p.writeStatic(zw); err != nil {
		return fail(err)
	}
	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("finish archive: %w", err))
	}
	info, err := f.Stat()
	if err != nil {
		return fail(fmt.Errorf("stat archive: %w", err))
	}
	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("close archive: %w", err))
	}
	archive.Size = info.Size()

	p.logger.Info("packing finished",
		logging.String("archive", archive.Path),
		logging.Int64("bytes", archive.Size),
	)
	return archive, nil
}

func (p *Packer) writePage(zw *zip.Writer, title string, items []catalog.Item) error {
	w, err := zw.Create(safeName(title) + ".html")
	if err != nil {
		return fmt.Errorf("add page: %w", err)
	}
	return sheet.Render(w, sheet.Build(title, items, sheet.Packed))
}

// writeItem adds the source and its artifacts. Missing artifacts are
// skipped with a warning so one bad file does not abort the archive.
func (p *Packer) writeItem(ctx context.Context, zw *zip.Writer, item catalog.Item) {
	if err := addFile(zw, item.Path, sheet.ImageEntry(item)); err != nil {
		p.warn(item, "source", err)
	}
	if p.artifacts == nil {
		return
	}
	if thumb, err := p.artifacts.Thumb(ctx, item); err != nil {
		p.warn(item, "thumbnail", err)
	} else if err := addFile(zw, thumb, sheet.ThumbEntry(item)); err != nil {
		p.warn(item, "thumbnail", err)
	}
	if !item.IsVideo() {
		return
	}
	preview, err := p.artifacts.Preview(ctx, item)
	switch {
	case errors.Is(err, thumbnail.ErrNoPreview), errors.Is(err, thumbnail.ErrFFmpegUnavailable):
	case err != nil:
		p.warn(item, "preview", err)
	default:
		if err := addFile(zw, preview, sheet.PreviewEntry(item)); err != nil {
			p.warn(item, "preview", err)
		}
	}
}

func (p *Packer) writeStatic(zw *zip.Writer) error {
	assets := sheet.Static()
	for _, name := range sheet.StaticFiles {
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			return fmt.Errorf("read static %s: %w", name, err)
		}
		w, err := zw.Create(path.Join("static", name))
		if err != nil {
			return fmt.Errorf("add static %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write static %s: %w", name, err)
		}
	}
	return nil
}

func (p *Packer) warn(item catalog.Item, what string, err error) {
	logging.WarnWithContext(p.logger, "pack entry skipped", "pack_entry_skipped",
		logging.String("item_id", item.ID),
		logging.String("entry", what),
		logging.Error(err),
		logging.String(logging.FieldImpact, "archive is missing this file"),
	)
}

func addFile(zw *zip.Writer, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

func safeName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		return "csheet"
	}
	return name
}
