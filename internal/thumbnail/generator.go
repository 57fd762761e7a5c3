package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"csheet/internal/catalog"
	"csheet/internal/config"
	"csheet/internal/deps"
	"csheet/internal/fileutil"
	"csheet/internal/logging"
)

const (
	defaultWidth          = 320
	defaultPreviewSeconds = 3
	defaultConcurrency    = 4
	previewFPS            = 15
	jpegQuality           = 85
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// Recorder persists generated artifact paths. catalog.Store satisfies it.
type Recorder interface {
	SetThumb(ctx context.Context, id, path string) error
	SetPreview(ctx context.Context, id, path string) error
}

// Generator produces thumbnails and previews under a cache directory.
type Generator struct {
	dir            string
	width          int
	previewWidth   int
	previewSeconds int
	concurrency    int
	ffmpeg         string
	ffmpegOK       bool
	run            commandRunner
	logger         *slog.Logger
	group          singleflight.Group
}

// Option customizes a Generator.
type Option func(*Generator)

// WithCommandRunner replaces the ffmpeg executor and marks ffmpeg available.
func WithCommandRunner(r commandRunner) Option {
	return func(g *Generator) {
		if r != nil {
			g.run = r
			g.ffmpegOK = true
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logging.NewComponentLogger(logger, "thumbnail")
		}
	}
}

// New builds a Generator from configuration.
func New(cfg *config.Config, opts ...Option) *Generator {
	g := &Generator{
		dir:            cfg.ThumbnailDir(),
		width:          cfg.Thumbnails.Width,
		previewWidth:   cfg.Thumbnails.PreviewWidth,
		previewSeconds: cfg.Thumbnails.PreviewSeconds,
		concurrency:    cfg.Thumbnails.Concurrency,
		ffmpeg:         deps.ResolveFFmpeg(cfg.Thumbnails.FFmpegBinary),
		run:            defaultCommandRunner,
		logger:         logging.NewNop(),
	}
	g.ffmpegOK = deps.FFmpegAvailable(g.ffmpeg)
	if g.width <= 0 {
		g.width = defaultWidth
	}
	if g.previewWidth <= 0 {
		g.previewWidth = g.width
	}
	if g.previewSeconds <= 0 {
		g.previewSeconds = defaultPreviewSeconds
	}
	if g.concurrency <= 0 {
		g.concurrency = defaultConcurrency
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dir returns the cache directory artifacts are written to.
func (g *Generator) Dir() string { return g.dir }

// ThumbPath returns where the thumbnail for id lives.
func (g *Generator) ThumbPath(id string) string {
	return filepath.Join(g.dir, id+".jpg")
}

// PreviewPath returns where the animated preview for id lives.
func (g *Generator) PreviewPath(id string) string {
	return filepath.Join(g.dir, id+".gif")
}

// Thumb returns a thumbnail for item, generating it when missing or older
// than the source file.
func (g *Generator) Thumb(ctx context.Context, item catalog.Item) (string, error) {
	target := g.ThumbPath(item.ID)
	if fileutil.FreshAgainst(target, item.Path) {
		return target, nil
	}
	v, err, _ := g.group.Do("thumb:"+item.ID, func() (any, error) {
		if fileutil.FreshAgainst(target, item.Path) {
			return target, nil
		}
		var genErr error
		if item.IsVideo() {
			genErr = g.videoPoster(ctx, item.Path, target)
		} else {
			genErr = g.imageThumb(item.Path, target)
		}
		if genErr != nil {
			return "", fmt.Errorf("thumbnail %s: %w", item.FileName(), genErr)
		}
		g.logger.Debug("thumbnail generated",
			logging.String("item_id", item.ID),
			logging.String("path", target),
		)
		return target, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Preview returns an animated GIF preview for a video item. Still images
// yield ErrNoPreview.
func (g *Generator) Preview(ctx context.Context, item catalog.Item) (string, error) {
	if !item.IsVideo() {
		return "", ErrNoPreview
	}
	target := g.PreviewPath(item.ID)
	if fileutil.FreshAgainst(target, item.Path) {
		return target, nil
	}
	if !g.ffmpegOK {
		return "", ErrFFmpegUnavailable
	}
	v, err, _ := g.group.Do("preview:"+item.ID, func() (any, error) {
		if fileutil.FreshAgainst(target, item.Path) {
			return target, nil
		}
		if err := g.videoPreview(ctx, item.Path, target); err != nil {
			return "", fmt.Errorf("preview %s: %w", item.FileName(), err)
		}
		return target, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Warm generates artifacts for every item with at most the configured number
// of generations in flight and records the results. Per-item failures are
// logged and counted; only context cancellation aborts the batch.
func (g *Generator) Warm(ctx context.Context, items []catalog.Item, rec Recorder) (int, error) {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.concurrency)

	failures := make(chan struct{}, len(items))
	for _, item := range items {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := g.warmOne(gctx, item, rec); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logging.WarnWithContext(g.logger, "artifact generation failed", "thumbnail_failed",
					logging.String("item_id", item.ID),
					logging.String("path", item.Path),
					logging.Error(err),
					logging.String(logging.FieldImpact, "cell shows its placeholder until the next scan"),
				)
				failures <- struct{}{}
			}
			return nil
		})
	}
	err := group.Wait()
	close(failures)
	return len(failures), err
}

func (g *Generator) warmOne(ctx context.Context, item catalog.Item, rec Recorder) error {
	thumb, err := g.Thumb(ctx, item)
	if err != nil {
		return err
	}
	if rec != nil && thumb != item.Thumb {
		if err := rec.SetThumb(ctx, item.ID, thumb); err != nil {
			return fmt.Errorf("record thumbnail: %w", err)
		}
	}
	if !item.IsVideo() || !g.ffmpegOK {
		return nil
	}
	preview, err := g.Preview(ctx, item)
	if err != nil {
		return err
	}
	if rec != nil && preview != item.Preview {
		if err := rec.SetPreview(ctx, item.ID, preview); err != nil {
			return fmt.Errorf("record preview: %w", err)
		}
	}
	return nil
}

func (g *Generator) videoPoster(ctx context.Context, source, target string) error {
	if !g.ffmpegOK {
		return ErrFFmpegUnavailable
	}
	return g.ffmpegInto(ctx, target, func(tmp string) []string {
		return []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-i", source,
			"-frames:v", "1",
			"-vf", fmt.Sprintf("scale=%d:-2", g.width),
			"-q:v", "3",
			tmp,
		}
	})
}

func (g *Generator) videoPreview(ctx context.Context, source, target string) error {
	filter := fmt.Sprintf(
		"fps=%d,scale=%d:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse",
		previewFPS, g.previewWidth,
	)
	return g.ffmpegInto(ctx, target, func(tmp string) []string {
		return []string{
			"-y",
			"-hide_banner",
			"-loglevel", "error",
			"-t", fmt.Sprintf("%d", g.previewSeconds),
			"-i", source,
			"-vf", filter,
			"-loop", "0",
			tmp,
		}
	})
}

// ffmpegInto runs ffmpeg against a temporary sibling of target and renames
// the result into place once the command succeeds.
func (g *Generator) ffmpegInto(ctx context.Context, target string, args func(tmp string) []string) error {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	ext := filepath.Ext(target)
	tmp := strings.TrimSuffix(target, ext) + ".tmp" + ext
	if err := g.run(ctx, g.ffmpeg, args(tmp)...); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("ffmpeg: %w", err)
	}
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
