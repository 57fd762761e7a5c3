package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/flock"

	"csheet/internal/catalog"
	"csheet/internal/config"
	"csheet/internal/logging"
	"csheet/internal/pack"
	"csheet/internal/thumbnail"
)

// ErrLocked reports that another process holds the server lock.
var ErrLocked = errors.New("server: another csheet instance is already serving this cache")

// Server serves one media directory.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *catalog.Store
	thumbs     *thumbnail.Generator
	packer     *pack.Packer
	dir        string
	title      string
	extensions []string
	lock       *flock.Flock
	router     chi.Router

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithThumbnails replaces the artifact generator.
func WithThumbnails(gen *thumbnail.Generator) Option {
	return func(s *Server) {
		if gen != nil {
			s.thumbs = gen
		}
	}
}

// New wires a server over store for the configured media directory.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("server: config and catalog are required")
	}
	dir := strings.TrimSpace(cfg.Paths.MediaDir)
	if dir == "" {
		return nil, errors.New("server: media_dir is not configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "server"),
		store:      store,
		dir:        dir,
		title:      catalog.SheetTitle(dir),
		extensions: cfg.Catalog.Extensions,
		lock:       flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.thumbs == nil {
		s.thumbs = thumbnail.New(cfg, thumbnail.WithLogger(logger))
	}
	s.packer = pack.New(cfg.Paths.PackDir, s.thumbs, pack.NewProgress(), logger)
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Title returns the sheet title derived from the media directory.
func (s *Server) Title() string { return s.title }

// Progress returns the pack progress hub.
func (s *Server) Progress() *pack.Progress { return s.packer.Progress() }

// Start acquires the instance lock, syncs the catalog, and begins serving.
// Thumbnail warmup continues in the background until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}

	items, err := s.sync(ctx)
	if err != nil {
		_ = s.lock.Unlock()
		return err
	}

	listener, err := net.Listen("tcp", s.cfg.Paths.Bind)
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.http = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "http server error", "server_failed", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	go s.warm(ctx, items)

	s.logger.Info("serving contact sheet",
		logging.String("address", listener.Addr().String()),
		logging.String("media_dir", s.dir),
		logging.Int("items", len(items)),
	)
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down and releases the lock.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = s.lock.Unlock()
	s.logger.Info("server stopped")
}

func (s *Server) sync(ctx context.Context) ([]catalog.Item, error) {
	items, err := s.store.Sync(ctx, s.dir, s.extensions)
	if err != nil {
		return nil, fmt.Errorf("sync catalog: %w", err)
	}
	return items, nil
}

func (s *Server) warm(ctx context.Context, items []catalog.Item) {
	failed, err := s.thumbs.Warm(ctx, items, s.store)
	if err != nil && ctx.Err() == nil {
		logging.WarnWithContext(s.logger, "thumbnail warmup aborted", "warmup_aborted", logging.Error(err))
		return
	}
	s.logger.Debug("thumbnail warmup finished",
		logging.Int("items", len(items)),
		logging.Int("failed", failed),
	)
}
