package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"csheet/internal/catalog"
	"csheet/internal/logging"
	"csheet/internal/pack"
	"csheet/internal/sheet"
	"csheet/internal/thumbnail"
)

// CellsResponse is the payload of /api/cells.
type CellsResponse struct {
	Title string       `json:"title"`
	Cells []sheet.Cell `json:"cells"`
}

// InfoResponse is the payload of /info/{id}.
type InfoResponse struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	File    string    `json:"file"`
	Kind    string    `json:"kind"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Thumb   string    `json:"thumb,omitempty"`
	Preview string    `json:"preview,omitempty"`
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(noCache)

	r.Get("/", s.handleSheet)
	r.Get("/health", s.handleHealth)
	r.Get("/api/cells", s.handleCells)
	r.Get("/info/{id}", s.handleInfo)
	r.Route("/images/{id}", func(r chi.Router) {
		r.Get("/thumb", s.handleThumb)
		r.Get("/preview", s.handlePreview)
		r.Get("/full", s.handleFull)
	})
	r.Get("/pack_progress", s.handlePackProgress)
	r.Get("/pack", s.handlePack)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(sheet.Static())))
	return r
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	items, err := s.sync(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := sheet.Render(w, sheet.Build(s.title, items, sheet.Served)); err != nil {
		s.logger.Error("render sheet failed", logging.Error(err))
	}
}

func (s *Server) handleCells(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.List(r.Context(), s.dir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, CellsResponse{
		Title: s.title,
		Cells: sheet.Build(s.title, items, sheet.Served).Cells,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, InfoResponse{
		ID:      item.ID,
		Name:    item.Name,
		File:    item.FileName(),
		Kind:    string(item.Kind),
		Size:    item.Size,
		ModTime: item.ModTime,
		Thumb:   item.Thumb,
		Preview: item.Preview,
	})
}

func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookup(w, r)
	if !ok {
		return
	}
	thumb, err := s.thumbs.Thumb(r.Context(), *item)
	if err != nil {
		logging.WarnWithContext(s.logger, "thumbnail unavailable", "thumbnail_failed",
			logging.String("item_id", item.ID),
			logging.Error(err),
		)
		s.writeError(w, http.StatusNotFound, "thumbnail unavailable")
		return
	}
	if thumb != item.Thumb {
		if err := s.store.SetThumb(r.Context(), item.ID, thumb); err != nil {
			s.logger.Debug("record thumbnail failed", logging.Error(err))
		}
	}
	http.ServeFile(w, r, thumb)
}

// handlePreview serves the animated preview, or the full image when the
// item has none.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookup(w, r)
	if !ok {
		return
	}
	preview, err := s.thumbs.Preview(r.Context(), *item)
	if err != nil {
		if !errors.Is(err, thumbnail.ErrNoPreview) && !errors.Is(err, thumbnail.ErrFFmpegUnavailable) {
			s.logger.Debug("preview unavailable; serving full image",
				logging.String("item_id", item.ID),
				logging.Error(err),
			)
		}
		s.serveSource(w, r, item)
		return
	}
	if preview != item.Preview {
		if err := s.store.SetPreview(r.Context(), item.ID, preview); err != nil {
			s.logger.Debug("record preview failed", logging.Error(err))
		}
	}
	http.ServeFile(w, r, preview)
}

func (s *Server) handleFull(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.serveSource(w, r, item)
}

func (s *Server) serveSource(w http.ResponseWriter, r *http.Request, item *catalog.Item) {
	if _, err := os.Stat(item.Path); err != nil {
		s.writeError(w, http.StatusNotFound, "source file missing")
		return
	}
	http.ServeFile(w, r, item.Path)
}

func (s *Server) handlePackProgress(w http.ResponseWriter, r *http.Request) {
	progress := s.packer.Progress()
	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, formatProgress(progress.Value()))
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	updates, cancel := progress.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, rc, progress.Value()); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, v); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, v float64) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", formatProgress(v)); err != nil {
		return err
	}
	return rc.Flush()
}

func formatProgress(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (s *Server) handlePack(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.List(r.Context(), s.dir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	archive, err := s.packer.Pack(r.Context(), s.title, items)
	switch {
	case errors.Is(err, pack.ErrBusy):
		s.writeError(w, http.StatusTooManyRequests, "already packing")
		return
	case errors.Is(err, pack.ErrEmpty):
		s.writeError(w, http.StatusNotFound, "nothing to pack")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() {
		if err := archive.Remove(); err != nil {
			s.logger.Debug("remove archive failed", logging.Error(err))
		}
	}()

	f, err := os.Open(archive.Path)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.Name))
	http.ServeContent(w, r, archive.Name, time.Time{}, f)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*catalog.Item, bool) {
	id := chi.URLParam(r, "id")
	item, err := s.store.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return item, true
}
