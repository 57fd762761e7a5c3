package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"csheet/internal/catalog"
	"csheet/internal/cell"
	"csheet/internal/config"
	"csheet/internal/progressfeed"
	"csheet/internal/testsupport"
	"csheet/internal/viewer"
	"csheet/internal/visibility"
)

type fixture struct {
	t      *testing.T
	cfg    *config.Config
	server *Server
	http   *httptest.Server
	items  []catalog.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	media := cfg.Paths.MediaDir
	testsupport.WriteImage(t, filepath.Join(media, "sh010_v001.jpg"), 640, 360)
	testsupport.WriteImage(t, filepath.Join(media, "sh010_v002.jpg"), 640, 360)
	testsupport.WriteImage(t, filepath.Join(media, "sh020_v001.png"), 200, 100)

	store := testsupport.MustOpenCatalog(t, cfg)
	srv, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	items, err := srv.sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{t: t, cfg: cfg, server: srv, http: ts, items: items}
}

func (f *fixture) get(path string, header ...string) *http.Response {
	f.t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.http.URL+path, nil)
	if err != nil {
		f.t.Fatalf("new request: %v", err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		f.t.Fatalf("GET %s: %v", path, err)
	}
	f.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return body
}

func TestHealthAndNoCache(t *testing.T) {
	f := newFixture(t)
	resp := f.get("/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("expected no-cache, got %q", got)
	}
}

func TestSheetPageListsNewestVersions(t *testing.T) {
	f := newFixture(t)
	resp := f.get("/")
	body := string(readBody(t, resp))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if len(f.items) != 2 {
		t.Fatalf("expected 2 items after version filter, got %d", len(f.items))
	}
	for _, item := range f.items {
		if !strings.Contains(body, `id="`+item.ID+`"`) {
			t.Fatalf("page missing cell %s", item.ID)
		}
	}
	if strings.Contains(body, "sh010_v001") {
		t.Fatal("superseded version must not be listed")
	}
}

func TestCellsEndpoint(t *testing.T) {
	f := newFixture(t)
	resp := f.get("/api/cells")
	var payload CellsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Title != f.server.Title() || len(payload.Cells) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	first := payload.Cells[0]
	if first.Poster != "/images/"+first.ID+"/thumb" || first.Full != "/images/"+first.ID+"/full" {
		t.Fatalf("unexpected cell links %+v", first)
	}
}

func TestInfoAndUnknownItem(t *testing.T) {
	f := newFixture(t)
	item := f.items[0]

	resp := f.get("/info/" + item.ID)
	var info InfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.File != "sh010_v002.jpg" || info.Kind != "image" {
		t.Fatalf("unexpected info %+v", info)
	}

	if resp := f.get("/info/nope"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if resp := f.get("/images/nope/full"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestThumbIsGeneratedAndRecorded(t *testing.T) {
	f := newFixture(t)
	item := f.items[0]

	resp := f.get("/images/" + item.ID + "/thumb")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(readBody(t, resp)))
	if err != nil {
		t.Fatalf("decode thumb: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 180 {
		t.Fatalf("expected 320x180 thumb, got %dx%d", cfg.Width, cfg.Height)
	}
	stored, err := f.server.store.Get(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Thumb == "" {
		t.Fatal("expected thumbnail path to be recorded")
	}
}

func TestPreviewFallsBackToFullImage(t *testing.T) {
	f := newFixture(t)
	item := f.items[0]

	preview := readBody(t, f.get("/images/"+item.ID+"/preview"))
	full := readBody(t, f.get("/images/"+item.ID+"/full"))
	source, err := os.ReadFile(item.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(preview, source) || !bytes.Equal(full, source) {
		t.Fatal("expected preview and full to serve the source image")
	}
}

func TestPackProgressPlainValue(t *testing.T) {
	f := newFixture(t)
	body := strings.TrimSpace(string(readBody(t, f.get("/pack_progress"))))
	if body != "-1" {
		t.Fatalf("expected idle progress -1, got %q", body)
	}
	f.server.Progress().Set(42.5)
	body = strings.TrimSpace(string(readBody(t, f.get("/pack_progress"))))
	if body != "42.5" {
		t.Fatalf("expected 42.5, got %q", body)
	}
}

func TestPackDownloadAndBusy(t *testing.T) {
	f := newFixture(t)

	resp := f.get("/pack")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), ".zip") {
		t.Fatalf("unexpected disposition %q", resp.Header.Get("Content-Disposition"))
	}
	body := readBody(t, resp)
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	names := map[string]bool{}
	for _, file := range zr.File {
		names[file.Name] = true
	}
	if !names[f.server.Title()+".html"] || !names["images/sh010_v002.jpg"] || !names["static/csheet.js"] {
		t.Fatalf("unexpected archive entries %v", names)
	}
	entries, _ := os.ReadDir(f.cfg.Paths.PackDir)
	if len(entries) != 0 {
		t.Fatalf("expected archive to be removed after delivery, found %d files", len(entries))
	}

	f.server.Progress().Set(10)
	if resp := f.get("/pack"); resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 while packing, got %d", resp.StatusCode)
	}
}

func TestPackProgressStreamsToWatcher(t *testing.T) {
	f := newFixture(t)
	progress := f.server.Progress()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seen := make(chan float64, 16)
	done := make(chan error, 1)
	go func() {
		done <- progressfeed.Watch(ctx, f.http.URL+"/pack_progress", func(v float64) { seen <- v })
	}()

	expect := func(want float64) {
		t.Helper()
		select {
		case v := <-seen:
			if v != want {
				t.Fatalf("expected %v, got %v", want, v)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %v", want)
		}
	}
	expect(-1)
	for _, v := range []float64{0, 50, 100, -1} {
		progress.Set(v)
		expect(v)
	}

	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestStartHoldsLock(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.server.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.server.Stop()
	if f.server.Addr() == "" {
		t.Fatal("expected listening address")
	}

	resp, err := http.Get("http://" + f.server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()

	second, err := New(f.cfg, f.server.store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestHeadlessViewerLoadsServedCells(t *testing.T) {
	f := newFixture(t)
	var payload CellsResponse
	if err := json.NewDecoder(f.get("/api/cells").Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	specs := make([]cell.Spec, 0, len(payload.Cells))
	for _, c := range payload.Cells {
		specs = append(specs, c.Spec())
	}

	session, err := viewer.New(specs, viewer.OptionsFromConfig(f.cfg, f.http.URL, nil))
	if err != nil {
		t.Fatalf("viewer.New: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Run(context.Background())
	}()
	defer func() {
		session.Close()
		<-done
	}()

	for i, spec := range specs {
		rect := visibility.Rect{Y: float64(i * 250), Width: 300, Height: 200}
		if err := session.Layout(spec.ID, rect); err != nil {
			t.Fatalf("Layout: %v", err)
		}
	}
	if err := session.Scroll(visibility.Rect{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Scroll: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Idle(ctx); err != nil {
		t.Fatalf("Idle: %v", err)
	}
	counter, err := session.Counter(ctx)
	if err != nil {
		t.Fatalf("Counter: %v", err)
	}
	if counter.String() != "2/2" {
		t.Fatalf("expected 2/2, got %s", counter)
	}
	view, err := session.View(ctx, specs[0].ID)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Aspect < 1.77 || view.Aspect > 1.78 {
		t.Fatalf("expected 16:9 aspect from served thumbnail, got %v", view.Aspect)
	}
}
