package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"csheet/internal/server"
	"csheet/internal/testsupport"
	"csheet/internal/viewer"
)

func seedMedia(t *testing.T, dir string) {
	t.Helper()
	testsupport.WriteImage(t, filepath.Join(dir, "sh010_v001.jpg"), 320, 180)
	testsupport.WriteImage(t, filepath.Join(dir, "sh010_v002.jpg"), 320, 180)
	testsupport.WriteImage(t, filepath.Join(dir, "sh020_v001.png"), 100, 100)
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.MediaDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigValidateReportsDerivedPaths(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, env.cfg.CatalogPath())
	requireContains(t, out, env.cfg.LockPath())
}

func TestConfigShowPrintsEffectiveTOML(t *testing.T) {
	env := setupCLITestEnv(t)
	media := filepath.Join(t.TempDir(), "ep03_shots")
	out, _, err := runCLI(t, []string{"config", "show", "--media", media}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, "media_dir = ")
	requireContains(t, out, media)
}

func TestWriteJSONKeepsQueryStrings(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	if err := writeJSON(cmd, map[string]string{"src": "/images/a/thumb?x=1&timestamp=2"}); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	requireContains(t, buf.String(), "x=1&timestamp=2")
}

func TestScanListsNewestShots(t *testing.T) {
	env := setupCLITestEnv(t)
	seedMedia(t, env.cfg.Paths.MediaDir)

	out, _, err := runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "2 shots")
	requireContains(t, out, "sh010_v002.jpg")
	if strings.Contains(out, "sh010_v001.jpg") {
		t.Fatalf("superseded version listed:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"scan", "--thumbs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("scan --json: %v", err)
	}
	var rows []scanRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode scan json: %v\n%s", err, out)
	}
	if len(rows) != 2 || !rows[0].Thumb || !rows[1].Thumb {
		t.Fatalf("expected two rows with thumbnails, got %+v", rows)
	}
}

func TestScanRequiresMediaDir(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Paths.MediaDir = ""
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"scan"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no media directory") {
		t.Fatalf("expected missing media error, got %v", err)
	}
}

func TestMediaFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(t.TempDir(), "ep02_comp")
	seedMedia(t, other)

	out, _, err := runCLI(t, []string{"--media", other, "scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "Ep02 Comp: 2 shots")
}

func TestStatusReportsFolders(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Folders ==")
	requireContains(t, out, "Media directory:")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "FFmpeg:")
	requireContains(t, out, "0 cached")

	if err := os.RemoveAll(env.cfg.Paths.MediaDir); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err == nil {
		t.Fatal("expected status to fail without media dir")
	}
	requireContains(t, out, "[ERROR]")
}

func TestPackLocalWritesArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	seedMedia(t, env.cfg.Paths.MediaDir)
	target := filepath.Join(t.TempDir(), "sheet.zip")

	out, _, err := runCLI(t, []string{"pack", "--output", target}, env.configPath)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	requireContains(t, out, "Packed 2 shots")

	r, err := zip.OpenReader(target)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer r.Close()
	found := false
	for _, f := range r.File {
		if f.Name == "images/sh020_v001.png" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected packed source image")
	}
}

func startTestServer(t *testing.T, env *cliTestEnv) *httptest.Server {
	t.Helper()
	store := testsupport.MustOpenCatalog(t, env.cfg)
	if _, err := store.Sync(context.Background(), env.cfg.Paths.MediaDir, env.cfg.Catalog.Extensions); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	srv, err := server.New(env.cfg, store, nil)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestPackRemoteDownloadsArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	seedMedia(t, env.cfg.Paths.MediaDir)
	ts := startTestServer(t, env)
	outDir := t.TempDir()

	out, _, err := runCLI(t, []string{"pack", "--server", ts.URL, "--output", outDir}, env.configPath)
	if err != nil {
		t.Fatalf("pack --server: %v", err)
	}
	requireContains(t, out, "Saved ")
	entries, err := os.ReadDir(outDir)
	if err != nil || len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".zip" {
		t.Fatalf("expected one zip in %s, got %v (%v)", outDir, entries, err)
	}
}

func TestViewReportsLoadedCells(t *testing.T) {
	env := setupCLITestEnv(t)
	seedMedia(t, env.cfg.Paths.MediaDir)
	ts := startTestServer(t, env)

	out, _, err := runCLI(t, []string{"view", "--server", ts.URL, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	var snap viewer.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v\n%s", err, out)
	}
	if snap.Counter != "2/2" || len(snap.Cells) != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	for _, v := range snap.Cells {
		if v.Display != "poster" || !v.Expanded {
			t.Fatalf("expected poster-expanded cell, got %+v", v)
		}
	}

	out, _, err = runCLI(t, []string{"view", "--server", ts.URL}, env.configPath)
	if err != nil {
		t.Fatalf("view table: %v", err)
	}
	requireContains(t, out, "Loaded 2/2")
	requireContains(t, out, "expanded")

	first, second := snap.Cells[0].ID, snap.Cells[1].ID
	out, _, err = runCLI(t, []string{"view", "--server", ts.URL, "--json", "--zoom", first, "--next", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("view zoom: %v", err)
	}
	snap = viewer.Snapshot{}
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v\n%s", err, out)
	}
	for _, v := range snap.Cells {
		switch v.ID {
		case first:
			if v.Sources["full"] != "" {
				t.Fatalf("stepping away should release %s, got %+v", first, v)
			}
		case second:
			if v.Display != "full" {
				t.Fatalf("viewer should rest on %s, got %+v", second, v)
			}
		}
	}
}

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Media directory", statusError, "missing", false)
	if !strings.HasPrefix(got, statusIndent+"Media directory:") || !strings.HasSuffix(got, "[ERROR] missing") {
		t.Fatalf("unexpected line %q", got)
	}
	colored := renderStatusLine("Media directory", statusOK, "ok", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected colored line, got %q", colored)
	}
}
