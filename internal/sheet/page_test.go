package sheet

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"

	"csheet/internal/catalog"
)

func sampleItems() []catalog.Item {
	return []catalog.Item{
		{ID: "a1", Name: "sh010", Path: "/m/sh010_v002.jpg", Kind: catalog.KindImage},
		{ID: "b2", Name: "sh020", Path: "/m/sh020_v001.mov", Kind: catalog.KindVideo},
	}
}

func TestBuildServedLinks(t *testing.T) {
	page := Build("Ep01", sampleItems(), Served)
	if page.Packed || page.Static != "/static" {
		t.Fatalf("unexpected page flags %+v", page)
	}
	c := page.Cells[1]
	if c.Poster != "/images/b2/thumb" || c.Small != "/images/b2/preview" || c.Full != "/images/b2/full" {
		t.Fatalf("unexpected served links %+v", c)
	}
	spec := c.Spec()
	if spec.ID != "b2" || spec.Drag != c.Full {
		t.Fatalf("unexpected spec %+v", spec)
	}
}

func TestBuildPackedLinks(t *testing.T) {
	page := Build("Ep01", sampleItems(), Packed)
	still, clip := page.Cells[0], page.Cells[1]
	if still.Full != "images/sh010_v002.jpg" || still.Small != still.Full {
		t.Fatalf("unexpected packed still links %+v", still)
	}
	if clip.Small != "previews/b2.gif" || clip.Poster != "thumbs/b2.jpg" {
		t.Fatalf("unexpected packed clip links %+v", clip)
	}
}

func TestRenderIncludesCellData(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Build("Ep01 <Lighting>", sampleItems(), Served)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{
		`id="a1"`,
		`data-full="/images/a1/full"`,
		`0/2`,
		`Ep01 &lt;Lighting&gt;`,
		`href="/pack"`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered page missing %q", want)
		}
	}
}

func TestStaticAssetsEmbedded(t *testing.T) {
	for _, name := range StaticFiles {
		if _, err := fs.Stat(Static(), name); err != nil {
			t.Fatalf("missing static asset %s: %v", name, err)
		}
	}
}

func TestScriptReleasesAndDedupesLoads(t *testing.T) {
	raw, err := fs.ReadFile(Static(), "csheet.js")
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	script := string(raw)
	for _, want := range []string{
		"if (cell._loading[tier]) { done(); return; }",
		"cell._hovered = false;\n      unload(cell, 'small');",
		"return cell._hovered && cell._visible;",
		"while (active < workers && pending.length > 0)",
		"img.removeAttribute('src');\n    viewing = cell;",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
	if strings.Contains(script, "'mouseleave', function () { load(") {
		t.Error("leaving a cell must release the small tier, not load another")
	}
}
