package sheet

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"

	"csheet/internal/catalog"
	"csheet/internal/cell"
)

//go:embed templates/sheet.html.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticFiles lists the assets a page references, relative to static/.
var StaticFiles = []string{"csheet.css", "csheet.js"}

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/sheet.html.tmpl"))

// Layout selects how resource links are written.
type Layout int

const (
	// Served links point at the HTTP image routes.
	Served Layout = iota
	// Packed links point at files inside a packed archive.
	Packed
)

// Cell is one entry of the rendered page.
type Cell struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Poster string `json:"poster"`
	Small  string `json:"small"`
	Full   string `json:"full"`
	Drag   string `json:"drag"`
	Video  bool   `json:"video"`
}

// Spec converts the page cell into viewer input.
func (c Cell) Spec() cell.Spec {
	return cell.Spec{ID: c.ID, Poster: c.Poster, Small: c.Small, Full: c.Full, Drag: c.Drag}
}

// Page is the full contact sheet.
type Page struct {
	Title  string
	Cells  []Cell
	Static string
	Packed bool
}

// Build lays items out for the requested layout.
func Build(title string, items []catalog.Item, layout Layout) Page {
	page := Page{Title: title, Static: "/static", Packed: layout == Packed}
	if layout == Packed {
		page.Static = "static"
	}
	page.Cells = make([]Cell, 0, len(items))
	for _, item := range items {
		page.Cells = append(page.Cells, CellFor(item, layout))
	}
	return page
}

// CellFor returns the page cell for one item.
func CellFor(item catalog.Item, layout Layout) Cell {
	c := Cell{ID: item.ID, Name: item.Name, Video: item.IsVideo()}
	if layout == Packed {
		c.Poster = ThumbEntry(item)
		c.Full = ImageEntry(item)
		c.Small = c.Full
		if item.IsVideo() {
			c.Small = PreviewEntry(item)
		}
		c.Drag = c.Full
		return c
	}
	base := "/images/" + item.ID
	c.Poster = base + "/thumb"
	c.Small = base + "/preview"
	c.Full = base + "/full"
	c.Drag = c.Full
	return c
}

// ImageEntry is the archive path of the source file.
func ImageEntry(item catalog.Item) string {
	return path.Join("images", item.FileName())
}

// ThumbEntry is the archive path of the thumbnail.
func ThumbEntry(item catalog.Item) string {
	return path.Join("thumbs", item.ID+".jpg")
}

// PreviewEntry is the archive path of the animated preview.
func PreviewEntry(item catalog.Item) string {
	return path.Join("previews", item.ID+".gif")
}

// Render writes the page as HTML.
func Render(w io.Writer, page Page) error {
	if err := pageTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render sheet: %w", err)
	}
	return nil
}

// Static returns the embedded asset tree rooted at static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
