package thumbnail

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"csheet/internal/fileutil"
)

// imageThumb writes a JPEG of source scaled to the generator width. JPEG
// sources already within the width are copied unchanged.
func (g *Generator) imageThumb(source, target string) error {
	f, err := os.Open(source)
	if err != nil {
		return err
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	bounds := src.Bounds()
	if bounds.Dx() <= g.width && format == "jpeg" && isJPEGName(source) {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return fileutil.CopyFile(source, target)
	}

	dst := scaleToWidth(src, g.width)
	return fileutil.WriteAtomic(target, func(w io.Writer) error {
		return jpeg.Encode(w, dst, &jpeg.Options{Quality: jpegQuality})
	})
}

// scaleToWidth resamples src so it is at most width pixels wide, keeping its
// aspect ratio.
func scaleToWidth(src image.Image, width int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > width {
		h = max(1, h*width/w)
		w = width
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func isJPEGName(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}
