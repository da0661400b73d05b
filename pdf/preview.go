package pdf

import (
	"image"

	"golang.org/x/image/draw"

	"pdfmute/filter"
)

// RenderPreview rasterizes one 0-based page at a low density for display.
// No filtering is applied. A nil opener uses OpenSource.
func RenderPreview(open Opener, path string, page int, dpi float64) (*filter.Buffer, error) {
	if open == nil {
		open = OpenSource
	}
	if dpi <= 0 {
		dpi = PreviewDPI
	}

	src, err := open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if src.NumPage() == 0 {
		return nil, &SourceReadError{Path: path, Err: ErrNoPages}
	}
	return src.Render(page, dpi)
}

// ScalePreview shrinks img to at most maxWidth pixels wide, keeping the
// aspect ratio. Images already narrow enough, or maxWidth <= 0, are
// returned as is.
func ScalePreview(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}

	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
