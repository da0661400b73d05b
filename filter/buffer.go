package filter

import (
	"fmt"
	"image"
	"image/color"
)

// Channels is the number of bytes per pixel in a Buffer
const Channels = 3

// RGB is an 8-bit RGB triple
type RGB struct {
	R, G, B uint8
}

// Buffer is a dense row-major RGB pixel grid with a top-left origin
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8 // Channels bytes per pixel, no padding between rows
}

// NewBuffer allocates a zeroed (black) buffer of the given size
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*Channels),
	}
}

// FromImage copies any image into a new Buffer, dropping alpha
func FromImage(img image.Image) *Buffer {
	b := img.Bounds()
	buf := NewBuffer(b.Dx(), b.Dy())

	if rgba, ok := img.(*image.RGBA); ok {
		// Fast path for what the rasterizer hands us
		for y := 0; y < buf.Height; y++ {
			src := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			dst := buf.Pix[y*buf.Width*Channels:]
			for x := 0; x < buf.Width; x++ {
				dst[x*3] = src[x*4]
				dst[x*3+1] = src[x*4+1]
				dst[x*3+2] = src[x*4+2]
			}
		}
		return buf
	}

	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			buf.Set(x, y, RGB{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8)})
		}
	}
	return buf
}

// Fill returns a buffer of the given size painted with a single color
func Fill(width, height int, c RGB) *Buffer {
	buf := NewBuffer(width, height)
	for i := 0; i < len(buf.Pix); i += Channels {
		buf.Pix[i] = c.R
		buf.Pix[i+1] = c.G
		buf.Pix[i+2] = c.B
	}
	return buf
}

// validate panics on a buffer whose pixel slice does not match its dimensions
func (b *Buffer) validate() {
	if b.Width < 0 || b.Height < 0 || len(b.Pix) != b.Width*b.Height*Channels {
		panic(fmt.Sprintf("filter: malformed buffer %dx%d with %d bytes", b.Width, b.Height, len(b.Pix)))
	}
}

// Get returns the pixel at (x, y)
func (b *Buffer) Get(x, y int) RGB {
	i := (y*b.Width + x) * Channels
	return RGB{b.Pix[i], b.Pix[i+1], b.Pix[i+2]}
}

// Set writes the pixel at (x, y)
func (b *Buffer) Set(x, y int, c RGB) {
	i := (y*b.Width + x) * Channels
	b.Pix[i] = c.R
	b.Pix[i+1] = c.G
	b.Pix[i+2] = c.B
}

// Clone returns a deep copy of the buffer
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Width: b.Width, Height: b.Height, Pix: make([]uint8, len(b.Pix))}
	copy(out.Pix, b.Pix)
	return out
}

// ColorModel implements image.Image
func (b *Buffer) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// At implements image.Image
func (b *Buffer) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.RGBA{}
	}
	c := b.Get(x, y)
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// RGBA converts the buffer to an opaque *image.RGBA, the layout the
// standard encoders have fast paths for
func (b *Buffer) RGBA() *image.RGBA {
	img := image.NewRGBA(b.Bounds())
	for i, j := 0, 0; i < len(b.Pix); i, j = i+Channels, j+4 {
		img.Pix[j] = b.Pix[i]
		img.Pix[j+1] = b.Pix[i+1]
		img.Pix[j+2] = b.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}
