// Package bitmap produces the packed 1-bit images the e-paper device pastes
// straight into its frame buffer: row-major, 8 pixels per byte, most
// significant bit first, 0 for a covered (black) pixel. Each row starts on a
// byte boundary and unused trailing bits are zero.
package bitmap

import (
	"image"
	"image/color"
)

type Bitmap struct {
	Width  int
	Height int
	Data   []byte
}

// Stride is the number of bytes per row.
func (b *Bitmap) Stride() int {
	return Stride(b.Width)
}

// Covered reports whether the pixel at (x, y) is black.
func (b *Bitmap) Covered(x, y int) bool {
	return b.Data[y*b.Stride()+x/8]&(0x80>>(x%8)) == 0
}

func Stride(width int) int {
	return (width + 7) / 8
}

// Pack rasterizes covered over a width x height grid.
func Pack(width, height int, covered func(x, y int) bool) *Bitmap {
	stride := Stride(width)
	data := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < width; x++ {
			if !covered(x, y) {
				row[x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return &Bitmap{Width: width, Height: height, Data: data}
}

// FromImage packs img, treating pixels darker than mid grey as covered.
func FromImage(img image.Image) *Bitmap {
	bounds := img.Bounds()
	return Pack(bounds.Dx(), bounds.Dy(), func(x, y int) bool {
		gray := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
		return gray.Y < 0x80
	})
}
