package bitmap

import (
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Glyph canvas used by the device font cache.
const (
	GlyphWidth  = 18
	GlyphHeight = 36

	glyphScale = 2
)

var glyphFace = basicfont.Face7x13

// EncodeGlyph rasterizes r at twice the 7x13 face size, centred on the glyph canvas.
// Only printable ASCII is supported.
func EncodeGlyph(r rune) (*Bitmap, error) {
	if r < 0x20 || r > 0x7e {
		return nil, fmt.Errorf("unsupported glyph %U", r)
	}

	cell := image.NewGray(image.Rect(0, 0, glyphFace.Advance, glyphFace.Height))
	draw.Draw(cell, cell.Bounds(), image.White, image.Point{}, draw.Src)
	d := font.Drawer{
		Dst:  cell,
		Src:  image.Black,
		Face: glyphFace,
		Dot:  fixed.P(0, glyphFace.Ascent),
	}
	d.DrawString(string(r))

	offX := (GlyphWidth - glyphFace.Advance*glyphScale) / 2
	offY := (GlyphHeight - glyphFace.Height*glyphScale) / 2
	return Pack(GlyphWidth, GlyphHeight, func(x, y int) bool {
		cx, cy := (x-offX)/glyphScale, (y-offY)/glyphScale
		if x < offX || y < offY || cx >= glyphFace.Advance || cy >= glyphFace.Height {
			return false
		}
		return cell.GrayAt(cx, cy).Y < 0x80
	}), nil
}

// GlyphKey is the font cache key for r: the lowercase hex of its UTF-8 bytes.
func GlyphKey(r rune) string {
	return hex.EncodeToString([]byte(string(r)))
}

// Glyphs encodes every distinct supported rune in chars. Unsupported runes
// are returned separately so the caller can report them.
func Glyphs(chars string) (map[string][]byte, []rune) {
	glyphs := make(map[string][]byte)
	var missing []rune
	for _, r := range chars {
		key := GlyphKey(r)
		if _, done := glyphs[key]; done {
			continue
		}
		bm, err := EncodeGlyph(r)
		if err != nil {
			missing = append(missing, r)
			continue
		}
		glyphs[key] = bm.Data
	}
	return glyphs, missing
}
