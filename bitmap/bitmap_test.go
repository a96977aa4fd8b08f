package bitmap_test

import (
	"bytes"
	"testing"

	"github.com/pascalpierre555/quantix/bitmap"
	"github.com/stretchr/testify/require"
)

func TestPackMSBFirstAndZeroPadding(t *testing.T) {
	// 10 pixels wide: two bytes per row, six padding bits
	bm := bitmap.Pack(10, 2, func(x, y int) bool {
		return y == 0 && x == 0 || y == 1 && x == 9
	})

	require.Equal(t, 2, bm.Stride())
	require.Equal(t, []byte{
		0x7f, 0xc0, // row 0: first pixel black, 9 white, padding zero
		0xff, 0x80, // row 1: last pixel black
	}, bm.Data)
	require.True(t, bm.Covered(0, 0))
	require.False(t, bm.Covered(1, 0))
	require.True(t, bm.Covered(9, 1))
}

func TestPackAllWhiteKeepsPaddingZero(t *testing.T) {
	bm := bitmap.Pack(3, 1, func(int, int) bool { return false })
	require.Equal(t, []byte{0xe0}, bm.Data)
}

func TestEncodeQRDeterministic(t *testing.T) {
	const url = "http://localhost:8080/setup?token=abc"

	first, err := bitmap.EncodeQR(url, 99)
	require.NoError(t, err)
	second, err := bitmap.EncodeQR(url, 99)
	require.NoError(t, err)

	require.True(t, bytes.Equal(first.Data, second.Data))
	require.Equal(t, first.Width, first.Height)
	require.LessOrEqual(t, first.Width, 99)
	require.Len(t, first.Data, first.Stride()*first.Height)
}

func TestEncodeQRPadsRows(t *testing.T) {
	bm, err := bitmap.EncodeQR("hello", 0)
	require.NoError(t, err)
	// a version 1 symbol is 21 modules, plus quiet zone on both sides
	require.Equal(t, 21+2*bitmap.QuietZone, bm.Width)
	require.NotZero(t, bm.Width%8)

	padBits := bm.Stride()*8 - bm.Width
	mask := byte(0xff >> (8 - padBits))
	for y := 0; y < bm.Height; y++ {
		last := bm.Data[(y+1)*bm.Stride()-1]
		require.Zero(t, last&mask, "row %d", y)
	}
}

func TestEncodeQRQuietZoneIsWhite(t *testing.T) {
	bm, err := bitmap.EncodeQR("hello", 0)
	require.NoError(t, err)
	for x := 0; x < bm.Width; x++ {
		require.False(t, bm.Covered(x, 0))
	}
	// finder pattern corner
	require.True(t, bm.Covered(bitmap.QuietZone, bitmap.QuietZone))
}

func TestEncodeQRScales(t *testing.T) {
	small, err := bitmap.EncodeQR("hello", 0)
	require.NoError(t, err)
	big, err := bitmap.EncodeQR("hello", small.Width*3)
	require.NoError(t, err)
	require.Equal(t, small.Width*3, big.Width)
}

func TestEncodeQRRejectsEmptyPayload(t *testing.T) {
	_, err := bitmap.EncodeQR("", 99)
	require.Error(t, err)
}

func TestEncodeGlyph(t *testing.T) {
	a, err := bitmap.EncodeGlyph('A')
	require.NoError(t, err)
	require.Equal(t, bitmap.GlyphWidth, a.Width)
	require.Equal(t, bitmap.GlyphHeight, a.Height)
	require.Len(t, a.Data, 3*bitmap.GlyphHeight)

	again, err := bitmap.EncodeGlyph('A')
	require.NoError(t, err)
	require.Equal(t, a.Data, again.Data)

	covered := 0
	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			if a.Covered(x, y) {
				covered++
			}
		}
		// 18 pixels leave six padding bits per row
		require.Zero(t, a.Data[y*3+2]&0x3f)
	}
	require.NotZero(t, covered)

	space, err := bitmap.EncodeGlyph(' ')
	require.NoError(t, err)
	for y := 0; y < space.Height; y++ {
		require.Equal(t, []byte{0xff, 0xff, 0xc0}, space.Data[y*3:y*3+3])
	}
}

func TestEncodeGlyphUnsupported(t *testing.T) {
	_, err := bitmap.EncodeGlyph('日')
	require.Error(t, err)
	_, err = bitmap.EncodeGlyph('\n')
	require.Error(t, err)
}

func TestGlyphs(t *testing.T) {
	glyphs, missing := bitmap.Glyphs("aab日")
	require.Len(t, glyphs, 2)
	require.Contains(t, glyphs, "61")
	require.Contains(t, glyphs, "62")
	require.Equal(t, []rune{'日'}, missing)
	require.Equal(t, "e697a5", bitmap.GlyphKey('日'))
}
