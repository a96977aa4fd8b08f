package bitmap

import (
	"fmt"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// QuietZone is the white border, in modules, drawn around a QR symbol.
const QuietZone = 2

// EncodeQR builds a QR symbol for payload and scales it by the largest whole
// factor that keeps it within widthHint pixels. A widthHint of zero, or one
// smaller than the symbol, leaves one pixel per module.
func EncodeQR(payload string, widthHint int) (*Bitmap, error) {
	if payload == "" {
		return nil, fmt.Errorf("qr payload is empty")
	}

	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}

	modules := code.Bounds().Dx()
	total := modules + 2*QuietZone
	scale := 1
	if widthHint > total {
		scale = widthHint / total
	}

	if scale > 1 {
		scaled, err := barcode.Scale(code, modules*scale, modules*scale)
		if err != nil {
			return nil, fmt.Errorf("qr scale: %w", err)
		}
		code = scaled
	}

	img := FromImage(code)
	border := QuietZone * scale
	side := img.Width + 2*border
	return Pack(side, side, func(x, y int) bool {
		x, y = x-border, y-border
		if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
			return false
		}
		return img.Covered(x, y)
	}), nil
}
