package preprocess

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
)

// MaxCanvasSide bounds each dimension of a raw canvas buffer.
const MaxCanvasSide = 4096

var ErrInvalidImage = errors.New("invalid image")

// Decode reads a PNG or JPEG image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// DecodeDataURL decodes a "data:image/png;base64,..." string as produced by
// HTMLCanvasElement.toDataURL. Bare base64 is accepted too.
func DecodeDataURL(s string) (image.Image, error) {
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		i := strings.Index(payload, ",")
		if i < 0 || !strings.HasSuffix(payload[:i], ";base64") {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		payload = payload[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return Decode(bytes.NewReader(raw))
}

// FromRGBA wraps a raw height × width × 4 buffer, row-major, as an image.
func FromRGBA(width, height int, pix []byte) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || width > MaxCanvasSide || height > MaxCanvasSide {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidImage, width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("%w: expected %d bytes for %dx%d RGBA, got %d",
			ErrInvalidImage, width*height*4, width, height, len(pix))
	}
	return &image.RGBA{
		Pix:    pix,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// IsBlank reports whether no pixel carries any color. Alpha is ignored, so
// a transparent canvas and one filled with opaque black are both blank.
func IsBlank(img image.Image) bool {
	if rgba, ok := img.(*image.RGBA); ok {
		b := rgba.Rect
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := rgba.Pix[rgba.PixOffset(b.Min.X, y):rgba.PixOffset(b.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				if row[i] != 0 || row[i+1] != 0 || row[i+2] != 0 {
					return false
				}
			}
		}
		return true
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != 0 || g != 0 || bl != 0 {
				return false
			}
		}
	}
	return true
}
