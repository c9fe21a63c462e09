package preprocess

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Thumbnail upscales the preprocessed image with nearest-neighbour sampling,
// keeping the pixel grid visible, and encodes it as PNG.
func Thumbnail(gray *image.Gray, size int) ([]byte, error) {
	if gray == nil {
		return nil, fmt.Errorf("%w: no image", ErrInvalidImage)
	}
	if size <= 0 {
		size = gray.Bounds().Dx()
	}
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL wraps PNG bytes for direct use in an <img> src.
func DataURL(pngData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}
