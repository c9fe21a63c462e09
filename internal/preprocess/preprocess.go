// Package preprocess turns a drawn canvas into the 28×28 normalized tensor
// the digit classifier expects.
package preprocess

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/draw"
)

// Size is the side length of the preprocessed image.
const Size = 28

type Options struct {
	// Invert flips intensities so dark-on-light input matches the
	// light-on-dark training data.
	Invert bool
}

// Tensor is one preprocessed sample.
type Tensor struct {
	// Data holds Size*Size row-major values in [0,1].
	Data []float32
	// Gray is the downscaled grayscale image Data was read from.
	Gray *image.Gray
}

// Process resizes img to Size×Size with Lanczos3, converts it to grayscale
// and scales intensities to [0,1]. The digit is not centered or cropped.
func Process(img image.Image, opts Options) (*Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	resized := resize.Resize(Size, Size, flatten(img), resize.Lanczos3)
	gray := imageutil.Grayscale(resized)

	b := gray.Bounds()
	if b.Dx() != Size || b.Dy() != Size {
		return nil, fmt.Errorf("%w: resized to %dx%d", ErrInvalidImage, b.Dx(), b.Dy())
	}

	out := image.NewGray(image.Rect(0, 0, Size, Size))
	data := make([]float32, Size*Size)
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			pix := gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y
			if opts.Invert {
				pix = 255 - pix
			}
			out.Pix[y*out.Stride+x] = pix
			data[y*Size+x] = float32(pix) / 255.0
		}
	}

	return &Tensor{Data: data, Gray: out}, nil
}

// Empty reports whether every value in the tensor is zero.
func (t *Tensor) Empty() bool {
	for _, v := range t.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// flatten composes img over an opaque black background so transparent
// canvas pixels read as black.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
