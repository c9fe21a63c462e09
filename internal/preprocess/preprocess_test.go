package preprocess

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

const canvasSize = 250

// verticalLine returns a 250×250×4 buffer, black background, with a white
// 18px stroke down the middle.
func verticalLine() []byte {
	pix := make([]byte, canvasSize*canvasSize*4)
	for y := 25; y < 225; y++ {
		for x := 116; x < 134; x++ {
			i := (y*canvasSize + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = 255, 255, 255, 255
		}
	}
	return pix
}

func TestFromRGBA(t *testing.T) {
	img, err := FromRGBA(canvasSize, canvasSize, verticalLine())
	if err != nil {
		t.Fatalf("FromRGBA: %v", err)
	}
	if img.Bounds().Dx() != canvasSize || img.RGBAAt(120, 100) != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("unexpected image %v", img.Bounds())
	}
	if _, err := FromRGBA(canvasSize, canvasSize, make([]byte, 10)); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("short buffer err=%v", err)
	}
	if _, err := FromRGBA(0, canvasSize, nil); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("zero width err=%v", err)
	}
	// width*height*4 wraps to 16 here.
	if _, err := FromRGBA((1<<62)+1, 4, make([]byte, 16)); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("overflowing width err=%v", err)
	}
	if _, err := FromRGBA(MaxCanvasSide+1, 1, make([]byte, (MaxCanvasSide+1)*4)); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("oversized width err=%v", err)
	}
}

func TestIsBlank(t *testing.T) {
	transparent, _ := FromRGBA(canvasSize, canvasSize, make([]byte, canvasSize*canvasSize*4))
	if !IsBlank(transparent) {
		t.Fatalf("transparent canvas not blank")
	}

	opaque := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 255
	}
	if !IsBlank(opaque) {
		t.Fatalf("opaque black canvas not blank")
	}

	drawn, _ := FromRGBA(canvasSize, canvasSize, verticalLine())
	if IsBlank(drawn) {
		t.Fatalf("drawn canvas reported blank")
	}

	opaque.Pix[0] = 1
	if IsBlank(opaque) {
		t.Fatalf("single red pixel reported blank")
	}
}

func TestProcess_ShapeAndRange(t *testing.T) {
	img, _ := FromRGBA(canvasSize, canvasSize, verticalLine())
	tensor, err := Process(img, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tensor.Data) != Size*Size {
		t.Fatalf("len=%d", len(tensor.Data))
	}
	if b := tensor.Gray.Bounds(); b.Dx() != Size || b.Dy() != Size {
		t.Fatalf("gray bounds %v", b)
	}
	for i, v := range tensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("value %d=%v out of range", i, v)
		}
	}
}

func TestProcess_VerticalStripe(t *testing.T) {
	img, _ := FromRGBA(canvasSize, canvasSize, verticalLine())
	tensor, err := Process(img, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	at := func(x, y int) float32 { return tensor.Data[y*Size+x] }

	center := max(at(13, 14), at(14, 14))
	if center < 0.7 {
		t.Fatalf("stripe center=%v, want bright", center)
	}
	if at(0, 14) > 0.05 || at(27, 14) > 0.05 {
		t.Fatalf("edges not dark: %v %v", at(0, 14), at(27, 14))
	}

	var mean float32
	for _, v := range tensor.Data {
		mean += v
	}
	mean /= float32(len(tensor.Data))
	if mean > 0.25 {
		t.Fatalf("mean=%v, want predominantly dark", mean)
	}
}

func TestProcess_Invert(t *testing.T) {
	img, _ := FromRGBA(canvasSize, canvasSize, verticalLine())
	plain, _ := Process(img, Options{})
	inverted, err := Process(img, Options{Invert: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for i := range plain.Data {
		if d := plain.Data[i] + inverted.Data[i]; d < 0.999 || d > 1.001 {
			t.Fatalf("index %d: %v + %v", i, plain.Data[i], inverted.Data[i])
		}
	}
	if inverted.Gray.GrayAt(0, 0).Y != 255 {
		t.Fatalf("inverted gray not updated")
	}
}

func TestProcess_TransparentBackground(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 56, 56))
	for y := 10; y < 46; y++ {
		for x := 24; x < 32; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	tensor, err := Process(img, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if tensor.Data[0] != 0 {
		t.Fatalf("transparent corner=%v, want 0", tensor.Data[0])
	}
	if tensor.Empty() {
		t.Fatalf("stroke lost")
	}
}

func TestDecodeDataURL(t *testing.T) {
	img, _ := FromRGBA(canvasSize, canvasSize, verticalLine())
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	for _, s := range []string{"data:image/png;base64," + encoded, encoded} {
		got, err := DecodeDataURL(s)
		if err != nil {
			t.Fatalf("DecodeDataURL: %v", err)
		}
		if got.Bounds().Dx() != canvasSize {
			t.Fatalf("bounds=%v", got.Bounds())
		}
	}

	for _, bad := range []string{"data:image/png,abc", "data:image/png;base64,!!!", "aGVsbG8="} {
		if _, err := DecodeDataURL(bad); !errors.Is(err, ErrInvalidImage) {
			t.Fatalf("DecodeDataURL(%q) err=%v", bad, err)
		}
	}
}

func TestThumbnail(t *testing.T) {
	img, _ := FromRGBA(canvasSize, canvasSize, verticalLine())
	tensor, _ := Process(img, Options{})

	data, err := Thumbnail(tensor.Gray, 120)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 120 || b.Dy() != 120 {
		t.Fatalf("thumbnail bounds %v", b)
	}

	url := DataURL(data)
	if _, err := DecodeDataURL(url); err != nil {
		t.Fatalf("round trip: %v", err)
	}

	if _, err := Thumbnail(nil, 120); err == nil {
		t.Fatalf("nil image accepted")
	}
}
