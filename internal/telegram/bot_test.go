package telegram

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/recognizer"
)

type fixedClassifier struct{ calls int }

func (f *fixedClassifier) Predict(input []float32) (*model.Prediction, error) {
	f.calls++
	out := make([]float32, model.NumClasses)
	out[2] = 0.875
	out[5] = 0.125
	return model.NewPrediction(out, nil, false)
}

func (f *fixedClassifier) Contract() model.Contract { return model.ContractImage }
func (f *fixedClassifier) Close()                   {}

func newTestBot(open model.OpenFunc) *Bot {
	return &Bot{recognizer: recognizer.New(model.NewLoader(open), 120)}
}

// paperPhoto is a light page with a dark vertical stroke.
func paperPhoto(t *testing.T, withStroke bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if withStroke && x >= 45 && x < 55 && y >= 10 && y < 90 {
				c = color.RGBA{20, 20, 20, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestClassify(t *testing.T) {
	fc := &fixedClassifier{}
	b := newTestBot(func() (model.Classifier, error) { return fc, nil })

	reply, thumb := b.classify(paperPhoto(t, true))
	if reply != "Predicted: 2\nConfidence: 87.5%" {
		t.Fatalf("reply=%q", reply)
	}
	if len(thumb) == 0 {
		t.Fatalf("no thumbnail")
	}
	if fc.calls != 1 {
		t.Fatalf("calls=%d", fc.calls)
	}
}

func TestClassify_BlankPage(t *testing.T) {
	fc := &fixedClassifier{}
	b := newTestBot(func() (model.Classifier, error) { return fc, nil })

	reply, thumb := b.classify(paperPhoto(t, false))
	if reply != blankText || thumb != nil {
		t.Fatalf("reply=%q", reply)
	}
	if fc.calls != 0 {
		t.Fatalf("classifier called on a blank page")
	}
}

func TestClassify_Failures(t *testing.T) {
	b := newTestBot(func() (model.Classifier, error) { return nil, errors.New("missing") })

	if reply, _ := b.classify([]byte("not an image")); !strings.Contains(reply, "JPEG or PNG") {
		t.Fatalf("reply=%q", reply)
	}
	if reply, _ := b.classify(paperPhoto(t, true)); !strings.Contains(reply, "not available") {
		t.Fatalf("reply=%q", reply)
	}
}
