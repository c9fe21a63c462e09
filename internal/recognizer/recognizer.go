// Package recognizer runs the preprocess → predict sequence shared by the
// HTTP handlers and the Telegram bot.
package recognizer

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/google/uuid"

	"github.com/Brownie44l1/digit-api/internal/model"
	"github.com/Brownie44l1/digit-api/internal/preprocess"
)

var (
	// ErrBlankCanvas is returned before any inference when nothing is drawn.
	ErrBlankCanvas = errors.New("blank canvas")
	// ErrRecognition wraps any failure inside preprocessing or inference.
	ErrRecognition = errors.New("recognition failed")
)

// ModelSource hands out the shared classifier. *model.Loader implements it.
type ModelSource interface {
	Get() (model.Classifier, error)
}

type Result struct {
	RequestID  string
	Prediction *model.Prediction
	Contract   model.Contract
	// Thumbnail is the PNG of what the classifier saw.
	Thumbnail []byte
}

type Recognizer struct {
	models        ModelSource
	thumbnailSize int
}

func New(models ModelSource, thumbnailSize int) *Recognizer {
	return &Recognizer{models: models, thumbnailSize: thumbnailSize}
}

// Recognize classifies a drawn image. It returns ErrBlankCanvas without
// touching the model when the image holds no stroke, an error wrapping
// model.ErrModelUnavailable when no model is loaded, and ErrRecognition for
// anything that goes wrong after that.
func (r *Recognizer) Recognize(img image.Image, opts preprocess.Options) (res *Result, err error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", preprocess.ErrInvalidImage)
	}
	if !opts.Invert && preprocess.IsBlank(img) {
		return nil, ErrBlankCanvas
	}

	c, err := r.models.Get()
	if err != nil {
		return nil, err
	}

	reqID := uuid.NewString()
	defer recoverInto(reqID, &err)

	tensor, err := preprocess.Process(img, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: preprocess: %w", ErrRecognition, err)
	}
	// An inverted photo of an empty page becomes blank only after
	// preprocessing; a drawn canvas was already checked above.
	if opts.Invert && tensor.Empty() {
		return nil, ErrBlankCanvas
	}

	pred, err := c.Predict(tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
	}

	thumb, err := preprocess.Thumbnail(tensor.Gray, r.thumbnailSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
	}

	log.Printf("[%s] predicted %d (%.1f%%)", reqID, pred.Digit, pred.Confidence*100)
	return &Result{
		RequestID:  reqID,
		Prediction: pred,
		Contract:   c.Contract(),
		Thumbnail:  thumb,
	}, nil
}

// RecognizeTensor classifies an already preprocessed sample of
// model.NumPixels values.
func (r *Recognizer) RecognizeTensor(data []float32) (res *Result, err error) {
	if len(data) != model.NumPixels {
		return nil, fmt.Errorf("%w: expected %d values, got %d", model.ErrBadInput, model.NumPixels, len(data))
	}
	blank := true
	for _, v := range data {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: values must lie in [0,1]", model.ErrBadInput)
		}
		if v != 0 {
			blank = false
		}
	}
	if blank {
		return nil, ErrBlankCanvas
	}

	c, err := r.models.Get()
	if err != nil {
		return nil, err
	}

	reqID := uuid.NewString()
	defer recoverInto(reqID, &err)

	pred, err := c.Predict(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	log.Printf("[%s] predicted %d (%.1f%%)", reqID, pred.Digit, pred.Confidence*100)
	return &Result{RequestID: reqID, Prediction: pred, Contract: c.Contract()}, nil
}

func recoverInto(reqID string, err *error) {
	if p := recover(); p != nil {
		log.Printf("[%s] panic during recognition: %v", reqID, p)
		*err = fmt.Errorf("%w: panic: %v", ErrRecognition, p)
	}
}
