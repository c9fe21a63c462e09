package model

import "errors"

const (
	// InputSize is the side length of the square image the classifier sees.
	InputSize = 28
	// NumPixels is the flattened length of one preprocessed sample.
	NumPixels = InputSize * InputSize
	// NumClasses is the number of digit classes, 0 through 9.
	NumClasses = 10
)

var (
	ErrModelUnavailable = errors.New("model unavailable")
	ErrBadShape         = errors.New("unsupported input shape")
	ErrBadOutput        = errors.New("unexpected model output")
	ErrBadInput         = errors.New("invalid model input")
)

// Metadata describes the artifact next to the .onnx file. Every field is
// optional; missing values are taken from the model itself.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	Logits      bool     `json:"logits"`
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

// Prediction is the classifier output for a single sample.
type Prediction struct {
	Digit         int       `json:"digit"`
	Class         string    `json:"class"`
	Confidence    float32   `json:"confidence"`
	Probabilities []float32 `json:"probabilities"`

	classes []string
}

type PredictionResponse struct {
	Class       string             `json:"class"`
	Confidence  float32            `json:"confidence"`
	Predictions map[string]float32 `json:"predictions"`
}
