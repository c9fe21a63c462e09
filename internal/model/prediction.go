package model

import (
	"fmt"
	"math"
	"strconv"
)

// NewPrediction turns a raw output vector into a Prediction. When logits is
// set the vector is passed through softmax first.
func NewPrediction(output []float32, classes []string, logits bool) (*Prediction, error) {
	if len(output) != NumClasses {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrBadOutput, NumClasses, len(output))
	}
	for i, v := range output {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: non-finite value at index %d", ErrBadOutput, i)
		}
	}

	probs := make([]float32, len(output))
	if logits {
		softmax(probs, output)
	} else {
		copy(probs, output)
	}

	maxIdx := 0
	maxVal := probs[0]
	for i, val := range probs {
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	return &Prediction{
		Digit:         maxIdx,
		Class:         className(classes, maxIdx),
		Confidence:    maxVal,
		Probabilities: probs,
		classes:       classes,
	}, nil
}

// Response converts p to the per-class map returned by the raw predict API.
func (p *Prediction) Response() *PredictionResponse {
	predictions := make(map[string]float32, len(p.Probabilities))
	for i, v := range p.Probabilities {
		predictions[className(p.classes, i)] = v
	}
	return &PredictionResponse{
		Class:       p.Class,
		Confidence:  p.Confidence,
		Predictions: predictions,
	}
}

func className(classes []string, i int) string {
	if len(classes) == NumClasses {
		return classes[i]
	}
	return strconv.Itoa(i)
}

func softmax(dst, src []float32) {
	maxVal := src[0]
	for _, v := range src {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float64
	for i, v := range src {
		e := math.Exp(float64(v - maxVal))
		dst[i] = float32(e)
		sum += e
	}
	for i := range dst {
		dst[i] = float32(float64(dst[i]) / sum)
	}
}
