// Package recognizer trains and queries a hand-drawn digit classifier.
package recognizer

import (
	"context"
	"fmt"
	"math"
)

const (
	Side       = 28
	SampleSize = Side * Side
	Classes    = 10
)

// Sample is a 28x28 grayscale image, row-major, values in 0..1.
type Sample [SampleSize]float64

// Model is the trainable classifier. Implementations need not be safe for
// concurrent use; the Service serializes every call.
type Model interface {
	Train(ctx context.Context, sample Sample, label int) error
	Predict(ctx context.Context, sample Sample) ([]float64, error)
}

// SoftmaxModel is a single-layer softmax regression trained with one SGD
// step per sample.
type SoftmaxModel struct {
	weights [Classes][SampleSize]float64
	bias    [Classes]float64
	rate    float64
}

func NewSoftmaxModel(rate float64) *SoftmaxModel {
	if rate <= 0 {
		rate = 0.05
	}
	return &SoftmaxModel{rate: rate}
}

func (m *SoftmaxModel) Train(ctx context.Context, sample Sample, label int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if label < 0 || label >= Classes {
		return fmt.Errorf("%w: %d", ErrInvalidDigit, label)
	}
	probs := m.forward(&sample)
	for c := 0; c < Classes; c++ {
		grad := probs[c]
		if c == label {
			grad -= 1
		}
		if grad == 0 {
			continue
		}
		step := m.rate * grad
		for i, x := range sample {
			if x != 0 {
				m.weights[c][i] -= step * x
			}
		}
		m.bias[c] -= step
	}
	return nil
}

func (m *SoftmaxModel) Predict(ctx context.Context, sample Sample) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	probs := m.forward(&sample)
	return probs[:], nil
}

func (m *SoftmaxModel) forward(sample *Sample) [Classes]float64 {
	var logits [Classes]float64
	maxLogit := math.Inf(-1)
	for c := 0; c < Classes; c++ {
		z := m.bias[c]
		for i, x := range sample {
			z += m.weights[c][i] * x
		}
		logits[c] = z
		maxLogit = math.Max(maxLogit, z)
	}
	var sum float64
	for c := range logits {
		logits[c] = math.Exp(logits[c] - maxLogit)
		sum += logits[c]
	}
	for c := range logits {
		logits[c] /= sum
	}
	return logits
}

// ArgMax returns the most likely class and its probability.
func ArgMax(probs []float64) (int, float64) {
	best, conf := -1, math.Inf(-1)
	for i, p := range probs {
		if p > conf {
			best, conf = i, p
		}
	}
	return best, conf
}
