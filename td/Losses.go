package td

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gotd/utils/floatutils"
)

// Loss is a pointwise regression loss between bootstrap targets and
// predictions, exposed through three consistent views. Value is the
// mean loss over a batch. Grad is the exact derivative of Value with
// respect to each prediction, including the averaging factor, and is
// what gets backpropagated. Residuals is the per-transition TD error:
// the negative derivative of the pointwise loss with respect to the
// prediction at its conventional scale, so that a squared error loss
// yields exactly target - prediction.
type Loss interface {
	Value(target, prediction []float64) float64
	Grad(target, prediction []float64) []float64
	Residuals(target, prediction []float64) []float64
}

// SquaredError is the plain squared error loss (target - prediction)²
// averaged over the batch.
type SquaredError struct{}

// NewSquaredError returns a new squared error loss
func NewSquaredError() SquaredError {
	return SquaredError{}
}

// Value returns the mean squared error between targets and
// predictions
func (s SquaredError) Value(target, prediction []float64) float64 {
	sum := 0.0
	for i := range target {
		diff := target[i] - prediction[i]
		sum += diff * diff
	}
	return sum / float64(len(target))
}

// Grad returns the derivative of Value with respect to each
// prediction
func (s SquaredError) Grad(target, prediction []float64) []float64 {
	n := float64(len(target))
	grad := make([]float64, len(target))
	for i := range target {
		grad[i] = 2 * (prediction[i] - target[i]) / n
	}
	return grad
}

// Residuals returns the TD error target - prediction
func (s SquaredError) Residuals(target, prediction []float64) []float64 {
	res := make([]float64, len(target))
	for i := range target {
		res[i] = target[i] - prediction[i]
	}
	return res
}

// Huber is the Huber loss: quadratic for residuals within Delta of
// zero and linear outside, making learning robust to outlier targets.
type Huber struct {
	Delta float64
}

// NewHuber returns a new Huber loss with the given threshold
func NewHuber(delta float64) Huber {
	if delta <= 0 {
		panic(fmt.Sprintf("newHuber: delta must be positive, got %v",
			delta))
	}
	return Huber{Delta: delta}
}

// Value returns the mean Huber loss between targets and predictions
func (h Huber) Value(target, prediction []float64) float64 {
	sum := 0.0
	for i := range target {
		diff := target[i] - prediction[i]
		if abs := math.Abs(diff); abs <= h.Delta {
			sum += 0.5 * diff * diff
		} else {
			sum += h.Delta * (abs - 0.5*h.Delta)
		}
	}
	return sum / float64(len(target))
}

// Grad returns the derivative of Value with respect to each
// prediction
func (h Huber) Grad(target, prediction []float64) []float64 {
	n := float64(len(target))
	grad := make([]float64, len(target))
	for i := range target {
		clipped := floatutils.Clip(prediction[i]-target[i], -h.Delta,
			h.Delta)
		grad[i] = clipped / n
	}
	return grad
}

// Residuals returns the TD error clipped to [-Delta, Delta]
func (h Huber) Residuals(target, prediction []float64) []float64 {
	res := make([]float64, len(target))
	for i := range target {
		res[i] = floatutils.Clip(target[i]-prediction[i], -h.Delta,
			h.Delta)
	}
	return res
}
