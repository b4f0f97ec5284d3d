package losses

import "github.com/chewxy/math32"

// ErrorMetric reduces a prediction and a target of equal length to a scalar.
type ErrorMetric interface {
	Compute(pred, target []float32) float32
}

// ErrorMetricFunc adapts a plain function to ErrorMetric.
type ErrorMetricFunc func(pred, target []float32) float32

// Compute calls f.
func (f ErrorMetricFunc) Compute(pred, target []float32) float32 { return f(pred, target) }

// MeanSquaredError is mean((pred - target)²).
type MeanSquaredError struct{}

// Compute returns the mean squared error, NaN for empty input.
func (MeanSquaredError) Compute(pred, target []float32) float32 {
	var sum float32
	for i := range pred {
		d := pred[i] - target[i]
		sum += d * d
	}
	return sum / float32(len(pred))
}

// MeanAbsoluteError is mean(|pred - target|).
type MeanAbsoluteError struct{}

// Compute returns the mean absolute error, NaN for empty input.
func (MeanAbsoluteError) Compute(pred, target []float32) float32 {
	var sum float32
	for i := range pred {
		sum += math32.Abs(pred[i] - target[i])
	}
	return sum / float32(len(pred))
}
