package bench

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FitResult is the line time = Intercept + Slope*bytes through the best
// timings. Slope is the inverse bandwidth in seconds per byte and Intercept
// the latency in seconds.
type FitResult struct {
	Slope     float64 `yaml:"slope"`
	Intercept float64 `yaml:"intercept"`
	Variance  float64 `yaml:"variance"`
}

// Bandwidth returns the fitted bandwidth in bytes per second.
func (f FitResult) Bandwidth() float64 {
	return 1 / f.Slope
}

// Latency returns the latency implied by one measured point: its time less
// the transfer time the fit predicts for its size.
func (f FitResult) Latency(bytes, seconds float64) float64 {
	return seconds - f.Slope*bytes
}

// Fit computes the ordinary least squares line through (x[i], y[i]). The
// variance estimate is the residual sum of squares scaled by sum(x^2)*(n-2).
// At least three points with distinct x values are required.
func Fit(x, y []float64) (FitResult, error) {
	if len(x) != len(y) {
		return FitResult{}, errors.WithStack(&DimensionMismatchError{X: len(x), Y: len(y)})
	}
	n := len(x)
	if n <= 2 {
		return FitResult{}, errors.WithStack(&InsufficientPointsError{
			N:       n,
			Message: "the variance estimate needs more than two points",
		})
	}

	meanX := stat.Mean(x, nil)
	t := make([]float64, n)
	for i := range x {
		t[i] = x[i] - meanX
	}
	sxx := floats.Dot(t, t)
	if sxx == 0 {
		return FitResult{}, errors.WithStack(&InsufficientPointsError{
			N:       n,
			Message: "all x values are equal",
		})
	}

	slope := floats.Dot(t, y) / sxx
	intercept := (floats.Sum(y) - floats.Sum(x)*slope) / float64(n)

	// residuals reuse t
	for i := range x {
		t[i] = y[i] - slope*x[i] - intercept
	}
	rss := floats.Dot(t, t)
	return FitResult{
		Slope:     slope,
		Intercept: intercept,
		Variance:  rss / (floats.Dot(x, x) * float64(n-2)),
	}, nil
}
