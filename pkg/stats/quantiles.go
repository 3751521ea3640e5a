// Package stats provides the weighted order statistics used to calibrate
// the gradient weights against control-run variability.
package stats

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned when quantiles are requested over an empty
// sample or one whose weights sum to zero.
var ErrEmptyInput = errors.New("stats: empty input or all weights zero")

// Quartiles holds the weighted (min, 1st quartile, median, 3rd quartile,
// max) of a sample, in that order. The sequence is non-decreasing.
type Quartiles [5]float64

// WeightedQuartiles computes the weighted quartiles of values.
//
// The samples are sorted, the cumulative weight fraction is formed, and the
// sample value is linearly interpolated at cumulative fractions
// {0, 0.25, 0.5, 0.75, 1}. Weights must be non-negative; values and weights
// must have equal length. Duplicate values are fine, and weights spanning
// many orders of magnitude do not overflow since only their running sum is
// formed.
//
// Both input slices are modified (sorted in place). Returns ErrEmptyInput
// when the sample is empty or carries no weight.
func WeightedQuartiles(values, weights []float64) (Quartiles, error) {
	var q Quartiles
	if len(values) == 0 || len(values) != len(weights) {
		return q, ErrEmptyInput
	}

	// Zero-weight samples carry no information and would distort the min
	// and max taps, so they are dropped before sorting.
	n := 0
	for i, w := range weights {
		if w > 0 {
			values[n] = values[i]
			weights[n] = w
			n++
		}
	}
	values = values[:n]
	weights = weights[:n]
	if n == 0 {
		return q, ErrEmptyInput
	}

	stat.SortWeighted(values, weights)

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return q, ErrEmptyInput
	}

	// Cumulative weight fraction at each sample, reused for all five taps.
	cum := make([]float64, len(weights))
	running := 0.0
	for i, w := range weights {
		running += w
		cum[i] = running / total
	}

	fractions := [5]float64{0.0, 0.25, 0.5, 0.75, 1.0}
	for fi, f := range fractions {
		q[fi] = interpolateAt(values, cum, f)
	}
	return q, nil
}

// interpolateAt linearly interpolates the sorted sample value at cumulative
// weight fraction f. cum is non-decreasing and ends at 1.
func interpolateAt(values, cum []float64, f float64) float64 {
	if f <= cum[0] {
		return values[0]
	}
	for i := 1; i < len(cum); i++ {
		if cum[i] >= f {
			lo, hi := cum[i-1], cum[i]
			if hi == lo {
				return values[i]
			}
			t := (f - lo) / (hi - lo)
			return values[i-1] + t*(values[i]-values[i-1])
		}
	}
	return values[len(values)-1]
}
