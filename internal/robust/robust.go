// Package robust holds the median-based location and spread estimators shared
// by the outlier scorer, control charts and QC status.
package robust

import (
	"math"

	"github.com/montanaflynn/stats"
)

// SigmaScale converts a MAD into a normal-consistent sigma estimate.
const SigmaScale = 1.4826

// Median returns the median of values; an even-length set averages the two
// middle elements. Empty input yields NaN.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m, err := stats.Median(values)
	if err != nil {
		return math.NaN()
	}
	return m
}

// MAD returns the median absolute deviation of values about center.
func MAD(values []float64, center float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - center)
	}
	return Median(dev)
}

// Summary is the robust center and spread of a sample.
type Summary struct {
	N      int
	Median float64
	MAD    float64
	Sigma  float64
}

// Summarize computes median, MAD and 1.4826*MAD over values. Empty input
// gives NaN fields.
func Summarize(values []float64) Summary {
	med := Median(values)
	mad := MAD(values, med)
	return Summary{
		N:      len(values),
		Median: med,
		MAD:    mad,
		Sigma:  SigmaScale * mad,
	}
}

// SigmaOrOne returns the robust sigma, or 1.0 when it is not positive.
func (s Summary) SigmaOrOne() float64 {
	if s.Sigma > 0 {
		return s.Sigma
	}
	return 1.0
}
