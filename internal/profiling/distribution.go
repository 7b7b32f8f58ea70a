package profiling

import (
	"math"
)

// calculateSkewness computes sample skewness using the adjusted Fisher-Pearson
// coefficient. Zero below three points or for a constant series.
func calculateSkewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubedDeviations := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubedDeviations += deviation * deviation * deviation
	}

	skewness := sumCubedDeviations / n
	return skewness * math.Sqrt(n*(n-1)) / (n - 2)
}
