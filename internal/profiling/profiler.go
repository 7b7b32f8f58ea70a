// Package profiling summarizes the coverage and spread of each metric series.
package profiling

import (
	"math"

	"github.com/montanaflynn/stats"

	"runqa/domain/series"
	"runqa/internal/outlier"
)

// MetricProfile is the per-metric coverage summary used by REPORT.md.
// Mean, Std, Min, Max and Skewness are NaN when no run has a finite value.
type MetricProfile struct {
	Metric   string
	Total    int
	Finite   int
	NaN      int
	Mean     float64
	Std      float64
	Min      float64
	Max      float64
	Skewness float64
	Weak     int
	Strong   int
}

// NaNRate returns the percentage of runs without a finite value.
func (p MetricProfile) NaNRate() float64 {
	if p.Total == 0 {
		return 0
	}
	return 100 * float64(p.NaN) / float64(p.Total)
}

// Clean reports a metric without NaN runs or outlier flags.
func (p MetricProfile) Clean() bool {
	return p.NaN == 0 && p.Weak == 0 && p.Strong == 0
}

// NeedsAttention reports a metric with NaN runs or strong outliers.
func (p MetricProfile) NeedsAttention() bool {
	return p.NaN > 0 || p.Strong > 0
}

// DataProfiler builds metric profiles.
type DataProfiler struct{}

// NewDataProfiler creates a new data profiler
func NewDataProfiler() *DataProfiler {
	return &DataProfiler{}
}

// ProfileMetric summarizes one series together with its outlier scores.
func (dp *DataProfiler) ProfileMetric(s series.MetricSeries, scores outlier.Result) MetricProfile {
	p := MetricProfile{
		Metric:   s.Name,
		Total:    s.Len(),
		Mean:     math.NaN(),
		Std:      math.NaN(),
		Min:      math.NaN(),
		Max:      math.NaN(),
		Skewness: math.NaN(),
		Weak:     scores.CountWeak(),
		Strong:   scores.CountStrong(),
	}
	data := s.FiniteValues()
	p.Finite = len(data)
	p.NaN = p.Total - p.Finite
	if p.Finite == 0 {
		return p
	}

	p.Mean, _ = stats.Mean(data)
	p.Std, _ = stats.StandardDeviationPopulation(data)
	p.Min, _ = stats.Min(data)
	p.Max, _ = stats.Max(data)
	p.Skewness = calculateSkewness(data, p.Mean, p.Std)
	return p
}

// Overview aggregates the profiles of all metrics.
type Overview struct {
	Metrics       int
	Clean         int
	TotalNaN      int
	TotalOutliers int
	Attention     []MetricProfile
}

// Summarize builds the health overview, keeping profile order.
func Summarize(profiles []MetricProfile) Overview {
	o := Overview{Metrics: len(profiles)}
	for _, p := range profiles {
		o.TotalNaN += p.NaN
		o.TotalOutliers += p.Weak + p.Strong
		if p.Clean() {
			o.Clean++
		}
		if p.NeedsAttention() {
			o.Attention = append(o.Attention, p)
		}
	}
	return o
}
