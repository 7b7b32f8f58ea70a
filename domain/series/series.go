package series

import (
	"math"
	"sort"
)

// Point is one per-run measurement of a metric.
type Point struct {
	Run     int
	Value   float64
	StatErr float64
	Weight  float64
}

// Valid reports whether the point carries usable data: finite value and positive weight.
func (p Point) Valid() bool {
	return IsFinite(p.Value) && p.Weight > 0
}

// MetricSeries is the ordered per-run series for one metric. Runs are unique
// and ascending; non-finite values mean "no data".
type MetricSeries struct {
	Name   string
	Points []Point
}

// NewMetricSeries sorts points by run and drops later duplicates of a run.
// The number of dropped points is returned so callers can count them as
// malformed rows.
func NewMetricSeries(name string, points []Point) (MetricSeries, int) {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Run < sorted[j].Run })

	out := sorted[:0]
	dropped := 0
	for _, p := range sorted {
		if len(out) > 0 && out[len(out)-1].Run == p.Run {
			dropped++
			continue
		}
		out = append(out, p)
	}
	return MetricSeries{Name: name, Points: out}, dropped
}

// Len returns the number of runs in the series.
func (s MetricSeries) Len() int { return len(s.Points) }

// Runs returns the run numbers in series order.
func (s MetricSeries) Runs() []int {
	runs := make([]int, len(s.Points))
	for i, p := range s.Points {
		runs[i] = p.Run
	}
	return runs
}

// Values returns the values in series order, non-finite entries included.
func (s MetricSeries) Values() []float64 {
	vals := make([]float64, len(s.Points))
	for i, p := range s.Points {
		vals[i] = p.Value
	}
	return vals
}

// FiniteValues returns only the finite values in series order.
func (s MetricSeries) FiniteValues() []float64 {
	vals := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if IsFinite(p.Value) {
			vals = append(vals, p.Value)
		}
	}
	return vals
}

// IndexOf returns the series index of run, or -1.
func (s MetricSeries) IndexOf(run int) int {
	i := sort.Search(len(s.Points), func(i int) bool { return s.Points[i].Run >= run })
	if i < len(s.Points) && s.Points[i].Run == run {
		return i
	}
	return -1
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
