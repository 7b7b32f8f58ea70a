package profiling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runqa/domain/series"
	"runqa/internal/outlier"
)

func TestProfileMetric(t *testing.T) {
	s, _ := series.NewMetricSeries("m", []series.Point{
		{Run: 1, Value: 2, Weight: 1},
		{Run: 2, Value: 4, Weight: 1},
		{Run: 3, Value: math.NaN(), Weight: 1},
		{Run: 4, Value: 6, Weight: 1},
	})
	scores := outlier.Result{Metric: "m", Stats: []outlier.LocalStats{
		{Run: 1, Weak: true}, {Run: 2, Strong: true}, {Run: 3}, {Run: 4},
	}}

	p := NewDataProfiler().ProfileMetric(s, scores)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 3, p.Finite)
	assert.Equal(t, 1, p.NaN)
	assert.InDelta(t, 25.0, p.NaNRate(), 1e-12)
	assert.InDelta(t, 4.0, p.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(8.0/3.0), p.Std, 1e-12)
	assert.Equal(t, 2.0, p.Min)
	assert.Equal(t, 6.0, p.Max)
	assert.InDelta(t, 0.0, p.Skewness, 1e-12)
	assert.Equal(t, 1, p.Weak)
	assert.Equal(t, 1, p.Strong)
	assert.True(t, p.NeedsAttention())
	assert.False(t, p.Clean())
}

func TestProfileAllNaN(t *testing.T) {
	s, _ := series.NewMetricSeries("empty", []series.Point{{Run: 1, Value: math.NaN()}})
	p := NewDataProfiler().ProfileMetric(s, outlier.Result{})
	assert.Equal(t, 1, p.NaN)
	assert.True(t, math.IsNaN(p.Mean))
	assert.True(t, math.IsNaN(p.Max))
}

func TestSummarize(t *testing.T) {
	o := Summarize([]MetricProfile{
		{Metric: "a", Total: 3},
		{Metric: "b", Total: 3, NaN: 1, Weak: 2},
		{Metric: "c", Total: 3, Weak: 1},
	})
	assert.Equal(t, 3, o.Metrics)
	assert.Equal(t, 1, o.Clean)
	assert.Equal(t, 1, o.TotalNaN)
	assert.Equal(t, 3, o.TotalOutliers)
	require.Len(t, o.Attention, 1)
	assert.Equal(t, "b", o.Attention[0].Metric)
}

func TestSkewnessSign(t *testing.T) {
	data := []float64{1, 1, 1, 1, 10}
	mean := 2.8
	sd := 3.6
	assert.Greater(t, calculateSkewness(data, mean, sd), 0.0)
	assert.Equal(t, 0.0, calculateSkewness([]float64{1, 2}, 1.5, 0.5))
}
