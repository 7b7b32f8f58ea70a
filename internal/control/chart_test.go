package control

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runqa/domain/series"
	"runqa/domain/verdict"
)

func mk(vals ...float64) series.MetricSeries {
	pts := make([]series.Point, len(vals))
	for i, v := range vals {
		pts[i] = series.Point{Run: i + 1, Value: v, StatErr: 0.1, Weight: 1}
	}
	s, _ := series.NewMetricSeries("m", pts)
	return s
}

func TestShewhartFlagsSpike(t *testing.T) {
	chart := NewEngine(DefaultParams()).Run(mk(1, 2, 3, 4, 5, 100))
	require.Len(t, chart.States, 6)

	// median 3.5, MAD 1.5 -> sigma 2.2239
	assert.InDelta(t, 3.5, chart.Center, 1e-12)
	assert.InDelta(t, 1.4826*1.5, chart.Sigma, 1e-12)
	last := chart.States[5]
	assert.True(t, last.ShewhartOOC)
	assert.Equal(t, verdict.ChartWarn, last.Flag)
	assert.False(t, chart.States[0].ShewhartOOC)
}

func TestZeroSigmaFallsBackToOne(t *testing.T) {
	chart := NewEngine(DefaultParams()).Run(mk(5, 5, 5, 5, 9))
	assert.Equal(t, 1.0, chart.Sigma)
	assert.InDelta(t, 4.0, chart.States[4].ZRobust, 1e-12)
	assert.True(t, chart.States[4].ShewhartOOC)
}

func repeat(block []float64, n int) []float64 {
	var out []float64
	for i := 0; i < n; i++ {
		out = append(out, block...)
	}
	return out
}

func TestCusumAccumulatesSustainedShift(t *testing.T) {
	// median 0, MAD 1 -> sigma 1.4826; each 3.0 run adds ~1.52 to C+
	vals := append(repeat([]float64{-1, 0, 1}, 10), repeat([]float64{3}, 8)...)
	chart := NewEngine(DefaultParams()).Run(mk(vals...))
	assert.InDelta(t, 0.0, chart.Center, 1e-12)
	assert.InDelta(t, 1.4826, chart.Sigma, 1e-12)

	firstWarn := -1
	for i, st := range chart.States {
		assert.GreaterOrEqual(t, st.CusumPos, 0.0)
		assert.GreaterOrEqual(t, st.CusumNeg, 0.0)
		assert.False(t, st.ShewhartOOC, "run %d", st.Run)
		if st.Flag == verdict.ChartWarn && firstWarn < 0 {
			firstWarn = i
		}
	}
	assert.Equal(t, 33, firstWarn, "fires on the fourth shifted run")
	assert.Greater(t, chart.States[firstWarn].CusumPos, 5.0)
	assert.Equal(t, 5, chart.WarnCount())
}

func TestCusumIsOrderDependent(t *testing.T) {
	block := append(repeat([]float64{-1, 0, 1}, 10), repeat([]float64{3}, 8)...)
	interleaved := append(repeat([]float64{-1, 0, 1, 3}, 8), repeat([]float64{-1, 0, 1}, 2)...)

	a := NewEngine(DefaultParams()).Run(mk(block...))
	b := NewEngine(DefaultParams()).Run(mk(interleaved...))
	assert.Equal(t, a.Center, b.Center)
	assert.Equal(t, a.Sigma, b.Sigma)
	assert.Equal(t, 5, a.WarnCount())
	assert.Equal(t, 0, b.WarnCount())
}

func TestNonFiniteRunCarriesAccumulators(t *testing.T) {
	chart := NewEngine(DefaultParams()).Run(mk(0, 4, math.NaN(), 0, 0))
	nan := chart.States[2]
	assert.True(t, math.IsNaN(nan.ZRobust))
	assert.Equal(t, verdict.ChartPass, nan.Flag)
	assert.Equal(t, chart.States[1].CusumPos, nan.CusumPos)
	assert.Equal(t, chart.States[1].CusumNeg, nan.CusumNeg)
}

func TestQCStatus(t *testing.T) {
	s := mk(10, 10.2, 9.8, 10.1, 9.9, 30, -1)
	th := &series.Threshold{Metric: "m", Lo: 0, Hi: math.Inf(1)}

	tbl := NewEngine(DefaultParams()).Status(s, th)
	require.Len(t, tbl.Rows, 7)
	assert.Equal(t, verdict.QCPass, tbl.Rows[0].Status)
	assert.Equal(t, "", tbl.Rows[0].Reason)

	assert.Equal(t, verdict.QCWarn, tbl.Rows[5].Status)
	assert.Equal(t, "robust_z", tbl.Rows[5].Reason)

	assert.Equal(t, verdict.QCFail, tbl.Rows[6].Status)
	assert.Equal(t, "threshold+robust_z", tbl.Rows[6].Reason)
}

func TestQCStatusWithoutThreshold(t *testing.T) {
	tbl := NewEngine(DefaultParams()).Status(mk(1, 1, 1, 1, 50), nil)
	for _, r := range tbl.Rows {
		assert.Equal(t, verdict.QCPass, r.Status, "zero robust sigma disables the z check")
	}
}
