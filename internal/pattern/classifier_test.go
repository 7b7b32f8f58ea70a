package pattern

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"runqa/domain/verdict"
	"runqa/internal/trend"
)

var runs = []int{100, 101, 102, 103, 104, 105, 106}

func flat() trend.Result {
	return trend.Result{Slope: 0.01, PValue: 0.5, ChangepointRun: trend.NoChangepoint}
}

func TestClassify(t *testing.T) {
	nan := math.NaN()
	drifting := trend.Result{Slope: 0.4, PValue: 0.001, ChangepointRun: trend.NoChangepoint}
	stepped := trend.Result{Slope: 0.01, PValue: 0.5, ChangepointRun: 103, DeltaBIC: 25}
	weakStep := trend.Result{Slope: 0.01, PValue: 0.5, ChangepointRun: 103, DeltaBIC: 4}

	tests := []struct {
		name  string
		z     []float64
		tr    trend.Result
		index int
		want  verdict.Pattern
	}{
		{"spike", []float64{0.5, -0.3, 12, 0.2, 0.1, 0, 0}, flat(), 2, verdict.PatternSpike},
		{"spike with undefined neighbors", []float64{nan, nan, 5, nan, nan, nan, nan}, flat(), 2, verdict.PatternSpike},
		{"large z with one flagged neighbor", []float64{0, 2.5, 12, 0, 0, 0, 0}, flat(), 2, verdict.PatternIsolatedOutlier},
		{"gradual drift", []float64{2.5, 2.4, 2.6, 2.8, 3.0, 3.1, 3.3}, drifting, 2, verdict.PatternGradualDrift},
		{"sustained shift", []float64{2.5, 2.4, 2.6, 2.8, 3.0, 3.1, 3.3}, flat(), 2, verdict.PatternSustainedShift},
		{"zero slope is not a drift", []float64{2.5, 2.4, 2.6, 2.8, 3.0, 3.1, 3.3},
			trend.Result{Slope: 0, PValue: 0.001, ChangepointRun: trend.NoChangepoint}, 2, verdict.PatternSustainedShift},
		{"step change within two runs", []float64{0, 2.1, 0, 0, 0, 0, 0}, stepped, 1, verdict.PatternStepChange},
		{"step change outranks spike", []float64{0, 0, 0, 9, 0, 0, 0}, stepped, 3, verdict.PatternStepChange},
		{"too far from changepoint", []float64{2.1, 0, 0, 0, 0, 0, 0}, stepped, 0, verdict.PatternIsolatedOutlier},
		{"weak changepoint ignored", []float64{0, 2.1, 0, 0, 0, 0, 0}, weakStep, 1, verdict.PatternIsolatedOutlier},
		{"fluctuation", []float64{0, 0, 1.5, 0, 0, 0, 0}, flat(), 2, verdict.PatternStatisticalFluctuation},
		{"undefined z", []float64{0, 0, nan, 0, 0, 0, 0}, flat(), 2, verdict.PatternStatisticalFluctuation},
		{"window clipped at series end", []float64{0, 0, 0, 0, 0, 2.2, 4.5}, flat(), 6, verdict.PatternIsolatedOutlier},
	}

	c := NewClassifier(DefaultParams())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(Context{Runs: runs, Z: tt.z, Trend: tt.tr}, tt.index)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChangepointRunMissingFromSeries(t *testing.T) {
	tr := trend.Result{ChangepointRun: 150, DeltaBIC: 30, PValue: 1}
	r := []int{100, 120, 140, 160, 180}
	c := NewClassifier(DefaultParams())
	z := []float64{0, 2.5, 0, 0, 0}
	assert.Equal(t, verdict.PatternIsolatedOutlier, c.Classify(Context{Runs: r, Z: z, Trend: tr}, 1))

	tr.ChangepointRun = 160
	assert.Equal(t, verdict.PatternStepChange, c.Classify(Context{Runs: r, Z: z, Trend: tr}, 1))
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, verdict.SeverityCritical, Severity(verdict.PatternSpike, false))
	assert.Equal(t, verdict.SeverityWarning, Severity(verdict.PatternGradualDrift, false))
	assert.Equal(t, verdict.SeverityInfo, Severity(verdict.PatternIsolatedOutlier, false))
	assert.Equal(t, verdict.SeverityCritical, Severity(verdict.PatternIsolatedOutlier, true))
	assert.Equal(t, verdict.SeverityCritical, Severity(verdict.PatternStatisticalFluctuation, true))
}
