package verdict

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runqa/domain/series"
	dv "runqa/domain/verdict"
	"runqa/internal/control"
	"runqa/internal/outlier"
	"runqa/internal/pattern"
	"runqa/internal/rules"
	"runqa/internal/trend"
)

type runSignals struct {
	z    float64
	qc   dv.QCStatus
	warn bool
	ooc  bool
}

func analysis(name string, firstRun int, sigs []runSignals) MetricAnalysis {
	m := MetricAnalysis{
		Name:    name,
		Outlier: outlier.Result{Metric: name},
		Trend:   trend.Result{Metric: name, PValue: 1, ChangepointRun: trend.NoChangepoint},
		Chart:   control.Chart{Metric: name},
		QC:      control.QCTable{Metric: name},
	}
	points := make([]series.Point, len(sigs))
	for i, s := range sigs {
		run := firstRun + i
		points[i] = series.Point{Run: run, Value: 10 + s.z, StatErr: 0.1, Weight: 1}
		az := math.Abs(s.z)
		m.Outlier.Stats = append(m.Outlier.Stats, outlier.LocalStats{
			Run: run, Value: points[i].Value, ZLocal: s.z,
			Strong: az >= 3, Weak: az >= 2 && az < 3,
		})
		qc := s.qc
		if qc == "" {
			qc = dv.QCPass
		}
		m.QC.Rows = append(m.QC.Rows, control.QCRow{Run: run, Status: qc})
		flag := dv.ChartPass
		if s.warn || s.ooc {
			flag = dv.ChartWarn
		}
		m.Chart.States = append(m.Chart.States, control.State{Run: run, ShewhartOOC: s.ooc, Flag: flag})
	}
	m.Series, _ = series.NewMetricSeries(name, points)
	return m
}

func TestMetricVerdictsSpike(t *testing.T) {
	m := analysis("intt_adc_peak", 100, []runSignals{{z: 0}, {z: 0.5}, {z: 5}, {z: -0.5}, {z: 0}})
	out := NewAggregator(pattern.DefaultParams()).MetricVerdicts(m, nil)
	require.Len(t, out, 5)

	good := out[0]
	assert.Equal(t, dv.Good, good.Verdict)
	assert.Equal(t, dv.PatternNormal, good.Pattern)
	assert.Equal(t, dv.SeverityInfo, good.Severity)
	assert.Equal(t, []string{rules.CausePassed}, good.Causes)
	assert.Equal(t, rules.ActionPassed, good.Action)

	spike := out[2]
	assert.Equal(t, 102, spike.Run)
	assert.Equal(t, dv.Bad, spike.Verdict)
	assert.Equal(t, dv.PatternSpike, spike.Pattern)
	assert.Equal(t, dv.SeverityCritical, spike.Severity)
	assert.Equal(t, 5.0, spike.ZLocal)
	assert.NotEmpty(t, spike.Causes)
	assert.NotEqual(t, rules.ActionPassed, spike.Action)
}

func TestMetricVerdictsFusion(t *testing.T) {
	tests := []struct {
		name     string
		sig      runSignals
		verdict  dv.Verdict
		severity dv.Severity
		pattern  dv.Pattern
	}{
		{"weak only", runSignals{z: 2.5}, dv.Suspect, dv.SeverityInfo, dv.PatternIsolatedOutlier},
		{"qc warn", runSignals{qc: dv.QCWarn}, dv.Suspect, dv.SeverityInfo, dv.PatternStatisticalFluctuation},
		{"qc fail with undefined z", runSignals{z: math.NaN(), qc: dv.QCFail}, dv.Bad, dv.SeverityCritical, dv.PatternStatisticalFluctuation},
		{"cusum warn", runSignals{warn: true}, dv.Suspect, dv.SeverityInfo, dv.PatternStatisticalFluctuation},
		{"shewhart", runSignals{ooc: true}, dv.Bad, dv.SeverityCritical, dv.PatternStatisticalFluctuation},
	}
	agg := NewAggregator(pattern.DefaultParams())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := analysis("generic_metric", 1, []runSignals{{}, {}, tt.sig, {}, {}})
			v := agg.MetricVerdicts(m, nil)[2]
			assert.Equal(t, tt.verdict, v.Verdict)
			assert.Equal(t, tt.severity, v.Severity)
			assert.Equal(t, tt.pattern, v.Pattern)
		})
	}
}

func TestMetricVerdictsLadderContext(t *testing.T) {
	m := analysis("intt_phi_uniform_chi2", 1, []runSignals{{}, {}, {z: 5}, {}, {}})
	health := map[int]series.LadderHealth{3: {Run: 3, DeadCount: 4, HotCount: 1, TotalLadders: 112}}
	with := NewAggregator(pattern.DefaultParams()).MetricVerdicts(m, health)[2]
	without := NewAggregator(pattern.DefaultParams()).MetricVerdicts(m, nil)[2]
	assert.NotEqual(t, with.Causes, without.Causes)
}

func TestRunVerdicts(t *testing.T) {
	mv := func(run int, metric string, v dv.Verdict) dv.MetricVerdict {
		return dv.MetricVerdict{Run: run, Metric: metric, Verdict: v}
	}
	verdicts := []dv.MetricVerdict{
		mv(2, "a", dv.Suspect), mv(1, "a", dv.Good), mv(3, "a", dv.Good),
		mv(2, "b", dv.Bad), mv(1, "b", dv.Suspect), mv(3, "b", dv.Good),
		mv(2, "c", dv.Bad), mv(1, "c", dv.Good), mv(3, "c", dv.Good),
		mv(2, "d", dv.Suspect), mv(1, "d", dv.Suspect), mv(3, "d", dv.Good),
	}
	out := RunVerdicts(verdicts)
	require.Len(t, out, 3)

	assert.Equal(t, 1, out[0].Run)
	assert.Equal(t, dv.Suspect, out[0].Verdict)
	assert.Equal(t, "b", out[0].WorstMetric)
	assert.Equal(t, "2 good, 2 suspect, 0 bad (worst: b)", out[0].Summary)

	assert.Equal(t, dv.Bad, out[1].Verdict)
	assert.Equal(t, "c", out[1].WorstMetric)
	assert.Equal(t, "0 good, 2 suspect, 2 bad (worst: c)", out[1].Summary)
	assert.Equal(t, 4, out[1].Total())

	assert.Equal(t, dv.Good, out[2].Verdict)
	assert.Empty(t, out[2].WorstMetric)
	assert.Equal(t, "4 good, 0 suspect, 0 bad", out[2].Summary)
}

func TestAssemble(t *testing.T) {
	r := &Report{Analyses: []MetricAnalysis{
		analysis("intt_adc_peak", 10, []runSignals{{}, {}, {z: 5}, {}, {}}),
		analysis("intt_bco_peak", 10, []runSignals{{}, {warn: true}, {}, {}, {}}),
	}}
	NewAggregator(pattern.DefaultParams()).Assemble(r)

	assert.Equal(t, []string{"intt_adc_peak", "intt_bco_peak"}, r.Metrics)
	require.Len(t, r.MetricVerdicts, 10)
	assert.Equal(t, "intt_adc_peak", r.MetricVerdicts[4].Metric)
	assert.Equal(t, "intt_bco_peak", r.MetricVerdicts[5].Metric)

	good, suspect, bad := r.Counts()
	assert.Equal(t, 3, good)
	assert.Equal(t, 1, suspect)
	assert.Equal(t, 1, bad)

	first, last, ok := r.RunRange()
	assert.True(t, ok)
	assert.Equal(t, 10, first)
	assert.Equal(t, 14, last)

	health := r.Health()
	require.Len(t, health, 2)
	assert.Equal(t, MetricHealth{Metric: "intt_adc_peak", Runs: 5, Flagged: 1}, health[0])
	assert.InDelta(t, 20.0, health[1].Rate(), 1e-12)

	assert.Len(t, r.VerdictsForRun(12), 2)
	_, found := r.Analysis("intt_bco_peak")
	assert.True(t, found)
}
