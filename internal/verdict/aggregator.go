// Package verdict fuses the per-metric checks into metric and run verdicts
// and assembles the Report handed to the output adapters.
package verdict

import (
	"fmt"
	"sort"

	"runqa/domain/series"
	dv "runqa/domain/verdict"
	"runqa/internal/control"
	"runqa/internal/outlier"
	"runqa/internal/pattern"
	"runqa/internal/rules"
	"runqa/internal/trend"
)

// MetricAnalysis is everything computed for one metric before fusion. All
// per-run slices are aligned with Series.Points.
type MetricAnalysis struct {
	Name            string
	Series          series.MetricSeries
	Outlier         outlier.Result
	Trend           trend.Result
	TrendOverridden bool
	Chart           control.Chart
	QC              control.QCTable
}

// Signals gathers the upstream checks for series index i.
func (m MetricAnalysis) Signals(i int) dv.Signals {
	var s dv.Signals
	s.QC = dv.QCPass
	if i < len(m.Outlier.Stats) {
		s.Weak = m.Outlier.Stats[i].Weak
		s.Strong = m.Outlier.Stats[i].Strong
	}
	if i < len(m.QC.Rows) {
		s.QC = m.QC.Rows[i].Status
	}
	if i < len(m.Chart.States) {
		s.ControlWarn = m.Chart.States[i].Flag == dv.ChartWarn
		s.ShewhartOOC = m.Chart.States[i].ShewhartOOC
	}
	return s
}

// ZValues returns the local z scores in series order.
func (m MetricAnalysis) ZValues() []float64 {
	z := make([]float64, len(m.Outlier.Stats))
	for i, st := range m.Outlier.Stats {
		z[i] = st.ZLocal
	}
	return z
}

// Aggregator turns metric analyses into verdicts.
type Aggregator struct {
	classifier *pattern.Classifier
}

// NewAggregator creates an aggregator using the given classifier parameters.
func NewAggregator(params pattern.Params) *Aggregator {
	return &Aggregator{classifier: pattern.NewClassifier(params)}
}

// MetricVerdicts produces one verdict per run of the metric, in series order.
func (a *Aggregator) MetricVerdicts(m MetricAnalysis, health map[int]series.LadderHealth) []dv.MetricVerdict {
	engine := rules.NewEngine(m.Name)
	ctx := pattern.Context{Runs: m.Series.Runs(), Z: m.ZValues(), Trend: m.Trend}

	out := make([]dv.MetricVerdict, len(m.Series.Points))
	for i, p := range m.Series.Points {
		v := dv.MetricVerdict{
			Run:    p.Run,
			Metric: m.Name,
			ZLocal: ctx.Z[i],
			Value:  p.Value,
		}

		sig := m.Signals(i)
		if !sig.Flagged() {
			v.Verdict = dv.Good
			v.Severity = dv.SeverityInfo
			v.Pattern = dv.PatternNormal
			v.Causes = []string{rules.CausePassed}
			v.Action = rules.ActionPassed
			out[i] = v
			continue
		}

		v.Pattern = a.classifier.Classify(ctx, i)
		v.Severity = pattern.Severity(v.Pattern, sig.Severe())
		v.Verdict = dv.Suspect
		if sig.Severe() {
			v.Verdict = dv.Bad
		}

		h := health[p.Run]
		v.Causes, v.Action = engine.Diagnose(rules.Evidence{
			Pattern: v.Pattern,
			Value:   p.Value,
			Z:       v.ZLocal,
			Dead:    h.DeadCount,
			Hot:     h.HotCount,
		}, v.Severity)
		out[i] = v
	}
	return out
}

// RunVerdicts aggregates metric verdicts per run. Verdicts must arrive in
// metric declaration order: the worst metric is the last BAD one, or else
// the first SUSPECT one. Runs are returned in ascending order.
func RunVerdicts(verdicts []dv.MetricVerdict) []dv.RunVerdict {
	byRun := make(map[int]*dv.RunVerdict)
	for _, v := range verdicts {
		rv, ok := byRun[v.Run]
		if !ok {
			rv = &dv.RunVerdict{Run: v.Run}
			byRun[v.Run] = rv
		}
		switch v.Verdict {
		case dv.Good:
			rv.NGood++
		case dv.Suspect:
			rv.NSuspect++
			if rv.WorstMetric == "" {
				rv.WorstMetric = v.Metric
			}
		case dv.Bad:
			rv.NBad++
			rv.WorstMetric = v.Metric
		}
	}

	out := make([]dv.RunVerdict, 0, len(byRun))
	for _, rv := range byRun {
		switch {
		case rv.NBad > 0:
			rv.Verdict = dv.Bad
		case rv.NSuspect > 0:
			rv.Verdict = dv.Suspect
		default:
			rv.Verdict = dv.Good
		}
		rv.Summary = summary(*rv)
		out = append(out, *rv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Run < out[j].Run })
	return out
}

func summary(rv dv.RunVerdict) string {
	s := fmt.Sprintf("%d good, %d suspect, %d bad", rv.NGood, rv.NSuspect, rv.NBad)
	if rv.WorstMetric != "" {
		s += fmt.Sprintf(" (worst: %s)", rv.WorstMetric)
	}
	return s
}
