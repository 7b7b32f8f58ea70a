package verdict

import (
	"runqa/domain/core"
	"runqa/domain/series"
	dv "runqa/domain/verdict"
	"runqa/internal/multivar"
	"runqa/internal/profiling"
	"runqa/internal/symptom"
	"runqa/internal/trend"
)

// SkippedMetric records a declared metric that could not be analysed.
type SkippedMetric struct {
	Name   string
	Reason string
}

// MetricHealth is the flag rate of one metric across all runs.
type MetricHealth struct {
	Metric  string
	Runs    int
	Flagged int
}

// Rate returns the flagged percentage.
func (h MetricHealth) Rate() float64 {
	if h.Runs == 0 {
		return 0
	}
	return 100 * float64(h.Flagged) / float64(h.Runs)
}

// Report is the complete result of one pipeline invocation. Analyses and
// Profiles follow metric declaration order; MetricVerdicts are grouped by
// metric in that order with runs ascending inside each group.
type Report struct {
	InvocationID core.InvocationID
	Fingerprint  core.Fingerprint
	Stamp        string

	Metrics        []string
	Analyses       []MetricAnalysis
	MetricVerdicts []dv.MetricVerdict
	RunVerdicts    []dv.RunVerdict
	TrendParams    trend.Params

	Wide            multivar.Table
	Multivar        *multivar.Result
	MultivarSkipped string

	Symptoms  symptom.Result
	Profiles  []profiling.MetricProfile
	Ladder    map[int]series.LadderHealth
	Skipped   []SkippedMetric
	SegmentCV []series.MetricSeries
}

// Assemble fuses the analyses into verdicts and fills the verdict fields of r.
func (a *Aggregator) Assemble(r *Report) {
	r.Metrics = r.Metrics[:0]
	r.MetricVerdicts = r.MetricVerdicts[:0]
	for _, m := range r.Analyses {
		r.Metrics = append(r.Metrics, m.Name)
		r.MetricVerdicts = append(r.MetricVerdicts, a.MetricVerdicts(m, r.Ladder)...)
	}
	r.RunVerdicts = RunVerdicts(r.MetricVerdicts)
}

// Counts returns the number of GOOD, SUSPECT and BAD runs.
func (r *Report) Counts() (good, suspect, bad int) {
	for _, rv := range r.RunVerdicts {
		switch rv.Verdict {
		case dv.Good:
			good++
		case dv.Suspect:
			suspect++
		case dv.Bad:
			bad++
		}
	}
	return good, suspect, bad
}

// RunRange returns the first and last run with a verdict.
func (r *Report) RunRange() (first, last int, ok bool) {
	if len(r.RunVerdicts) == 0 {
		return 0, 0, false
	}
	return r.RunVerdicts[0].Run, r.RunVerdicts[len(r.RunVerdicts)-1].Run, true
}

// VerdictsForRun returns the metric verdicts of one run in metric order.
func (r *Report) VerdictsForRun(run int) []dv.MetricVerdict {
	var out []dv.MetricVerdict
	for _, v := range r.MetricVerdicts {
		if v.Run == run {
			out = append(out, v)
		}
	}
	return out
}

// Health returns per-metric flag rates in declaration order, omitting
// metrics without verdicts.
func (r *Report) Health() []MetricHealth {
	byMetric := make(map[string]*MetricHealth, len(r.Metrics))
	for _, v := range r.MetricVerdicts {
		h, ok := byMetric[v.Metric]
		if !ok {
			h = &MetricHealth{Metric: v.Metric}
			byMetric[v.Metric] = h
		}
		h.Runs++
		if v.Verdict != dv.Good {
			h.Flagged++
		}
	}
	out := make([]MetricHealth, 0, len(byMetric))
	for _, m := range r.Metrics {
		if h, ok := byMetric[m]; ok {
			out = append(out, *h)
		}
	}
	return out
}

// Analysis looks up the analysis of a metric by name.
func (r *Report) Analysis(metric string) (MetricAnalysis, bool) {
	for _, m := range r.Analyses {
		if m.Name == metric {
			return m, true
		}
	}
	return MetricAnalysis{}, false
}
