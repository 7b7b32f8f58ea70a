package verdict

import (
	"fmt"
)

// Verdict is the usability judgment for a run or a (run, metric) pair
type Verdict string

const (
	Good    Verdict = "GOOD"
	Suspect Verdict = "SUSPECT"
	Bad     Verdict = "BAD"
)

// Rank orders verdicts GOOD < SUSPECT < BAD
func (v Verdict) Rank() int {
	switch v {
	case Bad:
		return 2
	case Suspect:
		return 1
	default:
		return 0
	}
}

// Worse returns the more severe of two verdicts
func Worse(a, b Verdict) Verdict {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Severity grades a flagged metric verdict
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Pattern is the classified anomaly shape
type Pattern string

const (
	PatternNormal                 Pattern = "normal"
	PatternStepChange             Pattern = "step_change"
	PatternSpike                  Pattern = "spike"
	PatternGradualDrift           Pattern = "gradual_drift"
	PatternSustainedShift         Pattern = "sustained_shift"
	PatternIsolatedOutlier        Pattern = "isolated_outlier"
	PatternStatisticalFluctuation Pattern = "statistical_fluctuation"
)

// DefaultSeverity is the severity a pattern carries before any upstream override
func (p Pattern) DefaultSeverity() Severity {
	switch p {
	case PatternSpike, PatternSustainedShift:
		return SeverityCritical
	case PatternStepChange, PatternGradualDrift:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// ParsePattern parses a pattern name
func ParsePattern(s string) (Pattern, error) {
	switch p := Pattern(s); p {
	case PatternNormal, PatternStepChange, PatternSpike, PatternGradualDrift,
		PatternSustainedShift, PatternIsolatedOutlier, PatternStatisticalFluctuation:
		return p, nil
	}
	return "", fmt.Errorf("unknown pattern %q", s)
}

// ChartFlag is the control-chart outcome for one run
type ChartFlag string

const (
	ChartPass ChartFlag = "PASS"
	ChartWarn ChartFlag = "WARN"
)

// QCStatus is the threshold / robust-z consistency status for one run
type QCStatus string

const (
	QCPass QCStatus = "PASS"
	QCWarn QCStatus = "WARN"
	QCFail QCStatus = "FAIL"
)

// Signals collects the upstream checks that fired for one (run, metric)
type Signals struct {
	Weak        bool
	Strong      bool
	QC          QCStatus
	ControlWarn bool
	ShewhartOOC bool
}

// Flagged reports whether any check fired
func (s Signals) Flagged() bool {
	return s.Weak || s.Strong || s.QC == QCWarn || s.QC == QCFail || s.ControlWarn
}

// Severe reports whether a check fired that always makes the verdict BAD
func (s Signals) Severe() bool {
	return s.Strong || s.QC == QCFail || s.ShewhartOOC
}

// MetricVerdict is the fused judgment for one (run, metric)
type MetricVerdict struct {
	Run      int
	Metric   string
	Verdict  Verdict
	Severity Severity
	Pattern  Pattern
	Causes   []string
	Action   string
	ZLocal   float64
	Value    float64
}

// RunVerdict aggregates the metric verdicts of one run
type RunVerdict struct {
	Run         int
	Verdict     Verdict
	NGood       int
	NSuspect    int
	NBad        int
	WorstMetric string
	Summary     string
}

// Total returns the number of metric verdicts aggregated into the run
func (r RunVerdict) Total() int {
	return r.NGood + r.NSuspect + r.NBad
}
