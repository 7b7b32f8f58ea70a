// Package pattern classifies the shape of an anomaly at a flagged run.
package pattern

import (
	"math"
	"sort"

	"runqa/domain/verdict"
	"runqa/internal/trend"
)

// Params holds the decision thresholds.
type Params struct {
	Neighborhood   int
	SpikeZ         float64
	FlagZ          float64
	ChangepointBIC float64
	SignificanceP  float64
}

// DefaultParams returns ±2 neighbors, spike 4.0, flag 2.0, dBIC 10, p 0.01.
func DefaultParams() Params {
	return Params{Neighborhood: 2, SpikeZ: 4.0, FlagZ: 2.0, ChangepointBIC: 10, SignificanceP: 0.01}
}

// Context is the series-wide evidence for one metric.
type Context struct {
	Runs  []int
	Z     []float64
	Trend trend.Result
}

// Classifier applies the ordered decision table.
type Classifier struct {
	params Params
}

// NewClassifier creates a classifier with the given parameters.
func NewClassifier(params Params) *Classifier {
	return &Classifier{params: params}
}

type rule struct {
	pattern verdict.Pattern
	match   func(c *Classifier, f facts) bool
}

type facts struct {
	absZ             float64
	flaggedNeighbors int
	nearChangepoint  bool
	trend            trend.Result
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{verdict.PatternStepChange, func(c *Classifier, f facts) bool {
		return f.nearChangepoint
	}},
	{verdict.PatternSpike, func(c *Classifier, f facts) bool {
		return f.absZ > c.params.SpikeZ && f.flaggedNeighbors == 0
	}},
	{verdict.PatternGradualDrift, func(c *Classifier, f facts) bool {
		return f.trend.Significant(c.params.SignificanceP) && f.flaggedNeighbors >= 2
	}},
	{verdict.PatternSustainedShift, func(c *Classifier, f facts) bool {
		return f.flaggedNeighbors >= 2
	}},
	{verdict.PatternIsolatedOutlier, func(c *Classifier, f facts) bool {
		return f.absZ > c.params.FlagZ
	}},
}

// Classify returns the pattern at series index i. Undefined z values count as 0.
func (c *Classifier) Classify(ctx Context, i int) verdict.Pattern {
	f := facts{absZ: absZ(ctx.Z, i), trend: ctx.Trend}

	lo := max(0, i-c.params.Neighborhood)
	hi := min(len(ctx.Z)-1, i+c.params.Neighborhood)
	for j := lo; j <= hi; j++ {
		if j != i && absZ(ctx.Z, j) > c.params.FlagZ {
			f.flaggedNeighbors++
		}
	}

	if ctx.Trend.StrongShift(c.params.ChangepointBIC) {
		if cp, ok := changepointIndex(ctx.Runs, ctx.Trend.ChangepointRun); ok {
			f.nearChangepoint = abs(i-cp) <= c.params.Neighborhood
		}
	}

	for _, r := range rules {
		if r.match(c, f) {
			return r.pattern
		}
	}
	return verdict.PatternStatisticalFluctuation
}

// Severity maps a pattern to its severity, raised to critical when a severe
// upstream check fired.
func Severity(p verdict.Pattern, severe bool) verdict.Severity {
	if severe {
		return verdict.SeverityCritical
	}
	return p.DefaultSeverity()
}

func absZ(z []float64, i int) float64 {
	if i < 0 || i >= len(z) || math.IsNaN(z[i]) {
		return 0
	}
	return math.Abs(z[i])
}

// changepointIndex locates the changepoint run in the series. A run absent
// from the series, as can happen with an externally supplied trend summary,
// never matches.
func changepointIndex(runs []int, run int) (int, bool) {
	i := sort.SearchInts(runs, run)
	return i, i < len(runs) && runs[i] == run
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
