// Package trend fits a weighted linear trend to a metric series, searches for
// a single level shift, and smooths the series with an EWMA.
package trend

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"runqa/domain/series"
	"runqa/internal/robust"
)

// NoChangepoint marks a series where no split was searched or found.
const NoChangepoint = -1

// Params configures the analyzer.
type Params struct {
	ChangepointBIC float64
	SignificanceP  float64
	EWMALambda     float64
}

// DefaultParams returns dBIC 10, p 0.01, lambda 0.3.
func DefaultParams() Params {
	return Params{ChangepointBIC: 10, SignificanceP: 0.01, EWMALambda: 0.3}
}

// SmoothedPoint is one EWMA sample.
type SmoothedPoint struct {
	Run   int
	Value float64
}

// Result is the trend and changepoint summary of one series.
type Result struct {
	Metric         string
	N              int
	Median         float64
	RobustSigma    float64
	Slope          float64
	SlopeErr       float64
	PValue         float64
	ChangepointRun int
	DeltaBIC       float64
	EWMA           []SmoothedPoint
}

// HasChangepoint reports whether a split was found.
func (r Result) HasChangepoint() bool {
	return r.ChangepointRun != NoChangepoint
}

// Significant reports a trend with p below threshold and a nonzero slope.
func (r Result) Significant(p float64) bool {
	return r.PValue < p && r.Slope != 0 && !math.IsNaN(r.Slope)
}

// StrongShift reports a changepoint whose delta BIC reaches threshold.
func (r Result) StrongShift(threshold float64) bool {
	return r.HasChangepoint() && r.DeltaBIC >= threshold
}

// Interpret returns the one-line narrative used in the trend section of the report.
func (r Result) Interpret(params Params) string {
	switch {
	case r.Significant(params.SignificanceP):
		return "Significant trend detected"
	case r.StrongShift(params.ChangepointBIC):
		return fmt.Sprintf("Level shift at run %d", r.ChangepointRun)
	default:
		return "Stable"
	}
}

type row struct {
	run int
	y   float64
	w   float64
}

// Analyzer computes trend results.
type Analyzer struct {
	params Params
}

// NewAnalyzer creates an analyzer with the given parameters.
func NewAnalyzer(params Params) *Analyzer {
	return &Analyzer{params: params}
}

// Analyze fits the trend over the finite values of s. Degenerate or short
// series yield NaN slopes, p = 1 and no changepoint rather than an error.
func (a *Analyzer) Analyze(s series.MetricSeries) Result {
	rows := finiteRows(s)
	ys := make([]float64, len(rows))
	for i, r := range rows {
		ys[i] = r.y
	}
	sum := robust.Summarize(ys)

	res := Result{
		Metric:         s.Name,
		N:              len(rows),
		Median:         sum.Median,
		RobustSigma:    sum.Sigma,
		ChangepointRun: NoChangepoint,
	}
	res.Slope, res.SlopeErr, res.PValue = weightedLinFit(rows)
	res.ChangepointRun, res.DeltaBIC = changepoint(rows)
	res.EWMA = ewma(rows, a.params.EWMALambda)
	return res
}

func finiteRows(s series.MetricSeries) []row {
	rows := make([]row, 0, len(s.Points))
	for _, p := range s.Points {
		if !series.IsFinite(p.Value) {
			continue
		}
		rows = append(rows, row{run: p.Run, y: p.Value, w: errWeight(p.StatErr)})
	}
	return rows
}

// errWeight returns 1/err^2, or 1 for an unusable error.
func errWeight(err float64) float64 {
	if !series.IsFinite(err) || err <= 0 {
		return 1
	}
	return 1 / (err * err)
}

// weightedLinFit fits y = a + b*run. Runs are offset by the first run, which
// leaves b, its error and D unchanged while keeping the sums well conditioned.
func weightedLinFit(rows []row) (slope, slopeErr, p float64) {
	nan := math.NaN()
	if len(rows) == 0 {
		return nan, nan, 1
	}
	x0 := float64(rows[0].run)

	var sw, sx, sy, sxx, sxy float64
	for _, r := range rows {
		x := float64(r.run) - x0
		sw += r.w
		sx += r.w * x
		sy += r.w * r.y
		sxx += r.w * x * x
		sxy += r.w * x * r.y
	}
	d := sw*sxx - sx*sx
	if d <= 0 {
		return nan, nan, 1
	}

	b := (sw*sxy - sx*sy) / d
	a := (sy - b*sx) / sw

	var rss float64
	for _, r := range rows {
		res := r.y - (a + b*(float64(r.run)-x0))
		rss += r.w * res * res
	}
	dof := math.Max(1, float64(len(rows)-2))
	sigma2 := rss / dof
	eb := math.Sqrt(math.Max(0, sigma2*sw/d))

	switch {
	case eb > 0:
		p = 2 * distuv.UnitNormal.Survival(math.Abs(b/eb))
	case b != 0:
		p = 0
	default:
		p = 1
	}
	return b, eb, p
}

func weightedSSE(rows []row) (sse, sw float64) {
	var swy float64
	for _, r := range rows {
		sw += r.w
		swy += r.w * r.y
	}
	if sw <= 0 {
		return 0, 0
	}
	mu := swy / sw
	for _, r := range rows {
		d := r.y - mu
		sse += r.w * d * d
	}
	return sse, sw
}

// changepoint searches a single split between two constant-mean segments.
func changepoint(rows []row) (int, float64) {
	n := len(rows)
	if n < 6 {
		return NoChangepoint, 0
	}
	logN := math.Log(float64(n))
	sse1, _ := weightedSSE(rows)

	best := math.Inf(1)
	bestK := -1
	minSide := max(3, n/10)
	for k := minSide; k <= n-minSide; k++ {
		left, swL := weightedSSE(rows[:k])
		right, swR := weightedSSE(rows[k:])
		if swL <= 0 || swR <= 0 {
			continue
		}
		bic := left + right + 2*logN
		if bic < best {
			best = bic
			bestK = k
		}
	}
	if bestK <= 0 || bestK >= n {
		return NoChangepoint, 0
	}
	baseline := sse1 + logN
	return rows[bestK].run, baseline - best
}

func ewma(rows []row, lambda float64) []SmoothedPoint {
	if len(rows) == 0 {
		return nil
	}
	out := make([]SmoothedPoint, len(rows))
	m := rows[0].y
	for i, r := range rows {
		m = lambda*r.y + (1-lambda)*m
		out[i] = SmoothedPoint{Run: r.run, Value: m}
	}
	return out
}
