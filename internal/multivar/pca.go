// Package multivar builds the run x metric matrix and runs cross-metric
// correlation, PCA and Mahalanobis outlier detection on it.
package multivar

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"runqa/domain/core"
)

// Params configures the engine.
type Params struct {
	CorrThreshold  float64
	MahalanobisCut float64
}

const svTolerance = 1e-9

// DefaultParams returns |R| > 0.7 and distance > 3.0.
func DefaultParams() Params {
	return Params{CorrThreshold: 0.7, MahalanobisCut: 3.0}
}

// PairFlag is a strongly correlated metric pair.
type PairFlag struct {
	MetricA string
	MetricB string
	R       float64
}

// Component is the variance explained by one principal component.
type Component struct {
	Index      int
	Singular   float64
	Percent    float64
	Cumulative float64
}

// RunScore is the projection of one complete run.
type RunScore struct {
	Run         int
	Scores      []float64
	Mahalanobis float64
	Outlier     bool
}

// Result is the correlation and PCA snapshot.
type Result struct {
	Metrics            []string
	N                  int
	Means              []float64
	SDs                []float64
	R                  [][]float64
	Flags              []PairFlag
	Components         []Component
	Runs               []RunScore
	MahalanobisEnabled bool
	DisabledReason     string
}

// OutlierRuns lists runs flagged by the Mahalanobis step.
func (r Result) OutlierRuns() []int {
	var out []int
	for _, s := range r.Runs {
		if s.Outlier {
			out = append(out, s.Run)
		}
	}
	return out
}

// Engine runs the correlation and PCA analysis.
type Engine struct {
	params Params
}

// NewEngine creates an engine with the given parameters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Analyze requires at least 3 complete runs and 2 metrics; otherwise it
// returns an error wrapping core.ErrInsufficientData.
func (e *Engine) Analyze(w WideMatrix) (Result, error) {
	n, p := w.Dims()
	if n < 3 || p < 2 {
		return Result{}, core.NewInsufficientDataError("wide matrix", n, 3)
	}

	z, means, sds := standardize(w)
	res := Result{
		Metrics: append([]string(nil), w.Metrics...),
		N:       n,
		Means:   means,
		SDs:     sds,
	}
	res.R = correlation(z)
	res.Flags = e.flagPairs(res.Metrics, res.R)

	var svd mat.SVD
	if !svd.Factorize(z, mat.SVDThin) {
		res.DisabledReason = "svd did not converge"
		return res, nil
	}
	sv := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)
	orientColumns(&v)

	res.Components = components(sv)

	var scores mat.Dense
	scores.Mul(z, &v)
	k := len(sv)
	res.Runs = make([]RunScore, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		for c := 0; c < k; c++ {
			row[c] = scores.At(i, c)
		}
		res.Runs[i] = RunScore{Run: w.Runs[i], Scores: row, Mahalanobis: math.NaN()}
	}

	e.mahalanobis(&res, &scores, sv)
	return res, nil
}

// standardize centers each column and divides by its sample sd; a zero sd is
// replaced by 1.
func standardize(w WideMatrix) (*mat.Dense, []float64, []float64) {
	n, p := w.Dims()
	z := mat.NewDense(n, p, nil)
	means := make([]float64, p)
	sds := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			col[i] = w.Values[i][j]
		}
		mu, variance := stat.MeanVariance(col, nil)
		sd := 1.0
		if variance > 0 {
			sd = math.Sqrt(variance)
		}
		means[j], sds[j] = mu, sd
		for i := 0; i < n; i++ {
			z.Set(i, j, (col[i]-mu)/sd)
		}
	}
	return z, means, sds
}

// correlation returns Z^T Z / (N-1) with a unit diagonal.
func correlation(z *mat.Dense) [][]float64 {
	n, p := z.Dims()
	var cov mat.Dense
	cov.Mul(z.T(), z)
	cov.Scale(1/float64(n-1), &cov)

	r := make([][]float64, p)
	for a := 0; a < p; a++ {
		r[a] = make([]float64, p)
		for b := 0; b < p; b++ {
			r[a][b] = cov.At(a, b)
		}
		r[a][a] = 1
	}
	return r
}

func (e *Engine) flagPairs(metrics []string, r [][]float64) []PairFlag {
	var flags []PairFlag
	for a := range metrics {
		for b := a + 1; b < len(metrics); b++ {
			if math.Abs(r[a][b]) > e.params.CorrThreshold {
				flags = append(flags, PairFlag{MetricA: metrics[a], MetricB: metrics[b], R: r[a][b]})
			}
		}
	}
	return flags
}

// orientColumns flips each singular vector so its largest-magnitude loading is
// positive, making scores reproducible across LAPACK sign choices.
func orientColumns(v *mat.Dense) {
	rows, cols := v.Dims()
	for c := 0; c < cols; c++ {
		best := 0.0
		for r := 0; r < rows; r++ {
			if x := v.At(r, c); math.Abs(x) > math.Abs(best) {
				best = x
			}
		}
		if best < 0 {
			for r := 0; r < rows; r++ {
				v.Set(r, c, -v.At(r, c))
			}
		}
	}
}

func components(sv []float64) []Component {
	total := 0.0
	for _, s := range sv {
		total += s * s
	}
	out := make([]Component, len(sv))
	cum := 0.0
	for i, s := range sv {
		pct := 0.0
		if total > 0 {
			pct = 100 * s * s / total
		}
		cum += pct
		out[i] = Component{Index: i + 1, Singular: s, Percent: pct, Cumulative: cum}
	}
	return out
}

// mahalanobis scores each run in the PC1/PC2 plane. A non-positive
// covariance determinant disables the step.
func (e *Engine) mahalanobis(res *Result, scores *mat.Dense, sv []float64) {
	n, k := scores.Dims()
	if k < 2 || len(sv) < 2 {
		res.DisabledReason = "fewer than 2 components"
		return
	}

	pc := scores.Slice(0, n, 0, 2)
	cov := mat.NewSymDense(2, nil)
	stat.CovarianceMatrix(cov, pc, nil)
	// PC2 variance that is zero up to rounding makes the determinant non-positive
	if sv[1] <= svTolerance*sv[0] || !(mat.Det(cov) > 0) {
		res.DisabledReason = "degenerate PC1/PC2 covariance"
		return
	}

	var inv mat.Dense
	if err := inv.Inverse(cov); err != nil {
		res.DisabledReason = "singular PC1/PC2 covariance"
		return
	}

	mean := []float64{
		stat.Mean(mat.Col(nil, 0, pc), nil),
		stat.Mean(mat.Col(nil, 1, pc), nil),
	}
	res.MahalanobisEnabled = true
	for i := 0; i < n; i++ {
		d := mat.NewVecDense(2, []float64{pc.At(i, 0) - mean[0], pc.At(i, 1) - mean[1]})
		dist := math.Sqrt(math.Max(0, mat.Inner(d, &inv, d)))
		res.Runs[i].Mahalanobis = dist
		res.Runs[i].Outlier = dist > e.params.MahalanobisCut
	}
}
