// Package outlier scores each run of a metric series against its local
// neighborhood with a median/MAD z-score.
package outlier

import (
	"math"

	"runqa/domain/series"
	"runqa/internal/robust"
)

// MADScale rescales a MAD to a normal-consistent sigma in the z-score numerator.
const MADScale = 0.6745

// MinNeighbors is the smallest neighbor set that yields a defined score.
const MinNeighbors = 3

// Params configures the scorer.
type Params struct {
	Window  int
	Weak    float64
	Strong  float64
	Epsilon float64
}

// DefaultParams returns W=5, weak 2.0, strong 3.0, epsilon 1e-6.
func DefaultParams() Params {
	return Params{Window: 5, Weak: 2.0, Strong: 3.0, Epsilon: 1e-6}
}

// LocalStats is the robust local score of one run. Undefined scores carry NaN
// and both flags false.
type LocalStats struct {
	Run             int
	Value           float64
	StatErr         float64
	Entries         float64
	NeighborsMedian float64
	NeighborsMAD    float64
	ZLocal          float64
	Weak            bool
	Strong          bool
}

// Defined reports whether the score could be computed.
func (s LocalStats) Defined() bool {
	return !math.IsNaN(s.ZLocal)
}

// Result holds the scores of one series in series order.
type Result struct {
	Metric string
	Stats  []LocalStats
}

// CountWeak returns the number of weak-only outliers.
func (r Result) CountWeak() int {
	n := 0
	for _, s := range r.Stats {
		if s.Weak {
			n++
		}
	}
	return n
}

// CountStrong returns the number of strong outliers.
func (r Result) CountStrong() int {
	n := 0
	for _, s := range r.Stats {
		if s.Strong {
			n++
		}
	}
	return n
}

// Scorer computes robust local outlier scores.
type Scorer struct {
	params Params
}

// NewScorer creates a scorer with the given parameters.
func NewScorer(params Params) *Scorer {
	return &Scorer{params: params}
}

// Score computes LocalStats for every run. It never fails: short windows and
// invalid runs degrade to undefined scores.
func (sc *Scorer) Score(s series.MetricSeries) Result {
	out := Result{Metric: s.Name, Stats: make([]LocalStats, len(s.Points))}
	neighbors := make([]float64, 0, 2*sc.params.Window)

	for i, p := range s.Points {
		st := LocalStats{
			Run:             p.Run,
			Value:           p.Value,
			StatErr:         p.StatErr,
			Entries:         p.Weight,
			NeighborsMedian: math.NaN(),
			NeighborsMAD:    math.NaN(),
			ZLocal:          math.NaN(),
		}

		if p.Valid() {
			neighbors = neighbors[:0]
			lo := max(0, i-sc.params.Window)
			hi := min(len(s.Points)-1, i+sc.params.Window)
			for j := lo; j <= hi; j++ {
				if j != i && s.Points[j].Valid() {
					neighbors = append(neighbors, s.Points[j].Value)
				}
			}

			if len(neighbors) >= MinNeighbors {
				med := robust.Median(neighbors)
				mad := robust.MAD(neighbors, med)
				z := MADScale * (p.Value - med) / (mad + sc.params.Epsilon)

				st.NeighborsMedian = med
				st.NeighborsMAD = mad
				st.ZLocal = z
				switch az := math.Abs(z); {
				case az >= sc.params.Strong:
					st.Strong = true
				case az >= sc.params.Weak:
					st.Weak = true
				}
			}
		}

		out.Stats[i] = st
	}
	return out
}
