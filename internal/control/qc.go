package control

import (
	"math"
	"strings"

	"runqa/domain/series"
	"runqa/domain/verdict"
	"runqa/internal/robust"
)

// QC reason tokens, joined with "+".
const (
	ReasonThreshold = "threshold"
	ReasonRobustZ   = "robust_z"
)

// QCRow is the consistency status of one run.
type QCRow struct {
	Run    int
	Value  float64
	Status verdict.QCStatus
	Reason string
}

// QCTable holds the QC status of one series in run order.
type QCTable struct {
	Metric string
	Rows   []QCRow
}

// Status evaluates declared thresholds and the whole-series robust z of each
// run. A run outside [lo, hi] FAILs; a robust z above tolZ WARNs unless the
// run already FAILed. A zero robust sigma disables the z check. Non-finite
// runs are not evaluated and pass.
func (e *Engine) Status(s series.MetricSeries, th *series.Threshold) QCTable {
	sum := robust.Summarize(s.FiniteValues())
	out := QCTable{Metric: s.Name, Rows: make([]QCRow, len(s.Points))}

	for i, p := range s.Points {
		row := QCRow{Run: p.Run, Value: p.Value, Status: verdict.QCPass}
		if series.IsFinite(p.Value) {
			var reasons []string
			if th != nil && !th.Contains(p.Value) {
				row.Status = verdict.QCFail
				reasons = append(reasons, ReasonThreshold)
			}
			z := 0.0
			if sum.Sigma > 0 {
				z = math.Abs(p.Value-sum.Median) / sum.Sigma
			}
			if z > e.params.QCTolZ {
				if row.Status == verdict.QCPass {
					row.Status = verdict.QCWarn
				}
				reasons = append(reasons, ReasonRobustZ)
			}
			row.Reason = strings.Join(reasons, "+")
		}
		out.Rows[i] = row
	}
	return out
}
