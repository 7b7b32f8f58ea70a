// Package segments folds per-file segment rows into one point per run.
package segments

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"runqa/domain/series"
)

// MethodSum adds segment values; any other method averages them.
const MethodSum = "sum"

// CVSuffix names the derived segment coefficient-of-variation series.
const CVSuffix = "_segcv"

// Result holds the per-run series and its segment CV companion.
type Result struct {
	Series series.MetricSeries
	CV     series.MetricSeries
}

// Aggregate groups rows by run and combines them with the given method.
func Aggregate(metric, method string, rows []series.SegmentRow) Result {
	byRun := make(map[int][]series.SegmentRow)
	for _, r := range rows {
		byRun[r.Run] = append(byRun[r.Run], r)
	}
	runs := make([]int, 0, len(byRun))
	for r := range byRun {
		runs = append(runs, r)
	}
	sort.Ints(runs)

	points := make([]series.Point, 0, len(runs))
	cvs := make([]series.Point, 0, len(runs))
	for _, run := range runs {
		segs := byRun[run]
		p := combine(method, segs)
		p.Run = run
		points = append(points, p)

		cv := SegmentCV(segs)
		w := 0.0
		if series.IsFinite(cv) {
			w = 1
		}
		cvs = append(cvs, series.Point{Run: run, Value: cv, StatErr: 0, Weight: w})
	}
	s, _ := series.NewMetricSeries(metric, points)
	c, _ := series.NewMetricSeries(metric+CVSuffix, cvs)
	return Result{Series: s, CV: c}
}

func combine(method string, segs []series.SegmentRow) series.Point {
	var values, errs, weights []float64
	for _, s := range segs {
		if !series.IsFinite(s.Value) {
			continue
		}
		values = append(values, s.Value)
		errs = append(errs, s.Error)
		if series.IsFinite(s.Weight) && s.Weight > 0 {
			weights = append(weights, s.Weight)
		}
	}
	if len(values) == 0 {
		return series.Point{Value: math.NaN(), StatErr: math.NaN()}
	}

	weight := float64(len(values))
	if len(weights) > 0 {
		weight, _ = stats.Sum(weights)
	}

	if method == MethodSum {
		sum, _ := stats.Sum(values)
		q := 0.0
		for _, e := range errs {
			if series.IsFinite(e) {
				q += e * e
			}
		}
		return series.Point{Value: sum, StatErr: math.Sqrt(q), Weight: weight}
	}

	iv := make([]float64, len(values))
	sw := 0.0
	for i, e := range errs {
		iv[i] = 1
		if series.IsFinite(e) && e > 0 {
			iv[i] = 1 / (e * e)
		}
		sw += iv[i]
	}
	return series.Point{
		Value:   stat.Mean(values, iv),
		StatErr: math.Sqrt(1 / sw),
		Weight:  weight,
	}
}

// SegmentCV is the sample standard deviation of the finite segment values
// over their absolute mean. NaN below two segments or for a zero mean.
func SegmentCV(segs []series.SegmentRow) float64 {
	var v []float64
	for _, s := range segs {
		if series.IsFinite(s.Value) {
			v = append(v, s.Value)
		}
	}
	if len(v) < 2 {
		return math.NaN()
	}
	mean, sd := stat.MeanStdDev(v, nil)
	if mean == 0 {
		return math.NaN()
	}
	return sd / math.Abs(mean)
}
