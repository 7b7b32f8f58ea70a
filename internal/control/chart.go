// Package control runs Shewhart and CUSUM control charts over a metric series
// and derives the per-run QC status against declared thresholds.
package control

import (
	"math"

	"runqa/domain/series"
	"runqa/domain/verdict"
	"runqa/internal/robust"
)

// Params configures the charts.
type Params struct {
	ZShewhart float64
	K         float64
	H         float64
	QCTolZ    float64
}

// DefaultParams returns zShewhart 3, k 0.5, H 5, QC tolerance 3.5.
func DefaultParams() Params {
	return Params{ZShewhart: 3.0, K: 0.5, H: 5.0, QCTolZ: 3.5}
}

// State is the chart state after one run.
type State struct {
	Run         int
	Value       float64
	ZRobust     float64
	ShewhartOOC bool
	CusumPos    float64
	CusumNeg    float64
	Flag        verdict.ChartFlag
}

// Chart holds the chart of one series in run order.
type Chart struct {
	Metric string
	Center float64
	Sigma  float64
	States []State
}

// WarnCount returns the number of WARN runs.
func (c Chart) WarnCount() int {
	n := 0
	for _, s := range c.States {
		if s.Flag == verdict.ChartWarn {
			n++
		}
	}
	return n
}

// Engine evaluates control charts.
type Engine struct {
	params Params
}

// NewEngine creates an engine with the given parameters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Run sweeps the series once in run order. The accumulators are clamped at
// zero and never reset; non-finite runs pass with an undefined z and leave
// the accumulators untouched.
func (e *Engine) Run(s series.MetricSeries) Chart {
	sum := robust.Summarize(s.FiniteValues())
	sigma := sum.SigmaOrOne()

	chart := Chart{
		Metric: s.Name,
		Center: sum.Median,
		Sigma:  sigma,
		States: make([]State, len(s.Points)),
	}

	var cp, cn float64
	for i, p := range s.Points {
		st := State{Run: p.Run, Value: p.Value, Flag: verdict.ChartPass}
		if !series.IsFinite(p.Value) {
			st.ZRobust = math.NaN()
			st.CusumPos, st.CusumNeg = cp, cn
			chart.States[i] = st
			continue
		}

		z := (p.Value - sum.Median) / sigma
		cp = math.Max(0, cp+z-e.params.K)
		cn = math.Max(0, cn-z-e.params.K)

		st.ZRobust = z
		st.ShewhartOOC = math.Abs(z) > e.params.ZShewhart
		st.CusumPos, st.CusumNeg = cp, cn
		if st.ShewhartOOC || cp > e.params.H || cn > e.params.H {
			st.Flag = verdict.ChartWarn
		}
		chart.States[i] = st
	}
	return chart
}
