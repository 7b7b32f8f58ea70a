// Package symptom grades each run's local z scores into severity levels and
// sums them into per-cluster symptom scores.
package symptom

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	"runqa/internal/rules"
)

// Level is the severity of one metric's deviation.
type Level string

const (
	Normal   Level = "normal"
	Mild     Level = "mild"
	Moderate Level = "moderate"
	Severe   Level = "severe"
)

// Weight is the score contribution of a level.
func (l Level) Weight() int {
	switch l {
	case Severe:
		return 3
	case Moderate:
		return 2
	case Mild:
		return 1
	}
	return 0
}

// Levels are the |z| cuts for mild, moderate and severe.
type Levels struct {
	Mild     float64
	Moderate float64
	Severe   float64
}

// DefaultLevels returns 1/2/3.
func DefaultLevels() Levels {
	return Levels{Mild: 1, Moderate: 2, Severe: 3}
}

// Classify grades |z|.
func (l Levels) Classify(z float64) Level {
	a := math.Abs(z)
	switch {
	case a >= l.Severe:
		return Severe
	case a >= l.Moderate:
		return Moderate
	case a >= l.Mild:
		return Mild
	}
	return Normal
}

// Label turns a cluster score into a label: strong >= 6, moderate >= 3, weak >= 1.
func Label(score int) string {
	switch {
	case score >= 6:
		return "strong"
	case score >= 3:
		return "moderate"
	case score >= 1:
		return "weak"
	}
	return "none"
}

// Params configures the engine. Empty Clusters means one cluster per metric family.
type Params struct {
	Levels    Levels
	Overrides map[string]Levels
	Clusters  map[string][]string
}

// Column is the local z score of one metric keyed by run. NaN means undefined.
type Column struct {
	Metric string
	Z      map[int]float64
}

// Record is one graded (run, metric) symptom.
type Record struct {
	Run     int
	Metric  string
	Z       float64
	Level   Level
	Cluster string
}

// ClusterScore is the summed weight of one cluster for a run.
type ClusterScore struct {
	Cluster string
	Score   int
	Label   string
}

// RunSymptoms is the per-run cluster table row.
type RunSymptoms struct {
	Run      int
	Clusters []ClusterScore
	Primary  string
	PrimaryZ float64
}

// Result is the symptom analysis of all runs.
type Result struct {
	Clusters []string
	Records  []Record
	Runs     []RunSymptoms
}

// Engine evaluates symptom clusters.
type Engine struct {
	params Params
}

// NewEngine creates an engine with the given parameters.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

func (e *Engine) levelsFor(metric string) Levels {
	if l, ok := e.params.Overrides[metric]; ok {
		return l
	}
	return e.params.Levels
}

// clusterMap returns cluster names in sorted order and their member metrics.
func (e *Engine) clusterMap(cols []Column) ([]string, map[string][]string) {
	members := e.params.Clusters
	if len(members) == 0 {
		members = make(map[string][]string)
		for _, c := range cols {
			name := rules.FamilyOf(c.Metric).String()
			members[name] = append(members[name], c.Metric)
		}
	}
	names := make([]string, 0, len(members))
	for n := range members {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, members
}

// Evaluate grades every run present in any column. Undefined z values are
// not graded. The primary symptom is the metric with the largest |z|, ties
// going to the earlier column.
func (e *Engine) Evaluate(cols []Column) Result {
	names, members := e.clusterMap(cols)
	byMetric := make(map[string]Column, len(cols))
	runSet := make(map[int]struct{})
	for _, c := range cols {
		byMetric[c.Metric] = c
		for r := range c.Z {
			runSet[r] = struct{}{}
		}
	}
	runs := make([]int, 0, len(runSet))
	for r := range runSet {
		runs = append(runs, r)
	}
	sort.Ints(runs)

	res := Result{Clusters: names}
	for _, run := range runs {
		rs := RunSymptoms{Run: run, Primary: "none"}
		for _, cname := range names {
			score := 0
			for _, m := range members[cname] {
				col, ok := byMetric[m]
				if !ok {
					continue
				}
				z, ok := col.Z[run]
				if !ok || math.IsNaN(z) {
					continue
				}
				lvl := e.levelsFor(m).Classify(z)
				score += lvl.Weight()
				res.Records = append(res.Records, Record{Run: run, Metric: m, Z: z, Level: lvl, Cluster: cname})
			}
			rs.Clusters = append(rs.Clusters, ClusterScore{Cluster: cname, Score: score, Label: Label(score)})
		}

		best := 0.0
		for _, c := range cols {
			if z, ok := c.Z[run]; ok && !math.IsNaN(z) && math.Abs(z) > best {
				best = math.Abs(z)
				rs.Primary = c.Metric
				rs.PrimaryZ = z
			}
		}
		res.Runs = append(res.Runs, rs)
	}
	return res
}

type clusterMapFile struct {
	Clusters map[string]struct {
		Metrics    []string `yaml:"metrics"`
		Indicators []string `yaml:"indicators"`
	} `yaml:"clusters"`
}

// LoadClusterMap reads a cluster map document of the form
//
//	clusters:
//	  gain: {metrics: [intt_adc_peak], indicators: [gain_z]}
//
// Indicators are treated as additional member metrics.
func LoadClusterMap(r io.Reader) (map[string][]string, error) {
	var doc clusterMapFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode cluster map: %w", err)
	}
	out := make(map[string][]string, len(doc.Clusters))
	for name, c := range doc.Clusters {
		out[name] = append(append([]string(nil), c.Metrics...), c.Indicators...)
	}
	return out, nil
}
