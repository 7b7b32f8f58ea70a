// Package testkit generates deterministic synthetic run series and lays them
// out as a pipeline input directory.
package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"runqa/domain/series"
)

// AnomalyKind names an injected defect
type AnomalyKind string

const (
	AnomalySpike   AnomalyKind = "spike"
	AnomalyStep    AnomalyKind = "step"
	AnomalyDrift   AnomalyKind = "drift"
	AnomalyDropout AnomalyKind = "dropout"
)

// Anomaly is a defect injected into one metric starting at run index At.
// Magnitude is in units of the metric's noise sigma, or absolute for a
// noiseless metric. Length bounds a dropout or drift, zero meaning to the end
// of the series.
type Anomaly struct {
	Kind      AnomalyKind `json:"kind" yaml:"kind"`
	At        int         `json:"at" yaml:"at"`
	Magnitude float64     `json:"magnitude" yaml:"magnitude"`
	Length    int         `json:"length" yaml:"length"`
}

// MetricSpec describes one synthetic metric
type MetricSpec struct {
	Name      string    `json:"name" yaml:"name"`
	Baseline  float64   `json:"baseline" yaml:"baseline"`
	Noise     float64   `json:"noise" yaml:"noise"`
	Entries   float64   `json:"entries" yaml:"entries"`
	Anomalies []Anomaly `json:"anomalies" yaml:"anomalies"`
}

// RunGeneratorConfig configures the generator
type RunGeneratorConfig struct {
	FirstRun int          `json:"first_run"`
	Runs     int          `json:"runs"`
	Seed     int64        `json:"seed"`
	Metrics  []MetricSpec `json:"metrics"`
}

// DefaultRunConfig returns 40 runs of four detector metrics with a spike in
// the ADC peak, a step in the BCO peak and a drift in the cluster size.
func DefaultRunConfig() RunGeneratorConfig {
	return RunGeneratorConfig{
		FirstRun: 54000,
		Runs:     40,
		Seed:     42,
		Metrics: []MetricSpec{
			{Name: "intt_adc_peak", Baseline: 72, Noise: 0.6, Entries: 5000,
				Anomalies: []Anomaly{{Kind: AnomalySpike, At: 17, Magnitude: 12}}},
			{Name: "intt_bco_peak", Baseline: 55, Noise: 0.4, Entries: 5000,
				Anomalies: []Anomaly{{Kind: AnomalyStep, At: 28, Magnitude: 8}}},
			{Name: "intt_cluster_size", Baseline: 2.3, Noise: 0.05, Entries: 5000,
				Anomalies: []Anomaly{{Kind: AnomalyDrift, At: 20, Magnitude: 6}}},
			{Name: "intt_hits_per_event", Baseline: 180, Noise: 3, Entries: 5000,
				Anomalies: []Anomaly{{Kind: AnomalyDropout, At: 8, Length: 2}}},
		},
	}
}

// RunGenerator produces reproducible series for a configuration
type RunGenerator struct {
	config RunGeneratorConfig
	rng    *rand.Rand
}

// NewRunGenerator creates a generator seeded from the configuration
func NewRunGenerator(config RunGeneratorConfig) *RunGenerator {
	return &RunGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns one series per configured metric, in configuration order
func (g *RunGenerator) Generate() ([]series.MetricSeries, error) {
	if g.config.Runs < 1 {
		return nil, fmt.Errorf("runs must be positive, got %d", g.config.Runs)
	}
	out := make([]series.MetricSeries, 0, len(g.config.Metrics))
	for _, m := range g.config.Metrics {
		if m.Name == "" {
			return nil, fmt.Errorf("metric without a name")
		}
		for _, a := range m.Anomalies {
			if a.At < 0 || a.At >= g.config.Runs {
				return nil, fmt.Errorf("metric %s: anomaly at %d outside %d runs", m.Name, a.At, g.config.Runs)
			}
		}
		out = append(out, g.metric(m))
	}
	return out, nil
}

func (g *RunGenerator) metric(m MetricSpec) series.MetricSeries {
	entries := m.Entries
	if entries <= 0 {
		entries = 1000
	}
	points := make([]series.Point, g.config.Runs)
	for i := range points {
		v := m.Baseline + g.rng.NormFloat64()*m.Noise
		points[i] = series.Point{
			Run:     g.config.FirstRun + i,
			Value:   v,
			StatErr: m.Noise / math.Sqrt(entries) * 10,
			Weight:  entries,
		}
	}
	for _, a := range m.Anomalies {
		inject(points, a, m.Noise)
	}
	s, _ := series.NewMetricSeries(m.Name, points)
	return s
}

func inject(points []series.Point, a Anomaly, sigma float64) {
	if sigma == 0 {
		sigma = 1
	}
	end := len(points)
	if a.Length > 0 && a.At+a.Length < end {
		end = a.At + a.Length
	}
	switch a.Kind {
	case AnomalySpike:
		points[a.At].Value += a.Magnitude * sigma
	case AnomalyStep:
		for i := a.At; i < len(points); i++ {
			points[i].Value += a.Magnitude * sigma
		}
	case AnomalyDrift:
		span := float64(end - a.At)
		for i := a.At; i < end; i++ {
			points[i].Value += a.Magnitude * sigma * float64(i-a.At+1) / span
		}
		for i := end; i < len(points); i++ {
			points[i].Value += a.Magnitude * sigma
		}
	case AnomalyDropout:
		for i := a.At; i < end; i++ {
			points[i].Value = math.NaN()
			points[i].Weight = 0
		}
	}
}

// Segments splits each run of s into n segment rows whose weighted mean
// reproduces the run value.
func (g *RunGenerator) Segments(s series.MetricSeries, n int) []series.SegmentRow {
	if n < 1 {
		n = 1
	}
	rows := make([]series.SegmentRow, 0, n*s.Len())
	for _, p := range s.Points {
		offsets := make([]float64, n)
		sum := 0.0
		for j := range offsets {
			offsets[j] = g.rng.NormFloat64()
			sum += offsets[j]
		}
		spread := 0.01 * math.Abs(p.Value)
		for j := range offsets {
			rows = append(rows, series.SegmentRow{
				Run:     p.Run,
				Segment: j,
				File:    fmt.Sprintf("DST_run%d_seg%03d.root", p.Run, j),
				Value:   p.Value + (offsets[j]-sum/float64(n))*spread,
				Error:   p.StatErr * math.Sqrt(float64(n)),
				Weight:  p.Weight / float64(n),
			})
		}
	}
	return rows
}
