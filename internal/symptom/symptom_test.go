package symptom

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAndLabel(t *testing.T) {
	l := DefaultLevels()
	assert.Equal(t, Normal, l.Classify(0.99))
	assert.Equal(t, Mild, l.Classify(-1))
	assert.Equal(t, Moderate, l.Classify(2.5))
	assert.Equal(t, Severe, l.Classify(-3))

	assert.Equal(t, "none", Label(0))
	assert.Equal(t, "weak", Label(1))
	assert.Equal(t, "weak", Label(2))
	assert.Equal(t, "moderate", Label(3))
	assert.Equal(t, "moderate", Label(5))
	assert.Equal(t, "strong", Label(6))
}

func TestEvaluateDefaultClusters(t *testing.T) {
	cols := []Column{
		{Metric: "intt_adc_peak", Z: map[int]float64{1: 3.5, 2: 0.2}},
		{Metric: "intt_adc_median", Z: map[int]float64{1: -3.1, 2: math.NaN()}},
		{Metric: "intt_bco_peak", Z: map[int]float64{1: 1.2, 3: 2.2}},
	}
	res := NewEngine(Params{Levels: DefaultLevels()}).Evaluate(cols)

	assert.Equal(t, []string{"adc_gain", "bco_timing"}, res.Clusters)
	require.Len(t, res.Runs, 3)

	r1 := res.Runs[0]
	assert.Equal(t, 1, r1.Run)
	assert.Equal(t, ClusterScore{Cluster: "adc_gain", Score: 6, Label: "strong"}, r1.Clusters[0])
	assert.Equal(t, ClusterScore{Cluster: "bco_timing", Score: 1, Label: "weak"}, r1.Clusters[1])
	assert.Equal(t, "intt_adc_peak", r1.Primary)
	assert.Equal(t, 3.5, r1.PrimaryZ)

	r2 := res.Runs[1]
	assert.Equal(t, 0, r2.Clusters[0].Score)
	assert.Equal(t, "none", r2.Clusters[0].Label)
	assert.Equal(t, "intt_adc_peak", r2.Primary)

	assert.Equal(t, "intt_bco_peak", res.Runs[2].Primary)
	for _, rec := range res.Records {
		assert.False(t, math.IsNaN(rec.Z), "undefined z values are not graded")
	}
}

func TestEvaluateOverridesAndCustomClusters(t *testing.T) {
	p := Params{
		Levels:    DefaultLevels(),
		Overrides: map[string]Levels{"a": {Mild: 0.1, Moderate: 0.2, Severe: 0.3}},
		Clusters:  map[string][]string{"combo": {"a", "b", "missing"}},
	}
	res := NewEngine(p).Evaluate([]Column{
		{Metric: "a", Z: map[int]float64{7: 0.25}},
		{Metric: "b", Z: map[int]float64{7: 0.25}},
	})
	require.Len(t, res.Runs, 1)
	assert.Equal(t, 2, res.Runs[0].Clusters[0].Score)
	assert.Equal(t, "a", res.Runs[0].Primary)
}

func TestLoadClusterMap(t *testing.T) {
	doc := `
clusters:
  gain:
    metrics: [intt_adc_peak, intt_adc_median]
    indicators: [gain_z]
  timing:
    metrics: [intt_bco_peak]
`
	m, err := LoadClusterMap(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"intt_adc_peak", "intt_adc_median", "gain_z"}, m["gain"])
	assert.Equal(t, []string{"intt_bco_peak"}, m["timing"])

	_, err = LoadClusterMap(strings.NewReader("clusters: [oops"))
	assert.Error(t, err)
}
