// Package rules maps a metric family and anomaly pattern to plausible
// detector causes and a recommended action.
package rules

import "strings"

// Family groups metrics that share a diagnosis vocabulary.
type Family int

const (
	Generic Family = iota
	ADCGain
	ADCTail
	PhiUniformity
	BCOTiming
	ClusterSize
	ClusterPhiRMS
	HitAsymmetry
)

var familyNames = map[Family]string{
	Generic:       "generic",
	ADCGain:       "adc_gain",
	ADCTail:       "adc_tail",
	PhiUniformity: "phi_uniformity",
	BCOTiming:     "bco_timing",
	ClusterSize:   "cluster_size",
	ClusterPhiRMS: "cluster_phi_rms",
	HitAsymmetry:  "hit_asymmetry",
}

func (f Family) String() string {
	if n, ok := familyNames[f]; ok {
		return n
	}
	return "unknown"
}

// familyMatcher matches when the name contains any of anyOf and all of allOf.
type familyMatcher struct {
	family Family
	anyOf  []string
	allOf  []string
}

func (m familyMatcher) matches(name string) bool {
	for _, s := range m.allOf {
		if !strings.Contains(name, s) {
			return false
		}
	}
	if len(m.anyOf) == 0 {
		return true
	}
	for _, s := range m.anyOf {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// familyTable is checked top to bottom; order matters for names that match
// several entries.
var familyTable = []familyMatcher{
	{family: ADCGain, anyOf: []string{"adc_peak", "adc_median"}},
	{family: ADCTail, anyOf: []string{"adc_p90"}},
	{family: PhiUniformity, anyOf: []string{"phi_uniform", "phi_chi2"}},
	{family: BCOTiming, anyOf: []string{"bco_peak"}},
	{family: ClusterSize, anyOf: []string{"cluster_size"}},
	{family: ClusterPhiRMS, allOf: []string{"cluster_phi", "rms"}},
	{family: HitAsymmetry, anyOf: []string{"hits_asym"}},
}

// FamilyOf derives the family of a metric from its name.
func FamilyOf(metric string) Family {
	for _, m := range familyTable {
		if m.matches(metric) {
			return m.family
		}
	}
	return Generic
}
