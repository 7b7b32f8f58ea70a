package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"runqa/domain/verdict"
)

func TestFamilyOf(t *testing.T) {
	tests := map[string]Family{
		"intt_adc_peak":          ADCGain,
		"adc_median_barrel":      ADCGain,
		"intt_adc_p90":           ADCTail,
		"intt_phi_uniformity":    PhiUniformity,
		"phi_chi2_ndf":           PhiUniformity,
		"intt_bco_peak":          BCOTiming,
		"cluster_size_intt_mean": ClusterSize,
		"cluster_phi_rms":        ClusterPhiRMS,
		"cluster_phi_mean":       Generic,
		"hits_asym_ns":           HitAsymmetry,
		"mbd_charge_sum":         Generic,
	}
	for name, want := range tests {
		assert.Equal(t, want, FamilyOf(name), name)
	}
}

func TestCauses(t *testing.T) {
	tests := []struct {
		name   string
		family Family
		ev     Evidence
		want   []string
	}{
		{"adc drift", ADCGain, Evidence{Pattern: verdict.PatternGradualDrift}, []string{
			"Temperature-dependent gain drift in INTT silicon sensors",
			"Gradual radiation damage affecting charge collection",
		}},
		{"adc spike", ADCGain, Evidence{Pattern: verdict.PatternSpike}, []string{
			"Noisy run with electromagnetic pickup interference",
			"Beam conditions anomaly causing background spike",
		}},
		{"adc other", ADCGain, Evidence{Pattern: verdict.PatternIsolatedOutlier}, []string{
			"Statistical fluctuation in ADC distribution sampling",
		}},
		{"adc tail high", ADCTail, Evidence{Z: 2.5}, []string{
			"Growing electronic noise or crosstalk between channels",
			"Beam background increase filling high-ADC bins",
		}},
		{"adc tail undefined z", ADCTail, Evidence{Z: math.NaN()}, []string{
			"Threshold adjustment cutting into signal tail",
		}},
		{"phi with ladders", PhiUniformity, Evidence{Pattern: verdict.PatternStepChange, Dead: 2, Hot: 1}, []string{
			"2 dead ladder(s) creating azimuthal hole; 1 hot ladder(s) producing localized excess",
			"HV trip or recovery on INTT sensor module",
			"Beam position shift illuminating detector asymmetrically",
		}},
		{"phi hot only", PhiUniformity, Evidence{Pattern: verdict.PatternSustainedShift, Hot: 3}, []string{
			"3 hot ladder(s) producing localized excess",
			"Progressive channel degradation affecting phi coverage",
		}},
		{"bco toggle", BCOTiming, Evidence{Pattern: verdict.PatternSpike}, []string{
			"Normal BCO phase toggling between two states (may be expected)",
			"DAQ timing reconfiguration",
		}},
		{"bco drift", BCOTiming, Evidence{Pattern: verdict.PatternGradualDrift}, []string{
			"Clock oscillator frequency drift",
			"PLL instability in INTT readout timing chain",
		}},
		{"cluster wide", ClusterSize, Evidence{Value: 3.2}, []string{
			"Threshold set too low, capturing noise hits into clusters",
			"Increasing electronic noise widening clusters",
		}},
		{"cluster narrow", ClusterSize, Evidence{Value: 1.2}, []string{
			"Threshold set too high, splitting physical clusters",
			"Gain decrease reducing signal-to-noise ratio",
		}},
		{"cluster normal", ClusterSize, Evidence{Value: 2.0}, []string{
			"Normal variation in cluster formation",
		}},
		{"asymmetry confirmed", HitAsymmetry, Evidence{Value: 0.7, Dead: 4}, []string{
			"Severe occupancy imbalance: likely dead or hot sensor",
			"Confirmed: 4 dead ladder(s) in this run",
		}},
		{"asymmetry moderate", HitAsymmetry, Evidence{Value: 0.3, Dead: 4}, []string{
			"Moderate occupancy variation between sensors",
		}},
		{"generic", Generic, Evidence{}, []string{
			"Anomalous value detected; manual inspection recommended",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Causes(tt.family, tt.ev))
		})
	}
}

func TestCausesAreDeterministic(t *testing.T) {
	ev := Evidence{Pattern: verdict.PatternStepChange, Value: 1, Z: 3, Dead: 1}
	assert.Equal(t, Causes(PhiUniformity, ev), Causes(PhiUniformity, ev))
}

func TestAction(t *testing.T) {
	tests := []struct {
		metric string
		p      verdict.Pattern
		s      verdict.Severity
		want   string
	}{
		{"intt_bco_peak", verdict.PatternSpike, verdict.SeverityCritical, "Flag run for timing review; alert trigger/timing group"},
		{"intt_phi_uniformity", verdict.PatternSpike, verdict.SeverityCritical, "Run ladder health check; inspect phi distribution for this run"},
		{"intt_adc_peak", verdict.PatternSpike, verdict.SeverityCritical, "Flag run for exclusion from physics analysis; inspect raw histograms"},
		{"intt_adc_peak", verdict.PatternGradualDrift, verdict.SeverityWarning, "Monitor trend over next runs; check hardware logs for correlated changes"},
		{"intt_adc_peak", verdict.PatternStepChange, verdict.SeverityWarning, "Check run logbook for calibration or hardware interventions near this run"},
		{"intt_adc_peak", verdict.PatternIsolatedOutlier, verdict.SeverityWarning, "Note for review; compare with other metrics for correlated anomalies"},
		{"intt_adc_peak", verdict.PatternIsolatedOutlier, verdict.SeverityInfo, "No action needed; within expected variation"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Action(tt.metric, tt.p, tt.s), "%s/%s/%s", tt.metric, tt.p, tt.s)
	}
}

func TestEngineDiagnose(t *testing.T) {
	e := NewEngine("intt_bco_peak")
	assert.Equal(t, BCOTiming, e.Family())
	assert.Equal(t, "bco_timing", e.Family().String())

	causes, action := e.Diagnose(Evidence{Pattern: verdict.PatternStatisticalFluctuation}, verdict.SeverityInfo)
	assert.Equal(t, []string{"Timing jitter or synchronization fluctuation"}, causes)
	assert.Equal(t, "No action needed; within expected variation", action)
}
