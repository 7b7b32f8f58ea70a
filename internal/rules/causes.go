package rules

import (
	"fmt"
	"strings"

	"runqa/domain/verdict"
)

// Fixed texts for runs that passed every check.
const (
	CausePassed  = "All checks passed"
	ActionPassed = "No action needed"
)

// Evidence is the per-run input to the cause table.
type Evidence struct {
	Pattern verdict.Pattern
	Value   float64
	Z       float64
	Dead    int
	Hot     int
}

type causeFunc func(e Evidence) []string

var causeTable = map[Family]causeFunc{
	ADCGain: func(e Evidence) []string {
		switch e.Pattern {
		case verdict.PatternGradualDrift:
			return []string{
				"Temperature-dependent gain drift in INTT silicon sensors",
				"Gradual radiation damage affecting charge collection",
			}
		case verdict.PatternStepChange:
			return []string{
				"Calibration update applied between runs",
				"Hardware swap (sensor module or FPHX chip replacement)",
			}
		case verdict.PatternSpike:
			return []string{
				"Noisy run with electromagnetic pickup interference",
				"Beam conditions anomaly causing background spike",
			}
		}
		return []string{"Statistical fluctuation in ADC distribution sampling"}
	},
	ADCTail: func(e Evidence) []string {
		if e.Z > 0 {
			return []string{
				"Growing electronic noise or crosstalk between channels",
				"Beam background increase filling high-ADC bins",
			}
		}
		return []string{"Threshold adjustment cutting into signal tail"}
	},
	PhiUniformity: func(e Evidence) []string {
		var causes []string
		if c := ladderCause(e.Dead, e.Hot); c != "" {
			causes = append(causes, c)
		}
		if e.Pattern == verdict.PatternSpike || e.Pattern == verdict.PatternStepChange {
			return append(causes,
				"HV trip or recovery on INTT sensor module",
				"Beam position shift illuminating detector asymmetrically",
			)
		}
		return append(causes, "Progressive channel degradation affecting phi coverage")
	},
	BCOTiming: func(e Evidence) []string {
		switch e.Pattern {
		case verdict.PatternStepChange, verdict.PatternSpike:
			return []string{
				"Normal BCO phase toggling between two states (may be expected)",
				"DAQ timing reconfiguration",
			}
		case verdict.PatternGradualDrift:
			return []string{
				"Clock oscillator frequency drift",
				"PLL instability in INTT readout timing chain",
			}
		}
		return []string{"Timing jitter or synchronization fluctuation"}
	},
	ClusterSize: func(e Evidence) []string {
		switch {
		case e.Value > 3.0:
			return []string{
				"Threshold set too low, capturing noise hits into clusters",
				"Increasing electronic noise widening clusters",
			}
		case e.Value < 1.5:
			return []string{
				"Threshold set too high, splitting physical clusters",
				"Gain decrease reducing signal-to-noise ratio",
			}
		}
		return []string{"Normal variation in cluster formation"}
	},
	ClusterPhiRMS: func(e Evidence) []string {
		return []string{
			"Change in active azimuthal coverage (dead/recovered sectors)",
			"Beam position shift affecting illumination pattern",
		}
	},
	HitAsymmetry: func(e Evidence) []string {
		if e.Value > 0.5 {
			causes := []string{"Severe occupancy imbalance: likely dead or hot sensor"}
			if e.Dead > 0 {
				causes = append(causes, fmt.Sprintf("Confirmed: %d dead ladder(s) in this run", e.Dead))
			}
			return causes
		}
		return []string{"Moderate occupancy variation between sensors"}
	},
	Generic: func(e Evidence) []string {
		return []string{"Anomalous value detected; manual inspection recommended"}
	},
}

func ladderCause(dead, hot int) string {
	var parts []string
	if dead > 0 {
		parts = append(parts, fmt.Sprintf("%d dead ladder(s) creating azimuthal hole", dead))
	}
	if hot > 0 {
		parts = append(parts, fmt.Sprintf("%d hot ladder(s) producing localized excess", hot))
	}
	return strings.Join(parts, "; ")
}

// Causes returns the ordered plausible causes for a flagged run.
func Causes(f Family, e Evidence) []string {
	fn, ok := causeTable[f]
	if !ok {
		fn = causeTable[Generic]
	}
	causes := fn(e)
	if len(causes) == 0 {
		return []string{"No specific diagnosis available"}
	}
	return causes
}

// Action recommends what to do about a flagged (metric, pattern, severity).
func Action(metric string, p verdict.Pattern, s verdict.Severity) string {
	switch s {
	case verdict.SeverityCritical:
		switch {
		case strings.Contains(metric, "bco"):
			return "Flag run for timing review; alert trigger/timing group"
		case strings.Contains(metric, "phi"):
			return "Run ladder health check; inspect phi distribution for this run"
		}
		return "Flag run for exclusion from physics analysis; inspect raw histograms"
	case verdict.SeverityWarning:
		switch p {
		case verdict.PatternGradualDrift:
			return "Monitor trend over next runs; check hardware logs for correlated changes"
		case verdict.PatternStepChange:
			return "Check run logbook for calibration or hardware interventions near this run"
		}
		return "Note for review; compare with other metrics for correlated anomalies"
	}
	return "No action needed; within expected variation"
}

// Engine applies the rule tables to one metric, deriving its family once.
type Engine struct {
	metric string
	family Family
}

// NewEngine binds the rule tables to a metric name.
func NewEngine(metric string) *Engine {
	return &Engine{metric: metric, family: FamilyOf(metric)}
}

// Family returns the metric's family.
func (e *Engine) Family() Family { return e.family }

// Diagnose returns causes and action for a flagged run.
func (e *Engine) Diagnose(ev Evidence, s verdict.Severity) ([]string, string) {
	return Causes(e.family, ev), Action(e.metric, ev.Pattern, s)
}
