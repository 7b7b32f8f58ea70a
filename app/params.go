package app

import (
	"runqa/internal/config"
	"runqa/internal/control"
	"runqa/internal/multivar"
	"runqa/internal/outlier"
	"runqa/internal/pattern"
	"runqa/internal/symptom"
	"runqa/internal/trend"
)

func outlierParams(c *config.Config) outlier.Params {
	return outlier.Params{
		Window:  c.Outlier.Window,
		Weak:    c.Outlier.Weak,
		Strong:  c.Outlier.Strong,
		Epsilon: c.Outlier.Epsilon,
	}
}

func trendParams(c *config.Config) trend.Params {
	return trend.Params{
		ChangepointBIC: c.Trend.ChangepointBIC,
		SignificanceP:  c.Trend.SignificanceP,
		EWMALambda:     c.Trend.EWMALambda,
	}
}

func controlParams(c *config.Config) control.Params {
	return control.Params{
		ZShewhart: c.Control.ZShewhart,
		K:         c.Control.K,
		H:         c.Control.H,
		QCTolZ:    c.Control.QCTolZ,
	}
}

func multivarParams(c *config.Config) multivar.Params {
	return multivar.Params{
		CorrThreshold:  c.Multivar.CorrThreshold,
		MahalanobisCut: c.Multivar.MahalanobisCut,
	}
}

// patternParams shares the changepoint and significance cuts with the trend analyzer.
func patternParams(c *config.Config) pattern.Params {
	return pattern.Params{
		Neighborhood:   c.Pattern.Neighborhood,
		SpikeZ:         c.Pattern.SpikeZ,
		FlagZ:          c.Pattern.FlagZ,
		ChangepointBIC: c.Trend.ChangepointBIC,
		SignificanceP:  c.Trend.SignificanceP,
	}
}

func symptomLevels(l config.SymptomLevels) symptom.Levels {
	return symptom.Levels{Mild: l.Mild, Moderate: l.Moderate, Severe: l.Severe}
}

func symptomParams(c *config.Config, clusters map[string][]string) symptom.Params {
	p := symptom.Params{
		Levels:   symptomLevels(c.Symptom.Levels),
		Clusters: clusters,
	}
	if len(c.Symptom.Overrides) > 0 {
		p.Overrides = make(map[string]symptom.Levels, len(c.Symptom.Overrides))
		for metric, l := range c.Symptom.Overrides {
			p.Overrides[metric] = symptomLevels(l)
		}
	}
	return p
}
