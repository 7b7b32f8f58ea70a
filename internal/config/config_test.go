package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runqa/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Outlier.Window)
	assert.Equal(t, 0.5, cfg.Control.K)
	assert.Equal(t, 5.0, cfg.Control.H)
	assert.Equal(t, 0.7, cfg.Multivar.CorrThreshold)
	assert.Equal(t, 10.0, cfg.Trend.ChangepointBIC)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QA_WINDOW", "3")
	t.Setenv("QA_CUSUM_H", "4.5")
	t.Setenv("QA_ARCHIVE", "true")
	t.Setenv("QA_ARCHIVE_DSN", filepath.Join(t.TempDir(), "h.db"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Outlier.Window)
	assert.Equal(t, 4.5, cfg.Control.H)
	assert.True(t, cfg.Archive.Enabled)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.yaml")
	yamlDoc := `
outlier:
  weak: 2.5
  strong: 4.0
symptom:
  overrides:
    adc_peak: {mild: 0.5, moderate: 1.5, severe: 2.5}
  clusters:
    gain: [adc_peak, adc_median]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("QA_CONFIG_FILE", path)
	t.Setenv("QA_STRONG_Z", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Outlier.Weak)
	assert.Equal(t, 5.0, cfg.Outlier.Strong, "env wins over file")
	assert.Equal(t, 5, cfg.Outlier.Window, "untouched keys keep defaults")
	assert.Equal(t, 0.5, cfg.Symptom.LevelsFor("adc_peak").Mild)
	assert.Equal(t, 1.0, cfg.Symptom.LevelsFor("bco_peak").Mild)
	assert.Equal(t, []string{"adc_peak", "adc_median"}, cfg.Symptom.Clusters["gain"])
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.Outlier.Window = 0 }},
		{"weak above strong", func(c *Config) { c.Outlier.Weak = 3.5 }},
		{"lambda out of range", func(c *Config) { c.Trend.EWMALambda = 1.5 }},
		{"correlation threshold one", func(c *Config) { c.Multivar.CorrThreshold = 1 }},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"unknown driver", func(c *Config) { c.Archive.Enabled = true; c.Archive.Driver = "oracle" }},
		{"unordered symptom levels", func(c *Config) { c.Symptom.Levels.Moderate = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestBadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("outlier: [unclosed"), 0o644))
	t.Setenv("QA_CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
