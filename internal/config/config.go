package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"runqa/internal/errors"
)

// Config represents the complete pipeline configuration
type Config struct {
	Paths    PathConfig     `yaml:"paths"`
	Outlier  OutlierConfig  `yaml:"outlier"`
	Trend    TrendConfig    `yaml:"trend"`
	Control  ControlConfig  `yaml:"control"`
	Multivar MultivarConfig `yaml:"multivar"`
	Pattern  PatternConfig  `yaml:"pattern"`
	Symptom  SymptomConfig  `yaml:"symptom"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Report   ReportConfig   `yaml:"report"`
}

// PathConfig holds file system paths
type PathConfig struct {
	InputDir    string `yaml:"input_dir"`
	OutputDir   string `yaml:"output_dir"`
	MetricsConf string `yaml:"metrics_conf"`
}

// OutlierConfig holds the robust local scorer parameters
type OutlierConfig struct {
	Window  int     `yaml:"window"`
	Weak    float64 `yaml:"weak"`
	Strong  float64 `yaml:"strong"`
	Epsilon float64 `yaml:"epsilon"`
}

// TrendConfig holds trend and changepoint parameters
type TrendConfig struct {
	ChangepointBIC float64 `yaml:"changepoint_bic"`
	SignificanceP  float64 `yaml:"significance_p"`
	EWMALambda     float64 `yaml:"ewma_lambda"`
}

// ControlConfig holds control chart and QC status parameters
type ControlConfig struct {
	ZShewhart float64 `yaml:"z_shewhart"`
	K         float64 `yaml:"cusum_k"`
	H         float64 `yaml:"cusum_h"`
	QCTolZ    float64 `yaml:"qc_tol_z"`
}

// MultivarConfig holds correlation and PCA parameters
type MultivarConfig struct {
	CorrThreshold  float64 `yaml:"corr_threshold"`
	MahalanobisCut float64 `yaml:"mahalanobis_cut"`
}

// PatternConfig holds the classifier decision thresholds
type PatternConfig struct {
	Neighborhood int     `yaml:"neighborhood"`
	SpikeZ       float64 `yaml:"spike_z"`
	FlagZ        float64 `yaml:"flag_z"`
}

// SymptomLevels are the |z| cuts for mild, moderate and severe symptoms
type SymptomLevels struct {
	Mild     float64 `yaml:"mild"`
	Moderate float64 `yaml:"moderate"`
	Severe   float64 `yaml:"severe"`
}

// SymptomConfig holds symptom-cluster settings
type SymptomConfig struct {
	Levels     SymptomLevels            `yaml:"levels"`
	Overrides  map[string]SymptomLevels `yaml:"overrides"`
	Clusters   map[string][]string      `yaml:"clusters"`
	ClusterMap string                   `yaml:"cluster_map"`
}

// PipelineConfig holds execution settings
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// ArchiveConfig holds the verdict history database settings
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
}

// ReportConfig toggles optional report renditions
type ReportConfig struct {
	HTML bool `yaml:"html"`
	XLSX bool `yaml:"xlsx"`
}

// Default returns the configuration with every built-in default
func Default() *Config {
	return &Config{
		Paths: PathConfig{
			InputDir:    "out",
			OutputDir:   "out",
			MetricsConf: "metrics.conf",
		},
		Outlier: OutlierConfig{
			Window:  5,
			Weak:    2.0,
			Strong:  3.0,
			Epsilon: 1e-6,
		},
		Trend: TrendConfig{
			ChangepointBIC: 10.0,
			SignificanceP:  0.01,
			EWMALambda:     0.3,
		},
		Control: ControlConfig{
			ZShewhart: 3.0,
			K:         0.5,
			H:         5.0,
			QCTolZ:    3.5,
		},
		Multivar: MultivarConfig{
			CorrThreshold:  0.7,
			MahalanobisCut: 3.0,
		},
		Pattern: PatternConfig{
			Neighborhood: 2,
			SpikeZ:       4.0,
			FlagZ:        2.0,
		},
		Symptom: SymptomConfig{
			Levels: SymptomLevels{Mild: 1.0, Moderate: 2.0, Severe: 3.0},
		},
		Pipeline: PipelineConfig{
			Workers: runtime.GOMAXPROCS(0),
		},
		Archive: ArchiveConfig{
			Driver: "sqlite",
			DSN:    "runqa_history.db",
		},
		Report: ReportConfig{
			HTML: true,
			XLSX: true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// QA_CONFIG_FILE, and QA_* environment variables, in that order, then validates it
func Load() (*Config, error) {
	config := Default()

	if path := os.Getenv("QA_CONFIG_FILE"); path != "" {
		if err := loadYAMLFile(path, config); err != nil {
			return nil, errors.Wrap(err, "failed to load configuration file")
		}
	}

	loadPathConfig(&config.Paths)
	loadOutlierConfig(&config.Outlier)
	loadTrendConfig(&config.Trend)
	loadControlConfig(&config.Control)
	loadMultivarConfig(&config.Multivar)
	config.Symptom.ClusterMap = getEnvOrDefault("QA_CLUSTER_MAP", config.Symptom.ClusterMap)
	loadPipelineConfig(&config.Pipeline)
	loadArchiveConfig(&config.Archive)
	loadReportConfig(&config.Report)

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadYAMLFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.IOError(fmt.Sprintf("reading %s", path), err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parsing %s: %w", path, err))
	}
	return nil
}

func loadPathConfig(c *PathConfig) {
	c.InputDir = getEnvOrDefault("QA_INPUT_DIR", c.InputDir)
	c.OutputDir = getEnvOrDefault("QA_OUTPUT_DIR", c.OutputDir)
	c.MetricsConf = getEnvOrDefault("QA_METRICS_CONF", c.MetricsConf)
}

func loadOutlierConfig(c *OutlierConfig) {
	c.Window = getEnvIntOrDefault("QA_WINDOW", c.Window)
	c.Weak = getEnvFloatOrDefault("QA_WEAK_Z", c.Weak)
	c.Strong = getEnvFloatOrDefault("QA_STRONG_Z", c.Strong)
}

func loadTrendConfig(c *TrendConfig) {
	c.ChangepointBIC = getEnvFloatOrDefault("QA_CHANGEPOINT_BIC", c.ChangepointBIC)
	c.SignificanceP = getEnvFloatOrDefault("QA_TREND_P", c.SignificanceP)
	c.EWMALambda = getEnvFloatOrDefault("QA_EWMA_LAMBDA", c.EWMALambda)
}

func loadControlConfig(c *ControlConfig) {
	c.ZShewhart = getEnvFloatOrDefault("QA_Z_SHEWHART", c.ZShewhart)
	c.K = getEnvFloatOrDefault("QA_CUSUM_K", c.K)
	c.H = getEnvFloatOrDefault("QA_CUSUM_H", c.H)
	c.QCTolZ = getEnvFloatOrDefault("QA_QC_TOL_Z", c.QCTolZ)
}

func loadMultivarConfig(c *MultivarConfig) {
	c.CorrThreshold = getEnvFloatOrDefault("QA_CORR_THRESHOLD", c.CorrThreshold)
	c.MahalanobisCut = getEnvFloatOrDefault("QA_MAHALANOBIS_CUT", c.MahalanobisCut)
}

func loadPipelineConfig(c *PipelineConfig) {
	c.Workers = getEnvIntOrDefault("QA_WORKERS", c.Workers)
}

func loadArchiveConfig(c *ArchiveConfig) {
	c.Enabled = getEnvBoolOrDefault("QA_ARCHIVE", c.Enabled)
	c.Driver = getEnvOrDefault("QA_ARCHIVE_DRIVER", c.Driver)
	c.DSN = getEnvOrDefault("QA_ARCHIVE_DSN", c.DSN)
}

func loadReportConfig(c *ReportConfig) {
	c.HTML = getEnvBoolOrDefault("QA_REPORT_HTML", c.HTML)
	c.XLSX = getEnvBoolOrDefault("QA_REPORT_XLSX", c.XLSX)
}

// Validate rejects parameter combinations the estimators cannot work with
func (c *Config) Validate() error {
	if c.Paths.InputDir == "" {
		return errors.ConfigInvalid("input directory is required")
	}
	if c.Paths.OutputDir == "" {
		return errors.ConfigInvalid("output directory is required")
	}
	if c.Outlier.Window < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("outlier window must be positive, got %d", c.Outlier.Window))
	}
	if c.Outlier.Weak <= 0 || c.Outlier.Weak >= c.Outlier.Strong {
		return errors.ConfigInvalid(fmt.Sprintf("need 0 < weak (%g) < strong (%g)", c.Outlier.Weak, c.Outlier.Strong))
	}
	if c.Outlier.Epsilon <= 0 {
		return errors.ConfigInvalid("outlier epsilon must be positive")
	}
	if c.Trend.EWMALambda <= 0 || c.Trend.EWMALambda > 1 {
		return errors.ConfigInvalid(fmt.Sprintf("ewma lambda must be in (0, 1], got %g", c.Trend.EWMALambda))
	}
	if c.Trend.SignificanceP <= 0 || c.Trend.SignificanceP >= 1 {
		return errors.ConfigInvalid("trend significance must be in (0, 1)")
	}
	if c.Control.ZShewhart <= 0 || c.Control.H <= 0 || c.Control.K < 0 || c.Control.QCTolZ <= 0 {
		return errors.ConfigInvalid("control chart thresholds must be positive")
	}
	if c.Multivar.CorrThreshold <= 0 || c.Multivar.CorrThreshold >= 1 {
		return errors.ConfigInvalid(fmt.Sprintf("correlation threshold must be in (0, 1), got %g", c.Multivar.CorrThreshold))
	}
	if c.Multivar.MahalanobisCut <= 0 {
		return errors.ConfigInvalid("mahalanobis cut must be positive")
	}
	if c.Pattern.Neighborhood < 1 {
		return errors.ConfigInvalid("pattern neighborhood must be positive")
	}
	l := c.Symptom.Levels
	if !(l.Mild > 0 && l.Mild < l.Moderate && l.Moderate < l.Severe) {
		return errors.ConfigInvalid("symptom levels must satisfy 0 < mild < moderate < severe")
	}
	if c.Pipeline.Workers < 1 {
		return errors.ConfigInvalid("workers must be at least 1")
	}
	if c.Archive.Enabled {
		switch c.Archive.Driver {
		case "sqlite", "postgres":
		default:
			return errors.ConfigInvalid(fmt.Sprintf("unsupported archive driver %q", c.Archive.Driver))
		}
		if c.Archive.DSN == "" {
			return errors.ConfigInvalid("archive DSN is required when archiving is enabled")
		}
	}
	return nil
}

// Params flattens the parameters that influence verdicts, for fingerprinting
func (c *Config) Params() map[string]interface{} {
	return map[string]interface{}{
		"outlier.window":    c.Outlier.Window,
		"outlier.weak":      c.Outlier.Weak,
		"outlier.strong":    c.Outlier.Strong,
		"outlier.epsilon":   c.Outlier.Epsilon,
		"trend.bic":         c.Trend.ChangepointBIC,
		"trend.p":           c.Trend.SignificanceP,
		"trend.lambda":      c.Trend.EWMALambda,
		"control.z":         c.Control.ZShewhart,
		"control.k":         c.Control.K,
		"control.h":         c.Control.H,
		"control.tolz":      c.Control.QCTolZ,
		"multivar.r":        c.Multivar.CorrThreshold,
		"multivar.mahal":    c.Multivar.MahalanobisCut,
		"pattern.window":    c.Pattern.Neighborhood,
		"pattern.spike":     c.Pattern.SpikeZ,
		"pattern.flag":      c.Pattern.FlagZ,
		"symptom.levels":    fmt.Sprintf("%g/%g/%g", c.Symptom.Levels.Mild, c.Symptom.Levels.Moderate, c.Symptom.Levels.Severe),
		"symptom.overrides": len(c.Symptom.Overrides),
		"symptom.clusters":  len(c.Symptom.Clusters),
	}
}

// LevelsFor returns the symptom levels for a metric, honoring per-metric overrides
func (c *SymptomConfig) LevelsFor(metric string) SymptomLevels {
	if l, ok := c.Overrides[metric]; ok {
		return l
	}
	return c.Levels
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
