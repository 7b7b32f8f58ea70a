package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"runqa/internal"
	"runqa/internal/config"
)

// globalFlags override the loaded configuration when set on the command line
type globalFlags struct {
	configFile  string
	inputDir    string
	outputDir   string
	metricsConf string
	workers     int
	logLevel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "runqa",
		Short: "Automated run quality assessment for detector metric tables",
		Long: `runqa scores per-run detector metrics for local outliers, trends,
changepoints and control-chart excursions, classifies flagged runs and
writes GOOD / SUSPECT / BAD verdicts per run.

Configuration is read from .env, QA_* environment variables and an
optional YAML file (QA_CONFIG_FILE or --config); flags win.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				internal.DefaultLogger.Debug("no .env file found, using system environment variables")
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML configuration file")
	pf.StringVarP(&flags.inputDir, "input", "i", "", "Input directory (default from QA_INPUT_DIR or ./out)")
	pf.StringVarP(&flags.outputDir, "output", "o", "", "Output directory (default from QA_OUTPUT_DIR or ./out)")
	pf.StringVar(&flags.metricsConf, "metrics-conf", "", "Metric declaration file, relative to the input directory")
	pf.IntVarP(&flags.workers, "workers", "j", 0, "Per-metric worker count (default GOMAXPROCS)")
	pf.StringVar(&flags.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE (default from LOG_LEVEL)")

	rootCmd.AddCommand(
		newRunCmd(&flags),
		newOutliersCmd(&flags),
		newTrendCmd(&flags),
		newControlCmd(&flags),
		newPCACmd(&flags),
		newMockCmd(&flags),
		newHistoryCmd(&flags),
	)
	return rootCmd
}

// load resolves the configuration and logger for a command
func (f *globalFlags) load() (*config.Config, *internal.Logger, error) {
	if f.configFile != "" {
		os.Setenv("QA_CONFIG_FILE", f.configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if f.inputDir != "" {
		cfg.Paths.InputDir = f.inputDir
	}
	if f.outputDir != "" {
		cfg.Paths.OutputDir = f.outputDir
	}
	if f.metricsConf != "" {
		cfg.Paths.MetricsConf = f.metricsConf
	}
	if f.workers > 0 {
		cfg.Pipeline.Workers = f.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := internal.DefaultLogger
	if f.logLevel != "" {
		logger = internal.NewLogger(internal.ParseLogLevel(f.logLevel))
	}
	return cfg, logger, nil
}
