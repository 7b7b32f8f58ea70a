package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"runqa/internal/testkit"
)

func newMockCmd(flags *globalFlags) *cobra.Command {
	var (
		spec     string
		runs     int
		firstRun int
		seed     int64
		segments int
		run      bool
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Generate a synthetic input directory with injected anomalies",
		Long: `Mock writes metrics.conf, per-run tables and a ladder health table for
synthetic detector metrics into the input directory. Without --spec four
metrics with a spike, a step, a drift and a dropout are generated.

A --spec YAML or JSON file replaces the metric list:

  metrics:
    - name: intt_adc_peak
      baseline: 72
      noise: 0.6
      anomalies: [{kind: spike, at: 17, magnitude: 12}]

Example: runqa mock -i /tmp/qa --runs 60 --run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			gc := testkit.DefaultRunConfig()
			if spec != "" {
				if gc, err = loadMockSpec(spec, gc); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("runs") {
				gc.Runs = runs
			}
			if cmd.Flags().Changed("first-run") {
				gc.FirstRun = firstRun
			}
			if cmd.Flags().Changed("seed") {
				gc.Seed = seed
			}

			g := testkit.NewRunGenerator(gc)
			all, err := g.Generate()
			if err != nil {
				return err
			}
			opts := testkit.MockOptions{Stamp: fmt.Sprintf("seed: %d\nruns: %d\n", gc.Seed, gc.Runs)}
			if segments > 0 && len(all) > 0 {
				opts.SegmentMetrics = map[string]int{all[len(all)-1].Name: segments}
			}
			if err := g.WriteMockInputs(cfg.Paths.InputDir, all, opts, logger); err != nil {
				return err
			}
			logger.Info("wrote %d synthetic metrics over %d runs to %s", len(all), gc.Runs, cfg.Paths.InputDir)

			if !run {
				return nil
			}
			return runPipeline(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&spec, "spec", "", "YAML or JSON generator spec")
	cmd.Flags().IntVar(&runs, "runs", 40, "Number of runs")
	cmd.Flags().IntVar(&firstRun, "first-run", 54000, "First run number")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic generation")
	cmd.Flags().IntVar(&segments, "segments", 0, "Write the last metric as N segments per run instead of a per-run table")
	cmd.Flags().BoolVar(&run, "run", false, "Run the pipeline on the generated inputs")

	return cmd
}

func loadMockSpec(path string, base testkit.RunGeneratorConfig) (testkit.RunGeneratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading mock spec: %w", err)
	}
	var doc struct {
		Metrics []testkit.MetricSpec `yaml:"metrics" json:"metrics"`
	}
	if json.Valid(data) {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return base, fmt.Errorf("parsing mock spec %s: %w", path, err)
	}
	if len(doc.Metrics) > 0 {
		base.Metrics = doc.Metrics
	}
	return base, nil
}
