package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"runqa/adapters/excel"
	"runqa/adapters/report"
	"runqa/adapters/sqlstore"
	"runqa/adapters/tables"
	"runqa/app"
	"runqa/internal"
	"runqa/internal/config"
	"runqa/ports"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var archive, noHTML, noXLSX bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full QA pipeline and write every verdict output",
		Long: `Run loads every metric declared in metrics.conf, runs the per-metric
checks concurrently, fuses them into verdicts and writes the CSV tables,
VERDICT.md, REPORT.md and optionally VERDICT.html and verdicts.xlsx.

Example: runqa run -i out -o out --archive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("archive") {
				cfg.Archive.Enabled = archive
			}
			if noHTML {
				cfg.Report.HTML = false
			}
			if noXLSX {
				cfg.Report.XLSX = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runPipeline(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().BoolVar(&archive, "archive", false, "Store verdicts in the history database")
	cmd.Flags().BoolVar(&noHTML, "no-html", false, "Skip VERDICT.html")
	cmd.Flags().BoolVar(&noXLSX, "no-xlsx", false, "Skip verdicts.xlsx")

	return cmd
}

// newService wires the table store, sinks and optional archive. The returned
// closer releases the archive connection.
func newService(ctx context.Context, cfg *config.Config, logger *internal.Logger, withSinks bool) (*app.QAService, func(), error) {
	source := tables.NewStore(cfg.Paths.InputDir, logger)
	opts := []app.Option{
		app.WithWideXLSX(excel.NewDataReader(filepath.Join(cfg.Paths.InputDir, tables.WideXLSXFile), logger)),
	}
	closer := func() {}

	if withSinks {
		sinks := []ports.ReportSink{
			tables.NewWriter(cfg.Paths.OutputDir, logger),
			report.NewWriter(cfg.Paths.OutputDir, cfg.Report.HTML, logger),
		}
		if cfg.Report.XLSX {
			sinks = append(sinks, excel.NewWriter(cfg.Paths.OutputDir, logger))
		}
		opts = append(opts, app.WithSinks(sinks...))

		if cfg.Archive.Enabled {
			store, err := sqlstore.Open(ctx, cfg.Archive.Driver, cfg.Archive.DSN, logger)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, app.WithArchive(store))
			closer = func() {
				if err := store.Close(); err != nil {
					logger.Warn("closing archive: %v", err)
				}
			}
		}
	}
	return app.NewQAService(cfg, source, logger, opts...), closer, nil
}

func runPipeline(ctx context.Context, cfg *config.Config, logger *internal.Logger) error {
	svc, closer, err := newService(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer closer()

	r, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	good, suspect, bad := r.Counts()
	logger.Info("wrote verdicts for %d runs to %s (%d good, %d suspect, %d bad)",
		len(r.RunVerdicts), cfg.Paths.OutputDir, good, suspect, bad)
	return nil
}
