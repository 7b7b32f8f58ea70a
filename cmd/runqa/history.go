package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"runqa/adapters/sqlstore"
)

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "history [run]",
		Short: "List archived verdicts of a run across invocations",
		Long: `History reads the verdict archive (QA_ARCHIVE_DRIVER / QA_ARCHIVE_DSN)
and prints every archived verdict of the run, oldest first.

Example: runqa history 54017 --details`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid run number %q: %w", args[0], err)
			}
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}

			store, err := sqlstore.Open(cmd.Context(), cfg.Archive.Driver, cfg.Archive.DSN, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.History(cmd.Context(), run)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if len(entries) == 0 {
				fmt.Fprintf(tw, "run %d has no archived verdicts\n", run)
				return tw.Flush()
			}

			fmt.Fprintln(tw, "archived_at\tinvocation\tverdict\tgood\tsuspect\tbad\tsummary")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", e.ArchivedAt, e.InvocationID, e.Verdict, e.NGood, e.NSuspect, e.NBad, e.Summary)
				if !details {
					continue
				}
				flagged, err := store.FlaggedMetrics(cmd.Context(), e.InvocationID, run)
				if err != nil {
					return err
				}
				for _, f := range flagged {
					z := "NaN"
					if f.ZLocal.Valid {
						z = strconv.FormatFloat(f.ZLocal.Float64, 'f', 2, 64)
					}
					fmt.Fprintf(tw, "\t  %s\t%s\t%s\t%s\tz=%s\t%s\n", f.Metric, f.Verdict, f.Severity, f.Pattern, z, f.Action)
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "Also list the flagged metrics of each invocation")

	return cmd
}
