package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	dv "runqa/domain/verdict"
	"runqa/internal/verdict"
)

// stageCmd analyses the inputs without writing outputs and prints one stage's
// view of the report.
func stageCmd(flags *globalFlags, use, short string, render func(io.Writer, *verdict.Report, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [metric...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := analyze(cmd.Context(), flags)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if err := render(tw, r, args); err != nil {
				return err
			}
			return tw.Flush()
		},
	}
}

func analyze(ctx context.Context, flags *globalFlags) (*verdict.Report, error) {
	cfg, logger, err := flags.load()
	if err != nil {
		return nil, err
	}
	svc, closer, err := newService(ctx, cfg, logger, false)
	if err != nil {
		return nil, err
	}
	defer closer()
	return svc.Analyze(ctx)
}

// selected returns the analyses named in args, or all of them
func selected(r *verdict.Report, args []string) []verdict.MetricAnalysis {
	if len(args) == 0 {
		return r.Analyses
	}
	var out []verdict.MetricAnalysis
	for _, name := range args {
		if m, ok := r.Analysis(name); ok {
			out = append(out, m)
		}
	}
	return out
}

func newOutliersCmd(flags *globalFlags) *cobra.Command {
	return stageCmd(flags, "outliers", "Print flagged robust local outliers", func(w io.Writer, r *verdict.Report, args []string) error {
		fmt.Fprintln(w, "metric\trun\tvalue\tneighbors_median\tz_local\tlevel")
		for _, m := range selected(r, args) {
			for _, st := range m.Outlier.Stats {
				level := ""
				switch {
				case st.Strong:
					level = "strong"
				case st.Weak:
					level = "weak"
				default:
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%.4g\t%.4g\t%.2f\t%s\n", m.Name, st.Run, st.Value, st.NeighborsMedian, st.ZLocal, level)
			}
		}
		return nil
	})
}

func newTrendCmd(flags *globalFlags) *cobra.Command {
	return stageCmd(flags, "trend", "Print the trend and changepoint summary per metric", func(w io.Writer, r *verdict.Report, args []string) error {
		fmt.Fprintln(w, "metric\tN\tslope\tp\tcp_run\tdBIC\tinterpretation")
		for _, m := range selected(r, args) {
			t := m.Trend
			interp := t.Interpret(r.TrendParams)
			if m.TrendOverridden {
				interp += " (override)"
			}
			fmt.Fprintf(w, "%s\t%d\t%.4g\t%.3g\t%d\t%.1f\t%s\n", m.Name, t.N, t.Slope, t.PValue, t.ChangepointRun, t.DeltaBIC, interp)
		}
		return nil
	})
}

func newControlCmd(flags *globalFlags) *cobra.Command {
	return stageCmd(flags, "control", "Print control-chart warnings and QC status", func(w io.Writer, r *verdict.Report, args []string) error {
		fmt.Fprintln(w, "metric\trun\tz_robust\tcusum_pos\tcusum_neg\tchart\tqc\treason")
		for _, m := range selected(r, args) {
			for i, st := range m.Chart.States {
				qc, reason := dv.QCPass, ""
				if i < len(m.QC.Rows) {
					qc, reason = m.QC.Rows[i].Status, m.QC.Rows[i].Reason
				}
				if st.Flag == dv.ChartPass && qc == dv.QCPass {
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%s\t%s\t%s\n", m.Name, st.Run, st.ZRobust, st.CusumPos, st.CusumNeg, st.Flag, qc, reason)
			}
		}
		return nil
	})
}

func newPCACmd(flags *globalFlags) *cobra.Command {
	return stageCmd(flags, "pca", "Print correlated metric pairs, PCA variance and Mahalanobis outliers", func(w io.Writer, r *verdict.Report, _ []string) error {
		if r.Multivar == nil {
			fmt.Fprintf(w, "skipped: %s\n", r.MultivarSkipped)
			return nil
		}
		mv := r.Multivar
		fmt.Fprintf(w, "complete runs\t%d\nmetrics\t%s\n\n", mv.N, strings.Join(mv.Metrics, ", "))

		fmt.Fprintln(w, "metric_a\tmetric_b\tr")
		for _, f := range mv.Flags {
			fmt.Fprintf(w, "%s\t%s\t%.3f\n", f.MetricA, f.MetricB, f.R)
		}

		fmt.Fprintln(w, "\ncomponent\tvariance_%\tcumulative_%")
		for _, c := range mv.Components {
			fmt.Fprintf(w, "PC%d\t%.1f\t%.1f\n", c.Index, c.Percent, c.Cumulative)
		}

		if !mv.MahalanobisEnabled {
			fmt.Fprintf(w, "\nmahalanobis disabled: %s\n", mv.DisabledReason)
			return nil
		}
		fmt.Fprintln(w, "\nrun\tmahalanobis")
		for _, s := range mv.Runs {
			if s.Outlier {
				fmt.Fprintf(w, "%d\t%.2f\n", s.Run, s.Mahalanobis)
			}
		}
		return nil
	})
}
