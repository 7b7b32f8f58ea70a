package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"runqa/internal/profiling"
	"runqa/internal/symptom"
	"runqa/internal/verdict"
)

// stampFields extracts date, run_min and run_max from a key=value stamp.
func stampFields(stamp string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(stamp, "\n") {
		if k, v, ok := strings.Cut(strings.TrimSpace(line), "="); ok {
			out[k] = v
		}
	}
	return out
}

func plural(n int, word string) string {
	if n > 1 {
		return fmt.Sprintf("%d %ss", n, word)
	}
	return fmt.Sprintf("%d %s", n, word)
}

// WriteSummaryMarkdown renders REPORT.md: metric coverage, multivariate
// results and symptom clusters.
func WriteSummaryMarkdown(w io.Writer, r *verdict.Report) error {
	var b strings.Builder

	b.WriteString("# QA Pipeline Summary Report\n\n")
	st := stampFields(r.Stamp)
	if d := st["date"]; d != "" {
		fmt.Fprintf(&b, "**Generated:** %s  \n", d)
	}
	if st["run_min"] != "" && st["run_max"] != "" {
		fmt.Fprintf(&b, "**Run range:** %s -- %s  \n", st["run_min"], st["run_max"])
	}
	if r.InvocationID != "" {
		fmt.Fprintf(&b, "**Invocation:** %s  \n", r.InvocationID)
	}
	fmt.Fprintf(&b, "**Total runs:** %d  \n", len(r.RunVerdicts))
	fmt.Fprintf(&b, "**Metrics in scope:** %d\n\n", len(r.Profiles)+len(r.Skipped))
	b.WriteString("---\n\n")

	writeProfiles(&b, r.Profiles)
	writeMultivar(&b, r)
	writeSymptoms(&b, r.Symptoms)

	if len(r.Skipped) > 0 {
		b.WriteString("\n## Skipped Metrics\n\n")
		for _, s := range r.Skipped {
			fmt.Fprintf(&b, "- **%s**: %s\n", s.Name, s.Reason)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeProfiles(b *strings.Builder, profiles []profiling.MetricProfile) {
	b.WriteString("## Per-Metric Summary\n\n")
	b.WriteString("| Metric | Runs | Finite | NaN | NaN % | Mean | Std | Min | Max | Weak | Strong |\n")
	b.WriteString("|--------|------|--------|-----|-------|------|-----|-----|-----|------|--------|\n")
	for _, p := range profiles {
		fmt.Fprintf(b, "| %s | %d | %d | %d | %.0f%%", p.Metric, p.Total, p.Finite, p.NaN, p.NaNRate())
		if p.Finite > 0 {
			fmt.Fprintf(b, " | %.4f | %.4f | %.4f | %.4f", p.Mean, p.Std, p.Min, p.Max)
		} else {
			b.WriteString(" | -- | -- | -- | --")
		}
		fmt.Fprintf(b, " | %d | %d |\n", p.Weak, p.Strong)
	}

	o := profiling.Summarize(profiles)
	b.WriteString("\n---\n\n")
	b.WriteString("## Health Overview\n\n")
	fmt.Fprintf(b, "- **Clean metrics** (no NaN, no outliers): %d / %d\n", o.Clean, o.Metrics)
	fmt.Fprintf(b, "- **Total NaN entries:** %d\n", o.TotalNaN)
	fmt.Fprintf(b, "- **Total outlier flags:** %d\n", o.TotalOutliers)

	if len(o.Attention) > 0 {
		b.WriteString("\n### Metrics Requiring Attention\n\n")
		for _, p := range o.Attention {
			fmt.Fprintf(b, "- **%s**:", p.Metric)
			if p.NaN > 0 {
				fmt.Fprintf(b, " %s", plural(p.NaN, "NaN run"))
			}
			if p.Strong > 0 {
				fmt.Fprintf(b, " %s", plural(p.Strong, "strong outlier"))
			}
			b.WriteString("\n")
		}
	}
}

func writeMultivar(b *strings.Builder, r *verdict.Report) {
	b.WriteString("\n## Cross-Metric Correlation & PCA\n\n")
	if r.Multivar == nil {
		reason := r.MultivarSkipped
		if reason == "" {
			reason = "not run"
		}
		fmt.Fprintf(b, "Skipped: %s\n", reason)
		return
	}
	res := r.Multivar
	fmt.Fprintf(b, "%d complete runs x %d metrics.\n\n", res.N, len(res.Metrics))

	if len(res.Flags) > 0 {
		b.WriteString("| Metric A | Metric B | R |\n|---|---|---|\n")
		for _, f := range res.Flags {
			fmt.Fprintf(b, "| %s | %s | %.3f |\n", f.MetricA, f.MetricB, f.R)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No strongly correlated metric pairs.\n\n")
	}

	b.WriteString("| Component | Variance % | Cumulative % |\n|---|---|---|\n")
	for _, c := range res.Components {
		fmt.Fprintf(b, "| PC%d | %.2f | %.2f |\n", c.Index, c.Percent, c.Cumulative)
	}
	b.WriteString("\n")

	if !res.MahalanobisEnabled {
		fmt.Fprintf(b, "Mahalanobis outlier step disabled: %s\n", res.DisabledReason)
		return
	}
	outliers := res.OutlierRuns()
	if len(outliers) == 0 {
		b.WriteString("No multivariate outlier runs.\n")
		return
	}
	b.WriteString("Multivariate outlier runs (PC1/PC2 Mahalanobis distance):\n\n")
	for _, s := range res.Runs {
		if s.Outlier && !math.IsNaN(s.Mahalanobis) {
			fmt.Fprintf(b, "- Run %d: %.2f\n", s.Run, s.Mahalanobis)
		}
	}
}

func writeSymptoms(b *strings.Builder, s symptom.Result) {
	b.WriteString("\n## Symptom Clusters\n\n")
	if len(s.Clusters) == 0 || len(s.Runs) == 0 {
		b.WriteString("No symptom data.\n")
		return
	}
	b.WriteString("| Run | " + strings.Join(s.Clusters, " | ") + " | Primary |\n")
	b.WriteString("|-----|" + strings.Repeat("---|", len(s.Clusters)) + "---|\n")
	shown := 0
	for _, rs := range s.Runs {
		labels := make([]string, len(rs.Clusters))
		hit := false
		for i, c := range rs.Clusters {
			labels[i] = fmt.Sprintf("%s (%d)", c.Label, c.Score)
			if c.Label != "none" {
				hit = true
			}
		}
		if !hit {
			continue
		}
		shown++
		fmt.Fprintf(b, "| %d | %s | %s |\n", rs.Run, strings.Join(labels, " | "), rs.Primary)
	}
	if shown == 0 {
		b.WriteString("\nNo run shows a symptom.\n")
	}
}
