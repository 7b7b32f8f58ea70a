// Package report renders the human-readable VERDICT.md, REPORT.md and
// VERDICT.html narratives.
package report

import (
	"fmt"
	"io"
	"strings"

	dv "runqa/domain/verdict"
	"runqa/internal/verdict"
)

const causeBriefMax = 60

// briefCause shortens the first cause for the per-run table.
func briefCause(causes []string) string {
	if len(causes) == 0 {
		return ""
	}
	c := causes[0]
	if len(c) > causeBriefMax {
		c = c[:causeBriefMax-3] + "..."
	}
	return c
}

func badge(v dv.Verdict) string {
	if v == dv.Bad {
		return "**BAD**"
	}
	return string(v)
}

// WriteVerdictMarkdown renders VERDICT.md.
func WriteVerdictMarkdown(w io.Writer, r *verdict.Report) error {
	var b strings.Builder

	b.WriteString("# QA Verdict Report\n\n")
	b.WriteString("Automated physics-informed quality assessment.\n\n")
	if r.Stamp != "" {
		b.WriteString("```\n")
		b.WriteString(r.Stamp)
		if !strings.HasSuffix(r.Stamp, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("```\n\n")
	}

	good, suspect, bad := r.Counts()
	b.WriteString("## Summary\n\n")
	b.WriteString("| | Count |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total runs | %d |\n", len(r.RunVerdicts))
	fmt.Fprintf(&b, "| GOOD | %d |\n", good)
	fmt.Fprintf(&b, "| SUSPECT | %d |\n", suspect)
	fmt.Fprintf(&b, "| BAD | %d |\n\n", bad)

	switch {
	case bad == 0 && suspect == 0:
		b.WriteString("**Overall: All runs pass QA. No exclusions recommended.**\n\n")
	case bad > 0:
		fmt.Fprintf(&b, "**Overall: %d run(s) recommended for exclusion from physics analysis.**\n\n", bad)
	default:
		fmt.Fprintf(&b, "**Overall: %d run(s) flagged for review. No exclusions yet.**\n\n", suspect)
	}

	b.WriteString("## Per-Run Verdicts\n\n")
	b.WriteString("| Run | Verdict | Good | Suspect | Bad | Worst Metric |\n")
	b.WriteString("|-----|---------|------|---------|-----|--------------|\n")
	for _, rv := range r.RunVerdicts {
		fmt.Fprintf(&b, "| %d | %s | %d | %d | %d | %s |\n",
			rv.Run, badge(rv.Verdict), rv.NGood, rv.NSuspect, rv.NBad, rv.WorstMetric)
	}
	b.WriteString("\n")

	b.WriteString("## Flagged Runs — Detailed Diagnosis\n\n")
	for _, rv := range r.RunVerdicts {
		if rv.Verdict == dv.Good {
			continue
		}
		writeFlaggedRun(&b, r, rv)
	}

	b.WriteString("## Metric Health Overview\n\n")
	b.WriteString("| Metric | Runs | Flagged | Flag Rate |\n")
	b.WriteString("|--------|------|---------|----------|\n")
	for _, h := range r.Health() {
		fmt.Fprintf(&b, "| %s | %d | %d | %.1f%% |\n", h.Metric, h.Runs, h.Flagged, h.Rate())
	}
	b.WriteString("\n")

	if len(r.Analyses) > 0 {
		b.WriteString("## Trend Analysis\n\n")
		b.WriteString("| Metric | Slope | p-value | Changepoint Run | dBIC | Interpretation |\n")
		b.WriteString("|--------|-------|---------|-----------------|------|----------------|\n")
		for _, m := range r.Analyses {
			t := m.Trend
			cp := "—"
			if t.ChangepointRun > 0 {
				cp = fmt.Sprintf("%d", t.ChangepointRun)
			}
			fmt.Fprintf(&b, "| %s | %.2e | %.4f | %s | %.1f | %s |\n",
				m.Name, t.Slope, t.PValue, cp, t.DeltaBIC, t.Interpret(r.TrendParams))
		}
		b.WriteString("\n")
	}

	if len(r.Skipped) > 0 {
		b.WriteString("## Skipped Metrics\n\n")
		for _, s := range r.Skipped {
			fmt.Fprintf(&b, "- **%s**: %s\n", s.Name, s.Reason)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	b.WriteString("*Generated by runqa: physics-informed automated QA*\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func writeFlaggedRun(b *strings.Builder, r *verdict.Report, rv dv.RunVerdict) {
	fmt.Fprintf(b, "### Run %d — %s\n\n", rv.Run, rv.Verdict)

	if h, ok := r.Ladder[rv.Run]; ok && (h.DeadCount > 0 || h.HotCount > 0) {
		fmt.Fprintf(b, "**INTT ladder health**: %d dead, %d hot (of %d total)\n\n",
			h.DeadCount, h.HotCount, h.TotalLadders)
	}

	var flagged []dv.MetricVerdict
	for _, v := range r.VerdictsForRun(rv.Run) {
		if v.Verdict != dv.Good {
			flagged = append(flagged, v)
		}
	}

	b.WriteString("| Metric | Value | z | Verdict | Pattern | Diagnosis |\n")
	b.WriteString("|--------|-------|---|---------|---------|----------|\n")
	for _, v := range flagged {
		fmt.Fprintf(b, "| %s | %.3f | %.3f | %s | %s | %s |\n",
			v.Metric, v.Value, v.ZLocal, v.Verdict, v.Pattern, briefCause(v.Causes))
	}
	b.WriteString("\n")

	for _, v := range flagged {
		fmt.Fprintf(b, "**%s** (%s):\n", v.Metric, v.Severity)
		fmt.Fprintf(b, "- Pattern: %s\n", v.Pattern)
		b.WriteString("- Possible causes:\n")
		for _, c := range v.Causes {
			fmt.Fprintf(b, "  - %s\n", c)
		}
		fmt.Fprintf(b, "- Recommended action: %s\n\n", v.Action)
	}
	b.WriteString("---\n\n")
}
