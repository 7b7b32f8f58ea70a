package testkit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"runqa/adapters/tables"
	"runqa/domain/series"
	"runqa/internal"
	apperrors "runqa/internal/errors"
)

// MockOptions controls which optional tables WriteMockInputs lays out
type MockOptions struct {
	// SegmentMetrics are written as per-segment tables instead of per-run ones
	SegmentMetrics map[string]int
	// Thresholds are declared as metrics.conf ranges
	Thresholds map[string]series.Threshold
	// BadLadderRuns get ten dead ladders in the health table
	BadLadderRuns []int
	Stamp         string
}

// WriteMockInputs writes metrics.conf and one table per series into dir,
// plus a ladder health table covering every run.
func (g *RunGenerator) WriteMockInputs(dir string, all []series.MetricSeries, opts MockOptions, logger *internal.Logger) error {
	w := tables.NewWriter(dir, logger)

	conf := "# name, histogram, method[, lo, hi]\n"
	for _, s := range all {
		line := fmt.Sprintf("%s, h_%s, mean", s.Name, s.Name)
		if th, ok := opts.Thresholds[s.Name]; ok {
			line += ", " + bound(th.Lo) + ", " + bound(th.Hi)
		}
		conf += line + "\n"
	}
	if err := writeText(dir, "metrics.conf", conf); err != nil {
		return err
	}

	runSet := make(map[int]bool)
	for _, s := range all {
		for _, r := range s.Runs() {
			runSet[r] = true
		}
		if n, ok := opts.SegmentMetrics[s.Name]; ok {
			if err := writeSegments(w, s.Name, g.Segments(s, n)); err != nil {
				return err
			}
			continue
		}
		if err := writePerRun(w, s); err != nil {
			return err
		}
	}

	if err := writeLadder(w, runSet, opts.BadLadderRuns); err != nil {
		return err
	}
	if opts.Stamp != "" {
		return writeText(dir, tables.StampFile, opts.Stamp)
	}
	return nil
}

func bound(v float64) string {
	if series.IsFinite(v) {
		return ff(v)
	}
	return ""
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func writeText(dir, name, content string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.IOError("creating mock input directory", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return apperrors.IOError(fmt.Sprintf("writing %s", name), err)
	}
	return nil
}

func writePerRun(w *tables.Writer, s series.MetricSeries) error {
	rows := make([][]string, len(s.Points))
	for i, p := range s.Points {
		rows[i] = []string{strconv.Itoa(p.Run), ff(p.Value), ff(p.StatErr), ff(p.Weight)}
	}
	return w.WriteCSV(tables.PerRunFile(s.Name), []string{"run", "value", "stat_err", "entries"}, rows)
}

func writeSegments(w *tables.Writer, metric string, segs []series.SegmentRow) error {
	rows := make([][]string, len(segs))
	for i, s := range segs {
		rows[i] = []string{strconv.Itoa(s.Run), strconv.Itoa(s.Segment), s.File, ff(s.Value), ff(s.Error), ff(s.Weight)}
	}
	return w.WriteCSV(tables.SegmentFile(metric), []string{"run", "segment", "file", "value", "error", "weight"}, rows)
}

func writeLadder(w *tables.Writer, runSet map[int]bool, bad []int) error {
	isBad := make(map[int]bool, len(bad))
	for _, r := range bad {
		isBad[r] = true
	}
	runs := make([]int, 0, len(runSet))
	for r := range runSet {
		runs = append(runs, r)
	}
	sort.Ints(runs)

	rows := make([][]string, len(runs))
	for i, r := range runs {
		dead := 0
		if isBad[r] {
			dead = 10
		}
		rows[i] = []string{strconv.Itoa(r), strconv.Itoa(dead), "0", "1.0", strconv.Itoa(series.DefaultTotalLadders)}
	}
	return w.WriteCSV(tables.LadderHealthFile, []string{"run", "dead_count", "hot_count", "median", "total_ladders"}, rows)
}
