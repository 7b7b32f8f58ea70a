package tables

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"runqa/internal"
	apperrors "runqa/internal/errors"
	"runqa/internal/multivar"
	"runqa/internal/verdict"
)

// Writer writes the CSV outputs of a report into one directory.
type Writer struct {
	dir    string
	logger *internal.Logger
}

// NewWriter creates a writer for dir.
func NewWriter(dir string, logger *internal.Logger) *Writer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Writer{dir: dir, logger: logger.WithComponent("tables")}
}

// WriteCSV writes header and rows to name inside the output directory.
func (w *Writer) WriteCSV(name string, header []string, rows [][]string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return apperrors.IOError("creating output directory", err)
	}
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return apperrors.IOError(fmt.Sprintf("creating %s", path), err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return apperrors.IOError(fmt.Sprintf("writing %s", path), err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return apperrors.IOError(fmt.Sprintf("writing %s", path), err)
	}
	w.logger.Debug("wrote %s (%d rows)", path, len(rows))
	return nil
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// num formats a value with up to six significant digits; NaN stays NaN.
func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func itoa(i int) string { return strconv.Itoa(i) }

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteReport writes every CSV table derived from the report.
func (w *Writer) WriteReport(ctx context.Context, r *verdict.Report) error {
	steps := []func(*verdict.Report) error{
		w.writeVerdicts,
		w.writeRunVerdicts,
		w.writePerMetric,
		w.writeConsistency,
		w.writeMultivar,
		w.writeSymptoms,
		w.writeSegmentCV,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(r); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeVerdicts(r *verdict.Report) error {
	rows := make([][]string, 0, len(r.MetricVerdicts))
	for _, v := range r.MetricVerdicts {
		rows = append(rows, []string{
			itoa(v.Run), v.Metric, string(v.Verdict), string(v.Severity), string(v.Pattern),
			strings.Join(v.Causes, "; "), v.Action, fixed(v.ZLocal, 3), fixed(v.Value, 3),
		})
	}
	return w.WriteCSV("verdicts.csv",
		[]string{"run", "metric", "verdict", "severity", "pattern", "cause", "action", "z_local", "value"}, rows)
}

func (w *Writer) writeRunVerdicts(r *verdict.Report) error {
	rows := make([][]string, 0, len(r.RunVerdicts))
	for _, rv := range r.RunVerdicts {
		rows = append(rows, []string{
			itoa(rv.Run), string(rv.Verdict), itoa(rv.NGood), itoa(rv.NSuspect), itoa(rv.NBad),
			rv.WorstMetric, rv.Summary,
		})
	}
	return w.WriteCSV("run_verdicts.csv",
		[]string{"run", "verdict", "n_good", "n_suspect", "n_bad", "worst_metric", "summary"}, rows)
}

func (w *Writer) writePerMetric(r *verdict.Report) error {
	for _, m := range r.Analyses {
		robust := make([][]string, 0, len(m.Outlier.Stats))
		for _, s := range m.Outlier.Stats {
			robust = append(robust, []string{
				itoa(s.Run), num(s.Value), num(s.StatErr), num(s.Entries),
				num(s.NeighborsMedian), num(s.NeighborsMAD), num(s.ZLocal), flag(s.Weak), flag(s.Strong),
			})
		}
		if err := w.WriteCSV("metrics_"+m.Name+"_robust.csv",
			[]string{"run", "value", "stat_err", "entries", "neighbors_median", "neighbors_mad", "z_local", "is_outlier_weak", "is_outlier_strong"},
			robust); err != nil {
			return err
		}

		chart := make([][]string, 0, len(m.Chart.States))
		for _, s := range m.Chart.States {
			chart = append(chart, []string{
				itoa(s.Run), num(s.Value), num(s.ZRobust), flag(s.ShewhartOOC),
				num(s.CusumPos), num(s.CusumNeg), string(s.Flag),
			})
		}
		if err := w.WriteCSV("qc_control_"+m.Name+".csv",
			[]string{"run", "value", "z_robust", "shewhart_ooc", "cusum_pos", "cusum_neg", "flag"}, chart); err != nil {
			return err
		}

		qc := make([][]string, 0, len(m.QC.Rows))
		for _, q := range m.QC.Rows {
			qc = append(qc, []string{itoa(q.Run), num(q.Value), string(q.Status), q.Reason})
		}
		if err := w.WriteCSV("qc_status_"+m.Name+".csv", []string{"run", "value", "status", "reason"}, qc); err != nil {
			return err
		}

		ewma := make([][]string, 0, len(m.Trend.EWMA))
		for _, p := range m.Trend.EWMA {
			ewma = append(ewma, []string{itoa(p.Run), num(p.Value)})
		}
		if err := w.WriteCSV("metrics_"+m.Name+"_ewma.csv", []string{"run", "ewma"}, ewma); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeConsistency(r *verdict.Report) error {
	rows := make([][]string, 0, len(r.Analyses))
	for _, m := range r.Analyses {
		t := m.Trend
		rows = append(rows, []string{
			m.Name, itoa(t.N), num(t.Median), num(t.RobustSigma), num(t.Slope), num(t.SlopeErr),
			num(t.PValue), itoa(t.ChangepointRun), num(t.DeltaBIC),
		})
	}
	return w.WriteCSV(ConsistencyFile,
		[]string{"metric", "N", "median", "robust_sigma", "slope", "eslope", "pval", "cp_run", "dBIC"}, rows)
}

func (w *Writer) writeMultivar(r *verdict.Report) error {
	if len(r.Wide.Metrics) > 0 {
		if err := w.WriteCSV(WideCSVFile, append([]string{"run"}, r.Wide.Metrics...), WideRows(r.Wide)); err != nil {
			return err
		}
	}
	if r.Multivar == nil {
		return nil
	}
	res := r.Multivar

	corr := make([][]string, len(res.Metrics))
	for i, m := range res.Metrics {
		row := []string{m}
		for _, v := range res.R[i] {
			row = append(row, fixed(v, 4))
		}
		corr[i] = row
	}
	if err := w.WriteCSV("correlation_matrix.csv", append([]string{"metric"}, res.Metrics...), corr); err != nil {
		return err
	}

	flags := make([][]string, 0, len(res.Flags))
	for _, f := range res.Flags {
		flags = append(flags, []string{f.MetricA, f.MetricB, fixed(f.R, 4)})
	}
	if err := w.WriteCSV("correlation_flags.csv", []string{"metric_a", "metric_b", "r"}, flags); err != nil {
		return err
	}

	variance := make([][]string, 0, len(res.Components))
	for _, c := range res.Components {
		variance = append(variance, []string{
			fmt.Sprintf("PC%d", c.Index), num(c.Singular), fixed(c.Percent, 2), fixed(c.Cumulative, 2),
		})
	}
	if err := w.WriteCSV("pca_variance.csv", []string{"component", "singular_value", "percent", "cumulative"}, variance); err != nil {
		return err
	}

	header := []string{"run"}
	for _, c := range res.Components {
		header = append(header, fmt.Sprintf("PC%d", c.Index))
	}
	header = append(header, "mahalanobis", "outlier")
	scores := make([][]string, 0, len(res.Runs))
	for _, s := range res.Runs {
		row := []string{itoa(s.Run)}
		for _, v := range s.Scores {
			row = append(row, fixed(v, 4))
		}
		row = append(row, num(s.Mahalanobis), flag(s.Outlier))
		scores = append(scores, row)
	}
	return w.WriteCSV("pca_scores.csv", header, scores)
}

// WideRows formats a wide table body.
func WideRows(t multivar.Table) [][]string {
	rows := make([][]string, len(t.Runs))
	for i, run := range t.Runs {
		row := []string{itoa(run)}
		for _, v := range t.Cells[i] {
			row = append(row, num(v))
		}
		rows[i] = row
	}
	return rows
}

func (w *Writer) writeSymptoms(r *verdict.Report) error {
	s := r.Symptoms
	records := make([][]string, 0, len(s.Records))
	for _, rec := range s.Records {
		records = append(records, []string{itoa(rec.Run), rec.Metric, fixed(rec.Z, 3), string(rec.Level), rec.Cluster})
	}
	if err := w.WriteCSV("symptoms_perrun.csv", []string{"run", "metric", "z", "severity", "clusters"}, records); err != nil {
		return err
	}

	header := []string{"run"}
	header = append(header, s.Clusters...)
	for _, c := range s.Clusters {
		header = append(header, "label_"+c)
	}
	header = append(header, "primary_symptom")
	rows := make([][]string, 0, len(s.Runs))
	for _, rs := range s.Runs {
		row := []string{itoa(rs.Run)}
		for _, c := range rs.Clusters {
			row = append(row, itoa(c.Score))
		}
		for _, c := range rs.Clusters {
			row = append(row, c.Label)
		}
		row = append(row, rs.Primary)
		rows = append(rows, row)
	}
	return w.WriteCSV("causes_per_run.csv", header, rows)
}

func (w *Writer) writeSegmentCV(r *verdict.Report) error {
	for _, cv := range r.SegmentCV {
		rows := make([][]string, len(cv.Points))
		for i, p := range cv.Points {
			rows[i] = []string{itoa(p.Run), num(p.Value), "0"}
		}
		if err := w.WriteCSV(PerRunFile(cv.Name), []string{"run", "value", "error"}, rows); err != nil {
			return err
		}
	}
	return nil
}
