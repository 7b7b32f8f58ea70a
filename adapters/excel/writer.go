package excel

import (
	"context"
	"math"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"runqa/internal"
	apperrors "runqa/internal/errors"
	"runqa/internal/verdict"
)

// WorkbookFile is the verdict workbook written into the output directory.
const WorkbookFile = "verdicts.xlsx"

// Writer writes the verdict tables as one workbook, one sheet per table.
type Writer struct {
	dir    string
	logger *internal.Logger
}

// NewWriter creates a workbook writer for dir.
func NewWriter(dir string, logger *internal.Logger) *Writer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Writer{dir: dir, logger: logger.WithComponent("excel")}
}

type sheet struct {
	name   string
	header []string
	rows   [][]interface{}
}

// cell keeps NaN and infinities out of numeric cells.
func cell(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

// WriteReport writes verdicts.xlsx.
func (w *Writer) WriteReport(ctx context.Context, r *verdict.Report) error {
	sheets := []sheet{runSheet(r), verdictSheet(r), healthSheet(r), trendSheet(r)}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return apperrors.IOError("naming sheet", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return apperrors.IOError("creating sheet", err)
		}
		if err := writeSheet(f, s); err != nil {
			return apperrors.IOError("writing sheet "+s.name, err)
		}
	}
	f.SetActiveSheet(0)

	path := filepath.Join(w.dir, WorkbookFile)
	if err := f.SaveAs(path); err != nil {
		return apperrors.IOError("saving "+path, err)
	}
	w.logger.Debug("wrote %s", path)
	return nil
}

func writeSheet(f *excelize.File, s sheet) error {
	for i, h := range s.header {
		name, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(s.name, name, h); err != nil {
			return err
		}
	}
	for r, row := range s.rows {
		name, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(s.name, name, &row); err != nil {
			return err
		}
	}
	return nil
}

func runSheet(r *verdict.Report) sheet {
	s := sheet{name: "RunVerdicts", header: []string{"run", "verdict", "n_good", "n_suspect", "n_bad", "worst_metric", "summary"}}
	for _, rv := range r.RunVerdicts {
		s.rows = append(s.rows, []interface{}{rv.Run, string(rv.Verdict), rv.NGood, rv.NSuspect, rv.NBad, rv.WorstMetric, rv.Summary})
	}
	return s
}

func verdictSheet(r *verdict.Report) sheet {
	s := sheet{name: "Verdicts", header: []string{"run", "metric", "verdict", "severity", "pattern", "cause", "action", "z_local", "value"}}
	for _, v := range r.MetricVerdicts {
		s.rows = append(s.rows, []interface{}{
			v.Run, v.Metric, string(v.Verdict), string(v.Severity), string(v.Pattern),
			strings.Join(v.Causes, "; "), v.Action, cell(v.ZLocal), cell(v.Value),
		})
	}
	return s
}

func healthSheet(r *verdict.Report) sheet {
	s := sheet{name: "MetricHealth", header: []string{"metric", "runs", "flagged", "flag_rate"}}
	for _, h := range r.Health() {
		s.rows = append(s.rows, []interface{}{h.Metric, h.Runs, h.Flagged, h.Rate()})
	}
	return s
}

func trendSheet(r *verdict.Report) sheet {
	s := sheet{name: "Trends", header: []string{"metric", "N", "slope", "eslope", "pval", "cp_run", "dBIC", "interpretation"}}
	for _, m := range r.Analyses {
		t := m.Trend
		s.rows = append(s.rows, []interface{}{
			m.Name, t.N, cell(t.Slope), cell(t.SlopeErr), cell(t.PValue), t.ChangepointRun, cell(t.DeltaBIC),
			t.Interpret(r.TrendParams),
		})
	}
	return s
}
