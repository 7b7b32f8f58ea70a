// Package tables reads the pipeline's CSV inputs and writes its CSV outputs.
package tables

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"runqa/domain/core"
	"runqa/domain/series"
	"runqa/internal"
	apperrors "runqa/internal/errors"
	"runqa/internal/multivar"
	"runqa/internal/trend"
)

// Input file names inside the input directory.
const (
	LadderHealthFile = "intt_ladder_health.csv"
	ThresholdsFile   = "thresholds.csv"
	ConsistencyFile  = "consistency_summary.csv"
	WideCSVFile      = "metrics_perrun_wide.csv"
	WideXLSXFile     = "metrics_perrun_wide.xlsx"
	StampFile        = "_stamp.txt"
)

// PerRunFile returns the per-run table name of a metric.
func PerRunFile(metric string) string { return "metrics_" + metric + "_perrun.csv" }

// SegmentFile returns the per-segment table name of a metric.
func SegmentFile(metric string) string { return "metrics_" + metric + ".csv" }

// Store reads input tables from one directory. Missing optional tables read
// as empty; missing per-metric tables return a MissingInput error.
type Store struct {
	dir    string
	logger *internal.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, logger *internal.Logger) *Store {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Store{dir: dir, logger: logger.WithComponent("tables")}
}

// Dir returns the input directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

// readRecords reads a comma separated file with a variable field count.
// Blank lines and lines starting with '#' are skipped.
func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		out = append(out, rec)
	}
	return out, nil
}

func openErr(metric, path string, err error) error {
	if os.IsNotExist(err) {
		return apperrors.MissingInput(path, core.NewMissingInputError(metric, path))
	}
	return apperrors.IOError(fmt.Sprintf("reading %s", path), err)
}

// isHeader reports a first record whose leading field is not a run number.
func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.Atoi(rec[0])
	return err != nil
}

// parseFloat accepts NaN/inf sentinels; an empty cell is NaN.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func (s *Store) malformed(path string, line int, reason string) {
	s.logger.Debug("%v", core.NewMalformedRowError(path, line, reason))
}

// ReadMetricsConf parses metrics.conf: name, histogram, method[, lo, hi].
// Later duplicates of a name are ignored.
func (s *Store) ReadMetricsConf(name string) ([]series.MetricDecl, error) {
	path := s.path(name)
	recs, err := readRecords(path)
	if err != nil {
		return nil, openErr("metrics.conf", path, err)
	}

	seen := make(map[string]bool)
	var decls []series.MetricDecl
	for i, rec := range recs {
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		d := series.MetricDecl{Name: rec[0]}
		if seen[d.Name] {
			s.logger.Debug("duplicate metric %s in %s ignored", d.Name, path)
			continue
		}
		if len(rec) > 1 {
			d.Histogram = rec[1]
		}
		if len(rec) > 2 {
			d.Method = rec[2]
		}
		if len(rec) > 4 {
			lo, errLo := parseFloat(rec[3])
			hi, errHi := parseFloat(rec[4])
			if errLo != nil || errHi != nil {
				s.malformed(path, i+1, "bad threshold range")
			} else {
				d.Lo, d.Hi, d.HasRange = bound(lo, math.Inf(-1)), bound(hi, math.Inf(1)), true
			}
		}
		seen[d.Name] = true
		decls = append(decls, d)
	}
	return decls, nil
}

func bound(v, unbounded float64) float64 {
	if math.IsNaN(v) {
		return unbounded
	}
	return v
}

// LoadPerRun reads metrics_<name>_perrun.csv. The returned count is the
// number of dropped rows, duplicates included.
func (s *Store) LoadPerRun(ctx context.Context, metric string) (series.MetricSeries, int, error) {
	path := s.path(PerRunFile(metric))
	recs, err := readRecords(path)
	if err != nil {
		return series.MetricSeries{}, 0, openErr(metric, path, err)
	}

	bad := 0
	var points []series.Point
	for i, rec := range recs {
		if i == 0 && isHeader(rec) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return series.MetricSeries{}, 0, err
		}
		p, reason := parsePoint(rec)
		if reason != "" {
			bad++
			s.malformed(path, i+1, reason)
			continue
		}
		points = append(points, p)
	}
	ms, dup := series.NewMetricSeries(metric, points)
	if dup > 0 {
		s.logger.Debug("%s: %d duplicate runs dropped", path, dup)
	}
	return ms, bad + dup, nil
}

func parsePoint(rec []string) (series.Point, string) {
	if len(rec) < 2 {
		return series.Point{}, "too few fields"
	}
	run, err := strconv.Atoi(rec[0])
	if err != nil {
		return series.Point{}, "bad run number"
	}
	p := series.Point{Run: run, StatErr: math.NaN(), Weight: 1}
	if p.Value, err = parseFloat(rec[1]); err != nil {
		return series.Point{}, "bad value"
	}
	if len(rec) > 2 {
		if p.StatErr, err = parseFloat(rec[2]); err != nil {
			return series.Point{}, "bad stat_err"
		}
	}
	if len(rec) > 3 {
		if p.Weight, err = parseFloat(rec[3]); err != nil {
			return series.Point{}, "bad entries"
		}
	}
	return p, ""
}

// LoadSegments reads metrics_<name>.csv: run,segment,file,value,error[,weight].
func (s *Store) LoadSegments(ctx context.Context, metric string) ([]series.SegmentRow, int, error) {
	path := s.path(SegmentFile(metric))
	recs, err := readRecords(path)
	if err != nil {
		return nil, 0, openErr(metric, path, err)
	}

	bad := 0
	var rows []series.SegmentRow
	for i, rec := range recs {
		if i == 0 && isHeader(rec) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		row, reason := parseSegment(rec)
		if reason != "" {
			bad++
			s.malformed(path, i+1, reason)
			continue
		}
		rows = append(rows, row)
	}
	return rows, bad, nil
}

func parseSegment(rec []string) (series.SegmentRow, string) {
	if len(rec) < 5 {
		return series.SegmentRow{}, "too few fields"
	}
	run, err := strconv.Atoi(rec[0])
	if err != nil {
		return series.SegmentRow{}, "bad run number"
	}
	seg, err := strconv.Atoi(rec[1])
	if err != nil {
		return series.SegmentRow{}, "bad segment"
	}
	row := series.SegmentRow{Run: run, Segment: seg, File: rec[2], Weight: math.NaN()}
	if row.Value, err = parseFloat(rec[3]); err != nil {
		return series.SegmentRow{}, "bad value"
	}
	if row.Error, err = parseFloat(rec[4]); err != nil {
		return series.SegmentRow{}, "bad error"
	}
	if len(rec) > 5 {
		if row.Weight, err = parseFloat(rec[5]); err != nil {
			return series.SegmentRow{}, "bad weight"
		}
	}
	return row, ""
}

// HasFile reports whether a table exists in the input directory.
func (s *Store) HasFile(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// LoadLadderHealth reads the optional ladder health table keyed by run.
func (s *Store) LoadLadderHealth() (map[int]series.LadderHealth, error) {
	out := make(map[int]series.LadderHealth)
	path := s.path(LadderHealthFile)
	recs, err := readRecords(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, apperrors.IOError("reading ladder health", err)
	}
	for i, rec := range recs {
		if i == 0 && isHeader(rec) {
			continue
		}
		if len(rec) < 3 {
			s.malformed(path, i+1, "too few fields")
			continue
		}
		run, e1 := strconv.Atoi(rec[0])
		dead, e2 := strconv.Atoi(rec[1])
		hot, e3 := strconv.Atoi(rec[2])
		if e1 != nil || e2 != nil || e3 != nil {
			s.malformed(path, i+1, "bad integer field")
			continue
		}
		h := series.LadderHealth{Run: run, DeadCount: dead, HotCount: hot, Median: math.NaN(), TotalLadders: series.DefaultTotalLadders}
		if len(rec) > 3 {
			if v, err := parseFloat(rec[3]); err == nil {
				h.Median = v
			}
		}
		if len(rec) > 4 && rec[4] != "" {
			if n, err := strconv.Atoi(rec[4]); err == nil && n > 0 {
				h.TotalLadders = n
			}
		}
		out[run] = h
	}
	return out, nil
}

// LoadThresholds reads the optional metric,lo,hi table. Empty bounds are
// unbounded.
func (s *Store) LoadThresholds() (map[string]series.Threshold, error) {
	out := make(map[string]series.Threshold)
	path := s.path(ThresholdsFile)
	recs, err := readRecords(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, apperrors.IOError("reading thresholds", err)
	}
	for i, rec := range recs {
		if len(rec) < 3 || (i == 0 && rec[0] == "metric") {
			continue
		}
		lo, e1 := parseFloat(rec[1])
		hi, e2 := parseFloat(rec[2])
		if e1 != nil || e2 != nil {
			s.malformed(path, i+1, "bad bound")
			continue
		}
		out[rec[0]] = series.Threshold{Metric: rec[0], Lo: bound(lo, math.Inf(-1)), Hi: bound(hi, math.Inf(1))}
	}
	return out, nil
}

// LoadTrendOverrides reads an externally supplied consistency summary:
// metric,N,median,robust_sigma,slope,eslope,pval,cp_run,dBIC.
func (s *Store) LoadTrendOverrides() (map[string]trend.Result, error) {
	out := make(map[string]trend.Result)
	path := s.path(ConsistencyFile)
	recs, err := readRecords(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, apperrors.IOError("reading consistency summary", err)
	}
	for i, rec := range recs {
		if len(rec) < 9 || (i == 0 && rec[0] == "metric") {
			continue
		}
		n, e0 := strconv.Atoi(rec[1])
		cp, e1 := strconv.Atoi(rec[7])
		var f [6]float64
		bad := e0 != nil || e1 != nil
		for j, idx := range []int{2, 3, 4, 5, 6, 8} {
			v, err := parseFloat(rec[idx])
			if err != nil {
				bad = true
			}
			f[j] = v
		}
		if bad {
			s.malformed(path, i+1, "bad numeric field")
			continue
		}
		out[rec[0]] = trend.Result{
			Metric: rec[0], N: n, Median: f[0], RobustSigma: f[1],
			Slope: f[2], SlopeErr: f[3], PValue: f[4], ChangepointRun: cp, DeltaBIC: f[5],
		}
	}
	return out, nil
}

// LoadWideCSV reads a pre-built run x metric table. The first column is
// the run; unparseable cells are NaN.
func (s *Store) LoadWideCSV() (multivar.Table, bool, error) {
	path := s.path(WideCSVFile)
	recs, err := readRecords(path)
	if os.IsNotExist(err) {
		return multivar.Table{}, false, nil
	}
	if err != nil {
		return multivar.Table{}, false, apperrors.IOError("reading wide table", err)
	}
	t, err := WideFromRows(recs)
	if err != nil {
		return multivar.Table{}, false, apperrors.Wrapf(err, "parsing %s", path)
	}
	return t, true, nil
}

// WideFromRows converts header + rows into a Table. Rows with a bad run
// number are dropped.
func WideFromRows(rows [][]string) (multivar.Table, error) {
	if len(rows) == 0 || len(rows[0]) < 2 {
		return multivar.Table{}, apperrors.InvalidInput("wide table needs a header with run and at least one metric")
	}
	t := multivar.Table{Metrics: append([]string(nil), rows[0][1:]...)}
	for _, rec := range rows[1:] {
		if len(rec) == 0 {
			continue
		}
		run, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			continue
		}
		cells := make([]float64, len(t.Metrics))
		for j := range cells {
			cells[j] = math.NaN()
			if j+1 < len(rec) {
				if v, err := parseFloat(strings.TrimSpace(rec[j+1])); err == nil {
					cells[j] = v
				}
			}
		}
		t.Runs = append(t.Runs, run)
		t.Cells = append(t.Cells, cells)
	}
	return t, nil
}

// LoadStamp returns the optional provenance stamp verbatim.
func (s *Store) LoadStamp() (string, error) {
	f, err := os.Open(s.path(StampFile))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.IOError("reading stamp", err)
	}
	defer f.Close()

	var b strings.Builder
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		b.WriteString(sc.Text())
		b.WriteByte('\n')
	}
	return b.String(), sc.Err()
}

// Snapshot returns the bytes of every existing input relevant to the given
// metrics, keyed by file name, for fingerprinting.
func (s *Store) Snapshot(metricsConf string, decls []series.MetricDecl) (map[string][]byte, error) {
	names := []string{metricsConf, LadderHealthFile, ThresholdsFile, ConsistencyFile, WideCSVFile, WideXLSXFile, StampFile}
	for _, d := range decls {
		names = append(names, PerRunFile(d.Name), SegmentFile(d.Name))
	}
	out := make(map[string][]byte, len(names))
	for _, n := range names {
		data, err := os.ReadFile(s.path(n))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, apperrors.IOError(fmt.Sprintf("reading %s", n), err)
		}
		out[filepath.Base(n)] = data
	}
	return out, nil
}
