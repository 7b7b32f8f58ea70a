package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"runqa/adapters/tables"
	"runqa/domain/core"
	"runqa/domain/series"
	"runqa/internal"
	"runqa/internal/config"
	"runqa/internal/control"
	apperrors "runqa/internal/errors"
	"runqa/internal/multivar"
	"runqa/internal/outlier"
	"runqa/internal/profiling"
	"runqa/internal/segments"
	"runqa/internal/symptom"
	"runqa/internal/trend"
	"runqa/internal/verdict"
	"runqa/ports"
)

// QAService runs one pipeline invocation: load, per-metric checks, fusion,
// cross-metric analysis and serialization.
type QAService struct {
	cfg      *config.Config
	source   ports.TableSource
	sinks    []ports.ReportSink
	archive  ports.VerdictArchive
	wideXLSX ports.WideTableReader
	logger   *internal.Logger
}

// Option configures a QAService
type Option func(*QAService)

// WithSinks appends report sinks, called in order after the report is assembled
func WithSinks(sinks ...ports.ReportSink) Option {
	return func(s *QAService) { s.sinks = append(s.sinks, sinks...) }
}

// WithArchive stores verdicts after every sink succeeded
func WithArchive(a ports.VerdictArchive) Option {
	return func(s *QAService) { s.archive = a }
}

// WithWideXLSX sets the reader used when no wide CSV is present
func WithWideXLSX(r ports.WideTableReader) Option {
	return func(s *QAService) { s.wideXLSX = r }
}

// NewQAService creates a QA service
func NewQAService(cfg *config.Config, source ports.TableSource, logger *internal.Logger, opts ...Option) *QAService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &QAService{
		cfg:    cfg,
		source: source,
		logger: logger.WithComponent("qa"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inputs are the context tables shared by every metric
type Inputs struct {
	Decls       []series.MetricDecl
	Thresholds  map[string]series.Threshold
	Ladder      map[int]series.LadderHealth
	Overrides   map[string]trend.Result
	Stamp       string
	Clusters    map[string][]string
	Fingerprint core.Fingerprint
}

// metricSlot is written by exactly one worker
type metricSlot struct {
	analysis *verdict.MetricAnalysis
	cv       *series.MetricSeries
	skipped  *verdict.SkippedMetric
}

// Run executes the whole pipeline and hands the report to every sink
func (s *QAService) Run(ctx context.Context) (*verdict.Report, error) {
	r, err := s.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	for _, sink := range s.sinks {
		if err := sink.WriteReport(ctx, r); err != nil {
			return nil, apperrors.Wrap(err, "writing report")
		}
	}
	if s.archive != nil {
		if err := s.archive.Archive(ctx, r); err != nil {
			return nil, apperrors.Wrap(err, "archiving verdicts")
		}
	}

	good, suspect, bad := r.Counts()
	s.logger.Info("invocation %s: %d metrics, %d runs (%d good, %d suspect, %d bad), %d skipped",
		r.InvocationID, len(r.Metrics), len(r.RunVerdicts), good, suspect, bad, len(r.Skipped))
	return r, nil
}

// Analyze builds the report without serializing it
func (s *QAService) Analyze(ctx context.Context) (*verdict.Report, error) {
	in, err := s.LoadInputs(ctx)
	if err != nil {
		return nil, err
	}

	slots, err := s.analyzeMetrics(ctx, in)
	if err != nil {
		return nil, err
	}

	r := &verdict.Report{
		InvocationID: core.NewInvocationID(in.Fingerprint),
		Fingerprint:  in.Fingerprint,
		Stamp:        in.Stamp,
		TrendParams:  trendParams(s.cfg),
		Ladder:       in.Ladder,
	}
	profiler := profiling.NewDataProfiler()
	for _, slot := range slots {
		switch {
		case slot.skipped != nil:
			r.Skipped = append(r.Skipped, *slot.skipped)
		case slot.analysis != nil:
			r.Analyses = append(r.Analyses, *slot.analysis)
			r.Profiles = append(r.Profiles, profiler.ProfileMetric(slot.analysis.Series, slot.analysis.Outlier))
			if slot.cv != nil {
				r.SegmentCV = append(r.SegmentCV, *slot.cv)
			}
		}
	}

	verdict.NewAggregator(patternParams(s.cfg)).Assemble(r)

	if err := s.crossMetric(ctx, r); err != nil {
		return nil, err
	}
	r.Symptoms = symptom.NewEngine(symptomParams(s.cfg, in.Clusters)).Evaluate(symptomColumns(r.Analyses))
	return r, nil
}

// LoadInputs reads metrics.conf and the optional context tables, and
// fingerprints the inputs together with the verdict-relevant configuration.
func (s *QAService) LoadInputs(ctx context.Context) (*Inputs, error) {
	decls, err := s.source.ReadMetricsConf(s.cfg.Paths.MetricsConf)
	if err != nil {
		return nil, apperrors.Wrap(err, "reading metrics.conf")
	}
	if len(decls) == 0 {
		return nil, apperrors.ConfigInvalid(fmt.Sprintf("%s declares no metrics", s.cfg.Paths.MetricsConf))
	}

	in := &Inputs{Decls: decls, Thresholds: make(map[string]series.Threshold)}
	for _, d := range decls {
		if d.HasRange {
			in.Thresholds[d.Name] = series.Threshold{Metric: d.Name, Lo: d.Lo, Hi: d.Hi}
		}
	}
	th, err := s.source.LoadThresholds()
	if err != nil {
		return nil, apperrors.Wrap(err, "reading thresholds")
	}
	for name, t := range th {
		in.Thresholds[name] = t
	}

	if in.Ladder, err = s.source.LoadLadderHealth(); err != nil {
		return nil, apperrors.Wrap(err, "reading ladder health")
	}
	if in.Overrides, err = s.source.LoadTrendOverrides(); err != nil {
		return nil, apperrors.Wrap(err, "reading trend overrides")
	}
	if in.Stamp, err = s.source.LoadStamp(); err != nil {
		return nil, apperrors.Wrap(err, "reading stamp")
	}

	files, err := s.source.Snapshot(s.cfg.Paths.MetricsConf, decls)
	if err != nil {
		return nil, apperrors.Wrap(err, "snapshotting inputs")
	}

	in.Clusters = s.cfg.Symptom.Clusters
	if path := s.cfg.Symptom.ClusterMap; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.IOError(fmt.Sprintf("reading cluster map %s", path), err)
		}
		if in.Clusters, err = symptom.LoadClusterMap(bytes.NewReader(data)); err != nil {
			return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, err)
		}
		files["cluster_map:"+filepath.Base(path)] = data
	}

	in.Fingerprint = core.ComputeFingerprint(
		core.ComputeInputHash(files),
		core.ComputeConfigHash(s.cfg.Params()),
	)
	s.logger.Debug("fingerprint %s over %d input files", core.Hash(in.Fingerprint).Short(), len(files))
	return in, ctx.Err()
}

func (s *QAService) analyzeMetrics(ctx context.Context, in *Inputs) ([]metricSlot, error) {
	scorer := outlier.NewScorer(outlierParams(s.cfg))
	analyzer := trend.NewAnalyzer(trendParams(s.cfg))
	charts := control.NewEngine(controlParams(s.cfg))

	slots := make([]metricSlot, len(in.Decls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Pipeline.Workers)

	for i, decl := range in.Decls {
		i, decl := i, decl
		g.Go(func() error {
			ms, cv, err := s.loadSeries(gctx, decl)
			if err != nil {
				if apperrors.GetCode(err) == apperrors.CodeMissingInput || core.IsMissingInput(err) {
					s.logger.Warn("skipping metric %s: %v", decl.Name, err)
					slots[i].skipped = &verdict.SkippedMetric{Name: decl.Name, Reason: "missing input"}
					return nil
				}
				return apperrors.Wrapf(err, "loading metric %s", decl.Name)
			}

			m := verdict.MetricAnalysis{
				Name:    decl.Name,
				Series:  ms,
				Outlier: scorer.Score(ms),
				Trend:   analyzer.Analyze(ms),
				Chart:   charts.Run(ms),
			}
			if o, ok := in.Overrides[decl.Name]; ok {
				o.Metric = decl.Name
				o.EWMA = m.Trend.EWMA
				m.Trend = o
				m.TrendOverridden = true
			}
			var th *series.Threshold
			if t, ok := in.Thresholds[decl.Name]; ok {
				th = &t
			}
			m.QC = charts.Status(ms, th)

			s.logger.Debug("metric %s: %d runs, %d weak, %d strong, %d chart warnings",
				decl.Name, ms.Len(), m.Outlier.CountWeak(), m.Outlier.CountStrong(), m.Chart.WarnCount())
			slots[i].analysis = &m
			slots[i].cv = cv
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

// loadSeries prefers the per-run table and falls back to aggregating the
// per-segment table. The segment CV series is only returned for the fallback.
func (s *QAService) loadSeries(ctx context.Context, decl series.MetricDecl) (series.MetricSeries, *series.MetricSeries, error) {
	ms, dropped, err := s.source.LoadPerRun(ctx, decl.Name)
	if err == nil {
		if dropped > 0 {
			s.logger.Info("metric %s: dropped %d malformed rows", decl.Name, dropped)
		}
		return ms, nil, nil
	}
	if !core.IsMissingInput(err) || !s.source.HasFile(tables.SegmentFile(decl.Name)) {
		return series.MetricSeries{}, nil, err
	}

	rows, dropped, err := s.source.LoadSegments(ctx, decl.Name)
	if err != nil {
		return series.MetricSeries{}, nil, err
	}
	if dropped > 0 {
		s.logger.Info("metric %s: dropped %d malformed segment rows", decl.Name, dropped)
	}
	agg := segments.Aggregate(decl.Name, decl.Method, rows)
	s.logger.Debug("metric %s: aggregated %d segments into %d runs", decl.Name, len(rows), agg.Series.Len())
	return agg.Series, &agg.CV, nil
}

// crossMetric builds the wide table and runs correlation and PCA. Too few
// complete rows only records why the step was skipped.
func (s *QAService) crossMetric(ctx context.Context, r *verdict.Report) error {
	wide, err := s.wideTable(r)
	if err != nil {
		return err
	}
	r.Wide = wide

	res, err := multivar.NewEngine(multivarParams(s.cfg)).Analyze(wide.Complete())
	switch {
	case err == nil:
		r.Multivar = &res
		if !res.MahalanobisEnabled {
			s.logger.Info("mahalanobis disabled: %s", res.DisabledReason)
		}
	case core.IsSoftFailure(err):
		r.MultivarSkipped = err.Error()
		s.logger.Info("correlation/PCA skipped: %v", err)
	default:
		return apperrors.Wrap(err, "cross-metric analysis")
	}
	return ctx.Err()
}

func (s *QAService) wideTable(r *verdict.Report) (multivar.Table, error) {
	t, ok, err := s.source.LoadWideCSV()
	if err != nil {
		return multivar.Table{}, err
	}
	if ok {
		s.logger.Debug("using %s", tables.WideCSVFile)
		return t, nil
	}
	if s.wideXLSX != nil && s.source.HasFile(tables.WideXLSXFile) {
		t, err := s.wideXLSX.ReadWide()
		if err != nil {
			return multivar.Table{}, apperrors.Wrap(err, "reading wide workbook")
		}
		s.logger.Debug("using %s", tables.WideXLSXFile)
		return t, nil
	}

	all := make([]series.MetricSeries, len(r.Analyses))
	for i, m := range r.Analyses {
		all[i] = m.Series
	}
	return multivar.BuildTable(all), nil
}

func symptomColumns(analyses []verdict.MetricAnalysis) []symptom.Column {
	cols := make([]symptom.Column, len(analyses))
	for i, m := range analyses {
		z := make(map[int]float64, len(m.Outlier.Stats))
		for _, st := range m.Outlier.Stats {
			z[st.Run] = st.ZLocal
		}
		cols[i] = symptom.Column{Metric: m.Name, Z: z}
	}
	return cols
}
