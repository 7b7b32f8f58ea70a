package ports

import (
	"context"

	"runqa/domain/series"
	"runqa/internal/multivar"
	"runqa/internal/trend"
	"runqa/internal/verdict"
)

// TableSource provides the pipeline's input tables
type TableSource interface {
	ReadMetricsConf(name string) ([]series.MetricDecl, error)
	LoadPerRun(ctx context.Context, metric string) (series.MetricSeries, int, error)
	LoadSegments(ctx context.Context, metric string) ([]series.SegmentRow, int, error)
	HasFile(name string) bool

	// Optional context tables read as empty when absent
	LoadLadderHealth() (map[int]series.LadderHealth, error)
	LoadThresholds() (map[string]series.Threshold, error)
	LoadTrendOverrides() (map[string]trend.Result, error)
	LoadWideCSV() (multivar.Table, bool, error)
	LoadStamp() (string, error)

	// Snapshot returns the raw input bytes used for fingerprinting
	Snapshot(metricsConf string, decls []series.MetricDecl) (map[string][]byte, error)
}

// WideTableReader reads a pre-built run x metric table
type WideTableReader interface {
	ReadWide() (multivar.Table, error)
}

// ReportSink serializes a finished report
type ReportSink interface {
	WriteReport(ctx context.Context, r *verdict.Report) error
}

// VerdictArchive persists the verdicts of an invocation
type VerdictArchive interface {
	Archive(ctx context.Context, r *verdict.Report) error
}
