package sqlstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runqa/domain/core"
	dv "runqa/domain/verdict"
	"runqa/internal"
	"runqa/internal/verdict"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(context.Background(), DriverSQLite, dsn, internal.NewLogger(internal.LogLevelError))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(fp string) *verdict.Report {
	f := core.Fingerprint(fp)
	return &verdict.Report{
		Fingerprint:  f,
		InvocationID: core.NewInvocationID(f),
		Metrics:      []string{"a", "b"},
		MetricVerdicts: []dv.MetricVerdict{
			{Run: 100, Metric: "a", Verdict: dv.Good, Severity: dv.SeverityInfo, Pattern: dv.PatternNormal, Causes: []string{"All checks passed"}, Action: "No action needed", ZLocal: math.NaN(), Value: 1},
			{Run: 100, Metric: "b", Verdict: dv.Bad, Severity: dv.SeverityCritical, Pattern: dv.PatternSpike, Causes: []string{"x", "y"}, Action: "Exclude", ZLocal: 5, Value: 9},
			{Run: 101, Metric: "a", Verdict: dv.Good, Severity: dv.SeverityInfo, Pattern: dv.PatternNormal, Causes: []string{"All checks passed"}, Action: "No action needed", ZLocal: 0.1, Value: 1},
		},
		RunVerdicts: []dv.RunVerdict{
			{Run: 100, Verdict: dv.Bad, NGood: 1, NBad: 1, WorstMetric: "b", Summary: "1 good, 0 suspect, 1 bad (worst: b)"},
			{Run: 101, Verdict: dv.Good, NGood: 1, Summary: "1 good, 0 suspect, 0 bad"},
		},
	}
}

func TestArchiveAndHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := testReport("f1")

	require.NoError(t, s.Archive(ctx, r))

	inv, err := s.Invocation(ctx, r.InvocationID.String())
	require.NoError(t, err)
	assert.Equal(t, 100, inv.RunMin)
	assert.Equal(t, 101, inv.RunMax)
	assert.Equal(t, 1, inv.NBad)
	assert.Equal(t, 2, inv.NMetrics)

	hist, err := s.History(ctx, 100)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "BAD", hist[0].Verdict)
	assert.Equal(t, "b", hist[0].WorstMetric)

	flagged, err := s.FlaggedMetrics(ctx, inv.ID, 100)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "b", flagged[0].Metric)
	assert.Equal(t, 5.0, flagged[0].ZLocal.Float64)
}

func TestArchiveIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	calls := 0
	s.now = func() time.Time {
		calls++
		return time.Date(2025, 10, 21, 12, calls, 0, 0, time.UTC)
	}

	require.NoError(t, s.Archive(ctx, testReport("f1")))
	require.NoError(t, s.Archive(ctx, testReport("f1")))
	require.NoError(t, s.Archive(ctx, testReport("f2")))

	var n int
	require.NoError(t, s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM metric_verdicts"))
	assert.Equal(t, 6, n)
	require.NoError(t, s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM invocations"))
	assert.Equal(t, 2, n)

	hist, err := s.History(ctx, 101)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, testReport("f1").InvocationID.String(), hist[0].InvocationID)
	assert.Equal(t, "2025-10-21T12:02:00Z", hist[0].ArchivedAt)
}

func TestInvocationNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Invocation(context.Background(), "missing")
	assert.True(t, core.IsNotFoundError(err))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x", nil)
	assert.Error(t, err)
}

func TestArchiveRequiresInvocationID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.Archive(context.Background(), &verdict.Report{}))
}
