package excel

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	dv "runqa/domain/verdict"
	"runqa/internal"
	"runqa/internal/verdict"
)

func TestReadWide(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"run", "a", "b"},
		{100, 1.5, 2.5},
		{101, 1.6, "NaN"},
	}
	for i, row := range rows {
		name, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("Sheet1", name, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := NewDataReader(path, internal.NewLogger(internal.LogLevelError)).ReadWide()
	require.NoError(t, err)
	assert.Equal(t, []int{100, 101}, tbl.Runs)
	assert.Equal(t, []string{"a", "b"}, tbl.Metrics)
	assert.Equal(t, 1.5, tbl.Cells[0][0])
	assert.True(t, math.IsNaN(tbl.Cells[1][1]))
}

func TestReadWideRejectsOtherFormats(t *testing.T) {
	_, err := NewDataReader("wide.csv", nil).ReadWide()
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	r := &verdict.Report{
		Metrics: []string{"m"},
		MetricVerdicts: []dv.MetricVerdict{
			{Run: 1, Metric: "m", Verdict: dv.Suspect, Severity: dv.SeverityInfo, Pattern: dv.PatternIsolatedOutlier, Causes: []string{"x"}, ZLocal: 2.5, Value: 1},
		},
		RunVerdicts: []dv.RunVerdict{{Run: 1, Verdict: dv.Suspect, NSuspect: 1, WorstMetric: "m", Summary: "0 good, 1 suspect, 0 bad (worst: m)"}},
	}
	require.NoError(t, NewWriter(dir, nil).WriteReport(context.Background(), r))

	f, err := excelize.OpenFile(filepath.Join(dir, WorkbookFile))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"RunVerdicts", "Verdicts", "MetricHealth", "Trends"}, f.GetSheetList())
	v, err := f.GetCellValue("RunVerdicts", "B2")
	require.NoError(t, err)
	assert.Equal(t, "SUSPECT", v)
	v, err = f.GetCellValue("MetricHealth", "D2")
	require.NoError(t, err)
	assert.Equal(t, "100", v)
}
