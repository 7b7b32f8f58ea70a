package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "ERROR"))
	err := cmd.Execute()
	return out.String(), err
}

func TestMockAndRun(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	t.Setenv("QA_ARCHIVE_DSN", filepath.Join(t.TempDir(), "history.db"))

	_, err := execute(t, "mock", "-i", in, "-o", out, "--runs", "30", "--run", "--no-xlsx")
	require.NoError(t, err)

	for _, name := range []string{"metrics.conf", "intt_ladder_health.csv", "_stamp.txt"} {
		assert.FileExists(t, filepath.Join(in, name))
	}
	for _, name := range []string{"verdicts.csv", "run_verdicts.csv", "VERDICT.md", "VERDICT.html", "REPORT.md"} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	_, err = os.Stat(filepath.Join(out, "verdicts.xlsx"))
	assert.True(t, os.IsNotExist(err))
}

func TestStageCommands(t *testing.T) {
	in := t.TempDir()
	_, err := execute(t, "mock", "-i", in, "--runs", "30")
	require.NoError(t, err)

	text, err := execute(t, "outliers", "-i", in, "intt_adc_peak")
	require.NoError(t, err)
	assert.Contains(t, text, "intt_adc_peak")
	assert.Contains(t, text, "strong")

	text, err = execute(t, "trend", "-i", in)
	require.NoError(t, err)
	assert.Contains(t, text, "intt_bco_peak")

	text, err = execute(t, "pca", "-i", in)
	require.NoError(t, err)
	assert.Contains(t, text, "PC1")
}

func TestArchiveAndHistory(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	t.Setenv("QA_ARCHIVE_DSN", filepath.Join(t.TempDir(), "history.db"))

	_, err := execute(t, "mock", "-i", in, "-o", out, "--runs", "30")
	require.NoError(t, err)
	_, err = execute(t, "run", "-i", in, "-o", out, "--archive", "--no-html", "--no-xlsx")
	require.NoError(t, err)

	text, err := execute(t, "history", "54017", "--details")
	require.NoError(t, err)
	assert.Contains(t, text, "BAD")
	assert.Contains(t, text, "intt_adc_peak")
}

func TestHistoryRejectsBadRun(t *testing.T) {
	_, err := execute(t, "history", "not-a-run")
	assert.Error(t, err)
}
