package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"runqa/internal"
	apperrors "runqa/internal/errors"
	"runqa/internal/verdict"
)

// Output file names.
const (
	VerdictMarkdown = "VERDICT.md"
	VerdictHTML     = "VERDICT.html"
	SummaryMarkdown = "REPORT.md"
)

// Writer writes the narrative reports into one directory.
type Writer struct {
	dir    string
	html   bool
	logger *internal.Logger
}

// NewWriter creates a narrative writer. withHTML adds VERDICT.html.
func NewWriter(dir string, withHTML bool, logger *internal.Logger) *Writer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Writer{dir: dir, html: withHTML, logger: logger.WithComponent("report")}
}

// WriteReport writes VERDICT.md, REPORT.md and optionally VERDICT.html.
func (w *Writer) WriteReport(ctx context.Context, r *verdict.Report) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return apperrors.IOError("creating output directory", err)
	}

	var verdictMD bytes.Buffer
	if err := WriteVerdictMarkdown(&verdictMD, r); err != nil {
		return apperrors.IOError("rendering verdict report", err)
	}
	if err := w.write(VerdictMarkdown, verdictMD.Bytes()); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	var summary bytes.Buffer
	if err := WriteSummaryMarkdown(&summary, r); err != nil {
		return apperrors.IOError("rendering summary report", err)
	}
	if err := w.write(SummaryMarkdown, summary.Bytes()); err != nil {
		return err
	}

	if w.html {
		return w.write(VerdictHTML, RenderHTML(verdictMD.Bytes(), "QA Verdict Report"))
	}
	return nil
}

func (w *Writer) write(name string, data []byte) error {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.IOError("writing "+path, err)
	}
	w.logger.Debug("wrote %s", path)
	return nil
}
