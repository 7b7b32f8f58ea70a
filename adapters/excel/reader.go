// Package excel reads wide run x metric workbooks and writes the verdict
// workbook.
package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"runqa/adapters/tables"
	"runqa/internal"
	apperrors "runqa/internal/errors"
	"runqa/internal/multivar"
)

// DataReader reads a wide table from the first sheet of an XLSX file.
type DataReader struct {
	filePath string
	logger   *internal.Logger
}

// NewDataReader creates a reader for filePath.
func NewDataReader(filePath string, logger *internal.Logger) *DataReader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{filePath: filePath, logger: logger.WithComponent("excel")}
}

// ReadWide reads the run column followed by one column per metric.
func (r *DataReader) ReadWide() (multivar.Table, error) {
	if strings.ToLower(filepath.Ext(r.filePath)) != ".xlsx" {
		return multivar.Table{}, apperrors.InvalidInput(fmt.Sprintf("unsupported file type: %s", r.filePath))
	}
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return multivar.Table{}, apperrors.MissingInput(r.filePath, err)
	}

	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return multivar.Table{}, apperrors.IOError("failed to open Excel file", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return multivar.Table{}, apperrors.InvalidInput("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return multivar.Table{}, apperrors.IOError(fmt.Sprintf("failed to read %s", sheets[0]), err)
	}
	if len(rows) < 2 {
		return multivar.Table{}, apperrors.InvalidInput("Excel file must have at least a header row and one data row")
	}

	for i := range rows {
		for j := range rows[i] {
			rows[i][j] = strings.TrimSpace(rows[i][j])
		}
	}
	t, err := tables.WideFromRows(rows)
	if err != nil {
		return multivar.Table{}, err
	}
	r.logger.Debug("read %s: %d runs x %d metrics", r.filePath, len(t.Runs), len(t.Metrics))
	return t, nil
}
