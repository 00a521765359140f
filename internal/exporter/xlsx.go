package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"fredcli/internal/config"
)

// WorkbookWriter exports processed tables as Excel workbooks
type WorkbookWriter struct {
	paths *config.Paths
}

// NewWorkbookWriter creates a new workbook writer
func NewWorkbookWriter(paths *config.Paths) *WorkbookWriter {
	return &WorkbookWriter{paths: paths}
}

// WriteWorkbook writes <out>/<series>_processed.xlsx with one sheet named after the series.
// Cells that parse as numbers are stored as numbers.
func (w *WorkbookWriter) WriteWorkbook(series string, header []string, records [][]string) (string, error) {
	path := w.paths.WorkbookPath(series)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(series)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				row[j] = n
			} else {
				row[j] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	slog.Debug("Wrote workbook", slog.String("series", series), slog.String("path", path), slog.Int("rows", len(records)))
	return path, nil
}

// sheetName trims a series name to Excel's 31 character sheet limit
func sheetName(series string) string {
	if len(series) > 31 {
		return series[:31]
	}
	if series == "" {
		return "Sheet1"
	}
	return series
}
