// Package exporter writes series output files.
//
// CSVWriter writes the verbatim download (<series>_raw.csv) and the processed
// table (<series>_processed.csv). Every file is rendered in memory and moved
// into place with a rename, so readers never observe a partially written file.
//
// WorkbookWriter optionally writes the processed table as an Excel workbook
// (<series>_processed.xlsx) using excelize.
//
// Example usage:
//
//	paths := config.NewPaths(cfg.Paths)
//	w := exporter.NewCSVWriter(paths)
//	rawPath, err := w.WriteRaw("jtsjol", text)
//	data, err := result.CSV()
//	processedPath, err := w.WriteProcessedBytes("jtsjol", data)
package exporter
