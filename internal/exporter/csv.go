package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fredcli/internal/config"
)

// CSVWriter writes the raw and processed files of a series
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteRaw writes the downloaded text verbatim to <out>/<series>_raw.csv
func (w *CSVWriter) WriteRaw(series, text string) (string, error) {
	path := w.paths.RawPath(series)
	slog.Debug("Writing raw CSV", slog.String("series", series), slog.String("path", path), slog.Int("bytes", len(text)))

	if err := writeFileAtomic(path, []byte(text)); err != nil {
		return "", err
	}
	return path, nil
}

// WriteProcessedBytes writes the rendered processed table to <out>/<series>_processed.csv
func (w *CSVWriter) WriteProcessedBytes(series string, data []byte) (string, error) {
	path := w.paths.ProcessedPath(series)
	slog.Debug("Writing processed CSV", slog.String("series", series), slog.String("path", path), slog.Int("bytes", len(data)))

	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeFileAtomic writes data to a temp file in the target directory and renames it into place
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
