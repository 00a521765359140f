// Package validation checks the output locations of series runs.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileValidator validates output directories and the files runs leave in them
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateOutputDirectory ensures output directory exists or can be created, and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	// Verify it's writable by creating a test file
	file, err := os.CreateTemp(dir, ".write_test*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := file.Name()
	file.Close()
	os.Remove(name)

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Debug("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateCSVFile checks that path is a readable .csv file
func (v *FileValidator) ValidateCSVFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		return fmt.Errorf("file %s is not a CSV file (extension: %s)", path, ext)
	}
	return nil
}

// ValidateWorkbookFile checks that path is a readable .xlsx workbook
func (v *FileValidator) ValidateWorkbookFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".xlsx" {
		return fmt.Errorf("file %s is not an Excel workbook (extension: %s)", path, ext)
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return fmt.Errorf("file %s is a temporary Excel file", path)
	}
	return nil
}

// CountFiles counts regular files matching a pattern in a directory
func (v *FileValidator) CountFiles(dir string, pattern string) (int, error) {
	fullPattern := filepath.Join(dir, pattern)
	matches, err := filepath.Glob(fullPattern)
	if err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}

	fileCount := 0
	for _, match := range matches {
		info, err := os.Stat(match)
		if err == nil && !info.IsDir() {
			fileCount++
		}
	}
	return fileCount, nil
}
