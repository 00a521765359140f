package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the output locations of a run.
// Relative directories resolve against the working directory, like the scripts this tool replaces.
type Paths struct {
	OutputDir string
	LogsDir   string
}

// NewPaths builds Paths from configuration
func NewPaths(cfg PathsConfig) *Paths {
	return &Paths{
		OutputDir: filepath.Clean(cfg.OutputDir),
		LogsDir:   filepath.Clean(cfg.LogsDir),
	}
}

// RawPath returns the path of the verbatim download, <out>/<series>_raw.csv
func (p *Paths) RawPath(series string) string {
	return filepath.Join(p.OutputDir, series+"_raw.csv")
}

// ProcessedPath returns the path of the transformed table, <out>/<series>_processed.csv
func (p *Paths) ProcessedPath(series string) string {
	return filepath.Join(p.OutputDir, series+"_processed.csv")
}

// WorkbookPath returns the path of the optional Excel export
func (p *Paths) WorkbookPath(series string) string {
	return filepath.Join(p.OutputDir, series+"_processed.xlsx")
}

// EnsureDirectories creates the output directory if it doesn't exist
func (p *Paths) EnsureDirectories() error {
	if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p.OutputDir, err)
	}
	slog.Debug("Ensured directory exists", slog.String("directory", p.OutputDir))
	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
