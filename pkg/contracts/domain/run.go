package domain

import (
	"time"
)

// RunStatus is the terminal status of a series run
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunReport summarises one fetch-transform-persist run of a series
type RunReport struct {
	RunID          string    `json:"run_id"`
	Series         string    `json:"series"`
	Status         RunStatus `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	RawPath        string    `json:"raw_path,omitempty"`
	ProcessedPath  string    `json:"processed_path,omitempty"`
	WorkbookPath   string    `json:"workbook_path,omitempty"`
	RawBytes       int       `json:"raw_bytes"`
	Rows           int       `json:"rows"`
	DroppedBefore  int       `json:"dropped_before_cutoff"`
	DroppedMissing int       `json:"dropped_missing"`
	Baseline       float64   `json:"baseline,omitempty"`
	SkippedSteps   []string  `json:"skipped_steps,omitempty"`
	Error          string    `json:"error,omitempty"`
	ErrorType      string    `json:"error_type,omitempty"`
}

// Duration returns the wall time of the run
func (r *RunReport) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run completed
func (r *RunReport) Succeeded() bool {
	return r != nil && r.Status == RunStatusCompleted
}
