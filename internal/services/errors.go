package services

import "errors"

var (
	// ErrArchiveDisabled is returned by queries that need the sqlite archive
	ErrArchiveDisabled = errors.New("observation archive is disabled")

	// ErrNoRuns is returned when a series has not been run yet
	ErrNoRuns = errors.New("series has no runs")

	// ErrInvalidCutoff is returned when a run request carries a malformed cutoff
	ErrInvalidCutoff = errors.New("invalid cutoff")
)
