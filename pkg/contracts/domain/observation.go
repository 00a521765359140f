package domain

import (
	"time"
)

// Observation is a single dated value of an economic series.
// Rows whose date or value could not be parsed never become an Observation.
type Observation struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// DeriveKind selects the derived column computed from the value column
type DeriveKind string

const (
	// DeriveNone emits no derived column
	DeriveNone DeriveKind = "none"
	// DeriveScale divides the value by a constant (percent to fraction)
	DeriveScale DeriveKind = "scale"
	// DeriveIndex expresses the value relative to the first retained row, which equals 100
	DeriveIndex DeriveKind = "index"
)

// SeriesInfo describes a configured series for listings and API responses
type SeriesInfo struct {
	Name        string     `json:"name"`
	SeriesID    string     `json:"series_id"`
	Description string     `json:"description,omitempty"`
	RawOnly     bool       `json:"raw_only"`
	Cutoff      string     `json:"cutoff,omitempty"`
	Derive      DeriveKind `json:"derive,omitempty"`
	Columns     []string   `json:"columns,omitempty"`
}

// SeriesSummary is a series definition with its most recent run
type SeriesSummary struct {
	SeriesInfo
	LastRun *RunReport `json:"last_run,omitempty"`
}

// ArchivedObservation is an observation as kept in the archive, with the
// derived value of the run that produced it
type ArchivedObservation struct {
	Series  string    `json:"series"`
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
	Derived *float64  `json:"derived,omitempty"`
	RunID   string    `json:"run_id"`
}
