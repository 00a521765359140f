// Package api contains the wire contracts of the fredweb HTTP API.
// Version v1 represents the current stable API version.
package api

// RunRequest is the optional body of POST /api/series/{name}/run
type RunRequest struct {
	// Cutoff replaces the series cutoff when set, YYYY-MM-DD
	Cutoff string `json:"cutoff,omitempty" validate:"omitempty,datetime=2006-01-02"`
}
