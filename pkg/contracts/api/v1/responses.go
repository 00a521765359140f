package api

import (
	"fredcli/pkg/contracts/domain"
)

// SeriesListResponse is the body of GET /api/series
type SeriesListResponse struct {
	Series []domain.SeriesSummary `json:"series"`
	Count  int                    `json:"count"`
}

// RunResponse is the body of a successful POST /api/series/{name}/run
type RunResponse struct {
	Report *domain.RunReport `json:"report"`
	// Shared is true when the request joined a run already in flight
	Shared bool `json:"shared"`
}

// RunsResponse is the body of GET /api/series/{name}/runs
type RunsResponse struct {
	Series string             `json:"series"`
	Runs   []domain.RunReport `json:"runs"`
}

// ObservationsResponse is the body of GET /api/series/{name}/observations
type ObservationsResponse struct {
	Series       string                       `json:"series"`
	Observations []domain.ArchivedObservation `json:"observations"`
	Count        int                          `json:"count"`
}
