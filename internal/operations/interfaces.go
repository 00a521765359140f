package operations

import (
	"context"

	"fredcli/pkg/contracts/domain"
)

// Fetcher downloads the CSV text of a series
type Fetcher interface {
	FetchSeries(ctx context.Context, series, url string) (string, error)
}

// TableWriter persists the raw and processed files of a series
type TableWriter interface {
	WriteRaw(series, text string) (string, error)
	WriteProcessedBytes(series string, data []byte) (string, error)
}

// WorkbookWriter persists the processed table as a workbook
type WorkbookWriter interface {
	WriteWorkbook(series string, header []string, records [][]string) (string, error)
}

// Archive records finished runs
type Archive interface {
	SaveRun(ctx context.Context, report *domain.RunReport, obs []domain.Observation, derived []float64) error
}
