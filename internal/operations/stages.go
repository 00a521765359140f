package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fredcli/internal/transform"
)

// BaseStep provides the identity shared by all steps
type BaseStep struct {
	id   string
	name string
}

// ID returns the step ID
func (b BaseStep) ID() string { return b.id }

// Name returns the step name
func (b BaseStep) Name() string { return b.name }

// Validate accepts any state
func (b BaseStep) Validate(*OperationState) error { return nil }

// FetchStep downloads the series CSV
type FetchStep struct {
	BaseStep
	fetcher Fetcher
}

// NewFetchStep creates the fetch step
func NewFetchStep(fetcher Fetcher) *FetchStep {
	return &FetchStep{BaseStep: BaseStep{StepIDFetch, "Fetch series"}, fetcher: fetcher}
}

// Validate requires a URL
func (s *FetchStep) Validate(state *OperationState) error {
	if state.Series.URL == "" {
		return NewValidationError(s.ID(), fmt.Sprintf("series %s has no URL", state.Series.Name))
	}
	return nil
}

// Execute performs the download
func (s *FetchStep) Execute(ctx context.Context, state *OperationState) error {
	text, err := s.fetcher.FetchSeries(ctx, state.Series.Name, state.Series.URL)
	if err != nil {
		if ctx.Err() != nil {
			return NewCancellationError(s.ID(), err)
		}
		return NewFetchError(s.ID(), err)
	}
	state.Raw = text
	return nil
}

// WriteRawStep persists the verbatim download
type WriteRawStep struct {
	BaseStep
	writer TableWriter
}

// NewWriteRawStep creates the raw write step
func NewWriteRawStep(writer TableWriter) *WriteRawStep {
	return &WriteRawStep{BaseStep: BaseStep{StepIDWriteRaw, "Write raw CSV"}, writer: writer}
}

// Execute writes the raw file
func (s *WriteRawStep) Execute(ctx context.Context, state *OperationState) error {
	path, err := s.writer.WriteRaw(state.Series.Name, state.Raw)
	if err != nil {
		return NewPersistError(s.ID(), state.Series.Name+" raw CSV", err)
	}
	state.RawPath = path
	slog.InfoContext(ctx, "Saved raw data",
		slog.String("series", state.Series.Name),
		slog.String("path", path),
		slog.Int("bytes", len(state.Raw)))
	return nil
}

// processedStep only applies to series with processed output
type processedStep struct{}

func (processedStep) Applies(state *OperationState) bool {
	return !state.Series.RawOnly
}

// TransformStep builds the processed table from the raw text
type TransformStep struct {
	BaseStep
	processedStep
	previewLength int
}

// NewTransformStep creates the transform step
func NewTransformStep(previewLength int) *TransformStep {
	return &TransformStep{BaseStep: BaseStep{StepIDTransform, "Transform"}, previewLength: previewLength}
}

// Validate checks the series shaping options
func (s *TransformStep) Validate(state *OperationState) error {
	opts, err := transform.FromSeries(state.Series, s.previewLength)
	if err != nil {
		return NewValidationError(s.ID(), err.Error())
	}
	if err := opts.Validate(); err != nil {
		return NewValidationError(s.ID(), err.Error())
	}
	state.Options = opts
	return nil
}

// Execute runs the transform
func (s *TransformStep) Execute(ctx context.Context, state *OperationState) error {
	result, err := transform.Transform(state.Raw, state.Options)
	if err != nil {
		details := map[string]interface{}{"series": state.Series.Name}
		var colErr *transform.ColumnError
		if errors.As(err, &colErr) {
			details["columns"] = colErr.Actual
			details["preview"] = colErr.Preview
		}
		return NewTransformError(s.ID(), err, details)
	}
	state.Result = result

	slog.InfoContext(ctx, "Transformed series",
		slog.String("series", state.Series.Name),
		slog.Int("rows", result.Rows()),
		slog.Int("dropped_before_cutoff", result.Dropped.BeforeCutoff),
		slog.Int("dropped_missing", result.Dropped.Missing))
	return nil
}

// WriteProcessedStep persists the processed table
type WriteProcessedStep struct {
	BaseStep
	processedStep
	writer TableWriter
}

// NewWriteProcessedStep creates the processed write step
func NewWriteProcessedStep(writer TableWriter) *WriteProcessedStep {
	return &WriteProcessedStep{BaseStep: BaseStep{StepIDWriteProcessed, "Write processed CSV"}, writer: writer}
}

// Execute writes the processed file
func (s *WriteProcessedStep) Execute(ctx context.Context, state *OperationState) error {
	data, err := state.Result.CSV()
	if err != nil {
		return NewPersistError(s.ID(), state.Series.Name+" processed CSV", err)
	}
	path, err := s.writer.WriteProcessedBytes(state.Series.Name, data)
	if err != nil {
		return NewPersistError(s.ID(), state.Series.Name+" processed CSV", err)
	}
	state.ProcessedPath = path
	slog.InfoContext(ctx, "Saved processed data",
		slog.String("series", state.Series.Name),
		slog.String("path", path),
		slog.Int("rows", state.Result.Rows()))
	return nil
}

// WriteWorkbookStep persists the processed table as an Excel workbook
type WriteWorkbookStep struct {
	BaseStep
	processedStep
	writer WorkbookWriter
}

// NewWriteWorkbookStep creates the workbook step
func NewWriteWorkbookStep(writer WorkbookWriter) *WriteWorkbookStep {
	return &WriteWorkbookStep{BaseStep: BaseStep{StepIDWriteWorkbook, "Write workbook"}, writer: writer}
}

// Execute writes the workbook
func (s *WriteWorkbookStep) Execute(ctx context.Context, state *OperationState) error {
	path, err := s.writer.WriteWorkbook(state.Series.Name, state.Result.Header, state.Result.Records)
	if err != nil {
		return NewPersistError(s.ID(), state.Series.Name+" workbook", err)
	}
	state.WorkbookPath = path
	return nil
}

// ArchiveStep records the successful run and its observations
type ArchiveStep struct {
	BaseStep
	archive Archive
}

// NewArchiveStep creates the archive step
func NewArchiveStep(archive Archive) *ArchiveStep {
	return &ArchiveStep{BaseStep: BaseStep{StepIDArchive, "Archive run"}, archive: archive}
}

// Execute saves the run
func (s *ArchiveStep) Execute(ctx context.Context, state *OperationState) error {
	report := state.Report()
	var err error
	if state.Result == nil {
		err = s.archive.SaveRun(ctx, report, nil, nil)
	} else {
		err = s.archive.SaveRun(ctx, report, state.Result.Observations, state.Result.Derived)
	}
	if err != nil {
		return NewPersistError(s.ID(), "archive", err)
	}
	return nil
}
