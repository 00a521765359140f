package transform

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"fredcli/internal/config"
	"fredcli/pkg/contracts/domain"
)

const (
	// ValueColumn is the output name of the observation value
	ValueColumn = "value"

	defaultDateName   = "date"
	defaultDateLayout = "2006-01-02"
	defaultDivisor    = 100
	defaultPreview    = 500
)

// DateOutput names and formats the date column of the output table
type DateOutput struct {
	Name   string
	Layout string
}

// Options drive a single transformation
type Options struct {
	// DateColumns are candidate header names for the date, first present wins
	DateColumns []string
	ValueColumn string
	// Cutoff is the inclusive lower bound on dates; the zero time keeps every row
	Cutoff time.Time

	Derive        domain.DeriveKind
	DerivedColumn string
	// Divisor for DeriveScale, 100 when zero
	Divisor float64
	Places  int32

	DateOutput  DateOutput
	LabelColumn string
	LabelValue  string
	Columns     []string

	// PreviewLength bounds the raw text carried by column errors
	PreviewLength int
}

// FromSeries builds transform options from a series definition
func FromSeries(s config.SeriesConfig, previewLength int) (Options, error) {
	cutoff, err := s.CutoffTime()
	if err != nil {
		return Options{}, err
	}
	return Options{
		DateColumns:   s.DateColumns,
		ValueColumn:   s.ValueColumn,
		Cutoff:        cutoff,
		Derive:        s.Derive,
		DerivedColumn: s.DerivedColumn,
		Divisor:       s.Divisor,
		Places:        s.Places,
		DateOutput:    DateOutput{Name: s.DateOutput.Name, Layout: s.DateOutput.Layout},
		LabelColumn:   s.LabelColumn,
		LabelValue:    s.LabelValue,
		Columns:       s.Columns,
		PreviewLength: previewLength,
	}, nil
}

func (o Options) dateColumns() []string {
	if len(o.DateColumns) == 0 {
		return config.DefaultDateColumns
	}
	return o.DateColumns
}

func (o Options) dateName() string {
	if o.DateOutput.Name == "" {
		return defaultDateName
	}
	return o.DateOutput.Name
}

func (o Options) dateLayout() string {
	if o.DateOutput.Layout == "" {
		return defaultDateLayout
	}
	return o.DateOutput.Layout
}

func (o Options) divisor() float64 {
	if o.Divisor == 0 {
		return defaultDivisor
	}
	return o.Divisor
}

func (o Options) places() int32 {
	return o.Places
}

func (o Options) previewLength() int {
	if o.PreviewLength == 0 {
		return defaultPreview
	}
	return o.PreviewLength
}

func (o Options) derives() bool {
	return o.Derive == domain.DeriveScale || o.Derive == domain.DeriveIndex
}

// Validate checks that every output column has a source
func (o Options) Validate() error {
	if o.ValueColumn == "" {
		return fmt.Errorf("%w: value column is required", ErrInvalidOptions)
	}
	if len(o.Columns) == 0 {
		return fmt.Errorf("%w: no output columns", ErrInvalidOptions)
	}
	if o.derives() && o.DerivedColumn == "" {
		return fmt.Errorf("%w: derive %s needs a derived column name", ErrInvalidOptions, o.Derive)
	}
	seen := make(map[string]bool, len(o.Columns))
	for _, c := range o.Columns {
		if seen[c] {
			return fmt.Errorf("%w: duplicate output column %q", ErrInvalidOptions, c)
		}
		seen[c] = true
		if !o.knownColumn(c) {
			return fmt.Errorf("%w: output column %q has no source", ErrInvalidOptions, c)
		}
	}
	return nil
}

func (o Options) knownColumn(name string) bool {
	switch {
	case name == o.dateName(), name == ValueColumn:
		return true
	case o.derives() && name == o.DerivedColumn:
		return true
	case o.LabelColumn != "" && name == o.LabelColumn:
		return true
	}
	return false
}

// DropStats counts rows removed by filtering
type DropStats struct {
	BeforeCutoff int
	Missing      int
}

// Result is the processed table and the observations it was built from
type Result struct {
	Header       []string
	Records      [][]string
	Observations []domain.Observation
	// Derived is parallel to Observations; nil when nothing is derived
	Derived  []float64
	Dropped  DropStats
	Baseline float64
}

// Rows returns the number of data rows in the table
func (r *Result) Rows() int {
	return len(r.Records)
}

// CSV renders the table with its header row and no index column
func (r *Result) CSV() ([]byte, error) {
	cols := make([]series.Series, len(r.Header))
	for j, name := range r.Header {
		values := make([]string, len(r.Records))
		for i, rec := range r.Records {
			values[i] = rec[j]
		}
		cols[j] = series.New(values, series.String, name)
	}
	df := dataframe.New(cols...)
	if df.Err != nil {
		return nil, fmt.Errorf("build output table: %w", df.Err)
	}

	var buf bytes.Buffer
	if err := df.WriteCSV(&buf); err != nil {
		return nil, fmt.Errorf("write output table: %w", err)
	}
	return buf.Bytes(), nil
}

// Transform parses text and produces the processed table described by opts
func Transform(text string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	df, err := load(text)
	if err != nil {
		return nil, err
	}

	names := df.Names()
	dateCol, ok := firstPresent(names, opts.dateColumns())
	if !ok {
		return nil, &ColumnError{
			Role:     "date",
			Expected: opts.dateColumns(),
			Actual:   names,
			Preview:  Preview(text, opts.previewLength()),
		}
	}
	valueCol, ok := firstPresent(names, []string{opts.ValueColumn})
	if !ok {
		return nil, &ColumnError{
			Role:     "value",
			Expected: []string{opts.ValueColumn},
			Actual:   names,
			Preview:  Preview(text, opts.previewLength()),
		}
	}

	dates := df.Col(dateCol).Records()
	values := df.Col(valueCol).Records()

	res := &Result{}
	for i := range dates {
		date, ok := ParseDate(dates[i])
		if !ok {
			res.Dropped.Missing++
			continue
		}
		if !opts.Cutoff.IsZero() && date.Before(opts.Cutoff) {
			res.Dropped.BeforeCutoff++
			continue
		}
		value, ok := ParseValue(values[i])
		if !ok {
			res.Dropped.Missing++
			continue
		}
		res.Observations = append(res.Observations, domain.Observation{Date: date, Value: value})
	}

	if len(res.Observations) == 0 {
		cutoff := "none"
		if !opts.Cutoff.IsZero() {
			cutoff = opts.Cutoff.Format(config.CutoffLayout)
		}
		return nil, fmt.Errorf("%w: cutoff %s, %d rows before cutoff, %d missing",
			ErrNoObservations, cutoff, res.Dropped.BeforeCutoff, res.Dropped.Missing)
	}

	res.Derived, res.Baseline, err = derive(res.Observations, opts)
	if err != nil {
		return nil, err
	}

	res.Header = append([]string(nil), opts.Columns...)
	res.Records = make([][]string, len(res.Observations))
	for i, o := range res.Observations {
		rec := make([]string, len(opts.Columns))
		for j, c := range opts.Columns {
			rec[j] = cell(c, i, o, res.Derived, opts)
		}
		res.Records[i] = rec
	}

	return res, nil
}

func cell(column string, i int, o domain.Observation, derived []float64, opts Options) string {
	switch {
	case column == opts.dateName():
		return o.Date.Format(opts.dateLayout())
	case column == ValueColumn:
		return FormatValue(o.Value)
	case opts.derives() && column == opts.DerivedColumn:
		return FormatDerived(derived[i])
	default:
		return opts.LabelValue
	}
}

// load reads text into an all-string table
func load(text string) (dataframe.DataFrame, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return dataframe.DataFrame{}, fmt.Errorf("%w: empty body", ErrParse)
	}

	df := dataframe.ReadCSV(strings.NewReader(text),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %v", ErrParse, df.Err)
	}
	return df, nil
}

func firstPresent(names, candidates []string) (string, bool) {
	for _, c := range candidates {
		for _, n := range names {
			if strings.TrimSpace(n) == c {
				return n, true
			}
		}
	}
	return "", false
}
