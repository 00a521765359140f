package config

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"fredcli/pkg/contracts/domain"
)

// CutoffLayout is the layout of cutoff dates in configuration and requests
const CutoffLayout = "2006-01-02"

// ErrUnknownSeries is returned when a selector names no registered series
var ErrUnknownSeries = errors.New("unknown series")

var seriesNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the series-specific rules registered
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("seriesname", func(fl validator.FieldLevel) bool {
			return seriesNamePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// DateOutputConfig names and formats the date column of the processed table
type DateOutputConfig struct {
	Name   string `yaml:"name" json:"name" validate:"omitempty,max=64"`
	Layout string `yaml:"layout" json:"layout" validate:"omitempty,max=32"`
}

// SeriesConfig defines one FRED series: where to fetch it and how to shape its processed CSV
type SeriesConfig struct {
	Name        string `yaml:"name" json:"name" validate:"required,seriesname,max=64"`
	SeriesID    string `yaml:"series_id" json:"series_id" validate:"required,alphanum,uppercase"`
	URL         string `yaml:"url" json:"url" validate:"required,url"`
	Description string `yaml:"description" json:"description,omitempty"`

	// RawOnly series are fetched and written verbatim, with no processed output
	RawOnly bool `yaml:"raw_only" json:"raw_only"`

	DateColumns []string `yaml:"date_columns" json:"date_columns,omitempty" validate:"omitempty,dive,required"`
	ValueColumn string   `yaml:"value_column" json:"value_column,omitempty"`
	Cutoff      string   `yaml:"cutoff" json:"cutoff,omitempty" validate:"omitempty,datetime=2006-01-02"`

	Derive        domain.DeriveKind `yaml:"derive" json:"derive,omitempty" validate:"omitempty,oneof=none scale index"`
	DerivedColumn string            `yaml:"derived_column" json:"derived_column,omitempty"`
	Divisor       float64           `yaml:"divisor" json:"divisor,omitempty" validate:"gte=0"`
	Places        int32             `yaml:"places" json:"places" validate:"gte=0,lte=10"`

	DateOutput  DateOutputConfig `yaml:"date_output" json:"date_output"`
	LabelColumn string           `yaml:"label_column" json:"label_column,omitempty"`
	LabelValue  string           `yaml:"label_value" json:"label_value,omitempty"`
	Columns     []string         `yaml:"columns" json:"columns,omitempty" validate:"omitempty,dive,required"`
}

// Validate checks struct tags and the rules that depend on several fields
func (s *SeriesConfig) Validate() error {
	if err := Validator().Struct(s); err != nil {
		return fmt.Errorf("series %q: %w", s.Name, err)
	}
	if s.RawOnly {
		return nil
	}
	if s.ValueColumn == "" {
		return fmt.Errorf("series %q: value_column is required unless raw_only is set", s.Name)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("series %q: columns are required unless raw_only is set", s.Name)
	}
	switch s.Derive {
	case domain.DeriveScale, domain.DeriveIndex:
		if s.DerivedColumn == "" {
			return fmt.Errorf("series %q: derived_column is required for derive=%s", s.Name, s.Derive)
		}
	}
	if (s.LabelColumn == "") != (s.LabelValue == "") {
		return fmt.Errorf("series %q: label_column and label_value must be set together", s.Name)
	}
	return nil
}

// CutoffTime parses Cutoff; the zero time means no date filter
func (s *SeriesConfig) CutoffTime() (time.Time, error) {
	if s.Cutoff == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(CutoffLayout, s.Cutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("series %q: invalid cutoff %q: %w", s.Name, s.Cutoff, err)
	}
	return t, nil
}

// Info returns the public description of the series
func (s *SeriesConfig) Info() domain.SeriesInfo {
	return domain.SeriesInfo{
		Name:        s.Name,
		SeriesID:    s.SeriesID,
		Description: s.Description,
		RawOnly:     s.RawOnly,
		Cutoff:      s.Cutoff,
		Derive:      s.Derive,
		Columns:     s.Columns,
	}
}

// FRED graph endpoints for the built-in series
const (
	AtlantaWageGrowthURL = "https://fred.stlouisfed.org/graph/fredgraph.csv?bgcolor=%23ebf3fb&chart_type=line&drp=0&fo=open%20sans&graph_bgcolor=%23ffffff&height=450&mode=fred&recession_bars=on&txtcolor=%23444444&ts=12&tts=12&width=1320&nt=0&thu=0&trc=0&show_legend=yes&show_axis_titles=yes&show_tooltip=yes&id=FRBATLWGT3MMAUMHWGO&scale=left&cosd=1997-03-01&coed=2025-08-01&line_color=%230073e6&link_values=false&line_style=solid&mark_type=none&mw=3&lw=3&ost=-99999&oet=99999&mma=0&fml=a&fq=Monthly&fam=avg&fgst=lin&fgsnd=2020-02-01&line_index=1&transformation=lin&vintage_date=2025-09-18&revision_date=2025-09-18&nd=1997-03-01"
	JOLTSOpeningsURL     = "https://fred.stlouisfed.org/graph/fredgraph.csv?id=JTSJOL"
)

// DefaultDateColumns are the header names FRED has used for the observation date
var DefaultDateColumns = []string{"observation_date", "DATE"}

// BuiltinSeries returns the series shipped with the tool
func BuiltinSeries() []SeriesConfig {
	return []SeriesConfig{
		{
			Name:          "atlwage",
			SeriesID:      "FRBATLWGT3MMAUMHWGO",
			URL:           AtlantaWageGrowthURL,
			Description:   "Atlanta Fed wage growth tracker, 3-month moving average",
			DateColumns:   DefaultDateColumns,
			ValueColumn:   "FRBATLWGT3MMAUMHWGO",
			Cutoff:        "2019-01-01",
			Derive:        domain.DeriveScale,
			DerivedColumn: "3_month_wage_growth",
			Divisor:       100,
			Places:        3,
			DateOutput:    DateOutputConfig{Name: "month", Layout: "2006-01"},
			Columns:       []string{"month", "3_month_wage_growth"},
		},
		{
			Name:          "jtsjol",
			SeriesID:      "JTSJOL",
			URL:           JOLTSOpeningsURL,
			Description:   "JOLTS job openings, indexed to January 2020 = 100",
			DateColumns:   DefaultDateColumns,
			ValueColumn:   "JTSJOL",
			Cutoff:        "2020-01-01",
			Derive:        domain.DeriveIndex,
			DerivedColumn: "JOLTS",
			Places:        2,
			DateOutput:    DateOutputConfig{Name: "month", Layout: "2006-01"},
			LabelColumn:   "type",
			LabelValue:    "JOLTS",
			Columns:       []string{"month", "value", "JOLTS", "type"},
		},
		{
			Name:        "jtsjol_raw",
			SeriesID:    "JTSJOL",
			URL:         JOLTSOpeningsURL,
			Description: "JOLTS job openings, raw download only",
			RawOnly:     true,
		},
	}
}

// SeriesRegistry holds the known series by name
type SeriesRegistry struct {
	mu     sync.RWMutex
	series map[string]SeriesConfig
}

// NewSeriesRegistry creates a registry holding the given series
func NewSeriesRegistry(series ...SeriesConfig) *SeriesRegistry {
	r := &SeriesRegistry{series: make(map[string]SeriesConfig, len(series))}
	for _, s := range series {
		r.series[s.Name] = s
	}
	return r
}

// Put validates and stores s, replacing any series with the same name
func (r *SeriesRegistry) Put(s SeriesConfig) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series[s.Name] = s
	return nil
}

// Get returns the series with the given name
func (r *SeriesRegistry) Get(name string) (SeriesConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.series[name]
	return s, ok
}

// Names returns the registered series names in sorted order
func (r *SeriesRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.series))
	for name := range r.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered series sorted by name
func (r *SeriesRegistry) All() []SeriesConfig {
	names := r.Names()
	out := make([]SeriesConfig, 0, len(names))
	for _, name := range names {
		s, _ := r.Get(name)
		out = append(out, s)
	}
	return out
}

// Resolve maps a CLI/API selector to series; "all" selects every series
func (r *SeriesRegistry) Resolve(selector string) ([]SeriesConfig, error) {
	if selector == "all" {
		return r.All(), nil
	}
	s, ok := r.Get(selector)
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownSeries, selector, r.Names())
	}
	return []SeriesConfig{s}, nil
}
