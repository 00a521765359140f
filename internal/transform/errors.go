package transform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse is returned when the text cannot be read as a CSV table with a header row
	ErrParse = errors.New("cannot parse CSV")
	// ErrMissingColumn is returned when the date or value column is absent
	ErrMissingColumn = errors.New("missing column")
	// ErrNoObservations is returned when no row survives filtering
	ErrNoObservations = errors.New("no observations")
	// ErrZeroBaseline is returned when an index is requested against a zero first observation
	ErrZeroBaseline = errors.New("baseline observation is zero")
	// ErrInvalidOptions is returned for options that cannot produce a table
	ErrInvalidOptions = errors.New("invalid transform options")
)

// ColumnError reports which columns were expected and which were present
type ColumnError struct {
	Role     string
	Expected []string
	Actual   []string
	Preview  string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s column not found: expected one of [%s], got [%s]",
		e.Role, strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
}

func (e *ColumnError) Unwrap() error {
	return ErrMissingColumn
}

// Preview returns at most n runes of text; n <= 0 returns an empty string
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
