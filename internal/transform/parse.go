package transform

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MissingValue is FRED's marker for an observation that has no value
const MissingValue = "."

// dateLayouts are tried in order by ParseDate
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-1-2",
	"2006/01/02",
	"01/02/2006",
	"2006-01",
}

// ParseDate parses a calendar date in any of the layouts FRED has used.
// The result is truncated to the day in UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseValue parses a numeric observation. The FRED sentinel ".", empty cells,
// non-numeric text, hex notation, NaN and infinities are all reported as missing.
func ParseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == MissingValue || isHex(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}
