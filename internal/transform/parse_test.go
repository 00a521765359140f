package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input  string
		want   time.Time
		wantOK bool
	}{
		{"2020-01-01", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{" 2020-02-01 ", time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), true},
		{"2020-03-01 12:30:00", time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2020/04/01", time.Date(2020, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"05/01/2020", time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"2020-06", time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"2020-07-01T00:00:00", time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC), true},
		{"2020-8-1", time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{".", time.Time{}, false},
		{"not a date", time.Time{}, false},
		{"2020-13-01", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"7140", 7140, true},
		{" 4.3 ", 4.3, true},
		{"-0.5", -0.5, true},
		{"1e3", 1000, true},
		{".", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"n/a", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"-Infinity", 0, false},
		{"0x1p4", 0, false},
		{"-0X10", 0, false},
		{"0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseValue(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "7140", FormatValue(7140))
	assert.Equal(t, "4.3", FormatValue(4.3))
	assert.Equal(t, "100.0", FormatDerived(100))
	assert.Equal(t, "0.045", FormatDerived(0.045))
	assert.Equal(t, "101.96", FormatDerived(101.96))
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int32
		want   float64
	}{
		{0.0425, 3, 0.042},
		{0.0435, 3, 0.044},
		{100.125, 2, 100.12},
		{98.03921568627452, 2, 98.04},
		{4.3, 0, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.v, tt.places), "Round(%v, %d)", tt.v, tt.places)
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "", Preview("abc", 0))
	assert.Equal(t, "ab", Preview("abc", 2))
	assert.Equal(t, "abc", Preview("abc", 10))
	assert.Equal(t, "héll", Preview("héllo", 4))
}
