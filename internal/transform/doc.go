// Package transform turns the CSV text of a FRED series download into the
// processed table written next to the raw file.
//
// The transformation is a pure function of its input:
//
//	result, err := transform.Transform(text, opts)
//	data, err := result.CSV()
//
// Steps, in order: parse the text as a table with a header row, locate the date
// and value columns, coerce them, drop rows before the cutoff or with missing
// data, derive the configured column, add the optional label column, and
// select the output columns in order.
//
// FRED marks missing observations with ".", which ParseValue treats as missing
// along with empty cells, non-numeric text, NaN and infinities.
package transform
