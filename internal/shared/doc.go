// Package shared holds code used across fredcli packages that belongs to no
// single layer.
//
// The testutil subpackage provides test helpers:
//
//   - BufferedSlogHandler captures slog records, including the trace ID of
//     the record's context, so tests can assert on run logs.
//   - FREDServer is an httptest server that mimics FRED's fredgraph.csv
//     endpoint, with canned series bodies and forced failures.
//
// Example usage:
//
//	func TestRun(t *testing.T) {
//	    logs := testutil.CaptureDefaultLogger(t)
//	    fred := testutil.NewFREDServer(t)
//	    fred.Serve("JTSJOL", testutil.JOLTSCSV)
//	    // run against fred.SeriesURL("JTSJOL")
//	    testutil.AssertNoErrors(t, logs)
//	}
package shared
