// Package operations runs the fetch, transform and persist pipeline for FRED series.
//
// A run of one series executes its steps strictly in order:
//
//	fetch -> write_raw -> transform -> write_processed [-> write_workbook] [-> archive]
//
// Raw-only series stop after write_raw. A failed step ends the run: a fetch
// failure leaves no files behind, and a transform failure leaves only the raw
// file. Processed output is rendered in memory before it is written.
//
// Manager.RunAll runs independent series concurrently, bounded by the
// configured concurrency; each series stays sequential.
//
// Every run is assigned a UUID run ID that is attached to log records as
// trace_id, to the OpenTelemetry spans of the run and its steps, and to the
// archived run record.
package operations
