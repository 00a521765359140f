// Package services holds the logic behind the fredweb status server.
// Handlers in transport/http stay thin and call into these services.
//
// SeriesService lists the configured series, runs them through the
// operations pipeline and reports their latest results. Concurrent run
// requests for the same series and cutoff share one pipeline run, and runs
// of one series with different cutoffs are serialized because they write the
// same output files:
//
//	report, shared, err := svc.Run(ctx, "jtsjol", services.RunRequest{})
//
// HealthService reports the server version, uptime and whether the output
// directory and archive are usable.
package services
