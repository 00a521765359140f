// Package http implements the HTTP handlers of the fredweb status server.
// Handlers stay thin: they parse the request, call a service and render the
// result with go-chi/render.
//
// # Endpoints
//
//	GET  /api/health                       server and dependency health
//	GET  /api/version                      build and API version
//	GET  /api/series                       configured series with their latest run
//	GET  /api/series/{name}                one series
//	POST /api/series/{name}/run            run a series now, body {"cutoff":"YYYY-MM-DD"} optional
//	GET  /api/series/{name}/runs?limit=N   archived runs, newest first
//	GET  /api/series/{name}/observations   archived observations
//
// # Error Handling
//
// Errors are rendered as RFC 7807 problem details by errors.ErrorHandler:
//
//	{
//	    "type": "/errors/series/fetch-failed",
//	    "title": "Bad Gateway",
//	    "status": 502,
//	    "detail": "Fetching the series from FRED failed",
//	    "instance": "/api/series/jtsjol/run",
//	    "error_code": "UPSTREAM_FETCH_FAILED",
//	    "trace_id": "5f0c..."
//	}
package http
