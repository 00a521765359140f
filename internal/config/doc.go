// Package config provides centralized configuration for fredpull and fredweb.
// It loads settings from several sources, validates them, and owns the registry
// of FRED series the tools know how to fetch and shape.
//
// # Configuration Sources
//
// Configuration is assembled in this order, later sources winning:
//
//  1. Default values (Default)
//  2. A YAML file: $FRED_CONFIG_FILE, ./config.yaml or ./configs/config.yaml
//  3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern FRED_<SECTION>_<FIELD>:
//
//	FRED_FETCH_TIMEOUT=60s
//	FRED_PATHS_OUTPUT_DIR=data
//	FRED_LOGGING_LEVEL=debug
//	FRED_PIPELINE_WORKBOOK=true
//	FRED_ARCHIVE_ENABLED=true
//	FRED_TELEMETRY_METRICS=prometheus
//
// # Series
//
// The built-in series (atlwage, jtsjol, jtsjol_raw) can be extended or replaced
// from the YAML file:
//
//	series:
//	  - name: unrate
//	    series_id: UNRATE
//	    url: https://fred.stlouisfed.org/graph/fredgraph.csv?id=UNRATE
//	    value_column: UNRATE
//	    cutoff: "2020-01-01"
//	    derive: scale
//	    derived_column: rate
//	    divisor: 100
//	    places: 3
//	    date_output: {name: month, layout: "2006-01"}
//	    columns: [month, rate]
//
// Every series is validated with go-playground/validator when it is registered.
//
// # Paths
//
// Paths maps a series name to its output files:
//
//	paths := config.NewPaths(cfg.Paths)
//	paths.RawPath("jtsjol")       // data/jtsjol_raw.csv
//	paths.ProcessedPath("jtsjol") // data/jtsjol_processed.csv
package config
