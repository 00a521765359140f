// Package app wires the fred tools together. Runtime holds what both
// commands share: the series registry, telemetry and the pipeline manager.
// Application adds the fredweb HTTP server on top of it.
//
// # Initialization Flow
//
//  1. Load configuration (config.Load)
//  2. Initialize logging (infrastructure.InitializeLogger)
//  3. NewRuntime: telemetry, registry, fetcher, writers, optional archive, pipeline
//  4. NewApplication: services, middleware, routes, server
//
// # Usage
//
//	application, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains the server within
// Server.ShutdownTimeout, closes the archive and flushes telemetry.
// The app does not call os.Exit; the main function controls the exit code.
package app
