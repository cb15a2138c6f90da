// Package app wires rosterlink together and manages the server lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config.yaml and ROSTERLINK_* variables
//	2. Initialize logging and OpenTelemetry
//	3. Create the result cache and the configured sources (Canvas, Sheets)
//	4. Build the reconciliation, grading and health services
//	5. Mount handlers behind the middleware chain
//	6. Create the HTTP server
//
// Commands that never serve HTTP use NewWithConfig for the services and
// call Close when done.
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests within
// the configured shutdown timeout, stops the cache janitor and flushes
// telemetry. The package never calls os.Exit.
package app
