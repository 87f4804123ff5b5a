// Package app wires the example notes service together: configuration,
// structured logging, OpenTelemetry, the response dispatcher, services,
// and the chi router.
//
// # Initialization Flow
//
//  1. Validate the configuration
//  2. Build the slog logger and OpenTelemetry providers
//  3. Create the respond.Dispatcher with the configured serializer
//  4. Initialize services and register readiness checks
//  5. Mount middleware and handlers
//
// Every route, including unknown paths and disallowed methods, answers
// with an envelope produced by the dispatcher.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM and then shuts the server and the
// telemetry providers down. Errors are returned to the caller; the
// package never calls os.Exit.
package app
