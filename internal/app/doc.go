// Package app bootstraps and runs a gosgi framework process.
//
// The package ties the framework to its supporting components:
//
//   - Bootstrap (bootstrap.go): logging setup and configuration loading
//   - Configuration (config.go): runtime flags passed in from the command line
//   - Services (services.go): the framework, the Prometheus recorder and
//     server, and the hot deploy watcher
//   - Modes (modes.go): the run loop, optionally with the interactive console
//
// # Run loop
//
// Run starts the framework, then the metrics endpoint and the deploy watcher
// when they are enabled, and reports readiness to systemd. The process keeps
// running until one of the following happens:
//
//   - SIGINT or SIGTERM is received
//   - the caller's context is cancelled
//   - the framework stops itself (for example via the console shutdown command)
//   - the console exits
//
// Shutdown reports STOPPING to systemd, stops the deploy watcher, stops the
// framework and waits up to shutdownTimeout for it, then stops the metrics
// endpoint.
//
// Example:
//
//	cfg := app.NewConfig(false, true, "/etc/gosgi")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
package app
