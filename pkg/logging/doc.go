// Package logging provides the structured logging used across gosgi.
//
// This package wraps Go's standard slog package behind a small set of
// subsystem-tagged helpers so that every component logs in the same shape.
//
// # Log Levels
//   - **Debug**: resolver decisions, wire commits, listener delivery
//   - **Info**: bundle lifecycle transitions and framework start/stop
//   - **Warn**: recoverable problems such as dropped events
//   - **Error**: activator failures, resolution failures in batches
//
// # Usage Examples
//
//	import "gosgi/pkg/logging"
//
//	// Initialize with Info level logging to stdout
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//
//	logging.Info("Framework", "Installed bundle %d (%s)", id, location)
//	logging.Debug("Resolver", "Wired %s to bundle %d", pkg, exporter)
//	logging.Error("Refresh", err, "Failed to restart bundle %d", id)
//
// ## JSON Output
//
//	logging.Init(logging.FormatJSON, logging.LevelDebug, os.Stderr)
//
// # Subsystem Organization
//
//   - **Bootstrap**: application initialization
//   - **ConfigLoader**: configuration loading and validation
//   - **Framework**: bundle lifecycle and the module graph
//   - **Resolver**: wiring decisions
//   - **Refresh**: the refresh worker
//   - **Services**: the service registry
//   - **Deploy**: the hot deploy directory watcher
//
// # Thread Safety
//
// Logging is safe for concurrent use; the logger may be replaced with Init
// while other goroutines are logging.
package logging
