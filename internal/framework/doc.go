// Package framework drives the bundle lifecycle.
//
// A Framework owns the installed bundles, the module graph they resolve
// into, the service registry and the event dispatcher. Bundles move
// through the usual states:
//
//	INSTALLED -> RESOLVED -> STARTING -> ACTIVE -> STOPPING -> RESOLVED
//	any state except UNINSTALLED -> UNINSTALLED
//
// Resolution runs on an immutable snapshot of the module graph and is
// committed atomically; when the graph changed in the meantime the result
// is recomputed. Lifecycle operations on one bundle are serialized by a
// per-bundle lock, operations on different bundles run concurrently.
//
// Updating or uninstalling a bundle that other resolved modules are wired
// to keeps its old module alive as removal pending. RefreshPackages hands
// the cleanup to the refresh worker in internal/orchestrator.
//
// Bundle 0 is the system bundle. It represents the framework itself:
// starting it starts the framework, stopping it stops the framework, and
// it exports the configured system packages.
//
// Events are delivered synchronously. Listeners and activators must not
// start, stop, update or uninstall the bundle they are being called for.
package framework
