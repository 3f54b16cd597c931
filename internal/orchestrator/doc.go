// Package orchestrator refreshes bundles after update and uninstall.
//
// A refresh throws away stale wiring. Updating or uninstalling a bundle
// leaves its old module alive as removal pending for as long as other
// resolved modules are wired to it; a refresh is what finally drops those
// modules and rewires their dependents.
//
// # Algorithm
//
// Given a set of bundles (or none, meaning "whatever is pending"):
//
//  1. Collect the bundles owning removal pending modules plus the requested ones.
//  2. Split uninstalled bundles off; they are purged instead of refreshed.
//  3. Grow the set with every bundle whose resolved module is wired,
//     directly or transitively, into a member. Running members also go to
//     the stop set.
//  4. Order everything by start level, then bundle id.
//  5. Stop the stop set in descending order.
//  6. Give every refreshed bundle a fresh revision and purge the
//     uninstalled ones, in descending order.
//  7. Resolve the refreshed bundles in ascending order.
//  8. Restart the stop set in ascending order.
//  9. Fire a single PACKAGES_REFRESHED framework event.
//
// Failures in steps 5 to 8 never abort the refresh; each one is reported as
// a framework ERROR event.
//
// # Concurrency
//
// Refreshes run on one worker goroutine started with Start. Requests are
// queued and executed strictly one after another; RefreshPackages returns a
// channel that delivers an Outcome when the request has been processed.
// Requests still queued when the worker stops are reported as discarded.
// The worker
// talks to the framework only through the Host interface.
package orchestrator
