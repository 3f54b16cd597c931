// Package deploy installs bundles dropped into a directory.
//
// The Watcher scans the deploy directory at start and then follows it with
// fsnotify. Every *.yaml or *.yml file is a bundle descriptor whose
// location is "file:" followed by its absolute path:
//
//   - a new file is installed and, when auto start is on, started
//   - a changed file updates the bundle and refreshes its dependents
//   - a removed file uninstalls the bundle and refreshes packages
//
// Bursts of events for the same file are debounced into one change. After
// every change the target gets a chance to start bundles that could not be
// resolved earlier.
package deploy
