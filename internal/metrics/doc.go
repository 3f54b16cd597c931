// Package metrics exposes framework measurements to Prometheus.
//
// A Recorder is handed to the framework as its Metrics sink. It counts
// lifecycle operations, times resolver passes and package refreshes and,
// once a state source is attached, reports the number of bundles in each
// lifecycle state at scrape time. Server serves the recorder's registry on
// /metrics.
package metrics
