package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "gosgi"

// StateSource reports how many bundles are in each lifecycle state.
type StateSource interface {
	BundleStateCounts() map[string]int
}

// Recorder collects framework metrics. It implements the framework's
// Metrics interface and prometheus.Collector.
type Recorder struct {
	operations       *prometheus.CounterVec
	resolveDuration  prometheus.Histogram
	resolvedModules  prometheus.Counter
	failedModules    prometheus.Counter
	refreshDuration  prometheus.Histogram
	refreshedBundles prometheus.Counter
	bundlesDesc      *prometheus.Desc

	mu     sync.RWMutex
	source StateSource
}

// NewRecorder creates a recorder with no state source.
func NewRecorder() *Recorder {
	return &Recorder{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_operations_total",
				Help:      "Number of bundle lifecycle operations by operation and result.",
			}, []string{"operation", "result"},
		),
		resolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolve_duration_seconds",
				Help:      "Time taken by a resolver pass.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		resolvedModules: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolved_modules_total",
				Help:      "Number of modules resolved.",
			},
		),
		failedModules: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolution_failures_total",
				Help:      "Number of modules that failed to resolve.",
			},
		),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Time taken by a package refresh.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		refreshedBundles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refreshed_bundles_total",
				Help:      "Number of bundles refreshed.",
			},
		),
		bundlesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bundles"),
			"Number of installed bundles by lifecycle state.",
			[]string{"state"}, nil,
		),
	}
}

// SetStateSource attaches the source of the bundle state gauge.
func (r *Recorder) SetStateSource(s StateSource) {
	r.mu.Lock()
	r.source = s
	r.mu.Unlock()
}

// LifecycleOperation counts one lifecycle operation.
func (r *Recorder) LifecycleOperation(op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.operations.WithLabelValues(op, result).Inc()
}

// ResolveCompleted records one resolver pass.
func (r *Recorder) ResolveCompleted(d time.Duration, resolved, failed int) {
	r.resolveDuration.Observe(d.Seconds())
	r.resolvedModules.Add(float64(resolved))
	r.failedModules.Add(float64(failed))
}

// RefreshCompleted records one package refresh.
func (r *Recorder) RefreshCompleted(d time.Duration, refreshed int) {
	r.refreshDuration.Observe(d.Seconds())
	r.refreshedBundles.Add(float64(refreshed))
}

// Describe is part of the prometheus.Collector interface.
func (r *Recorder) Describe(ch chan<- *prometheus.Desc) {
	r.operations.Describe(ch)
	r.resolveDuration.Describe(ch)
	r.resolvedModules.Describe(ch)
	r.failedModules.Describe(ch)
	r.refreshDuration.Describe(ch)
	r.refreshedBundles.Describe(ch)
	ch <- r.bundlesDesc
}

// Collect is part of the prometheus.Collector interface.
func (r *Recorder) Collect(ch chan<- prometheus.Metric) {
	r.operations.Collect(ch)
	r.resolveDuration.Collect(ch)
	r.resolvedModules.Collect(ch)
	r.failedModules.Collect(ch)
	r.refreshDuration.Collect(ch)
	r.refreshedBundles.Collect(ch)

	r.mu.RLock()
	source := r.source
	r.mu.RUnlock()
	if source == nil {
		return
	}
	for state, n := range source.BundleStateCounts() {
		ch <- prometheus.MustNewConstMetric(r.bundlesDesc, prometheus.GaugeValue, float64(n), state)
	}
}

// Registry returns a registry holding the recorder and the Go runtime and
// process collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		r,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
