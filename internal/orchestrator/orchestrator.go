package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gosgi/internal/events"
	"gosgi/internal/module"
	"gosgi/pkg/logging"
)

// BundleInfo is the part of a bundle's state a refresh needs.
type BundleInfo struct {
	ID           module.BundleID
	SymbolicName string
	Uninstalled  bool
	// Running is true for STARTING and ACTIVE bundles.
	Running    bool
	StartLevel int
}

// Host is the framework as seen by the refresh worker. Stop and start are
// transient: they must not change a bundle's persistent start mark.
type Host interface {
	Snapshot() *module.Snapshot
	BundleInfo(id module.BundleID) (BundleInfo, bool)
	StopBundle(id module.BundleID) error
	StartBundle(id module.BundleID) error
	// RefreshBundle discards every module of the bundle and installs a
	// fresh, unresolved revision of its current content.
	RefreshBundle(id module.BundleID) error
	// PurgeBundle discards every module of an uninstalled bundle.
	PurgeBundle(id module.BundleID) error
	ResolveBundle(id module.BundleID) error
	Events() *events.Dispatcher
}

// Metrics receives refresh measurements.
type Metrics interface {
	RefreshCompleted(d time.Duration, refreshed int)
}

// Config holds the configuration for the orchestrator.
type Config struct {
	Host Host
	// StartLevels orders bundles by start level before bundle id. When
	// false every bundle counts as level 1.
	StartLevels bool
	Metrics     Metrics
}

// Outcome reports what became of a refresh request.
type Outcome struct {
	// Refreshed counts the bundles refreshed or purged.
	Refreshed int
	// Discarded is set when the worker stopped before the request ran.
	Discarded bool
}

type job struct {
	bundles []module.BundleID
	done    chan Outcome
}

func (j job) finish(out Outcome) {
	j.done <- out
	close(j.done)
}

// Orchestrator runs package refreshes one at a time on a dedicated worker.
type Orchestrator struct {
	host        Host
	startLevels bool
	metrics     Metrics

	// runMu serializes refreshes, whether run by the worker or inline.
	runMu sync.Mutex

	mu      sync.Mutex
	jobs    chan job
	running bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New creates a new orchestrator. Call Start to launch the worker.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		host:        cfg.Host,
		startLevels: cfg.StartLevels,
		metrics:     cfg.Metrics,
	}
}

// Start launches the refresh worker. It stops when ctx is cancelled or
// Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return fmt.Errorf("refresh worker already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	o.jobs = make(chan job, 16)
	o.cancel = cancel
	o.running = true
	o.wg.Add(1)
	go o.worker(ctx, o.jobs)

	logging.Debug("Refresh", "Refresh worker started")
	return nil
}

// Stop stops the worker after the refresh in progress, if any. Queued
// requests are not run; their channels deliver a discarded Outcome.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	o.cancel()
	o.mu.Unlock()

	o.wg.Wait()
	logging.Debug("Refresh", "Refresh worker stopped")
	return nil
}

func (o *Orchestrator) worker(ctx context.Context, jobs chan job) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			o.discard(jobs)
			return
		case j := <-jobs:
			if ctx.Err() != nil {
				j.finish(Outcome{Discarded: true})
				o.discard(jobs)
				return
			}
			j.finish(Outcome{Refreshed: o.run(j.bundles)})
		}
	}
}

func (o *Orchestrator) discard(jobs chan job) {
	for {
		select {
		case j := <-jobs:
			logging.Debug("Refresh", "Discarding queued refresh of %v", j.bundles)
			j.finish(Outcome{Discarded: true})
		default:
			return
		}
	}
}

// RefreshPackages queues a refresh of the given bundles, or of the bundles
// with removal pending modules when bundles is empty. The returned channel
// delivers one Outcome and is then closed. Without a running worker the
// refresh runs in the caller's goroutine.
func (o *Orchestrator) RefreshPackages(bundles []module.BundleID) <-chan Outcome {
	j := job{bundles: append([]module.BundleID(nil), bundles...), done: make(chan Outcome, 1)}

	o.mu.Lock()
	if o.running {
		select {
		case o.jobs <- j:
			o.mu.Unlock()
			return j.done
		default:
			logging.Warn("Refresh", "Refresh queue full, running request inline")
		}
	}
	o.mu.Unlock()

	j.finish(Outcome{Refreshed: o.run(j.bundles)})
	return j.done
}

// run performs one refresh and returns how many bundles it refreshed or
// purged.
func (o *Orchestrator) run(requested []module.BundleID) int {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	start := time.Now()
	plan := o.Plan(requested)
	logging.Info("Refresh", "Refreshing %d bundle(s), purging %d, restarting %d",
		len(plan.Refresh), len(plan.Uninstall), len(plan.Stop))

	for i := len(plan.Stop) - 1; i >= 0; i-- {
		b := plan.Stop[i]
		if err := o.host.StopBundle(b.ID); err != nil {
			o.fireError(b, fmt.Errorf("failed to stop bundle for refresh: %w", err))
		}
	}

	for i := len(plan.Refresh) - 1; i >= 0; i-- {
		b := plan.Refresh[i]
		if err := o.host.RefreshBundle(b.ID); err != nil {
			o.fireError(b, fmt.Errorf("failed to refresh bundle: %w", err))
		}
	}
	for i := len(plan.Uninstall) - 1; i >= 0; i-- {
		b := plan.Uninstall[i]
		if err := o.host.PurgeBundle(b.ID); err != nil {
			o.fireError(b, fmt.Errorf("failed to purge bundle: %w", err))
		}
	}

	for _, b := range plan.Refresh {
		if err := o.host.ResolveBundle(b.ID); err != nil {
			o.fireError(b, err)
		}
	}

	for _, b := range plan.Stop {
		if err := o.host.StartBundle(b.ID); err != nil {
			o.fireError(b, fmt.Errorf("failed to restart bundle after refresh: %w", err))
		}
	}

	refreshed := len(plan.Refresh) + len(plan.Uninstall)
	if o.metrics != nil {
		o.metrics.RefreshCompleted(time.Since(start), refreshed)
	}
	o.host.Events().FireFramework(events.ReasonPackagesRefreshed, module.SystemBundleID, "", nil)
	return refreshed
}

func (o *Orchestrator) fireError(b BundleInfo, err error) {
	logging.Error("Refresh", err, "Refresh of bundle %s [%d] failed", b.SymbolicName, b.ID)
	o.host.Events().FireFramework(events.ReasonFrameworkError, b.ID, b.SymbolicName, err)
}
