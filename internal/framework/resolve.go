package framework

import (
	"errors"
	"fmt"
	"time"

	"gosgi/internal/events"
	"gosgi/internal/module"
	"gosgi/internal/resolver"
	"gosgi/pkg/logging"
)

// resolve runs the resolver for the given modules (every unresolved module
// when ids is empty) and commits the result. A commit that lost a race
// against another graph mutation is recomputed from a fresh snapshot.
func (f *Framework) resolve(ids []module.ID) (*resolver.Result, error) {
	retries := f.cfg.Resolver.CommitRetries
	if retries < 1 {
		retries = 1
	}

	for attempt := 1; attempt <= retries; attempt++ {
		snap := f.graph.Snapshot()

		var requested []module.ID
		for _, id := range ids {
			if !snap.Resolved(id) {
				requested = append(requested, id)
			}
		}
		if len(ids) > 0 && len(requested) == 0 {
			return &resolver.Result{Requested: ids}, nil
		}

		start := time.Now()
		res, err := f.resolver.Resolve(snap, requested)
		if err != nil {
			return nil, err
		}

		err = f.graph.Commit(snap.Generation, res.Resolved, res.Wires)
		if errors.Is(err, module.ErrStaleSnapshot) {
			logging.Debug("Framework", "Module graph changed during resolution, retrying (attempt %d/%d)", attempt, retries)
			continue
		}
		if err != nil {
			return nil, err
		}

		f.metrics.ResolveCompleted(time.Since(start), len(res.Resolved), len(res.Failures))
		f.markResolved(res.Resolved)
		return res, nil
	}
	return nil, fmt.Errorf("resolution abandoned after %d attempts: %w", retries, module.ErrStaleSnapshot)
}

// markResolved moves bundles whose current module became resolved from
// INSTALLED to RESOLVED. The module must still be resolved when the bundle
// state flips; an unresolve racing with the commit leaves it INSTALLED.
func (f *Framework) markResolved(ids []module.ID) {
	var changed []*Bundle
	for _, id := range ids {
		m, ok := f.graph.Module(id)
		if !ok {
			continue
		}
		b, ok := f.lookup(m.Bundle)
		if !ok || f.currentModuleID(b) != id {
			continue
		}
		stillResolved := func() bool { return f.graph.State(id) == module.Resolved }
		if b.transitionIf(StateInstalled, StateResolved, stillResolved) {
			changed = append(changed, b)
		}
	}
	for _, b := range changed {
		logging.Debug("Framework", "Bundle %s [%d] resolved", b.SymbolicName(), b.id)
		f.fireBundle(events.ReasonBundleResolved, b)
	}
}

// markUnresolved moves bundles whose current module lost its wires back to
// INSTALLED.
func (f *Framework) markUnresolved(ids []module.ID) {
	var changed []*Bundle
	for _, id := range ids {
		m, ok := f.graph.Module(id)
		if !ok {
			continue
		}
		b, ok := f.lookup(m.Bundle)
		if !ok || f.currentModuleID(b) != id {
			continue
		}
		if b.transition(StateResolved, StateInstalled) {
			changed = append(changed, b)
		}
	}
	for _, b := range changed {
		f.fireBundle(events.ReasonBundleUnresolved, b)
	}
}

// ResolveBundle resolves a single bundle. An already resolved bundle is a no-op.
func (f *Framework) ResolveBundle(id module.BundleID) error {
	b, err := f.Bundle(id)
	if err != nil {
		return err
	}
	return f.resolveReported(b)
}

// resolveReported is resolveBundle plus a framework ERROR event on failure.
func (f *Framework) resolveReported(b *Bundle) error {
	err := f.resolveBundle(b)
	if err != nil {
		f.fireError(b, err)
	}
	return err
}

// resolveBundle resolves an INSTALLED bundle. Callers decide how a failure
// is reported.
func (f *Framework) resolveBundle(b *Bundle) error {
	if b.State() != StateInstalled {
		return nil
	}
	mid := f.currentModuleID(b)
	res, err := f.resolve([]module.ID{mid})
	if err != nil {
		return err
	}
	if fail := res.FailureFor(mid); fail != nil {
		logging.Warn("Framework", "Bundle %s [%d] could not be resolved: %v", b.SymbolicName(), b.id, fail)
		return fail
	}
	return nil
}

// ResolveBundles resolves the given bundles, or every INSTALLED bundle when
// none are given. Failures of individual bundles do not stop the others and
// each is reported as a framework ERROR event. Unknown ids are skipped.
// It reports whether all of them ended up resolved.
func (f *Framework) ResolveBundles(ids ...module.BundleID) bool {
	allResolved := true
	var targets []*Bundle
	if len(ids) == 0 {
		targets = f.Bundles()
	} else {
		for _, id := range ids {
			b, err := f.Bundle(id)
			if err != nil {
				logging.Warn("Framework", "Skipping unknown bundle %d in resolve request", id)
				allResolved = false
				continue
			}
			targets = append(targets, b)
		}
	}

	var mids []module.ID
	for _, b := range targets {
		if b.State() == StateInstalled {
			mids = append(mids, f.currentModuleID(b))
		}
	}
	if len(mids) == 0 {
		return allResolved
	}

	res, err := f.resolve(mids)
	if err != nil {
		logging.Error("Framework", err, "Bulk resolve failed")
		f.fireError(nil, err)
		return false
	}
	for _, fail := range res.Failures {
		logging.Warn("Framework", "Bundle %s [%d] could not be resolved: %v", fail.SymbolicName, fail.Bundle, fail)
		b, _ := f.lookup(fail.Bundle)
		f.fireError(b, fail)
	}
	return allResolved && res.AllResolved()
}
