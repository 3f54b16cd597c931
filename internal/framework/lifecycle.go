package framework

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"gosgi/internal/api"
	"gosgi/internal/events"
	"gosgi/internal/metadata"
	"gosgi/internal/module"
	"gosgi/internal/resolver"
	"gosgi/internal/storage"
	"gosgi/pkg/logging"
)

// Install installs a bundle from the descriptor read from r. Installing a
// location that is already installed returns the existing bundle.
func (f *Framework) Install(location string, r io.Reader) (b *Bundle, err error) {
	defer func() { f.metrics.LifecycleOperation("install", err) }()

	if location == "" {
		return nil, fmt.Errorf("bundle location cannot be empty")
	}
	if err := f.checkActive("install"); err != nil {
		return nil, err
	}
	if existing, ok := f.BundleByLocation(location); ok {
		return existing, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle %s: %w", location, err)
	}
	md, err := metadata.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if existing, ok := f.byLocation[location]; ok {
		f.mu.Unlock()
		return existing, nil
	}
	if dup := f.duplicateLocked(md, 0); dup != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("bundle %s:%s is already installed as bundle %d", md.SymbolicName, md.Version, dup.id)
	}
	id := f.nextBundleID
	f.nextBundleID++
	b = &Bundle{
		fw:           f,
		id:           id,
		location:     location,
		state:        StateInstalled,
		md:           md,
		revision:     1,
		startLevel:   f.initialBundleLevel,
		lastModified: time.Now(),
	}
	f.bundles[id] = b
	f.byLocation[location] = b
	f.mu.Unlock()

	if err := f.persist(b, data); err != nil {
		f.mu.Lock()
		delete(f.bundles, id)
		delete(f.byLocation, location)
		f.mu.Unlock()
		if rmErr := f.storage.Remove(id); rmErr != nil {
			logging.Error("Framework", rmErr, "Failed to clean storage of bundle %d", id)
		}
		return nil, err
	}

	f.graph.Add(md.Module(id, 1))
	logging.Info("Framework", "Installed bundle %s [%d] from %s", md.SymbolicName, id, location)
	f.fireBundle(events.ReasonBundleInstalled, b)
	return b, nil
}

// duplicateLocked returns another live bundle with the same symbolic name
// and version as md. f.mu must be held.
func (f *Framework) duplicateLocked(md *metadata.Metadata, self module.BundleID) *Bundle {
	for _, other := range f.bundles {
		if other.id == self || other.id == module.SystemBundleID || other.State() == StateUninstalled {
			continue
		}
		omd := other.Metadata()
		if omd.SymbolicName == md.SymbolicName && omd.Version.Compare(md.Version) == 0 {
			return other
		}
	}
	return nil
}

func (f *Framework) persist(b *Bundle, data []byte) error {
	b.mu.RLock()
	rev := b.revision
	b.mu.RUnlock()
	if data != nil {
		if err := f.storage.Store(b.id, rev, bytes.NewReader(data)); err != nil {
			return err
		}
	}
	return f.saveRecord(b)
}

func (f *Framework) saveRecord(b *Bundle) error {
	if b.id == module.SystemBundleID {
		return nil
	}
	b.mu.RLock()
	rec := storage.Record{
		ID:         b.id,
		Location:   b.location,
		Revision:   b.revision,
		StartLevel: b.startLevel,
		AutoStart:  b.autoStart,
	}
	b.mu.RUnlock()
	return f.storage.SaveRecord(rec)
}

// StartBundle persistently marks the bundle for start. The bundle is
// started now unless start levels are enabled and its level is above the
// framework's current level.
func (f *Framework) StartBundle(id module.BundleID) error {
	b, err := f.operand("start", id)
	if err != nil {
		f.metrics.LifecycleOperation("start", err)
		return err
	}
	return f.startBundle(b)
}

func (f *Framework) startBundle(b *Bundle) (err error) {
	if b.id == module.SystemBundleID {
		return f.Start()
	}
	defer func() { f.metrics.LifecycleOperation("start", err) }()

	id := b.id
	if err := f.checkActive("start"); err != nil {
		return err
	}

	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.State() == StateUninstalled {
		return api.NewIllegalStateError("start", b.String(), StateUninstalled.String())
	}
	b.mu.Lock()
	b.autoStart = true
	b.mu.Unlock()
	if err := f.saveRecord(b); err != nil {
		logging.Error("Framework", err, "Failed to persist start mark of bundle %d", id)
	}

	if f.cfg.StartLevel.Enabled && b.StartLevel() > f.StartLevel() {
		logging.Info("Framework", "Bundle %s [%d] marked for start at level %d (framework at %d)",
			b.SymbolicName(), id, b.StartLevel(), f.StartLevel())
		return nil
	}
	err = f.startLocked(b)
	if resolver.IsResolutionError(err) {
		f.fireError(b, err)
	}
	return err
}

// startLocked runs the activator. b.lifecycle must be held.
func (f *Framework) startLocked(b *Bundle) error {
	switch b.State() {
	case StateActive:
		return nil
	case StateUninstalled, StateStarting, StateStopping:
		return api.NewIllegalStateError("start", b.String(), b.State().String())
	case StateInstalled:
		if err := f.resolveBundle(b); err != nil {
			return err
		}
	}

	ctx := newBundleContext(f, b)
	b.mu.Lock()
	b.state = StateStarting
	b.context = ctx
	activatorName := b.md.Activator
	b.mu.Unlock()
	f.fireBundle(events.ReasonBundleStarting, b)

	act, err := f.newActivator(activatorName)
	if err == nil && act != nil {
		err = callActivator(func() error { return act.Start(ctx) })
	}
	if err != nil {
		aerr := &ActivationError{Bundle: b.id, SymbolicName: b.SymbolicName(), Phase: "start", Err: err}
		f.cleanup(b)
		b.mu.Lock()
		b.state = StateResolved
		b.context = nil
		b.mu.Unlock()
		ctx.invalidate()
		logging.Error("Framework", err, "Failed to start bundle %s [%d]", b.SymbolicName(), b.id)
		f.fireError(b, aerr)
		return aerr
	}

	b.mu.Lock()
	b.state = StateActive
	b.activator = act
	b.mu.Unlock()
	logging.Info("Framework", "Started bundle %s [%d]", b.SymbolicName(), b.id)
	f.fireBundle(events.ReasonBundleStarted, b)
	return nil
}

func (f *Framework) newActivator(name string) (Activator, error) {
	if name == "" {
		return nil, nil
	}
	factory, ok := f.activatorFactory(name)
	if !ok {
		return nil, api.NewActivatorNotFoundError(name)
	}
	return factory(), nil
}

func callActivator(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn()
}

// StopBundle persistently clears the start mark and stops the bundle.
func (f *Framework) StopBundle(id module.BundleID) error {
	b, err := f.operand("stop", id)
	if err != nil {
		f.metrics.LifecycleOperation("stop", err)
		return err
	}
	return f.stopBundle(b)
}

func (f *Framework) stopBundle(b *Bundle) (err error) {
	if b.id == module.SystemBundleID {
		return f.Stop()
	}
	defer func() { f.metrics.LifecycleOperation("stop", err) }()

	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()
	return f.stopLocked(b, true)
}

// stopLocked runs the activator stop hook and releases everything the
// bundle registered. b.lifecycle must be held.
func (f *Framework) stopLocked(b *Bundle, persistent bool) error {
	if b.State() == StateUninstalled {
		return api.NewIllegalStateError("stop", b.String(), StateUninstalled.String())
	}
	if persistent {
		b.mu.Lock()
		b.autoStart = false
		b.mu.Unlock()
		if err := f.saveRecord(b); err != nil {
			logging.Error("Framework", err, "Failed to persist start mark of bundle %d", b.id)
		}
	}
	if !b.transition(StateActive, StateStopping) {
		return nil
	}
	f.fireBundle(events.ReasonBundleStopping, b)

	b.mu.RLock()
	act, ctx := b.activator, b.context
	b.mu.RUnlock()

	var err error
	if act != nil {
		err = callActivator(func() error { return act.Stop(ctx) })
	}
	f.cleanup(b)
	if ctx != nil {
		ctx.invalidate()
	}

	b.mu.Lock()
	b.state = StateResolved
	b.activator = nil
	b.context = nil
	b.mu.Unlock()
	f.fireBundle(events.ReasonBundleStopped, b)

	if err != nil {
		aerr := &ActivationError{Bundle: b.id, SymbolicName: b.SymbolicName(), Phase: "stop", Err: err}
		logging.Error("Framework", err, "Activator of bundle %s [%d] failed to stop", b.SymbolicName(), b.id)
		f.fireError(b, aerr)
		return aerr
	}
	logging.Info("Framework", "Stopped bundle %s [%d]", b.SymbolicName(), b.id)
	return nil
}

// cleanup releases the services and listeners a bundle left behind.
func (f *Framework) cleanup(b *Bundle) {
	if n := f.services.UnregisterAll(b.id); n > 0 {
		logging.Debug("Framework", "Unregistered %d leftover service(s) of bundle %d", n, b.id)
	}
	f.services.ReleaseAll(b.id)
	f.events.RemoveListeners(b.id)
}

// UpdateBundle installs a new revision of the bundle from r. An ACTIVE
// bundle is stopped first and restarted afterwards. The previous module
// stays removal pending while other modules are wired to it.
func (f *Framework) UpdateBundle(id module.BundleID, r io.Reader) error {
	b, err := f.operand("update", id)
	if err != nil {
		f.metrics.LifecycleOperation("update", err)
		return err
	}
	return f.updateBundle(b, r)
}

func (f *Framework) updateBundle(b *Bundle, r io.Reader) (err error) {
	defer func() { f.metrics.LifecycleOperation("update", err) }()
	id := b.id
	if id == module.SystemBundleID {
		return api.NewIllegalStateError("update", SystemBundleSymbolicName, f.system.State().String())
	}
	if err := f.checkActive("update"); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read update of bundle %d: %w", id, err)
	}

	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.State() == StateUninstalled {
		return api.NewIllegalStateError("update", b.String(), StateUninstalled.String())
	}
	wasActive := b.State() == StateActive
	if wasActive {
		if err := f.stopLocked(b, false); err != nil {
			logging.Warn("Framework", "Bundle %d failed to stop cleanly before update: %v", id, err)
		}
	}

	md, err := metadata.Parse(bytes.NewReader(data))
	if err == nil {
		f.mu.RLock()
		if dup := f.duplicateLocked(md, id); dup != nil {
			err = fmt.Errorf("bundle %s:%s is already installed as bundle %d", md.SymbolicName, md.Version, dup.id)
		}
		f.mu.RUnlock()
	}
	if err != nil {
		if wasActive {
			if rerr := f.startLocked(b); rerr != nil {
				logging.Error("Framework", rerr, "Failed to restart bundle %d after rejected update", id)
			}
		}
		return err
	}

	b.mu.Lock()
	prevState := b.state
	b.revision++
	rev := b.revision
	b.md = md
	b.state = StateInstalled
	b.lastModified = time.Now()
	b.mu.Unlock()

	if err := f.persist(b, data); err != nil {
		logging.Error("Framework", err, "Failed to persist revision %d of bundle %d", rev, id)
	}
	f.graph.Add(md.Module(id, rev))

	logging.Info("Framework", "Updated bundle %s [%d] to revision %d", md.SymbolicName, id, rev)
	if prevState == StateResolved {
		f.fireBundle(events.ReasonBundleUnresolved, b)
	}
	f.fireBundle(events.ReasonBundleUpdated, b)

	if wasActive {
		if err := f.startLocked(b); err != nil {
			return err
		}
	}
	return nil
}

// UninstallBundle uninstalls the bundle, stopping it first when ACTIVE.
// Its module stays removal pending while resolved modules are wired to it.
func (f *Framework) UninstallBundle(id module.BundleID) error {
	b, err := f.operand("uninstall", id)
	if err != nil {
		f.metrics.LifecycleOperation("uninstall", err)
		return err
	}
	return f.uninstallBundle(b)
}

func (f *Framework) uninstallBundle(b *Bundle) (err error) {
	defer func() { f.metrics.LifecycleOperation("uninstall", err) }()
	id := b.id
	if id == module.SystemBundleID {
		return api.NewIllegalStateError("uninstall", SystemBundleSymbolicName, f.system.State().String())
	}

	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.State() == StateUninstalled {
		return api.NewIllegalStateError("uninstall", b.String(), StateUninstalled.String())
	}
	if b.State() == StateActive {
		if err := f.stopLocked(b, false); err != nil {
			logging.Warn("Framework", "Bundle %d failed to stop cleanly before uninstall: %v", id, err)
		}
	}

	b.setState(StateUninstalled)
	b.mu.Lock()
	b.lastModified = time.Now()
	b.mu.Unlock()

	f.mu.Lock()
	delete(f.byLocation, b.location)
	f.mu.Unlock()

	if pending := f.graph.Retire(id); pending {
		logging.Info("Framework", "Uninstalled bundle %s [%d], module kept until refresh", b.SymbolicName(), id)
	} else {
		f.purge(b)
		logging.Info("Framework", "Uninstalled bundle %s [%d]", b.SymbolicName(), id)
	}
	f.fireBundle(events.ReasonBundleUninstalled, b)
	return nil
}

// operand returns the bundle a lifecycle operation by id applies to. Ids
// the framework never knew, or has forgotten, are not found; a bundle that
// is uninstalled but still known is in an illegal state.
func (f *Framework) operand(op string, id module.BundleID) (*Bundle, error) {
	b, ok := f.lookup(id)
	if !ok {
		return nil, api.NewBundleNotFoundError(int64(id))
	}
	if b.State() == StateUninstalled {
		return nil, api.NewIllegalStateError(op, b.String(), StateUninstalled.String())
	}
	return b, nil
}

// purge forgets an uninstalled bundle once none of its modules is alive.
func (f *Framework) purge(b *Bundle) {
	if len(f.graph.BundleModules(b.id)) > 0 {
		return
	}
	f.mu.Lock()
	delete(f.bundles, b.id)
	f.mu.Unlock()
	if err := f.storage.Remove(b.id); err != nil {
		logging.Error("Framework", err, "Failed to remove storage of bundle %d", b.id)
	}
}
