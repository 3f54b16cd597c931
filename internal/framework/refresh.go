package framework

import (
	"time"

	"gosgi/internal/events"
	"gosgi/internal/module"
	"gosgi/internal/orchestrator"
	"gosgi/pkg/logging"
)

// refreshHost exposes the framework to the refresh worker.
type refreshHost struct {
	fw *Framework
}

var _ orchestrator.Host = (*refreshHost)(nil)

func (h *refreshHost) Snapshot() *module.Snapshot {
	return h.fw.graph.Snapshot()
}

func (h *refreshHost) BundleInfo(id module.BundleID) (orchestrator.BundleInfo, bool) {
	b, ok := h.fw.lookup(id)
	if !ok {
		return orchestrator.BundleInfo{}, false
	}
	state := b.State()
	return orchestrator.BundleInfo{
		ID:           id,
		SymbolicName: b.SymbolicName(),
		Uninstalled:  state == StateUninstalled,
		Running:      state == StateActive || state == StateStarting,
		StartLevel:   b.StartLevel(),
	}, true
}

func (h *refreshHost) StopBundle(id module.BundleID) error {
	b, ok := h.fw.lookup(id)
	if !ok {
		return nil
	}
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()
	if err := h.fw.stopLocked(b, false); err != nil && !IsActivationError(err) {
		return err
	}
	return nil
}

func (h *refreshHost) StartBundle(id module.BundleID) error {
	b, ok := h.fw.lookup(id)
	if !ok {
		return nil
	}
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()
	if err := h.fw.startLocked(b); err != nil && !IsActivationError(err) {
		return err
	}
	return nil
}

// RefreshBundle discards every module of the bundle and adds a fresh
// revision built from the current descriptor.
func (h *refreshHost) RefreshBundle(id module.BundleID) error {
	fw := h.fw
	b, ok := fw.lookup(id)
	if !ok {
		return nil
	}
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if id == module.SystemBundleID || b.State() == StateUninstalled {
		return nil
	}

	var unresolved []module.ID
	old := fw.graph.BundleModules(id)
	for _, m := range old {
		unresolved = append(unresolved, fw.graph.Unresolve(m.ID)...)
	}
	fw.markUnresolved(unresolved)

	b.mu.Lock()
	b.revision++
	rev := b.revision
	md := b.md
	b.state = StateInstalled
	b.lastModified = time.Now()
	b.mu.Unlock()

	data := md.Raw
	if data == nil {
		if stored, err := fw.storage.Load(id, rev-1); err == nil {
			data = stored
		}
	}

	for _, m := range old {
		fw.graph.Remove(m.ID)
	}
	fw.graph.Add(md.Module(id, rev))

	if err := fw.persist(b, data); err != nil {
		logging.Error("Refresh", err, "Failed to persist revision %d of bundle %d", rev, id)
	}
	if err := fw.storage.Prune(id, rev); err != nil {
		logging.Error("Refresh", err, "Failed to prune old revisions of bundle %d", id)
	}
	logging.Debug("Refresh", "Bundle %s [%d] refreshed to revision %d", md.SymbolicName, id, rev)
	return nil
}

// PurgeBundle drops every module of an uninstalled bundle and forgets it.
func (h *refreshHost) PurgeBundle(id module.BundleID) error {
	fw := h.fw
	b, ok := fw.lookup(id)
	if !ok {
		return nil
	}
	var unresolved []module.ID
	for _, m := range fw.graph.BundleModules(id) {
		unresolved = append(unresolved, fw.graph.Remove(m.ID)...)
	}
	fw.markUnresolved(unresolved)
	fw.purge(b)
	logging.Debug("Refresh", "Purged uninstalled bundle %d", id)
	return nil
}

func (h *refreshHost) ResolveBundle(id module.BundleID) error {
	b, ok := h.fw.lookup(id)
	if !ok || b.State() == StateUninstalled {
		return nil
	}
	return h.fw.resolveBundle(b)
}

func (h *refreshHost) Events() *events.Dispatcher {
	return h.fw.events
}
