package module

import (
	"errors"
	"sort"
	"sync"
)

// ErrStaleSnapshot is returned by Commit when the graph changed after the
// snapshot the result was computed from. Callers take a new snapshot and retry.
var ErrStaleSnapshot = errors.New("module graph changed since snapshot")

type entry struct {
	mod     *Module
	state   ResolutionState
	wires   []Wire
	pending bool
}

// Graph owns every live module, its resolution state and its wires.
// It is safe for concurrent use.
type Graph struct {
	mu         sync.RWMutex
	nextID     ID
	generation uint64
	modules    map[ID]*entry
	current    map[BundleID]ID
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nextID:  1,
		modules: make(map[ID]*entry),
		current: make(map[BundleID]ID),
	}
}

// Add assigns an ID to m and makes it the current module of its bundle.
// The capabilities and requirements are stamped with the new ID. A previous
// current module of the same bundle is retired: it stays as removal pending
// while other modules are wired to it and is dropped otherwise.
func (g *Graph) Add(m *Module) *Module {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID
	g.nextID++

	stored := *m
	stored.ID = id
	stored.Capabilities = make([]Capability, len(m.Capabilities))
	for i, c := range m.Capabilities {
		c.Module = id
		stored.Capabilities[i] = c
	}
	stored.Requirements = make([]Requirement, len(m.Requirements))
	for i, r := range m.Requirements {
		r.Module = id
		stored.Requirements[i] = r
	}

	if prev, ok := g.current[m.Bundle]; ok {
		g.retireLocked(prev)
	}
	g.modules[id] = &entry{mod: &stored}
	g.current[m.Bundle] = id
	g.generation++
	return &stored
}

// Retire detaches the current module of bundle b, as uninstall does.
// It reports whether the module was kept as removal pending.
func (g *Graph) Retire(b BundleID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.current[b]
	if !ok {
		return false
	}
	delete(g.current, b)
	g.generation++
	return g.retireLocked(id)
}

func (g *Graph) retireLocked(id ID) bool {
	if len(g.dependentsLocked(id)) > 0 {
		g.modules[id].pending = true
		return true
	}
	g.removeLocked(id)
	return false
}

// Commit applies a resolver result computed from the snapshot with the given
// generation. Either every listed module becomes resolved with its wires or
// nothing changes.
func (g *Graph) Commit(generation uint64, resolved []ID, wires map[ID][]Wire) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if generation != g.generation {
		return ErrStaleSnapshot
	}
	for _, id := range resolved {
		if _, ok := g.modules[id]; !ok {
			return ErrStaleSnapshot
		}
	}
	if len(resolved) == 0 {
		return nil
	}
	for _, id := range resolved {
		e := g.modules[id]
		e.state = Resolved
		e.wires = append([]Wire(nil), wires[id]...)
	}
	g.generation++
	return nil
}

// Unresolve discards the wires of id and flips it back to unresolved.
// Every resolved module wired to it is unresolved as well, transitively.
// It returns all modules that changed state, id first.
func (g *Graph) Unresolve(id ID) []ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	changed := g.unresolveLocked(id, nil)
	if len(changed) > 0 {
		g.generation++
	}
	return changed
}

func (g *Graph) unresolveLocked(id ID, acc []ID) []ID {
	e, ok := g.modules[id]
	if !ok || e.state != Resolved {
		return acc
	}
	e.state = Unresolved
	e.wires = nil
	acc = append(acc, id)
	for _, dep := range g.dependentsLocked(id) {
		acc = g.unresolveLocked(dep, acc)
	}
	return acc
}

// Remove drops id from the graph after unresolving everything wired to it.
// It returns the modules that were unresolved as a consequence.
func (g *Graph) Remove(id ID) []ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.modules[id]; !ok {
		return nil
	}
	var changed []ID
	for _, dep := range g.dependentsLocked(id) {
		changed = g.unresolveLocked(dep, changed)
	}
	g.removeLocked(id)
	g.generation++
	return changed
}

func (g *Graph) removeLocked(id ID) {
	e, ok := g.modules[id]
	if !ok {
		return
	}
	if cur, ok := g.current[e.mod.Bundle]; ok && cur == id {
		delete(g.current, e.mod.Bundle)
	}
	delete(g.modules, id)
	g.generation++
}

func (g *Graph) dependentsLocked(id ID) []ID {
	var res []ID
	for mid, e := range g.modules {
		if mid == id || e.state != Resolved {
			continue
		}
		for _, w := range e.wires {
			if w.Exporter == id {
				res = append(res, mid)
				break
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Dependents returns the resolved modules holding a wire into id.
func (g *Graph) Dependents(id ID) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(id)
}

// Module returns the module with the given id.
func (g *Graph) Module(id ID) (*Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.modules[id]
	if !ok {
		return nil, false
	}
	return e.mod, true
}

// Current returns the current module of bundle b.
func (g *Graph) Current(b BundleID) (*Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.current[b]
	if !ok {
		return nil, false
	}
	return g.modules[id].mod, true
}

// BundleModules returns every live module of bundle b, removal pending ones
// included, ordered by revision.
func (g *Graph) BundleModules(b BundleID) []*Module {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var res []*Module
	for _, e := range g.modules {
		if e.mod.Bundle == b {
			res = append(res, e.mod)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Revision < res[j].Revision })
	return res
}

// State returns the resolution state of id. Unknown modules are unresolved.
func (g *Graph) State(id ID) ResolutionState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e, ok := g.modules[id]; ok {
		return e.state
	}
	return Unresolved
}

// Wires returns a copy of the wires id imports through.
func (g *Graph) Wires(id ID) []Wire {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e, ok := g.modules[id]; ok {
		return append([]Wire(nil), e.wires...)
	}
	return nil
}

// InboundWires returns the wires other modules hold into id.
func (g *Graph) InboundWires(id ID) []Wire {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var res []Wire
	for mid, e := range g.modules {
		if mid == id {
			continue
		}
		for _, w := range e.wires {
			if w.Exporter == id {
				res = append(res, w)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Importer < res[j].Importer })
	return res
}

// IsPending reports whether id is removal pending.
func (g *Graph) IsPending(id ID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.modules[id]
	return ok && e.pending
}

// Pending returns every removal pending module, ordered by id.
func (g *Graph) Pending() []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var res []ID
	for id, e := range g.modules {
		if e.pending {
			res = append(res, id)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Generation returns the current mutation counter.
func (g *Graph) Generation() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.generation
}

// Snapshot returns an immutable copy of the graph.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := &Snapshot{
		Generation: g.generation,
		Modules:    make(map[ID]*Module, len(g.modules)),
		States:     make(map[ID]ResolutionState, len(g.modules)),
		Wires:      make(map[ID][]Wire, len(g.modules)),
		Pending:    make(map[ID]bool),
		Current:    make(map[BundleID]ID, len(g.current)),
	}
	for id, e := range g.modules {
		s.Modules[id] = e.mod
		s.States[id] = e.state
		if len(e.wires) > 0 {
			s.Wires[id] = append([]Wire(nil), e.wires...)
		}
		if e.pending {
			s.Pending[id] = true
		}
	}
	for b, id := range g.current {
		s.Current[b] = id
	}
	return s
}

// Snapshot is a point-in-time copy of a Graph. It must not be mutated.
type Snapshot struct {
	Generation uint64
	Modules    map[ID]*Module
	States     map[ID]ResolutionState
	Wires      map[ID][]Wire
	Pending    map[ID]bool
	Current    map[BundleID]ID
}

// Resolved reports whether id was resolved when the snapshot was taken.
func (s *Snapshot) Resolved(id ID) bool {
	return s.States[id] == Resolved
}

// IDs returns every module id in the snapshot in ascending order.
func (s *Snapshot) IDs() []ID {
	ids := make([]ID, 0, len(s.Modules))
	for id := range s.Modules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
