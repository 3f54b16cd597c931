// Package resolver computes wires for unresolved modules.
//
// The resolver never mutates the module graph. It works on a Snapshot and
// returns a Result that the caller commits; a stale result is rejected by
// the graph and recomputed.
package resolver

import (
	"sort"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"

	"gosgi/internal/module"
	"gosgi/internal/version"
	"gosgi/pkg/logging"
)

// Options tunes resolution behaviour.
type Options struct {
	// SelfWiring lets a module import a package from its own export.
	SelfWiring bool
}

// Resolver is the default wiring engine.
type Resolver struct {
	opts Options
	now  func() time.Time
}

// New returns a resolver with the given options.
func New(opts Options) *Resolver {
	return &Resolver{opts: opts, now: time.Now}
}

// Result is the outcome of one resolve pass.
type Result struct {
	// Requested holds the modules the caller asked for.
	Requested []module.ID
	// Resolved holds every module that becomes resolved when the result is
	// committed, including exporters pulled in transitively.
	Resolved []module.ID
	Wires    map[module.ID][]module.Wire
	// Failures holds one error per requested module that could not be resolved.
	Failures []*ResolutionError
}

// AllResolved reports whether every requested module is resolved once the
// result is committed.
func (r *Result) AllResolved() bool {
	return len(r.Failures) == 0
}

// FailureFor returns the failure recorded for id, if any.
func (r *Result) FailureFor(id module.ID) *ResolutionError {
	for _, f := range r.Failures {
		if f.Module == id {
			return f
		}
	}
	return nil
}

// pass holds the bookkeeping of a single Resolve call.
type pass struct {
	r      *Resolver
	snap   *module.Snapshot
	ids    []module.ID
	pool   sets.Set[module.ID]
	failed map[module.ID]*ResolutionError

	ok         sets.Set[module.ID]
	inProgress sets.Set[module.ID]
	wires      map[module.ID][]module.Wire
}

// Resolve wires the requested modules, or every unresolved module when
// requested is empty. Modules that cannot be resolved are reported in
// Result.Failures while the rest still resolve.
func (r *Resolver) Resolve(snap *module.Snapshot, requested []module.ID) (*Result, error) {
	p := &pass{
		r:      r,
		snap:   snap,
		ids:    snap.IDs(),
		pool:   sets.New[module.ID](),
		failed: make(map[module.ID]*ResolutionError),
	}
	for id := range snap.Modules {
		if !snap.Resolved(id) && !snap.Pending[id] {
			p.pool.Insert(id)
		}
	}

	var targets []module.ID
	if len(requested) == 0 {
		targets = sets.List(p.pool)
	} else {
		seen := sets.New[module.ID]()
		for _, id := range requested {
			if _, ok := snap.Modules[id]; !ok {
				return nil, &UnknownModuleError{Module: id}
			}
			if seen.Has(id) {
				continue
			}
			seen.Insert(id)
			targets = append(targets, id)
			if snap.Pending[id] {
				mod := snap.Modules[id]
				p.failed[id] = &ResolutionError{
					Module:       id,
					Bundle:       mod.Bundle,
					SymbolicName: mod.SymbolicName,
					Reason:       reasonPending,
				}
			}
		}
	}

	for {
		p.ok = sets.New[module.ID]()
		p.inProgress = sets.New[module.ID]()
		p.wires = make(map[module.ID][]module.Wire)

		for _, id := range targets {
			p.attempt(id)
		}
		if !p.invalidateBrokenAssumptions() {
			break
		}
	}

	res := &Result{
		Requested: targets,
		Resolved:  sets.List(p.ok),
		Wires:     p.wires,
	}
	for _, id := range targets {
		if f, ok := p.failed[id]; ok {
			res.Failures = append(res.Failures, f)
		}
	}
	logging.Debug("Resolver", "Resolved %d module(s), %d failure(s) for %d requested", len(res.Resolved), len(res.Failures), len(targets))
	return res, nil
}

// invalidateBrokenAssumptions fails every tentatively resolved module that
// ended up wired to a module which failed later in the pass. That happens
// when a dependency cycle was entered optimistically. It reports whether
// another pass is needed.
func (p *pass) invalidateBrokenAssumptions() bool {
	changed := false
	for _, id := range sets.List(p.ok) {
		for _, w := range p.wires[id] {
			if _, failed := p.failed[w.Exporter]; failed && w.Exporter != id {
				changed = true
				break
			}
		}
	}
	return changed
}

// attempt reports whether id can be resolved in this pass.
func (p *pass) attempt(id module.ID) bool {
	if p.snap.Resolved(id) {
		return true
	}
	if _, failed := p.failed[id]; failed {
		return false
	}
	if p.ok.Has(id) || p.inProgress.Has(id) {
		return true
	}
	if p.snap.Pending[id] {
		return false
	}

	mod := p.snap.Modules[id]
	p.inProgress.Insert(id)
	defer p.inProgress.Delete(id)

	var wires []module.Wire
	for _, req := range mod.Requirements {
		if req.Kind == module.RequirementDynamicImport {
			// Dynamic imports are wired on demand, never up front.
			continue
		}

		candidates := p.candidates(mod, req)
		var chosen *module.Capability
		for i := range candidates {
			c := candidates[i]
			if c.Module == id || p.attempt(c.Module) {
				chosen = &c
				break
			}
		}

		if chosen == nil {
			if req.Optional() {
				logging.Debug("Resolver", "Optional %s %s of %s left unwired", req.Kind, req.Name, mod)
				continue
			}
			reason := reasonNoCandidate
			if len(candidates) > 0 {
				reason = reasonNoResolvable
			}
			p.failed[id] = &ResolutionError{
				Module:       id,
				Bundle:       mod.Bundle,
				SymbolicName: mod.SymbolicName,
				Requirement:  req,
				Reason:       reason,
			}
			logging.Debug("Resolver", "Cannot resolve %s: %s", mod, p.failed[id])
			p.clearTentative(id)
			return false
		}

		wires = append(wires, module.Wire{
			Requirement: req,
			Capability:  *chosen,
			Importer:    id,
			Exporter:    chosen.Module,
			CreatedAt:   p.r.now(),
		})
	}

	p.ok.Insert(id)
	p.wires[id] = wires
	return true
}

// clearTentative drops the wires of a module that turned out unresolvable.
// Modules that already committed a wire to it are caught by
// invalidateBrokenAssumptions.
func (p *pass) clearTentative(id module.ID) {
	p.ok.Delete(id)
	delete(p.wires, id)
}

// candidates returns the capabilities that can satisfy req, best first.
func (p *pass) candidates(importer *module.Module, req module.Requirement) []module.Capability {
	var out []module.Capability
	for _, id := range p.ids {
		if p.snap.Pending[id] {
			continue
		}
		if !p.snap.Resolved(id) && !p.pool.Has(id) {
			continue
		}
		if _, failed := p.failed[id]; failed {
			continue
		}
		if id == importer.ID && !p.r.opts.SelfWiring {
			continue
		}
		owner := p.snap.Modules[id]
		for _, c := range owner.Capabilities {
			if Matches(req, c, owner) {
				out = append(out, c)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return p.better(out[i], out[j])
	})
	return out
}

// better ranks a above b: an already resolved exporter first, then the
// higher version, then the lower bundle id. The module id keeps the order
// total.
func (p *pass) better(a, b module.Capability) bool {
	ar, br := p.snap.Resolved(a.Module), p.snap.Resolved(b.Module)
	if ar != br {
		return ar
	}
	if c := version.Compare(a.Version, b.Version); c != 0 {
		return c > 0
	}
	ab, bb := p.snap.Modules[a.Module].Bundle, p.snap.Modules[b.Module].Bundle
	if ab != bb {
		return ab < bb
	}
	return a.Module < b.Module
}

// Matches reports whether capability c of module owner satisfies req.
func Matches(req module.Requirement, c module.Capability, owner *module.Module) bool {
	if !req.Kind.Satisfies(c.Kind) {
		return false
	}
	if !nameMatches(req, c.Name) {
		return false
	}
	if !req.Range.Includes(c.Version) {
		return false
	}
	for k, v := range req.Attributes {
		if c.Attributes[k] != v {
			return false
		}
	}
	for _, attr := range c.Mandatory {
		if !req.Specifies(attr) {
			return false
		}
	}
	if req.BundleSymbolicName != "" && req.BundleSymbolicName != owner.SymbolicName {
		return false
	}
	if req.BundleVersion != nil && !req.BundleVersion.Includes(owner.Version) {
		return false
	}
	return true
}

func nameMatches(req module.Requirement, name string) bool {
	if req.Kind != module.RequirementDynamicImport {
		return req.Name == name
	}
	switch {
	case req.Name == "*":
		return true
	case strings.HasSuffix(req.Name, ".*"):
		return strings.HasPrefix(name, strings.TrimSuffix(req.Name, "*"))
	default:
		return req.Name == name
	}
}
