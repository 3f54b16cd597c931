package framework

import (
	"fmt"
	"sort"
	"strings"

	"gosgi/internal/module"
	"gosgi/internal/orchestrator"
	"gosgi/internal/version"
	"gosgi/pkg/logging"
)

// ExportedPackage describes a package exported by a resolved module.
type ExportedPackage struct {
	Name           string
	Version        version.Version
	Exporter       module.BundleID
	Module         module.ID
	Importers      []module.BundleID
	RemovalPending bool
}

func (p ExportedPackage) String() string {
	return fmt.Sprintf("%s;version=%s", p.Name, p.Version)
}

// RequiredBundle describes a resolved module other bundles can require.
type RequiredBundle struct {
	SymbolicName   string
	Version        version.Version
	Bundle         module.BundleID
	Module         module.ID
	Requiring      []module.BundleID
	RemovalPending bool
}

// ExportedPackages lists the packages exported by the given bundles, or by
// every bundle when none are given. It returns nil when nothing is exported.
func (f *Framework) ExportedPackages(bundles ...module.BundleID) []ExportedPackage {
	filter := make(map[module.BundleID]bool, len(bundles))
	for _, b := range bundles {
		filter[b] = true
	}
	return f.exportedPackages(func(m *module.Module, c module.Capability) bool {
		return len(filter) == 0 || filter[m.Bundle]
	})
}

// ExportedPackagesByName lists every resolved export of the named package.
func (f *Framework) ExportedPackagesByName(name string) []ExportedPackage {
	return f.exportedPackages(func(_ *module.Module, c module.Capability) bool {
		return c.Name == name
	})
}

// ExportedPackage returns the highest version export of the named package.
func (f *Framework) ExportedPackage(name string) (ExportedPackage, bool) {
	pkgs := f.ExportedPackagesByName(name)
	if len(pkgs) == 0 {
		return ExportedPackage{}, false
	}
	best := pkgs[0]
	for _, p := range pkgs[1:] {
		if c := p.Version.Compare(best.Version); c > 0 || (c == 0 && p.Exporter < best.Exporter) {
			best = p
		}
	}
	return best, true
}

func (f *Framework) exportedPackages(keep func(*module.Module, module.Capability) bool) []ExportedPackage {
	snap := f.graph.Snapshot()
	importers := importersByCapability(snap, module.RequirementImportPackage)

	var res []ExportedPackage
	for _, id := range snap.IDs() {
		if !snap.Resolved(id) {
			continue
		}
		m := snap.Modules[id]
		for _, c := range m.Exports() {
			if !keep(m, c) {
				continue
			}
			res = append(res, ExportedPackage{
				Name:           c.Name,
				Version:        c.Version,
				Exporter:       m.Bundle,
				Module:         id,
				Importers:      importers[capKey{id, c.Name}],
				RemovalPending: snap.Pending[id],
			})
		}
	}
	return res
}

// RequiredBundles lists resolved bundles with the given symbolic name, or
// every resolved bundle when name is empty, with the bundles requiring
// them. It returns nil when nothing matches.
func (f *Framework) RequiredBundles(symbolicName string) []RequiredBundle {
	snap := f.graph.Snapshot()
	requirers := importersByCapability(snap, module.RequirementRequireBundle)

	var res []RequiredBundle
	for _, id := range snap.IDs() {
		m := snap.Modules[id]
		if !snap.Resolved(id) || m.Bundle == module.SystemBundleID {
			continue
		}
		if symbolicName != "" && m.SymbolicName != symbolicName {
			continue
		}
		res = append(res, RequiredBundle{
			SymbolicName:   m.SymbolicName,
			Version:        m.Version,
			Bundle:         m.Bundle,
			Module:         id,
			Requiring:      requirers[capKey{id, m.SymbolicName}],
			RemovalPending: snap.Pending[id],
		})
	}
	return res
}

type capKey struct {
	module module.ID
	name   string
}

// importersByCapability maps every exported capability to the sorted,
// distinct bundles wired to it through requirements of the given kind.
func importersByCapability(snap *module.Snapshot, kind module.RequirementKind) map[capKey][]module.BundleID {
	seen := make(map[capKey]map[module.BundleID]bool)
	for id, wires := range snap.Wires {
		importer := snap.Modules[id]
		for _, w := range wires {
			if w.Requirement.Kind != kind || w.Exporter == id {
				continue
			}
			k := capKey{w.Exporter, w.Capability.Name}
			if seen[k] == nil {
				seen[k] = make(map[module.BundleID]bool)
			}
			seen[k][importer.Bundle] = true
		}
	}
	out := make(map[capKey][]module.BundleID, len(seen))
	for k, set := range seen {
		ids := make([]module.BundleID, 0, len(set))
		for b := range set {
			ids = append(ids, b)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out[k] = ids
	}
	return out
}

// BundlesByName returns the installed bundles with the given symbolic name
// whose version lies in rng, highest version first. It returns nil when
// none match.
func (f *Framework) BundlesByName(symbolicName string, rng version.Range) []*Bundle {
	var res []*Bundle
	for _, b := range f.Bundles() {
		if b.SymbolicName() == symbolicName && rng.Includes(b.Version()) {
			res = append(res, b)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Version().Compare(res[j].Version()) > 0
	})
	return res
}

// RefreshPackages refreshes the given bundles, or only the ones with
// removal pending modules when none are given. The work runs on the
// refresh worker; the returned channel delivers the outcome once it
// completes or is discarded by a framework shutdown.
func (f *Framework) RefreshPackages(bundles ...module.BundleID) <-chan orchestrator.Outcome {
	return f.refresh.RefreshPackages(bundles)
}

// ModuleForPackage returns the module that provides pkg to the current
// module of bundle: the exporter of an import wire, the exporter reached
// through a require-bundle wire, or the bundle's own module when it
// exports the package.
func (f *Framework) ModuleForPackage(bundle module.BundleID, pkg string) (module.ID, bool) {
	m, ok := f.graph.Current(bundle)
	if !ok {
		return 0, false
	}
	wires := f.graph.Wires(m.ID)
	for _, w := range wires {
		if w.Requirement.Kind == module.RequirementImportPackage && w.Capability.Name == pkg {
			return w.Exporter, true
		}
	}
	for _, w := range wires {
		if w.Requirement.Kind != module.RequirementRequireBundle {
			continue
		}
		if exp, ok := f.graph.Module(w.Exporter); ok && exportsPackage(exp, pkg) {
			return w.Exporter, true
		}
	}
	if exportsPackage(m, pkg) {
		return m.ID, true
	}
	return 0, false
}

func exportsPackage(m *module.Module, pkg string) bool {
	for _, c := range m.Exports() {
		if c.Name == pkg {
			return true
		}
	}
	return false
}

// LoadedClass is the result of a class lookup.
type LoadedClass struct {
	Name    string
	Package string
	Bundle  module.BundleID
	Module  module.ID
}

// LoadClass looks up a fully qualified class name from a bundle's point of
// view. An imported package is searched only in its exporter; otherwise
// required bundles are searched in declaration order and finally the
// bundle's own content. An INSTALLED bundle is resolved first.
func (f *Framework) LoadClass(bundle module.BundleID, className string) (*LoadedClass, error) {
	b, err := f.Bundle(bundle)
	if err != nil {
		return nil, err
	}
	if err := f.resolveReported(b); err != nil {
		return nil, &ClassNotFoundError{Bundle: bundle, Class: className, Err: err}
	}

	idx := strings.LastIndex(className, ".")
	if idx <= 0 || idx == len(className)-1 {
		return nil, &ClassNotFoundError{Bundle: bundle, Class: className}
	}
	pkg, simple := className[:idx], className[idx+1:]

	m, ok := f.graph.Current(bundle)
	if !ok {
		return nil, &ClassNotFoundError{Bundle: bundle, Class: className}
	}
	found := func(owner *module.Module) *LoadedClass {
		return &LoadedClass{Name: className, Package: pkg, Bundle: owner.Bundle, Module: owner.ID}
	}

	wires := f.graph.Wires(m.ID)
	for _, w := range wires {
		if w.Requirement.Kind != module.RequirementImportPackage || w.Capability.Name != pkg {
			continue
		}
		if exp, ok := f.graph.Module(w.Exporter); ok && exp.HasClass(pkg, simple) {
			return found(exp), nil
		}
		logging.Debug("Framework", "Class %s not found in exporter %d of %s", className, w.Exporter, pkg)
		return nil, &ClassNotFoundError{Bundle: bundle, Class: className}
	}

	for _, w := range wires {
		if w.Requirement.Kind != module.RequirementRequireBundle {
			continue
		}
		if exp, ok := f.graph.Module(w.Exporter); ok && exportsPackage(exp, pkg) && exp.HasClass(pkg, simple) {
			return found(exp), nil
		}
	}

	if m.HasClass(pkg, simple) {
		return found(m), nil
	}
	return nil, &ClassNotFoundError{Bundle: bundle, Class: className}
}
