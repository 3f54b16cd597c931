package formatting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gosgi/internal/framework"
	"gosgi/internal/module"
	"gosgi/internal/services"
)

// BundlesTable lists bundles with their state and start level.
func BundlesTable(bundles []*framework.Bundle) Table {
	t := Table{
		Title:   "Bundles",
		Headers: []string{"ID", "STATE", "LEVEL", "NAME", "VERSION", "LOCATION"},
		Keys:    []string{"id", "state", "level", "symbolicName", "version", "location"},
		Empty:   "No bundles installed",
	}
	for _, b := range bundles {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(int64(b.ID()), 10),
			b.State().String(),
			strconv.Itoa(b.StartLevel()),
			b.SymbolicName(),
			b.Version().String(),
			b.Location(),
		})
	}
	return t
}

// WiresTable lists the wires of the current modules of the given bundles,
// or of every bundle when none are given.
func WiresTable(g *module.Graph, bundles ...module.BundleID) Table {
	t := Table{
		Title:   "Wires",
		Headers: []string{"IMPORTER", "KIND", "REQUIREMENT", "EXPORTER", "CAPABILITY"},
		Keys:    []string{"importer", "kind", "requirement", "exporter", "capability"},
		Empty:   "No wires",
	}

	snap := g.Snapshot()
	want := make(map[module.BundleID]bool, len(bundles))
	for _, b := range bundles {
		want[b] = true
	}
	for _, id := range snap.IDs() {
		m := snap.Modules[id]
		if len(want) > 0 && !want[m.Bundle] {
			continue
		}
		for _, w := range snap.Wires[id] {
			exporter := strconv.FormatInt(int64(w.Exporter), 10)
			if exp, ok := snap.Modules[w.Exporter]; ok {
				exporter = exp.String()
			}
			t.Rows = append(t.Rows, []string{
				m.String(),
				w.Requirement.Kind.String(),
				fmt.Sprintf("%s %s", w.Requirement.Name, w.Requirement.Range),
				exporter,
				fmt.Sprintf("%s %s", w.Capability.Name, w.Capability.Version),
			})
		}
	}
	return t
}

// PackagesTable lists exported packages and who imports them.
func PackagesTable(pkgs []framework.ExportedPackage) Table {
	t := Table{
		Title:   "Exported packages",
		Headers: []string{"PACKAGE", "VERSION", "EXPORTER", "IMPORTERS", "PENDING"},
		Keys:    []string{"name", "version", "exporter", "importers", "removalPending"},
		Empty:   "No exported packages",
	}
	sorted := append([]framework.ExportedPackage(nil), pkgs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Version.Compare(sorted[j].Version) > 0
	})
	for _, p := range sorted {
		t.Rows = append(t.Rows, []string{
			p.Name,
			p.Version.String(),
			strconv.FormatInt(int64(p.Exporter), 10),
			joinIDs(p.Importers),
			strconv.FormatBool(p.RemovalPending),
		})
	}
	return t
}

// ServicesTable lists service registrations.
func ServicesTable(refs []services.Reference) Table {
	t := Table{
		Title:   "Services",
		Headers: []string{"ID", "BUNDLE", "CONTRACTS", "RANKING", "PROPERTIES"},
		Keys:    []string{"id", "bundle", "contracts", "ranking", "properties"},
		Empty:   "No services registered",
	}
	for _, r := range refs {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(int64(r.ID), 10),
			strconv.FormatInt(int64(r.Bundle), 10),
			strings.Join(r.Contracts, ","),
			strconv.Itoa(r.Ranking),
			formatProperties(r.Properties),
		})
	}
	return t
}

// HeadersTable describes one bundle's descriptor.
func HeadersTable(b *framework.Bundle) Table {
	md := b.Metadata()
	t := Table{
		Title:   fmt.Sprintf("Bundle %d", b.ID()),
		Headers: []string{"HEADER", "VALUE"},
		Keys:    []string{"header", "value"},
	}
	add := func(k, v string) {
		if v != "" {
			t.Rows = append(t.Rows, []string{k, v})
		}
	}
	add("symbolicName", md.SymbolicName)
	add("version", md.Version.String())
	add("location", b.Location())
	add("state", b.State().String())
	add("revision", strconv.Itoa(b.Revision()))
	add("activator", md.Activator)
	for _, c := range md.Capabilities {
		if c.Kind == module.CapabilityPackage {
			add("export", fmt.Sprintf("%s;version=%s", c.Name, c.Version))
		}
	}
	for _, r := range md.Requirements {
		add(r.Kind.String(), fmt.Sprintf("%s;version=%q;resolution=%s", r.Name, r.Range, r.Resolution))
	}
	return t
}

func joinIDs(ids []module.BundleID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, ",")
}

func formatProperties(p services.Properties) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, p[k])
	}
	return strings.Join(parts, ",")
}
