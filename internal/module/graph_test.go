package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosgi/internal/version"
)

func exporter(b BundleID, name, pkg string) *Module {
	return &Module{
		Bundle:       b,
		SymbolicName: name,
		Version:      version.MustParse("1.0"),
		Capabilities: []Capability{{Kind: CapabilityPackage, Name: pkg, Version: version.MustParse("1.0")}},
	}
}

func wire(importer, exporter *Module) Wire {
	return Wire{
		Requirement: Requirement{Kind: RequirementImportPackage, Name: exporter.Capabilities[0].Name, Module: importer.ID},
		Capability:  exporter.Capabilities[0],
		Importer:    importer.ID,
		Exporter:    exporter.ID,
	}
}

func TestGraphAddStampsIDs(t *testing.T) {
	g := NewGraph()
	m := g.Add(&Module{
		Bundle:       1,
		SymbolicName: "a",
		Capabilities: []Capability{{Kind: CapabilityPackage, Name: "p"}},
		Requirements: []Requirement{{Kind: RequirementImportPackage, Name: "q"}},
	})

	assert.Equal(t, ID(1), m.ID)
	assert.Equal(t, m.ID, m.Capabilities[0].Module)
	assert.Equal(t, m.ID, m.Requirements[0].Module)

	cur, ok := g.Current(1)
	require.True(t, ok)
	assert.Same(t, m, cur)
	assert.Equal(t, Unresolved, g.State(m.ID))
}

func TestGraphCommitAndStale(t *testing.T) {
	g := NewGraph()
	a := g.Add(exporter(1, "a", "p"))
	b := g.Add(exporter(2, "b", "q"))

	snap := g.Snapshot()
	require.NoError(t, g.Commit(snap.Generation, []ID{a.ID, b.ID}, map[ID][]Wire{b.ID: {wire(b, a)}}))
	assert.Equal(t, Resolved, g.State(a.ID))
	assert.Equal(t, Resolved, g.State(b.ID))
	assert.Len(t, g.Wires(b.ID), 1)

	// The snapshot is now stale.
	err := g.Commit(snap.Generation, []ID{a.ID}, nil)
	assert.ErrorIs(t, err, ErrStaleSnapshot)
}

func TestGraphUnresolveCascades(t *testing.T) {
	g := NewGraph()
	a := g.Add(exporter(1, "a", "p"))
	b := g.Add(exporter(2, "b", "q"))
	c := g.Add(exporter(3, "c", "r"))

	require.NoError(t, g.Commit(g.Generation(), []ID{a.ID, b.ID, c.ID}, map[ID][]Wire{
		b.ID: {wire(b, a)},
		c.ID: {wire(c, b)},
	}))

	changed := g.Unresolve(a.ID)
	assert.Equal(t, []ID{a.ID, b.ID, c.ID}, changed)
	for _, id := range []ID{a.ID, b.ID, c.ID} {
		assert.Equal(t, Unresolved, g.State(id))
		assert.Empty(t, g.Wires(id))
	}
}

func TestGraphRetireKeepsPendingWhileWired(t *testing.T) {
	g := NewGraph()
	a := g.Add(exporter(1, "a", "p"))
	b := g.Add(exporter(2, "b", "q"))
	require.NoError(t, g.Commit(g.Generation(), []ID{a.ID, b.ID}, map[ID][]Wire{b.ID: {wire(b, a)}}))

	// Updating bundle 1 keeps revision 0 alive because b imports from it.
	a2 := exporter(1, "a", "p")
	a2.Revision = 1
	a2 = g.Add(a2)

	assert.True(t, g.IsPending(a.ID))
	assert.Equal(t, []ID{a.ID}, g.Pending())
	cur, _ := g.Current(1)
	assert.Equal(t, a2.ID, cur.ID)
	assert.Len(t, g.BundleModules(1), 2)

	changed := g.Remove(a.ID)
	assert.Equal(t, []ID{b.ID}, changed)
	assert.Empty(t, g.Pending())
	_, ok := g.Module(a.ID)
	assert.False(t, ok)
}

func TestGraphRetireDropsUnwired(t *testing.T) {
	g := NewGraph()
	a := g.Add(exporter(1, "a", "p"))

	assert.False(t, g.Retire(1))
	_, ok := g.Module(a.ID)
	assert.False(t, ok)
	_, ok = g.Current(1)
	assert.False(t, ok)
}

func TestGraphInboundWires(t *testing.T) {
	g := NewGraph()
	a := g.Add(exporter(1, "a", "p"))
	b := g.Add(exporter(2, "b", "q"))
	c := g.Add(exporter(3, "c", "r"))
	require.NoError(t, g.Commit(g.Generation(), []ID{a.ID, b.ID, c.ID}, map[ID][]Wire{
		b.ID: {wire(b, a)},
		c.ID: {wire(c, a)},
	}))

	in := g.InboundWires(a.ID)
	require.Len(t, in, 2)
	assert.Equal(t, b.ID, in[0].Importer)
	assert.Equal(t, c.ID, in[1].Importer)
	assert.Equal(t, []ID{b.ID, c.ID}, g.Dependents(a.ID))
}

func TestSnapshotIsACopy(t *testing.T) {
	g := NewGraph()
	a := g.Add(exporter(1, "a", "p"))
	snap := g.Snapshot()

	require.NoError(t, g.Commit(snap.Generation, []ID{a.ID}, nil))
	assert.False(t, snap.Resolved(a.ID))
	assert.Equal(t, []ID{a.ID}, snap.IDs())
}

func TestRequirementSpecifies(t *testing.T) {
	r := Requirement{
		Kind:               RequirementImportPackage,
		Name:               "p",
		Range:              version.Any,
		Attributes:         map[string]string{"vendor": "acme"},
		BundleSymbolicName: "a",
	}
	assert.True(t, r.Specifies("vendor"))
	assert.True(t, r.Specifies(AttrBundleSymbolicName))
	assert.False(t, r.Specifies(AttrBundleVersion))
	assert.False(t, r.Specifies(AttrVersion))

	r.Range = version.MustParseRange("[1,2)")
	assert.True(t, r.Specifies(AttrVersion))
}
