package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"

	"gosgi/internal/module"
	"gosgi/internal/version"
)

func TestNew(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("New() returned nil")
	}
	if g.nodes == nil {
		t.Fatal("nodes map not initialized")
	}
	if len(g.nodes) != 0 {
		t.Fatalf("expected empty nodes map, got %d nodes", len(g.nodes))
	}
}

func TestAddNode(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []Node
		expected int
	}{
		{
			name:     "add single node",
			nodes:    []Node{{ID: 1, FriendlyName: "a"}},
			expected: 1,
		},
		{
			name: "add multiple nodes",
			nodes: []Node{
				{ID: 1, FriendlyName: "a"},
				{ID: 2, FriendlyName: "b", DependsOn: []NodeID{1}},
				{ID: 3, FriendlyName: "c", DependsOn: []NodeID{2}},
			},
			expected: 3,
		},
		{
			name: "replace existing node",
			nodes: []Node{
				{ID: 1, FriendlyName: "a"},
				{ID: 1, FriendlyName: "a updated", DependsOn: []NodeID{2}},
			},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			for _, n := range tt.nodes {
				g.AddNode(n)
			}
			if len(g.nodes) != tt.expected {
				t.Errorf("expected %d nodes, got %d", tt.expected, len(g.nodes))
			}
		})
	}
}

func TestReplaceNodeUpdatesDependents(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: 1})
	g.AddNode(Node{ID: 2})
	g.AddNode(Node{ID: 3, DependsOn: []NodeID{1}})
	g.AddNode(Node{ID: 3, DependsOn: []NodeID{2}})

	assert.Empty(t, g.Dependents(1))
	assert.Equal(t, []NodeID{3}, g.Dependents(2))
}

func TestGet(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: 7, FriendlyName: "seven", DependsOn: []NodeID{1}})

	n := g.Get(7)
	require.NotNil(t, n)
	assert.Equal(t, "seven", n.FriendlyName)
	assert.Nil(t, g.Get(8))

	// Mutating the input must not leak into the graph.
	deps := g.Dependencies(7)
	deps[0] = 99
	assert.Equal(t, []NodeID{1}, g.Dependencies(7))
	assert.Nil(t, g.Dependencies(8))
}

func TestDependentsClosure(t *testing.T) {
	// 4 -> 3 -> 2 -> 1, 5 -> 1, 6 isolated, 7 <-> 8 cycle on 2
	g := New()
	g.AddNode(Node{ID: 1})
	g.AddNode(Node{ID: 2, DependsOn: []NodeID{1}})
	g.AddNode(Node{ID: 3, DependsOn: []NodeID{2}})
	g.AddNode(Node{ID: 4, DependsOn: []NodeID{3}})
	g.AddNode(Node{ID: 5, DependsOn: []NodeID{1}})
	g.AddNode(Node{ID: 6})
	g.AddNode(Node{ID: 7, DependsOn: []NodeID{2, 8}})
	g.AddNode(Node{ID: 8, DependsOn: []NodeID{7}})

	assert.Equal(t, sets.New[NodeID](1, 2, 3, 4, 5, 7, 8), g.DependentsClosure(1))
	assert.Equal(t, sets.New[NodeID](3, 4), g.DependentsClosure(3))
	assert.Equal(t, sets.New[NodeID](6), g.DependentsClosure(6))
	assert.Equal(t, []NodeID{2, 5}, g.Dependents(1))
}

func TestFromSnapshot(t *testing.T) {
	mg := module.NewGraph()
	pc := module.Capability{Kind: module.CapabilityPackage, Name: "p", Version: version.MustParse("1.0")}
	a := mg.Add(&module.Module{Bundle: 1, SymbolicName: "a", Capabilities: []module.Capability{pc}})
	b := mg.Add(&module.Module{Bundle: 2, SymbolicName: "b"})

	w := module.Wire{Importer: b.ID, Exporter: a.ID, Capability: a.Capabilities[0]}
	self := module.Wire{Importer: a.ID, Exporter: a.ID, Capability: a.Capabilities[0]}
	require.NoError(t, mg.Commit(mg.Generation(), []module.ID{a.ID, b.ID}, map[module.ID][]module.Wire{
		a.ID: {self},
		b.ID: {w, w},
	}))

	g := FromSnapshot(mg.Snapshot())
	assert.Equal(t, []NodeID{a.ID}, g.Dependencies(b.ID))
	assert.Empty(t, g.Dependencies(a.ID))
	assert.Equal(t, []NodeID{b.ID}, g.Dependents(a.ID))
	assert.Equal(t, StateResolved, g.Get(a.ID).State)
	assert.Equal(t, module.BundleID(2), g.Get(b.ID).Bundle)
}
