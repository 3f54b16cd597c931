package dependency

import (
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"

	"gosgi/internal/module"
)

// NodeState mirrors the resolution state of the module a node represents.
type NodeState int

const (
	StateUnknown NodeState = iota
	StateUnresolved
	StateResolved
)

// NodeID is the unique identifier for a node inside a dependency graph.
type NodeID = module.ID

// Node represents a module together with the modules it is wired to.
type Node struct {
	ID           NodeID
	FriendlyName string
	Bundle       module.BundleID
	DependsOn    []NodeID
	State        NodeState
}

// Graph is a very small helper to answer dependency queries. It is *not*
// thread-safe by itself; callers must synchronise if they write concurrently.
type Graph struct {
	nodes      map[NodeID]*Node
	dependents map[NodeID][]NodeID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[NodeID]*Node),
		dependents: make(map[NodeID][]NodeID),
	}
}

// FromSnapshot builds the graph of every module in snap, with one edge per
// distinct exporter the module is wired to. Self wires are ignored.
func FromSnapshot(snap *module.Snapshot) *Graph {
	g := New()
	for _, id := range snap.IDs() {
		m := snap.Modules[id]
		state := StateUnresolved
		if snap.Resolved(id) {
			state = StateResolved
		}
		deps := sets.New[NodeID]()
		for _, w := range snap.Wires[id] {
			if w.Exporter != id {
				deps.Insert(w.Exporter)
			}
		}
		g.AddNode(Node{
			ID:           id,
			FriendlyName: m.String(),
			Bundle:       m.Bundle,
			DependsOn:    sets.List(deps),
			State:        state,
		})
	}
	return g
}

// AddNode adds (or replaces) a node in the graph.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
		g.dependents = make(map[NodeID][]NodeID)
	}
	if old, ok := g.nodes[n.ID]; ok {
		for _, dep := range old.DependsOn {
			g.dependents[dep] = remove(g.dependents[dep], n.ID)
		}
	}
	// Copy to avoid external mutations
	copied := n
	copied.DependsOn = append([]NodeID(nil), n.DependsOn...)
	g.nodes[n.ID] = &copied
	for _, dep := range copied.DependsOn {
		g.dependents[dep] = append(g.dependents[dep], n.ID)
	}
}

// Get returns a pointer to the stored node or nil if it does not exist.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Dependencies returns a slice of immediate dependency IDs for the given node.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	if n, ok := g.nodes[id]; ok {
		depsCopy := make([]NodeID, len(n.DependsOn))
		copy(depsCopy, n.DependsOn)
		return depsCopy
	}
	return nil
}

// Dependents returns all node IDs that have a direct dependency on the given
// node, in ascending order.
func (g *Graph) Dependents(id NodeID) []NodeID {
	res := append([]NodeID(nil), g.dependents[id]...)
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// DependentsClosure returns the roots plus every node that depends on any of
// them, directly or transitively.
func (g *Graph) DependentsClosure(roots ...NodeID) sets.Set[NodeID] {
	seen := sets.New[NodeID]()
	queue := append([]NodeID(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen.Has(id) {
			continue
		}
		seen.Insert(id)
		queue = append(queue, g.dependents[id]...)
	}
	return seen
}

func remove(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
