// Package module holds the resolvable model of the framework and the wire
// graph that owns it.
//
// A Module is one revision of a bundle. Capabilities describe what a module
// offers (an exported package, its own bundle identity) and Requirements
// describe what it needs (an imported package, a required bundle, a dynamic
// import). Both refer to their module by ID rather than by pointer; modules
// live in the Graph arena, so dropping a module is a single map delete plus
// the removal of its wires.
//
// The Graph is the only mutable shared state in the core. Every mutation
// happens under its write lock and bumps a generation counter. Readers take
// a Snapshot, which is an immutable copy they can walk without holding any
// lock; the resolver works entirely on snapshots and its result is applied
// with Commit, which rejects results computed from a stale generation.
package module
