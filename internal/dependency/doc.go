// Package dependency provides a small directed graph over modules, built from
// committed wires, used to answer "who depends on whom" questions.
//
// A node is a module; an edge from A to B means A holds a wire into B, so A
// depends on B. Unlike the module graph itself, this graph may contain
// cycles (two bundles importing from each other is legal), so every walk
// keeps a visited set.
//
// # Operations
//
// Dependencies: modules a node is directly wired to.
//
// Dependents: modules directly wired to a node.
//
// DependentsClosure: every module that transitively depends on any of the
// given modules. The refresh worker uses it to find what must be stopped and
// re-resolved when an exporter is updated or removed.
//
// # Thread Safety
//
// Graph is not thread-safe. It is built from an immutable module snapshot
// and normally lives for the duration of one computation.
package dependency
