// Package graph implements the dependency graph and its compiler: edge
// wiring over named slots, topological ordering with cycle detection,
// full and partial (subgraph) recompilation with pause/resume events,
// per-frame execution in dependency order, and ordered teardown.
package graph
