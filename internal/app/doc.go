// Package app wires the engine together: logger construction, graph
// description loading, node type registration, graph building, the
// frame loop, and teardown.
package app
