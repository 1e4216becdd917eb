// Package node defines the four-phase node contract (Setup, Compile,
// Execute, Cleanup), the per-type schema of typed input/output slots,
// the runtime instance that carries slot storage and lifecycle state,
// and the unified phase context through which node implementations read
// and write slots.
package node
