// Package binder gathers heterogeneous GPU resource values from a
// node's variadic inputs, type-checks them against shader reflection
// data, and produces the per-frame descriptor write operations. One
// descriptor set per swapchain image is mandatory: writing a set that
// an in-flight command buffer still references is a correctness
// hazard, not a performance concern.
package binder
