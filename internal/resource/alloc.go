package resource

import "sync/atomic"

// handleCounter backs NextHandle. Handles only need identity, never
// dereferencing, so a process-wide counter is a sufficient allocator.
var handleCounter atomic.Uint64

// NextHandle returns a fresh, non-null handle. Every call returns a
// distinct value, which is what the dirty-cache and write-dedup layers
// compare against.
func NextHandle() Handle {
	return Handle(handleCounter.Add(1))
}
