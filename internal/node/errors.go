package node

import "errors"

// ErrPhase is returned when a slot access is illegal in the current
// phase, e.g. any input read during Setup.
var ErrPhase = errors.New("node: slot access illegal in this phase")

// ErrStaleFrame signals a transiently invalid frame or image index,
// typically observed while a swapchain recreation is in flight. It is
// non-fatal: the node skips its per-frame work and is retried next
// frame.
var ErrStaleFrame = errors.New("node: stale frame index")

// ErrUnknownSlot is returned for slot names not present in the node's
// schema.
var ErrUnknownSlot = errors.New("node: unknown slot")
