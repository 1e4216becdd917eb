// Package cmdcache caches recorded command buffers per swapchain image
// and tracks their dirty state, so static command streams are
// re-recorded only when an upstream binding actually changes identity.
// Per-frame constants that do not require re-recording go through the
// lightweight Patch path instead.
package cmdcache

import (
	"fmt"

	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/resource"
)

// RecordFunc re-records the command buffer for one image index.
type RecordFunc func(buf resource.CommandBuffer, imageIndex int) error

// PatchFunc applies a per-frame update (push-constant style) to an
// already-recorded buffer.
type PatchFunc func(buf resource.CommandBuffer, imageIndex int) error

type entry struct {
	buf   resource.CommandBuffer
	dirty bool
}

// Cache holds one command buffer per swapchain image with a dirty
// flag. Newly allocated entries start dirty so the first Execute
// records them.
type Cache struct {
	entries []entry
	watched map[string]resource.Value
	records int
}

// New allocates a cache sized to the swapchain image count, adopting
// the given pre-allocated command buffers. All entries start dirty.
func New(bufs []resource.CommandBuffer) *Cache {
	c := &Cache{
		entries: make([]entry, len(bufs)),
		watched: make(map[string]resource.Value),
	}
	for i, b := range bufs {
		c.entries[i] = entry{buf: b, dirty: true}
	}
	return c
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.entries) }

// Observe compares the named upstream value against the last observed
// one and marks every entry dirty on an identity change. Observing a
// value for the first time also dirties the cache: the recorded
// commands cannot reference a binding that did not exist yet.
func (c *Cache) Observe(name string, v resource.Value) {
	prev, seen := c.watched[name]
	if seen && resource.Equal(prev, v) {
		return
	}
	c.watched[name] = v
	c.MarkAllDirty()
}

// MarkAllDirty marks every entry stale. Called whenever any input that
// influences the recorded commands changes identity: pipeline, layout,
// descriptor set, vertex/index buffer, render pass.
func (c *Cache) MarkAllDirty() {
	for i := range c.entries {
		c.entries[i].dirty = true
	}
}

// Dirty reports the dirty flag of the entry at imageIndex.
func (c *Cache) Dirty(imageIndex int) bool {
	if imageIndex < 0 || imageIndex >= len(c.entries) {
		return false
	}
	return c.entries[imageIndex].dirty
}

// GetOrRecord returns the command buffer for imageIndex, re-recording
// it first when the entry is dirty. The bool reports whether a record
// happened. An out-of-range index is a transient condition (swapchain
// recreation in flight) and returns ErrStaleFrame.
func (c *Cache) GetOrRecord(imageIndex int, record RecordFunc) (resource.CommandBuffer, bool, error) {
	if imageIndex < 0 || imageIndex >= len(c.entries) {
		return 0, false, fmt.Errorf("%w: image index %d of %d", node.ErrStaleFrame, imageIndex, len(c.entries))
	}
	e := &c.entries[imageIndex]
	if !e.dirty {
		return e.buf, false, nil
	}
	if err := record(e.buf, imageIndex); err != nil {
		return 0, false, fmt.Errorf("record image %d: %w", imageIndex, err)
	}
	e.dirty = false
	c.records++
	return e.buf, true, nil
}

// Patch applies a per-frame update to the buffer at imageIndex without
// touching its dirty flag. This is the cheap path for values like push
// constants that change every frame but never force a structural
// re-record.
func (c *Cache) Patch(imageIndex int, patch PatchFunc) error {
	if imageIndex < 0 || imageIndex >= len(c.entries) {
		return fmt.Errorf("%w: image index %d of %d", node.ErrStaleFrame, imageIndex, len(c.entries))
	}
	return patch(c.entries[imageIndex].buf, imageIndex)
}

// Records returns the total number of re-records performed, for tests
// and diagnostics.
func (c *Cache) Records() int { return c.records }
