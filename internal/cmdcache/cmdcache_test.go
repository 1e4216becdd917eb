package cmdcache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/resource"
)

func newTestCache(n int) *Cache {
	bufs := make([]resource.CommandBuffer, n)
	for i := range bufs {
		bufs[i] = resource.CommandBuffer(100 + i)
	}
	return New(bufs)
}

func noRecord(buf resource.CommandBuffer, imageIndex int) error { return nil }

func TestEntriesStartDirty(t *testing.T) {
	c := newTestCache(3)
	for i := 0; i < 3; i++ {
		assert.True(t, c.Dirty(i), "image %d", i)
	}
}

func TestGetOrRecordClearsDirty(t *testing.T) {
	c := newTestCache(2)

	buf, recorded, err := c.GetOrRecord(0, noRecord)
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.Equal(t, resource.CommandBuffer(100), buf)
	assert.False(t, c.Dirty(0))
	assert.True(t, c.Dirty(1), "other entries stay dirty")

	_, recorded, err = c.GetOrRecord(0, noRecord)
	require.NoError(t, err)
	assert.False(t, recorded, "clean entry must not re-record")
	assert.Equal(t, 1, c.Records())
}

func TestObserve(t *testing.T) {
	t.Run("unchanged values cause zero re-records", func(t *testing.T) {
		c := newTestCache(2)
		for i := 0; i < 2; i++ {
			_, _, err := c.GetOrRecord(i, noRecord)
			require.NoError(t, err)
		}
		require.Equal(t, 2, c.Records())

		pipeline := resource.HandleVal{H: 42, Type: "pipeline"}
		c.Observe("pipeline", pipeline)
		c.Observe("pipeline", pipeline) // identical, already seen once
		// First observation dirties; settle it.
		for i := 0; i < 2; i++ {
			_, _, err := c.GetOrRecord(i, noRecord)
			require.NoError(t, err)
		}
		settled := c.Records()

		for frame := 0; frame < 10; frame++ {
			c.Observe("pipeline", pipeline)
			_, recorded, err := c.GetOrRecord(frame%2, noRecord)
			require.NoError(t, err)
			assert.False(t, recorded, "frame %d", frame)
		}
		assert.Equal(t, settled, c.Records())
	})

	t.Run("identity change dirties every image index", func(t *testing.T) {
		c := newTestCache(3)
		c.Observe("vertex_buffer", resource.BufferVal{H: 1})
		for i := 0; i < 3; i++ {
			_, _, err := c.GetOrRecord(i, noRecord)
			require.NoError(t, err)
		}

		c.Observe("vertex_buffer", resource.BufferVal{H: 2})
		for i := 0; i < 3; i++ {
			_, recorded, err := c.GetOrRecord(i, noRecord)
			require.NoError(t, err)
			assert.True(t, recorded, "image %d must re-record after identity change", i)
		}
	})

	t.Run("first observation dirties the cache", func(t *testing.T) {
		c := newTestCache(1)
		_, _, err := c.GetOrRecord(0, noRecord)
		require.NoError(t, err)
		require.False(t, c.Dirty(0))

		c.Observe("descriptor_set", resource.HandleVal{H: 7, Type: "descriptor_set"})
		assert.True(t, c.Dirty(0))
	})
}

func TestPatchDoesNotTouchDirtyState(t *testing.T) {
	c := newTestCache(1)
	_, _, err := c.GetOrRecord(0, noRecord)
	require.NoError(t, err)

	var patched int
	for frame := 0; frame < 5; frame++ {
		err := c.Patch(0, func(buf resource.CommandBuffer, imageIndex int) error {
			patched++
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 5, patched)
	assert.False(t, c.Dirty(0))
	assert.Equal(t, 1, c.Records(), "patching must never force a re-record")
}

func TestStaleIndex(t *testing.T) {
	c := newTestCache(2)

	_, _, err := c.GetOrRecord(5, noRecord)
	assert.ErrorIs(t, err, node.ErrStaleFrame)

	err = c.Patch(-1, func(resource.CommandBuffer, int) error { return nil })
	assert.ErrorIs(t, err, node.ErrStaleFrame)
}

func TestRecordFailureKeepsEntryDirty(t *testing.T) {
	c := newTestCache(1)
	boom := errors.New("boom")

	_, _, err := c.GetOrRecord(0, func(resource.CommandBuffer, int) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, c.Dirty(0), "failed record must stay dirty for retry")
	assert.Equal(t, 0, c.Records())
}
