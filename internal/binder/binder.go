package binder

import (
	"context"
	"fmt"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/resource"
)

// ApplyFunc performs the actual descriptor-set update for one frame's
// set. It receives only the writes that survived deduplication.
type ApplyFunc func(set resource.DescriptorSet, writes []Write) error

// Binder owns the per-frame descriptor sets — strictly one per
// swapchain image — and deduplicates repeated identical writes against
// a per-set cache of the last applied values.
type Binder struct {
	sets  []resource.DescriptorSet
	cache []map[uint32]Write
}

// NewBinder adopts one descriptor set per swapchain image. Sharing a
// set across images is rejected outright.
func NewBinder(sets []resource.DescriptorSet) (*Binder, error) {
	seen := make(map[resource.DescriptorSet]bool, len(sets))
	for _, s := range sets {
		if seen[s] {
			return nil, fmt.Errorf("binder: descriptor set %#x shared across frames", uint64(s))
		}
		seen[s] = true
	}
	b := &Binder{
		sets:  sets,
		cache: make([]map[uint32]Write, len(sets)),
	}
	for i := range b.cache {
		b.cache[i] = make(map[uint32]Write)
	}
	return b, nil
}

// Set returns the descriptor set for imageIndex.
func (b *Binder) Set(imageIndex int) (resource.DescriptorSet, error) {
	if imageIndex < 0 || imageIndex >= len(b.sets) {
		return 0, fmt.Errorf("binder: image index %d of %d", imageIndex, len(b.sets))
	}
	return b.sets[imageIndex], nil
}

// Apply applies the writes to imageIndex's descriptor set as one
// batch, skipping writes identical to the last ones applied to that
// set. It returns the number of writes actually applied.
func (b *Binder) Apply(ctx context.Context, imageIndex int, writes []Write, apply ApplyFunc) (int, error) {
	logger := ctxlog.FromContext(ctx)
	if imageIndex < 0 || imageIndex >= len(b.sets) {
		return 0, fmt.Errorf("binder: image index %d of %d", imageIndex, len(b.sets))
	}

	cache := b.cache[imageIndex]
	fresh := writes[:0:0]
	for _, w := range writes {
		if prev, ok := cache[w.DstBinding]; ok && prev == w {
			continue
		}
		fresh = append(fresh, w)
	}
	if len(fresh) == 0 {
		logger.Debug("Descriptor writes unchanged, skipped.", "image", imageIndex)
		return 0, nil
	}

	if apply != nil {
		if err := apply(b.sets[imageIndex], fresh); err != nil {
			return 0, fmt.Errorf("binder: apply image %d: %w", imageIndex, err)
		}
	}
	// Cache only after the batch applied atomically.
	for _, w := range fresh {
		cache[w.DstBinding] = w
	}
	logger.Debug("Descriptor writes applied.", "image", imageIndex, "count", len(fresh))
	return len(fresh), nil
}

// Invalidate drops the write caches so the next Apply performs a full
// initial bind. Called after a recompile: the sets were rebuilt and
// remember nothing.
func (b *Binder) Invalidate() {
	for i := range b.cache {
		b.cache[i] = make(map[uint32]Write)
	}
}
