package binder

import (
	"context"
	"fmt"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/reflection"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Table is the resource-gather table: one entry per shader binding
// number, holding the resolved value (or the Empty placeholder) plus
// the role flags of the slots feeding that binding.
type Table struct {
	values []resource.Value
	roles  []slot.Role
	kinds  []resource.DescriptorKind
	bound  []bool // binding declared by the shader
}

// NewTable sizes a table to the reflected shader interface:
// (max binding index + 1) entries, every value initialized to the
// defined Empty placeholder, never left at a raw state.
func NewTable(bundle *reflection.Bundle) *Table {
	max, ok := bundle.MaxBinding()
	size := uint32(0)
	if ok {
		size = max + 1
	}
	t := &Table{
		values: make([]resource.Value, size),
		roles:  make([]slot.Role, size),
		kinds:  make([]resource.DescriptorKind, size),
		bound:  make([]bool, size),
	}
	for i := range t.values {
		t.values[i] = resource.Empty{}
	}
	for _, b := range bundle.Bindings {
		t.kinds[b.Binding] = b.Kind
		t.bound[b.Binding] = true
	}
	return t
}

// Len returns the table size, max binding + 1.
func (t *Table) Len() int { return len(t.values) }

// Value returns the gathered value at binding, Empty when out of range.
func (t *Table) Value(binding uint32) resource.Value {
	if int(binding) >= len(t.values) {
		return resource.Empty{}
	}
	return t.values[binding]
}

// Role returns the role flags recorded for binding.
func (t *Table) Role(binding uint32) slot.Role {
	if int(binding) >= len(t.roles) {
		return 0
	}
	return t.roles[binding]
}

// ExpectedKind returns the reflection-declared descriptor kind for
// binding.
func (t *Table) ExpectedKind(binding uint32) resource.DescriptorKind {
	if int(binding) >= len(t.kinds) {
		return resource.DescriptorUnknown
	}
	return t.kinds[binding]
}

// Gather populates the table from the validated variadic slots whose
// role intersects phase. Dependency-role entries are fetched once at
// Compile; execute-role entries are deferred to Execute, where they are
// refreshed every frame. Invalid slots are skipped entirely. The slot
// registry must have been validated against reflection first.
func (t *Table) Gather(ctx context.Context, reg *slot.Registry, phase slot.Role) error {
	logger := ctxlog.FromContext(ctx)
	for _, vs := range reg.Slots() {
		if vs.State == slot.Invalid {
			continue
		}
		if vs.State == slot.Tentative {
			return fmt.Errorf("gather: slot %q still tentative, validate against reflection first", vs.Name)
		}
		if int(vs.Binding) >= len(t.values) {
			return fmt.Errorf("gather: slot %q binding %d exceeds table size %d", vs.Name, vs.Binding, len(t.values))
		}
		t.roles[vs.Binding] |= vs.Role
		if !vs.Role.Has(phase) {
			continue
		}

		v := vs.Value()
		if resource.IsEmpty(v) && phase == slot.Dependency {
			logger.Debug("Dependency binding not yet produced, leaving placeholder.",
				"slot", vs.Name, "binding", vs.Binding)
			continue
		}
		t.merge(vs.Binding, v)
	}
	return nil
}

// merge stores v at binding. When the binding already holds the other
// half of a combined image sampler, the two are paired instead of
// overwritten: image view and sampler may arrive as two separate
// connections to the same binding.
func (t *Table) merge(binding uint32, v resource.Value) {
	cur := t.values[binding]
	if t.kinds[binding] == resource.DescriptorCombinedImageSampler && !resource.IsEmpty(cur) {
		switch cv := cur.(type) {
		case resource.ImageViewVal:
			if s, ok := v.(resource.SamplerVal); ok {
				t.values[binding] = resource.CombinedImageSamplerVal{View: cv.H, Sampler: s.H}
				return
			}
		case resource.SamplerVal:
			if iv, ok := v.(resource.ImageViewVal); ok {
				t.values[binding] = resource.CombinedImageSamplerVal{View: iv.H, Sampler: cv.H}
				return
			}
		case resource.CombinedImageSamplerVal:
			// An already-paired binding is refreshed one half at a time:
			// a per-frame image view must not evict the paired sampler,
			// and vice versa.
			switch nv := v.(type) {
			case resource.ImageViewVal:
				t.values[binding] = resource.CombinedImageSamplerVal{View: nv.H, Sampler: cv.Sampler}
				return
			case resource.SamplerVal:
				t.values[binding] = resource.CombinedImageSamplerVal{View: cv.View, Sampler: nv.H}
				return
			}
		}
	}
	t.values[binding] = v
}

// Reset returns every entry to the Empty placeholder while keeping the
// shape and role flags. Used on cleanup.
func (t *Table) Reset() {
	for i := range t.values {
		t.values[i] = resource.Empty{}
	}
}
