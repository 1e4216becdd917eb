package binder

import (
	"context"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/resource"
)

// Write is one descriptor-set write operation.
type Write struct {
	DstBinding uint32
	Kind       resource.DescriptorKind

	Buffer  resource.Buffer
	View    resource.ImageView
	Sampler resource.Sampler
}

// BuildWrites produces one write per binding whose gathered value
// matches the shader-expected descriptor kind. Empty placeholders are
// skipped silently: an execute-only binding is legitimately filled
// later, this pass simply has nothing to write yet. Kind mismatches are
// logged as errors and excluded; they may self-heal once the producing
// node recompiles and reports a fresh type.
func (t *Table) BuildWrites(ctx context.Context) []Write {
	logger := ctxlog.FromContext(ctx)
	var writes []Write

	for binding := uint32(0); int(binding) < len(t.values); binding++ {
		if !t.bound[binding] {
			continue
		}
		v := t.values[binding]
		if resource.IsEmpty(v) {
			continue
		}
		expected := t.kinds[binding]

		if expected == resource.DescriptorCombinedImageSampler {
			if w, ok := t.combinedWrite(ctx, binding, v); ok {
				writes = append(writes, w)
			}
			continue
		}

		if !resource.Compatible(v, expected) {
			logger.Error("Descriptor kind mismatch, binding excluded this pass.",
				"binding", binding, "expected", expected.String(), "got", v.Kind().String())
			continue
		}

		w := Write{DstBinding: binding, Kind: expected}
		switch val := v.(type) {
		case resource.BufferVal:
			w.Buffer = val.H
		case resource.ImageViewVal:
			w.View = val.H
		case resource.ImageVal:
			// Bare images cannot be written directly; a view is required.
			logger.Error("Binding holds a raw image without a view, excluded.",
				"binding", binding)
			continue
		case resource.SamplerVal:
			w.Sampler = val.H
		default:
			logger.Error("Unbindable value kind, binding excluded.",
				"binding", binding, "kind", v.Kind().String())
			continue
		}
		writes = append(writes, w)
	}
	return writes
}

// combinedWrite assembles a combined-image-sampler write. When the
// binding holds only an image view, the table is scanned for a sampler
// value that no combined binding has claimed; the fallback assumes the
// unclaimed sampler belongs to this binding. Pair tracking keyed by
// binding would remove the assumption.
// TODO: track view/sampler pairs per binding at connection time.
func (t *Table) combinedWrite(ctx context.Context, binding uint32, v resource.Value) (Write, bool) {
	logger := ctxlog.FromContext(ctx)
	w := Write{DstBinding: binding, Kind: resource.DescriptorCombinedImageSampler}

	switch val := v.(type) {
	case resource.CombinedImageSamplerVal:
		w.View = val.View
		w.Sampler = val.Sampler
		return w, true
	case resource.ImageViewVal:
		sampler, ok := t.findUnclaimedSampler(binding)
		if !ok {
			logger.Debug("Combined binding has a view but no sampler yet, skipped this pass.",
				"binding", binding)
			return Write{}, false
		}
		w.View = val.H
		w.Sampler = sampler
		return w, true
	case resource.SamplerVal:
		// Sampler arrived first, view not gathered yet.
		logger.Debug("Combined binding has a sampler but no view yet, skipped this pass.",
			"binding", binding)
		return Write{}, false
	default:
		logger.Error("Descriptor kind mismatch on combined binding, excluded this pass.",
			"binding", binding, "got", v.Kind().String())
		return Write{}, false
	}
}

// findUnclaimedSampler scans all gathered values for a bare sampler not
// already consumed by another combined binding.
func (t *Table) findUnclaimedSampler(except uint32) (resource.Sampler, bool) {
	claimed := make(map[resource.Sampler]bool)
	for i, v := range t.values {
		if uint32(i) == except {
			continue
		}
		if c, ok := v.(resource.CombinedImageSamplerVal); ok {
			claimed[c.Sampler] = true
		}
	}
	for i, v := range t.values {
		if uint32(i) == except {
			continue
		}
		if s, ok := v.(resource.SamplerVal); ok && !claimed[s.H] {
			return s.H, true
		}
	}
	return 0, false
}
