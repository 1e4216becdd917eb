package shaderlib

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/reflection"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/resource"
)

func bindingObj(binding int64, kind, stages, name string) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"binding": cty.NumberIntVal(binding),
		"kind":    cty.StringVal(kind),
		"stages":  cty.StringVal(stages),
		"name":    cty.StringVal(name),
	})
}

func TestDecodeBindings(t *testing.T) {
	t.Run("decodes a list of objects", func(t *testing.T) {
		v := cty.TupleVal([]cty.Value{
			bindingObj(0, "uniform_buffer", "vertex", "ubo"),
			bindingObj(1, "combined_image_sampler", "fragment", "albedo"),
		})
		got, err := decodeBindings(v)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint32(0), got[0].Binding)
		assert.Equal(t, resource.DescriptorUniformBuffer, got[0].Kind)
		assert.Equal(t, reflection.StageVertex, got[0].Stages)
		assert.Equal(t, "ubo", got[0].Name)
		assert.Equal(t, uint32(1), got[0].Count)
		assert.Equal(t, resource.DescriptorCombinedImageSampler, got[1].Kind)
	})

	t.Run("count attribute overrides the default", func(t *testing.T) {
		v := cty.TupleVal([]cty.Value{
			cty.ObjectVal(map[string]cty.Value{
				"binding": cty.NumberIntVal(2),
				"kind":    cty.StringVal("sampled_image"),
				"stages":  cty.StringVal("fragment"),
				"count":   cty.NumberIntVal(4),
			}),
		})
		got, err := decodeBindings(v)
		require.NoError(t, err)
		assert.Equal(t, uint32(4), got[0].Count)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		v := cty.TupleVal([]cty.Value{
			bindingObj(0, "texel_buffer", "vertex", "x"),
		})
		_, err := decodeBindings(v)
		assert.ErrorContains(t, err, "unknown descriptor kind")
	})

	t.Run("rejects missing attribute", func(t *testing.T) {
		v := cty.TupleVal([]cty.Value{
			cty.ObjectVal(map[string]cty.Value{
				"binding": cty.NumberIntVal(0),
			}),
		})
		_, err := decodeBindings(v)
		assert.ErrorContains(t, err, "missing attribute")
	})

	t.Run("rejects empty list", func(t *testing.T) {
		_, err := decodeBindings(cty.EmptyTupleVal)
		assert.Error(t, err)
	})
}

func TestShaderNodeCompile(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	spec, err := r.Lookup("shader")
	require.NoError(t, err)

	params := map[string]cty.Value{
		"bindings": cty.TupleVal([]cty.Value{
			bindingObj(0, "uniform_buffer", "vertex", "ubo"),
		}),
		"push_constants": cty.TupleVal([]cty.Value{
			cty.ObjectVal(map[string]cty.Value{
				"offset": cty.NumberIntVal(0),
				"size":   cty.NumberIntVal(64),
				"stages": cty.StringVal("vertex"),
			}),
		}),
	}
	inst := node.NewInstance("shader.main", spec, params)
	cctx := node.NewContext(context.Background(), node.PhaseCompile, inst, nil)
	require.NoError(t, inst.Impl().Compile(cctx))

	ref, err := inst.ReadOutput("shader")
	require.NoError(t, err)
	bundle, ok := ref.(resource.StructRef).Ptr.(*reflection.Bundle)
	require.True(t, ok)
	require.Len(t, bundle.Bindings, 1)
	require.Len(t, bundle.PushConstants, 1)
	assert.Equal(t, uint32(64), bundle.PushConstants[0].Size)

	mod, err := inst.ReadOutput("module")
	require.NoError(t, err)
	assert.False(t, mod.(resource.HandleVal).H.IsNull())
}

func TestShaderNodeMissingBindings(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	spec, err := r.Lookup("shader")
	require.NoError(t, err)

	inst := node.NewInstance("shader.main", spec, nil)
	cctx := node.NewContext(context.Background(), node.PhaseCompile, inst, nil)
	assert.ErrorContains(t, inst.Impl().Compile(cctx), "bindings")
}
