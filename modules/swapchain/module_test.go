package swapchain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/rendergraph/internal/event"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/resource"
)

func newSwapchainInstance(t *testing.T, params map[string]cty.Value) *node.Instance {
	t.Helper()
	r := registry.New()
	(&Module{}).Register(r)
	spec, err := r.Lookup("swapchain")
	require.NoError(t, err)
	inst := node.NewInstance("swapchain.main", spec, params)
	require.NoError(t, inst.WriteInput("device", resource.HandleVal{H: 1, Type: "device"}))
	return inst
}

func phaseCtx(phase node.Phase, inst *node.Instance, bus *event.Bus, images int) *node.Context {
	c := node.NewContext(context.Background(), phase, inst, bus)
	c.ImageCount = images
	return c
}

func TestCompilePublishesStateAndViews(t *testing.T) {
	inst := newSwapchainInstance(t, map[string]cty.Value{
		"width":  cty.NumberIntVal(1280),
		"height": cty.NumberIntVal(720),
	})
	bus := event.NewBus()
	require.NoError(t, inst.Impl().Setup(phaseCtx(node.PhaseSetup, inst, bus, 3)))
	require.NoError(t, inst.Impl().Compile(phaseCtx(node.PhaseCompile, inst, bus, 3)))

	views, err := inst.ReadOutput("image_views")
	require.NoError(t, err)
	assert.Len(t, views.(resource.ArrayVal).Elems, 3)

	stateRef, err := inst.ReadOutput("state")
	require.NoError(t, err)
	st := stateRef.(resource.StructRef).Ptr.(*State)
	assert.Equal(t, uint32(1280), st.Width)
	assert.Equal(t, uint64(1), st.Generation)
	assert.Equal(t, string(event.TopicSwapchainInvalidated), stateRef.(resource.StructRef).InvalidatedBy)
}

func TestCompileRejectsBadExtent(t *testing.T) {
	inst := newSwapchainInstance(t, map[string]cty.Value{
		"width":  cty.NumberIntVal(0),
		"height": cty.NumberIntVal(720),
	})
	bus := event.NewBus()
	err := inst.Impl().Compile(phaseCtx(node.PhaseCompile, inst, bus, 3))
	assert.ErrorContains(t, err, "extent")
}

func TestExecuteWritesPerFrameOutputs(t *testing.T) {
	inst := newSwapchainInstance(t, map[string]cty.Value{
		"width":  cty.NumberIntVal(640),
		"height": cty.NumberIntVal(480),
	})
	bus := event.NewBus()
	require.NoError(t, inst.Impl().Setup(phaseCtx(node.PhaseSetup, inst, bus, 2)))
	require.NoError(t, inst.Impl().Compile(phaseCtx(node.PhaseCompile, inst, bus, 2)))

	ectx := phaseCtx(node.PhaseExecute, inst, bus, 2)
	ectx.ImageIndex = 1
	require.NoError(t, inst.Impl().Execute(ectx))

	idx, err := inst.ReadOutput("image_index")
	require.NoError(t, err)
	assert.Equal(t, int64(1), idx.(resource.IntVal).V)

	view, err := inst.ReadOutput("current_view")
	require.NoError(t, err)
	assert.False(t, resource.Handle(view.(resource.ImageViewVal).H).IsNull())
}

func TestExecuteStaleImageIndex(t *testing.T) {
	inst := newSwapchainInstance(t, map[string]cty.Value{
		"width":  cty.NumberIntVal(640),
		"height": cty.NumberIntVal(480),
	})
	bus := event.NewBus()
	require.NoError(t, inst.Impl().Setup(phaseCtx(node.PhaseSetup, inst, bus, 2)))
	require.NoError(t, inst.Impl().Compile(phaseCtx(node.PhaseCompile, inst, bus, 2)))

	ectx := phaseCtx(node.PhaseExecute, inst, bus, 2)
	ectx.ImageIndex = 5
	assert.ErrorIs(t, inst.Impl().Execute(ectx), node.ErrStaleFrame)
}

func TestResizeAnnouncesInvalidationAndAppliesOnRecompile(t *testing.T) {
	inst := newSwapchainInstance(t, map[string]cty.Value{
		"width":  cty.NumberIntVal(1280),
		"height": cty.NumberIntVal(720),
	})
	bus := event.NewBus()
	require.NoError(t, inst.Impl().Setup(phaseCtx(node.PhaseSetup, inst, bus, 2)))
	require.NoError(t, inst.Impl().Compile(phaseCtx(node.PhaseCompile, inst, bus, 2)))

	var invalidated []string
	bus.Subscribe(event.TopicSwapchainInvalidated, func(ev event.Event) bool {
		invalidated = append(invalidated, ev.Node)
		return false
	})

	bus.Publish(event.Event{Topic: event.TopicResize, Width: 1920, Height: 1080})
	assert.Equal(t, []string{"swapchain.main"}, invalidated)

	// The graph driver reacts by cleaning up and recompiling the node.
	require.NoError(t, inst.Impl().Cleanup(phaseCtx(node.PhaseCleanup, inst, bus, 2)))
	require.NoError(t, inst.RunCleanups())
	inst.ResetOutputs()
	require.NoError(t, inst.Impl().Compile(phaseCtx(node.PhaseCompile, inst, bus, 2)))

	stateRef, err := inst.ReadOutput("state")
	require.NoError(t, err)
	st := stateRef.(resource.StructRef).Ptr.(*State)
	assert.Equal(t, uint32(1920), st.Width)
	assert.Equal(t, uint32(1080), st.Height)
	assert.Equal(t, uint64(2), st.Generation)
}
