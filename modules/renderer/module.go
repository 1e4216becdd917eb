// Package renderer implements the draw node: it owns the pipeline,
// render pass, command pool, and per-image command buffers, re-records
// commands only when a watched binding changes identity, and patches
// per-frame push constants without re-recording.
package renderer

import (
	"errors"
	"fmt"

	"github.com/vk/rendergraph/internal/cmdcache"
	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Module registers the "renderer" node type.
type Module struct{}

type rendererNode struct {
	pipeline   resource.Pipeline
	layout     resource.PipelineLayout
	renderPass resource.RenderPass
	pool       resource.CommandPool
	cache      *cmdcache.Cache

	// frameConstant is the last push-constant payload patched in, kept
	// for inspection in tests.
	frameConstant int64
}

func (n *rendererNode) Setup(ctx *node.Context) error {
	return nil
}

func (n *rendererNode) Compile(ctx *node.Context) error {
	logger := ctxlog.FromContext(ctx.Ctx)

	dev, err := node.In[resource.HandleVal](ctx, "device")
	if err != nil {
		return err
	}
	if dev.H.IsNull() {
		return fmt.Errorf("renderer: null device")
	}
	if _, err := node.In[resource.BufferVal](ctx, "vertex_buffer"); err != nil {
		return err
	}

	if ctx.ImageCount <= 0 {
		return fmt.Errorf("renderer: image count must be positive, got %d", ctx.ImageCount)
	}

	n.renderPass = resource.RenderPass(resource.NextHandle())
	n.layout = resource.PipelineLayout(resource.NextHandle())
	n.pipeline = resource.Pipeline(resource.NextHandle())
	n.pool = resource.CommandPool(resource.NextHandle())

	bufs := make([]resource.CommandBuffer, ctx.ImageCount)
	for i := range bufs {
		bufs[i] = resource.CommandBuffer(resource.NextHandle())
	}
	n.cache = cmdcache.New(bufs)
	logger.Debug("Renderer compiled.", "node", ctx.Instance().ID(),
		"command_buffers", len(bufs))

	return ctx.OnCleanup(func() error {
		n.cache = nil
		n.pool = 0
		n.pipeline = 0
		n.layout = 0
		n.renderPass = 0
		return nil
	})
}

func (n *rendererNode) Execute(ctx *node.Context) error {
	logger := ctxlog.FromContext(ctx.Ctx)
	if n.cache == nil {
		return fmt.Errorf("%w: command buffers rebuilding", node.ErrStaleFrame)
	}

	setVal, err := ctx.InValue("descriptor_set")
	if err != nil && !errors.Is(err, slot.ErrMissingInput) {
		// Anything other than an unproduced value is a wiring error,
		// not a transient state.
		return err
	}
	if err != nil || resource.IsEmpty(setVal) {
		// Upstream skipped this frame (recreation in flight); retry
		// next frame.
		return fmt.Errorf("%w: descriptor set unavailable", node.ErrStaleFrame)
	}
	set, ok := setVal.(resource.HandleVal)
	if !ok {
		return fmt.Errorf("renderer: descriptor_set holds %s, want handle", setVal.Kind())
	}
	vbuf, err := node.In[resource.BufferVal](ctx, "vertex_buffer")
	if err != nil {
		return err
	}

	// Any identity change in bound state invalidates every recorded
	// buffer, not just the current image's.
	n.cache.Observe("pipeline", resource.HandleVal{H: resource.Handle(n.pipeline), Type: "pipeline"})
	n.cache.Observe("pipeline_layout", resource.HandleVal{H: resource.Handle(n.layout), Type: "pipeline_layout"})
	n.cache.Observe("render_pass", resource.HandleVal{H: resource.Handle(n.renderPass), Type: "render_pass"})
	n.cache.Observe("descriptor_set", set)
	n.cache.Observe("vertex_buffer", vbuf)

	buf, recorded, err := n.cache.GetOrRecord(ctx.ImageIndex, func(cb resource.CommandBuffer, imageIndex int) error {
		logger.Debug("Recording command buffer.",
			"node", ctx.Instance().ID(), "image", imageIndex, "buffer", uint64(cb))
		return nil
	})
	if err != nil {
		return err
	}
	if recorded {
		logger.Debug("Command buffer re-recorded.", "image", ctx.ImageIndex)
	}

	// Push constants change every frame but never force a re-record.
	if err := n.cache.Patch(ctx.ImageIndex, func(cb resource.CommandBuffer, imageIndex int) error {
		n.frameConstant = int64(ctx.FrameIndex)
		return nil
	}); err != nil {
		return err
	}

	return ctx.Out("command_buffer", resource.HandleVal{H: resource.Handle(buf), Type: "command_buffer"})
}

func (n *rendererNode) Cleanup(ctx *node.Context) error {
	n.cache = nil
	n.pool = 0
	n.pipeline = 0
	n.layout = 0
	n.renderPass = 0
	return nil
}

// Register registers the node spec with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Spec{
		Type: "renderer",
		Inputs: []node.SlotDecl{
			{Name: "device", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeBorrowed},
			{Name: "vertex_buffer", Kind: resource.KindBuffer, Role: slot.Dependency, Lifetime: resource.LifetimeBorrowed},
			{Name: "descriptor_set", Kind: resource.KindHandle, Role: slot.Execute, Lifetime: resource.LifetimeTransient},
		},
		Outputs: []node.SlotDecl{
			{Name: "command_buffer", Kind: resource.KindHandle, Role: slot.Execute, Lifetime: resource.LifetimeTransient},
		},
		New: func() node.Node { return &rendererNode{} },
	})
}
