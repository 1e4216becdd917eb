// Package swapchain implements the node that owns the swapchain and
// its per-image views. Its public state is exported to consumers as a
// borrowed struct reference; the documented invalidation event is
// swapchain recreation, announced on the bus so the graph can pause and
// recompile everything downstream.
package swapchain

import (
	"fmt"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/event"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Module registers the "swapchain" node type.
type Module struct{}

// State is the swapchain's shared public state. It is owned by the
// swapchain node and handed to consumers as a resource.StructRef;
// consumers must re-read it after a swapchain_invalidated event.
type State struct {
	Width  uint32
	Height uint32
	// ColorView is the first image's view, extractable by field
	// connections.
	ColorView resource.Value
	// Generation increments on every recreation.
	Generation uint64
}

type swapchainNode struct {
	id         string
	subscribed bool

	chain resource.Swapchain
	views []resource.ImageView
	state State

	// pendingW/H hold a resize observed between frames, applied on the
	// next Compile.
	pendingW, pendingH uint32
}

func (n *swapchainNode) Setup(ctx *node.Context) error {
	n.id = ctx.Instance().ID()
	if n.subscribed {
		return nil
	}
	n.subscribed = true
	// Resize arrives on the bus; the node records the new extent and
	// announces invalidation. The recompile itself is driven by the
	// graph owner, never from inside event dispatch.
	ctx.Bus.Subscribe(event.TopicResize, func(ev event.Event) bool {
		n.pendingW, n.pendingH = ev.Width, ev.Height
		ctx.Bus.Publish(event.Event{Topic: event.TopicSwapchainInvalidated, Node: n.id})
		return false
	})
	return nil
}

func (n *swapchainNode) Compile(ctx *node.Context) error {
	logger := ctxlog.FromContext(ctx.Ctx)

	dev, err := node.In[resource.HandleVal](ctx, "device")
	if err != nil {
		return err
	}
	if dev.H.IsNull() {
		return fmt.Errorf("swapchain: null device")
	}

	width, err := node.Param(ctx, "width", int64(0))
	if err != nil {
		return err
	}
	height, err := node.Param(ctx, "height", int64(0))
	if err != nil {
		return err
	}
	if n.pendingW != 0 && n.pendingH != 0 {
		width, height = int64(n.pendingW), int64(n.pendingH)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("swapchain: extent must be positive, got %dx%d", width, height)
	}
	if ctx.ImageCount <= 0 {
		return fmt.Errorf("swapchain: image count must be positive, got %d", ctx.ImageCount)
	}

	n.chain = resource.Swapchain(resource.NextHandle())
	n.views = make([]resource.ImageView, ctx.ImageCount)
	elems := make([]resource.Value, ctx.ImageCount)
	for i := range n.views {
		n.views[i] = resource.ImageView(resource.NextHandle())
		elems[i] = resource.ImageViewVal{H: n.views[i]}
	}

	n.state.Width = uint32(width)
	n.state.Height = uint32(height)
	n.state.ColorView = elems[0]
	n.state.Generation++
	logger.Debug("Swapchain created.", "node", n.id,
		"extent", fmt.Sprintf("%dx%d", width, height),
		"images", ctx.ImageCount, "generation", n.state.Generation)

	if err := ctx.Out("swapchain", resource.HandleVal{H: resource.Handle(n.chain), Type: "swapchain"}); err != nil {
		return err
	}
	if err := ctx.Out("image_views", resource.ArrayVal{Elems: elems}); err != nil {
		return err
	}
	if err := ctx.Out("state", resource.StructRef{
		Ptr:           &n.state,
		Owner:         n.id,
		InvalidatedBy: string(event.TopicSwapchainInvalidated),
	}); err != nil {
		return err
	}

	return ctx.OnCleanup(func() error {
		n.views = nil
		n.chain = 0
		return nil
	})
}

func (n *swapchainNode) Execute(ctx *node.Context) error {
	// The acquired index can be transiently out of range while a
	// recreation is in flight; skip the frame rather than publish a
	// stale view.
	if ctx.ImageIndex < 0 || ctx.ImageIndex >= len(n.views) {
		return fmt.Errorf("%w: image %d of %d", node.ErrStaleFrame, ctx.ImageIndex, len(n.views))
	}
	if err := ctx.Out("image_index", resource.IntVal{V: int64(ctx.ImageIndex)}); err != nil {
		return err
	}
	return ctx.Out("current_view", resource.ImageViewVal{H: n.views[ctx.ImageIndex]})
}

func (n *swapchainNode) Cleanup(ctx *node.Context) error {
	n.views = nil
	n.chain = 0
	return nil
}

// Register registers the node spec with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Spec{
		Type: "swapchain",
		Inputs: []node.SlotDecl{
			{Name: "device", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeBorrowed},
		},
		Outputs: []node.SlotDecl{
			{Name: "swapchain", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
			{Name: "image_views", Kind: resource.KindArray, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
			{Name: "state", Kind: resource.KindStructRef, Role: slot.Dependency, Lifetime: resource.LifetimeBorrowed},
			{Name: "image_index", Kind: resource.KindInt, Role: slot.Execute, Lifetime: resource.LifetimeTransient},
			{Name: "current_view", Kind: resource.KindImageView, Role: slot.Execute, Lifetime: resource.LifetimeTransient},
		},
		New: func() node.Node { return &swapchainNode{} },
	})
}
