// Package buffer implements the node that allocates a GPU buffer of a
// configured size and usage (uniform, storage, vertex).
package buffer

import (
	"fmt"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Module registers the "buffer" node type.
type Module struct{}

type bufferNode struct {
	buf resource.Buffer
}

func (n *bufferNode) Setup(ctx *node.Context) error {
	return nil
}

func (n *bufferNode) Compile(ctx *node.Context) error {
	logger := ctxlog.FromContext(ctx.Ctx)

	dev, err := node.In[resource.HandleVal](ctx, "device")
	if err != nil {
		return err
	}
	if dev.H.IsNull() {
		return fmt.Errorf("buffer: null device")
	}

	size, err := node.Param(ctx, "size", int64(0))
	if err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("buffer: size must be positive, got %d", size)
	}
	usage, err := node.Param(ctx, "usage", "uniform")
	if err != nil {
		return err
	}

	n.buf = resource.Buffer(resource.NextHandle())
	logger.Debug("Buffer allocated.", "node", ctx.Instance().ID(), "size", size, "usage", usage)

	if err := ctx.Out("buffer", resource.BufferVal{H: n.buf}); err != nil {
		return err
	}
	return ctx.OnCleanup(func() error {
		n.buf = 0
		return nil
	})
}

func (n *bufferNode) Execute(ctx *node.Context) error {
	// Persistently mapped: per-frame content updates happen host-side
	// and need no slot traffic. Frame-in-flight fencing is the
	// caller's discipline.
	return nil
}

func (n *bufferNode) Cleanup(ctx *node.Context) error {
	n.buf = 0
	return nil
}

// Register registers the node spec with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Spec{
		Type: "buffer",
		Inputs: []node.SlotDecl{
			{Name: "device", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeBorrowed},
		},
		Outputs: []node.SlotDecl{
			{Name: "buffer", Kind: resource.KindBuffer, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
		},
		New: func() node.Node { return &bufferNode{} },
	})
}
