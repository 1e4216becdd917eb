// Package device implements the node that owns instance, device, and
// queue creation. Every consumer receives these handles through slots;
// there is no process-wide instance variable.
package device

import (
	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Module registers the "device" node type.
type Module struct{}

type deviceNode struct {
	instance resource.Handle
	device   resource.Handle
	queue    resource.Handle
}

func (n *deviceNode) Setup(ctx *node.Context) error {
	return nil
}

func (n *deviceNode) Compile(ctx *node.Context) error {
	logger := ctxlog.FromContext(ctx.Ctx)

	n.instance = resource.NextHandle()
	n.device = resource.NextHandle()
	n.queue = resource.NextHandle()
	logger.Debug("Device created.", "node", ctx.Instance().ID(), "device", uint64(n.device))

	if err := ctx.Out("instance", resource.HandleVal{H: n.instance, Type: "instance"}); err != nil {
		return err
	}
	if err := ctx.Out("device", resource.HandleVal{H: n.device, Type: "device"}); err != nil {
		return err
	}
	if err := ctx.Out("queue", resource.HandleVal{H: n.queue, Type: "queue"}); err != nil {
		return err
	}

	return ctx.OnCleanup(func() error {
		n.queue = 0
		n.device = 0
		n.instance = 0
		return nil
	})
}

func (n *deviceNode) Execute(ctx *node.Context) error {
	return nil
}

func (n *deviceNode) Cleanup(ctx *node.Context) error {
	return nil
}

// Register registers the node spec with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Spec{
		Type: "device",
		Outputs: []node.SlotDecl{
			{Name: "instance", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
			{Name: "device", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
			{Name: "queue", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
		},
		New: func() node.Node { return &deviceNode{} },
	})
}
