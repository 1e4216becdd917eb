// Package descriptorset implements the variadic node that gathers
// descriptor resources from an arbitrary number of connections,
// validates them against the shader's reflected interface, and binds
// them into per-image descriptor sets.
package descriptorset

import (
	"fmt"

	"github.com/vk/rendergraph/internal/binder"
	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/reflection"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Module registers the "descriptorset" node type.
type Module struct{}

type descriptorSetNode struct {
	layout resource.DescriptorSetLayout
	sets   []resource.DescriptorSet
	table  *binder.Table
	binder *binder.Binder
}

func (n *descriptorSetNode) Setup(ctx *node.Context) error {
	return nil
}

func (n *descriptorSetNode) Compile(ctx *node.Context) error {
	logger := ctxlog.FromContext(ctx.Ctx)

	dev, err := node.In[resource.HandleVal](ctx, "device")
	if err != nil {
		return err
	}
	if dev.H.IsNull() {
		return fmt.Errorf("descriptorset: null device")
	}

	shaderRef, err := node.In[resource.StructRef](ctx, "shader")
	if err != nil {
		return err
	}
	bundle, ok := shaderRef.Ptr.(*reflection.Bundle)
	if !ok {
		return fmt.Errorf("descriptorset: shader slot holds %T, want *reflection.Bundle", shaderRef.Ptr)
	}

	// Tentative slots were created when edges connected; reflection is
	// authoritative for descriptor kinds, so validation must precede
	// gathering.
	reg := ctx.Instance().Variadic()
	reg.ValidateAgainstReflection(bundle)
	for _, vs := range reg.Slots() {
		if vs.State == slot.Invalid {
			logger.Error("Variadic slot has no matching shader binding, excluded.",
				"node", ctx.Instance().ID(), "slot", vs.Name, "binding", vs.Binding)
		}
	}

	n.table = binder.NewTable(bundle)
	if err := n.table.Gather(ctx.Ctx, reg, slot.Dependency); err != nil {
		return fmt.Errorf("descriptorset: %w", err)
	}

	if ctx.ImageCount <= 0 {
		return fmt.Errorf("descriptorset: image count must be positive, got %d", ctx.ImageCount)
	}
	n.layout = resource.DescriptorSetLayout(resource.NextHandle())
	n.sets = make([]resource.DescriptorSet, ctx.ImageCount)
	for i := range n.sets {
		n.sets[i] = resource.DescriptorSet(resource.NextHandle())
	}
	if n.binder, err = binder.NewBinder(n.sets); err != nil {
		return err
	}
	logger.Debug("Descriptor sets allocated.", "node", ctx.Instance().ID(),
		"sets", len(n.sets), "bindings", n.table.Len())

	if err := ctx.Out("layout", resource.HandleVal{H: resource.Handle(n.layout), Type: "descriptor_set_layout"}); err != nil {
		return err
	}
	return ctx.OnCleanup(func() error {
		n.binder = nil
		if n.table != nil {
			n.table.Reset()
			n.table = nil
		}
		n.sets = nil
		n.layout = 0
		return nil
	})
}

func (n *descriptorSetNode) Execute(ctx *node.Context) error {
	if n.binder == nil || n.table == nil {
		// Mid-recompile; skip until the next Compile restores state.
		return fmt.Errorf("%w: descriptor state rebuilding", node.ErrStaleFrame)
	}
	if ctx.ImageIndex < 0 || ctx.ImageIndex >= len(n.sets) {
		return fmt.Errorf("%w: image %d of %d", node.ErrStaleFrame, ctx.ImageIndex, len(n.sets))
	}

	reg := ctx.Instance().Variadic()
	if err := n.table.Gather(ctx.Ctx, reg, slot.Execute); err != nil {
		return err
	}

	writes := n.table.BuildWrites(ctx.Ctx)
	if _, err := n.binder.Apply(ctx.Ctx, ctx.ImageIndex, writes, nil); err != nil {
		return err
	}

	set, err := n.binder.Set(ctx.ImageIndex)
	if err != nil {
		return err
	}
	return ctx.Out("descriptor_set", resource.HandleVal{H: resource.Handle(set), Type: "descriptor_set"})
}

func (n *descriptorSetNode) Cleanup(ctx *node.Context) error {
	n.binder = nil
	if n.table != nil {
		n.table.Reset()
		n.table = nil
	}
	n.sets = nil
	n.layout = 0
	return nil
}

// Register registers the node spec with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Spec{
		Type: "descriptorset",
		Inputs: []node.SlotDecl{
			{Name: "device", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeBorrowed},
			{Name: "shader", Kind: resource.KindStructRef, Role: slot.Dependency, Lifetime: resource.LifetimeBorrowed},
		},
		Outputs: []node.SlotDecl{
			{Name: "layout", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
			{Name: "descriptor_set", Kind: resource.KindHandle, Role: slot.Execute, Lifetime: resource.LifetimeTransient},
		},
		AcceptsVariadic: true,
		VariadicMin:     1,
		New:             func() node.Node { return &descriptorSetNode{} },
	})
}
