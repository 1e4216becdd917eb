// Package texture implements the node that owns a sampled image, its
// view, and a sampler. View and sampler are separate outputs so a
// combined-image-sampler binding can be fed by two connections.
package texture

import (
	"fmt"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Module registers the "texture" node type.
type Module struct{}

type textureNode struct {
	image   resource.Image
	view    resource.ImageView
	sampler resource.Sampler
}

func (n *textureNode) Setup(ctx *node.Context) error {
	return nil
}

func (n *textureNode) Compile(ctx *node.Context) error {
	logger := ctxlog.FromContext(ctx.Ctx)

	dev, err := node.In[resource.HandleVal](ctx, "device")
	if err != nil {
		return err
	}
	if dev.H.IsNull() {
		return fmt.Errorf("texture: null device")
	}

	width, err := node.Param(ctx, "width", int64(0))
	if err != nil {
		return err
	}
	height, err := node.Param(ctx, "height", int64(0))
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("texture: dimensions must be positive, got %dx%d", width, height)
	}

	n.image = resource.Image(resource.NextHandle())
	n.view = resource.ImageView(resource.NextHandle())
	n.sampler = resource.Sampler(resource.NextHandle())
	logger.Debug("Texture created.", "node", ctx.Instance().ID(), "extent", fmt.Sprintf("%dx%d", width, height))

	if err := ctx.Out("view", resource.ImageViewVal{H: n.view}); err != nil {
		return err
	}
	if err := ctx.Out("sampler", resource.SamplerVal{H: n.sampler}); err != nil {
		return err
	}
	return ctx.OnCleanup(func() error {
		n.sampler = 0
		n.view = 0
		n.image = 0
		return nil
	})
}

func (n *textureNode) Execute(ctx *node.Context) error {
	return nil
}

func (n *textureNode) Cleanup(ctx *node.Context) error {
	n.sampler = 0
	n.view = 0
	n.image = 0
	return nil
}

// Register registers the node spec with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Spec{
		Type: "texture",
		Inputs: []node.SlotDecl{
			{Name: "device", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeBorrowed},
		},
		Outputs: []node.SlotDecl{
			{Name: "view", Kind: resource.KindImageView, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
			{Name: "sampler", Kind: resource.KindSampler, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
		},
		New: func() node.Node { return &textureNode{} },
	})
}
