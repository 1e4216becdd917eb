// Package shaderlib implements the node that publishes a compiled
// shader's reflected interface. Binding metadata comes from the node's
// configuration block, standing in for the external shader-compilation
// step that produces it in a full renderer.
package shaderlib

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/reflection"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Module registers the "shader" node type.
type Module struct{}

type shaderNode struct {
	module resource.ShaderModule
	bundle reflection.Bundle
}

func (n *shaderNode) Setup(ctx *node.Context) error {
	return nil
}

func (n *shaderNode) Compile(ctx *node.Context) error {
	logger := ctxlog.FromContext(ctx.Ctx)

	raw, ok := ctx.ParamCty("bindings")
	if !ok {
		return fmt.Errorf("shader: missing required parameter \"bindings\"")
	}
	bindings, err := decodeBindings(raw)
	if err != nil {
		return fmt.Errorf("shader: %w", err)
	}

	var pcs []reflection.PushConstantRange
	if rawPC, ok := ctx.ParamCty("push_constants"); ok {
		if pcs, err = decodePushConstants(rawPC); err != nil {
			return fmt.Errorf("shader: %w", err)
		}
	}

	n.module = resource.ShaderModule(resource.NextHandle())
	n.bundle = reflection.Bundle{Bindings: bindings, PushConstants: pcs}
	logger.Debug("Shader interface published.", "node", ctx.Instance().ID(),
		"bindings", len(bindings), "push_constants", len(pcs))

	if err := ctx.Out("module", resource.HandleVal{H: resource.Handle(n.module), Type: "shader_module"}); err != nil {
		return err
	}
	if err := ctx.Out("shader", resource.StructRef{
		Ptr:   &n.bundle,
		Owner: ctx.Instance().ID(),
	}); err != nil {
		return err
	}
	return ctx.OnCleanup(func() error {
		n.module = 0
		return nil
	})
}

func (n *shaderNode) Execute(ctx *node.Context) error {
	return nil
}

func (n *shaderNode) Cleanup(ctx *node.Context) error {
	n.module = 0
	return nil
}

// decodeBindings converts the `bindings` list attribute into reflected
// binding metadata.
func decodeBindings(v cty.Value) ([]reflection.Binding, error) {
	if v.IsNull() || !v.CanIterateElements() {
		return nil, fmt.Errorf("bindings must be a list of objects")
	}
	var out []reflection.Binding
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		b, err := decodeBinding(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("bindings list is empty")
	}
	return out, nil
}

func decodeBinding(elem cty.Value) (reflection.Binding, error) {
	var b reflection.Binding

	num, err := attrInt(elem, "binding")
	if err != nil {
		return b, err
	}
	b.Binding = uint32(num)
	b.Count = 1

	kindStr, err := attrString(elem, "kind")
	if err != nil {
		return b, err
	}
	if b.Kind, err = resource.ParseDescriptorKind(kindStr); err != nil {
		return b, err
	}

	stagesStr, err := attrString(elem, "stages")
	if err != nil {
		return b, err
	}
	if b.Stages, err = reflection.ParseStageMask(stagesStr); err != nil {
		return b, err
	}

	if elem.Type().HasAttribute("name") {
		b.Name = elem.GetAttr("name").AsString()
	}
	if elem.Type().HasAttribute("count") {
		c, err := attrInt(elem, "count")
		if err != nil {
			return b, err
		}
		b.Count = uint32(c)
	}
	return b, nil
}

func decodePushConstants(v cty.Value) ([]reflection.PushConstantRange, error) {
	if v.IsNull() || !v.CanIterateElements() {
		return nil, fmt.Errorf("push_constants must be a list of objects")
	}
	var out []reflection.PushConstantRange
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		offset, err := attrInt(elem, "offset")
		if err != nil {
			return nil, err
		}
		size, err := attrInt(elem, "size")
		if err != nil {
			return nil, err
		}
		stagesStr, err := attrString(elem, "stages")
		if err != nil {
			return nil, err
		}
		stages, err := reflection.ParseStageMask(stagesStr)
		if err != nil {
			return nil, err
		}
		out = append(out, reflection.PushConstantRange{
			Offset: uint32(offset),
			Size:   uint32(size),
			Stages: stages,
		})
	}
	return out, nil
}

func attrInt(obj cty.Value, name string) (int64, error) {
	if !obj.Type().HasAttribute(name) {
		return 0, fmt.Errorf("missing attribute %q", name)
	}
	av := obj.GetAttr(name)
	i, _ := av.AsBigFloat().Int64()
	return i, nil
}

func attrString(obj cty.Value, name string) (string, error) {
	if !obj.Type().HasAttribute(name) {
		return "", fmt.Errorf("missing attribute %q", name)
	}
	return obj.GetAttr(name).AsString(), nil
}

// Register registers the node spec with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&node.Spec{
		Type: "shader",
		Outputs: []node.SlotDecl{
			{Name: "module", Kind: resource.KindHandle, Role: slot.Dependency, Lifetime: resource.LifetimeOwned},
			{Name: "shader", Kind: resource.KindStructRef, Role: slot.Dependency, Lifetime: resource.LifetimeBorrowed},
		},
		New: func() node.Node { return &shaderNode{} },
	})
}
