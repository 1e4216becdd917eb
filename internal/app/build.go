package app

import (
	"fmt"

	"github.com/vk/rendergraph/internal/config"
	"github.com/vk/rendergraph/internal/event"
	"github.com/vk/rendergraph/internal/graph"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/internal/slot"
)

// BuildGraph instantiates every node block through the registry and
// wires every connect block into graph edges.
func BuildGraph(model *config.Model, reg *registry.Registry, bus *event.Bus) (*graph.Graph, error) {
	g := graph.New(bus)
	g.ImageCount = model.Settings.ImageCount
	if g.ImageCount == 0 {
		g.ImageCount = 3
	}

	for _, nb := range model.Nodes {
		spec, err := reg.Lookup(nb.Type)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nb.ID(), err)
		}
		inst := node.NewInstance(nb.ID(), spec, nb.Params)
		if err := g.AddNode(inst); err != nil {
			return nil, err
		}
	}

	for _, cb := range model.Connects {
		from, err := config.ParseAddress(cb.From)
		if err != nil {
			return nil, err
		}
		to, err := config.ParseAddress(cb.To)
		if err != nil {
			return nil, err
		}
		role, err := slot.ParseRole(cb.Role)
		if err != nil {
			return nil, fmt.Errorf("connect %s -> %s: %w", cb.From, cb.To, err)
		}

		edge := graph.Edge{
			From:     from.Node,
			FromSlot: from.Slot,
			To:       to.Node,
			ToSlot:   to.Slot,
			Role:     role,
			Field:    cb.Field,
		}
		if cb.Binding != nil {
			edge.Variadic = true
			edge.Binding = *cb.Binding
		}
		if err := g.Connect(edge); err != nil {
			return nil, err
		}
	}
	return g, nil
}
