// Package registry holds the node type specs known to an application
// instance. Node packages register their spec at wiring time; the graph
// builder looks types up by name.
package registry

import (
	"fmt"
	"sort"

	"github.com/vk/rendergraph/internal/node"
)

// Module is the interface node packages implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps node type names to their specs.
type Registry struct {
	specs map[string]*node.Spec
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{specs: make(map[string]*node.Spec)}
}

// Register adds a node type spec. A duplicate type name is a
// programmer error and panics.
func (r *Registry) Register(spec *node.Spec) {
	if _, exists := r.specs[spec.Type]; exists {
		panic(fmt.Sprintf("node type %q already registered", spec.Type))
	}
	if spec.New == nil {
		panic(fmt.Sprintf("node type %q has no factory", spec.Type))
	}
	r.specs[spec.Type] = spec
}

// Lookup returns the spec for a type name.
func (r *Registry) Lookup(typeName string) (*node.Spec, error) {
	spec, ok := r.specs[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown node type %q", typeName)
	}
	return spec, nil
}

// Types returns the registered type names in lexical order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.specs))
	for t := range r.specs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
