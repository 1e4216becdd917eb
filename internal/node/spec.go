package node

import (
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Node is the contract every render-graph node implements.
//
// Setup performs node-local initialization only; input slots are not
// readable yet. Compile reads dependency-role inputs, allocates
// resources, and writes outputs; it may run multiple times over a
// node's life and must not leak resources across runs. Execute runs
// once per frame. Cleanup tears down everything the node created and
// must be safe to call repeatedly or after a partial Compile.
type Node interface {
	Setup(*Context) error
	Compile(*Context) error
	Execute(*Context) error
	Cleanup(*Context) error
}

// SlotDecl declares one fixed slot in a node type's schema.
type SlotDecl struct {
	Name     string
	Kind     resource.Kind
	Role     slot.Role
	Lifetime resource.Lifetime
	// Default, when non-nil, is returned for reads before first write.
	Default resource.Value
}

// Spec is the published schema of a node type: its fixed inputs and
// outputs, variadic input constraints, and a factory for the
// implementation. The graph compiler consumes specs to build the
// dependency graph.
type Spec struct {
	// Type is the unique node type name, e.g. "swapchain".
	Type    string
	Inputs  []SlotDecl
	Outputs []SlotDecl

	// AcceptsVariadic enables a dynamically-sized input collection
	// (one slot per connected descriptor binding).
	AcceptsVariadic bool
	// VariadicMin/VariadicMax bound the variadic connection count.
	// VariadicMax of zero means unbounded.
	VariadicMin int
	VariadicMax int

	// New constructs the node implementation.
	New func() Node
}

// Input returns the input declaration with the given name, or nil.
func (s *Spec) Input(name string) *SlotDecl {
	for i := range s.Inputs {
		if s.Inputs[i].Name == name {
			return &s.Inputs[i]
		}
	}
	return nil
}

// Output returns the output declaration with the given name, or nil.
func (s *Spec) Output(name string) *SlotDecl {
	for i := range s.Outputs {
		if s.Outputs[i].Name == name {
			return &s.Outputs[i]
		}
	}
	return nil
}
