package node

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Instance is one node in the graph: an implementation plus its slot
// storage, parameters, and lifecycle state. All cross-node data flow
// goes through the instance's slots; no node holds a direct reference
// to another node.
type Instance struct {
	id   string
	spec *Spec
	impl Node

	inputs   map[string]*slot.Slot
	outputs  map[string]*slot.Slot
	variadic *slot.Registry

	params map[string]cty.Value

	state  State
	paused bool

	// cleanups is the LIFO stack of teardown funcs registered during
	// Compile. Running it empties the stack, so repeated cleanup is
	// safe.
	cleanups []func() error
}

// NewInstance builds an instance from a spec, instantiating the fixed
// slot schema and the variadic registry when the type accepts one.
func NewInstance(id string, spec *Spec, params map[string]cty.Value) *Instance {
	inst := &Instance{
		id:      id,
		spec:    spec,
		impl:    spec.New(),
		inputs:  make(map[string]*slot.Slot, len(spec.Inputs)),
		outputs: make(map[string]*slot.Slot, len(spec.Outputs)),
		params:  params,
	}
	for _, d := range spec.Inputs {
		inst.inputs[d.Name] = &slot.Slot{
			Name:         d.Name,
			DeclaredKind: d.Kind,
			Role:         d.Role,
			Lifetime:     d.Lifetime,
			Default:      d.Default,
		}
	}
	for _, d := range spec.Outputs {
		inst.outputs[d.Name] = &slot.Slot{
			Name:         d.Name,
			DeclaredKind: d.Kind,
			Role:         d.Role,
			Lifetime:     d.Lifetime,
			Default:      d.Default,
		}
	}
	if spec.AcceptsVariadic {
		inst.variadic = slot.NewRegistry(spec.VariadicMin, spec.VariadicMax)
	}
	return inst
}

// ID returns the instance identifier, "type.name".
func (n *Instance) ID() string { return n.id }

// Spec returns the node type schema.
func (n *Instance) Spec() *Spec { return n.spec }

// Impl returns the node implementation.
func (n *Instance) Impl() Node { return n.impl }

// State returns the lifecycle state.
func (n *Instance) State() State { return n.state }

// SetState transitions the lifecycle state.
func (n *Instance) SetState(s State) { n.state = s }

// Paused reports whether the node is paused for a partial recompile.
// A paused node's Execute is skipped by the frame driver.
func (n *Instance) Paused() bool { return n.paused }

// SetPaused sets the pause flag.
func (n *Instance) SetPaused(p bool) { n.paused = p }

// Input returns the named fixed input slot, or nil.
func (n *Instance) Input(name string) *slot.Slot { return n.inputs[name] }

// Output returns the named fixed output slot, or nil.
func (n *Instance) Output(name string) *slot.Slot { return n.outputs[name] }

// Variadic returns the variadic input registry, nil when the type
// declares none.
func (n *Instance) Variadic() *slot.Registry { return n.variadic }

// WriteInput stores a value into a fixed input slot. It is how the
// graph delivers a producer's output along an edge.
func (n *Instance) WriteInput(name string, v resource.Value) error {
	s := n.inputs[name]
	if s == nil {
		return fmt.Errorf("%w: %s input %q", ErrUnknownSlot, n.id, name)
	}
	return s.Write(v)
}

// ReadOutput fetches a value from a fixed output slot.
func (n *Instance) ReadOutput(name string) (resource.Value, error) {
	s := n.outputs[name]
	if s == nil {
		return nil, fmt.Errorf("%w: %s output %q", ErrUnknownSlot, n.id, name)
	}
	return s.Read()
}

// PushCleanup registers a teardown func, run LIFO by RunCleanups.
func (n *Instance) PushCleanup(fn func() error) {
	n.cleanups = append(n.cleanups, fn)
}

// RunCleanups pops and runs all registered teardown funcs in reverse
// registration order. The stack is emptied even when a func fails; the
// first error is returned. Recompiling a node runs this first so a
// second Compile never leaks the first generation's handles.
func (n *Instance) RunCleanups() error {
	var firstErr error
	for i := len(n.cleanups) - 1; i >= 0; i-- {
		if err := n.cleanups[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.cleanups = n.cleanups[:0]
	return firstErr
}

// ResetOutputs clears all output slots back to Empty. Used when the
// node is invalidated so consumers cannot observe a stale handle.
func (n *Instance) ResetOutputs() {
	for _, s := range n.outputs {
		s.Reset()
	}
}

// Param returns the raw configuration value for name.
func (n *Instance) Param(name string) (cty.Value, bool) {
	v, ok := n.params[name]
	return v, ok
}
