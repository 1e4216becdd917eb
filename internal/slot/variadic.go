package slot

import (
	"fmt"

	"github.com/vk/rendergraph/internal/reflection"
	"github.com/vk/rendergraph/internal/resource"
)

// State tracks a variadic slot through one compile pass.
type State uint8

const (
	// Tentative: created when a graph edge was connected, before any
	// reflection data was available.
	Tentative State = iota
	// Validated: matched against a reflection binding this pass.
	Validated
	// Invalid: no reflection binding matched; the slot is excluded from
	// gathering and binding until a later pass validates it.
	Invalid
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Tentative:
		return "tentative"
	case Validated:
		return "validated"
	case Invalid:
		return "invalid"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// SourceRef records where a variadic slot's value comes from, so
// execute-role slots can be re-resolved every frame.
type SourceRef struct {
	Node   string
	Output string
}

// VariadicSlot is one element of a node's dynamically-sized input
// collection, typically one per shader descriptor binding.
type VariadicSlot struct {
	// Index is the ordinal position in the registry.
	Index int
	// Binding is the shader binding number this slot targets.
	Binding uint32
	// Name is a human-readable label, e.g. "sampled_image_0".
	Name string
	// Kind is the expected descriptor kind. Before validation it is a
	// guess from the connection; validation overwrites it with the
	// reflection-declared kind.
	Kind resource.DescriptorKind
	// State is the validation state for the current compile pass.
	State State
	// Role declares when the slot's value is resolved.
	Role Role
	// Source backs deferred (execute-phase) resolution.
	Source SourceRef
	// Field, when non-empty, names a field to extract from a
	// struct-valued source instead of taking the whole value.
	Field string

	value resource.Value
}

// Set stores the resolved value for this slot.
func (v *VariadicSlot) Set(val resource.Value) {
	if val == nil {
		val = resource.Empty{}
	}
	v.value = val
}

// Value returns the resolved value, Empty until first resolution.
func (v *VariadicSlot) Value() resource.Value {
	if v.value == nil {
		return resource.Empty{}
	}
	return v.value
}

// Registry manages a node's variadic input collection.
type Registry struct {
	slots    []*VariadicSlot
	minCount int
	maxCount int // 0 means unbounded
}

// NewRegistry returns a registry enforcing the given count constraints.
// maxCount of zero means unbounded.
func NewRegistry(minCount, maxCount int) *Registry {
	return &Registry{minCount: minCount, maxCount: maxCount}
}

// RegisterTentative appends a Tentative slot for a new connection. It
// is called when a graph edge is connected, before reflection data
// exists, so the descriptor kind is at best a guess.
func (r *Registry) RegisterTentative(binding uint32, name string, role Role, src SourceRef) (*VariadicSlot, error) {
	if r.maxCount > 0 && len(r.slots) >= r.maxCount {
		return nil, fmt.Errorf("variadic input limit reached (%d)", r.maxCount)
	}
	s := &VariadicSlot{
		Index:   len(r.slots),
		Binding: binding,
		Name:    name,
		State:   Tentative,
		Role:    role,
		Source:  src,
	}
	r.slots = append(r.slots, s)
	return s, nil
}

// ValidateAgainstReflection drives every slot to Validated or Invalid
// by matching binding numbers against the reflected shader interface.
// On a match the reflection-declared descriptor kind overrides any
// earlier guess; kinds like sampler vs. combined-sampler are only
// knowable from reflection. Slots already validated by a previous pass
// are re-validated: a recompile may carry a different shader.
//
// Must run once per Compile, strictly before resource gathering.
func (r *Registry) ValidateAgainstReflection(bundle *reflection.Bundle) {
	for _, s := range r.slots {
		b := bundle.FindBinding(s.Binding)
		if b == nil {
			s.State = Invalid
			continue
		}
		s.Kind = b.Kind
		s.State = Validated
	}
}

// Count returns the number of slots whose role intersects filter.
func (r *Registry) Count(filter Role) int {
	n := 0
	for _, s := range r.slots {
		if s.Role.Has(filter) {
			n++
		}
	}
	return n
}

// Len returns the total number of registered slots.
func (r *Registry) Len() int { return len(r.slots) }

// Slots returns the registered slots in connection order.
func (r *Registry) Slots() []*VariadicSlot { return r.slots }

// At returns the slot at index i, or nil when out of range.
func (r *Registry) At(i int) *VariadicSlot {
	if i < 0 || i >= len(r.slots) {
		return nil
	}
	return r.slots[i]
}

// CheckCount verifies the minimum connection count, returning a
// configuration error when too few edges were connected.
func (r *Registry) CheckCount() error {
	if len(r.slots) < r.minCount {
		return fmt.Errorf("variadic inputs: have %d, need at least %d", len(r.slots), r.minCount)
	}
	return nil
}
