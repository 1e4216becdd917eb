package slot

import (
	"errors"
	"fmt"

	"github.com/vk/rendergraph/internal/resource"
)

// Role declares when a slot's value is resolved. Roles are bit flags:
// a slot may be both Dependency (fetched once at Compile) and Execute
// (refreshed every frame). All role filtering uses bitwise
// intersection, never equality, so a combined-role slot matches both
// the compile-time gather pass and the per-frame refresh pass.
type Role uint8

const (
	Dependency Role = 1 << iota
	Execute
)

// Has reports whether r intersects filter.
func (r Role) Has(filter Role) bool { return r&filter != 0 }

// String returns "dependency", "execute", or "dependency|execute".
func (r Role) String() string {
	switch r {
	case Dependency:
		return "dependency"
	case Execute:
		return "execute"
	case Dependency | Execute:
		return "dependency|execute"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole maps a configuration string to a Role. The empty string
// parses to the zero Role, meaning no explicit role was configured and
// the consumer slot's declared role applies.
func ParseRole(s string) (Role, error) {
	switch s {
	case "":
		return 0, nil
	case "dependency":
		return Dependency, nil
	case "execute":
		return Execute, nil
	case "dependency|execute", "execute|dependency":
		return Dependency | Execute, nil
	}
	return 0, fmt.Errorf("unknown slot role %q", s)
}

// ErrMissingInput is returned when a slot is read before any value was
// written and no default is declared.
var ErrMissingInput = errors.New("slot: missing input")

// ErrKindMismatch is returned when a written value's variant tag does
// not match the slot's declared kind.
var ErrKindMismatch = errors.New("slot: value kind mismatch")

// Slot is a fixed, schema-declared input or output of a node.
type Slot struct {
	// Name identifies the slot within its node.
	Name string
	// DeclaredKind constrains which value variants the slot accepts.
	// KindEmpty means unconstrained (pass-through slots).
	DeclaredKind resource.Kind
	// Role declares the resolution phase(s) of the slot.
	Role Role
	// Lifetime classifies ownership of the stored value.
	Lifetime resource.Lifetime
	// Default, when non-nil, is returned by Read before the first write.
	Default resource.Value

	value   resource.Value
	written bool
}

// Write stores a value. The variant tag must be consistent with the
// declared kind; an explicit Empty write is always legal and resets the
// slot to its unresolved state.
func (s *Slot) Write(v resource.Value) error {
	if v == nil {
		v = resource.Empty{}
	}
	if !resource.IsEmpty(v) && s.DeclaredKind != resource.KindEmpty && v.Kind() != s.DeclaredKind {
		return fmt.Errorf("%w: slot %q declared %s, got %s", ErrKindMismatch, s.Name, s.DeclaredKind, v.Kind())
	}
	s.value = v
	s.written = !resource.IsEmpty(v)
	return nil
}

// Read returns the most recently written value, the declared default if
// never written, or ErrMissingInput.
func (s *Slot) Read() (resource.Value, error) {
	if s.written {
		return s.value, nil
	}
	if s.Default != nil {
		return s.Default, nil
	}
	return nil, fmt.Errorf("%w: slot %q", ErrMissingInput, s.Name)
}

// Valid reports whether the slot holds a written, non-empty value.
func (s *Slot) Valid() bool { return s.written }

// Reset clears the stored value back to Empty. Used when the producing
// node is recompiled.
func (s *Slot) Reset() {
	s.value = resource.Empty{}
	s.written = false
}
