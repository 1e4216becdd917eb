// Package reflection models the descriptor metadata an external shader
// compilation step reports for a compiled shader: which binding numbers
// exist, what descriptor kind each expects, and the push-constant
// layout. The engine treats a Bundle as authoritative when validating
// connected resources.
package reflection

import (
	"fmt"
	"strings"

	"github.com/vk/rendergraph/internal/resource"
)

// StageMask is a bit set of shader stages a binding is visible to.
type StageMask uint8

const (
	StageVertex StageMask = 1 << iota
	StageFragment
	StageCompute
)

// Binding describes one descriptor binding of a shader interface.
type Binding struct {
	// Binding is the shader-declared binding number.
	Binding uint32
	// Kind is the descriptor kind the shader expects at this binding.
	Kind resource.DescriptorKind
	// Stages is the set of stages that read the binding.
	Stages StageMask
	// Name is the shader variable name, for diagnostics only.
	Name string
	// Count is the descriptor array size, 1 for non-arrayed bindings.
	Count uint32
}

// ParseStageMask parses a '|'-separated stage list, e.g.
// "vertex|fragment".
func ParseStageMask(s string) (StageMask, error) {
	var mask StageMask
	for _, part := range strings.Split(s, "|") {
		switch strings.TrimSpace(part) {
		case "vertex":
			mask |= StageVertex
		case "fragment":
			mask |= StageFragment
		case "compute":
			mask |= StageCompute
		case "":
		default:
			return 0, fmt.Errorf("unknown shader stage %q", part)
		}
	}
	if mask == 0 {
		return 0, fmt.Errorf("empty stage mask %q", s)
	}
	return mask, nil
}

// PushConstantRange describes one push-constant block.
type PushConstantRange struct {
	Offset uint32
	Size   uint32
	Stages StageMask
}

// Bundle is the full reflected interface of one shader program.
type Bundle struct {
	Bindings      []Binding
	PushConstants []PushConstantRange
}

// FindBinding returns the binding with the given number, or nil.
func (b *Bundle) FindBinding(binding uint32) *Binding {
	for i := range b.Bindings {
		if b.Bindings[i].Binding == binding {
			return &b.Bindings[i]
		}
	}
	return nil
}

// MaxBinding returns the highest binding number in the bundle, and false
// when the bundle declares no bindings.
func (b *Bundle) MaxBinding() (uint32, bool) {
	if len(b.Bindings) == 0 {
		return 0, false
	}
	var max uint32
	for _, bd := range b.Bindings {
		if bd.Binding > max {
			max = bd.Binding
		}
	}
	return max, true
}
