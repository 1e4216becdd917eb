package config

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Model is the unified representation of one graph description.
type Model struct {
	Settings Settings
	Nodes    []*Node
	Connects []*Connect
}

// Settings are graph-wide options.
type Settings struct {
	// ImageCount is the swapchain image count the graph compiles
	// against.
	ImageCount int
	// Frames is how many frames the frame loop drives; 0 means the
	// caller decides.
	Frames int
}

// Node is one `node "type" "name" { ... }` block. Params carries the
// block's attributes as evaluated values.
type Node struct {
	Type   string
	Name   string
	Params map[string]cty.Value
}

// ID returns the node instance identifier, "type.name".
func (n *Node) ID() string { return n.Type + "." + n.Name }

// Connect is one `connect { ... }` block wiring an output to an input.
type Connect struct {
	// From and To are slot addresses, "type.name:slot". For variadic
	// targets To omits the slot part and Binding selects the shader
	// binding number.
	From    string
	To      string
	Binding *uint32
	Role    string
	Field   string
}

// Address is a parsed "type.name:slot" reference.
type Address struct {
	Node string
	Slot string
}

// ParseAddress splits a slot address. The slot part is optional for
// variadic targets.
func ParseAddress(s string) (Address, error) {
	nodePart := s
	slotPart := ""
	if i := strings.IndexByte(s, ':'); i >= 0 {
		nodePart = s[:i]
		slotPart = s[i+1:]
		if slotPart == "" {
			return Address{}, fmt.Errorf("address %q: empty slot name after ':'", s)
		}
	}
	if nodePart == "" || !strings.Contains(nodePart, ".") {
		return Address{}, fmt.Errorf("address %q: node part must be \"type.name\"", s)
	}
	return Address{Node: nodePart, Slot: slotPart}, nil
}
