package graph

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/vk/rendergraph/internal/event"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Edge declares "output slot FromSlot of node From feeds input slot
// ToSlot of node To". When Variadic is set the edge targets the
// consumer's variadic collection at the given binding number instead of
// a fixed slot.
type Edge struct {
	From     string
	FromSlot string
	To       string
	ToSlot   string

	Variadic bool
	Binding  uint32
	Role     slot.Role
	// Field extracts one field from a struct-valued source.
	Field string

	// target is the variadic slot created for this edge, nil for fixed
	// edges.
	target *slot.VariadicSlot
}

// Graph is the render graph: node instances plus the slot edges
// between them. The graph is the sole owner of cross-node ordering;
// nodes exchange values only through resolved edges.
type Graph struct {
	bus   *event.Bus
	nodes map[string]*node.Instance
	edges []*Edge

	deps       map[string]map[string]struct{}
	dependents map[string]map[string]struct{}

	// order is the topological compile/execute order, valid after
	// Compile.
	order []string

	// ImageCount is the swapchain image count nodes size per-image
	// resources against.
	ImageCount int
}

// New returns an empty graph publishing on the given bus.
func New(bus *event.Bus) *Graph {
	return &Graph{
		bus:        bus,
		nodes:      make(map[string]*node.Instance),
		deps:       make(map[string]map[string]struct{}),
		dependents: make(map[string]map[string]struct{}),
	}
}

// Bus returns the graph's event bus.
func (g *Graph) Bus() *event.Bus { return g.bus }

// AddNode registers a node instance. Duplicate IDs are a configuration
// error.
func (g *Graph) AddNode(inst *node.Instance) error {
	id := inst.ID()
	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("duplicate node id %q", id)
	}
	g.nodes[id] = inst
	g.deps[id] = make(map[string]struct{})
	g.dependents[id] = make(map[string]struct{})
	return nil
}

// Node returns the instance with the given ID, or nil.
func (g *Graph) Node(id string) *node.Instance { return g.nodes[id] }

// NodeIDs returns all node IDs in lexical order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Order returns the topological order computed by the last Compile.
func (g *Graph) Order() []string { return g.order }

// Connect wires an edge. Fixed-slot targets are validated against both
// schemas immediately; variadic targets register a Tentative slot on
// the consumer, to be validated against shader reflection during its
// Compile.
func (g *Graph) Connect(e Edge) error {
	from, ok := g.nodes[e.From]
	if !ok {
		return fmt.Errorf("connect: source node not found: %s", e.From)
	}
	to, ok := g.nodes[e.To]
	if !ok {
		return fmt.Errorf("connect: target node not found: %s", e.To)
	}
	if e.From == e.To {
		return fmt.Errorf("connect: self-referential edge not allowed: %s", e.From)
	}
	if from.Spec().Output(e.FromSlot) == nil {
		return fmt.Errorf("connect: %s has no output %q", e.From, e.FromSlot)
	}

	if e.Variadic {
		reg := to.Variadic()
		if reg == nil {
			return fmt.Errorf("connect: %s does not accept variadic inputs", e.To)
		}
		role := e.Role
		if role == 0 {
			role = slot.Dependency
		}
		name := e.ToSlot
		if name == "" {
			name = fmt.Sprintf("binding_%d", e.Binding)
		}
		vs, err := reg.RegisterTentative(e.Binding, name, role, slot.SourceRef{Node: e.From, Output: e.FromSlot})
		if err != nil {
			return fmt.Errorf("connect: %s: %w", e.To, err)
		}
		vs.Field = e.Field
		e.target = vs
	} else {
		decl := to.Spec().Input(e.ToSlot)
		if decl == nil {
			return fmt.Errorf("connect: %s has no input %q", e.To, e.ToSlot)
		}
		if e.Role == 0 {
			e.Role = decl.Role
		}
	}

	ec := e
	g.edges = append(g.edges, &ec)
	g.deps[e.To][e.From] = struct{}{}
	g.dependents[e.From][e.To] = struct{}{}
	return nil
}

// edgesInto returns the edges targeting node id, in connection order.
func (g *Graph) edgesInto(id string) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// extractField pulls a named field out of a struct-valued output. The
// field must itself be a resource.Value. Only StructRef sources support
// extraction: the referent stays owned by the producer and the consumer
// takes a snapshot of one field.
func extractField(v resource.Value, field string) (resource.Value, error) {
	ref, ok := v.(resource.StructRef)
	if !ok {
		return nil, fmt.Errorf("field extraction %q: source is %s, want struct_ref", field, v.Kind())
	}
	rv := reflect.ValueOf(ref.Ptr)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("field extraction %q: nil struct reference from %s", field, ref.Owner)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("field extraction %q: referent is %s, want struct", field, rv.Kind())
	}
	fv := rv.FieldByName(field)
	if !fv.IsValid() {
		return nil, fmt.Errorf("field extraction: %T has no field %q", ref.Ptr, field)
	}
	val, ok := fv.Interface().(resource.Value)
	if !ok {
		return nil, fmt.Errorf("field extraction %q: field is %T, want resource.Value", field, fv.Interface())
	}
	return val, nil
}

// resolveEdge copies the producer's output into the consumer's slot.
// A missing producer value resolves to Empty for execute-phase
// resolution (legitimately filled later) and is an error during
// compile.
func (g *Graph) resolveEdge(e *Edge, phase slot.Role) error {
	role := e.Role
	if e.Variadic {
		role = e.target.Role
	}
	if !role.Has(phase) {
		return nil
	}

	from := g.nodes[e.From]
	v, err := from.ReadOutput(e.FromSlot)
	if err != nil {
		if phase == slot.Execute {
			v = resource.Empty{}
		} else {
			return fmt.Errorf("edge %s.%s -> %s: %w", e.From, e.FromSlot, e.To, err)
		}
	}
	if e.Field != "" && !resource.IsEmpty(v) {
		if v, err = extractField(v, e.Field); err != nil {
			return fmt.Errorf("edge %s.%s -> %s: %w", e.From, e.FromSlot, e.To, err)
		}
	}

	if e.Variadic {
		e.target.Set(v)
		return nil
	}
	return g.nodes[e.To].WriteInput(e.ToSlot, v)
}
