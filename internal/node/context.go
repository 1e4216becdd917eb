package node

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/rendergraph/internal/event"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// Context is the single per-call context passed to every lifecycle
// method. It carries the current phase tag and exposes one generic
// In/Out pair whose legality is checked against phase and slot role at
// the call site.
type Context struct {
	// Ctx is the ambient context, carrying the logger.
	Ctx context.Context
	// Phase tags which lifecycle method this context was built for.
	Phase Phase
	// Bus is the graph-wide event bus.
	Bus *event.Bus

	// FrameIndex counts rendered frames, monotonically.
	FrameIndex int
	// ImageIndex is the acquired swapchain image for this frame. Only
	// meaningful during Execute; -1 otherwise.
	ImageIndex int
	// ImageCount is the swapchain image count the graph was compiled
	// against.
	ImageCount int

	inst *Instance
}

// NewContext builds a phase context for one lifecycle call.
func NewContext(ctx context.Context, phase Phase, inst *Instance, bus *event.Bus) *Context {
	return &Context{Ctx: ctx, Phase: phase, Bus: bus, ImageIndex: -1, inst: inst}
}

// Instance returns the node instance this context addresses.
func (c *Context) Instance() *Instance { return c.inst }

// readLegal checks phase-vs-role legality for an input read.
func (c *Context) readLegal(role slot.Role, name string) error {
	switch c.Phase {
	case PhaseSetup:
		// Inputs are never readable in Setup: dependency values may not
		// be produced yet, and recompilation must stay idempotent.
		return fmt.Errorf("%w: read of %q during setup", ErrPhase, name)
	case PhaseCompile:
		if !role.Has(slot.Dependency) {
			return fmt.Errorf("%w: %q is execute-only, read it during execute", ErrPhase, name)
		}
		return nil
	case PhaseExecute:
		return nil
	case PhaseCleanup:
		return fmt.Errorf("%w: read of %q during cleanup", ErrPhase, name)
	}
	return fmt.Errorf("%w: read of %q", ErrPhase, name)
}

// writeLegal checks phase-vs-role legality for an output write.
func (c *Context) writeLegal(role slot.Role, name string) error {
	switch c.Phase {
	case PhaseCompile:
		if !role.Has(slot.Dependency) && !role.Has(slot.Execute) {
			return fmt.Errorf("%w: write of %q during compile", ErrPhase, name)
		}
		return nil
	case PhaseExecute:
		if !role.Has(slot.Execute) {
			return fmt.Errorf("%w: %q is dependency-role, write it during compile", ErrPhase, name)
		}
		return nil
	}
	return fmt.Errorf("%w: write of %q during %s", ErrPhase, name, c.Phase)
}

// InValue reads a fixed input slot as a raw Value.
func (c *Context) InValue(name string) (resource.Value, error) {
	s := c.inst.Input(name)
	if s == nil {
		return nil, fmt.Errorf("%w: %s input %q", ErrUnknownSlot, c.inst.ID(), name)
	}
	if err := c.readLegal(s.Role, name); err != nil {
		return nil, err
	}
	return s.Read()
}

// Out writes a fixed output slot.
func (c *Context) Out(name string, v resource.Value) error {
	s := c.inst.Output(name)
	if s == nil {
		return fmt.Errorf("%w: %s output %q", ErrUnknownSlot, c.inst.ID(), name)
	}
	if err := c.writeLegal(s.Role, name); err != nil {
		return err
	}
	return s.Write(v)
}

// In reads a fixed input slot and asserts its concrete variant type.
func In[T resource.Value](c *Context, name string) (T, error) {
	var zero T
	v, err := c.InValue(name)
	if err != nil {
		return zero, err
	}
	tv, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: input %q holds %s", slot.ErrKindMismatch, name, v.Kind())
	}
	return tv, nil
}

// InVariadic reads the variadic input at index i. Invalid slots read as
// Empty so callers can skip them uniformly.
func (c *Context) InVariadic(i int) (resource.Value, error) {
	reg := c.inst.Variadic()
	if reg == nil {
		return nil, fmt.Errorf("%w: %s has no variadic inputs", ErrUnknownSlot, c.inst.ID())
	}
	vs := reg.At(i)
	if vs == nil {
		return nil, fmt.Errorf("%w: %s variadic index %d", ErrUnknownSlot, c.inst.ID(), i)
	}
	if err := c.readLegal(vs.Role, vs.Name); err != nil {
		return nil, err
	}
	if vs.State == slot.Invalid {
		return resource.Empty{}, nil
	}
	return vs.Value(), nil
}

// VariadicCount returns the number of variadic inputs whose role
// intersects filter.
func (c *Context) VariadicCount(filter slot.Role) int {
	reg := c.inst.Variadic()
	if reg == nil {
		return 0
	}
	return reg.Count(filter)
}

// OnCleanup registers fn on the node's ordered cleanup stack. Legal
// during Compile only; the graph pops the stack before any recompile
// and during teardown.
func (c *Context) OnCleanup(fn func() error) error {
	if c.Phase != PhaseCompile {
		return fmt.Errorf("%w: OnCleanup during %s", ErrPhase, c.Phase)
	}
	c.inst.PushCleanup(fn)
	return nil
}

// Param decodes the named configuration parameter into T, returning
// def when the parameter is absent. Conversion goes through cty so HCL
// numbers, strings, and bools all coerce predictably.
func Param[T any](c *Context, name string, def T) (T, error) {
	raw, ok := c.inst.Param(name)
	if !ok || raw.IsNull() {
		return def, nil
	}
	var out T
	ty, err := gocty.ImpliedType(out)
	if err != nil {
		return def, fmt.Errorf("parameter %q: %w", name, err)
	}
	conv, err := convert.Convert(raw, ty)
	if err != nil {
		return def, fmt.Errorf("parameter %q: %w", name, err)
	}
	if err := gocty.FromCtyValue(conv, &out); err != nil {
		return def, fmt.Errorf("parameter %q: %w", name, err)
	}
	return out, nil
}

// ParamCty returns the raw cty value of a parameter.
func (c *Context) ParamCty(name string) (cty.Value, bool) {
	return c.inst.Param(name)
}
