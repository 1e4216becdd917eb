package graph

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/rendergraph/internal/event"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/resource"
	"github.com/vk/rendergraph/internal/slot"
)

// counters tracks lifecycle calls for one test node.
type counters struct {
	setups   int
	compiles int
	executes int
	cleanups int
}

type testNode struct {
	c         *counters
	onCompile func(*node.Context) error
	onExecute func(*node.Context) error
}

func (n *testNode) Setup(ctx *node.Context) error {
	n.c.setups++
	return nil
}

func (n *testNode) Compile(ctx *node.Context) error {
	n.c.compiles++
	if n.onCompile != nil {
		return n.onCompile(ctx)
	}
	return nil
}

func (n *testNode) Execute(ctx *node.Context) error {
	n.c.executes++
	if n.onExecute != nil {
		return n.onExecute(ctx)
	}
	return nil
}

func (n *testNode) Cleanup(ctx *node.Context) error {
	n.c.cleanups++
	return nil
}

// harness builds graphs of counted test nodes keyed by id.
type harness struct {
	t     *testing.T
	g     *Graph
	bus   *event.Bus
	stats map[string]*counters
	nodes map[string]*testNode
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bus := event.NewBus()
	g := New(bus)
	g.ImageCount = 2
	return &harness{t: t, g: g, bus: bus, stats: make(map[string]*counters), nodes: make(map[string]*testNode)}
}

// add registers a node with one dependency-role input "in", one
// execute-role input "frame_in", and matching outputs "out"/"frame_out".
func (h *harness) add(id string) *testNode {
	h.t.Helper()
	c := &counters{}
	tn := &testNode{c: c}
	spec := &node.Spec{
		Type: strings.SplitN(id, ".", 2)[0],
		Inputs: []node.SlotDecl{
			{Name: "in", Kind: resource.KindBuffer, Role: slot.Dependency},
			{Name: "frame_in", Kind: resource.KindInt, Role: slot.Execute},
		},
		Outputs: []node.SlotDecl{
			{Name: "out", Kind: resource.KindBuffer, Role: slot.Dependency},
			{Name: "frame_out", Kind: resource.KindInt, Role: slot.Execute},
		},
		New: func() node.Node { return tn },
	}
	inst := node.NewInstance(id, spec, nil)
	require.NoError(h.t, h.g.AddNode(inst))
	h.stats[id] = c
	h.nodes[id] = tn
	return tn
}

// chain wires a dependency edge a.out -> b.in.
func (h *harness) chain(a, b string) {
	h.t.Helper()
	require.NoError(h.t, h.g.Connect(Edge{From: a, FromSlot: "out", To: b, ToSlot: "in"}))
}

func producerCompile(handle uint64) func(*node.Context) error {
	return func(ctx *node.Context) error {
		return ctx.Out("out", resource.BufferVal{H: resource.Buffer(handle)})
	}
}

func TestDetectCycles(t *testing.T) {
	t.Run("reports a cycle", func(t *testing.T) {
		h := newHarness(t)
		h.add("a.1").onCompile = producerCompile(1)
		h.add("b.1").onCompile = producerCompile(2)
		h.add("c.1").onCompile = producerCompile(3)
		h.chain("a.1", "b.1")
		h.chain("b.1", "c.1")
		h.chain("c.1", "a.1")

		err := h.g.DetectCycles()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle detected")
	})

	t.Run("accepts a dag", func(t *testing.T) {
		h := newHarness(t)
		h.add("a.1")
		h.add("b.1")
		h.chain("a.1", "b.1")
		assert.NoError(t, h.g.DetectCycles())
	})
}

func TestCompileOrder(t *testing.T) {
	h := newHarness(t)
	var order []string
	for _, id := range []string{"sink.1", "mid.1", "source.1", "island.1"} {
		id := id
		n := h.add(id)
		n.onCompile = func(ctx *node.Context) error {
			order = append(order, id)
			return ctx.Out("out", resource.BufferVal{H: resource.Buffer(resource.NextHandle())})
		}
	}
	h.chain("source.1", "mid.1")
	h.chain("mid.1", "sink.1")

	require.NoError(t, h.g.Compile(context.Background()))

	idx := make(map[string]int)
	for i, id := range order {
		idx[id] = i
	}
	assert.Less(t, idx["source.1"], idx["mid.1"])
	assert.Less(t, idx["mid.1"], idx["sink.1"])
	assert.Len(t, order, 4)
}

func TestCompileResolvesDependencyEdges(t *testing.T) {
	h := newHarness(t)
	h.add("producer.1").onCompile = producerCompile(77)

	var got resource.Value
	h.add("consumer.1").onCompile = func(ctx *node.Context) error {
		v, err := ctx.InValue("in")
		if err != nil {
			return err
		}
		got = v
		return nil
	}
	h.chain("producer.1", "consumer.1")

	require.NoError(t, h.g.Compile(context.Background()))
	assert.Equal(t, resource.BufferVal{H: 77}, got)
}

func TestCompileFailsOnMissingDependency(t *testing.T) {
	h := newHarness(t)
	// Producer never writes its output.
	h.add("producer.1")
	h.add("consumer.1")
	h.chain("producer.1", "consumer.1")

	err := h.g.Compile(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, slot.ErrMissingInput)
}

func TestConnectValidation(t *testing.T) {
	h := newHarness(t)
	h.add("a.1")
	h.add("b.1")

	t.Run("unknown source node", func(t *testing.T) {
		err := h.g.Connect(Edge{From: "ghost.1", FromSlot: "out", To: "b.1", ToSlot: "in"})
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("unknown output slot", func(t *testing.T) {
		err := h.g.Connect(Edge{From: "a.1", FromSlot: "nope", To: "b.1", ToSlot: "in"})
		assert.ErrorContains(t, err, "no output")
	})

	t.Run("unknown input slot", func(t *testing.T) {
		err := h.g.Connect(Edge{From: "a.1", FromSlot: "out", To: "b.1", ToSlot: "nope"})
		assert.ErrorContains(t, err, "no input")
	})

	t.Run("self edge", func(t *testing.T) {
		err := h.g.Connect(Edge{From: "a.1", FromSlot: "out", To: "a.1", ToSlot: "in"})
		assert.ErrorContains(t, err, "self-referential")
	})

	t.Run("variadic edge to fixed-only node", func(t *testing.T) {
		err := h.g.Connect(Edge{From: "a.1", FromSlot: "out", To: "b.1", Variadic: true, Binding: 0})
		assert.ErrorContains(t, err, "variadic")
	})
}

func TestSetupRunsOncePerNodeLife(t *testing.T) {
	h := newHarness(t)
	h.add("a.1").onCompile = producerCompile(1)
	h.add("b.1").onCompile = producerCompile(2)
	h.chain("a.1", "b.1")
	ctx := context.Background()

	require.NoError(t, h.g.Compile(ctx))
	require.NoError(t, h.g.Recompile(ctx, "a.1"))

	assert.Equal(t, 1, h.stats["a.1"].setups, "setup is one-shot, recompiles skip it")
	assert.Equal(t, 1, h.stats["b.1"].setups)
	assert.Equal(t, 2, h.stats["a.1"].compiles)
}

func TestRecompileReleasesPreviousGeneration(t *testing.T) {
	h := newHarness(t)
	var live int
	n := h.add("a.1")
	n.onCompile = func(ctx *node.Context) error {
		live++
		if err := ctx.Out("out", resource.BufferVal{H: resource.Buffer(resource.NextHandle())}); err != nil {
			return err
		}
		return ctx.OnCleanup(func() error {
			live--
			return nil
		})
	}
	ctx := context.Background()

	require.NoError(t, h.g.Compile(ctx))
	for i := 0; i < 3; i++ {
		require.NoError(t, h.g.Recompile(ctx, "a.1"))
	}
	assert.Equal(t, 1, live, "each generation must release the previous one")

	require.NoError(t, h.g.Teardown(ctx))
	assert.Equal(t, 0, live)
}

func TestRecompileTouchesOnlyDownstream(t *testing.T) {
	h := newHarness(t)
	h.add("a.1").onCompile = producerCompile(1)
	h.add("b.1").onCompile = producerCompile(2)
	h.add("c.1").onCompile = producerCompile(3)
	h.add("island.1").onCompile = producerCompile(4)
	h.chain("a.1", "b.1")
	h.chain("b.1", "c.1")
	ctx := context.Background()

	require.NoError(t, h.g.Compile(ctx))
	require.NoError(t, h.g.Recompile(ctx, "b.1"))

	assert.Equal(t, 1, h.stats["a.1"].compiles, "upstream stays untouched")
	assert.Equal(t, 2, h.stats["b.1"].compiles)
	assert.Equal(t, 2, h.stats["c.1"].compiles)
	assert.Equal(t, 1, h.stats["island.1"].compiles)

	assert.Equal(t, 0, h.stats["a.1"].cleanups)
	assert.Equal(t, 1, h.stats["b.1"].cleanups)
}

func TestRecompilePublishesPauseAndResume(t *testing.T) {
	h := newHarness(t)
	h.add("a.1").onCompile = producerCompile(1)
	h.add("b.1").onCompile = producerCompile(2)
	h.chain("a.1", "b.1")
	ctx := context.Background()
	require.NoError(t, h.g.Compile(ctx))

	var pauses, resumes [][]string
	h.bus.Subscribe(event.TopicPause, func(ev event.Event) bool {
		pauses = append(pauses, ev.Nodes)
		return false
	})
	h.bus.Subscribe(event.TopicResume, func(ev event.Event) bool {
		resumes = append(resumes, ev.Nodes)
		return false
	})

	require.NoError(t, h.g.Recompile(ctx, "a.1"))

	require.Len(t, pauses, 1)
	require.Len(t, resumes, 1)
	assert.Equal(t, []string{"a.1", "b.1"}, pauses[0])
	assert.Equal(t, []string{"a.1", "b.1"}, resumes[0])

	assert.False(t, h.g.Node("a.1").Paused())
	assert.False(t, h.g.Node("b.1").Paused())
}

func TestExecuteFrame(t *testing.T) {
	t.Run("resolves execute edges every frame", func(t *testing.T) {
		h := newHarness(t)
		p := h.add("producer.1")
		p.onCompile = producerCompile(1)
		frame := 0
		p.onExecute = func(ctx *node.Context) error {
			return ctx.Out("frame_out", resource.IntVal{V: int64(frame)})
		}

		var seen []int64
		c := h.add("consumer.1")
		c.onExecute = func(ctx *node.Context) error {
			v, err := node.In[resource.IntVal](ctx, "frame_in")
			if err != nil {
				return err
			}
			seen = append(seen, v.V)
			return nil
		}
		require.NoError(t, h.g.Connect(Edge{
			From: "producer.1", FromSlot: "frame_out",
			To: "consumer.1", ToSlot: "frame_in",
		}))
		ctx := context.Background()
		require.NoError(t, h.g.Compile(ctx))

		for ; frame < 3; frame++ {
			require.NoError(t, h.g.ExecuteFrame(ctx, frame, frame%2))
		}
		assert.Equal(t, []int64{0, 1, 2}, seen)
	})

	t.Run("paused node is skipped", func(t *testing.T) {
		h := newHarness(t)
		h.add("a.1").onCompile = producerCompile(1)
		ctx := context.Background()
		require.NoError(t, h.g.Compile(ctx))

		h.g.Node("a.1").SetPaused(true)
		require.NoError(t, h.g.ExecuteFrame(ctx, 0, 0))
		assert.Equal(t, 0, h.stats["a.1"].executes)

		h.g.Node("a.1").SetPaused(false)
		require.NoError(t, h.g.ExecuteFrame(ctx, 1, 1))
		assert.Equal(t, 1, h.stats["a.1"].executes)
	})

	t.Run("stale frame skips one node only", func(t *testing.T) {
		h := newHarness(t)
		a := h.add("a.1")
		a.onCompile = producerCompile(1)
		a.onExecute = func(ctx *node.Context) error {
			return fmt.Errorf("%w: image out of range", node.ErrStaleFrame)
		}
		h.add("b.1")
		ctx := context.Background()
		require.NoError(t, h.g.Compile(ctx))

		require.NoError(t, h.g.ExecuteFrame(ctx, 0, 0))
		assert.Equal(t, 1, h.stats["b.1"].executes, "siblings still run")
	})

	t.Run("other execute errors are fatal", func(t *testing.T) {
		h := newHarness(t)
		a := h.add("a.1")
		a.onCompile = producerCompile(1)
		a.onExecute = func(ctx *node.Context) error {
			return fmt.Errorf("device lost")
		}
		ctx := context.Background()
		require.NoError(t, h.g.Compile(ctx))

		err := h.g.ExecuteFrame(ctx, 0, 0)
		assert.ErrorContains(t, err, "device lost")
	})

	t.Run("unwritten execute output reads as missing, not stale data", func(t *testing.T) {
		h := newHarness(t)
		h.add("producer.1").onCompile = producerCompile(1)
		var readErr error
		c := h.add("consumer.1")
		c.onExecute = func(ctx *node.Context) error {
			_, readErr = ctx.InValue("frame_in")
			return nil
		}
		require.NoError(t, h.g.Connect(Edge{
			From: "producer.1", FromSlot: "frame_out",
			To: "consumer.1", ToSlot: "frame_in",
		}))
		ctx := context.Background()
		require.NoError(t, h.g.Compile(ctx))

		require.NoError(t, h.g.ExecuteFrame(ctx, 0, 0))
		assert.ErrorIs(t, readErr, slot.ErrMissingInput)
	})
}

func TestTeardownReverseOrder(t *testing.T) {
	h := newHarness(t)
	var cleaned []string
	for _, id := range []string{"a.1", "b.1"} {
		id := id
		n := h.add(id)
		n.onCompile = func(ctx *node.Context) error {
			if err := ctx.Out("out", resource.BufferVal{H: resource.Buffer(resource.NextHandle())}); err != nil {
				return err
			}
			return ctx.OnCleanup(func() error {
				cleaned = append(cleaned, id)
				return nil
			})
		}
	}
	h.chain("a.1", "b.1")
	ctx := context.Background()
	require.NoError(t, h.g.Compile(ctx))

	require.NoError(t, h.g.Teardown(ctx))
	assert.Equal(t, []string{"b.1", "a.1"}, cleaned, "consumers release before producers")

	// Teardown is idempotent.
	require.NoError(t, h.g.Teardown(ctx))
	assert.Len(t, cleaned, 2)
}

type sharedState struct {
	Width uint32
	View  resource.ImageViewVal
}

func TestFieldExtraction(t *testing.T) {
	h := newHarness(t)
	state := &sharedState{Width: 800, View: resource.ImageViewVal{H: 12}}

	c := &counters{}
	owner := &testNode{c: c, onCompile: func(ctx *node.Context) error {
		return ctx.Out("state", resource.StructRef{Ptr: state, Owner: "owner.1"})
	}}
	ownerSpec := &node.Spec{
		Type: "owner",
		Outputs: []node.SlotDecl{
			{Name: "state", Kind: resource.KindStructRef, Role: slot.Dependency},
		},
		New: func() node.Node { return owner },
	}
	require.NoError(t, h.g.AddNode(node.NewInstance("owner.1", ownerSpec, nil)))

	var got resource.Value
	viewerCounters := &counters{}
	viewer := &testNode{c: viewerCounters, onCompile: func(ctx *node.Context) error {
		v, err := ctx.InValue("view")
		if err != nil {
			return err
		}
		got = v
		return nil
	}}
	viewerSpec := &node.Spec{
		Type: "viewer",
		Inputs: []node.SlotDecl{
			{Name: "view", Kind: resource.KindImageView, Role: slot.Dependency},
		},
		New: func() node.Node { return viewer },
	}
	require.NoError(t, h.g.AddNode(node.NewInstance("viewer.1", viewerSpec, nil)))

	require.NoError(t, h.g.Connect(Edge{
		From: "owner.1", FromSlot: "state",
		To: "viewer.1", ToSlot: "view",
		Field: "View",
	}))

	require.NoError(t, h.g.Compile(context.Background()))
	assert.Equal(t, resource.ImageViewVal{H: 12}, got)
}
