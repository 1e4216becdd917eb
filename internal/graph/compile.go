package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/event"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/slot"
)

// Compile runs the full compile pass: cycle check, topological
// ordering, Setup for first-generation nodes, then Compile in
// dependency order with edge resolution between nodes. Any error
// aborts the pass.
func (g *Graph) Compile(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	if err := g.DetectCycles(); err != nil {
		return err
	}
	order, err := g.topoOrder()
	if err != nil {
		return err
	}
	g.order = order
	logger.Debug("Graph compile order resolved.", "order", order)

	for _, id := range order {
		inst := g.nodes[id]
		if inst.State() != node.Uninitialized {
			continue
		}
		sctx := node.NewContext(ctx, node.PhaseSetup, inst, g.bus)
		sctx.ImageCount = g.ImageCount
		if err := inst.Impl().Setup(sctx); err != nil {
			return fmt.Errorf("setup %s: %w", id, err)
		}
		inst.SetState(node.SetupDone)
	}

	for _, id := range order {
		if err := g.compileNode(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// compileNode recompiles a single node: pending cleanups run first so a
// second generation never leaks the first generation's handles, then
// dependency-role edges are resolved into the node's inputs, then the
// implementation's Compile runs.
func (g *Graph) compileNode(ctx context.Context, id string) error {
	logger := ctxlog.FromContext(ctx).With("node", id)
	inst := g.nodes[id]

	if inst.State() == node.CompileDone || inst.State() == node.ExecuteDone {
		logger.Debug("Recompiling node, releasing previous generation.")
		cctx := node.NewContext(ctx, node.PhaseCleanup, inst, g.bus)
		if err := inst.Impl().Cleanup(cctx); err != nil {
			return fmt.Errorf("cleanup before recompile %s: %w", id, err)
		}
		if err := inst.RunCleanups(); err != nil {
			return fmt.Errorf("cleanup stack before recompile %s: %w", id, err)
		}
		inst.ResetOutputs()
	}

	for _, e := range g.edgesInto(id) {
		if err := g.resolveEdge(e, slot.Dependency); err != nil {
			return err
		}
	}

	if reg := inst.Variadic(); reg != nil {
		if err := reg.CheckCount(); err != nil {
			return fmt.Errorf("compile %s: %w", id, err)
		}
	}

	nctx := node.NewContext(ctx, node.PhaseCompile, inst, g.bus)
	nctx.ImageCount = g.ImageCount
	if err := inst.Impl().Compile(nctx); err != nil {
		return fmt.Errorf("compile %s: %w", id, err)
	}
	inst.SetState(node.CompileDone)
	logger.Debug("Node compiled.")
	return nil
}

// Recompile performs a partial recompilation of id and everything
// downstream of it. Affected nodes are paused (their Execute becomes a
// no-op), cleaned up in reverse dependency order, recompiled in
// dependency order, then resumed. Unaffected nodes keep their
// resources untouched.
func (g *Graph) Recompile(ctx context.Context, id string) error {
	logger := ctxlog.FromContext(ctx)
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("recompile: node not found: %s", id)
	}
	if g.order == nil {
		return fmt.Errorf("recompile: graph was never compiled")
	}

	closure := g.downstream(id)
	affected := make([]string, 0, len(closure))
	for _, oid := range g.order {
		if _, ok := closure[oid]; ok {
			affected = append(affected, oid)
		}
	}
	logger.Info("Partial recompile starting.", "root", id, "affected", affected)

	g.publishPause(affected, true)

	var firstErr error
	for i := len(affected) - 1; i >= 0; i-- {
		inst := g.nodes[affected[i]]
		if inst.State() != node.CompileDone && inst.State() != node.ExecuteDone {
			continue
		}
		cctx := node.NewContext(ctx, node.PhaseCleanup, inst, g.bus)
		if err := inst.Impl().Cleanup(cctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup %s: %w", affected[i], err)
		}
		if err := inst.RunCleanups(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup stack %s: %w", affected[i], err)
		}
		inst.ResetOutputs()
		inst.SetState(node.SetupDone)
	}
	if firstErr != nil {
		return firstErr
	}

	for _, oid := range affected {
		if err := g.compileNode(ctx, oid); err != nil {
			return err
		}
	}

	g.publishPause(affected, false)
	logger.Info("Partial recompile finished.", "root", id)
	return nil
}

// publishPause flips the pause flag on the affected nodes and notifies
// subscribers. Pause state is observed via the bus, not polled.
func (g *Graph) publishPause(ids []string, paused bool) {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	for _, id := range sorted {
		g.nodes[id].SetPaused(paused)
	}
	topic := event.TopicPause
	if !paused {
		topic = event.TopicResume
	}
	g.bus.Publish(event.Event{Topic: topic, Nodes: sorted})
}
