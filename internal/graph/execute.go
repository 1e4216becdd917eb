package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/node"
	"github.com/vk/rendergraph/internal/slot"
)

// ExecuteFrame runs one frame: every node's Execute in dependency
// order, with execute-role edges re-resolved immediately before each
// consumer runs. Paused nodes are skipped. A node returning
// ErrStaleFrame skips only itself; the frame continues.
func (g *Graph) ExecuteFrame(ctx context.Context, frameIndex, imageIndex int) error {
	logger := ctxlog.FromContext(ctx)
	if g.order == nil {
		return fmt.Errorf("execute: graph was never compiled")
	}

	for _, id := range g.order {
		inst := g.nodes[id]
		if inst.Paused() {
			logger.Debug("Skipping paused node.", "node", id, "frame", frameIndex)
			continue
		}

		for _, e := range g.edgesInto(id) {
			if err := g.resolveEdge(e, slot.Execute); err != nil {
				return err
			}
		}

		ectx := node.NewContext(ctx, node.PhaseExecute, inst, g.bus)
		ectx.FrameIndex = frameIndex
		ectx.ImageIndex = imageIndex
		ectx.ImageCount = g.ImageCount

		if err := inst.Impl().Execute(ectx); err != nil {
			if errors.Is(err, node.ErrStaleFrame) {
				logger.Debug("Node skipped stale frame.", "node", id, "frame", frameIndex, "image", imageIndex)
				continue
			}
			return fmt.Errorf("execute %s: %w", id, err)
		}
		inst.SetState(node.ExecuteDone)
	}
	return nil
}

// Teardown cleans up every node in reverse dependency order. It is
// safe to call after a failed compile or repeatedly: nodes guard their
// own handles and the cleanup stacks empty themselves.
func (g *Graph) Teardown(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	order := g.order
	if order == nil {
		order = g.NodeIDs()
	}

	var firstErr error
	for i := len(order) - 1; i >= 0; i-- {
		inst := g.nodes[order[i]]
		if inst.State() == node.Uninitialized || inst.State() == node.CleanedUp {
			continue
		}
		cctx := node.NewContext(ctx, node.PhaseCleanup, inst, g.bus)
		if err := inst.Impl().Cleanup(cctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup %s: %w", order[i], err)
		}
		if err := inst.RunCleanups(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup stack %s: %w", order[i], err)
		}
		inst.ResetOutputs()
		inst.SetState(node.CleanedUp)
		logger.Debug("Node cleaned up.", "node", order[i])
	}
	return firstErr
}
