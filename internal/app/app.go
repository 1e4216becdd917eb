package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/rendergraph/internal/config"
	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/event"
	"github.com/vk/rendergraph/internal/graph"
	"github.com/vk/rendergraph/internal/registry"
)

// Config holds everything an App instance needs to run.
type Config struct {
	GraphPath string
	Frames    int
	LogFormat string
	LogLevel  string
}

// App encapsulates the engine's dependencies and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
	bus      *event.Bus

	// pendingRecompiles queues invalidation roots published during a
	// frame; they are processed between frames, never mid-dispatch.
	pendingRecompiles []string
}

// NewApp loads the graph description and registers all node modules.
// Configuration failures are fatal at startup.
func NewApp(outW io.Writer, appConfig *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	model, err := config.Load(ctx, appConfig.GraphPath)
	if err != nil {
		return nil, fmt.Errorf("loading graph description: %w", err)
	}
	logger.Debug("Graph description loaded.", "nodes", len(model.Nodes), "connects", len(model.Connects))

	if appConfig.Frames > 0 {
		model.Settings.Frames = appConfig.Frames
	}

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("Node modules registered.", "types", reg.Types())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		model:    model,
		bus:      event.NewBus(),
	}, nil
}

// Run builds and compiles the graph, drives the frame loop, and tears
// everything down.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	g, err := BuildGraph(a.model, a.registry, a.bus)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}

	// Swapchain-style invalidations are queued here and handled between
	// frames so a recompile never runs inside event dispatch.
	a.bus.Subscribe(event.TopicSwapchainInvalidated, func(ev event.Event) bool {
		a.pendingRecompiles = append(a.pendingRecompiles, ev.Node)
		return false
	})

	if err := g.Compile(ctx); err != nil {
		return fmt.Errorf("compiling graph: %w", err)
	}
	logger.Info("Graph compiled.", "nodes", len(g.Order()), "order", g.Order())

	frames := a.model.Settings.Frames
	if frames <= 0 {
		frames = 3
	}
	for frame := 0; frame < frames; frame++ {
		if err := a.drainRecompiles(ctx, g); err != nil {
			return err
		}
		imageIndex := frame % g.ImageCount
		if err := g.ExecuteFrame(ctx, frame, imageIndex); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
	}

	if err := g.Teardown(ctx); err != nil {
		return fmt.Errorf("tearing down graph: %w", err)
	}
	logger.Info("Graph torn down.", "frames", frames)
	return nil
}

// drainRecompiles processes queued invalidations before the next frame.
func (a *App) drainRecompiles(ctx context.Context, g *graph.Graph) error {
	for len(a.pendingRecompiles) > 0 {
		id := a.pendingRecompiles[0]
		a.pendingRecompiles = a.pendingRecompiles[1:]
		if err := g.Recompile(ctx, id); err != nil {
			return fmt.Errorf("recompile after invalidation of %s: %w", id, err)
		}
	}
	return nil
}

// Bus exposes the event bus, mainly for tests driving resize events.
func (a *App) Bus() *event.Bus { return a.bus }
