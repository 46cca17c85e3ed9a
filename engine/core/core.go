// Package core is the engine's execution core: the synchronous tick loop
// that drains controller commands, rebuilds visibility, and executes each
// window's compiled render plan. Every entry point runs on the caller's
// thread; the core spawns no background work of its own public surface.
package core

import (
	"log/slog"

	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/command"
	"github.com/lumen-engine/lumen/engine/component"
	"github.com/lumen-engine/lumen/engine/profiler"
	"github.com/lumen-engine/lumen/engine/registry"
	"github.com/lumen-engine/lumen/engine/render_graph"
	"github.com/lumen-engine/lumen/engine/renderer"
	"github.com/lumen-engine/lumen/engine/upload"
	"github.com/lumen-engine/lumen/engine/visibility"
	"github.com/lumen-engine/lumen/engine/window"
)

// EventKind identifies an engine event emitted during a tick.
type EventKind uint8

const (
	// EventResourceDisposed fires when a resource or component record is
	// removed. Live references degrade to fallback on their next resolve.
	EventResourceDisposed EventKind = iota + 1

	// EventFallbackGraphEngaged fires when a rejected graph description
	// is replaced by the built-in graph.
	EventFallbackGraphEngaged
)

// Event is one engine event. The populated fields depend on Kind.
type Event struct {
	Kind         EventKind
	ResourceKind common.ResourceKind
	ID           common.LogicalID
	WindowID     uint32
	GraphID      uint64
}

// Stats is a point-in-time snapshot of the core's state.
type Stats struct {
	// Frames is the number of ticks advanced since creation.
	Frames uint64

	// ActiveResources is the live record count per resource kind.
	ActiveResources map[string]int

	// ActiveComponents is the live instance count per component kind.
	ActiveComponents map[string]int

	// FallbackResolves is the cumulative count of resolutions that
	// yielded a fallback record.
	FallbackResolves uint64

	// PendingUploads is the number of staged, unconsumed upload buffers.
	PendingUploads int

	// Windows is the number of registered window targets.
	Windows int
}

// FrameResult is everything one tick returns to the controller.
type FrameResult struct {
	// Responses holds one result per command, in submission order. Empty
	// when the batch failed to decode.
	Responses []command.Response

	// ResponseBatch is Responses in wire form.
	ResponseBatch []byte

	// DecodeError is non-nil when the command batch was malformed. No
	// command from the batch was applied; the frame still advanced.
	DecodeError error

	// Events holds the tick's engine events.
	Events []Event

	// Stats aggregates profiling counters across all windows rendered
	// this tick.
	Stats render_graph.FrameStats

	// ActiveResources is the live record count per resource kind after
	// the tick's commands were applied.
	ActiveResources map[string]int
}

// Core is the engine's tick-driven execution core. Not safe for
// concurrent use: every method must be called from the same goroutine.
type Core interface {
	// Advance runs one tick from an encoded command batch: decode, drain
	// commands in order, rebuild visibility, execute each window's plan.
	// Always returns a result, even on decode failure.
	//
	// Parameters:
	//   - batch: the encoded command batch; nil or empty means no commands
	//
	// Returns:
	//   - *FrameResult: the tick's responses, events, and counters
	Advance(batch []byte) *FrameResult

	// AdvanceCommands runs one tick from already-decoded commands. The
	// typed path for in-process controllers.
	//
	// Parameters:
	//   - commands: the commands in submission order
	//
	// Returns:
	//   - *FrameResult: the tick's responses, events, and counters
	AdvanceCommands(commands []command.Command) *FrameResult

	// RegisterWindow adds a window target the core renders to.
	//
	// Parameters:
	//   - target: the window target
	RegisterWindow(target window.Target)

	// RemoveWindow detaches a window target and drops its graph binding.
	//
	// Parameters:
	//   - id: the window target id
	//
	// Returns:
	//   - bool: whether the window was registered
	RemoveWindow(id uint32) bool

	// Passes returns the pass registry, letting hosts register custom
	// pass types before submitting graphs that reference them.
	//
	// Returns:
	//   - *render_graph.PassRegistry: the engine's pass registry
	Passes() *render_graph.PassRegistry

	// Backend returns the renderer backend the core encodes through.
	//
	// Returns:
	//   - renderer.Backend: the backend
	Backend() renderer.Backend

	// Stats returns a snapshot of the core's current state.
	//
	// Returns:
	//   - Stats: the snapshot
	Stats() Stats

	// Release frees the core's worker pool and backend resources. The
	// core must not be used afterwards.
	Release()
}

// windowBinding tracks the graph bound to one window. A window with no
// binding, or whose bound description was rejected without fallback,
// renders nothing.
type windowBinding struct {
	graphID     uint64
	useFallback bool
	valid       bool
}

type core struct {
	resources  *registry.Resources
	components *component.Components
	uploads    upload.Table
	visEngine  visibility.Engine
	windows    *window.Registry
	passes     *render_graph.PassRegistry
	compiler   *render_graph.Compiler
	executor   *render_graph.Executor
	backend    renderer.Backend

	prof    *profiler.Profiler
	metrics *profiler.Metrics
	logger  *slog.Logger

	frames   uint64
	bindings map[uint32]*windowBinding
	events   []Event

	workerCount int
}

var _ Core = &core{}

func (c *core) Advance(batch []byte) *FrameResult {
	var commands []command.Command
	var decodeErr error
	if len(batch) > 0 {
		commands, decodeErr = command.DecodeBatch(batch)
		if decodeErr != nil {
			c.logger.Warn("command batch rejected", "error", decodeErr)
			commands = nil
		}
	}

	result := c.advance(commands)
	result.DecodeError = decodeErr
	return result
}

func (c *core) AdvanceCommands(commands []command.Command) *FrameResult {
	return c.advance(commands)
}

// advance is the tick body: drain commands, rebuild visibility, execute
// every window's plan, then emit counters.
func (c *core) advance(commands []command.Command) *FrameResult {
	c.frames++
	c.events = c.events[:0]

	result := &FrameResult{}

	uploadBytes := 0
	for i := range commands {
		if commands[i].Op == command.OpUploadBuffer && commands[i].Upload != nil {
			uploadBytes += len(commands[i].Upload.Data)
		}
		result.Responses = append(result.Responses, c.apply(&commands[i]))
	}

	lists := c.visEngine.BuildFrame(c.components, c.resources)
	frame := &render_graph.FrameInput{
		Lists:     lists,
		Resources: c.resources,
	}

	for _, windowID := range c.windows.IDs() {
		target, ok := c.windows.Get(windowID)
		if !ok || !target.IsRunning() {
			continue
		}
		plan := c.planFor(windowID)
		if plan == nil {
			continue
		}
		stats, err := c.executor.Execute(plan, target, frame)
		if err != nil {
			c.logger.Error("frame execution failed", "window_id", windowID, "error", err)
			continue
		}
		result.Stats.DrawCalls += stats.DrawCalls
		result.Stats.BatchRuns += stats.BatchRuns
		result.Stats.VisibleInstances += stats.VisibleInstances
	}

	result.Events = append(result.Events, c.events...)
	result.ActiveResources = c.resources.ActiveCounts()

	if encoded, err := command.EncodeResponses(result.Responses); err == nil {
		result.ResponseBatch = encoded
	}

	if c.prof != nil {
		c.prof.Tick()
	}
	if c.metrics != nil {
		c.metrics.ObserveFrame(result.Stats.DrawCalls, result.Stats.BatchRuns, result.Stats.VisibleInstances)
		c.metrics.ObserveCommands(len(commands), uploadBytes)
		for kind, count := range result.ActiveResources {
			c.metrics.SetActiveResources(kind, count)
		}
		c.metrics.SetFallbackResolves(c.resources.FallbackHits())
	}

	return result
}

// planFor resolves a window's bound graph to an executable plan, or nil
// when the window renders nothing this tick.
func (c *core) planFor(windowID uint32) *render_graph.CompiledPlan {
	binding, ok := c.bindings[windowID]
	if !ok || !binding.valid {
		return nil
	}
	if binding.useFallback {
		plan, err := c.compiler.FallbackPlan()
		if err != nil {
			c.logger.Error("built-in graph unavailable", "error", err)
			return nil
		}
		return plan
	}
	plan, ok := c.compiler.Plan(binding.graphID)
	if !ok {
		return nil
	}
	return plan
}

func (c *core) RegisterWindow(target window.Target) {
	c.windows.Add(target)
	c.logger.Info("window registered", "window_id", target.ID(), "width", target.Width(), "height", target.Height())
}

func (c *core) RemoveWindow(id uint32) bool {
	delete(c.bindings, id)
	return c.windows.Remove(id)
}

func (c *core) Passes() *render_graph.PassRegistry { return c.passes }

func (c *core) Backend() renderer.Backend { return c.backend }

func (c *core) Stats() Stats {
	stats := Stats{
		Frames:          c.frames,
		ActiveResources: c.resources.ActiveCounts(),
		ActiveComponents: map[string]int{
			"camera": c.components.Cameras.Len(),
			"model":  c.components.Models.Len(),
			"light":  c.components.Lights.Len(),
		},
		FallbackResolves: c.resources.FallbackHits(),
		PendingUploads:   c.uploads.Len(),
		Windows:          c.windows.Len(),
	}
	return stats
}

func (c *core) Release() {
	c.visEngine.Release()
	c.backend.Release()
}
