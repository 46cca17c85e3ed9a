package render_graph

import (
	"fmt"
	"log/slog"

	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/renderer"
	"github.com/lumen-engine/lumen/engine/window"
)

// Executor replays compiled plans against a backend. It realizes the
// plan's physical textures, runs each node in the plan's execution order,
// and presents the frame.
type Executor struct {
	backend renderer.Backend
	logger  *slog.Logger
}

// ExecutorOption configures an executor during construction.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the structured logger frame failures are logged
// to.
//
// Parameters:
//   - logger: the slog logger to use
//
// Returns:
//   - ExecutorOption: a function that sets the logger
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor encoding through the given backend.
//
// Parameters:
//   - backend: the renderer backend to encode frames into
//   - options: optional configuration functions
//
// Returns:
//   - *Executor: the executor
func NewExecutor(backend renderer.Backend, options ...ExecutorOption) *Executor {
	e := &Executor{
		backend: backend,
		logger:  common.NopLogger(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Execute runs one compiled plan for one frame: realize textures, run the
// nodes in order, submit, present. Window-sized textures take the
// target's current extent, so a resized window re-realizes them on the
// next frame without recompiling the plan.
//
// Parameters:
//   - plan: the compiled plan to run
//   - target: the window target to render into
//   - frame: the frame's draw input
//
// Returns:
//   - FrameStats: profiling counters for the executed frame
//   - error: an error if the frame could not be encoded
func (e *Executor) Execute(plan *CompiledPlan, target window.Target, frame *FrameInput) (FrameStats, error) {
	var stats FrameStats

	if err := e.backend.BeginFrame(target); err != nil {
		return stats, err
	}

	for _, texture := range plan.Textures {
		desc := renderer.TextureDesc{
			Label:  texture.Label,
			Width:  texture.Width,
			Height: texture.Height,
			Format: texture.Format,
			Usage:  texture.Usage,
		}
		if desc.Width == 0 {
			desc.Width = uint32(target.Width())
		}
		if desc.Height == 0 {
			desc.Height = uint32(target.Height())
		}
		if err := e.backend.EnsureTexture(texture.Slot, desc); err != nil {
			e.finishFrame()
			return stats, fmt.Errorf("texture slot %d: %w", texture.Slot, err)
		}
	}

	for i := range plan.Nodes {
		node := &plan.Nodes[i]
		ctx := &PassContext{
			Backend: e.backend,
			Target:  target,
			Frame:   frame,
			Inputs:  node.Inputs,
			Outputs: node.Outputs,
			Params:  node.Params,
			Stats:   &stats,
		}
		if err := node.Pass.Execute(ctx); err != nil {
			e.finishFrame()
			e.logger.Error("pass failed", "node_id", node.NodeID, "pass", node.Pass.ID(), "error", err)
			return stats, fmt.Errorf("node %d pass %q: %w", node.NodeID, node.Pass.ID(), err)
		}
	}

	e.backend.EndFrame()
	e.backend.Present()
	return stats, nil
}

// finishFrame submits and presents whatever was encoded before a failure,
// releasing the acquired surface texture so the next frame can begin.
func (e *Executor) finishFrame() {
	e.backend.EndFrame()
	e.backend.Present()
}
