package core

import (
	"log/slog"

	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/component"
	"github.com/lumen-engine/lumen/engine/profiler"
	"github.com/lumen-engine/lumen/engine/registry"
	"github.com/lumen-engine/lumen/engine/render_graph"
	"github.com/lumen-engine/lumen/engine/renderer"
	"github.com/lumen-engine/lumen/engine/upload"
	"github.com/lumen-engine/lumen/engine/visibility"
	"github.com/lumen-engine/lumen/engine/window"
	"github.com/prometheus/client_golang/prometheus"
)

// CoreOption configures a core during construction.
type CoreOption func(*core)

// WithBackend sets the renderer backend frames are encoded through.
// Defaults to the headless recording backend.
//
// Parameters:
//   - backend: the backend to use
//
// Returns:
//   - CoreOption: a function that sets the backend
func WithBackend(backend renderer.Backend) CoreOption {
	return func(c *core) {
		if backend != nil {
			c.backend = backend
		}
	}
}

// WithWorkerCount sets the visibility engine's worker pool size.
// Defaults to one worker per available CPU, minus one.
//
// Parameters:
//   - workers: the worker count, clamped to at least 1
//
// Returns:
//   - CoreOption: a function that sets the worker count
func WithWorkerCount(workers int) CoreOption {
	return func(c *core) {
		c.workerCount = workers
	}
}

// WithLogger sets the structured logger every subsystem logs to.
// Defaults to a no-op logger.
//
// Parameters:
//   - logger: the slog logger to use
//
// Returns:
//   - CoreOption: a function that sets the logger
func WithLogger(logger *slog.Logger) CoreOption {
	return func(c *core) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProfiler attaches a profiler ticked once per frame.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - CoreOption: a function that sets the profiler
func WithProfiler(p *profiler.Profiler) CoreOption {
	return func(c *core) {
		c.prof = p
	}
}

// WithMetricsRegisterer registers the engine's Prometheus metrics with
// the given registerer and updates them every tick.
//
// Parameters:
//   - reg: the Prometheus registerer
//
// Returns:
//   - CoreOption: a function that enables metrics
func WithMetricsRegisterer(reg prometheus.Registerer) CoreOption {
	return func(c *core) {
		if reg != nil {
			c.metrics = profiler.NewMetrics(reg)
		}
	}
}

// New creates an engine core with empty tables and no bound graphs.
//
// Parameters:
//   - options: optional configuration functions
//
// Returns:
//   - Core: the engine core
func New(options ...CoreOption) Core {
	c := &core{
		logger:   common.NopLogger(),
		bindings: make(map[uint32]*windowBinding),
	}
	for _, opt := range options {
		opt(c)
	}

	if c.backend == nil {
		c.backend = renderer.NewRecordingBackend(renderer.WithRecordingLogger(c.logger))
	}

	c.resources = registry.NewResources(c.logger)
	c.components = component.NewComponents(c.logger)
	c.uploads = upload.NewTable(upload.WithLogger(c.logger))

	visOptions := []visibility.EngineOption{visibility.WithLogger(c.logger)}
	if c.workerCount > 0 {
		visOptions = append(visOptions, visibility.WithWorkers(c.workerCount))
	}
	c.visEngine = visibility.NewEngine(visOptions...)

	c.passes = render_graph.NewPassRegistry()
	c.compiler = render_graph.NewCompiler(c.passes, render_graph.WithCompilerLogger(c.logger))
	c.executor = render_graph.NewExecutor(c.backend, render_graph.WithExecutorLogger(c.logger))
	c.windows = window.NewRegistry()

	return c
}
