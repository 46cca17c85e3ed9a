package visibility

import (
	"log/slog"

	"github.com/lumen-engine/lumen/common"
)

// EngineOption is a functional option applied to an engine during construction via NewEngine.
type EngineOption func(*engine)

// WithWorkers is an option builder that sets the number of pooled workers
// used for the per-camera build fan-out.
//
// Parameters:
//   - n: worker count (values below 1 are clamped to 1)
//
// Returns:
//   - EngineOption: a function that applies the worker count option to an engine
func WithWorkers(n int) EngineOption {
	return func(e *engine) {
		e.workers = max(n, 1)
	}
}

// WithLogger is an option builder that sets the engine's logger. The default
// logger discards all output.
//
// Parameters:
//   - logger: the slog logger to use (nil restores the silent default)
//
// Returns:
//   - EngineOption: a function that applies the logger option to an engine
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *engine) {
		if logger == nil {
			logger = common.NopLogger()
		}
		e.logger = logger
	}
}
