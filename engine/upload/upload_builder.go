package upload

import (
	"log/slog"

	"github.com/lumen-engine/lumen/common"
)

// TableOption is a functional option applied to a table during construction via NewTable.
type TableOption func(*table)

// WithLogger is an option builder that sets the table's logger. The default
// logger discards all output.
//
// Parameters:
//   - logger: the slog logger to use (nil restores the silent default)
//
// Returns:
//   - TableOption: a function that applies the logger option to a table
func WithLogger(logger *slog.Logger) TableOption {
	return func(t *table) {
		if logger == nil {
			logger = common.NopLogger()
		}
		t.logger = logger
	}
}
