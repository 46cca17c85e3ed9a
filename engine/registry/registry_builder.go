package registry

import (
	"log/slog"

	"github.com/lumen-engine/lumen/common"
)

// TableOption is a functional option applied to a table during construction via NewTable.
type TableOption[T any] func(*table[T])

// WithFallbackLabel is an option builder that overrides the label of the
// table's fallback record.
//
// Parameters:
//   - label: the label for the fallback record
//
// Returns:
//   - TableOption[T]: a function that applies the label option to a table
func WithFallbackLabel[T any](label string) TableOption[T] {
	return func(t *table[T]) {
		t.fallback.Label = label
	}
}

// WithLogger is an option builder that sets the table's logger. The default
// logger discards all output.
//
// Parameters:
//   - logger: the slog logger to use (nil restores the silent default)
//
// Returns:
//   - TableOption[T]: a function that applies the logger option to a table
func WithLogger[T any](logger *slog.Logger) TableOption[T] {
	return func(t *table[T]) {
		if logger == nil {
			logger = common.NopLogger()
		}
		t.logger = logger
	}
}
