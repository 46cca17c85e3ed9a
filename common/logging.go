package common

import (
	"context"
	"log/slog"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely,
// making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// NopLogger returns a logger that silently discards all output. It is the
// default logger for every engine component; pass a real *slog.Logger via
// the component's WithLogger builder option to enable output.
//
// Returns:
//   - *slog.Logger: a logger backed by a discard-everything handler
func NopLogger() *slog.Logger {
	return slog.New(nopHandler{})
}
