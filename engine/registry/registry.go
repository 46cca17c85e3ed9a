package registry

import (
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/lumen-engine/lumen/common"
)

// Record is a generation-stamped resource entry. The generation increments
// every time the same LogicalID is re-registered, so consumers can detect a
// replace without comparing payloads. Consumers must never hold a resolved
// *Record past a frame boundary; they store the LogicalID and resolve again
// next frame.
type Record[T any] struct {
	// ID is the controller-chosen identifier, or 0 for the fallback record.
	ID common.LogicalID

	// Generation starts at 1 and increments on every replace. The fallback
	// record has generation 0.
	Generation uint32

	// Label is a human-readable name for introspection.
	Label string

	// Payload is the kind-specific resource data.
	Payload T
}

// Entry is one row of a List snapshot.
type Entry struct {
	ID    common.LogicalID
	Label string
}

// Table maps logical identifiers to generation-stamped resource records of
// one kind. A missing identifier never fails to resolve: Resolve substitutes
// the table's static fallback record instead. Resolve is the only sanctioned
// access path for consumers; the table exposes no direct lookup.
type Table[T any] interface {
	// Register inserts or replaces the record for id, incrementing its
	// generation. Registering over an existing id is not an error; the
	// replace is silent (unlike upload buffers, which reject collisions).
	//
	// Parameters:
	//   - id: the logical identifier to register under
	//   - label: a human-readable name for introspection
	//   - payload: the resource data
	//
	// Returns:
	//   - uint32: the generation of the stored record
	Register(id common.LogicalID, label string, payload T) uint32

	// Resolve returns the record for id, or the table's fallback record if
	// no record is present. It never fails and never returns nil. Resolve
	// is safe to call from concurrent readers; Register and Dispose are
	// not, and must stay on the tick goroutine.
	//
	// Parameters:
	//   - id: the logical identifier to resolve
	//
	// Returns:
	//   - *Record[T]: the stored record, or the fallback record
	Resolve(id common.LogicalID) *Record[T]

	// Dispose removes the record for id. Subsequent Resolve calls degrade to
	// the fallback record. Disposal never cascades to referencing
	// components; their references resolve lazily on next use.
	//
	// Parameters:
	//   - id: the logical identifier to remove
	//
	// Returns:
	//   - bool: true if a record was removed, false if id was absent
	Dispose(id common.LogicalID) bool

	// List returns a snapshot of (id, label) pairs in ascending id order.
	//
	// Returns:
	//   - []Entry: the snapshot, never nil
	List() []Entry

	// Len returns the number of live records (excluding the fallback).
	Len() int

	// FallbackHits returns the number of Resolve calls that degraded to the
	// fallback record since the table was created.
	FallbackHits() uint64
}

// table implements the Table interface.
type table[T any] struct {
	kind     common.ResourceKind
	records  map[common.LogicalID]*Record[T]
	fallback Record[T]

	// fallbackHits is atomic: Resolve runs concurrently from the frame
	// fan-out while mutations stay on the tick goroutine.
	fallbackHits atomic.Uint64

	logger *slog.Logger
}

// NewTable creates a Table for one resource kind with the given fallback
// payload. The fallback record is static: id 0, generation 0.
//
// Parameters:
//   - kind: the resource kind this table holds
//   - fallback: the payload substituted for every missing identifier
//   - options: functional options for table configuration
//
// Returns:
//   - Table[T]: the newly created table
func NewTable[T any](kind common.ResourceKind, fallback T, options ...TableOption[T]) Table[T] {
	t := &table[T]{
		kind:    kind,
		records: make(map[common.LogicalID]*Record[T]),
		fallback: Record[T]{
			Label:   "fallback " + kind.String(),
			Payload: fallback,
		},
		logger: common.NopLogger(),
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

// Ensure table implements Table.
var _ Table[int] = &table[int]{}

func (t *table[T]) Register(id common.LogicalID, label string, payload T) uint32 {
	gen := uint32(1)
	if prev, ok := t.records[id]; ok {
		gen = prev.Generation + 1
	}
	t.records[id] = &Record[T]{
		ID:         id,
		Generation: gen,
		Label:      label,
		Payload:    payload,
	}
	t.logger.Debug("resource registered",
		"kind", t.kind.String(), "id", uint64(id), "generation", gen)
	return gen
}

func (t *table[T]) Resolve(id common.LogicalID) *Record[T] {
	if rec, ok := t.records[id]; ok {
		return rec
	}
	t.fallbackHits.Add(1)
	return &t.fallback
}

func (t *table[T]) Dispose(id common.LogicalID) bool {
	if _, ok := t.records[id]; !ok {
		return false
	}
	delete(t.records, id)
	t.logger.Debug("resource disposed", "kind", t.kind.String(), "id", uint64(id))
	return true
}

func (t *table[T]) List() []Entry {
	entries := make([]Entry, 0, len(t.records))
	for id, rec := range t.records {
		entries = append(entries, Entry{ID: id, Label: rec.Label})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

func (t *table[T]) Len() int {
	return len(t.records)
}

func (t *table[T]) FallbackHits() uint64 {
	return t.fallbackHits.Load()
}
