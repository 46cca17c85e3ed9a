// Package upload implements the one-shot staging table for raw byte blobs
// submitted by the controller ahead of resource creation commands. Each
// entry is inserted once, consumed at most once, and unreachable afterwards.
package upload

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumen-engine/lumen/common"
)

// ErrBufferIDCollision is returned by Insert when the buffer id already
// holds an unconsumed entry.
var ErrBufferIDCollision = errors.New("upload: buffer id collision")

// ErrBufferNotFound is returned by Take when the buffer id is absent or was
// already consumed. The error is local to the creation command that
// requested the buffer; it is never fatal to the tick.
var ErrBufferNotFound = errors.New("upload: buffer not found")

// Entry is one staged blob awaiting consumption.
type Entry struct {
	// BufferID is the controller-chosen identifier for the blob.
	BufferID common.LogicalID

	// Kind hints at the resource kind the blob feeds. Informational; Take
	// does not enforce it.
	Kind common.ResourceKind

	// Data is the staged bytes, owned by the table.
	Data []byte
}

// Table stages raw byte blobs keyed by a controller-chosen buffer id.
// Entries are one-shot: visible to creation commands until consumed by Take
// or purged by DiscardAll, unreachable after either.
type Table interface {
	// Insert stages a copy of data under the given buffer id.
	//
	// Parameters:
	//   - bufferID: the controller-chosen buffer identifier
	//   - kind: the resource kind the blob is intended for
	//   - data: the raw bytes to stage (copied synchronously)
	//
	// Returns:
	//   - error: ErrBufferIDCollision if an unconsumed entry already holds
	//     the id, otherwise nil
	Insert(bufferID common.LogicalID, kind common.ResourceKind, data []byte) error

	// Take removes and returns the staged bytes for the given buffer id.
	// The entry is unreachable afterwards.
	//
	// Parameters:
	//   - bufferID: the buffer identifier to consume
	//
	// Returns:
	//   - []byte: the staged bytes
	//   - error: ErrBufferNotFound if the id is absent or already consumed
	Take(bufferID common.LogicalID) ([]byte, error)

	// DiscardAll purges every unconsumed entry. An explicit maintenance
	// operation, never triggered automatically.
	//
	// Returns:
	//   - int: the number of entries purged
	DiscardAll() int

	// Len returns the number of unconsumed entries.
	Len() int
}

// table implements the Table interface.
type table struct {
	entries map[common.LogicalID]*Entry
	logger  *slog.Logger
}

// Ensure table implements Table.
var _ Table = &table{}

// NewTable creates an empty upload table.
//
// Parameters:
//   - options: functional options for table configuration
//
// Returns:
//   - Table: the newly created table
func NewTable(options ...TableOption) Table {
	t := &table{
		entries: make(map[common.LogicalID]*Entry),
		logger:  common.NopLogger(),
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

func (t *table) Insert(bufferID common.LogicalID, kind common.ResourceKind, data []byte) error {
	if _, ok := t.entries[bufferID]; ok {
		return fmt.Errorf("%w: id %d", ErrBufferIDCollision, bufferID)
	}

	// Ingest is a synchronous copy so the caller's slice can be reused.
	staged := make([]byte, len(data))
	copy(staged, data)

	t.entries[bufferID] = &Entry{
		BufferID: bufferID,
		Kind:     kind,
		Data:     staged,
	}
	t.logger.Debug("upload staged", "buffer", uint64(bufferID), "kind", kind.String(), "bytes", len(staged))
	return nil
}

func (t *table) Take(bufferID common.LogicalID) ([]byte, error) {
	entry, ok := t.entries[bufferID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrBufferNotFound, bufferID)
	}
	delete(t.entries, bufferID)
	return entry.Data, nil
}

func (t *table) DiscardAll() int {
	count := len(t.entries)
	clear(t.entries)
	if count > 0 {
		t.logger.Debug("upload table purged", "discarded", count)
	}
	return count
}

func (t *table) Len() int {
	return len(t.entries)
}
