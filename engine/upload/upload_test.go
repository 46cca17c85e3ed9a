package upload

import (
	"bytes"
	"errors"
	"testing"

	"github.com/lumen-engine/lumen/common"
)

func TestInsertTakeConsumesEntry(t *testing.T) {
	tbl := NewTable()

	src := []byte{1, 2, 3, 4}
	if err := tbl.Insert(7, common.KindGeometry, src); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := tbl.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}

	// Mutating the caller's slice after Insert must not affect the staged copy.
	src[0] = 99

	data, err := tbl.Take(7)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4}) {
		t.Fatalf("Take data = %v, want staged copy", data)
	}

	// A second Take of the same id must fail: entries are one-shot.
	if _, err := tbl.Take(7); !errors.Is(err, ErrBufferNotFound) {
		t.Fatalf("second Take error = %v, want ErrBufferNotFound", err)
	}
	if got := tbl.Len(); got != 0 {
		t.Fatalf("Len after Take = %d, want 0", got)
	}
}

func TestInsertCollision(t *testing.T) {
	tbl := NewTable()

	if err := tbl.Insert(3, common.KindTexture, []byte{0xAA}); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := tbl.Insert(3, common.KindTexture, []byte{0xBB}); !errors.Is(err, ErrBufferIDCollision) {
		t.Fatalf("second Insert error = %v, want ErrBufferIDCollision", err)
	}

	// The original entry survives the failed insert.
	data, err := tbl.Take(3)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if !bytes.Equal(data, []byte{0xAA}) {
		t.Fatalf("Take data = %v, want first insert to win", data)
	}
}

func TestTakeMissing(t *testing.T) {
	tbl := NewTable()

	if _, err := tbl.Take(42); !errors.Is(err, ErrBufferNotFound) {
		t.Fatalf("Take error = %v, want ErrBufferNotFound", err)
	}
}

func TestReuseAfterConsume(t *testing.T) {
	tbl := NewTable()

	if err := tbl.Insert(5, common.KindShader, []byte("old")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := tbl.Take(5); err != nil {
		t.Fatalf("Take: %v", err)
	}

	// Consumed ids may be reused for fresh blobs.
	if err := tbl.Insert(5, common.KindShader, []byte("new")); err != nil {
		t.Fatalf("Insert after consume: %v", err)
	}
	data, err := tbl.Take(5)
	if err != nil {
		t.Fatalf("Take after reuse: %v", err)
	}
	if string(data) != "new" {
		t.Fatalf("Take data = %q, want %q", data, "new")
	}
}

func TestDiscardAll(t *testing.T) {
	tbl := NewTable()

	for id := common.LogicalID(1); id <= 4; id++ {
		if err := tbl.Insert(id, common.KindGeometry, []byte{byte(id)}); err != nil {
			t.Fatalf("Insert %d: %v", id, err)
		}
	}

	if got := tbl.DiscardAll(); got != 4 {
		t.Fatalf("DiscardAll = %d, want 4", got)
	}
	if got := tbl.Len(); got != 0 {
		t.Fatalf("Len after DiscardAll = %d, want 0", got)
	}
	if _, err := tbl.Take(2); !errors.Is(err, ErrBufferNotFound) {
		t.Fatalf("Take after DiscardAll error = %v, want ErrBufferNotFound", err)
	}
	if got := tbl.DiscardAll(); got != 0 {
		t.Fatalf("DiscardAll on empty = %d, want 0", got)
	}
}
