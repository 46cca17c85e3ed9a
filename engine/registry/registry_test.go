package registry

import (
	"sync"
	"testing"

	"github.com/lumen-engine/lumen/common"
)

func TestResolveMissingYieldsFallback(t *testing.T) {
	table := NewTable[Material](common.KindMaterial, FallbackMaterial(), WithFallbackLabel[Material]("fallback material"))

	record := table.Resolve(42)
	if record == nil {
		t.Fatal("Resolve returned nil")
	}
	if record.Generation != 0 {
		t.Errorf("fallback generation = %d, want 0", record.Generation)
	}
	if record.Label != "fallback material" {
		t.Errorf("fallback label = %q", record.Label)
	}
	if table.FallbackHits() != 1 {
		t.Errorf("FallbackHits = %d, want 1", table.FallbackHits())
	}
}

func TestRegisterThenResolve(t *testing.T) {
	table := NewTable[Material](common.KindMaterial, FallbackMaterial())

	gen := table.Register(7, "red", Material{BaseColor: [4]float32{1, 0, 0, 1}})
	if gen == 0 {
		t.Fatalf("Register generation = 0, want nonzero")
	}

	record := table.Resolve(7)
	if record.ID != 7 || record.Generation != gen {
		t.Errorf("Resolve = (id %d, gen %d), want (7, %d)", record.ID, record.Generation, gen)
	}
	if record.Payload.BaseColor != [4]float32{1, 0, 0, 1} {
		t.Errorf("payload base color = %v", record.Payload.BaseColor)
	}
	if table.FallbackHits() != 0 {
		t.Errorf("FallbackHits = %d, want 0", table.FallbackHits())
	}
}

func TestReplaceBumpsGeneration(t *testing.T) {
	table := NewTable[Material](common.KindMaterial, FallbackMaterial())

	first := table.Register(7, "red", Material{})
	second := table.Register(7, "blue", Material{})
	if second <= first {
		t.Errorf("replacement generation %d not greater than %d", second, first)
	}
	if got := table.Resolve(7); got.Label != "blue" || got.Generation != second {
		t.Errorf("Resolve after replace = (%q, gen %d)", got.Label, got.Generation)
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}
}

func TestDisposeDegradesToFallback(t *testing.T) {
	table := NewTable[Texture](common.KindTexture, FallbackTexture())

	table.Register(3, "wood", Texture{Width: 4, Height: 4})
	if !table.Dispose(3) {
		t.Fatal("Dispose returned false for live record")
	}
	if table.Dispose(3) {
		t.Error("Dispose returned true for already-disposed record")
	}

	record := table.Resolve(3)
	if record.Generation != 0 {
		t.Errorf("post-dispose resolve generation = %d, want fallback 0", record.Generation)
	}
	if record.Payload.Width != 1 || record.Payload.Height != 1 {
		t.Errorf("fallback texture extent = %dx%d, want 1x1", record.Payload.Width, record.Payload.Height)
	}
}

func TestListAscending(t *testing.T) {
	table := NewTable[Geometry](common.KindGeometry, FallbackGeometry())

	for _, id := range []common.LogicalID{9, 2, 5} {
		table.Register(id, "mesh", Geometry{})
	}

	entries := table.List()
	if len(entries) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(entries))
	}
	want := []common.LogicalID{2, 5, 9}
	for i, entry := range entries {
		if entry.ID != want[i] {
			t.Errorf("entry %d id = %d, want %d", i, entry.ID, want[i])
		}
	}
}

func TestResolveConcurrentReaders(t *testing.T) {
	table := NewTable[Material](common.KindMaterial, FallbackMaterial())
	table.Register(1, "red", Material{})

	// Resolve runs concurrently from the frame fan-out; the fallback
	// counter must stay exact under contention.
	const goroutines = 8
	const resolvesPerGoroutine = 1000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < resolvesPerGoroutine; i++ {
				if rec := table.Resolve(1); rec.Generation == 0 {
					t.Error("registered record resolved to fallback")
					return
				}
				if rec := table.Resolve(99); rec.Generation != 0 {
					t.Error("missing record resolved to a live generation")
					return
				}
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * resolvesPerGoroutine)
	if got := table.FallbackHits(); got != want {
		t.Fatalf("FallbackHits = %d, want %d", got, want)
	}
}

func TestResourcesActiveCounts(t *testing.T) {
	resources := NewResources(nil)
	resources.Geometries.Register(1, "a", Geometry{})
	resources.Materials.Register(1, "b", Material{})
	resources.Materials.Register(2, "c", Material{})

	counts := resources.ActiveCounts()
	if counts["geometry"] != 1 {
		t.Errorf("geometry count = %d, want 1", counts["geometry"])
	}
	if counts["material"] != 2 {
		t.Errorf("material count = %d, want 2", counts["material"])
	}

	resources.Textures.Resolve(99)
	resources.Shaders.Resolve(99)
	if resources.FallbackHits() != 2 {
		t.Errorf("FallbackHits = %d, want 2", resources.FallbackHits())
	}
}
