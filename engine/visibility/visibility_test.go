package visibility

import (
	"math/rand"
	"testing"

	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/component"
	"github.com/lumen-engine/lumen/engine/registry"
)

func newScene() (*component.Components, *registry.Resources) {
	return component.NewComponents(nil), registry.NewResources(nil)
}

func TestLayerMaskFiltering(t *testing.T) {
	comps, res := newScene()
	eng := NewEngine(WithWorkers(1))
	defer eng.Release()

	comps.Cameras.Put(1, "main", component.Camera{LayerMask: 0b0001})
	comps.Models.Put(10, "seen", component.Model{LayerMask: 0b0011})
	comps.Models.Put(11, "hidden", component.Model{LayerMask: 0b0010})

	lists := eng.BuildFrame(comps, res)
	if len(lists) != 1 {
		t.Fatalf("BuildFrame returned %d lists, want 1", len(lists))
	}
	list := lists[0]
	if list.CameraID != 1 {
		t.Fatalf("CameraID = %d, want 1", list.CameraID)
	}
	if len(list.Opaque) != 1 || list.Opaque[0].InstanceID != 10 {
		t.Fatalf("Opaque = %v, want one entry for instance 10", list.Opaque)
	}
	if len(list.Transparent) != 0 {
		t.Fatalf("Transparent = %v, want empty", list.Transparent)
	}
}

func TestMissingMaterialClassifiesOpaque(t *testing.T) {
	comps, res := newScene()
	eng := NewEngine(WithWorkers(1))
	defer eng.Release()

	comps.Cameras.Put(1, "", component.Camera{LayerMask: 1})
	// MaterialID 99 is never registered; the fallback material is opaque.
	comps.Models.Put(5, "", component.Model{LayerMask: 1, MaterialID: 99})

	lists := eng.BuildFrame(comps, res)
	if len(lists[0].Opaque) != 1 {
		t.Fatalf("Opaque count = %d, want 1 (fallback material is opaque)", len(lists[0].Opaque))
	}
}

func TestOpaqueSortAndRuns(t *testing.T) {
	comps, res := newScene()
	eng := NewEngine(WithWorkers(2))
	defer eng.Release()

	comps.Cameras.Put(1, "", component.Camera{LayerMask: 1})
	for id := common.LogicalID(1); id <= 5; id++ {
		res.Materials.Register(id, "", registry.Material{Surface: registry.SurfaceOpaque})
	}

	// 100 instances over 5 (material, geometry) pairs in random insertion
	// order must batch down to exactly 5 contiguous runs.
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		pair := common.LogicalID(rng.Intn(5) + 1)
		comps.Models.Put(common.LogicalID(100+i), "", component.Model{
			LayerMask:  1,
			MaterialID: pair,
			GeometryID: pair,
		})
	}

	list := eng.BuildFrame(comps, res)[0]
	if len(list.Opaque) != 100 {
		t.Fatalf("Opaque count = %d, want 100", len(list.Opaque))
	}
	if len(list.OpaqueRuns) != 5 {
		t.Fatalf("OpaqueRuns = %d runs, want 5", len(list.OpaqueRuns))
	}

	covered := 0
	for i, run := range list.OpaqueRuns {
		if run.Offset != covered {
			t.Fatalf("run %d offset = %d, want %d (runs must be contiguous)", i, run.Offset, covered)
		}
		for j := run.Offset; j < run.Offset+run.Count; j++ {
			e := list.Opaque[j]
			if e.MaterialID != run.MaterialID || e.GeometryID != run.GeometryID {
				t.Fatalf("entry %d pair (%d,%d) outside run pair (%d,%d)",
					j, e.MaterialID, e.GeometryID, run.MaterialID, run.GeometryID)
			}
		}
		covered += run.Count
	}
	if covered != 100 {
		t.Fatalf("runs cover %d entries, want 100", covered)
	}

	// Entries are sorted (MaterialID, GeometryID, InstanceID) ascending.
	for i := 1; i < len(list.Opaque); i++ {
		a, b := list.Opaque[i-1], list.Opaque[i]
		if a.MaterialID > b.MaterialID ||
			(a.MaterialID == b.MaterialID && a.GeometryID > b.GeometryID) ||
			(a.MaterialID == b.MaterialID && a.GeometryID == b.GeometryID && a.InstanceID >= b.InstanceID) {
			t.Fatalf("opaque order violated at %d: %+v before %+v", i, a, b)
		}
	}
}

func TestTransparentBackToFront(t *testing.T) {
	comps, res := newScene()
	eng := NewEngine(WithWorkers(1))
	defer eng.Release()

	comps.Cameras.Put(1, "", component.Camera{LayerMask: 1})
	res.Materials.Register(1, "glass", registry.Material{Surface: registry.SurfaceTransparent})

	place := func(id common.LogicalID, z float32) {
		comps.Models.Put(id, "", component.Model{
			LayerMask:  1,
			MaterialID: 1,
			Transform:  common.Transform{Position: [3]float32{0, 0, z}},
		})
	}
	place(10, 2)  // DepthSq 4
	place(11, 5)  // DepthSq 25
	place(12, 2)  // DepthSq 4, ties with 10 on depth
	place(13, -3) // DepthSq 9

	list := eng.BuildFrame(comps, res)[0]
	if len(list.Transparent) != 4 {
		t.Fatalf("Transparent count = %d, want 4", len(list.Transparent))
	}

	// Farthest first; equal depths ordered by instance id.
	want := []common.LogicalID{11, 13, 10, 12}
	for i, id := range want {
		if list.Transparent[i].InstanceID != id {
			got := make([]common.LogicalID, len(list.Transparent))
			for j := range list.Transparent {
				got[j] = list.Transparent[j].InstanceID
			}
			t.Fatalf("transparent order = %v, want %v", got, want)
		}
	}
}

func TestMaskedSortsWithOpaque(t *testing.T) {
	comps, res := newScene()
	eng := NewEngine(WithWorkers(1))
	defer eng.Release()

	comps.Cameras.Put(1, "", component.Camera{LayerMask: 1})
	res.Materials.Register(1, "solid", registry.Material{Surface: registry.SurfaceOpaque})
	res.Materials.Register(2, "fence", registry.Material{Surface: registry.SurfaceMasked, AlphaCutoff: 0.5})
	res.Materials.Register(3, "glass", registry.Material{Surface: registry.SurfaceTransparent})

	comps.Models.Put(10, "", component.Model{LayerMask: 1, MaterialID: 2})
	comps.Models.Put(11, "", component.Model{LayerMask: 1, MaterialID: 1})
	comps.Models.Put(12, "", component.Model{LayerMask: 1, MaterialID: 3})

	list := eng.BuildFrame(comps, res)[0]
	if len(list.Opaque) != 2 || len(list.Transparent) != 1 {
		t.Fatalf("lists = %d opaque, %d transparent, want 2 and 1",
			len(list.Opaque), len(list.Transparent))
	}

	// Cutout materials batch with the opaque set, in material order.
	if list.Opaque[0].MaterialID != 1 || list.Opaque[0].InstanceID != 11 {
		t.Fatalf("Opaque[0] = %+v, want solid model 11", list.Opaque[0])
	}
	if list.Opaque[1].MaterialID != 2 || list.Opaque[1].InstanceID != 10 {
		t.Fatalf("Opaque[1] = %+v, want masked model 10", list.Opaque[1])
	}
}

func TestCamerasAscendingAndIsolated(t *testing.T) {
	comps, res := newScene()
	eng := NewEngine(WithWorkers(4))
	defer eng.Release()

	comps.Cameras.Put(7, "second", component.Camera{LayerMask: 0b10})
	comps.Cameras.Put(3, "first", component.Camera{LayerMask: 0b01})
	comps.Models.Put(1, "", component.Model{LayerMask: 0b01})
	comps.Models.Put(2, "", component.Model{LayerMask: 0b10})
	comps.Models.Put(3, "", component.Model{LayerMask: 0b11})

	lists := eng.BuildFrame(comps, res)
	if len(lists) != 2 {
		t.Fatalf("BuildFrame returned %d lists, want 2", len(lists))
	}
	if lists[0].CameraID != 3 || lists[1].CameraID != 7 {
		t.Fatalf("camera order = [%d, %d], want [3, 7]", lists[0].CameraID, lists[1].CameraID)
	}
	if len(lists[0].Opaque) != 2 {
		t.Fatalf("camera 3 sees %d models, want 2", len(lists[0].Opaque))
	}
	if len(lists[1].Opaque) != 2 {
		t.Fatalf("camera 7 sees %d models, want 2", len(lists[1].Opaque))
	}
	if got := TotalVisible(lists); got != 4 {
		t.Fatalf("TotalVisible = %d, want 4", got)
	}
}

func TestParallelBuildCountsFallbackResolves(t *testing.T) {
	comps, res := newScene()
	eng := NewEngine(WithWorkers(4))
	defer eng.Release()

	// Four cameras classify the same 500 models in parallel; every model
	// references a material that does not exist, so each classification
	// resolves the fallback. The counter must come out exact.
	const cameras = 4
	const models = 500
	for id := common.LogicalID(1); id <= cameras; id++ {
		comps.Cameras.Put(id, "", component.Camera{LayerMask: 1})
	}
	for i := 0; i < models; i++ {
		comps.Models.Put(common.LogicalID(100+i), "", component.Model{LayerMask: 1, MaterialID: 77})
	}

	lists := eng.BuildFrame(comps, res)
	if len(lists) != cameras {
		t.Fatalf("BuildFrame returned %d lists, want %d", len(lists), cameras)
	}
	for i := range lists {
		if len(lists[i].Opaque) != models {
			t.Fatalf("camera %d sees %d models, want %d", lists[i].CameraID, len(lists[i].Opaque), models)
		}
	}
	if got := res.Materials.FallbackHits(); got != cameras*models {
		t.Fatalf("FallbackHits = %d, want %d", got, cameras*models)
	}
}

func TestEmptySceneYieldsNil(t *testing.T) {
	comps, res := newScene()
	eng := NewEngine(WithWorkers(1))
	defer eng.Release()

	if lists := eng.BuildFrame(comps, res); lists != nil {
		t.Fatalf("BuildFrame = %v, want nil with no cameras", lists)
	}
}
