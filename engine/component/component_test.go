package component

import (
	"testing"

	"github.com/lumen-engine/lumen/common"
)

func TestPutGetReplace(t *testing.T) {
	tbl := NewTable[Model](common.KindModel)

	tbl.Put(4, "crate", Model{GeometryID: 10, MaterialID: 20, LayerMask: 1})

	inst, ok := tbl.Get(4)
	if !ok {
		t.Fatal("Get = absent, want instance")
	}
	if inst.Label != "crate" || inst.Value.GeometryID != 10 {
		t.Fatalf("Get = {%q, geo %d}, want {crate, geo 10}", inst.Label, inst.Value.GeometryID)
	}

	// Put with the same id replaces the instance outright.
	tbl.Put(4, "barrel", Model{GeometryID: 11, MaterialID: 20, LayerMask: 1})

	inst, ok = tbl.Get(4)
	if !ok {
		t.Fatal("Get after replace = absent, want instance")
	}
	if inst.Label != "barrel" || inst.Value.GeometryID != 11 {
		t.Fatalf("Get after replace = {%q, geo %d}, want {barrel, geo 11}", inst.Label, inst.Value.GeometryID)
	}
	if got := tbl.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
}

func TestGetMissing(t *testing.T) {
	tbl := NewTable[Camera](common.KindCamera)

	if inst, ok := tbl.Get(9); ok || inst != nil {
		t.Fatalf("Get = (%v, %v), want (nil, false)", inst, ok)
	}
}

func TestDispose(t *testing.T) {
	tbl := NewTable[Light](common.KindLight)

	tbl.Put(2, "sun", Light{Kind: LightDirectional, Intensity: 1})

	if !tbl.Dispose(2) {
		t.Fatal("Dispose = false, want true")
	}
	if _, ok := tbl.Get(2); ok {
		t.Fatal("Get after Dispose = present, want absent")
	}
	if tbl.Dispose(2) {
		t.Fatal("second Dispose = true, want false")
	}
}

func TestEachAscendingOrder(t *testing.T) {
	tbl := NewTable[Model](common.KindModel)

	for _, id := range []common.LogicalID{9, 2, 5, 7} {
		tbl.Put(id, "", Model{})
	}
	tbl.Dispose(7)

	var visited []common.LogicalID
	tbl.Each(func(inst *Instance[Model]) bool {
		visited = append(visited, inst.ID)
		return true
	})

	want := []common.LogicalID{2, 5, 9}
	if len(visited) != len(want) {
		t.Fatalf("Each visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("Each visited %v, want %v", visited, want)
		}
	}
}

func TestEachEarlyStop(t *testing.T) {
	tbl := NewTable[Model](common.KindModel)

	for id := common.LogicalID(1); id <= 5; id++ {
		tbl.Put(id, "", Model{})
	}

	count := 0
	tbl.Each(func(inst *Instance[Model]) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Fatalf("Each visited %d instances, want 2", count)
	}
}

func TestListAscendingOrder(t *testing.T) {
	tbl := NewTable[Camera](common.KindCamera)

	tbl.Put(30, "rear", Camera{})
	tbl.Put(10, "main", Camera{})

	entries := tbl.List()
	if len(entries) != 2 {
		t.Fatalf("List has %d entries, want 2", len(entries))
	}
	if entries[0].ID != 10 || entries[0].Label != "main" {
		t.Fatalf("entries[0] = {%d, %q}, want {10, main}", entries[0].ID, entries[0].Label)
	}
	if entries[1].ID != 30 || entries[1].Label != "rear" {
		t.Fatalf("entries[1] = {%d, %q}, want {30, rear}", entries[1].ID, entries[1].Label)
	}
}

func TestNewComponentsTables(t *testing.T) {
	c := NewComponents(nil)

	if c.Cameras == nil || c.Models == nil || c.Lights == nil {
		t.Fatal("NewComponents left a table nil")
	}

	c.Models.Put(1, "m", Model{})
	if got := c.Models.Len(); got != 1 {
		t.Fatalf("Models.Len = %d, want 1", got)
	}
	if got := c.Cameras.Len(); got != 0 {
		t.Fatalf("Cameras.Len = %d, want 0", got)
	}
}

func TestNewCameraDefaultsAndOptions(t *testing.T) {
	cam := NewCamera()
	if cam.LayerMask != common.LayerMaskAll || cam.Near != 0.1 || cam.Far != 1000 {
		t.Fatalf("NewCamera defaults = %+v", cam)
	}

	xform := common.IdentityTransform()
	xform.Position = [3]float32{0, 2, -5}
	cam = NewCamera(
		WithCameraTransform(xform),
		WithCameraLayerMask(0b10),
		WithCameraLens(0.9, 4.0/3.0, 0.5, 200),
	)
	if cam.Transform.Position != xform.Position || cam.LayerMask != 0b10 {
		t.Fatalf("camera options not applied: %+v", cam)
	}
	if cam.Fov != 0.9 || cam.Aspect != 4.0/3.0 || cam.Near != 0.5 || cam.Far != 200 {
		t.Fatalf("lens options not applied: %+v", cam)
	}
}

func TestNewModelDefaultsAndOptions(t *testing.T) {
	m := NewModel(10, 20)
	if m.GeometryID != 10 || m.MaterialID != 20 || m.LayerMask != common.LayerMaskAll {
		t.Fatalf("NewModel defaults = %+v", m)
	}

	xform := common.IdentityTransform()
	xform.Scale = [3]float32{2, 2, 2}
	m = NewModel(10, 20, WithModelTransform(xform), WithModelLayerMask(0b100))
	if m.Transform.Scale != xform.Scale || m.LayerMask != 0b100 {
		t.Fatalf("model options not applied: %+v", m)
	}
}

func TestNewLightDefaultsAndOptions(t *testing.T) {
	l := NewLight(LightPoint)
	if l.Kind != LightPoint || l.Color != [3]float32{1, 1, 1} || l.Intensity != 1 || l.Range != 10 {
		t.Fatalf("NewLight defaults = %+v", l)
	}

	l = NewLight(LightDirectional,
		WithLightLayerMask(0b1),
		WithLightColor([3]float32{1, 0.8, 0.6}, 3),
		WithLightRange(25),
	)
	if l.Kind != LightDirectional || l.LayerMask != 0b1 {
		t.Fatalf("light options not applied: %+v", l)
	}
	if l.Color != [3]float32{1, 0.8, 0.6} || l.Intensity != 3 || l.Range != 25 {
		t.Fatalf("light color options not applied: %+v", l)
	}
}
