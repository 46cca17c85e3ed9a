package core

import (
	"strings"
	"testing"

	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/command"
	"github.com/lumen-engine/lumen/engine/registry"
	"github.com/lumen-engine/lumen/engine/render_graph"
	"github.com/lumen-engine/lumen/engine/renderer"
	"github.com/lumen-engine/lumen/engine/window"
)

// newTestCore builds a core over a recording backend with one offscreen
// window bound to the built-in graph, plus a camera seeing layer 1.
func newTestCore(t *testing.T) (Core, *renderer.RecordingBackend) {
	t.Helper()

	backend := renderer.NewRecordingBackend()
	engine := New(WithBackend(backend), WithWorkerCount(1))
	t.Cleanup(engine.Release)

	engine.RegisterWindow(window.NewOffscreenTarget(1, 640, 480))

	result := engine.AdvanceCommands([]command.Command{
		{
			Op: command.OpRenderGraphSet,
			RenderGraph: &command.GraphSpec{
				WindowID: 1,
				Desc: func() render_graph.GraphDesc {
					desc := render_graph.FallbackGraph()
					desc.GraphID = 1
					return desc
				}(),
			},
		},
		{
			Op:     command.OpCreate,
			Kind:   common.KindCamera,
			ID:     1,
			Label:  "main",
			Camera: &command.CameraSpec{LayerMask: 1, Fov: 1.2, Near: 0.1, Far: 100},
		},
	})
	for i, resp := range result.Responses {
		if !resp.Success {
			t.Fatalf("setup command %d failed: %s", i, resp.Message)
		}
	}

	backend.Reset()
	return engine, backend
}

func uploadCmd(bufferID uint32, kind common.ResourceKind, data []byte) command.Command {
	return command.Command{
		Op:     command.OpUploadBuffer,
		Upload: &command.UploadSpec{BufferID: bufferID, Kind: uint8(kind), Data: data},
	}
}

func modelCmd(id common.LogicalID, geometryID, materialID common.LogicalID) command.Command {
	return command.Command{
		Op:    command.OpCreate,
		Kind:  common.KindModel,
		ID:    id,
		Model: &command.ModelSpec{LayerMask: 1, GeometryID: geometryID, MaterialID: materialID},
	}
}

func geometryCmd(id common.LogicalID, vertexBuffer uint32) command.Command {
	return command.Command{
		Op:       command.OpCreate,
		Kind:     common.KindGeometry,
		ID:       id,
		Label:    "mesh",
		Geometry: &command.GeometrySpec{VertexBuffer: vertexBuffer, VertexStride: 12},
	}
}

// opaqueDraws collects the draws of the most recent frame's forward pass.
func opaqueDraws(t *testing.T, backend *renderer.RecordingBackend) []renderer.RecordedDraw {
	t.Helper()
	frame := backend.LastFrame()
	if frame == nil || len(frame.Passes) == 0 {
		t.Fatal("no frame recorded")
	}
	return frame.Passes[0].Draws
}

func TestModelBeforeGeometryAdoptsLaterRegistration(t *testing.T) {
	engine, backend := newTestCore(t)

	// The model references geometry 5 before it exists: the frame draws
	// the fallback geometry instead of failing.
	result := engine.AdvanceCommands([]command.Command{modelCmd(10, 5, 0)})
	if !result.Responses[0].Success {
		t.Fatalf("model create failed: %s", result.Responses[0].Message)
	}
	draws := opaqueDraws(t, backend)
	if len(draws) != 1 || draws[0].GeometryGeneration != 0 {
		t.Fatalf("draws = %+v, want one fallback-geometry draw", draws)
	}

	// Registering geometry 5 is adopted on the next resolve, with no
	// touch of the model instance.
	result = engine.AdvanceCommands([]command.Command{
		uploadCmd(7, common.KindGeometry, make([]byte, 36)),
		geometryCmd(5, 7),
	})
	for i, resp := range result.Responses {
		if !resp.Success {
			t.Fatalf("command %d failed: %s", i, resp.Message)
		}
	}
	draws = opaqueDraws(t, backend)
	if len(draws) != 1 || draws[0].GeometryID != 5 || draws[0].GeometryGeneration != 1 {
		t.Fatalf("draws = %+v, want geometry 5 generation 1", draws)
	}
}

func TestDisposeDegradesLiveReferences(t *testing.T) {
	engine, backend := newTestCore(t)

	result := engine.AdvanceCommands([]command.Command{
		uploadCmd(7, common.KindGeometry, make([]byte, 36)),
		geometryCmd(5, 7),
		modelCmd(10, 5, 0),
	})
	for i, resp := range result.Responses {
		if !resp.Success {
			t.Fatalf("command %d failed: %s", i, resp.Message)
		}
	}
	if draws := opaqueDraws(t, backend); draws[0].GeometryGeneration != 1 {
		t.Fatalf("draw generation = %d, want 1", draws[0].GeometryGeneration)
	}

	result = engine.AdvanceCommands([]command.Command{
		{Op: command.OpDispose, Kind: common.KindGeometry, ID: 5},
	})
	if !result.Responses[0].Success {
		t.Fatalf("dispose failed: %s", result.Responses[0].Message)
	}
	if len(result.Events) != 1 || result.Events[0].Kind != EventResourceDisposed || result.Events[0].ID != 5 {
		t.Fatalf("events = %+v, want one EventResourceDisposed for id 5", result.Events)
	}

	// The model still draws, now against the fallback geometry.
	draws := opaqueDraws(t, backend)
	if len(draws) != 1 || draws[0].GeometryGeneration != 0 {
		t.Fatalf("draws after dispose = %+v, want fallback-geometry draw", draws)
	}
}

func TestDisposeMissingFails(t *testing.T) {
	engine, _ := newTestCore(t)

	result := engine.AdvanceCommands([]command.Command{
		{Op: command.OpDispose, Kind: common.KindTexture, ID: 99},
	})
	resp := result.Responses[0]
	if resp.Success || !strings.Contains(resp.Message, "not found") {
		t.Fatalf("response = %+v, want not-found failure", resp)
	}
	if len(result.Events) != 0 {
		t.Fatalf("events = %+v, want none", result.Events)
	}
}

func TestUploadBuffersAreOneShot(t *testing.T) {
	engine, _ := newTestCore(t)

	// Two geometry creates consume the same upload buffer; the second
	// fails, the first keeps its data.
	result := engine.AdvanceCommands([]command.Command{
		uploadCmd(7, common.KindGeometry, make([]byte, 36)),
		geometryCmd(5, 7),
		geometryCmd(6, 7),
	})
	if !result.Responses[1].Success {
		t.Fatalf("first create failed: %s", result.Responses[1].Message)
	}
	second := result.Responses[2]
	if second.Success || !strings.Contains(second.Message, "vertex buffer 7") {
		t.Fatalf("second create response = %+v, want consumed-buffer failure", second)
	}

	if pending := engine.Stats().PendingUploads; pending != 0 {
		t.Fatalf("PendingUploads = %d, want 0", pending)
	}
}

func TestTexturePixelSizeValidated(t *testing.T) {
	engine, _ := newTestCore(t)

	result := engine.AdvanceCommands([]command.Command{
		uploadCmd(3, common.KindTexture, make([]byte, 10)),
		{
			Op:      command.OpCreate,
			Kind:    common.KindTexture,
			ID:      4,
			Texture: &command.TextureSpec{PixelBuffer: 3, Width: 2, Height: 2},
		},
	})
	resp := result.Responses[1]
	if resp.Success || !strings.Contains(resp.Message, "want 16") {
		t.Fatalf("response = %+v, want pixel-size failure", resp)
	}
}

func TestRejectedGraphWithFallbackStillRenders(t *testing.T) {
	backend := renderer.NewRecordingBackend()
	engine := New(WithBackend(backend), WithWorkerCount(1))
	defer engine.Release()
	engine.RegisterWindow(window.NewOffscreenTarget(1, 320, 240))

	cyclic := render_graph.FallbackGraph()
	cyclic.GraphID = 9
	cyclic.FallbackAllowed = true
	cyclic.Edges = append(cyclic.Edges, render_graph.EdgeDesc{From: 3, To: 1})

	result := engine.AdvanceCommands([]command.Command{
		{Op: command.OpRenderGraphSet, RenderGraph: &command.GraphSpec{WindowID: 1, Desc: cyclic}},
	})
	resp := result.Responses[0]
	if !resp.Success || !resp.FallbackUsed || resp.Message == "" {
		t.Fatalf("response = %+v, want success with FallbackUsed and a reason", resp)
	}
	if len(result.Events) != 1 || result.Events[0].Kind != EventFallbackGraphEngaged {
		t.Fatalf("events = %+v, want one EventFallbackGraphEngaged", result.Events)
	}

	// The window renders the built-in three-stage pipeline.
	frame := backend.LastFrame()
	if frame == nil || len(frame.Passes) != 3 {
		t.Fatalf("frame = %+v, want three built-in passes", frame)
	}
}

func TestRejectedGraphWithoutFallbackRendersNothing(t *testing.T) {
	backend := renderer.NewRecordingBackend()
	engine := New(WithBackend(backend), WithWorkerCount(1))
	defer engine.Release()
	engine.RegisterWindow(window.NewOffscreenTarget(1, 320, 240))

	cyclic := render_graph.FallbackGraph()
	cyclic.GraphID = 9
	cyclic.Edges = append(cyclic.Edges, render_graph.EdgeDesc{From: 3, To: 1})

	result := engine.AdvanceCommands([]command.Command{
		{Op: command.OpRenderGraphSet, RenderGraph: &command.GraphSpec{WindowID: 1, Desc: cyclic}},
	})
	resp := result.Responses[0]
	if resp.Success || resp.FallbackUsed || resp.Message == "" {
		t.Fatalf("response = %+v, want failure without fallback", resp)
	}
	if backend.LastFrame() != nil {
		t.Fatalf("frame = %+v, want none for an unbound window", backend.LastFrame())
	}

	// A later valid submission restores rendering.
	valid := render_graph.FallbackGraph()
	valid.GraphID = 9
	result = engine.AdvanceCommands([]command.Command{
		{Op: command.OpRenderGraphSet, RenderGraph: &command.GraphSpec{WindowID: 1, Desc: valid}},
	})
	if !result.Responses[0].Success || result.Responses[0].FallbackUsed {
		t.Fatalf("resubmission response = %+v, want plain success", result.Responses[0])
	}
	if frame := backend.LastFrame(); frame == nil || len(frame.Passes) != 3 {
		t.Fatalf("frame = %+v, want three passes after resubmission", frame)
	}
}

func TestMalformedBatchRejectedWholesale(t *testing.T) {
	engine, backend := newTestCore(t)

	before := engine.Stats().Frames
	result := engine.Advance([]byte("XXXX garbage"))
	if result.DecodeError == nil {
		t.Fatal("DecodeError = nil, want decode failure")
	}
	if len(result.Responses) != 0 {
		t.Fatalf("responses = %+v, want none from a rejected batch", result.Responses)
	}

	// The frame still advanced and the bound window still rendered.
	if got := engine.Stats().Frames; got != before+1 {
		t.Fatalf("Frames = %d, want %d", got, before+1)
	}
	if frame := backend.LastFrame(); frame == nil || !frame.Presented {
		t.Fatal("frame missing after rejected batch, want normal render")
	}
}

func TestAdvanceEncodedRoundTrip(t *testing.T) {
	engine, _ := newTestCore(t)

	batch, err := command.EncodeBatch([]command.Command{
		{
			Op:       command.OpCreate,
			Kind:     common.KindMaterial,
			ID:       8,
			Label:    "steel",
			Material: &registry.Material{Surface: registry.SurfaceOpaque},
		},
		{Op: command.OpList, Kind: common.KindMaterial},
	})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}

	result := engine.Advance(batch)
	if result.DecodeError != nil {
		t.Fatalf("DecodeError = %v", result.DecodeError)
	}
	if len(result.Responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(result.Responses))
	}
	list := result.Responses[1]
	if !list.Success || len(list.Entries) != 1 || list.Entries[0].ID != 8 {
		t.Fatalf("list response = %+v, want the registered material", list)
	}

	// The wire-form responses decode back to the typed results.
	decoded, err := command.DecodeResponses(result.ResponseBatch)
	if err != nil {
		t.Fatalf("DecodeResponses: %v", err)
	}
	if len(decoded) != 2 || decoded[1].Entries[0].Label != "steel" {
		t.Fatalf("decoded responses = %+v, want list entry steel", decoded)
	}
}

func TestGraphSetUnknownWindowFails(t *testing.T) {
	engine, _ := newTestCore(t)

	desc := render_graph.FallbackGraph()
	desc.GraphID = 2
	result := engine.AdvanceCommands([]command.Command{
		{Op: command.OpRenderGraphSet, RenderGraph: &command.GraphSpec{WindowID: 99, Desc: desc}},
	})
	resp := result.Responses[0]
	if resp.Success || !strings.Contains(resp.Message, "window 99") {
		t.Fatalf("response = %+v, want unknown-window failure", resp)
	}
}

func TestRemoveWindowDropsBinding(t *testing.T) {
	engine, backend := newTestCore(t)

	if !engine.RemoveWindow(1) {
		t.Fatal("RemoveWindow = false, want true")
	}
	if engine.RemoveWindow(1) {
		t.Fatal("second RemoveWindow = true, want false")
	}

	engine.AdvanceCommands(nil)
	if backend.LastFrame() != nil {
		t.Fatalf("frame = %+v, want none after window removal", backend.LastFrame())
	}
	if got := engine.Stats().Windows; got != 0 {
		t.Fatalf("Windows = %d, want 0", got)
	}
}

func TestFrameResultReportsActiveResources(t *testing.T) {
	engine, _ := newTestCore(t)

	result := engine.AdvanceCommands([]command.Command{
		uploadCmd(7, common.KindGeometry, make([]byte, 36)),
		geometryCmd(5, 7),
		{Op: command.OpCreate, Kind: common.KindMaterial, ID: 3, Label: "flat", Material: &registry.Material{}},
	})
	for i, resp := range result.Responses {
		if !resp.Success {
			t.Fatalf("command %d failed: %s", i, resp.Message)
		}
	}
	if got := result.ActiveResources["geometry"]; got != 1 {
		t.Fatalf("geometry count = %d, want 1", got)
	}
	if got := result.ActiveResources["material"]; got != 1 {
		t.Fatalf("material count = %d, want 1", got)
	}

	result = engine.AdvanceCommands([]command.Command{
		{Op: command.OpDispose, Kind: common.KindGeometry, ID: 5},
	})
	if got := result.ActiveResources["geometry"]; got != 0 {
		t.Fatalf("geometry count after dispose = %d, want 0", got)
	}
}

func TestGeometryIndexDeclarationRequiresBuffer(t *testing.T) {
	engine, _ := newTestCore(t)

	// Buffer 0 means non-indexed geometry, so a nonzero index count has
	// nothing to draw from and the create must fail.
	result := engine.AdvanceCommands([]command.Command{
		uploadCmd(7, common.KindGeometry, make([]byte, 36)),
		{
			Op:       command.OpCreate,
			Kind:     common.KindGeometry,
			ID:       5,
			Label:    "mesh",
			Geometry: &command.GeometrySpec{VertexBuffer: 7, VertexStride: 12, IndexCount: 36},
		},
	})
	resp := result.Responses[1]
	if resp.Success || !strings.Contains(resp.Message, "without an index buffer") {
		t.Fatalf("response = %+v, want index-declaration failure", resp)
	}

	// The same payload without the bogus count registers fine.
	result = engine.AdvanceCommands([]command.Command{
		uploadCmd(8, common.KindGeometry, make([]byte, 36)),
		geometryCmd(5, 8),
	})
	if !result.Responses[1].Success {
		t.Fatalf("non-indexed create failed: %s", result.Responses[1].Message)
	}
}
