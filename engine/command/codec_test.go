package command

import (
	"errors"
	"reflect"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/registry"
	"github.com/lumen-engine/lumen/engine/render_graph"
)

// sampleBatch covers one command of every operation the format carries.
func sampleBatch() []Command {
	transform := common.Transform{
		Position: [3]float32{1, 2, 3},
		Rotation: [3]float32{0, 0.5, 0},
		Scale:    [3]float32{1, 1, 1},
	}
	return []Command{
		{
			Op:     OpUploadBuffer,
			Upload: &UploadSpec{BufferID: 7, Kind: uint8(common.KindGeometry), Data: []byte{1, 2, 3, 4}},
		},
		{
			Op:       OpCreate,
			Kind:     common.KindGeometry,
			ID:       5,
			Label:    "cube",
			Geometry: &GeometrySpec{VertexBuffer: 7, IndexBuffer: 8, VertexStride: 12, IndexCount: 36},
		},
		{
			Op:      OpCreate,
			Kind:    common.KindTexture,
			ID:      6,
			Label:   "albedo",
			Texture: &TextureSpec{PixelBuffer: 9, Width: 64, Height: 64, Format: uint32(wgpu.TextureFormatRGBA8Unorm)},
		},
		{
			Op:     OpCreate,
			Kind:   common.KindShader,
			ID:     7,
			Label:  "lit",
			Shader: &ShaderSpec{SourceBuffer: 10, Stage: registry.StageFragment, EntryPoint: "fs_main"},
		},
		{
			Op:    OpCreate,
			Kind:  common.KindMaterial,
			ID:    8,
			Label: "steel",
			Material: &registry.Material{
				Surface:        registry.SurfaceMasked,
				BaseColor:      [4]float32{0.8, 0.8, 0.9, 1},
				Metallic:       1,
				Roughness:      0.3,
				AlphaCutoff:    0.5,
				DiffuseTexture: 6,
				ShaderRef:      7,
			},
		},
		{
			Op:     OpUpdate,
			Kind:   common.KindCamera,
			ID:     1,
			Label:  "main",
			Camera: &CameraSpec{Transform: transform, LayerMask: 1, Fov: 1.2, Aspect: 1.5, Near: 0.1, Far: 500},
		},
		{
			Op:    OpUpdate,
			Kind:  common.KindModel,
			ID:    2,
			Label: "crate",
			Model: &ModelSpec{Transform: transform, LayerMask: 3, GeometryID: 5, MaterialID: 8},
		},
		{
			Op:    OpCreate,
			Kind:  common.KindLight,
			ID:    3,
			Label: "sun",
			Light: &LightSpec{Transform: transform, LayerMask: 1, Kind: 0, Color: [3]float32{1, 0.9, 0.8}, Intensity: 2},
		},
		{Op: OpDispose, Kind: common.KindTexture, ID: 4},
		{Op: OpList, Kind: common.KindMaterial},
		{Op: OpUploadDiscardAll},
		{
			Op: OpRenderGraphSet,
			RenderGraph: &GraphSpec{
				WindowID: 1,
				Desc: render_graph.GraphDesc{
					GraphID:         77,
					FallbackAllowed: true,
					Nodes: []render_graph.NodeDesc{
						{NodeID: 1, PassID: "forward", Outputs: []render_graph.ResID{1, 2}, Params: []byte{0xAB}},
						{NodeID: 2, PassID: "compose", Inputs: []render_graph.ResID{1}, Outputs: []render_graph.ResID{render_graph.ResSurface}, Params: []byte{0xCD}},
					},
					Edges: []render_graph.EdgeDesc{{From: 1, To: 2}},
					Resources: []render_graph.ResourceDecl{
						{
							ResID:      1,
							Label:      "Color",
							Width:      1920,
							Height:     1080,
							Format:     wgpu.TextureFormatRGBA8Unorm,
							Usage:      wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
							Lifetime:   render_graph.LifetimeFrame,
							AliasGroup: 1,
						},
						{
							ResID:    2,
							Label:    "Depth",
							Format:   wgpu.TextureFormatDepth24Plus,
							Usage:    wgpu.TextureUsageRenderAttachment,
							Lifetime: render_graph.LifetimeFrame,
						},
					},
				},
			},
		},
	}
}

func TestBatchRoundTrip(t *testing.T) {
	batch := sampleBatch()

	data, err := EncodeBatch(batch)
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}

	decoded, err := DecodeBatch(data)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(decoded) != len(batch) {
		t.Fatalf("decoded %d commands, want %d", len(decoded), len(batch))
	}
	for i := range batch {
		if !reflect.DeepEqual(decoded[i], batch[i]) {
			t.Fatalf("command %d (%s) round-trip mismatch:\n got %+v\nwant %+v",
				i, batch[i].Op, decoded[i], batch[i])
		}
	}
}

func TestDecodeBadMagic(t *testing.T) {
	if _, err := DecodeBatch([]byte("XXXX\x01\x00\x00\x00\x00\x00")); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("DecodeBatch error = %v, want ErrBadMagic", err)
	}
	if _, err := DecodeBatch(nil); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("DecodeBatch(nil) error = %v, want ErrBadMagic", err)
	}
}

func TestDecodeBadVersion(t *testing.T) {
	data, err := EncodeBatch([]Command{{Op: OpUploadDiscardAll}})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	data[4] = 9 // version low byte follows the magic

	if _, err := DecodeBatch(data); !errors.Is(err, ErrBadVersion) {
		t.Fatalf("DecodeBatch error = %v, want ErrBadVersion", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	data, err := EncodeBatch(sampleBatch())
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}

	for _, cut := range []int{1, 5, len(data) / 2, len(data) - 1} {
		if _, err := DecodeBatch(data[:cut]); err == nil {
			t.Fatalf("DecodeBatch of %d/%d bytes succeeded, want error", cut, len(data))
		}
	}
	if _, err := DecodeBatch(data[:len(data)-1]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("DecodeBatch error = %v, want ErrTruncated", err)
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	data, err := EncodeBatch([]Command{{Op: OpUploadDiscardAll}})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	data = append(data, 0xFF)

	if _, err := DecodeBatch(data); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("DecodeBatch error = %v, want ErrBadMagic for trailing bytes", err)
	}
}

func TestDecodeForgedCountRejectedWithoutAllocation(t *testing.T) {
	// A 10-byte batch claiming 4 billion commands must be rejected from
	// the header alone; sizing an allocation from the forged count would
	// be fatal to the process.
	forged := []byte{'L', 'M', 'C', 'B', 1, 0, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := DecodeBatch(forged); !errors.Is(err, ErrTruncated) {
		t.Fatalf("DecodeBatch error = %v, want ErrTruncated", err)
	}

	forgedResp := []byte{'L', 'M', 'R', 'B', 1, 0, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := DecodeResponses(forgedResp); !errors.Is(err, ErrTruncated) {
		t.Fatalf("DecodeResponses error = %v, want ErrTruncated", err)
	}

	// A count merely larger than the payload could hold is rejected the
	// same way.
	data, err := EncodeBatch([]Command{{Op: OpUploadDiscardAll}})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	data[6] = 2 // count low byte: two commands claimed, one encoded
	if _, err := DecodeBatch(data); !errors.Is(err, ErrTruncated) {
		t.Fatalf("DecodeBatch error = %v, want ErrTruncated", err)
	}
}

func TestDecodeUnknownOp(t *testing.T) {
	data, err := EncodeBatch([]Command{{Op: OpUploadDiscardAll}})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	data[10] = 0xFF // op low byte of the first command

	if _, err := DecodeBatch(data); !errors.Is(err, ErrUnknownOp) {
		t.Fatalf("DecodeBatch error = %v, want ErrUnknownOp", err)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	data, err := EncodeBatch([]Command{{Op: OpDispose, Kind: common.KindTexture, ID: 4}})
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	data[12] = 0xEE // kind byte of the first command

	if _, err := DecodeBatch(data); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("DecodeBatch error = %v, want ErrUnknownKind", err)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	responses := []Response{
		{Op: OpCreate, Kind: common.KindGeometry, ID: 5, Success: true},
		{Op: OpRenderGraphSet, ID: 1, Success: true, FallbackUsed: true, Message: "graph rejected"},
		{Op: OpDispose, Kind: common.KindTexture, ID: 9, Message: "texture 9 not found"},
		{
			Op:      OpList,
			Kind:    common.KindMaterial,
			Success: true,
			Entries: []registry.Entry{{ID: 2, Label: "steel"}, {ID: 8, Label: "glass"}},
		},
	}

	data, err := EncodeResponses(responses)
	if err != nil {
		t.Fatalf("EncodeResponses: %v", err)
	}
	decoded, err := DecodeResponses(data)
	if err != nil {
		t.Fatalf("DecodeResponses: %v", err)
	}
	if len(decoded) != len(responses) {
		t.Fatalf("decoded %d responses, want %d", len(decoded), len(responses))
	}

	for i, want := range responses {
		got := decoded[i]
		if got.Op != want.Op || got.Kind != want.Kind || got.ID != want.ID ||
			got.Success != want.Success || got.FallbackUsed != want.FallbackUsed ||
			got.Message != want.Message {
			t.Fatalf("response %d = %+v, want %+v", i, got, want)
		}
		if len(got.Entries) != len(want.Entries) {
			t.Fatalf("response %d has %d entries, want %d", i, len(got.Entries), len(want.Entries))
		}
		for j := range want.Entries {
			if got.Entries[j] != want.Entries[j] {
				t.Fatalf("response %d entry %d = %+v, want %+v", i, j, got.Entries[j], want.Entries[j])
			}
		}
	}
	if _, err := DecodeResponses([]byte("LMCB")); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("DecodeResponses error = %v, want ErrBadMagic", err)
	}
}
