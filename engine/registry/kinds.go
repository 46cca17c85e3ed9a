package registry

import (
	"log/slog"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/lumen-engine/lumen/common"
)

// SurfaceType classifies how a material's surface is drawn and therefore
// which half of a camera's draw list its instances land in.
type SurfaceType uint8

const (
	// SurfaceOpaque surfaces are fully opaque and batch-sorted by state.
	SurfaceOpaque SurfaceType = iota

	// SurfaceMasked surfaces use alpha-cutoff testing. They sort with the
	// opaque set since they write depth.
	SurfaceMasked

	// SurfaceTransparent surfaces blend and must draw back-to-front.
	SurfaceTransparent
)

// String returns the lower-case name of the surface type.
func (s SurfaceType) String() string {
	switch s {
	case SurfaceOpaque:
		return "opaque"
	case SurfaceMasked:
		return "masked"
	case SurfaceTransparent:
		return "transparent"
	default:
		return "unknown"
	}
}

// Geometry is the payload for KindGeometry records: raw interleaved vertex
// bytes plus an optional uint32 index stream, both pre-cooked by the
// controller.
type Geometry struct {
	// VertexData is the raw interleaved vertex byte stream.
	VertexData []byte

	// VertexStride is the size of one vertex in bytes.
	VertexStride uint32

	// IndexData is the raw uint32 index byte stream (empty for non-indexed).
	IndexData []byte

	// IndexCount is the number of indices represented in IndexData.
	IndexCount uint32
}

// Material is the payload for KindMaterial records. Texture references are
// lazy LogicalIDs into the texture table; they may name textures that do not
// exist yet and are re-resolved every frame.
type Material struct {
	// Surface classifies the material for draw ordering.
	Surface SurfaceType

	// BaseColor is the albedo/diffuse color (RGBA).
	BaseColor [4]float32

	// Metallic factor (0.0 = dielectric, 1.0 = metal).
	Metallic float32

	// Roughness factor (0.0 = smooth, 1.0 = rough).
	Roughness float32

	// AlphaCutoff is the masked-surface discard threshold.
	AlphaCutoff float32

	// DiffuseTexture is the lazy id of the albedo texture (0 = none).
	DiffuseTexture common.LogicalID

	// NormalTexture is the lazy id of the normal map (0 = none).
	NormalTexture common.LogicalID

	// ShaderRef is the lazy id of the shader resource driving this
	// material's pipeline variant (0 = engine default).
	ShaderRef common.LogicalID
}

// Texture is the payload for KindTexture records: tightly packed pixel data
// in the declared wgpu format.
type Texture struct {
	// Pixels is the raw pixel byte stream, row-major, no padding.
	Pixels []byte

	// Width and Height are the texture dimensions in pixels.
	Width, Height uint32

	// Format is the wgpu texture format of Pixels.
	Format wgpu.TextureFormat
}

// ShaderStage identifies which pipeline stage a shader source targets.
type ShaderStage uint8

const (
	// StageVertex is a vertex shader.
	StageVertex ShaderStage = iota

	// StageFragment is a fragment shader.
	StageFragment

	// StageCompute is a compute shader.
	StageCompute
)

// Shader is the payload for KindShader records: WGSL source text plus the
// stage and entry point it provides.
type Shader struct {
	// Source is the WGSL source text.
	Source string

	// Stage is the pipeline stage the source targets.
	Stage ShaderStage

	// EntryPoint is the exported function name (default "main").
	EntryPoint string
}

// FallbackGeometry returns the static geometry substituted for missing
// geometry references: a single degenerate triangle at the origin, position
// only, so a draw against it is valid but produces no fragments.
//
// Returns:
//   - Geometry: the fallback payload
func FallbackGeometry() Geometry {
	vertices := make([]byte, 3*3*4) // three zeroed float32 positions
	return Geometry{
		VertexData:   vertices,
		VertexStride: 12,
		IndexData:    common.SliceToBytes([]uint32{0, 1, 2}),
		IndexCount:   3,
	}
}

// FallbackMaterial returns the static material substituted for missing
// material references: opaque mid-grey, no textures.
//
// Returns:
//   - Material: the fallback payload
func FallbackMaterial() Material {
	return Material{
		Surface:   SurfaceOpaque,
		BaseColor: [4]float32{0.5, 0.5, 0.5, 1.0},
		Roughness: 1.0,
	}
}

// FallbackTexture returns the static texture substituted for missing texture
// references: a 1x1 neutral grey RGBA8 texel.
//
// Returns:
//   - Texture: the fallback payload
func FallbackTexture() Texture {
	return Texture{
		Pixels: []byte{0x80, 0x80, 0x80, 0xFF},
		Width:  1,
		Height: 1,
		Format: wgpu.TextureFormatRGBA8Unorm,
	}
}

// FallbackShader returns the static shader substituted for missing shader
// references: an empty-source marker that selects the engine's built-in
// pipeline variant.
//
// Returns:
//   - Shader: the fallback payload
func FallbackShader() Shader {
	return Shader{EntryPoint: "main"}
}

// Resources bundles the four per-kind resource tables the core owns.
type Resources struct {
	Geometries Table[Geometry]
	Materials  Table[Material]
	Textures   Table[Texture]
	Shaders    Table[Shader]
}

// NewResources creates the four resource tables with their kind-specific
// fallback records.
//
// Parameters:
//   - logger: the slog logger shared by the tables (nil for silent)
//
// Returns:
//   - *Resources: the newly created table bundle
func NewResources(logger *slog.Logger) *Resources {
	return &Resources{
		Geometries: NewTable(common.KindGeometry, FallbackGeometry(), WithLogger[Geometry](logger)),
		Materials:  NewTable(common.KindMaterial, FallbackMaterial(), WithLogger[Material](logger)),
		Textures:   NewTable(common.KindTexture, FallbackTexture(), WithLogger[Texture](logger)),
		Shaders:    NewTable(common.KindShader, FallbackShader(), WithLogger[Shader](logger)),
	}
}

// ActiveCounts returns the live record count per kind, keyed by kind name.
// Used for the frame profiling counters.
//
// Returns:
//   - map[string]int: kind name to live record count
func (r *Resources) ActiveCounts() map[string]int {
	return map[string]int{
		common.KindGeometry.String(): r.Geometries.Len(),
		common.KindMaterial.String(): r.Materials.Len(),
		common.KindTexture.String():  r.Textures.Len(),
		common.KindShader.String():   r.Shaders.Len(),
	}
}

// FallbackHits returns the total fallback resolutions across all kinds.
//
// Returns:
//   - uint64: sum of per-table fallback hit counters
func (r *Resources) FallbackHits() uint64 {
	return r.Geometries.FallbackHits() + r.Materials.FallbackHits() +
		r.Textures.FallbackHits() + r.Shaders.FallbackHits()
}
