// Package command defines the engine's external command surface: the
// typed command and response structures the controller exchanges with the
// core each tick, and the binary batch encoding they cross the boundary
// in.
package command

import (
	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/registry"
	"github.com/lumen-engine/lumen/engine/render_graph"
)

// Op identifies a command operation.
type Op uint16

const (
	// OpCreate registers a new resource or component record.
	OpCreate Op = iota + 1

	// OpUpdate replaces a resource record or patches a component in
	// place.
	OpUpdate

	// OpDispose removes a record. Live references degrade to fallback on
	// their next resolve.
	OpDispose

	// OpList returns the (id, label) pairs of a kind's live records.
	OpList

	// OpUploadBuffer stages a one-shot byte blob for a later creation
	// command.
	OpUploadBuffer

	// OpUploadDiscardAll purges every staged upload buffer.
	OpUploadDiscardAll

	// OpRenderGraphSet submits a render graph for a window.
	OpRenderGraphSet
)

var opNames = [...]string{
	OpCreate:           "create",
	OpUpdate:           "update",
	OpDispose:          "dispose",
	OpList:             "list",
	OpUploadBuffer:     "upload_buffer",
	OpUploadDiscardAll: "upload_discard_all",
	OpRenderGraphSet:   "render_graph_set",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "unknown"
}

// GeometrySpec carries a geometry creation's upload buffer references.
// The core consumes the named buffers from the upload table when it
// applies the command.
type GeometrySpec struct {
	// VertexBuffer and IndexBuffer are upload table buffer ids.
	// IndexBuffer 0 means non-indexed.
	VertexBuffer uint32
	IndexBuffer  uint32

	// VertexStride is the size of one vertex in bytes.
	VertexStride uint32

	// IndexCount is the number of indices in the index buffer.
	IndexCount uint32
}

// TextureSpec carries a texture creation's upload buffer reference and
// dimensions. The pixel buffer must hold exactly Width*Height*4 bytes.
type TextureSpec struct {
	// PixelBuffer is the upload table buffer id holding the pixel data.
	PixelBuffer uint32

	// Width and Height are the texture dimensions in pixels.
	Width, Height uint32

	// Format is the wgpu texture format as its numeric value.
	Format uint32
}

// ShaderSpec carries a shader creation's source buffer reference.
type ShaderSpec struct {
	// SourceBuffer is the upload table buffer id holding WGSL source.
	SourceBuffer uint32

	// Stage is the pipeline stage the source targets.
	Stage registry.ShaderStage

	// EntryPoint is the exported function name.
	EntryPoint string
}

// UploadSpec is an OpUploadBuffer payload.
type UploadSpec struct {
	// BufferID is the controller-chosen buffer id.
	BufferID uint32

	// Kind tags the intended consumer.
	Kind uint8

	// Data is the staged byte blob.
	Data []byte
}

// GraphSpec is an OpRenderGraphSet payload.
type GraphSpec struct {
	// WindowID names the window target the graph renders.
	WindowID uint32

	// Desc is the full graph description.
	Desc render_graph.GraphDesc
}

// Command is one decoded controller command. Op and Kind select which of
// the payload pointers is populated; exactly one is non-nil for ops that
// carry a payload.
type Command struct {
	// Op is the operation.
	Op Op

	// Kind is the resource or component kind for lifecycle ops.
	Kind common.ResourceKind

	// ID is the target record id for lifecycle ops.
	ID common.LogicalID

	// Label is the record's human-readable name for create/update.
	Label string

	Geometry *GeometrySpec
	Texture  *TextureSpec
	Shader   *ShaderSpec
	Material *registry.Material
	Camera   *CameraSpec
	Model    *ModelSpec
	Light    *LightSpec

	Upload      *UploadSpec
	RenderGraph *GraphSpec
}

// CameraSpec is an inline camera component payload.
type CameraSpec struct {
	Transform common.Transform
	LayerMask common.LayerMask
	Fov       float32
	Aspect    float32
	Near, Far float32
}

// ModelSpec is an inline model component payload.
type ModelSpec struct {
	Transform  common.Transform
	LayerMask  common.LayerMask
	GeometryID common.LogicalID
	MaterialID common.LogicalID
}

// LightSpec is an inline light component payload.
type LightSpec struct {
	Transform common.Transform
	LayerMask common.LayerMask
	Kind      uint8
	Color     [3]float32
	Intensity float32
	Range     float32
}

// Response is the result of one applied command. Responses are returned
// in submission order, one per command in the batch.
type Response struct {
	// Op and Kind echo the command.
	Op   Op
	Kind common.ResourceKind

	// ID echoes the command's target id.
	ID common.LogicalID

	// Success reports whether the command applied.
	Success bool

	// FallbackUsed reports, for OpRenderGraphSet, that the built-in graph
	// was substituted for a rejected description.
	FallbackUsed bool

	// Message carries the failure reason for unsuccessful commands.
	Message string

	// Entries holds OpList results.
	Entries []registry.Entry
}
