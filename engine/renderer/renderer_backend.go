package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/lumen-engine/lumen/engine/registry"
	"github.com/lumen-engine/lumen/engine/window"
)

// BackendType identifies the backend implementation used by the engine.
type BackendType int

const (
	// BackendTypeRecording selects the headless recording backend. It is the
	// default: it needs no GPU and records every pass and draw for
	// inspection.
	BackendTypeRecording BackendType = iota

	// BackendTypeWGPU selects the WebGPU-based hardware backend.
	BackendTypeWGPU
)

// SlotSurface is the attachment slot value naming the frame's window
// surface instead of a physical plan texture.
const SlotSurface = -1

// TextureDesc describes a physical plan texture the executor asks the
// backend to realize before a frame runs.
type TextureDesc struct {
	// Label is a human-readable name for debugging.
	Label string

	// Width and Height are the texture dimensions in pixels. Zero means
	// window-sized; the executor substitutes the target's extent.
	Width, Height uint32

	// Format is the wgpu texture format.
	Format wgpu.TextureFormat

	// Usage is the wgpu usage bit set.
	Usage wgpu.TextureUsage
}

// Attachment binds one texture slot to a render pass.
type Attachment struct {
	// Slot is a physical texture slot, or SlotSurface for the window
	// surface.
	Slot int

	// Clear requests a clear at pass begin; otherwise contents load.
	Clear bool

	// ClearColor is the clear value for color attachments.
	ClearColor wgpu.Color

	// DepthClear is the clear value for depth attachments.
	DepthClear float32
}

// RenderPassDesc describes one render pass: its color attachments and an
// optional depth attachment.
type RenderPassDesc struct {
	// Label is a human-readable pass name for debugging.
	Label string

	// Color holds the pass's color attachments in binding order.
	Color []Attachment

	// Depth is the optional depth attachment.
	Depth *Attachment
}

// InstanceData is the per-instance payload uploaded for a draw batch.
type InstanceData struct {
	// Model is the instance's column-major world matrix.
	Model [16]float32
}

// DrawBatch is one batched draw: resolved geometry and material records,
// the resolved diffuse texture, and the per-instance data for every
// instance in the batch run.
type DrawBatch struct {
	// Geometry is the resolved geometry record (fallback when missing).
	Geometry *registry.Record[registry.Geometry]

	// Material is the resolved material record (fallback when missing).
	Material *registry.Record[registry.Material]

	// Diffuse is the resolved diffuse texture record (fallback when the
	// material has no texture or the reference is missing).
	Diffuse *registry.Record[registry.Texture]

	// Instances holds one entry per instance in the batch.
	Instances []InstanceData

	// ViewProjection is the drawing camera's column-major view-projection
	// matrix.
	ViewProjection [16]float32
}

// Backend is the GPU command-encoding seam. The render-graph executor and
// its passes drive a Backend; the engine core never touches GPU state
// directly. Implementations are not safe for concurrent use; the tick loop
// owns the backend exclusively.
type Backend interface {
	// Name returns the backend's identifier for logging.
	Name() string

	// BeginFrame opens a frame against the given present target. Must be
	// paired with EndFrame.
	//
	// Parameters:
	//   - target: the window target to render into
	//
	// Returns:
	//   - error: error if the surface texture could not be acquired
	BeginFrame(target window.Target) error

	// EndFrame finishes and submits the frame's command stream.
	EndFrame()

	// Present presents the frame to the target surface.
	Present()

	// EnsureTexture realizes (or resizes) the physical texture for a plan
	// slot. Called by the executor before the frame's passes run; slots are
	// stable across frames for a cached plan, so an unchanged descriptor is
	// a no-op.
	//
	// Parameters:
	//   - slot: the physical slot index assigned by plan compilation
	//   - desc: the texture descriptor (extent already resolved)
	//
	// Returns:
	//   - error: error if the texture could not be created
	EnsureTexture(slot int, desc TextureDesc) error

	// BeginRenderPass opens a render pass. Must be paired with
	// EndRenderPass. Only one pass may be open at a time.
	//
	// Parameters:
	//   - desc: the pass description
	//
	// Returns:
	//   - error: error if an attachment slot has no realized texture
	BeginRenderPass(desc RenderPassDesc) error

	// EndRenderPass closes the open render pass.
	EndRenderPass()

	// DrawBatch encodes one batched draw into the open render pass.
	//
	// Parameters:
	//   - batch: the resolved draw batch
	//
	// Returns:
	//   - error: error if no pass is open or encoding fails
	DrawBatch(batch DrawBatch) error

	// Blit draws the given slot's texture as a fullscreen quad into the
	// open render pass.
	//
	// Parameters:
	//   - srcSlot: the physical slot to sample from
	//
	// Returns:
	//   - error: error if no pass is open or the slot has no texture
	Blit(srcSlot int) error

	// Resize reconfigures surface-sized state after the target's extent
	// changed.
	//
	// Parameters:
	//   - width: new width in pixels
	//   - height: new height in pixels
	Resize(width, height int)

	// Release frees all backend resources. The backend must not be used
	// afterwards.
	Release()
}
