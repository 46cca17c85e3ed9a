package render_graph

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/component"
	"github.com/lumen-engine/lumen/engine/registry"
	"github.com/lumen-engine/lumen/engine/renderer"
	"github.com/lumen-engine/lumen/engine/visibility"
	"github.com/lumen-engine/lumen/engine/window"
)

// SlotSpec describes what a pass type requires of one declared resource
// bound to it.
type SlotSpec struct {
	// Usage is the usage bit set the resource must support. These bits
	// are folded into the realized texture's usage.
	Usage wgpu.TextureUsage

	// Formats lists the acceptable texture formats. Empty means any.
	Formats []wgpu.TextureFormat
}

// Requirements declares a pass type's input and output slots, in binding
// order. Node descriptions must match these counts exactly.
type Requirements struct {
	Inputs  []SlotSpec
	Outputs []SlotSpec
}

// FrameInput carries the per-frame draw data passes consume: the
// visibility engine's per-camera lists and the resource tables for
// resolving references.
type FrameInput struct {
	// Lists holds one draw list per visible camera.
	Lists []visibility.CameraDrawList

	// Resources are the engine's resource tables. Passes resolve lazy
	// references through them at draw time; missing references yield
	// fallback records.
	Resources *registry.Resources
}

// FrameStats accumulates profiling counters over one executed frame.
type FrameStats struct {
	// DrawCalls is the number of draw commands encoded.
	DrawCalls int

	// BatchRuns is the number of opaque batch runs drawn.
	BatchRuns int

	// VisibleInstances is the total instance count across all draws.
	VisibleInstances int
}

// PassContext is the execution environment handed to a pass: the backend
// to encode into, the present target, the frame's draw input, and the
// physical texture slots its declared resources resolved to.
type PassContext struct {
	// Backend encodes GPU commands for the frame.
	Backend renderer.Backend

	// Target is the window target the frame presents to.
	Target window.Target

	// Frame is the per-frame draw input.
	Frame *FrameInput

	// Inputs and Outputs are physical texture slots in the pass type's
	// slot order. An output bound to the window surface resolves to
	// renderer.SlotSurface.
	Inputs  []int
	Outputs []int

	// Params is the node's opaque parameter blob.
	Params []byte

	// Stats receives the pass's profiling counters.
	Stats *FrameStats
}

// Pass is one render graph pass type. Implementations encode their work
// through the context's backend; they never touch GPU state directly.
type Pass interface {
	// ID returns the pass type name nodes reference.
	ID() string

	// Requirements returns the pass type's slot requirements, used during
	// graph validation.
	Requirements() Requirements

	// Execute encodes the pass for one frame.
	//
	// Parameters:
	//   - ctx: the pass execution context
	//
	// Returns:
	//   - error: an error if encoding fails
	Execute(ctx *PassContext) error
}

// PassRegistry holds the pass types an engine knows. The built-in
// forward, transparent, and compose passes are always registered.
type PassRegistry struct {
	passes map[string]Pass
}

// NewPassRegistry creates a registry preloaded with the built-in pass
// types.
//
// Returns:
//   - *PassRegistry: the registry
func NewPassRegistry() *PassRegistry {
	r := &PassRegistry{passes: make(map[string]Pass)}
	r.Register(&forwardPass{})
	r.Register(&transparentPass{})
	r.Register(&composePass{})
	return r
}

// Register adds a pass type, replacing any existing type with the same id.
//
// Parameters:
//   - p: the pass to register
func (r *PassRegistry) Register(p Pass) {
	r.passes[p.ID()] = p
}

// Get looks up a pass type by id.
//
// Parameters:
//   - id: the pass type name
//
// Returns:
//   - Pass: the registered pass, or nil
//   - bool: whether the pass was found
func (r *PassRegistry) Get(id string) (Pass, bool) {
	p, ok := r.passes[id]
	return p, ok
}

// forwardPass draws every camera's opaque batch runs into a cleared color
// and depth target.
type forwardPass struct{}

func (p *forwardPass) ID() string { return "forward" }

func (p *forwardPass) Requirements() Requirements {
	return Requirements{
		Outputs: []SlotSpec{
			{Usage: wgpu.TextureUsageRenderAttachment},
			{Usage: wgpu.TextureUsageRenderAttachment, Formats: []wgpu.TextureFormat{wgpu.TextureFormatDepth24Plus, wgpu.TextureFormatDepth32Float}},
		},
	}
}

func (p *forwardPass) Execute(ctx *PassContext) error {
	err := ctx.Backend.BeginRenderPass(renderer.RenderPassDesc{
		Label: "forward",
		Color: []renderer.Attachment{
			{Slot: ctx.Outputs[0], Clear: true, ClearColor: wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0}},
		},
		Depth: &renderer.Attachment{Slot: ctx.Outputs[1], Clear: true, DepthClear: 1.0},
	})
	if err != nil {
		return err
	}
	defer ctx.Backend.EndRenderPass()

	for i := range ctx.Frame.Lists {
		list := &ctx.Frame.Lists[i]
		viewProjection := cameraViewProjection(list.Camera, ctx.Target)
		for _, run := range list.OpaqueRuns {
			batch := buildBatch(ctx.Frame.Resources, list.Opaque[run.Offset:run.Offset+run.Count], viewProjection)
			if err := ctx.Backend.DrawBatch(batch); err != nil {
				return err
			}
			ctx.Stats.DrawCalls++
			ctx.Stats.BatchRuns++
			ctx.Stats.VisibleInstances += run.Count
		}
	}
	return nil
}

// transparentPass draws every camera's transparent entries back-to-front
// over the forward pass's output. Color and depth load the previous
// contents instead of clearing.
type transparentPass struct{}

func (p *transparentPass) ID() string { return "transparent" }

func (p *transparentPass) Requirements() Requirements {
	return Requirements{
		Outputs: []SlotSpec{
			{Usage: wgpu.TextureUsageRenderAttachment},
			{Usage: wgpu.TextureUsageRenderAttachment, Formats: []wgpu.TextureFormat{wgpu.TextureFormatDepth24Plus, wgpu.TextureFormatDepth32Float}},
		},
	}
}

func (p *transparentPass) Execute(ctx *PassContext) error {
	err := ctx.Backend.BeginRenderPass(renderer.RenderPassDesc{
		Label: "transparent",
		Color: []renderer.Attachment{
			{Slot: ctx.Outputs[0]},
		},
		Depth: &renderer.Attachment{Slot: ctx.Outputs[1], DepthClear: 1.0},
	})
	if err != nil {
		return err
	}
	defer ctx.Backend.EndRenderPass()

	for i := range ctx.Frame.Lists {
		list := &ctx.Frame.Lists[i]
		viewProjection := cameraViewProjection(list.Camera, ctx.Target)

		// Depth ordering forbids merging across the sorted list, so each
		// entry draws alone.
		for j := range list.Transparent {
			batch := buildBatch(ctx.Frame.Resources, list.Transparent[j:j+1], viewProjection)
			if err := ctx.Backend.DrawBatch(batch); err != nil {
				return err
			}
			ctx.Stats.DrawCalls++
			ctx.Stats.VisibleInstances++
		}
	}
	return nil
}

// composePass copies an intermediate color target onto the window
// surface.
type composePass struct{}

func (p *composePass) ID() string { return "compose" }

func (p *composePass) Requirements() Requirements {
	return Requirements{
		Inputs: []SlotSpec{
			{Usage: wgpu.TextureUsageTextureBinding},
		},
		Outputs: []SlotSpec{
			{Usage: wgpu.TextureUsageRenderAttachment},
		},
	}
}

func (p *composePass) Execute(ctx *PassContext) error {
	err := ctx.Backend.BeginRenderPass(renderer.RenderPassDesc{
		Label: "compose",
		Color: []renderer.Attachment{
			{Slot: ctx.Outputs[0], Clear: true, ClearColor: wgpu.Color{A: 1.0}},
		},
	})
	if err != nil {
		return err
	}
	defer ctx.Backend.EndRenderPass()

	if err := ctx.Backend.Blit(ctx.Inputs[0]); err != nil {
		return err
	}
	ctx.Stats.DrawCalls++
	return nil
}

// cameraViewProjection builds the column-major view-projection matrix for
// a camera. A zero aspect falls back to the target's extent.
func cameraViewProjection(cam component.Camera, target window.Target) [16]float32 {
	aspect := cam.Aspect
	if aspect <= 0 && target != nil && target.Height() > 0 {
		aspect = float32(target.Width()) / float32(target.Height())
	}
	if aspect <= 0 {
		aspect = 1
	}

	var projection, world, view, result [16]float32
	common.Perspective(projection[:], cam.Fov, aspect, cam.Near, cam.Far)
	cam.Transform.Matrix(world[:])
	if !common.Invert4(view[:], world[:]) {
		common.Identity(view[:])
	}
	common.Mul4(result[:], projection[:], view[:])
	return result
}

// buildBatch resolves a slice of draw entries sharing one material and
// geometry into a backend draw batch. All entries in the slice carry the
// same reference pair; resolution happens here, at draw time, so missing
// references degrade to fallbacks and later registrations are adopted
// without touching the instances.
func buildBatch(res *registry.Resources, entries []visibility.DrawEntry, viewProjection [16]float32) renderer.DrawBatch {
	material := res.Materials.Resolve(entries[0].MaterialID)
	geometry := res.Geometries.Resolve(entries[0].GeometryID)
	diffuse := res.Textures.Resolve(material.Payload.DiffuseTexture)

	instances := make([]renderer.InstanceData, len(entries))
	for i := range entries {
		entries[i].Transform.Matrix(instances[i].Model[:])
	}

	return renderer.DrawBatch{
		Geometry:       geometry,
		Material:       material,
		Diffuse:        diffuse,
		Instances:      instances,
		ViewProjection: viewProjection,
	}
}

// describeSlot formats a slot position for validation error messages.
func describeSlot(direction string, index int) string {
	return fmt.Sprintf("%s slot %d", direction, index)
}
