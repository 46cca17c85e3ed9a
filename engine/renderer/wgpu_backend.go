package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/registry"
	"github.com/lumen-engine/lumen/engine/window"
)

// batchUniforms is the per-draw uniform block uploaded for every batch.
// Layout matches the BatchUniforms struct in batchShaderSource.
type batchUniforms struct {
	ViewProjection [16]float32
	BaseColor      [4]float32
	Params         [4]float32
}

// pipelineKey selects a render pipeline variant. Pipelines depend on the
// pass color format, whether the pass has a depth attachment, whether the
// material blends, and the geometry's vertex stride.
type pipelineKey struct {
	format  wgpu.TextureFormat
	depth   bool
	blended bool
	stride  uint32
}

type meshBuffers struct {
	generation  uint32
	vertex      *wgpu.Buffer
	index       *wgpu.Buffer
	indexCount  uint32
	vertexCount uint32
}

func (m *meshBuffers) release() {
	if m.vertex != nil {
		m.vertex.Release()
	}
	if m.index != nil {
		m.index.Release()
	}
}

type physicalTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	desc    TextureDesc
}

type cachedTexture struct {
	generation uint32
	texture    *wgpu.Texture
	view       *wgpu.TextureView
}

func (c *cachedTexture) release() {
	c.view.Release()
	c.texture.Release()
}

type wgpuBackend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat        wgpu.TextureFormat
	presentMode          wgpu.PresentMode
	forceFallbackAdapter bool
	width, height        int

	batchModule *wgpu.ShaderModule
	blitModule  *wgpu.ShaderModule
	drawLayout  *wgpu.BindGroupLayout
	blitLayout  *wgpu.BindGroupLayout
	drawPipes   *wgpu.PipelineLayout
	blitPipes   *wgpu.PipelineLayout
	sampler     *wgpu.Sampler

	pipelines     map[pipelineKey]*wgpu.RenderPipeline
	blitPipelines map[wgpu.TextureFormat]*wgpu.RenderPipeline

	textures map[int]*physicalTexture
	meshes   map[common.LogicalID]*meshBuffers
	images   map[common.LogicalID]*cachedTexture

	// Frame state for batched rendering across multiple passes.
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	passFormat   wgpu.TextureFormat
	passHasDepth bool

	// Transient per-frame GPU objects released after submission.
	frameBuffers []*wgpu.Buffer
	frameGroups  []*wgpu.BindGroup

	logger *slog.Logger
}

var _ Backend = &wgpuBackend{}

// WGPUBackendOption configures a wgpu backend during construction.
type WGPUBackendOption func(*wgpuBackend)

// WithPresentMode sets the surface present mode used when configuring
// swapchains. Defaults to immediate presentation.
//
// Parameters:
//   - mode: the wgpu present mode to request
//
// Returns:
//   - WGPUBackendOption: a function that sets the present mode
func WithPresentMode(mode wgpu.PresentMode) WGPUBackendOption {
	return func(b *wgpuBackend) {
		b.presentMode = mode
	}
}

// WithForceFallbackAdapter forces adapter selection onto a software
// fallback adapter when the platform offers one.
//
// Returns:
//   - WGPUBackendOption: a function that enables the fallback adapter
func WithForceFallbackAdapter() WGPUBackendOption {
	return func(b *wgpuBackend) {
		b.forceFallbackAdapter = true
	}
}

// WithWGPULogger sets the structured logger the backend logs device and
// surface lifecycle events to.
//
// Parameters:
//   - logger: the slog logger to use
//
// Returns:
//   - WGPUBackendOption: a function that sets the logger
func WithWGPULogger(logger *slog.Logger) WGPUBackendOption {
	return func(b *wgpuBackend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewWGPUBackend creates the hardware Backend. Device acquisition is
// deferred until the first BeginFrame, when a surface is available to
// select a compatible adapter against.
//
// Parameters:
//   - options: optional configuration functions
//
// Returns:
//   - Backend: the wgpu-backed renderer backend
func NewWGPUBackend(options ...WGPUBackendOption) Backend {
	runtime.LockOSThread()
	b := &wgpuBackend{
		instance:      wgpu.CreateInstance(nil),
		presentMode:   wgpu.PresentModeImmediate,
		pipelines:     make(map[pipelineKey]*wgpu.RenderPipeline),
		blitPipelines: make(map[wgpu.TextureFormat]*wgpu.RenderPipeline),
		textures:      make(map[int]*physicalTexture),
		meshes:        make(map[common.LogicalID]*meshBuffers),
		images:        make(map[common.LogicalID]*cachedTexture),
		logger:        common.NopLogger(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *wgpuBackend) Name() string { return "wgpu" }

func (b *wgpuBackend) BeginFrame(target window.Target) error {
	if b.frameSurface != nil {
		return errors.New("previous frame surface not yet presented")
	}

	if b.device == nil {
		if err := b.initDevice(target); err != nil {
			return err
		}
	}

	if target.Width() != b.width || target.Height() != b.height {
		b.Resize(target.Width(), target.Height())
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view

	return nil
}

// initDevice acquires the adapter, device, and queue against the target's
// surface, then builds the shader modules, layouts, and sampler that every
// frame reuses.
func (b *wgpuBackend) initDevice(target window.Target) error {
	descriptor := target.SurfaceDescriptor()
	if descriptor == nil {
		return errors.New("wgpu backend requires a platform window target")
	}
	b.surface = b.instance.CreateSurface(descriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return err
	}
	b.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return err
	}
	b.device = device
	b.queue = device.GetQueue()

	b.width = target.Width()
	b.height = target.Height()
	b.configureSurface()

	if b.batchModule, err = device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Batch Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: batchShaderSource},
	}); err != nil {
		return err
	}
	if b.blitModule, err = device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Blit Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: blitShaderSource},
	}); err != nil {
		return err
	}

	if b.drawLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Batch Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageVertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	}); err != nil {
		return err
	}
	if b.blitLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Blit Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	}); err != nil {
		return err
	}

	if b.drawPipes, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Batch Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.drawLayout},
	}); err != nil {
		return err
	}
	if b.blitPipes, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Blit Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.blitLayout},
	}); err != nil {
		return err
	}

	if b.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Default Sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	}); err != nil {
		return err
	}

	b.logger.Info("wgpu device acquired", "surface_format", b.surfaceFormat, "width", b.width, "height", b.height)

	return nil
}

func (b *wgpuBackend) configureSurface() {
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(b.width),
		Height:      uint32(b.height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuBackend) EndFrame() {
	if b.frameEncoder == nil {
		return
	}

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err == nil {
		b.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}
	b.frameEncoder.Release()
	b.frameEncoder = nil

	for _, group := range b.frameGroups {
		group.Release()
	}
	b.frameGroups = b.frameGroups[:0]
	for _, buf := range b.frameBuffers {
		buf.Release()
	}
	b.frameBuffers = b.frameBuffers[:0]
}

func (b *wgpuBackend) Present() {
	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	b.frameView.Release()
	b.frameView = nil
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuBackend) EnsureTexture(slot int, desc TextureDesc) error {
	if existing, ok := b.textures[slot]; ok {
		if existing.desc == desc {
			return nil
		}
		existing.view.Release()
		existing.texture.Release()
		delete(b.textures, slot)
	}

	texture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage | wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return err
	}

	b.textures[slot] = &physicalTexture{texture: texture, view: view, desc: desc}
	return nil
}

func (b *wgpuBackend) BeginRenderPass(desc RenderPassDesc) error {
	if b.frameEncoder == nil {
		return errors.New("no frame open")
	}
	if b.framePass != nil {
		return errors.New("render pass already open")
	}

	colorAttachments := make([]wgpu.RenderPassColorAttachment, 0, len(desc.Color))
	b.passFormat = b.surfaceFormat
	for i, attachment := range desc.Color {
		view, format, err := b.attachmentView(attachment.Slot)
		if err != nil {
			return fmt.Errorf("pass %q color attachment %d: %w", desc.Label, i, err)
		}
		if i == 0 {
			b.passFormat = format
		}
		loadOp := wgpu.LoadOpLoad
		if attachment.Clear {
			loadOp = wgpu.LoadOpClear
		}
		colorAttachments = append(colorAttachments, wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     loadOp,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: attachment.ClearColor,
		})
	}

	passDescriptor := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colorAttachments,
	}

	b.passHasDepth = desc.Depth != nil
	if desc.Depth != nil {
		view, _, err := b.attachmentView(desc.Depth.Slot)
		if err != nil {
			return fmt.Errorf("pass %q depth attachment: %w", desc.Label, err)
		}
		depthLoadOp := wgpu.LoadOpLoad
		if desc.Depth.Clear {
			depthLoadOp = wgpu.LoadOpClear
		}
		passDescriptor.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     depthLoadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: desc.Depth.DepthClear,
		}
	}

	b.framePass = b.frameEncoder.BeginRenderPass(passDescriptor)
	return nil
}

// attachmentView resolves an attachment slot to a texture view and its
// format. SlotSurface resolves to the acquired swapchain view.
func (b *wgpuBackend) attachmentView(slot int) (*wgpu.TextureView, wgpu.TextureFormat, error) {
	if slot == SlotSurface {
		if b.frameView == nil {
			return nil, 0, errors.New("no surface texture acquired")
		}
		return b.frameView, b.surfaceFormat, nil
	}
	physical, ok := b.textures[slot]
	if !ok {
		return nil, 0, fmt.Errorf("slot %d has no realized texture", slot)
	}
	return physical.view, physical.desc.Format, nil
}

func (b *wgpuBackend) EndRenderPass() {
	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil
}

func (b *wgpuBackend) DrawBatch(batch DrawBatch) error {
	if b.framePass == nil {
		return errors.New("no render pass open")
	}
	if len(batch.Instances) == 0 {
		return nil
	}

	mesh, err := b.meshFor(batch.Geometry)
	if err != nil {
		return err
	}
	if mesh.vertex == nil || (mesh.index != nil && mesh.indexCount == 0) ||
		(mesh.index == nil && mesh.vertexCount == 0) {
		return nil
	}
	image, err := b.imageFor(batch.Diffuse)
	if err != nil {
		return err
	}

	material := batch.Material.Payload
	uniforms := batchUniforms{
		ViewProjection: batch.ViewProjection,
		BaseColor:      material.BaseColor,
		Params:         [4]float32{material.Metallic, material.Roughness, material.AlphaCutoff, 0},
	}
	if material.Surface == registry.SurfaceMasked {
		uniforms.Params[3] = 1
	}

	uniformBuffer, err := b.transientBuffer("Batch Uniforms", common.StructToBytes(&uniforms), wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	instanceBuffer, err := b.transientBuffer("Batch Instances", common.SliceToBytes(batch.Instances), wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Batch Bind Group",
		Layout: b.drawLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniformBuffer, Offset: 0, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: instanceBuffer, Offset: 0, Size: wgpu.WholeSize},
			{Binding: 2, TextureView: image.view},
			{Binding: 3, Sampler: b.sampler},
		},
	})
	if err != nil {
		return err
	}
	b.frameGroups = append(b.frameGroups, bindGroup)

	stride := batch.Geometry.Payload.VertexStride
	if stride == 0 {
		stride = 12
	}
	pipeline, err := b.pipelineFor(pipelineKey{
		format:  b.passFormat,
		depth:   b.passHasDepth,
		blended: material.Surface == registry.SurfaceTransparent,
		stride:  stride,
	})
	if err != nil {
		return err
	}

	b.framePass.SetPipeline(pipeline)
	b.framePass.SetBindGroup(0, bindGroup, nil)
	b.framePass.SetVertexBuffer(0, mesh.vertex, 0, wgpu.WholeSize)
	if mesh.index != nil {
		b.framePass.SetIndexBuffer(mesh.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		b.framePass.DrawIndexed(mesh.indexCount, uint32(len(batch.Instances)), 0, 0, 0)
	} else {
		b.framePass.Draw(mesh.vertexCount, uint32(len(batch.Instances)), 0, 0)
	}

	return nil
}

func (b *wgpuBackend) Blit(srcSlot int) error {
	if b.framePass == nil {
		return errors.New("no render pass open")
	}
	physical, ok := b.textures[srcSlot]
	if !ok {
		return fmt.Errorf("slot %d has no realized texture", srcSlot)
	}

	pipeline, ok := b.blitPipelines[b.passFormat]
	if !ok {
		created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:  "Blit Pipeline",
			Layout: b.blitPipes,
			Vertex: wgpu.VertexState{
				Module:     b.blitModule,
				EntryPoint: "vs_main",
			},
			Fragment: &wgpu.FragmentState{
				Module:     b.blitModule,
				EntryPoint: "fs_main",
				Targets: []wgpu.ColorTargetState{
					{
						Format:    b.passFormat,
						WriteMask: wgpu.ColorWriteMaskAll,
					},
				},
			},
			Primitive: wgpu.PrimitiveState{
				Topology:  wgpu.PrimitiveTopologyTriangleList,
				FrontFace: wgpu.FrontFaceCCW,
				CullMode:  wgpu.CullModeNone,
			},
			Multisample: wgpu.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
		})
		if err != nil {
			return err
		}
		b.blitPipelines[b.passFormat] = created
		pipeline = created
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Blit Bind Group",
		Layout: b.blitLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: physical.view},
			{Binding: 1, Sampler: b.sampler},
		},
	})
	if err != nil {
		return err
	}
	b.frameGroups = append(b.frameGroups, bindGroup)

	b.framePass.SetPipeline(pipeline)
	b.framePass.SetBindGroup(0, bindGroup, nil)
	b.framePass.Draw(3, 1, 0, 0)

	return nil
}

func (b *wgpuBackend) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	b.width = width
	b.height = height
	if b.device != nil {
		b.configureSurface()
	}
}

func (b *wgpuBackend) Release() {
	for id, mesh := range b.meshes {
		mesh.release()
		delete(b.meshes, id)
	}
	for id, image := range b.images {
		image.release()
		delete(b.images, id)
	}
	for slot, physical := range b.textures {
		physical.view.Release()
		physical.texture.Release()
		delete(b.textures, slot)
	}
	for key, pipeline := range b.pipelines {
		pipeline.Release()
		delete(b.pipelines, key)
	}
	for format, pipeline := range b.blitPipelines {
		pipeline.Release()
		delete(b.blitPipelines, format)
	}
	if b.sampler != nil {
		b.sampler.Release()
		b.sampler = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// meshFor returns the GPU vertex and index buffers for a geometry record,
// uploading them on first use. A re-registered geometry carries a new
// generation; the stale buffers are released before the fresh upload so
// per-tick updates hold at most one GPU copy per id.
func (b *wgpuBackend) meshFor(record *registry.Record[registry.Geometry]) (*meshBuffers, error) {
	if mesh, ok := b.meshes[record.ID]; ok {
		if mesh.generation == record.Generation {
			return mesh, nil
		}
		mesh.release()
		delete(b.meshes, record.ID)
	}

	mesh := &meshBuffers{
		generation: record.Generation,
		indexCount: uint32(record.Payload.IndexCount),
	}
	stride := record.Payload.VertexStride
	if stride == 0 {
		stride = 12
	}
	mesh.vertexCount = uint32(len(record.Payload.VertexData)) / stride

	if len(record.Payload.VertexData) > 0 {
		buffer, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: record.Label + " Vertex Buffer",
			Size:  uint64(len(record.Payload.VertexData)),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		b.queue.WriteBuffer(buffer, 0, record.Payload.VertexData)
		mesh.vertex = buffer
	}
	if len(record.Payload.IndexData) > 0 {
		buffer, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: record.Label + " Index Buffer",
			Size:  uint64(len(record.Payload.IndexData)),
			Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			if mesh.vertex != nil {
				mesh.vertex.Release()
			}
			return nil, err
		}
		b.queue.WriteBuffer(buffer, 0, record.Payload.IndexData)
		mesh.index = buffer
	}

	b.meshes[record.ID] = mesh
	return mesh, nil
}

// imageFor returns the GPU texture view for a texture record, uploading
// the pixel data on first use. Stale generations are released when a
// newer registration supersedes them.
func (b *wgpuBackend) imageFor(record *registry.Record[registry.Texture]) (*cachedTexture, error) {
	if image, ok := b.images[record.ID]; ok {
		if image.generation == record.Generation {
			return image, nil
		}
		image.release()
		delete(b.images, record.ID)
	}

	format := record.Payload.Format
	if format == wgpu.TextureFormatUndefined {
		format = wgpu.TextureFormatRGBA8Unorm
	}

	texture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     record.Label + " Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              record.Payload.Width,
			Height:             record.Payload.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		record.Payload.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  record.Payload.Width * 4,
			RowsPerImage: record.Payload.Height,
		},
		&wgpu.Extent3D{
			Width:              record.Payload.Width,
			Height:             record.Payload.Height,
			DepthOrArrayLayers: 1,
		},
	)

	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, err
	}

	image := &cachedTexture{generation: record.Generation, texture: texture, view: view}
	b.images[record.ID] = image
	return image, nil
}

func (b *wgpuBackend) transientBuffer(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buffer, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, err
	}
	b.queue.WriteBuffer(buffer, 0, data)
	b.frameBuffers = append(b.frameBuffers, buffer)
	return buffer, nil
}

// pipelineFor returns the cached render pipeline for a variant key,
// creating it on first use.
func (b *wgpuBackend) pipelineFor(key pipelineKey) (*wgpu.RenderPipeline, error) {
	if pipeline, ok := b.pipelines[key]; ok {
		return pipeline, nil
	}

	colorTarget := wgpu.ColorTargetState{
		Format:    key.format,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	if key.blended {
		colorTarget.Blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	}

	descriptor := &wgpu.RenderPipelineDescriptor{
		Label:  "Batch Pipeline",
		Layout: b.drawPipes,
		Vertex: wgpu.VertexState{
			Module:     b.batchModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(key.stride),
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{
							Format:         wgpu.VertexFormatFloat32x3,
							Offset:         0,
							ShaderLocation: 0,
						},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     b.batchModule,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{colorTarget},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}

	if key.depth {
		descriptor.DepthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: !key.blended,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	pipeline, err := b.device.CreateRenderPipeline(descriptor)
	if err != nil {
		return nil, err
	}
	b.pipelines[key] = pipeline
	return pipeline, nil
}
