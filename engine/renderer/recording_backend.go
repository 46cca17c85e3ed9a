package renderer

import (
	"fmt"
	"log/slog"

	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/window"
)

// RecordedDraw captures one DrawBatch encoded into a recorded pass.
type RecordedDraw struct {
	// MaterialID and GeometryID are the ids of the resolved records
	// (0 when the fallback record was substituted).
	MaterialID common.LogicalID
	GeometryID common.LogicalID

	// MaterialGeneration and GeometryGeneration stamp the resolved records.
	MaterialGeneration uint32
	GeometryGeneration uint32

	// Instances is the number of instances in the batch.
	Instances int
}

// RecordedPass captures one render pass and everything drawn in it.
type RecordedPass struct {
	// Label is the pass label from the descriptor.
	Label string

	// ToSurface is true when a color attachment targeted the window
	// surface.
	ToSurface bool

	// Slots holds the physical color attachment slots in binding order
	// (SlotSurface for the surface).
	Slots []int

	// Draws are the batches encoded into the pass, in order.
	Draws []RecordedDraw

	// Blits counts fullscreen blits encoded into the pass.
	Blits int
}

// RecordedFrame captures one BeginFrame/EndFrame span.
type RecordedFrame struct {
	// TargetID is the window id the frame rendered into.
	TargetID uint32

	// Passes are the render passes in execution order.
	Passes []RecordedPass

	// Presented is true if Present was called for the frame.
	Presented bool
}

// RecordingBackend is a headless Backend that records every pass and draw
// instead of encoding GPU work. It is the default backend and the test seam:
// assertions read the recorded frames to verify pass ordering, batch
// contents, and fallback substitution without a GPU.
type RecordingBackend struct {
	frames  []RecordedFrame
	current *RecordedFrame
	pass    *RecordedPass

	// textures tracks EnsureTexture calls per slot.
	textures map[int]TextureDesc

	logger *slog.Logger
}

// Ensure RecordingBackend implements Backend.
var _ Backend = &RecordingBackend{}

// NewRecordingBackend creates an empty recording backend.
//
// Parameters:
//   - options: functional options for backend configuration
//
// Returns:
//   - *RecordingBackend: the newly created backend
func NewRecordingBackend(options ...RecordingBackendOption) *RecordingBackend {
	b := &RecordingBackend{
		textures: make(map[int]TextureDesc),
		logger:   common.NopLogger(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *RecordingBackend) Name() string { return "recording" }

func (b *RecordingBackend) BeginFrame(target window.Target) error {
	if b.current != nil {
		return fmt.Errorf("recording: BeginFrame while a frame is open")
	}
	b.current = &RecordedFrame{TargetID: target.ID()}
	return nil
}

func (b *RecordingBackend) EndFrame() {
	if b.current == nil {
		return
	}
	b.frames = append(b.frames, *b.current)
	b.current = nil
}

func (b *RecordingBackend) Present() {
	if len(b.frames) > 0 {
		b.frames[len(b.frames)-1].Presented = true
	}
}

func (b *RecordingBackend) EnsureTexture(slot int, desc TextureDesc) error {
	b.textures[slot] = desc
	return nil
}

func (b *RecordingBackend) BeginRenderPass(desc RenderPassDesc) error {
	if b.current == nil {
		return fmt.Errorf("recording: BeginRenderPass outside a frame")
	}
	if b.pass != nil {
		return fmt.Errorf("recording: BeginRenderPass while a pass is open")
	}
	rec := RecordedPass{Label: desc.Label}
	for _, att := range desc.Color {
		rec.Slots = append(rec.Slots, att.Slot)
		if att.Slot == SlotSurface {
			rec.ToSurface = true
		} else if _, ok := b.textures[att.Slot]; !ok {
			return fmt.Errorf("recording: pass %q attachment slot %d has no texture", desc.Label, att.Slot)
		}
	}
	b.pass = &rec
	return nil
}

func (b *RecordingBackend) EndRenderPass() {
	if b.pass == nil || b.current == nil {
		return
	}
	b.current.Passes = append(b.current.Passes, *b.pass)
	b.pass = nil
}

func (b *RecordingBackend) DrawBatch(batch DrawBatch) error {
	if b.pass == nil {
		return fmt.Errorf("recording: DrawBatch outside a render pass")
	}
	b.pass.Draws = append(b.pass.Draws, RecordedDraw{
		MaterialID:         batch.Material.ID,
		GeometryID:         batch.Geometry.ID,
		MaterialGeneration: batch.Material.Generation,
		GeometryGeneration: batch.Geometry.Generation,
		Instances:          len(batch.Instances),
	})
	return nil
}

func (b *RecordingBackend) Blit(srcSlot int) error {
	if b.pass == nil {
		return fmt.Errorf("recording: Blit outside a render pass")
	}
	if _, ok := b.textures[srcSlot]; !ok {
		return fmt.Errorf("recording: Blit source slot %d has no texture", srcSlot)
	}
	b.pass.Blits++
	return nil
}

func (b *RecordingBackend) Resize(width, height int) {}

func (b *RecordingBackend) Release() {
	b.frames = nil
	b.current = nil
	b.pass = nil
	clear(b.textures)
}

// Frames returns the recorded frames in order.
//
// Returns:
//   - []RecordedFrame: every frame recorded since creation or the last Reset
func (b *RecordingBackend) Frames() []RecordedFrame {
	return b.frames
}

// LastFrame returns the most recently completed frame.
//
// Returns:
//   - *RecordedFrame: the last frame, or nil if none completed
func (b *RecordingBackend) LastFrame() *RecordedFrame {
	if len(b.frames) == 0 {
		return nil
	}
	return &b.frames[len(b.frames)-1]
}

// Textures returns the descriptors passed to EnsureTexture keyed by slot.
//
// Returns:
//   - map[int]TextureDesc: slot to last-seen descriptor
func (b *RecordingBackend) Textures() map[int]TextureDesc {
	return b.textures
}

// Reset discards all recorded frames, keeping realized texture state.
func (b *RecordingBackend) Reset() {
	b.frames = nil
}

// RecordingBackendOption is a functional option applied to a recording
// backend during construction via NewRecordingBackend.
type RecordingBackendOption func(*RecordingBackend)

// WithRecordingLogger is an option builder that sets the backend's logger.
//
// Parameters:
//   - logger: the slog logger to use (nil restores the silent default)
//
// Returns:
//   - RecordingBackendOption: a function that applies the logger option
func WithRecordingLogger(logger *slog.Logger) RecordingBackendOption {
	return func(b *RecordingBackend) {
		if logger == nil {
			logger = common.NopLogger()
		}
		b.logger = logger
	}
}
