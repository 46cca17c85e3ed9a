// Package window provides present targets for the render core. A Target is
// anything a compiled render graph can present into: a platform window
// (GLFW-backed) or an offscreen extent for headless operation. Targets are
// registered with the engine core out-of-band and named by the controller's
// window id in RenderGraphSet commands.
package window

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// Target is a present destination identified by a controller-visible window
// id.
type Target interface {
	// ID returns the controller-visible window identifier.
	//
	// Returns:
	//   - uint32: the window id
	ID() uint32

	// Width returns the current target width in pixels.
	Width() int

	// Height returns the current target height in pixels.
	Height() int

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for
	// creating a WebGPU surface, or nil for offscreen targets.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform surface descriptor, or nil
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// SetResizeCallback sets the function called when the target is
	// resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// IsRunning returns true if the target is still active.
	IsRunning() bool

	// Close releases the target's platform resources.
	//
	// Returns:
	//   - error: error if close fails
	Close() error
}

// offscreenTarget is a headless present target with a fixed extent. Used by
// tests and server-side rendering where no platform window exists.
type offscreenTarget struct {
	id            uint32
	width, height int
	onResize      func(width, height int)
	running       bool
}

// Ensure offscreenTarget implements Target.
var _ Target = &offscreenTarget{}

// NewOffscreenTarget creates a headless target with the given id and extent.
//
// Parameters:
//   - id: the controller-visible window id
//   - width: extent width in pixels
//   - height: extent height in pixels
//
// Returns:
//   - Target: the offscreen target
func NewOffscreenTarget(id uint32, width, height int) Target {
	return &offscreenTarget{
		id:      id,
		width:   width,
		height:  height,
		running: true,
	}
}

func (t *offscreenTarget) ID() uint32 { return t.id }

func (t *offscreenTarget) Width() int { return t.width }

func (t *offscreenTarget) Height() int { return t.height }

func (t *offscreenTarget) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }

func (t *offscreenTarget) SetResizeCallback(callback func(width, height int)) {
	t.onResize = callback
}

func (t *offscreenTarget) IsRunning() bool { return t.running }

func (t *offscreenTarget) Close() error {
	t.running = false
	return nil
}

// Resize changes an offscreen target's extent and fires its resize
// callback. Only offscreen targets resize programmatically; platform
// windows resize through their event loop.
//
// Parameters:
//   - t: the target returned by NewOffscreenTarget
//   - width: new width in pixels
//   - height: new height in pixels
//
// Returns:
//   - error: error if t is not an offscreen target
func Resize(t Target, width, height int) error {
	ot, ok := t.(*offscreenTarget)
	if !ok {
		return fmt.Errorf("window: target %d is not offscreen", t.ID())
	}
	ot.width = width
	ot.height = height
	if ot.onResize != nil {
		ot.onResize(width, height)
	}
	return nil
}

// Registry maps window ids to registered targets. Owned by the tick loop;
// not safe for concurrent use.
type Registry struct {
	targets map[uint32]Target
}

// NewRegistry creates an empty target registry.
//
// Returns:
//   - *Registry: the newly created registry
func NewRegistry() *Registry {
	return &Registry{targets: make(map[uint32]Target)}
}

// Add registers a target under its id, replacing any previous target with
// the same id.
//
// Parameters:
//   - t: the target to register
func (r *Registry) Add(t Target) {
	r.targets[t.ID()] = t
}

// Remove unregisters the target with the given id.
//
// Parameters:
//   - id: the window id to remove
//
// Returns:
//   - bool: true if a target was removed
func (r *Registry) Remove(id uint32) bool {
	if _, ok := r.targets[id]; !ok {
		return false
	}
	delete(r.targets, id)
	return true
}

// Get returns the target registered under id.
//
// Parameters:
//   - id: the window id to look up
//
// Returns:
//   - Target: the target, or nil
//   - bool: true if a target is registered
func (r *Registry) Get(id uint32) (Target, bool) {
	t, ok := r.targets[id]
	return t, ok
}

// IDs returns the registered window ids in ascending order.
//
// Returns:
//   - []uint32: sorted window ids
func (r *Registry) IDs() []uint32 {
	ids := make([]uint32, 0, len(r.targets))
	for id := range r.targets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	return len(r.targets)
}

// PumpEvents polls platform events for all registered targets. No-op when
// only offscreen targets are registered. Must be called from the main OS
// thread when platform windows exist.
func (r *Registry) PumpEvents() {
	for _, t := range r.targets {
		if _, ok := t.(*platformWindow); ok {
			pollPlatformEvents()
			runtime.Gosched()
			return
		}
	}
}
