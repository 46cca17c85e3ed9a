package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// platformWindow is a GLFW-backed present target.
type platformWindow struct {
	id            uint32
	title         string
	width, height int

	window  *glfw.Window
	running bool

	onResize func(width, height int)
	onKey    func(keyCode uint32, pressed bool)
	onScroll func(delta float32)
}

// Ensure platformWindow implements Target.
var _ Target = &platformWindow{}

// NewPlatformWindow creates a GLFW window target with the given id.
// Must be called from the main OS thread.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
//
// Parameters:
//   - id: the controller-visible window id
//   - options: functional options for window configuration
//
// Returns:
//   - Target: the platform window target
//   - error: error if GLFW initialization or window creation fails
func NewPlatformWindow(id uint32, options ...PlatformWindowOption) (Target, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %v", err)
	}

	w := &platformWindow{
		id:     id,
		title:  "lumen",
		width:  1280,
		height: 720,
	}
	for _, opt := range options {
		opt(w)
	}

	// WebGPU provides its own graphics API, so disable OpenGL context creation.
	// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_hints_ctx
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create GLFW window: %v", err)
	}
	w.window = win
	w.running = true

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.running = false
			win.SetShouldClose(true)
			return
		}
		if w.onKey == nil {
			return
		}
		switch action {
		case glfw.Press, glfw.Repeat:
			w.onKey(uint32(key), true)
		case glfw.Release:
			w.onKey(uint32(key), false)
		}
	})

	win.SetScrollCallback(func(_ *glfw.Window, xoff, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})

	// Use framebuffer size for pixel-accurate resize events. On high-DPI
	// displays the framebuffer size differs from the window size, and the
	// renderer needs pixel dimensions for surface configuration.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width = width
		w.height = height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})

	fbWidth, fbHeight := win.GetFramebufferSize()
	w.width = fbWidth
	w.height = fbHeight

	return w, nil
}

func (w *platformWindow) ID() uint32 { return w.id }

func (w *platformWindow) Width() int { return w.width }

func (w *platformWindow) Height() int { return w.height }

// SurfaceDescriptor creates a platform-appropriate wgpu.SurfaceDescriptor
// via the wgpuglfw bridge (Windows, X11, Wayland, macOS).
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func (w *platformWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.window == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.window)
}

func (w *platformWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *platformWindow) IsRunning() bool {
	return w.window != nil && w.running && !w.window.ShouldClose()
}

func (w *platformWindow) Close() error {
	if w.window == nil {
		return fmt.Errorf("window is not initialized")
	}
	w.running = false
	w.window.SetShouldClose(true)
	w.window.Destroy()
	w.window = nil
	glfw.Terminate()
	return nil
}

// pollPlatformEvents polls GLFW for pending events without blocking.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func pollPlatformEvents() {
	glfw.PollEvents()
}
