package window

// PlatformWindowOption is a functional option for configuring a platform
// window target. Use the With* functions to create options.
type PlatformWindowOption func(w *platformWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - PlatformWindowOption: option function to apply
func WithTitle(title string) PlatformWindowOption {
	return func(w *platformWindow) {
		w.title = title
	}
}

// WithSize sets the initial window client area size.
//
// Parameters:
//   - width: initial width in pixels
//   - height: initial height in pixels
//
// Returns:
//   - PlatformWindowOption: option function to apply
func WithSize(width, height int) PlatformWindowOption {
	return func(w *platformWindow) {
		w.width = width
		w.height = height
	}
}

// WithKeyCallback sets the callback for key press and release events.
//
// Parameters:
//   - callback: function receiving the key code and pressed state
//
// Returns:
//   - PlatformWindowOption: option function to apply
func WithKeyCallback(callback func(keyCode uint32, pressed bool)) PlatformWindowOption {
	return func(w *platformWindow) {
		w.onKey = callback
	}
}

// WithScrollCallback sets the callback for mouse scroll wheel events.
//
// Parameters:
//   - callback: function receiving the scroll delta (positive = up)
//
// Returns:
//   - PlatformWindowOption: option function to apply
func WithScrollCallback(callback func(delta float32)) PlatformWindowOption {
	return func(w *platformWindow) {
		w.onScroll = callback
	}
}
