package component

import (
	"log/slog"

	"github.com/lumen-engine/lumen/common"
)

// TableOption is a functional option applied to a table during construction via NewTable.
type TableOption[T any] func(*table[T])

// WithLogger is an option builder that sets the table's logger. The default
// logger discards all output.
//
// Parameters:
//   - logger: the slog logger to use (nil restores the silent default)
//
// Returns:
//   - TableOption[T]: a function that applies the logger option to a table
func WithLogger[T any](logger *slog.Logger) TableOption[T] {
	return func(t *table[T]) {
		if logger == nil {
			logger = common.NopLogger()
		}
		t.logger = logger
	}
}

// CameraOption is a functional option applied to a Camera via NewCamera.
type CameraOption func(*Camera)

// NewCamera creates a camera instance with sensible perspective defaults:
// identity transform, all layers visible, 60 degree vertical fov, 16:9
// aspect, near 0.1, far 1000.
//
// Parameters:
//   - options: functional options for camera configuration
//
// Returns:
//   - Camera: the configured camera value
func NewCamera(options ...CameraOption) Camera {
	c := Camera{
		Transform: common.IdentityTransform(),
		LayerMask: common.LayerMaskAll,
		Fov:       1.0472, // 60 degrees
		Aspect:    16.0 / 9.0,
		Near:      0.1,
		Far:       1000,
	}
	for _, opt := range options {
		opt(&c)
	}
	return c
}

// WithCameraTransform is an option builder that sets the camera's transform.
//
// Parameters:
//   - t: the world-space transform
//
// Returns:
//   - CameraOption: a function that applies the transform option to a camera
func WithCameraTransform(t common.Transform) CameraOption {
	return func(c *Camera) {
		c.Transform = t
	}
}

// WithCameraLayerMask is an option builder that sets the camera's layer mask.
//
// Parameters:
//   - mask: the visibility layer mask
//
// Returns:
//   - CameraOption: a function that applies the mask option to a camera
func WithCameraLayerMask(mask common.LayerMask) CameraOption {
	return func(c *Camera) {
		c.LayerMask = mask
	}
}

// WithCameraLens is an option builder that sets the camera's perspective
// parameters.
//
// Parameters:
//   - fov: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance
//   - far: far clipping plane distance
//
// Returns:
//   - CameraOption: a function that applies the lens option to a camera
func WithCameraLens(fov, aspect, near, far float32) CameraOption {
	return func(c *Camera) {
		c.Fov = fov
		c.Aspect = aspect
		c.Near = near
		c.Far = far
	}
}

// ModelOption is a functional option applied to a Model via NewModel.
type ModelOption func(*Model)

// NewModel creates a model instance referencing the given geometry and
// material ids, with identity transform and all layers set.
//
// Parameters:
//   - geometryID: the lazy geometry resource id
//   - materialID: the lazy material resource id
//   - options: functional options for model configuration
//
// Returns:
//   - Model: the configured model value
func NewModel(geometryID, materialID common.LogicalID, options ...ModelOption) Model {
	m := Model{
		Transform:  common.IdentityTransform(),
		LayerMask:  common.LayerMaskAll,
		GeometryID: geometryID,
		MaterialID: materialID,
	}
	for _, opt := range options {
		opt(&m)
	}
	return m
}

// WithModelTransform is an option builder that sets the model's transform.
//
// Parameters:
//   - t: the world-space transform
//
// Returns:
//   - ModelOption: a function that applies the transform option to a model
func WithModelTransform(t common.Transform) ModelOption {
	return func(m *Model) {
		m.Transform = t
	}
}

// WithModelLayerMask is an option builder that sets the model's layer mask.
//
// Parameters:
//   - mask: the visibility layer mask
//
// Returns:
//   - ModelOption: a function that applies the mask option to a model
func WithModelLayerMask(mask common.LayerMask) ModelOption {
	return func(m *Model) {
		m.LayerMask = mask
	}
}

// LightOption is a functional option applied to a Light via NewLight.
type LightOption func(*Light)

// NewLight creates a white unit-intensity light of the given kind with
// identity transform and all layers set.
//
// Parameters:
//   - kind: the light source type
//   - options: functional options for light configuration
//
// Returns:
//   - Light: the configured light value
func NewLight(kind LightKind, options ...LightOption) Light {
	l := Light{
		Transform: common.IdentityTransform(),
		LayerMask: common.LayerMaskAll,
		Kind:      kind,
		Color:     [3]float32{1, 1, 1},
		Intensity: 1,
		Range:     10,
	}
	for _, opt := range options {
		opt(&l)
	}
	return l
}

// WithLightTransform is an option builder that sets the light's transform.
//
// Parameters:
//   - t: the world-space transform
//
// Returns:
//   - LightOption: a function that applies the transform option to a light
func WithLightTransform(t common.Transform) LightOption {
	return func(l *Light) {
		l.Transform = t
	}
}

// WithLightLayerMask is an option builder that sets the light's layer mask.
//
// Parameters:
//   - mask: the visibility layer mask
//
// Returns:
//   - LightOption: a function that applies the mask option to a light
func WithLightLayerMask(mask common.LayerMask) LightOption {
	return func(l *Light) {
		l.LayerMask = mask
	}
}

// WithLightColor is an option builder that sets the light's color and
// intensity.
//
// Parameters:
//   - color: RGB color
//   - intensity: contribution scale
//
// Returns:
//   - LightOption: a function that applies the color option to a light
func WithLightColor(color [3]float32, intensity float32) LightOption {
	return func(l *Light) {
		l.Color = color
		l.Intensity = intensity
	}
}

// WithLightRange is an option builder that sets a point light's falloff
// range.
//
// Parameters:
//   - r: falloff distance
//
// Returns:
//   - LightOption: a function that applies the range option to a light
func WithLightRange(r float32) LightOption {
	return func(l *Light) {
		l.Range = r
	}
}
