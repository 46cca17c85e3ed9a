// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// LogicalID is a controller-chosen opaque identifier naming a resource or
// component instance. IDs are namespaced by kind: geometry 7 and material 7
// are unrelated. The core never allocates IDs; uniqueness within a kind is
// the controller's obligation.
type LogicalID uint64

// ResourceKind identifies the namespace a LogicalID belongs to.
type ResourceKind uint8

const (
	// KindGeometry names vertex/index data resources.
	KindGeometry ResourceKind = iota + 1

	// KindMaterial names surface-property resources.
	KindMaterial

	// KindTexture names pixel-data resources.
	KindTexture

	// KindShader names shader-source resources.
	KindShader

	// KindCamera names camera component instances.
	KindCamera

	// KindModel names model component instances.
	KindModel

	// KindLight names light component instances.
	KindLight
)

// kindNames maps ResourceKind values to their string representation.
var kindNames = [...]string{
	KindGeometry: "geometry",
	KindMaterial: "material",
	KindTexture:  "texture",
	KindShader:   "shader",
	KindCamera:   "camera",
	KindModel:    "model",
	KindLight:    "light",
}

// String returns the lower-case name of the kind, or "unknown" for
// out-of-range values.
func (k ResourceKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Valid reports whether k is one of the defined kinds.
func (k ResourceKind) Valid() bool {
	return k >= KindGeometry && k <= KindLight
}

// LayerMask is a 32-bit visibility bitmask. A model is visible to a camera
// iff the two masks intersect.
type LayerMask uint32

// LayerMaskAll has every layer bit set.
const LayerMaskAll LayerMask = 0xFFFFFFFF

// Intersects reports whether the two masks share at least one set bit.
//
// Parameters:
//   - other: the mask to intersect with
//
// Returns:
//   - bool: true if (m & other) != 0
func (m LayerMask) Intersects(other LayerMask) bool {
	return m&other != 0
}

// Transform holds a position, Euler rotation, and per-axis scale for a
// component instance. The zero value has zero scale; use IdentityTransform
// as the starting point instead.
type Transform struct {
	// Position is the translation in world space.
	Position [3]float32

	// Rotation holds Euler angles in radians around each axis.
	Rotation [3]float32

	// Scale holds per-axis scale factors.
	Scale [3]float32
}

// IdentityTransform returns a transform at the origin with unit scale.
//
// Returns:
//   - Transform: position (0,0,0), rotation (0,0,0), scale (1,1,1)
func IdentityTransform() Transform {
	return Transform{Scale: [3]float32{1, 1, 1}}
}

// Matrix writes the transform's 4x4 column-major model matrix into out.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
func (t Transform) Matrix(out []float32) {
	BuildModelMatrix(out,
		t.Position[0], t.Position[1], t.Position[2],
		t.Rotation[0], t.Rotation[1], t.Rotation[2],
		t.Scale[0], t.Scale[1], t.Scale[2])
}
