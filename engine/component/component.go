// Package component holds the scene-participant instance tables: cameras,
// models, and lights. Instances reference resources by LogicalID only; the
// references are lazy and re-resolved against the resource registry every
// frame, never cached across frames.
package component

import (
	"log/slog"
	"sort"

	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/registry"
)

// Camera is a camera component instance. View and projection matrices are
// derived from the transform and lens parameters each frame by the render
// backend; the instance carries only declarative state.
type Camera struct {
	// Transform positions and orients the camera in world space.
	Transform common.Transform

	// LayerMask selects which model layers this camera sees.
	LayerMask common.LayerMask

	// Fov is the vertical field of view in radians.
	Fov float32

	// Aspect is the viewport aspect ratio (width/height).
	Aspect float32

	// Near and Far are the clipping plane distances.
	Near, Far float32
}

// Model is a model component instance: a transform plus lazy references
// into the geometry and material tables. The referenced records may not
// exist at any point in the instance's lifetime; resolution degrades to the
// kind's fallback record.
type Model struct {
	// Transform positions the model in world space.
	Transform common.Transform

	// LayerMask selects which camera layers can see this model.
	LayerMask common.LayerMask

	// GeometryID is the lazy id of the model's geometry resource.
	GeometryID common.LogicalID

	// MaterialID is the lazy id of the model's material resource.
	MaterialID common.LogicalID
}

// LightKind enumerates supported light source types.
type LightKind uint8

const (
	// LightDirectional is an infinitely distant light with direction only.
	LightDirectional LightKind = iota

	// LightPoint is a positional light with falloff range.
	LightPoint
)

// Light is a light component instance.
type Light struct {
	// Transform positions (point) or orients (directional) the light.
	Transform common.Transform

	// LayerMask selects which layers this light affects.
	LayerMask common.LayerMask

	// Kind is the light source type.
	Kind LightKind

	// Color is the light's RGB color.
	Color [3]float32

	// Intensity scales the light's contribution.
	Intensity float32

	// Range is the falloff distance for point lights (ignored for
	// directional lights).
	Range float32
}

// Instance wraps a component value with its identity and label.
type Instance[T any] struct {
	// ID is the controller-chosen identifier.
	ID common.LogicalID

	// Label is a human-readable name for introspection.
	Label string

	// Value is the component data.
	Value T
}

// Table maps logical identifiers to component instances of one kind.
// Unlike resource tables there is no fallback record: a missing component
// simply does not participate in the frame.
type Table[T any] interface {
	// Put inserts or replaces the instance for id.
	//
	// Parameters:
	//   - id: the logical identifier to store under
	//   - label: a human-readable name for introspection
	//   - value: the component data
	Put(id common.LogicalID, label string, value T)

	// Get returns the instance for id.
	//
	// Parameters:
	//   - id: the logical identifier to look up
	//
	// Returns:
	//   - *Instance[T]: the instance, or nil if absent
	//   - bool: true if the instance exists
	Get(id common.LogicalID) (*Instance[T], bool)

	// Dispose removes the instance for id.
	//
	// Parameters:
	//   - id: the logical identifier to remove
	//
	// Returns:
	//   - bool: true if an instance was removed
	Dispose(id common.LogicalID) bool

	// Each calls fn for every instance in ascending id order, stopping early
	// if fn returns false.
	//
	// Parameters:
	//   - fn: visitor receiving each instance
	Each(fn func(inst *Instance[T]) bool)

	// List returns a snapshot of (id, label) pairs in ascending id order.
	//
	// Returns:
	//   - []registry.Entry: the snapshot, never nil
	List() []registry.Entry

	// Len returns the number of live instances.
	Len() int
}

// table implements the Table interface.
type table[T any] struct {
	kind      common.ResourceKind
	instances map[common.LogicalID]*Instance[T]

	// ordered caches ascending instance ids for deterministic Each walks.
	// Rebuilt lazily after any mutation.
	ordered []common.LogicalID
	dirty   bool

	logger *slog.Logger
}

// Ensure table implements Table.
var _ Table[int] = &table[int]{}

// NewTable creates an empty component table for one kind.
//
// Parameters:
//   - kind: the component kind this table holds
//   - options: functional options for table configuration
//
// Returns:
//   - Table[T]: the newly created table
func NewTable[T any](kind common.ResourceKind, options ...TableOption[T]) Table[T] {
	t := &table[T]{
		kind:      kind,
		instances: make(map[common.LogicalID]*Instance[T]),
		logger:    common.NopLogger(),
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

func (t *table[T]) Put(id common.LogicalID, label string, value T) {
	if _, ok := t.instances[id]; !ok {
		t.dirty = true
	}
	t.instances[id] = &Instance[T]{ID: id, Label: label, Value: value}
	t.logger.Debug("component stored", "kind", t.kind.String(), "id", uint64(id))
}

func (t *table[T]) Get(id common.LogicalID) (*Instance[T], bool) {
	inst, ok := t.instances[id]
	return inst, ok
}

func (t *table[T]) Dispose(id common.LogicalID) bool {
	if _, ok := t.instances[id]; !ok {
		return false
	}
	delete(t.instances, id)
	t.dirty = true
	t.logger.Debug("component disposed", "kind", t.kind.String(), "id", uint64(id))
	return true
}

func (t *table[T]) Each(fn func(inst *Instance[T]) bool) {
	for _, id := range t.orderedIDs() {
		inst, ok := t.instances[id]
		if !ok {
			continue
		}
		if !fn(inst) {
			return
		}
	}
}

func (t *table[T]) List() []registry.Entry {
	entries := make([]registry.Entry, 0, len(t.instances))
	for _, id := range t.orderedIDs() {
		entries = append(entries, registry.Entry{ID: id, Label: t.instances[id].Label})
	}
	return entries
}

func (t *table[T]) Len() int {
	return len(t.instances)
}

// orderedIDs returns the cached ascending id list, rebuilding it after
// mutations.
func (t *table[T]) orderedIDs() []common.LogicalID {
	if t.dirty || len(t.ordered) != len(t.instances) {
		t.ordered = t.ordered[:0]
		for id := range t.instances {
			t.ordered = append(t.ordered, id)
		}
		sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i] < t.ordered[j] })
		t.dirty = false
	}
	return t.ordered
}

// Components bundles the three component tables the core owns.
type Components struct {
	Cameras Table[Camera]
	Models  Table[Model]
	Lights  Table[Light]
}

// NewComponents creates the three component tables.
//
// Parameters:
//   - logger: the slog logger shared by the tables (nil for silent)
//
// Returns:
//   - *Components: the newly created table bundle
func NewComponents(logger *slog.Logger) *Components {
	return &Components{
		Cameras: NewTable(common.KindCamera, WithLogger[Camera](logger)),
		Models:  NewTable(common.KindModel, WithLogger[Model](logger)),
		Lights:  NewTable(common.KindLight, WithLogger[Light](logger)),
	}
}
