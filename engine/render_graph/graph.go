// Package render_graph validates, compiles, and executes host-declared
// render graphs. A graph arrives as a plain description of nodes, edges,
// and transient resources; the compiler rejects anything that is not a
// well-formed DAG, and successful graphs become cached compiled plans the
// executor replays every frame without revalidation.
package render_graph

import (
	"errors"

	"github.com/cogentcore/webgpu/wgpu"
)

// ResID names a transient resource declared by a graph. IDs are scoped to
// the declaring graph.
type ResID uint32

// ResSurface is the reserved resource id naming the window surface. It
// needs no declaration and may only appear in node outputs.
const ResSurface ResID = 0

// Lifetime controls how long a declared resource's storage survives.
type Lifetime uint8

const (
	// LifetimeFrame marks a resource valid only within a single frame.
	// Frame resources participate in alias-group storage reuse.
	LifetimeFrame Lifetime = iota

	// LifetimePersistent marks a resource that keeps its contents across
	// frames. Persistent resources are never aliased.
	LifetimePersistent
)

// ResourceDecl declares one transient texture a graph's nodes read or
// write.
type ResourceDecl struct {
	// ResID is the graph-scoped resource id.
	ResID ResID

	// Label is a human-readable name carried onto the realized texture.
	Label string

	// Width and Height are the texture extent in pixels. Zero means
	// window-sized.
	Width, Height uint32

	// Format is the texture format.
	Format wgpu.TextureFormat

	// Usage is the usage bit set. Zero lets the referencing passes'
	// requirements decide.
	Usage wgpu.TextureUsage

	// Lifetime controls storage reuse across frames.
	Lifetime Lifetime

	// AliasGroup opts a frame-lifetime resource into storage sharing.
	// Resources in the same nonzero group with non-overlapping usage
	// intervals share one texture. Zero means never aliased.
	AliasGroup uint32
}

// NodeDesc declares one pass invocation in a graph.
type NodeDesc struct {
	// NodeID identifies the node within the graph.
	NodeID uint32

	// PassID names the registered pass type this node dispatches to.
	PassID string

	// Inputs and Outputs list the resources the pass reads and writes, in
	// the slot order the pass type defines.
	Inputs  []ResID
	Outputs []ResID

	// Params is an opaque parameter blob handed to the pass unchanged.
	Params []byte
}

// EdgeDesc declares an explicit execution-order dependency between two
// nodes.
type EdgeDesc struct {
	// From must execute before To.
	From, To uint32
}

// GraphDesc is the full host-supplied description of a render graph.
type GraphDesc struct {
	// GraphID is the controller-chosen identity the compiled plan is
	// cached under.
	GraphID uint64

	// Nodes lists the graph's pass invocations.
	Nodes []NodeDesc

	// Edges lists explicit ordering dependencies between nodes.
	Edges []EdgeDesc

	// Resources declares every transient resource the nodes reference.
	Resources []ResourceDecl

	// FallbackAllowed permits substituting the built-in graph when this
	// description fails validation.
	FallbackAllowed bool
}

// Validation failure classes. Compile wraps these with the offending
// node or resource, so callers can match with errors.Is.
var (
	// ErrInvalidGraph covers structural defects: duplicate node or
	// resource ids, edges naming unknown nodes, empty graphs.
	ErrInvalidGraph = errors.New("invalid graph structure")

	// ErrGraphCycle is returned when the node/edge structure contains a
	// cycle.
	ErrGraphCycle = errors.New("graph contains a cycle")

	// ErrUndeclaredResource is returned when a node references a resource
	// id missing from the declaration list.
	ErrUndeclaredResource = errors.New("undeclared resource")

	// ErrOrderingViolation is returned when a node reads a resource whose
	// producer does not precede it, directly or transitively.
	ErrOrderingViolation = errors.New("write-before-read ordering violated")

	// ErrUnknownPass is returned when a node names an unregistered pass
	// type.
	ErrUnknownPass = errors.New("unknown pass")

	// ErrFormatMismatch is returned when a declared resource's format or
	// usage is incompatible with what the referencing pass requires.
	ErrFormatMismatch = errors.New("resource incompatible with pass requirements")
)
