package render_graph

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/renderer"
)

// PlanTexture is one physical texture a compiled plan needs realized
// before its nodes run. Aliased resources collapse onto one PlanTexture.
type PlanTexture struct {
	// Slot is the physical slot index nodes bind by.
	Slot int

	// Label names the texture for debugging.
	Label string

	// Width and Height are the extent in pixels; zero means window-sized.
	Width, Height uint32

	// Format is the texture format.
	Format wgpu.TextureFormat

	// Usage is the union of the declared usage and every referencing
	// pass's slot requirements.
	Usage wgpu.TextureUsage
}

// PlanNode is one pass invocation in execution order, with its resource
// references resolved to physical slots.
type PlanNode struct {
	// NodeID is the declaring node's id, kept for diagnostics.
	NodeID uint32

	// Pass is the resolved pass type.
	Pass Pass

	// Inputs and Outputs are physical texture slots in the pass type's
	// slot order. An output bound to the window surface is
	// renderer.SlotSurface.
	Inputs  []int
	Outputs []int

	// Params is the node's opaque parameter blob.
	Params []byte
}

// CompiledPlan is the validated, topologically ordered, alias-assigned
// execution form of a graph. Plans are immutable once built; the executor
// replays them without revalidation.
type CompiledPlan struct {
	// GraphID is the source graph's identity.
	GraphID uint64

	// Nodes lists the pass invocations in execution order.
	Nodes []PlanNode

	// Textures lists the physical textures the plan needs, indexed by
	// slot.
	Textures []PlanTexture
}

// Compiler validates graph descriptions and caches compiled plans by
// graph id. A cached plan is replaced only by an explicit resubmission of
// its graph id; nothing evicts or recompiles implicitly.
type Compiler struct {
	passes   *PassRegistry
	plans    map[uint64]*CompiledPlan
	fallback *CompiledPlan
	logger   *slog.Logger
}

// CompilerOption configures a compiler during construction.
type CompilerOption func(*Compiler)

// WithCompilerLogger sets the structured logger compile results are
// logged to.
//
// Parameters:
//   - logger: the slog logger to use
//
// Returns:
//   - CompilerOption: a function that sets the logger
func WithCompilerLogger(logger *slog.Logger) CompilerOption {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCompiler creates a compiler resolving pass types against the given
// registry.
//
// Parameters:
//   - passes: the pass type registry
//   - options: optional configuration functions
//
// Returns:
//   - *Compiler: the compiler
func NewCompiler(passes *PassRegistry, options ...CompilerOption) *Compiler {
	c := &Compiler{
		passes: passes,
		plans:  make(map[uint64]*CompiledPlan),
		logger: common.NopLogger(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Compile validates a graph description and, on success, caches and
// returns its compiled plan. On failure the previous plan cached under
// the same graph id is invalidated: the resubmitted description is now
// the graph's definition, and it does not validate.
//
// Parameters:
//   - desc: the graph description
//
// Returns:
//   - *CompiledPlan: the compiled plan, or nil on failure
//   - error: the first validation failure, wrapping one of the package's
//     sentinel errors
func (c *Compiler) Compile(desc GraphDesc) (*CompiledPlan, error) {
	plan, err := c.build(desc)
	if err != nil {
		delete(c.plans, desc.GraphID)
		c.logger.Warn("graph rejected", "graph_id", desc.GraphID, "error", err)
		return nil, err
	}
	c.plans[desc.GraphID] = plan
	c.logger.Info("graph compiled", "graph_id", desc.GraphID, "nodes", len(plan.Nodes), "textures", len(plan.Textures))
	return plan, nil
}

// Plan returns the cached plan for a graph id.
//
// Parameters:
//   - graphID: the graph identity
//
// Returns:
//   - *CompiledPlan: the cached plan, or nil
//   - bool: whether a plan was cached
func (c *Compiler) Plan(graphID uint64) (*CompiledPlan, bool) {
	plan, ok := c.plans[graphID]
	return plan, ok
}

// Invalidate drops the cached plan for a graph id.
//
// Parameters:
//   - graphID: the graph identity
func (c *Compiler) Invalidate(graphID uint64) {
	delete(c.plans, graphID)
}

// FallbackPlan returns the compiled built-in three-stage graph, building
// it on first use. The built-in description always validates.
//
// Returns:
//   - *CompiledPlan: the fallback plan
//   - error: an error if the built-in graph failed to compile, which
//     indicates a missing built-in pass type
func (c *Compiler) FallbackPlan() (*CompiledPlan, error) {
	if c.fallback != nil {
		return c.fallback, nil
	}
	plan, err := c.build(FallbackGraph())
	if err != nil {
		return nil, fmt.Errorf("built-in graph: %w", err)
	}
	c.fallback = plan
	return plan, nil
}

// build runs the validation rules in order and assembles the plan:
// structure, cycles, resource declarations, write-before-read ordering,
// pass resolution, format compatibility, then alias-aware slot
// assignment.
func (c *Compiler) build(desc GraphDesc) (*CompiledPlan, error) {
	if len(desc.Nodes) == 0 {
		return nil, fmt.Errorf("%w: graph has no nodes", ErrInvalidGraph)
	}

	nodeIndex := make(map[uint32]int, len(desc.Nodes))
	for i, node := range desc.Nodes {
		if _, dup := nodeIndex[node.NodeID]; dup {
			return nil, fmt.Errorf("%w: duplicate node id %d", ErrInvalidGraph, node.NodeID)
		}
		nodeIndex[node.NodeID] = i
	}

	decls := make(map[ResID]*ResourceDecl, len(desc.Resources))
	for i := range desc.Resources {
		decl := &desc.Resources[i]
		if decl.ResID == ResSurface {
			return nil, fmt.Errorf("%w: resource id %d is reserved for the surface", ErrInvalidGraph, ResSurface)
		}
		if _, dup := decls[decl.ResID]; dup {
			return nil, fmt.Errorf("%w: duplicate resource id %d", ErrInvalidGraph, decl.ResID)
		}
		decls[decl.ResID] = decl
	}

	successors := make([][]int, len(desc.Nodes))
	indegree := make([]int, len(desc.Nodes))
	for _, edge := range desc.Edges {
		from, ok := nodeIndex[edge.From]
		if !ok {
			return nil, fmt.Errorf("%w: edge references unknown node %d", ErrInvalidGraph, edge.From)
		}
		to, ok := nodeIndex[edge.To]
		if !ok {
			return nil, fmt.Errorf("%w: edge references unknown node %d", ErrInvalidGraph, edge.To)
		}
		successors[from] = append(successors[from], to)
		indegree[to]++
	}

	order, err := topoOrder(desc.Nodes, successors, indegree)
	if err != nil {
		return nil, err
	}

	for _, node := range desc.Nodes {
		for _, res := range node.Inputs {
			if res == ResSurface {
				return nil, fmt.Errorf("%w: node %d reads the surface", ErrUndeclaredResource, node.NodeID)
			}
			if _, ok := decls[res]; !ok {
				return nil, fmt.Errorf("%w: node %d references resource %d", ErrUndeclaredResource, node.NodeID, res)
			}
		}
		for _, res := range node.Outputs {
			if res == ResSurface {
				continue
			}
			if _, ok := decls[res]; !ok {
				return nil, fmt.Errorf("%w: node %d references resource %d", ErrUndeclaredResource, node.NodeID, res)
			}
		}
	}

	if err := checkOrdering(desc.Nodes, successors); err != nil {
		return nil, err
	}

	passes := make([]Pass, len(desc.Nodes))
	for i, node := range desc.Nodes {
		pass, ok := c.passes.Get(node.PassID)
		if !ok {
			return nil, fmt.Errorf("%w: node %d references pass %q", ErrUnknownPass, node.NodeID, node.PassID)
		}
		passes[i] = pass
	}

	required := make(map[ResID]wgpu.TextureUsage)
	for i, node := range desc.Nodes {
		req := passes[i].Requirements()
		if err := checkSlots(node, node.Inputs, req.Inputs, decls, required, "input"); err != nil {
			return nil, err
		}
		if err := checkSlots(node, node.Outputs, req.Outputs, decls, required, "output"); err != nil {
			return nil, err
		}
	}

	slots, textures := assignSlots(desc.Nodes, order, decls, required)

	plan := &CompiledPlan{
		GraphID:  desc.GraphID,
		Textures: textures,
		Nodes:    make([]PlanNode, 0, len(order)),
	}
	for _, i := range order {
		node := desc.Nodes[i]
		planNode := PlanNode{
			NodeID:  node.NodeID,
			Pass:    passes[i],
			Inputs:  make([]int, len(node.Inputs)),
			Outputs: make([]int, len(node.Outputs)),
			Params:  node.Params,
		}
		for j, res := range node.Inputs {
			planNode.Inputs[j] = slots[res]
		}
		for j, res := range node.Outputs {
			if res == ResSurface {
				planNode.Outputs[j] = renderer.SlotSurface
				continue
			}
			planNode.Outputs[j] = slots[res]
		}
		plan.Nodes = append(plan.Nodes, planNode)
	}

	return plan, nil
}

// topoOrder runs Kahn's algorithm over the explicit edges. Zero-in-degree
// nodes are dequeued lowest node id first, so execution order is
// deterministic for a given description. Any unprocessed remainder means
// a cycle.
func topoOrder(nodes []NodeDesc, successors [][]int, indegree []int) ([]int, error) {
	remaining := make([]int, len(indegree))
	copy(remaining, indegree)

	order := make([]int, 0, len(nodes))
	done := make([]bool, len(nodes))
	for len(order) < len(nodes) {
		next := -1
		for i := range nodes {
			if done[i] || remaining[i] != 0 {
				continue
			}
			if next == -1 || nodes[i].NodeID < nodes[next].NodeID {
				next = i
			}
		}
		if next == -1 {
			for i := range nodes {
				if !done[i] {
					return nil, fmt.Errorf("%w: node %d is on a cycle", ErrGraphCycle, nodes[i].NodeID)
				}
			}
			return nil, ErrGraphCycle
		}
		done[next] = true
		order = append(order, next)
		for _, succ := range successors[next] {
			remaining[succ]--
		}
	}
	return order, nil
}

// checkOrdering verifies write-before-read: every node reading a resource
// must be reachable, through the explicit edges, from every node writing
// it. A read with no writer at all is also an ordering violation.
func checkOrdering(nodes []NodeDesc, successors [][]int) error {
	reach := make([][]bool, len(nodes))
	for i := range nodes {
		reach[i] = make([]bool, len(nodes))
		stack := append([]int(nil), successors[i]...)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reach[i][n] {
				continue
			}
			reach[i][n] = true
			stack = append(stack, successors[n]...)
		}
	}

	writers := make(map[ResID][]int)
	for i, node := range nodes {
		for _, res := range node.Outputs {
			if res != ResSurface {
				writers[res] = append(writers[res], i)
			}
		}
	}

	for i, node := range nodes {
		for _, res := range node.Inputs {
			producing := writers[res]
			if len(producing) == 0 {
				return fmt.Errorf("%w: node %d reads resource %d which no node writes", ErrOrderingViolation, node.NodeID, res)
			}
			for _, w := range producing {
				if w == i || !reach[w][i] {
					return fmt.Errorf("%w: node %d reads resource %d before node %d writes it", ErrOrderingViolation, node.NodeID, res, nodes[w].NodeID)
				}
			}
		}
	}
	return nil
}

// checkSlots validates one node's bound resources against a pass slot
// spec list and accumulates the required usage bits per resource.
func checkSlots(node NodeDesc, bound []ResID, specs []SlotSpec, decls map[ResID]*ResourceDecl, required map[ResID]wgpu.TextureUsage, direction string) error {
	if len(bound) != len(specs) {
		return fmt.Errorf("%w: node %d pass %q expects %d %s resources, got %d",
			ErrFormatMismatch, node.NodeID, node.PassID, len(specs), direction, len(bound))
	}
	for i, res := range bound {
		spec := specs[i]
		if res == ResSurface {
			if len(spec.Formats) > 0 {
				return fmt.Errorf("%w: node %d %s binds the surface but the pass constrains its format",
					ErrFormatMismatch, node.NodeID, describeSlot(direction, i))
			}
			continue
		}
		decl := decls[res]
		if len(spec.Formats) > 0 {
			matched := false
			for _, format := range spec.Formats {
				if decl.Format == format {
					matched = true
					break
				}
			}
			if !matched {
				return fmt.Errorf("%w: node %d %s resource %d format %v not accepted by pass %q",
					ErrFormatMismatch, node.NodeID, describeSlot(direction, i), res, decl.Format, node.PassID)
			}
		}
		if decl.Usage != 0 && decl.Usage&spec.Usage != spec.Usage {
			return fmt.Errorf("%w: node %d %s resource %d usage %v lacks required bits %v",
				ErrFormatMismatch, node.NodeID, describeSlot(direction, i), res, decl.Usage, spec.Usage)
		}
		required[res] |= spec.Usage
	}
	return nil
}

// assignSlots maps declared resources to physical texture slots. Frame
// resources sharing a nonzero alias group, format, and extent reuse one
// slot when their node-usage intervals do not overlap in the execution
// order. The greedy interval fit runs once per compile, never per frame.
// Declared resources no node references get no slot.
func assignSlots(nodes []NodeDesc, order []int, decls map[ResID]*ResourceDecl, required map[ResID]wgpu.TextureUsage) (map[ResID]int, []PlanTexture) {
	position := make([]int, len(nodes))
	for pos, i := range order {
		position[i] = pos
	}

	type interval struct {
		res        ResID
		start, end int
	}
	intervals := make(map[ResID]*interval)
	touch := func(res ResID, pos int) {
		if res == ResSurface {
			return
		}
		iv, ok := intervals[res]
		if !ok {
			intervals[res] = &interval{res: res, start: pos, end: pos}
			return
		}
		if pos < iv.start {
			iv.start = pos
		}
		if pos > iv.end {
			iv.end = pos
		}
	}
	for i, node := range nodes {
		for _, res := range node.Inputs {
			touch(res, position[i])
		}
		for _, res := range node.Outputs {
			touch(res, position[i])
		}
	}

	type groupKey struct {
		group         uint32
		format        wgpu.TextureFormat
		width, height uint32
	}
	groups := make(map[groupKey][]*interval)
	var solo []*interval
	for res, iv := range intervals {
		decl := decls[res]
		if decl.Lifetime == LifetimeFrame && decl.AliasGroup != 0 {
			key := groupKey{group: decl.AliasGroup, format: decl.Format, width: decl.Width, height: decl.Height}
			groups[key] = append(groups[key], iv)
			continue
		}
		solo = append(solo, iv)
	}

	slots := make(map[ResID]int)
	var textures []PlanTexture
	newSlot := func(decl *ResourceDecl) int {
		slot := len(textures)
		textures = append(textures, PlanTexture{
			Slot:   slot,
			Label:  decl.Label,
			Width:  decl.Width,
			Height: decl.Height,
			Format: decl.Format,
			Usage:  decl.Usage | required[decl.ResID],
		})
		return slot
	}

	sort.Slice(solo, func(a, b int) bool { return solo[a].res < solo[b].res })
	for _, iv := range solo {
		slots[iv.res] = newSlot(decls[iv.res])
	}

	groupKeys := make([]groupKey, 0, len(groups))
	for key := range groups {
		groupKeys = append(groupKeys, key)
	}
	sort.Slice(groupKeys, func(a, b int) bool {
		if groupKeys[a].group != groupKeys[b].group {
			return groupKeys[a].group < groupKeys[b].group
		}
		return groupKeys[a].format < groupKeys[b].format
	})
	for _, key := range groupKeys {
		members := groups[key]
		sort.Slice(members, func(a, b int) bool {
			if members[a].start != members[b].start {
				return members[a].start < members[b].start
			}
			return members[a].res < members[b].res
		})

		type sharedSlot struct {
			slot    int
			lastEnd int
		}
		var shared []*sharedSlot
		for _, iv := range members {
			placed := false
			for _, s := range shared {
				if s.lastEnd < iv.start {
					slots[iv.res] = s.slot
					s.lastEnd = iv.end
					textures[s.slot].Usage |= decls[iv.res].Usage | required[iv.res]
					placed = true
					break
				}
			}
			if !placed {
				slot := newSlot(decls[iv.res])
				slots[iv.res] = slot
				shared = append(shared, &sharedSlot{slot: slot, lastEnd: iv.end})
			}
		}
	}

	return slots, textures
}
