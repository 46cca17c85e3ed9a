// Package visibility implements the per-camera visibility and draw-batching
// engine: layer-mask filtering, opaque/transparent classification, state-
// change-minimizing sort, and run-length batch emission. Output ordering is
// fully deterministic for a given scene state.
package visibility

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/lumen-engine/lumen/common"
	"github.com/lumen-engine/lumen/engine/component"
	"github.com/lumen-engine/lumen/engine/registry"
)

// DrawEntry is one visible model instance in a camera's draw list. The
// material and geometry ids are the model's lazy references; consumers
// resolve them (with fallback) again at draw time.
type DrawEntry struct {
	// InstanceID is the model component id.
	InstanceID common.LogicalID

	// MaterialID and GeometryID are the model's resource references.
	MaterialID common.LogicalID
	GeometryID common.LogicalID

	// Transform is the model's world transform captured at build time.
	Transform common.Transform

	// DepthSq is the squared distance from the camera to the instance's
	// world position, used for transparent back-to-front ordering.
	DepthSq float32
}

// BatchRun is a maximal contiguous run of opaque draw entries sharing the
// same (MaterialID, GeometryID) pair after sorting.
type BatchRun struct {
	// MaterialID and GeometryID are the shared state pair for the run.
	MaterialID common.LogicalID
	GeometryID common.LogicalID

	// Offset is the index of the run's first entry in the opaque list.
	Offset int

	// Count is the number of entries in the run.
	Count int
}

// CameraDrawList is the per-camera visibility result: opaque entries with
// their batch runs, and transparent entries in back-to-front order. The two
// lists are emitted separately so a consumer draws opaque then transparent.
type CameraDrawList struct {
	// CameraID is the camera component id this list belongs to.
	CameraID common.LogicalID

	// Camera is the camera value captured at build time.
	Camera component.Camera

	// Opaque holds opaque and masked entries sorted by
	// (MaterialID, GeometryID, InstanceID) ascending.
	Opaque []DrawEntry

	// OpaqueRuns are the batch runs over Opaque.
	OpaqueRuns []BatchRun

	// Transparent holds blending entries sorted by descending DepthSq,
	// ties broken by InstanceID ascending.
	Transparent []DrawEntry
}

// Engine builds per-camera draw lists each frame. BuildFrame is synchronous;
// internally the per-camera work is fanned out over a bounded worker pool and
// joined before the result is returned, so the caller observes no
// concurrency.
type Engine interface {
	// BuildFrame filters, classifies, sorts, and batches all model
	// instances for every camera. Cameras are emitted in ascending id
	// order.
	//
	// Parameters:
	//   - comps: the component tables to read cameras and models from
	//   - res: the resource tables used to classify materials (with
	//     fallback)
	//
	// Returns:
	//   - []CameraDrawList: one list per camera, ascending camera id
	BuildFrame(comps *component.Components, res *registry.Resources) []CameraDrawList

	// Release stops the internal worker pool. The engine must not be used
	// afterwards.
	Release()
}

// engine implements the Engine interface.
type engine struct {
	// pool manages a bounded set of reusable goroutines for the per-camera
	// build fan-out. Workers persist across frames, avoiding per-frame
	// goroutine spawn/teardown overhead.
	pool    worker.DynamicWorkerPool
	workers int

	logger *slog.Logger
}

// Ensure engine implements Engine.
var _ Engine = &engine{}

// NewEngine creates a visibility engine. The worker count defaults to
// NumCPU-1 (minimum 1).
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineOption) Engine {
	e := &engine{
		workers: max(runtime.NumCPU()-1, 1),
		logger:  common.NopLogger(),
	}

	for _, opt := range options {
		opt(e)
	}

	// Queue size of 64 accommodates typical camera counts with headroom.
	e.pool = worker.NewDynamicWorkerPool(e.workers, 64, 1*time.Second)

	return e
}

func (e *engine) BuildFrame(comps *component.Components, res *registry.Resources) []CameraDrawList {
	// Snapshot cameras in ascending id order; the result slice is indexed by
	// camera position so parallel tasks never contend.
	cameras := make([]*component.Instance[component.Camera], 0, comps.Cameras.Len())
	comps.Cameras.Each(func(inst *component.Instance[component.Camera]) bool {
		cameras = append(cameras, inst)
		return true
	})
	if len(cameras) == 0 {
		return nil
	}

	// Snapshot models once; every camera task reads the same slice.
	models := make([]*component.Instance[component.Model], 0, comps.Models.Len())
	comps.Models.Each(func(inst *component.Instance[component.Model]) bool {
		models = append(models, inst)
		return true
	})

	lists := make([]CameraDrawList, len(cameras))

	// Fan one task out per camera; a WaitGroup provides the frame barrier
	// since pool.Wait-style idle detection is unsuitable per frame.
	var wg sync.WaitGroup
	for i, cam := range cameras {
		wg.Add(1)
		idx := i
		camInst := cam
		e.pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				lists[idx] = buildCameraList(camInst, models, res.Materials)
				return nil, nil
			},
		})
	}
	wg.Wait()

	return lists
}

func (e *engine) Release() {
	// The pool's workers idle-exit on their own; nothing to tear down
	// explicitly beyond dropping the reference.
	e.pool = nil
}

// buildCameraList produces one camera's draw list: mask filter, classify via
// the resolved material's surface type, sort, and batch.
func buildCameraList(
	cam *component.Instance[component.Camera],
	models []*component.Instance[component.Model],
	materials registry.Table[registry.Material],
) CameraDrawList {
	list := CameraDrawList{
		CameraID: cam.ID,
		Camera:   cam.Value,
	}
	camPos := cam.Value.Transform.Position

	for _, inst := range models {
		m := inst.Value
		if !cam.Value.LayerMask.Intersects(m.LayerMask) {
			continue
		}

		entry := DrawEntry{
			InstanceID: inst.ID,
			MaterialID: m.MaterialID,
			GeometryID: m.GeometryID,
			Transform:  m.Transform,
			DepthSq:    common.DistanceSquared(camPos, m.Transform.Position),
		}

		// Classification uses the resolved material; a missing reference
		// degrades to the opaque fallback material.
		switch materials.Resolve(m.MaterialID).Payload.Surface {
		case registry.SurfaceTransparent:
			list.Transparent = append(list.Transparent, entry)
		default:
			list.Opaque = append(list.Opaque, entry)
		}
	}

	// Opaque ordering: (MaterialID, GeometryID) ascending, ties broken by
	// instance id so the order is stable across frames.
	sort.Slice(list.Opaque, func(i, j int) bool {
		a, b := list.Opaque[i], list.Opaque[j]
		if a.MaterialID != b.MaterialID {
			return a.MaterialID < b.MaterialID
		}
		if a.GeometryID != b.GeometryID {
			return a.GeometryID < b.GeometryID
		}
		return a.InstanceID < b.InstanceID
	})

	// Transparent ordering: farthest first, ties broken by instance id.
	sort.Slice(list.Transparent, func(i, j int) bool {
		a, b := list.Transparent[i], list.Transparent[j]
		if a.DepthSq != b.DepthSq {
			return a.DepthSq > b.DepthSq
		}
		return a.InstanceID < b.InstanceID
	})

	list.OpaqueRuns = batchRuns(list.Opaque)
	return list
}

// batchRuns walks a sorted opaque list and emits maximal contiguous runs
// sharing the same (MaterialID, GeometryID) pair.
func batchRuns(entries []DrawEntry) []BatchRun {
	if len(entries) == 0 {
		return nil
	}

	runs := make([]BatchRun, 0, 8)
	current := BatchRun{
		MaterialID: entries[0].MaterialID,
		GeometryID: entries[0].GeometryID,
		Offset:     0,
		Count:      1,
	}
	for i := 1; i < len(entries); i++ {
		e := entries[i]
		if e.MaterialID == current.MaterialID && e.GeometryID == current.GeometryID {
			current.Count++
			continue
		}
		runs = append(runs, current)
		current = BatchRun{
			MaterialID: e.MaterialID,
			GeometryID: e.GeometryID,
			Offset:     i,
			Count:      1,
		}
	}
	return append(runs, current)
}

// TotalVisible returns the total number of visible instances across all
// camera lists (opaque plus transparent).
//
// Parameters:
//   - lists: the per-camera draw lists
//
// Returns:
//   - int: visible instance count summed over cameras
func TotalVisible(lists []CameraDrawList) int {
	total := 0
	for i := range lists {
		total += len(lists[i].Opaque) + len(lists[i].Transparent)
	}
	return total
}
