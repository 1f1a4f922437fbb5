package light

import (
	_ "embed"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
)

// CullWorkgroupSize is the compute workgroup size of the light culling shader. The CPU
// culler uses the same value as its per-task batch size.
const CullWorkgroupSize = 64

// DefaultMaxLightsPerCamera is the default capacity of each camera's visible-light list.
const DefaultMaxLightsPerCamera = 64

// CullShaderSource is the WGSL compute shader that culls lights against camera frustums.
//
//go:embed assets/light_cull.wgsl
var CullShaderSource string

// VisibleLists holds the per-camera visible-light lists produced by culling.
// Indices is laid out as camera_count rows of MaxPerCamera entries. Counts hold the raw
// number of accepted lights per camera, which may exceed MaxPerCamera; readers must clamp.
type VisibleLists struct {
	MaxPerCamera uint32
	Indices      []uint32
	Counts       []uint32
}

// Visible returns the clamped visible-light indices of one camera.
//
// Parameters:
//   - cam: the camera index
//
// Returns:
//   - []uint32: the light indices visible to the camera, at most MaxPerCamera entries
func (v VisibleLists) Visible(cam int) []uint32 {
	if cam < 0 || cam >= len(v.Counts) {
		return nil
	}
	n := ClampCount(v.Counts[cam], v.MaxPerCamera)
	row := uint32(cam) * v.MaxPerCamera
	return v.Indices[row : row+n]
}

// ClampCount clamps a raw visible-light counter to the list capacity.
//
// Parameters:
//   - raw: the raw atomic counter value
//   - maxPerCamera: the list capacity
//
// Returns:
//   - uint32: min(raw, maxPerCamera)
func ClampCount(raw, maxPerCamera uint32) uint32 {
	return min(raw, maxPerCamera)
}

// DispatchSize returns the number of workgroups needed to cull lightCount lights.
//
// Parameters:
//   - lightCount: the number of lights
//
// Returns:
//   - uint32: ceil(lightCount / CullWorkgroupSize)
func DispatchSize(lightCount uint32) uint32 {
	return common.DivCeil(lightCount, CullWorkgroupSize)
}

// LightVisible reports whether a light is visible to a frustum. Infinite-extent kinds are
// always visible. Finite kinds are tested as a sphere of the light's influence radius;
// a radius <= 0 is never visible.
//
// Parameters:
//   - l: the GPU light
//   - f: the camera frustum
//
// Returns:
//   - bool: true if the light should be appended to the camera's visible list
func LightVisible(l *GPULight, f common.Frustum) bool {
	if l.Kind().Infinite() {
		return true
	}
	return f.SphereVisible(l.Center(), l.Radius())
}

// CullLights is the CPU rendition of the light culling compute pass. Lights are split into
// batches of CullWorkgroupSize and culled concurrently on the pool; each accepted light
// reserves a slot with an atomic add on its camera's counter and is written only if the
// slot is below the capacity. The order of indices within a row is unspecified.
//
// If pool is nil the batches run on the calling goroutine.
//
// Parameters:
//   - pool: the worker pool to run batches on, or nil
//   - lights: the packed lights
//   - frustums: one frustum per camera
//   - maxPerCamera: capacity of each camera's list
//
// Returns:
//   - VisibleLists: the culled lists with raw counts
func CullLights(pool worker.DynamicWorkerPool, lights []GPULight, frustums []common.Frustum, maxPerCamera uint32) VisibleLists {
	out := VisibleLists{
		MaxPerCamera: maxPerCamera,
		Indices:      make([]uint32, len(frustums)*int(maxPerCamera)),
		Counts:       make([]uint32, len(frustums)),
	}
	if len(lights) == 0 || len(frustums) == 0 {
		return out
	}

	counts := make([]atomic.Uint32, len(frustums))
	cullBatch := func(start, end int) {
		for i := start; i < end; i++ {
			l := &lights[i]
			if !l.Kind().Infinite() && l.Radius() <= 0 {
				continue
			}
			for cam := range frustums {
				if !LightVisible(l, frustums[cam]) {
					continue
				}
				slot := counts[cam].Add(1) - 1
				if slot < maxPerCamera {
					out.Indices[uint32(cam)*maxPerCamera+slot] = uint32(i)
				}
			}
		}
	}

	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(lights); start += CullWorkgroupSize {
		end := min(start+CullWorkgroupSize, len(lights))
		if pool == nil {
			cullBatch(start, end)
			continue
		}
		wg.Add(1)
		s, e := start, end
		pool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				cullBatch(s, e)
				return nil, nil
			},
		})
		taskID++
	}
	wg.Wait()

	for cam := range counts {
		out.Counts[cam] = counts[cam].Load()
	}
	return out
}
