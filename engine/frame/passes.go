package frame

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/lighting"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
	"github.com/cogentcore/webgpu/wgpu"
)

// clearHDR is the forward clear color; the outline mask clears to zero alpha.
var clearHDR = wgpu.Color{R: 0, G: 0, B: 0, A: 1}

// parallel runs each job on the pool and waits for all of them.
func parallel(pool worker.DynamicWorkerPool, jobs ...func()) {
	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				job()
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// prepare marshals every buffer of the frame. Independent marshalling runs on the pool;
// CPU culling runs afterwards because it submits to the same pool.
func (f *frame) prepare(in *Inputs, width, height uint32) *frameData {
	d := &frameData{width: width, height: height, cameraIndex: uint32(in.camera())}
	gpuCams, gpuFrustums := clampCameras(in.Cameras)
	lights := in.Lights[:min(len(in.Lights), light.MaxGPULights)]
	bones := in.Bones[:min(len(in.Bones), MaxBones)]

	parallel(f.pool,
		func() {
			d.lights = light.MarshalLights(lights)
			u := light.GPUCullUniforms{
				LightCount:         uint32(len(lights)),
				CameraCount:        uint32(len(gpuFrustums)),
				MaxLightsPerCamera: f.maxLightsPerCamera,
			}
			d.cullUniforms = u.Marshal()
		},
		func() {
			d.frustums = camera.MarshalFrustums(gpuFrustums)
			d.cameraBlock = gpuCams[d.cameraIndex].Marshal()
			params := lighting.GPUForwardParams{
				Epsilon:            f.epsilon,
				NearBlack:          f.nearBlack,
				MaxLightsPerCamera: f.maxLightsPerCamera,
				CameraIndex:        d.cameraIndex,
			}
			d.forward = params.Marshal()
		},
		func() {
			f.pageTable.Allocate(lights)
			d.pages = f.pageTable.Pages()
			d.pageLayers = f.pageTable.PagesByLayer()
			d.pageTable = f.pageTable.Marshal()
			d.pageDraws = shadow.MarshalPageDraws(d.pages)
		},
		func() {
			d.static = buildBatches(in.Models)
		},
		func() {
			d.skinned = buildBatches(in.SkinnedModels)
			d.bones = model.MarshalBones(bones)
		},
	)

	if f.cpuCulling {
		frustums := make([]common.Frustum, 0, len(gpuFrustums))
		for _, c := range in.Cameras[:len(gpuFrustums)] {
			frustums = append(frustums, c.Frustum())
		}
		lists := light.CullLights(f.pool, lights, frustums, f.maxLightsPerCamera)
		d.cpuLists = &lists
	}

	hasOutline := d.static.outlined || d.skinned.outlined
	post := postprocess.NewPostParams(in.Post, in.Bloom, width, height, in.Time, in.AO != nil, hasOutline)
	d.post = post.Marshal()

	d.stats = Stats{
		Lights:         len(lights),
		Pages:          len(d.pages),
		StaticBatches:  len(d.static.batches),
		SkinnedBatches: len(d.skinned.batches),
		BloomLevels:    bloomLevels(in.Bloom),
	}
	if d.cpuLists != nil {
		d.stats.CPUCulled = true
		d.stats.VisibleLights = light.ClampCount(d.cpuLists.Counts[d.cameraIndex], f.maxLightsPerCamera)
	}
	return d
}

func bloomLevels(s postprocess.BloomSettings) int {
	if !s.Active() {
		return 0
	}
	return s.MipCount
}

// upload queues every buffer write of the frame. Queue writes land before the next submit,
// so they are visible to all passes of the frame.
func (f *frame) upload(d *frameData) {
	r := f.res
	writes := []bind_group_provider.BufferWrite{
		{Provider: r.cull, Binding: cullUniforms, Data: d.cullUniforms},
		{Provider: r.cull, Binding: cullLights, Data: d.lights},
		{Provider: r.forward[0], Binding: 0, Data: d.cameraBlock},
		{Provider: r.forward[0], Binding: 1, Data: d.forward},
		{Provider: r.forward[2], Binding: 2, Data: d.pageTable},
		{Provider: r.forward[2], Binding: 3, Data: f.shadowParams()},
		{Provider: r.shadow[0], Binding: 0, Data: d.pageDraws},
		{Provider: r.forwardSkinned[3], Binding: 1, Data: d.bones},
		{Provider: f.compose.provider, Binding: composeParams, Data: d.post},
	}
	if len(d.frustums) > 0 {
		writes = append(writes, bind_group_provider.BufferWrite{Provider: r.cull, Binding: cullFrustums, Data: d.frustums})
	}
	if len(d.static.models) > 0 {
		writes = append(writes, bind_group_provider.BufferWrite{Provider: r.forward[3], Binding: 0, Data: model.MarshalModels(d.static.models)})
	}
	if len(d.skinned.models) > 0 {
		writes = append(writes, bind_group_provider.BufferWrite{Provider: r.forwardSkinned[3], Binding: 0, Data: model.MarshalModels(d.skinned.models)})
	}

	if d.cpuLists != nil {
		writes = append(writes,
			bind_group_provider.BufferWrite{Provider: r.cull, Binding: cullIndices, Data: marshalUint32s(d.cpuLists.Indices)},
			bind_group_provider.BufferWrite{Provider: r.cull, Binding: cullCounts, Data: marshalUint32s(d.cpuLists.Counts)},
		)
	} else {
		// The compute pass accumulates into the counters, so they start each frame at zero.
		writes = append(writes, bind_group_provider.BufferWrite{Provider: r.cull, Binding: cullCounts, Data: make([]byte, MaxCameras*4)})
	}

	writes = append(writes, f.bloom.writes()...)
	f.gpu.WriteBuffers(writes)
}

func (f *frame) shadowParams() []byte {
	p := shadow.NewShadowParams(f.atlasConfig, f.biasMin, f.biasSlope)
	return p.Marshal()
}

func marshalUint32s(values []uint32) []byte {
	if len(values) == 0 {
		return make([]byte, 4)
	}
	buf := make([]byte, 0, len(values)*4)
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return buf
}

// encodeCull dispatches one invocation per light. With CPU culling the lists were
// uploaded by upload and nothing is encoded.
func (f *frame) encodeCull(d *frameData) error {
	if d.cpuLists != nil {
		return nil
	}
	if err := f.gpu.BeginComputeFrame(); err != nil {
		return fmt.Errorf("frame: light cull: %w", err)
	}
	groups := light.DispatchSize(uint32(d.stats.Lights))
	if groups > 0 {
		f.gpu.DispatchCompute(KeyLightCull, f.res.cull, [3]uint32{groups, 1, 1})
	}
	f.gpu.EndComputeFrame()
	return nil
}

// encodeShadows clears every atlas layer and renders each allocated page of it into the
// page's tile with the page's draw uniform.
func (f *frame) encodeShadows(d *frameData) error {
	if err := f.gpu.BeginShadowFrame(); err != nil {
		return fmt.Errorf("frame: shadow: %w", err)
	}
	defer f.gpu.EndShadowFrame()

	// Page draw windows follow the order of Pages, which PagesByLayer preserves.
	window := make(map[uint32]uint32, len(d.pages))
	for i, p := range d.pages {
		window[p.Slot] = uint32(i) * shadow.PageDrawStride
	}

	for layer, pages := range d.pageLayers {
		f.gpu.BeginShadowPass(f.res.atlas.LayerViews[layer])
		for _, page := range pages {
			f.gpu.SetShadowViewport(page.Rect[0], page.Rect[1], page.Rect[2], page.Rect[3])
			offset := window[page.Slot]
			if err := f.drawShadowBatches(KeyShadowDepth, d.static, f.res.shadow[:], offset); err != nil {
				f.gpu.EndShadowPass()
				return err
			}
			if err := f.drawShadowBatches(KeyShadowDepthSkinned, d.skinned, f.res.shadowSkinned[:], offset); err != nil {
				f.gpu.EndShadowPass()
				return err
			}
		}
		f.gpu.EndShadowPass()
	}
	return nil
}

func (f *frame) drawShadowBatches(key string, set batchSet, groups []bind_group_provider.BindGroupProvider, offset uint32) error {
	for _, b := range set.batches {
		if !b.castsShadow {
			continue
		}
		if err := f.gpu.ShadowDrawCall(key, b.mesh, b.first, b.count, groups, offset); err != nil {
			return fmt.Errorf("frame: shadow draw: %w", err)
		}
	}
	return nil
}

// encodeForward shades every batch into the HDR and outline targets.
func (f *frame) encodeForward(d *frameData) error {
	s := f.sized
	colors := s.colorAttachments()
	colors[0].Clear = clearHDR
	if err := f.gpu.BeginRenderPass(renderer.RenderPassTargets{
		Label:  "Forward",
		Colors: colors,
		Depth:  s.depth.View,
	}); err != nil {
		return fmt.Errorf("frame: forward: %w", err)
	}
	defer f.gpu.EndRenderPass()

	for _, b := range d.static.batches {
		if err := f.gpu.DrawCall(KeyForward, b.mesh, b.first, b.count, f.res.forward[:]); err != nil {
			return fmt.Errorf("frame: forward draw: %w", err)
		}
	}
	for _, b := range d.skinned.batches {
		if err := f.gpu.DrawCall(KeyForwardSkinned, b.mesh, b.first, b.count, f.res.forwardSkinned[:]); err != nil {
			return fmt.Errorf("frame: forward draw: %w", err)
		}
	}
	return nil
}

// encodeBloom runs one fullscreen pass per planned step.
func (f *frame) encodeBloom() error {
	b := f.bloom
	if b == nil {
		return nil
	}
	for i, step := range b.steps {
		if err := f.gpu.BeginRenderPass(renderer.RenderPassTargets{
			Label:  "Bloom " + step.target,
			Colors: []renderer.ColorAttachment{{View: b.targets[step.target].View}},
		}); err != nil {
			return fmt.Errorf("frame: bloom: %w", err)
		}
		err := f.gpu.DrawFullscreen(step.key, []bind_group_provider.BindGroupProvider{b.providers[i]})
		f.gpu.EndRenderPass()
		if err != nil {
			return fmt.Errorf("frame: bloom draw: %w", err)
		}
	}
	return nil
}

// encodeCompose writes the final image into the acquired surface texture.
func (f *frame) encodeCompose() error {
	if err := f.gpu.BeginRenderPass(renderer.RenderPassTargets{
		Label:  "Compose",
		Colors: []renderer.ColorAttachment{{View: f.gpu.SurfaceView(), Clear: clearHDR}},
	}); err != nil {
		return fmt.Errorf("frame: compose: %w", err)
	}
	defer f.gpu.EndRenderPass()

	if err := f.gpu.DrawFullscreen(KeyCompose, []bind_group_provider.BindGroupProvider{f.compose.provider}); err != nil {
		return fmt.Errorf("frame: compose draw: %w", err)
	}
	return nil
}
