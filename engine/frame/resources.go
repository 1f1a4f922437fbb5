package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
	"github.com/cogentcore/webgpu/wgpu"
)

// Element sizes of the storage arrays, matching the GPU structs.
const (
	frustumSize = 96
	lightSize   = 288
	modelSize   = 144
	boneSize    = 64
	pageSize    = 32
)

// Bindings of the light culling group.
const (
	cullUniforms = iota
	cullLights
	cullFrustums
	cullIndices
	cullCounts
)

// resources are the size-independent bind groups and the shadow atlas. Light lists,
// model arrays and page draws are each owned by one provider and borrowed by the others.
type resources struct {
	atlas   *renderer.ShadowAtlas
	compare *wgpu.Sampler

	cull bind_group_provider.BindGroupProvider

	// Forward groups 0-3, static then skinned.
	forward        [4]bind_group_provider.BindGroupProvider
	forwardSkinned [4]bind_group_provider.BindGroupProvider

	// Shadow groups 0-1, static then skinned.
	shadow        [2]bind_group_provider.BindGroupProvider
	shadowSkinned [2]bind_group_provider.BindGroupProvider

	all []bind_group_provider.BindGroupProvider
}

func (r *resources) release() {
	if r == nil {
		return
	}
	for _, p := range r.all {
		p.Release()
	}
	r.all = nil
	r.atlas.Release()
	r.atlas = nil
	if r.compare != nil {
		r.compare.Release()
		r.compare = nil
	}
}

// provider creates a provider carrying the registered layout of a pipeline group.
func (f *frame) provider(r *resources, key string, group int, label string, options ...bind_group_provider.BindGroupProviderOption) bind_group_provider.BindGroupProvider {
	options = append([]bind_group_provider.BindGroupProviderOption{
		bind_group_provider.WithBindGroupLayout(f.pipelines[key].BindGroupLayout(group)),
	}, options...)
	p := bind_group_provider.NewBindGroupProvider(label, options...)
	r.all = append(r.all, p)
	return p
}

// initGroup creates the buffers and the bind group of a provider from its pipeline group.
func (f *frame) initGroup(provider bind_group_provider.BindGroupProvider, key string, group int, sizes map[int]uint64) error {
	descriptor := f.pipelines[key].LayoutDescriptors()[group]
	if err := f.gpu.InitBindGroup(provider, descriptor, nil, sizes); err != nil {
		return fmt.Errorf("frame: %s: %w", provider.Label(), err)
	}
	return nil
}

// createResources builds the atlas and every bind group whose size does not follow the surface.
func (f *frame) createResources() (*resources, error) {
	r := &resources{}
	ok := false
	defer func() {
		if !ok {
			r.release()
		}
	}()

	aw, ah := f.atlasConfig.Size()
	atlas, err := f.gpu.CreateShadowAtlas(int(aw), int(ah), int(f.atlasConfig.AtlasLayers))
	if err != nil {
		return nil, fmt.Errorf("frame: shadow atlas: %w", err)
	}
	r.atlas = atlas
	r.compare, err = f.gpu.CreateComparisonSampler()
	if err != nil {
		return nil, fmt.Errorf("frame: comparison sampler: %w", err)
	}

	maxLights := uint64(f.maxLightsPerCamera)
	r.cull = f.provider(r, KeyLightCull, 0, "Light Cull")
	if err := f.initGroup(r.cull, KeyLightCull, 0, map[int]uint64{
		cullLights:   light.MaxGPULights * lightSize,
		cullFrustums: MaxCameras * frustumSize,
		cullIndices:  MaxCameras * maxLights * 4,
		cullCounts:   MaxCameras * 4,
	}); err != nil {
		return nil, err
	}

	// Forward, static variant owns the camera, shadow and model data.
	r.forward[0] = f.provider(r, KeyForward, 0, "Forward Camera")
	if err := f.initGroup(r.forward[0], KeyForward, 0, nil); err != nil {
		return nil, err
	}
	r.forward[1] = f.provider(r, KeyForward, 1, "Forward Lights",
		bind_group_provider.WithBorrowedBuffers(r.cull, map[int]int{0: cullLights, 1: cullIndices, 2: cullCounts}),
	)
	if err := f.initGroup(r.forward[1], KeyForward, 1, nil); err != nil {
		return nil, err
	}
	r.forward[2] = f.provider(r, KeyForward, 2, "Forward Shadow",
		bind_group_provider.WithBorrowedTextureView(0, atlas.ArrayView),
		bind_group_provider.WithBorrowedSampler(1, r.compare),
	)
	if err := f.initGroup(r.forward[2], KeyForward, 2, map[int]uint64{
		2: shadow.PageTableSize * pageSize,
	}); err != nil {
		return nil, err
	}
	r.forward[3] = f.provider(r, KeyForward, 3, "Forward Models")
	if err := f.initGroup(r.forward[3], KeyForward, 3, map[int]uint64{
		0: MaxInstances * modelSize,
	}); err != nil {
		return nil, err
	}

	// Skinned variant shares groups 0-2 and owns its own models and bones.
	for g := range 3 {
		r.forwardSkinned[g] = f.provider(r, KeyForwardSkinned, g, r.forward[g].Label()+" Skinned",
			bind_group_provider.WithSharedGroup(r.forward[g]),
		)
		if err := f.initGroup(r.forwardSkinned[g], KeyForwardSkinned, g, nil); err != nil {
			return nil, err
		}
	}
	r.forwardSkinned[3] = f.provider(r, KeyForwardSkinned, 3, "Forward Skinned Models")
	if err := f.initGroup(r.forwardSkinned[3], KeyForwardSkinned, 3, map[int]uint64{
		0: MaxInstances * modelSize,
		1: MaxBones * boneSize,
	}); err != nil {
		return nil, err
	}

	// Shadow pages are drawn with one dynamic-offset uniform window per page.
	pages := uint64(max(f.atlasConfig.Capacity(), 1))
	r.shadow[0] = f.provider(r, KeyShadowDepth, 0, "Shadow Page Draws")
	if err := f.initGroup(r.shadow[0], KeyShadowDepth, 0, map[int]uint64{
		0: pages * shadow.PageDrawStride,
	}); err != nil {
		return nil, err
	}
	r.shadow[1] = f.provider(r, KeyShadowDepth, 1, "Shadow Models",
		bind_group_provider.WithBorrowedBuffers(r.forward[3], map[int]int{0: 0}),
	)
	if err := f.initGroup(r.shadow[1], KeyShadowDepth, 1, nil); err != nil {
		return nil, err
	}
	r.shadowSkinned[0] = f.provider(r, KeyShadowDepthSkinned, 0, "Shadow Page Draws Skinned",
		bind_group_provider.WithSharedGroup(r.shadow[0]),
	)
	if err := f.initGroup(r.shadowSkinned[0], KeyShadowDepthSkinned, 0, nil); err != nil {
		return nil, err
	}
	r.shadowSkinned[1] = f.provider(r, KeyShadowDepthSkinned, 1, "Shadow Skinned Models",
		bind_group_provider.WithBorrowedBuffers(r.forwardSkinned[3], map[int]int{0: 0, 1: 1}),
	)
	if err := f.initGroup(r.shadowSkinned[1], KeyShadowDepthSkinned, 1, nil); err != nil {
		return nil, err
	}

	logger.Logger().Debug("frame: resources created",
		"atlas_width", aw,
		"atlas_height", ah,
		"atlas_layers", f.atlasConfig.AtlasLayers,
		"light_list_bytes", MaxCameras*maxLights*4,
	)
	ok = true
	return r, nil
}

// sizedResources are the forward targets, recreated when the surface size changes.
type sizedResources struct {
	width, height uint32
	samples       uint32

	// hdr and outline are single-sampled and read by bloom and compose.
	hdr, outline *renderer.RenderTarget
	// hdrMS and outlineMS are the multisampled attachments resolved into hdr and outline.
	hdrMS, outlineMS *renderer.RenderTarget
	depth            *renderer.RenderTarget
}

func (s *sizedResources) release() {
	if s == nil {
		return
	}
	for _, t := range []*renderer.RenderTarget{s.hdr, s.outline, s.hdrMS, s.outlineMS, s.depth} {
		t.Release()
	}
}

// colorAttachments returns the forward MRT attachments, resolving when multisampled.
func (s *sizedResources) colorAttachments() []renderer.ColorAttachment {
	if s.hdrMS == nil {
		return []renderer.ColorAttachment{
			{View: s.hdr.View},
			{View: s.outline.View},
		}
	}
	return []renderer.ColorAttachment{
		{View: s.hdrMS.View, ResolveTarget: s.hdr.View},
		{View: s.outlineMS.View, ResolveTarget: s.outline.View},
	}
}

// ensureSized recreates the forward targets for a new surface size or sample count. Bloom
// and compose bind these targets, so they are rebuilt too.
func (f *frame) ensureSized(width, height uint32) error {
	samples := max(uint32(f.gpu.SampleCount()), 1)
	if s := f.sized; s != nil && s.width == width && s.height == height && s.samples == samples {
		return nil
	}
	f.compose.release()
	f.compose = nil
	f.bloom.release()
	f.bloom = nil
	f.sized.release()
	f.sized = nil

	s := &sizedResources{width: width, height: height, samples: samples}
	create := func(label string, format wgpu.TextureFormat, count uint32) (*renderer.RenderTarget, error) {
		t, err := f.gpu.CreateRenderTarget(label, int(width), int(height), format, count)
		if err != nil {
			s.release()
			return nil, fmt.Errorf("frame: %w", err)
		}
		return t, nil
	}

	var err error
	if s.hdr, err = create("Forward HDR", HDRFormat, 1); err != nil {
		return err
	}
	if s.outline, err = create("Forward Outline", OutlineFormat, 1); err != nil {
		return err
	}
	if samples > 1 {
		if s.hdrMS, err = create("Forward HDR MSAA", HDRFormat, samples); err != nil {
			return err
		}
		if s.outlineMS, err = create("Forward Outline MSAA", OutlineFormat, samples); err != nil {
			return err
		}
	}
	if s.depth, err = create("Forward Depth", DepthFormat, samples); err != nil {
		return err
	}

	f.sized = s
	logger.Logger().Debug("frame: forward targets created", "width", width, "height", height, "samples", samples)
	return nil
}

// frameData is the CPU side of one frame, marshalled before any pass is encoded.
type frameData struct {
	width, height uint32
	cameraIndex   uint32

	cullUniforms []byte
	lights       []byte
	frustums     []byte
	cameraBlock  []byte
	forward      []byte

	// cpuLists is set when culling ran on the CPU.
	cpuLists *light.VisibleLists

	pages      []shadow.Page
	pageLayers [][]shadow.Page
	pageTable  []byte
	pageDraws  []byte

	static, skinned batchSet
	bones           []byte

	post []byte

	stats Stats
}

// clampCameras returns the GPU camera blocks and frustums of at most MaxCameras cameras.
func clampCameras(cams []camera.Camera) ([]camera.GPUCamera, []camera.GPUFrustum) {
	n := min(len(cams), MaxCameras)
	gpuCams := make([]camera.GPUCamera, 0, n)
	frustums := make([]camera.GPUFrustum, 0, n)
	for _, c := range cams[:n] {
		gpuCams = append(gpuCams, c.GPU())
		frustums = append(frustums, c.GPUFrustum())
	}
	return gpuCams, frustums
}
