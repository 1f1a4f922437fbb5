// Package frame drives one rendered frame through the fixed pass order: light culling,
// shadow page allocation and depth rendering, forward lighting, the bloom chain and the
// final compose onto the surface.
package frame

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
	"github.com/cogentcore/webgpu/wgpu"
)

// Per-frame buffer capacities. Inputs beyond them are dropped, never errors.
const (
	MaxCameras   = 8
	MaxInstances = 4096
	MaxBones     = 16384
)

// ErrNotSetUp is returned by Tick when Setup has not completed.
var ErrNotSetUp = errors.New("frame: Tick called before Setup")

// GPU is the part of renderer.Renderer the frame encodes its passes with.
type GPU interface {
	RegisterPipelines(pipelines ...pipeline.Pipeline) error
	RegisterShadowPipeline(p pipeline.Pipeline) error

	SurfaceSize() (int, int)
	SampleCount() renderer.MSAASampleCount
	CreateRenderTarget(label string, width, height int, format wgpu.TextureFormat, sampleCount uint32) (*renderer.RenderTarget, error)
	CreateShadowAtlas(width, height, layers int) (*renderer.ShadowAtlas, error)
	CreateComparisonSampler() (*wgpu.Sampler, error)

	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error
	InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error
	InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	BeginComputeFrame() error
	DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32)
	EndComputeFrame()

	BeginShadowFrame() error
	BeginShadowPass(layerView *wgpu.TextureView)
	SetShadowViewport(x, y, width, height uint32)
	ShadowDrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider, pageOffset uint32) error
	EndShadowPass()
	EndShadowFrame()

	BeginFrame() error
	SurfaceView() *wgpu.TextureView
	BeginRenderPass(targets renderer.RenderPassTargets) error
	DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error
	DrawFullscreen(pipelineKey string, bindGroups []bind_group_provider.BindGroupProvider) error
	EndRenderPass()
	EndFrame()
	Present()
}

var _ GPU = renderer.Renderer(nil)

// Inputs is everything one frame renders. The command layer validates it before Tick.
type Inputs struct {
	// Cameras are culled against every light; only ActiveCamera is shaded.
	Cameras      []camera.Camera
	ActiveCamera int

	// Lights are the packed frame lights, indexed as on the GPU.
	Lights []light.GPULight

	// Models are static instances; SkinnedModels are drawn with the skinned pipelines and
	// index Bones through their BoneOffset and BoneCount.
	Models        []model.Instance
	SkinnedModels []model.Instance
	Bones         [][16]float32

	// AO is an optional ambient occlusion texture owned by the host.
	AO *wgpu.TextureView

	Bloom postprocess.BloomSettings
	Post  postprocess.PostSettings

	// Time is the elapsed time in seconds, used by the grain noise.
	Time float32
}

// Stats summarizes the last frame Tick encoded.
type Stats struct {
	Lights int

	// VisibleLights is the light count of the main camera's list. It is only known when
	// culling ran on the CPU (CPUCulled); the GPU path leaves it zero.
	VisibleLights uint32
	CPUCulled     bool

	Pages          int
	StaticBatches  int
	SkinnedBatches int
	BloomLevels    int
	Skipped        bool
}

// Frame owns the per-frame GPU resources of the render pipeline and encodes each frame.
type Frame interface {
	// Setup builds and registers every pipeline and creates the size-independent resources
	// (light lists, shadow atlas, page table). It must succeed before the first Tick.
	//
	// Returns:
	//   - error: a wrapped error if a shader fails to parse or validate, a pipeline has
	//     discontinuous bind groups, or a GPU resource cannot be created
	Setup() error

	// Tick encodes and presents one frame. It returns early without encoding any pass when
	// the inputs are nil or empty of cameras, or the surface has no area.
	//
	// Parameters:
	//   - in: the frame inputs
	//
	// Returns:
	//   - error: ErrNotSetUp, or an error from resource creation or pass encoding
	Tick(in *Inputs) error

	// Stats returns the summary of the last Tick.
	//
	// Returns:
	//   - Stats: counts from the last frame
	Stats() Stats

	// Release frees every resource owned by the frame. Host-owned meshes and AO are untouched.
	Release()
}

// frame is the implementation of Frame.
type frame struct {
	mu  sync.Mutex
	gpu GPU

	atlasConfig        shadow.AtlasConfig
	biasMin, biasSlope float32
	maxLightsPerCamera uint32
	cpuCulling         bool
	epsilon, nearBlack float32
	validateShaders    bool

	pool     worker.DynamicWorkerPool
	ownsPool bool

	pipelines map[string]pipeline.Pipeline
	pageTable *shadow.PageTable
	res       *resources
	sized     *sizedResources
	bloom     *bloomResources
	compose   *composeResources
	ready     bool
	stats     Stats
}

var _ Frame = &frame{}

// NewFrame creates a frame encoder over the given GPU.
//
// Parameters:
//   - gpu: the renderer to encode with
//   - options: functional options
//
// Returns:
//   - Frame: the frame, ready for Setup
func NewFrame(gpu GPU, options ...FrameBuilderOption) Frame {
	f := &frame{
		gpu:                gpu,
		atlasConfig:        shadow.DefaultAtlasConfig(),
		biasMin:            0.0005,
		biasSlope:          0.005,
		maxLightsPerCamera: light.DefaultMaxLightsPerCamera,
		epsilon:            0.02,
		nearBlack:          0.02,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

func (f *frame) Setup() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gpu == nil {
		return errors.New("frame: no GPU")
	}
	if err := f.atlasConfig.Validate(); err != nil {
		return fmt.Errorf("frame: %w", err)
	}
	if f.maxLightsPerCamera == 0 {
		return errors.New("frame: max lights per camera must be > 0")
	}

	if f.pool == nil {
		f.pool = worker.NewDynamicWorkerPool(max(runtime.NumCPU()-1, 1), 256, 1*time.Second)
		f.ownsPool = true
	}

	pipelines, err := buildPipelines(f.validateShaders)
	if err != nil {
		return err
	}
	if err := registerPipelines(f.gpu, pipelines); err != nil {
		return err
	}
	f.pipelines = pipelines
	f.pageTable = shadow.NewPageTable(f.atlasConfig)

	res, err := f.createResources()
	if err != nil {
		return err
	}
	f.res = res
	f.ready = true

	logger.Logger().Info("frame: setup complete",
		"pipelines", len(pipelines),
		"atlas_capacity", f.atlasConfig.Capacity(),
		"max_lights_per_camera", f.maxLightsPerCamera,
		"cpu_culling", f.cpuCulling,
	)
	return nil
}

func (f *frame) Tick(in *Inputs) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.ready {
		return ErrNotSetUp
	}
	f.stats = Stats{Skipped: true}
	if in == nil || len(in.Cameras) == 0 {
		return nil
	}
	w, h := f.gpu.SurfaceSize()
	if w <= 0 || h <= 0 {
		return nil
	}
	if err := f.ensureSized(uint32(w), uint32(h)); err != nil {
		return err
	}
	if err := f.ensureBloom(in.Bloom); err != nil {
		return err
	}
	if err := f.ensureCompose(in.AO); err != nil {
		return err
	}

	data := f.prepare(in, uint32(w), uint32(h))
	f.upload(data)

	if err := f.encodeCull(data); err != nil {
		return err
	}
	if err := f.encodeShadows(data); err != nil {
		return err
	}

	if err := f.gpu.BeginFrame(); err != nil {
		logger.Logger().Warn("frame: skipped, surface unavailable", "error", err)
		return nil
	}
	// EndFrame submits whatever was encoded, so a failing pass still releases the surface.
	err := f.encodeForward(data)
	if err == nil {
		err = f.encodeBloom()
	}
	if err == nil {
		err = f.encodeCompose()
	}
	f.gpu.EndFrame()
	f.gpu.Present()
	if err != nil {
		return err
	}

	f.stats = data.stats
	logger.Logger().Debug("frame: presented",
		"lights", data.stats.Lights,
		"pages", data.stats.Pages,
		"static_batches", data.stats.StaticBatches,
		"skinned_batches", data.stats.SkinnedBatches,
	)
	return nil
}

func (f *frame) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *frame) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.compose.release()
	f.compose = nil
	f.bloom.release()
	f.bloom = nil
	f.sized.release()
	f.sized = nil
	f.res.release()
	f.res = nil
	if f.ownsPool && f.pool != nil {
		f.pool.Stop()
		f.pool = nil
	}
	f.ready = false
}

// camera picks the shaded camera, clamping an out-of-range index to the first camera.
func (in *Inputs) camera() int {
	if in.ActiveCamera < 0 || in.ActiveCamera >= min(len(in.Cameras), MaxCameras) {
		return 0
	}
	return in.ActiveCamera
}
