package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipelineKind is the GPU object a registered pipeline was built into.
type pipelineKind int

const (
	kindCompute pipelineKind = iota
	kindRender
	kindShadow
)

func (k pipelineKind) String() string {
	switch k {
	case kindCompute:
		return "compute"
	case kindRender:
		return "render"
	case kindShadow:
		return "shadow"
	default:
		return fmt.Sprintf("pipelineKind(%d)", int(k))
	}
}

// registeredPipeline is one entry of the renderer's pipeline registry.
type registeredPipeline struct {
	pipeline pipeline.Pipeline
	kind     pipelineKind
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu        *sync.Mutex
	pipelines map[string]registeredPipeline

	backendType RendererBackendType
	backend     RendererBackend
	settings    backendSettings
}

// Renderer owns the GPU device and surface and encodes the passes of a frame.
//
// Pipelines are registered once by key and then referenced by key from every draw and dispatch.
// A frame is encoded as three submissions, in order: the compute frame (light culling), the
// shadow frame (one depth pass per atlas layer) and the surface frame (forward, bloom and
// compose), followed by Present.
type Renderer interface {
	// RegisterPipelines builds the GPU objects of compute and render pipelines and registers
	// them by PipelineKey. Keys that are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the pipelines to register
	//
	// Returns:
	//   - error: the first creation error
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// RegisterShadowPipeline builds a depth-only pipeline rendering into Depth32Float at one
	// sample, with the pipeline's depth bias and no fragment stage.
	//
	// Parameters:
	//   - p: a pipeline carrying only a vertex shader
	//
	// Returns:
	//   - error: an error if creation fails
	RegisterShadowPipeline(p pipeline.Pipeline) error

	// Resize reconfigures the surface. A zero size (minimized window) is ignored.
	//
	// Parameters:
	//   - width: the framebuffer width in pixels
	//   - height: the framebuffer height in pixels
	Resize(width, height int)

	// SurfaceSize returns the size the surface was last configured with.
	SurfaceSize() (int, int)

	// SampleCount returns the MSAA sample count of the forward targets.
	SampleCount() MSAASampleCount

	// InitMeshBuffers uploads vertex and index data into new buffers held by provider.
	//
	// Parameters:
	//   - provider: the mesh provider
	//   - vertexData: packed vertices
	//   - indexData: packed uint32 indices
	//   - indexCount: the number of indices drawn per instance
	//
	// Returns:
	//   - error: an error if buffer creation fails
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error

	// InitBindGroup creates the buffers provider does not hold yet and the bind group itself.
	// Views and samplers must already be set or borrowed. Buffer usage is derived from the
	// binding type, then extended by bufferUsageOverrides; buffer size defaults to the
	// entry's MinBindingSize unless bufferSizeOverrides names one. Both maps may be nil.
	//
	// Parameters:
	//   - provider: the provider receiving the bind group
	//   - descriptor: the group layout
	//   - bufferUsageOverrides: extra usage flags by binding
	//   - bufferSizeOverrides: buffer sizes by binding
	//
	// Returns:
	//   - error: an error naming the provider and binding
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// InitTextureView uploads an RGBA8 image and stores its view on provider at bindingKey.
	InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error

	// InitSampler creates a sampler and stores it on provider at bindingKey. Zero fields of the
	// staging data take linear filtering and repeat addressing.
	InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error

	// WriteBuffers queues every write. Writes to a binding without a buffer are dropped.
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// CreateRenderTarget creates an offscreen color or depth target. Single-sampled targets are
	// also sampleable.
	//
	// Parameters:
	//   - label: debug label
	//   - width: width in texels, at least 1
	//   - height: height in texels, at least 1
	//   - format: texture format
	//   - sampleCount: 1 for a sampled target
	//
	// Returns:
	//   - *RenderTarget: the target
	//   - error: an error if creation fails
	CreateRenderTarget(label string, width, height int, format wgpu.TextureFormat, sampleCount uint32) (*RenderTarget, error)

	// CreateShadowAtlas creates the Depth32Float array holding every shadow page.
	CreateShadowAtlas(width, height, layers int) (*ShadowAtlas, error)

	// CreateComparisonSampler creates the LessEqual comparison sampler used for PCF.
	CreateComparisonSampler() (*wgpu.Sampler, error)

	// BeginComputeFrame opens the compute submission. Pair with EndComputeFrame.
	BeginComputeFrame() error

	// DispatchCompute encodes one compute pass with the registered compute pipeline.
	// An unknown key is logged and skipped.
	//
	// Parameters:
	//   - pipelineKey: the compute pipeline key
	//   - computeProvider: the provider bound at group 0
	//   - workGroupCount: workgroups in x, y and z
	DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32)

	// EndComputeFrame submits the compute work.
	EndComputeFrame()

	// BeginShadowFrame opens the shadow submission. Pair with EndShadowFrame.
	BeginShadowFrame() error

	// BeginShadowPass starts a depth-only pass that clears one atlas layer to 1.0 and stores it.
	BeginShadowPass(layerView *wgpu.TextureView)

	// SetShadowViewport restricts rasterization to one page tile of the current layer.
	SetShadowViewport(x, y, width, height uint32)

	// ShadowDrawCall draws instances of a mesh into the current shadow pass. Group 0 is bound
	// at pageOffset, selecting the page's draw uniform.
	//
	// Parameters:
	//   - pipelineKey: the shadow pipeline key
	//   - meshProvider: the mesh
	//   - firstInstance: the first instance_index
	//   - instanceCount: the number of instances
	//   - bindGroups: providers bound at groups 0..n
	//   - pageOffset: dynamic offset for group 0
	//
	// Returns:
	//   - error: an error if the key is not a registered shadow pipeline
	ShadowDrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider, pageOffset uint32) error

	// EndShadowPass ends the current shadow pass.
	EndShadowPass()

	// EndShadowFrame submits the shadow work.
	EndShadowFrame()

	// BeginFrame acquires the swapchain texture and opens the surface submission.
	// Pair with EndFrame and Present.
	//
	// Returns:
	//   - error: an error if the surface texture is unavailable or still held
	BeginFrame() error

	// SurfaceView returns the swapchain view acquired by BeginFrame, nil outside a frame.
	SurfaceView() *wgpu.TextureView

	// BeginRenderPass begins a render pass of the surface submission.
	//
	// Parameters:
	//   - targets: the attachments
	//
	// Returns:
	//   - error: an error if no frame is open or a pass is already open
	BeginRenderPass(targets RenderPassTargets) error

	// DrawCall draws instances of a mesh into the current render pass.
	//
	// Parameters:
	//   - pipelineKey: the render pipeline key
	//   - meshProvider: the mesh
	//   - firstInstance: the first instance_index
	//   - instanceCount: the number of instances
	//   - bindGroups: providers bound at groups 0..n
	//
	// Returns:
	//   - error: an error if the key is not a registered render pipeline
	DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error

	// DrawFullscreen draws one triangle covering the target. No vertex buffer is bound.
	DrawFullscreen(pipelineKey string, bindGroups []bind_group_provider.BindGroupProvider) error

	// EndRenderPass ends the current render pass.
	EndRenderPass()

	// EndFrame submits the surface work without presenting.
	EndFrame()

	// Present presents and releases the swapchain texture.
	Present()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer over the window's surface and configures it at the window's size.
// Options are applied before the adapter is requested. Device creation failures panic.
//
// Parameters:
//   - backendType: the GPU backend
//   - window: the window providing the surface and framebuffer size
//   - options: configuration options
//
// Returns:
//   - Renderer: the renderer
func NewRenderer(backendType RendererBackendType, window window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		pipelines:   make(map[string]registeredPipeline),
		backendType: backendType,
		settings:    defaultBackendSettings(),
	}
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(window.SurfaceDescriptor(), r.settings)
	}

	r.backend.ConfigureSurface(window.Width(), window.Height())
	return r
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		kind := kindRender
		if p.Type() == pipeline.PipelineTypeCompute {
			kind = kindCompute
		}
		if err := r.register(p, kind); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) RegisterShadowPipeline(p pipeline.Pipeline) error {
	return r.register(p, kindShadow)
}

// register builds p into a GPU pipeline of the given kind and records it. A key registered
// earlier is kept when the kind matches and rejected otherwise.
func (r *renderer) register(p pipeline.Pipeline, kind pipelineKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := p.PipelineKey()
	if existing, ok := r.pipelines[key]; ok {
		if existing.kind != kind {
			return fmt.Errorf("renderer: pipeline %q already registered as %s, not %s", key, existing.kind, kind)
		}
		return nil
	}

	var err error
	switch kind {
	case kindCompute:
		err = r.backend.RegisterComputePipeline(p)
	case kindRender:
		err = r.backend.RegisterRenderPipeline(p)
	case kindShadow:
		err = r.backend.RegisterShadowPipeline(p)
	}
	if err != nil {
		return fmt.Errorf("renderer: %s pipeline %q: %w", kind, key, err)
	}

	r.pipelines[key] = registeredPipeline{pipeline: p, kind: kind}
	return nil
}

// lookup returns the registered pipeline for key if it was registered as want.
func (r *renderer) lookup(key string, want pipelineKind) (pipeline.Pipeline, error) {
	r.mu.Lock()
	entry, ok := r.pipelines[key]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("renderer: %s pipeline %q not registered", want, key)
	}
	if entry.kind != want {
		return nil, fmt.Errorf("renderer: pipeline %q is a %s pipeline, not %s", key, entry.kind, want)
	}
	return entry.pipeline, nil
}

func (r *renderer) SurfaceSize() (int, int) {
	return r.backend.SurfaceSize()
}

func (r *renderer) SampleCount() MSAASampleCount {
	return r.backend.SampleCount()
}

func (r *renderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	return r.backend.InitMeshBuffers(provider, vertexData, indexData, indexCount)
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	return r.backend.InitBindGroup(provider, descriptor, bufferUsageOverrides, bufferSizeOverrides)
}

func (r *renderer) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	return r.backend.InitTextureView(provider, bindingKey, stagingData)
}

func (r *renderer) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error {
	return r.backend.InitSampler(provider, bindingKey, samplerStagingData)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.backend.WriteBuffers(writes)
}

func (r *renderer) CreateRenderTarget(label string, width, height int, format wgpu.TextureFormat, sampleCount uint32) (*RenderTarget, error) {
	return r.backend.CreateRenderTarget(label, width, height, format, sampleCount)
}

func (r *renderer) CreateShadowAtlas(width, height, layers int) (*ShadowAtlas, error) {
	return r.backend.CreateShadowAtlas(width, height, layers)
}

func (r *renderer) CreateComparisonSampler() (*wgpu.Sampler, error) {
	return r.backend.CreateComparisonSampler()
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) {
	p, err := r.lookup(pipelineKey, kindCompute)
	if err != nil {
		logger.Logger().Warn("renderer: dispatch skipped", "error", err)
		return
	}
	r.backend.DispatchCompute(p, computeProvider, workGroupCount)
}

func (r *renderer) EndComputeFrame() {
	r.backend.EndComputeFrame()
}

func (r *renderer) BeginShadowFrame() error {
	return r.backend.BeginShadowFrame()
}

func (r *renderer) BeginShadowPass(layerView *wgpu.TextureView) {
	r.backend.BeginShadowPass(layerView)
}

func (r *renderer) SetShadowViewport(x, y, width, height uint32) {
	r.backend.SetShadowViewport(x, y, width, height)
}

func (r *renderer) ShadowDrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider, pageOffset uint32) error {
	p, err := r.lookup(pipelineKey, kindShadow)
	if err != nil {
		return err
	}
	r.backend.ShadowDrawCall(p, meshProvider, firstInstance, instanceCount, bindGroups, pageOffset)
	return nil
}

func (r *renderer) EndShadowPass() {
	r.backend.EndShadowPass()
}

func (r *renderer) EndShadowFrame() {
	r.backend.EndShadowFrame()
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) SurfaceView() *wgpu.TextureView {
	return r.backend.SurfaceView()
}

func (r *renderer) BeginRenderPass(targets RenderPassTargets) error {
	return r.backend.BeginRenderPass(targets)
}

func (r *renderer) DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error {
	p, err := r.lookup(pipelineKey, kindRender)
	if err != nil {
		return err
	}
	r.backend.DrawCall(p, meshProvider, firstInstance, instanceCount, bindGroups)
	return nil
}

func (r *renderer) DrawFullscreen(pipelineKey string, bindGroups []bind_group_provider.BindGroupProvider) error {
	p, err := r.lookup(pipelineKey, kindRender)
	if err != nil {
		return err
	}
	r.backend.DrawFullscreen(p, bindGroups)
	return nil
}

func (r *renderer) EndRenderPass() {
	r.backend.EndRenderPass()
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}
