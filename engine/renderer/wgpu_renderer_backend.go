package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuRendererBackendImpl drives one WebGPU device and its window surface. Every method
// holds mu; the frame loop and resize callbacks may run on different goroutines.
type wgpuRendererBackendImpl struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	surfaceWidth  int
	surfaceHeight int

	settings backendSettings

	// One submission per stage of the frame, in submission order.
	compute submission
	shadow  submission
	surf    submission

	shadowPass *wgpu.RenderPassEncoder
	framePass  *wgpu.RenderPassEncoder

	// The swapchain texture held between BeginFrame and Present.
	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
}

// wgpuRendererBackend is the device-level API the renderer forwards to. Pipelines are passed
// resolved; the renderer owns key lookup.
type wgpuRendererBackend interface {
	// ConfigureSurface (re)configures the swapchain. A zero width or height leaves it alone.
	ConfigureSurface(width, height int)
	SurfaceFormat() wgpu.TextureFormat
	SurfaceSize() (int, int)
	SampleCount() MSAASampleCount

	RegisterRenderPipeline(p pipeline.Pipeline) error
	RegisterComputePipeline(p pipeline.Pipeline) error
	RegisterShadowPipeline(p pipeline.Pipeline) error

	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error
	InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error
	InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error
	WriteBuffers(writes []bind_group_provider.BufferWrite)
	CreateRenderTarget(label string, width, height int, format wgpu.TextureFormat, sampleCount uint32) (*RenderTarget, error)
	CreateShadowAtlas(width, height, layers int) (*ShadowAtlas, error)
	CreateComparisonSampler() (*wgpu.Sampler, error)

	BeginComputeFrame() error
	DispatchCompute(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32)
	EndComputeFrame()

	BeginShadowFrame() error
	BeginShadowPass(layerView *wgpu.TextureView)
	SetShadowViewport(x, y, width, height uint32)
	ShadowDrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider, pageOffset uint32)
	EndShadowPass()
	EndShadowFrame()

	BeginFrame() error
	SurfaceView() *wgpu.TextureView
	BeginRenderPass(targets RenderPassTargets) error
	DrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider)
	DrawFullscreen(p pipeline.Pipeline, bindGroups []bind_group_provider.BindGroupProvider)
	EndRenderPass()
	EndFrame()
	Present()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend requests an adapter compatible with the surface and a device with
// room for the forward pass's bind groups. The calling goroutine is locked to its OS thread.
// Failures panic: nothing can render without a device.
func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, settings backendSettings) wgpuRendererBackend {
	runtime.LockOSThread()

	b := &wgpuRendererBackendImpl{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
		settings: settings,
		compute:  submission{label: "Light Cull Encoder"},
		shadow:   submission{label: "Shadow Encoder"},
		surf:     submission{label: "Frame Encoder"},
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: settings.fallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		panic(fmt.Sprintf("renderer: request adapter: %v", err))
	}
	b.adapter = adapter

	// The skinned forward pipeline binds four groups; raise the bind group limit above the default.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "oxy-render Device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		panic(fmt.Sprintf("renderer: request device: %v", err))
	}
	b.device = device
	b.queue = device.GetQueue()

	logger.Logger().Info("renderer: device ready",
		"msaa", uint32(settings.msaa),
		"present_mode", settings.presentMode.String(),
		"fallback_adapter", settings.fallbackAdapter,
		"validate_shaders", settings.validateShaders,
	)
	return b
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width <= 0 || height <= 0 {
		return
	}

	caps := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = caps.Formats[0]
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpuPresentMode(b.settings.presentMode),
		AlphaMode:   caps.AlphaModes[0],
	})
	b.surfaceWidth, b.surfaceHeight = width, height

	logger.Logger().Debug("renderer: surface configured",
		"width", width,
		"height", height,
		"format", b.surfaceFormat,
	)
}

// wgpuPresentMode maps a PresentMode onto the surface present mode.
func wgpuPresentMode(mode PresentMode) wgpu.PresentMode {
	if mode == PresentModeUncapped {
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceWidth, b.surfaceHeight
}

func (b *wgpuRendererBackendImpl) SampleCount() MSAASampleCount {
	return b.settings.msaa
}

// createShaderModule compiles the pre-processed WGSL of s. With shader validation enabled the
// source goes through naga first; sources naga cannot handle yet are passed on to the driver.
func (b *wgpuRendererBackendImpl) createShaderModule(s shader.Shader) (*wgpu.ShaderModule, error) {
	if b.settings.validateShaders {
		err := shader.Validate(s)
		switch {
		case errors.Is(err, shader.ErrValidatorUnsupported):
			logger.Logger().Debug("renderer: shader validation skipped", "shader", s.Key(), "reason", err)
		case err != nil:
			return nil, err
		}
	}

	return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          s.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: s.Source()},
	})
}

// createPipelineLayout creates one bind group layout per group of the pipeline's merged
// descriptors, hands them to the pipeline and builds the pipeline layout over them.
func (b *wgpuRendererBackendImpl) createPipelineLayout(p pipeline.Pipeline) (*wgpu.PipelineLayout, error) {
	if err := p.CheckGroups(); err != nil {
		return nil, err
	}

	descriptors := p.LayoutDescriptors()
	layouts := make([]*wgpu.BindGroupLayout, len(descriptors))
	for g := range layouts {
		desc := descriptors[g]
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, fmt.Errorf("group %d layout: %w", g, err)
		}
		layouts[g] = layout
	}
	p.SetBindGroupLayouts(layouts)

	return b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey() + " Layout",
		BindGroupLayouts: layouts,
	})
}
