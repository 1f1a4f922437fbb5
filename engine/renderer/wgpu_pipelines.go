package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// shadowDepthFormat is the format of the shadow atlas and of every shadow pipeline.
const shadowDepthFormat = wgpu.TextureFormatDepth32Float

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return errors.New("render pipeline needs a vertex and a fragment shader")
	}

	vertex, err := b.vertexState(p, vertexShader)
	if err != nil {
		return err
	}
	fs, err := b.createShaderModule(fragmentShader)
	if err != nil {
		return err
	}
	layout, err := b.createPipelineLayout(p)
	if err != nil {
		return err
	}

	samples := p.SampleCount()
	if samples == 0 {
		samples = uint32(b.settings.msaa)
	}

	var depth *wgpu.DepthStencilState
	if d := p.Depth(); d.Format != wgpu.TextureFormatUndefined {
		depth = depthState(d)
	}

	targets := b.colorTargets(p)
	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey(),
		Layout: layout,
		Vertex: vertex,
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Raster().Topology,
			FrontFace: p.Raster().FrontFace,
			CullMode:  p.Raster().CullMode,
		},
		Multisample:  wgpu.MultisampleState{Count: samples, Mask: 0xFFFFFFFF},
		DepthStencil: depth,
	})
	if err != nil {
		return err
	}
	p.SetRenderPipeline(created)

	logger.Logger().Debug("renderer: render pipeline registered",
		"key", p.PipelineKey(),
		"targets", len(targets),
		"samples", samples,
		"depth", depth != nil,
	)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return errors.New("compute pipeline needs a compute shader")
	}

	module, err := b.createShaderModule(computeShader)
	if err != nil {
		return err
	}
	layout, err := b.createPipelineLayout(p)
	if err != nil {
		return err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey(),
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}
	p.SetComputePipeline(created)

	logger.Logger().Debug("renderer: compute pipeline registered", "key", p.PipelineKey())
	return nil
}

// RegisterShadowPipeline builds a depth-only triangle list pipeline. Topology, sample count and
// depth format are fixed by the atlas; cull mode and depth bias come from p.
func (b *wgpuRendererBackendImpl) RegisterShadowPipeline(p pipeline.Pipeline) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	if vertexShader == nil {
		return errors.New("shadow pipeline needs a vertex shader")
	}

	vertex, err := b.vertexState(p, vertexShader)
	if err != nil {
		return err
	}
	layout, err := b.createPipelineLayout(p)
	if err != nil {
		return err
	}

	depth := p.Depth()
	depth.Format, depth.Test, depth.Write = shadowDepthFormat, true, true

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey(),
		Layout: layout,
		Vertex: vertex,
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  p.Raster().CullMode,
		},
		Multisample:  wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		DepthStencil: depthState(depth),
	})
	if err != nil {
		return err
	}
	p.SetRenderPipeline(created)

	logger.Logger().Debug("renderer: shadow pipeline registered",
		"key", p.PipelineKey(),
		"depth_bias", depth.Bias,
		"slope_scale", depth.BiasSlopeScale,
	)
	return nil
}

// vertexState compiles the vertex stage of p with every vertex buffer layout its shader declares.
func (b *wgpuRendererBackendImpl) vertexState(p pipeline.Pipeline, vertexShader shader.Shader) (wgpu.VertexState, error) {
	module, err := b.createShaderModule(vertexShader)
	if err != nil {
		return wgpu.VertexState{}, err
	}

	var buffers []wgpu.VertexBufferLayout
	for i := range vertexShader.VertexLayouts() {
		buffers = append(buffers, vertexShader.VertexLayout(i)...)
	}
	return wgpu.VertexState{
		Module:     module,
		EntryPoint: vertexShader.EntryPoint(),
		Buffers:    buffers,
	}, nil
}

// colorTargets resolves the color formats of p, substituting the swapchain format for
// pipeline.SurfaceFormat.
func (b *wgpuRendererBackendImpl) colorTargets(p pipeline.Pipeline) []wgpu.ColorTargetState {
	color := p.Color()
	targets := make([]wgpu.ColorTargetState, 0, len(color.Formats))
	for _, format := range color.Formats {
		if format == pipeline.SurfaceFormat {
			format = b.SurfaceFormat()
		}
		targets = append(targets, wgpu.ColorTargetState{
			Format:    format,
			Blend:     color.Blend,
			WriteMask: color.WriteMask,
		})
	}
	return targets
}

// depthState converts d to the attachment state shared by the forward and shadow pipelines.
// An untested attachment compares Always. Stencil is unused.
func depthState(d pipeline.DepthState) *wgpu.DepthStencilState {
	compare := wgpu.CompareFunctionLess
	if !d.Test {
		compare = wgpu.CompareFunctionAlways
	}
	keep := wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways}
	return &wgpu.DepthStencilState{
		Format:              d.Format,
		DepthWriteEnabled:   d.Write,
		DepthCompare:        compare,
		DepthBias:           d.Bias,
		DepthBiasSlopeScale: d.BiasSlopeScale,
		StencilFront:        keep,
		StencilBack:         keep,
	}
}
