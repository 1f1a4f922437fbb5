package pipeline

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

func (t PipelineType) String() string {
	if t == PipelineTypeCompute {
		return "compute"
	}
	return "render"
}

// SurfaceFormat is the color target placeholder resolved to the swapchain format at registration.
const SurfaceFormat = wgpu.TextureFormatUndefined

// RasterState is the primitive assembly and culling state of a render pipeline.
type RasterState struct {
	Topology  wgpu.PrimitiveTopology
	FrontFace wgpu.FrontFace
	CullMode  wgpu.CullMode
}

// DepthState configures the depth attachment. A Format of wgpu.TextureFormatUndefined renders
// without depth and ignores the other fields.
type DepthState struct {
	Format         wgpu.TextureFormat
	Test           bool
	Write          bool
	Bias           int32
	BiasSlopeScale float32
}

// ColorState configures the color targets, one format per fragment output. A nil Blend
// writes without blending.
type ColorState struct {
	Formats   []wgpu.TextureFormat
	WriteMask wgpu.ColorWriteMask
	Blend     *wgpu.BlendState
}

// AlphaBlend is straight alpha blending over the destination.
var AlphaBlend = &wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorSrcAlpha,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	key          string
	pipelineType PipelineType
	stages       map[shader.ShaderType]shader.Shader

	raster      RasterState
	depth       DepthState
	color       ColorState
	sampleCount uint32

	// layouts caches the merged stage descriptors; layoutErr is the merge failure, if any.
	layouts   map[int]wgpu.BindGroupLayoutDescriptor
	layoutErr error

	renderPipeline   *wgpu.RenderPipeline
	computePipeline  *wgpu.ComputePipeline
	bindGroupLayouts []*wgpu.BindGroupLayout
}

// Pipeline is a render pipeline (vertex and optional fragment stage) or a compute pipeline,
// together with the fixed-function state it is created with and the GPU objects created for
// it at registration.
type Pipeline interface {
	// Type returns whether this is a render or a compute pipeline.
	Type() PipelineType

	// PipelineKey returns the unique key the renderer registers this pipeline under.
	PipelineKey() string

	// Shader returns the stage of the given type, or nil if the pipeline has none.
	//
	// Parameters:
	//   - shaderType: the stage to look up
	//
	// Returns:
	//   - shader.Shader: the stage, or nil
	Shader(shaderType shader.ShaderType) shader.Shader

	// Stages returns the pipeline's shaders in vertex, fragment, compute order.
	Stages() []shader.Shader

	// Pipeline returns the created *wgpu.RenderPipeline or *wgpu.ComputePipeline, or nil
	// before registration.
	Pipeline() any

	// Raster returns the primitive state of a render pipeline.
	Raster() RasterState

	// Depth returns the depth attachment state.
	Depth() DepthState

	// Color returns the color target state.
	Color() ColorState

	// SampleCount returns the multisample count, or 0 to follow the renderer's MSAA setting.
	SampleCount() uint32

	// LayoutDescriptors returns the bind group layout descriptors of every stage merged by group.
	// A binding declared by several stages is visible to all of them.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	LayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// CheckGroups reports a binding declared differently by two stages, or bind groups that
	// are not contiguous from 0.
	//
	// Returns:
	//   - error: an error wrapping ErrBindingConflict or shader.ErrDiscontinuousBindGroups
	CheckGroups() error

	// BindGroupLayout returns the GPU layout of a group, or nil before registration.
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// SetBindGroupLayouts stores the GPU layouts created at registration, indexed by group.
	SetBindGroupLayouts(layouts []*wgpu.BindGroupLayout)

	// SetRenderPipeline stores the created render pipeline.
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// SetComputePipeline stores the created compute pipeline.
	SetComputePipeline(p *wgpu.ComputePipeline)
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a pipeline with depth testing against Depth24Plus, no culling, no
// blending and a single swapchain-format color target, then applies opts.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: render or compute
//   - opts: options applied in order
//
// Returns:
//   - Pipeline: the configured pipeline, not yet registered
func NewPipeline(pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		key:          pipelineKey,
		pipelineType: pipelineType,
		stages:       make(map[shader.ShaderType]shader.Shader, 2),
		raster: RasterState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		depth: DepthState{
			Format: wgpu.TextureFormatDepth24Plus,
			Test:   true,
			Write:  true,
		},
		color: ColorState{
			Formats:   []wgpu.TextureFormat{SurfaceFormat},
			WriteMask: wgpu.ColorWriteMaskAll,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.layouts, p.layoutErr = MergeBindGroupLayouts(p.Stages()...)
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.key
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	return p.stages[shaderType]
}

func (p *pipeline) Stages() []shader.Shader {
	var out []shader.Shader
	for _, t := range []shader.ShaderType{shader.ShaderTypeVertex, shader.ShaderTypeFragment, shader.ShaderTypeCompute} {
		if s := p.stages[t]; s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (p *pipeline) Pipeline() any {
	if p.pipelineType == PipelineTypeCompute {
		return p.computePipeline
	}
	return p.renderPipeline
}

func (p *pipeline) Raster() RasterState {
	return p.raster
}

func (p *pipeline) Depth() DepthState {
	return p.depth
}

func (p *pipeline) Color() ColorState {
	return p.color
}

func (p *pipeline) SampleCount() uint32 {
	return p.sampleCount
}

func (p *pipeline) LayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return p.layouts
}

func (p *pipeline) CheckGroups() error {
	if p.layoutErr != nil {
		return p.layoutErr
	}
	return shader.CheckContiguousGroups(p.Stages()...)
}

func (p *pipeline) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	if group < 0 || group >= len(p.bindGroupLayouts) {
		return nil
	}
	return p.bindGroupLayouts[group]
}

func (p *pipeline) SetBindGroupLayouts(layouts []*wgpu.BindGroupLayout) {
	p.bindGroupLayouts = layouts
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}
