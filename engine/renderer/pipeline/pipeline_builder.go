package pipeline

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexShader sets the vertex stage.
func WithVertexShader(s shader.Shader) PipelineBuilderOption {
	return withStage(shader.ShaderTypeVertex, s)
}

// WithFragmentShader sets the fragment stage. A render pipeline without one is depth-only.
func WithFragmentShader(s shader.Shader) PipelineBuilderOption {
	return withStage(shader.ShaderTypeFragment, s)
}

// WithComputeShader sets the compute stage.
func WithComputeShader(s shader.Shader) PipelineBuilderOption {
	return withStage(shader.ShaderTypeCompute, s)
}

func withStage(t shader.ShaderType, s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		if s == nil {
			delete(p.stages, t)
			return
		}
		p.stages[t] = s
	}
}

// WithCullMode sets which faces are culled.
//
// Parameters:
//   - mode: wgpu.CullModeNone, wgpu.CullModeFront or wgpu.CullModeBack
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.raster.CullMode = mode
	}
}

// WithRaster replaces the whole primitive state.
func WithRaster(raster RasterState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.raster = raster
	}
}

// WithDepthFormat sets the depth attachment format. wgpu.TextureFormatUndefined renders
// without a depth attachment.
//
// Parameters:
//   - format: the depth texture format
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth format
func WithDepthFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depth.Format = format
	}
}

// WithDepthTest sets whether fragments are tested against and written to the depth attachment.
// A pipeline that does not test still passes every fragment through.
func WithDepthTest(test, write bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depth.Test = test
		p.depth.Write = write
	}
}

// WithDepthBias sets the constant and slope-scaled depth bias, used by the shadow pipelines
// against acne.
//
// Parameters:
//   - bias: the constant bias in depth units
//   - slopeScale: the bias per unit of depth slope
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth bias
func WithDepthBias(bias int32, slopeScale float32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depth.Bias = bias
		p.depth.BiasSlopeScale = slopeScale
	}
}

// WithColorTargets sets one color target format per fragment output, in @location order.
// SurfaceFormat stands for the swapchain format.
func WithColorTargets(formats ...wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.color.Formats = formats
	}
}

// WithBlend enables blending on every color target. nil disables it.
func WithBlend(state *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.color.Blend = state
	}
}

// WithWriteMask limits which channels of every color target are written.
func WithWriteMask(mask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.color.WriteMask = mask
	}
}

// WithSampleCount fixes the multisample count instead of following the renderer's MSAA setting.
//
// Parameters:
//   - count: the sample count, 1 for single-sampled targets
//
// Returns:
//   - PipelineBuilderOption: a function that sets the sample count
func WithSampleCount(count uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.sampleCount = count
	}
}
