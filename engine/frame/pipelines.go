package frame

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/lighting"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
	"github.com/cogentcore/webgpu/wgpu"
)

// Pipeline keys registered by Setup.
const (
	KeyLightCull          = "light_cull"
	KeyShadowDepth        = "shadow_depth"
	KeyShadowDepthSkinned = "shadow_depth_skinned"
	KeyForward            = "forward"
	KeyForwardSkinned     = "forward_skinned"
	KeyBloomPrefilter     = "bloom_prefilter"
	KeyBloomDownsample    = "bloom_downsample"
	KeyBloomUpsample      = "bloom_upsample"
	KeyBloomCombine       = "bloom_combine"
	KeyCompose            = "compose"
)

// Formats of the offscreen targets.
const (
	HDRFormat     = wgpu.TextureFormatRGBA16Float
	OutlineFormat = wgpu.TextureFormatRGBA8Unorm
	DepthFormat   = wgpu.TextureFormatDepth24Plus
)

// pipelineSpec describes one pipeline before its shaders are parsed.
type pipelineSpec struct {
	key     string
	kind    pipeline.PipelineType
	shadow  bool
	source  string
	options []pipeline.PipelineBuilderOption
}

func pipelineSpecs() []pipelineSpec {
	fullscreen := func(format wgpu.TextureFormat) []pipeline.PipelineBuilderOption {
		return []pipeline.PipelineBuilderOption{
			pipeline.WithColorTargets(format),
			pipeline.WithSampleCount(1),
			pipeline.WithDepthFormat(wgpu.TextureFormatUndefined),
			pipeline.WithCullMode(wgpu.CullModeNone),
		}
	}
	forward := []pipeline.PipelineBuilderOption{
		pipeline.WithColorTargets(HDRFormat, OutlineFormat),
		pipeline.WithDepthFormat(DepthFormat),
	}
	depth := []pipeline.PipelineBuilderOption{
		pipeline.WithDepthBias(2, 2),
	}

	return []pipelineSpec{
		{key: KeyLightCull, kind: pipeline.PipelineTypeCompute, source: light.CullShaderSource},
		{key: KeyShadowDepth, kind: pipeline.PipelineTypeRender, shadow: true, source: shadow.DepthShaderSource, options: depth},
		{key: KeyShadowDepthSkinned, kind: pipeline.PipelineTypeRender, shadow: true, source: shadow.DepthSkinnedShaderSource, options: depth},
		{key: KeyForward, kind: pipeline.PipelineTypeRender, source: lighting.ForwardShaderSource, options: forward},
		{key: KeyForwardSkinned, kind: pipeline.PipelineTypeRender, source: lighting.ForwardSkinnedShaderSource, options: forward},
		{key: KeyBloomPrefilter, kind: pipeline.PipelineTypeRender, source: postprocess.BloomPrefilterShaderSource, options: fullscreen(HDRFormat)},
		{key: KeyBloomDownsample, kind: pipeline.PipelineTypeRender, source: postprocess.BloomDownsampleShaderSource, options: fullscreen(HDRFormat)},
		{key: KeyBloomUpsample, kind: pipeline.PipelineTypeRender, source: postprocess.BloomUpsampleShaderSource, options: fullscreen(HDRFormat)},
		{key: KeyBloomCombine, kind: pipeline.PipelineTypeRender, source: postprocess.BloomCombineShaderSource, options: fullscreen(HDRFormat)},
		{key: KeyCompose, kind: pipeline.PipelineTypeRender, source: postprocess.ComposeShaderSource, options: fullscreen(pipeline.SurfaceFormat)},
	}
}

// buildPipelines parses every shader and checks its bind groups. With validate set, each
// stage is also compiled by naga; sources naga cannot handle yet are logged and kept.
//
// Parameters:
//   - validate: whether to compile each stage with naga
//
// Returns:
//   - map[string]pipeline.Pipeline: the pipelines keyed by pipeline key
//   - error: the first parse, bind group or validation failure
func buildPipelines(validate bool) (map[string]pipeline.Pipeline, error) {
	out := make(map[string]pipeline.Pipeline)
	for _, spec := range pipelineSpecs() {
		options := append([]pipeline.PipelineBuilderOption(nil), spec.options...)

		if spec.kind == pipeline.PipelineTypeCompute {
			cs, err := shader.ParseShader(spec.key, shader.ShaderTypeCompute, spec.source)
			if err != nil {
				return nil, fmt.Errorf("frame: pipeline %s: %w", spec.key, err)
			}
			options = append(options, pipeline.WithComputeShader(cs))
		} else {
			vs, err := shader.ParseShader(spec.key+"_vs", shader.ShaderTypeVertex, spec.source)
			if err != nil {
				return nil, fmt.Errorf("frame: pipeline %s: %w", spec.key, err)
			}
			options = append(options, pipeline.WithVertexShader(vs))
			if !spec.shadow {
				fs, err := shader.ParseShader(spec.key+"_fs", shader.ShaderTypeFragment, spec.source)
				if err != nil {
					return nil, fmt.Errorf("frame: pipeline %s: %w", spec.key, err)
				}
				options = append(options, pipeline.WithFragmentShader(fs))
			}
		}

		p := pipeline.NewPipeline(spec.key, spec.kind, options...)
		if err := p.CheckGroups(); err != nil {
			return nil, fmt.Errorf("frame: pipeline %s: %w", spec.key, err)
		}
		if validate {
			for _, s := range p.Stages() {
				if err := validateStage(s); err != nil {
					return nil, fmt.Errorf("frame: pipeline %s: %w", spec.key, err)
				}
			}
		}
		out[spec.key] = p
	}
	return out, nil
}

func validateStage(s shader.Shader) error {
	err := shader.Validate(s)
	if errors.Is(err, shader.ErrValidatorUnsupported) {
		logger.Logger().Warn("frame: shader not validated", "shader", s.Key(), "error", err)
		return nil
	}
	return err
}

// registerPipelines creates the GPU objects in pass order. Shadow pipelines go through the
// depth-only registration.
func registerPipelines(gpu GPU, pipelines map[string]pipeline.Pipeline) error {
	for _, spec := range pipelineSpecs() {
		p := pipelines[spec.key]
		var err error
		if spec.shadow {
			err = gpu.RegisterShadowPipeline(p)
		} else {
			err = gpu.RegisterPipelines(p)
		}
		if err != nil {
			return fmt.Errorf("frame: register %s: %w", spec.key, err)
		}
	}
	return nil
}
