package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/lighting"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("defaults", PipelineTypeRender)

	if got := p.Color().Formats; len(got) != 1 || got[0] != SurfaceFormat {
		t.Errorf("color formats = %v, want [SurfaceFormat]", got)
	}
	if p.Color().Blend != nil {
		t.Error("blending should default to off")
	}
	if p.SampleCount() != 0 {
		t.Errorf("SampleCount() = %d, want 0", p.SampleCount())
	}
	depth := p.Depth()
	if depth.Format != wgpu.TextureFormatDepth24Plus || !depth.Test || !depth.Write {
		t.Errorf("depth = %+v, want tested and written Depth24Plus", depth)
	}
	if p.Raster().Topology != wgpu.PrimitiveTopologyTriangleList {
		t.Errorf("topology = %v, want triangle list", p.Raster().Topology)
	}
	if p.BindGroupLayout(0) != nil {
		t.Error("unregistered pipeline should have no bind group layouts")
	}
	if len(p.Stages()) != 0 || p.CheckGroups() != nil {
		t.Error("a pipeline without stages has no groups to check")
	}
}

func TestOptions(t *testing.T) {
	p := NewPipeline("forward", PipelineTypeRender,
		WithColorTargets(wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRGBA8Unorm),
		WithSampleCount(1),
		WithDepthFormat(wgpu.TextureFormatUndefined),
		WithDepthBias(2, 1.5),
		WithBlend(AlphaBlend),
		WithCullMode(wgpu.CullModeBack),
	)

	formats := p.Color().Formats
	if len(formats) != 2 || formats[0] != wgpu.TextureFormatRGBA16Float || formats[1] != wgpu.TextureFormatRGBA8Unorm {
		t.Errorf("color formats = %v", formats)
	}
	if p.SampleCount() != 1 {
		t.Errorf("SampleCount() = %d, want 1", p.SampleCount())
	}
	if d := p.Depth(); d.Format != wgpu.TextureFormatUndefined || d.Bias != 2 || d.BiasSlopeScale != 1.5 {
		t.Errorf("depth = %+v", d)
	}
	if p.Color().Blend != AlphaBlend {
		t.Error("blend state not applied")
	}
	if p.Raster().CullMode != wgpu.CullModeBack {
		t.Errorf("cull mode = %v, want back", p.Raster().CullMode)
	}
}

const mergeVertex = `
struct Camera { view_proj: mat4x4<f32> }
@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var<storage, read> models: array<mat4x4<f32>>;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return camera.view_proj * models[0] * vec4<f32>(f32(i), 0.0, 0.0, 1.0);
}
`

const mergeFragment = `
struct Camera { view_proj: mat4x4<f32> }
@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(2) var albedo: texture_2d<f32>;
@group(1) @binding(0) var linear: sampler;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return textureSample(albedo, linear, vec2<f32>(0.0)) * camera.view_proj[0][0];
}
`

func TestMergeBindGroupLayouts(t *testing.T) {
	vs := shader.NewShader("merge_vs", shader.ShaderTypeVertex, mergeVertex)
	fs := shader.NewShader("merge_fs", shader.ShaderTypeFragment, mergeFragment)

	merged, err := MergeBindGroupLayouts(vs, nil, fs)
	if err != nil {
		t.Fatalf("MergeBindGroupLayouts: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("merged groups = %d, want 2", len(merged))
	}

	g0 := merged[0].Entries
	if len(g0) != 3 {
		t.Fatalf("group 0 entries = %d, want 3", len(g0))
	}
	for i, e := range g0 {
		if e.Binding != uint32(i) {
			t.Errorf("group 0 entry %d has binding %d, want sorted bindings", i, e.Binding)
		}
	}
	if g0[0].Visibility != wgpu.ShaderStageVertex|wgpu.ShaderStageFragment {
		t.Errorf("shared binding visibility = %v, want vertex|fragment", g0[0].Visibility)
	}
	if g0[0].Buffer.MinBindingSize != 64 {
		t.Errorf("camera min binding size = %d, want 64", g0[0].Buffer.MinBindingSize)
	}
	if g0[1].Visibility != wgpu.ShaderStageVertex {
		t.Error("vertex-only binding should keep vertex visibility")
	}
	if merged[1].Entries[0].Visibility != wgpu.ShaderStageFragment {
		t.Error("fragment-only group should keep fragment visibility")
	}
}

func TestMergeRejectsConflictingBinding(t *testing.T) {
	const conflicting = `
@group(0) @binding(1) var shadow_map: texture_depth_2d;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(0.0);
}
`
	vs := shader.NewShader("merge_vs", shader.ShaderTypeVertex, mergeVertex)
	fs := shader.NewShader("conflict_fs", shader.ShaderTypeFragment, conflicting)

	_, err := MergeBindGroupLayouts(vs, fs)
	if !errors.Is(err, ErrBindingConflict) {
		t.Fatalf("err = %v, want ErrBindingConflict", err)
	}
	for _, name := range []string{"models", "shadow_map", "merge_vs", "conflict_fs"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}

	p := NewPipeline("conflict", PipelineTypeRender, WithVertexShader(vs), WithFragmentShader(fs))
	if !errors.Is(p.CheckGroups(), ErrBindingConflict) {
		t.Error("CheckGroups should report the conflict")
	}
}

func TestForwardLayoutDescriptors(t *testing.T) {
	p := NewPipeline("forward", PipelineTypeRender,
		WithVertexShader(shader.NewShader("forward_vs", shader.ShaderTypeVertex, lighting.ForwardShaderSource)),
		WithFragmentShader(shader.NewShader("forward_fs", shader.ShaderTypeFragment, lighting.ForwardShaderSource)),
	)

	if err := p.CheckGroups(); err != nil {
		t.Fatalf("CheckGroups: %v", err)
	}
	layouts := p.LayoutDescriptors()
	wantEntries := map[int]int{0: 2, 1: 3, 2: 4, 3: 1}
	for g, want := range wantEntries {
		if got := len(layouts[g].Entries); got != want {
			t.Errorf("group %d entries = %d, want %d", g, got, want)
		}
	}
}

func TestComposeLayoutDescriptors(t *testing.T) {
	p := NewPipeline("compose", PipelineTypeRender,
		WithVertexShader(shader.NewShader("compose_vs", shader.ShaderTypeVertex, postprocess.ComposeShaderSource)),
		WithFragmentShader(shader.NewShader("compose_fs", shader.ShaderTypeFragment, postprocess.ComposeShaderSource)),
	)
	layouts := p.LayoutDescriptors()
	if len(layouts) != 1 {
		t.Fatalf("groups = %d, want 1", len(layouts))
	}
	if got := len(layouts[0].Entries); got != 6 {
		t.Errorf("compose group 0 entries = %d, want 6", got)
	}
}

func TestCheckGroupsRejectsGap(t *testing.T) {
	const gapped = `
@group(0) @binding(0) var<storage, read> a: array<u32>;
@group(2) @binding(0) var<storage, read> b: array<u32>;

@compute @workgroup_size(1)
fn cs_main() {
    _ = a[0] + b[0];
}
`
	p := NewPipeline("gapped", PipelineTypeCompute,
		WithComputeShader(shader.NewShader("gapped", shader.ShaderTypeCompute, gapped)),
	)
	if err := p.CheckGroups(); !errors.Is(err, shader.ErrDiscontinuousBindGroups) {
		t.Fatalf("CheckGroups() = %v, want ErrDiscontinuousBindGroups", err)
	}
	if p.Type().String() != "compute" {
		t.Errorf("Type() = %s", p.Type())
	}
}
