package shader

import (
	"errors"
	"strings"
	"testing"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/lighting"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
	"github.com/cogentcore/webgpu/wgpu"
)

type embeddedShader struct {
	key        string
	shaderType ShaderType
	source     string
	entry      string
	groups     int
}

var embeddedShaders = []embeddedShader{
	{"light_cull", ShaderTypeCompute, light.CullShaderSource, "cs_main", 1},
	{"shadow_static", ShaderTypeVertex, shadow.DepthShaderSource, "vs_main", 2},
	{"shadow_skinned", ShaderTypeVertex, shadow.DepthSkinnedShaderSource, "vs_main", 2},
	{"forward_vs", ShaderTypeVertex, lighting.ForwardShaderSource, "vs_main", 4},
	{"forward_fs", ShaderTypeFragment, lighting.ForwardShaderSource, "fs_main", 4},
	{"forward_skinned_vs", ShaderTypeVertex, lighting.ForwardSkinnedShaderSource, "vs_main", 4},
	{"bloom_prefilter_fs", ShaderTypeFragment, postprocess.BloomPrefilterShaderSource, "fs_main", 1},
	{"bloom_downsample_fs", ShaderTypeFragment, postprocess.BloomDownsampleShaderSource, "fs_main", 1},
	{"bloom_upsample_fs", ShaderTypeFragment, postprocess.BloomUpsampleShaderSource, "fs_main", 1},
	{"bloom_combine_fs", ShaderTypeFragment, postprocess.BloomCombineShaderSource, "fs_main", 1},
	{"bloom_vs", ShaderTypeVertex, postprocess.BloomCombineShaderSource, "vs_main", 1},
	{"compose_vs", ShaderTypeVertex, postprocess.ComposeShaderSource, "vs_main", 1},
	{"compose_fs", ShaderTypeFragment, postprocess.ComposeShaderSource, "fs_main", 1},
}

func TestGPUStructLayouts(t *testing.T) {
	var (
		gl light.GPULight
		gc camera.GPUCamera
		ge shadow.GPUShadowPageEntry
	)
	tests := []struct {
		name     string
		source   string
		typeName string
		goSize   int
		// offsets of selected WGSL fields, taken from the Go mirror
		offsets map[string]uintptr
	}{
		{"camera", camera.GPUCameraSource, "Camera", (&camera.GPUCamera{}).Size(), map[string]uintptr{
			"kind_flags": unsafe.Offsetof(gc.KindFlags),
			"projection": unsafe.Offsetof(gc.Projection),
			"view_proj":  unsafe.Offsetof(gc.ViewProj),
		}},
		{"frustum", camera.GPUFrustumSource, "Frustum", (&camera.GPUFrustum{}).Size(), nil},
		{"light", light.GPULightSource, "Light", (&light.GPULight{}).Size(), map[string]uintptr{
			"view":            unsafe.Offsetof(gl.View),
			"intensity_range": unsafe.Offsetof(gl.IntensityRange),
			"kind_flags":      unsafe.Offsetof(gl.KindFlags),
		}},
		{"cull uniforms", light.GPUCullUniformsSource, "CullUniforms", (&light.GPUCullUniforms{}).Size(), nil},
		{"model", model.GPUModelSource, "Model", (&model.GPUModel{}).Size(), nil},
		{"page entry", shadow.GPUShadowPageEntrySource, "ShadowPageEntry", (&shadow.GPUShadowPageEntry{}).Size(), map[string]uintptr{
			"layer":  unsafe.Offsetof(ge.Layer),
			"grid_y": unsafe.Offsetof(ge.GridY),
		}},
		{"shadow params", shadow.GPUShadowParamsSource, "ShadowParams", (&shadow.GPUShadowParams{}).Size(), nil},
		{"page draw", shadow.GPUPageDrawSource, "PageDraw", (&shadow.GPUPageDraw{}).Size(), nil},
		{"forward params", lighting.GPUForwardParamsSource, "ForwardParams", (&lighting.GPUForwardParams{}).Size(), nil},
		{"bloom params", postprocess.GPUBloomParamsSource, "BloomParams", (&postprocess.GPUBloomParams{}).Size(), nil},
		{"post params", postprocess.GPUPostParamsSource, "PostParams", (&postprocess.GPUPostParams{}).Size(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, ok := StructLayouts(tt.source)[tt.typeName]
			if !ok {
				t.Fatalf("struct %s not found in WGSL source", tt.typeName)
			}
			if int(layout.Size) != tt.goSize {
				t.Errorf("WGSL %s is %d bytes, Go type is %d", tt.typeName, layout.Size, tt.goSize)
			}
			if int(layout.Size) != len(marshalled(tt.name)) {
				t.Errorf("Marshal of %s yields %d bytes, want %d", tt.name, len(marshalled(tt.name)), layout.Size)
			}
			for field, want := range tt.offsets {
				got, ok := layout.Offsets[field]
				if !ok {
					t.Errorf("field %s.%s missing", tt.typeName, field)
					continue
				}
				if uintptr(got) != want {
					t.Errorf("%s.%s at offset %d, Go field at %d", tt.typeName, field, got, want)
				}
			}
		})
	}
}

func TestStructLayoutRules(t *testing.T) {
	const source = `
struct Inner {
    a: vec3<f32>,
}
struct Outer {
    flag: u32,
    inner: Inner,
    pair: vec2<f32>,
    m: mat3x3<f32>,
    tail: array<Inner>,
}
`
	layouts := StructLayouts(source)

	inner := layouts["Inner"]
	if inner.Size != 16 || inner.Align != 16 {
		t.Errorf("Inner = %d bytes align %d, want 16/16", inner.Size, inner.Align)
	}

	outer, ok := layouts["Outer"]
	if !ok {
		t.Fatal("Outer not resolved")
	}
	want := map[string]uint64{"flag": 0, "inner": 16, "pair": 32, "m": 48, "tail": 96}
	for field, off := range want {
		if outer.Offsets[field] != off {
			t.Errorf("Outer.%s at %d, want %d", field, outer.Offsets[field], off)
		}
	}
	// The runtime-sized tail counts as one element.
	if outer.Size != 112 {
		t.Errorf("Outer size = %d, want 112", outer.Size)
	}
}

// marshalled returns the zero value encoding of each GPU type.
func marshalled(name string) []byte {
	switch name {
	case "camera":
		return (&camera.GPUCamera{}).Marshal()
	case "frustum":
		return (&camera.GPUFrustum{}).Marshal()
	case "light":
		return (&light.GPULight{}).Marshal()
	case "cull uniforms":
		return (&light.GPUCullUniforms{}).Marshal()
	case "model":
		return (&model.GPUModel{}).Marshal()
	case "page entry":
		return (&shadow.GPUShadowPageEntry{}).Marshal()
	case "shadow params":
		return (&shadow.GPUShadowParams{}).Marshal()
	case "page draw":
		return (&shadow.GPUPageDraw{}).Marshal()
	case "forward params":
		return (&lighting.GPUForwardParams{}).Marshal()
	case "bloom params":
		return (&postprocess.GPUBloomParams{}).Marshal()
	case "post params":
		return (&postprocess.GPUPostParams{}).Marshal()
	}
	return nil
}

func TestVertexLayoutStrides(t *testing.T) {
	tests := []struct {
		name   string
		source string
		stride uint64
		attrs  int
	}{
		{"static", lighting.ForwardShaderSource, uint64((&model.GPUVertex{}).Size()), 5},
		{"skinned", lighting.ForwardSkinnedShaderSource, uint64((&model.GPUSkinnedVertex{}).Size()), 7},
		{"shadow static", shadow.DepthShaderSource, uint64((&model.GPUVertex{}).Size()), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseShader(tt.name, ShaderTypeVertex, tt.source)
			if err != nil {
				t.Fatalf("ParseShader: %v", err)
			}
			if len(s.VertexLayouts()) != 1 {
				t.Fatalf("got %d vertex layouts, want 1 (fragment outputs must be excluded)", len(s.VertexLayouts()))
			}
			layout := s.VertexLayout(0)[0]
			if layout.ArrayStride != tt.stride {
				t.Errorf("stride = %d, want %d", layout.ArrayStride, tt.stride)
			}
			if len(layout.Attributes) != tt.attrs {
				t.Errorf("attributes = %d, want %d", len(layout.Attributes), tt.attrs)
			}
		})
	}
}

func TestParseEmbeddedShaders(t *testing.T) {
	for _, tt := range embeddedShaders {
		t.Run(tt.key, func(t *testing.T) {
			s, err := ParseShader(tt.key, tt.shaderType, tt.source)
			if err != nil {
				t.Fatalf("ParseShader: %v", err)
			}
			if s.EntryPoint() != tt.entry {
				t.Errorf("entry point = %q, want %q", s.EntryPoint(), tt.entry)
			}
			if got := len(s.BindGroupLayoutDescriptors()); got != tt.groups {
				t.Errorf("groups = %d, want %d", got, tt.groups)
			}
			if err := CheckContiguousGroups(s); err != nil {
				t.Errorf("CheckContiguousGroups: %v", err)
			}
			if strings.Contains(s.Source(), annotationPrefix+"include") {
				t.Error("include annotation survived pre-processing")
			}
		})
	}
}

func TestComputeWorkgroupSize(t *testing.T) {
	s := NewShader("light_cull", ShaderTypeCompute, light.CullShaderSource)
	if got := s.WorkgroupSize(); got != [3]uint32{light.CullWorkgroupSize, 1, 1} {
		t.Errorf("workgroup size = %v, want [%d 1 1]", got, light.CullWorkgroupSize)
	}
}

func TestDynamicOffsetAnnotation(t *testing.T) {
	s := NewShader("shadow_static", ShaderTypeVertex, shadow.DepthShaderSource)
	desc := s.BindGroupLayoutDescriptor(0)
	if len(desc.Entries) != 1 {
		t.Fatalf("group 0 entries = %d, want 1", len(desc.Entries))
	}
	entry := desc.Entries[0]
	if !entry.Buffer.HasDynamicOffset {
		t.Error("page draw binding is not marked dynamic")
	}
	if entry.Buffer.Type != wgpu.BufferBindingTypeUniform {
		t.Errorf("buffer type = %v, want uniform", entry.Buffer.Type)
	}
	if entry.Buffer.MinBindingSize != 64 {
		t.Errorf("min binding size = %d, want 64", entry.Buffer.MinBindingSize)
	}
	if s.BindGroupLayoutDescriptor(1).Entries[0].Buffer.HasDynamicOffset {
		t.Error("models binding must not be dynamic")
	}
}

func TestDynamicOffsetErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{
			name: "storage binding",
			source: `//@oxy:include model
//@oxy:dynamic 0 0
//@oxy:group 0 0 storage_read models array<model>
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return models[0].world[0]; }`,
		},
		{
			name: "undeclared group",
			source: `//@oxy:dynamic 3 0
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseShader(tt.name, ShaderTypeVertex, tt.source); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCheckContiguousGroups(t *testing.T) {
	gap := `//@oxy:include camera
//@oxy:group 0 0 storage_uniform camera camera
@group(2) @binding(0) var<storage, read> data: array<u32>;
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return camera.position; }`
	s, err := ParseShader("gap", ShaderTypeVertex, gap)
	if err != nil {
		t.Fatalf("ParseShader: %v", err)
	}
	err = CheckContiguousGroups(s)
	if !errors.Is(err, ErrDiscontinuousBindGroups) {
		t.Fatalf("got %v, want ErrDiscontinuousBindGroups", err)
	}

	// The union across stages is what must be contiguous.
	vs := NewShader("forward_vs", ShaderTypeVertex, lighting.ForwardShaderSource)
	fs := NewShader("forward_fs", ShaderTypeFragment, lighting.ForwardShaderSource)
	if err := CheckContiguousGroups(vs, fs, nil); err != nil {
		t.Errorf("forward pipeline: %v", err)
	}
}

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    AnnotationType
		wantErr bool
	}{
		{"plain comment", "// nothing here", "", false},
		{"include", "//@oxy:include camera", annotationTypeInclude, false},
		{"group array", "//@oxy:group 1 0 storage_read lights array<light>", AnnotationTypeBindingGroup, false},
		{"provider with role", "//@oxy:provider 2 0 shadow shadow_atlas", AnnotationTypeProvider, false},
		{"dynamic", "//@oxy:dynamic 0 0", AnnotationTypeDynamic, false},
		{"empty", "//@oxy:", "", true},
		{"unknown type", "//@oxy:frobnicate 1", "", true},
		{"unknown struct", "//@oxy:include material", "", true},
		{"unknown provider", "//@oxy:provider 0 0 animator", "", true},
		{"unknown role", "//@oxy:provider 0 0 shadow diffuse_texture", "", true},
		{"group arity", "//@oxy:group 0 0 storage_read lights", "", true},
		{"bad binding", "//@oxy:group 0 x storage_read lights array<light>", "", true},
		{"dynamic arity", "//@oxy:dynamic 0", "", true},
		{"negative group", "//@oxy:dynamic -1 0", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parseAnnotation(tt.line, 7)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if !strings.Contains(err.Error(), "line 7") || !errors.Is(err, ErrMalformedAnnotation) {
					t.Errorf("error %q does not name the line or wrap ErrMalformedAnnotation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want == "" {
				if a != nil {
					t.Errorf("got annotation %+v for a plain line", a)
				}
				return
			}
			if a == nil || a.Type != tt.want {
				t.Fatalf("got %+v, want type %q", a, tt.want)
			}
			if a.Type != annotationTypeInclude && (a.Group == nil || a.Binding == nil) {
				t.Errorf("%s annotation without group and binding", a.Type)
			}
		})
	}
}

func TestFindRole(t *testing.T) {
	s := NewShader("forward_fs", ShaderTypeFragment, lighting.ForwardShaderSource)
	tests := []struct {
		role    AnnotationArg
		group   int
		binding int
	}{
		{AnnotationArgVisibleIndices, 1, 1},
		{AnnotationArgVisibleCounts, 1, 2},
		{AnnotationArgShadowAtlas, 2, 0},
		{AnnotationArgShadowSampler, 2, 1},
	}
	for _, tt := range tests {
		g, b, ok := FindRole(s.Declarations(), tt.role)
		if !ok || g != tt.group || b != tt.binding {
			t.Errorf("FindRole(%s) = (%d, %d, %v), want (%d, %d, true)", tt.role, g, b, ok, tt.group, tt.binding)
		}
	}
	if _, _, ok := FindRole(s.Declarations(), AnnotationArgBones); ok {
		t.Error("static forward shader must not declare bones")
	}
}

func TestValidateEmbeddedShaders(t *testing.T) {
	for _, tt := range embeddedShaders {
		t.Run(tt.key, func(t *testing.T) {
			s := NewShader(tt.key, tt.shaderType, tt.source)
			err := Validate(s)
			if errors.Is(err, ErrValidatorUnsupported) {
				t.Skipf("Skipping: naga feature not yet implemented: %v", err)
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestClassifyCompileError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"SPIR-V generation error: unsupported expression kind: ir.ExprRelational", ErrValidatorUnsupported},
		{"lowering error: unknown builtin", ErrValidatorUnsupported},
		{"texture atomics not yet implemented", ErrValidatorUnsupported},
		{"parse error: expected ';'", ErrInvalidWGSL},
		{"type mismatch: vec4<f32> vs vec2<f32>", ErrInvalidWGSL},
	}
	for _, tt := range tests {
		err := classifyCompileError("fs", errors.New(tt.msg))
		if !errors.Is(err, tt.want) {
			t.Errorf("classifyCompileError(%q) = %v, want %v", tt.msg, err, tt.want)
		}
	}
}

func TestValidateRejectsBrokenSource(t *testing.T) {
	s := NewShader("broken", ShaderTypeVertex, `@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(1.0, 2.0); `)
	err := Validate(s)
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrValidatorUnsupported) {
		t.Skipf("Skipping: %v", err)
	}
	if !errors.Is(err, ErrInvalidWGSL) {
		t.Errorf("got %v, want ErrInvalidWGSL", err)
	}
}

func TestPreProcessorExpansion(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process(`//@oxy:include light
//@oxy:include light
//@oxy:group 1 0 storage_read lights array<light>
//@oxy:provider 1 1 visible_lights visible_indices`)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := strings.Count(out, "struct Light"); got != 1 {
		t.Errorf("Light struct injected %d times, want 1", got)
	}
	if !strings.Contains(out, "@group(1) @binding(0) var<storage, read> lights: array<Light>;") {
		t.Errorf("group declaration missing from:\n%s", out)
	}
	if len(pp.Declarations()) != 2 {
		t.Errorf("declarations = %d, want group and provider", len(pp.Declarations()))
	}
}
