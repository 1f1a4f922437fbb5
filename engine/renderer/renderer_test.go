package renderer

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// fakeBackend records registrations. Every other backend method panics through the nil
// embedded interface, so a test that reaches the GPU fails loudly.
type fakeBackend struct {
	wgpuRendererBackend
	registered []string
	failKey    string
}

func (f *fakeBackend) record(kind string, p pipeline.Pipeline) error {
	if p.PipelineKey() == f.failKey {
		return errors.New("device lost")
	}
	f.registered = append(f.registered, kind+":"+p.PipelineKey())
	return nil
}

func (f *fakeBackend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	return f.record("render", p)
}

func (f *fakeBackend) RegisterComputePipeline(p pipeline.Pipeline) error {
	return f.record("compute", p)
}

func (f *fakeBackend) RegisterShadowPipeline(p pipeline.Pipeline) error {
	return f.record("shadow", p)
}

func newTestRenderer(backend *fakeBackend) *renderer {
	return &renderer{
		mu:        &sync.Mutex{},
		pipelines: make(map[string]registeredPipeline),
		backend:   backend,
		settings:  defaultBackendSettings(),
	}
}

func TestParsePresentMode(t *testing.T) {
	tests := []struct {
		name    string
		want    PresentMode
		wantErr bool
	}{
		{"vsync", PresentModeVSync, false},
		{"", PresentModeVSync, false},
		{"  Uncapped ", PresentModeUncapped, false},
		{"immediate", PresentModeUncapped, false},
		{"mailbox", PresentModeVSync, true},
	}
	for _, tt := range tests {
		got, err := ParsePresentMode(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePresentMode(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePresentMode(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
	if PresentModeUncapped.String() != "uncapped" {
		t.Errorf("String() = %q", PresentModeUncapped.String())
	}
}

func TestWithConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RendererConfig
		want backendSettings
	}{
		{
			name: "defaults",
			cfg:  config.Default().Renderer,
			want: backendSettings{presentMode: PresentModeVSync, msaa: MSAAOff, validateShaders: true},
		},
		{
			name: "uncapped without msaa",
			cfg:  config.RendererConfig{PresentMode: "uncapped", MSAA: 1, ForceFallbackAdapter: true},
			want: backendSettings{presentMode: PresentModeUncapped, msaa: MSAAOff, fallbackAdapter: true},
		},
		{
			name: "invalid values keep defaults",
			cfg:  config.RendererConfig{PresentMode: "sometimes", MSAA: 3},
			want: backendSettings{presentMode: PresentModeVSync, msaa: MSAA4x},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &renderer{settings: defaultBackendSettings()}
			WithConfig(tt.cfg)(r)
			if r.settings != tt.want {
				t.Errorf("settings = %+v, want %+v", r.settings, tt.want)
			}
		})
	}
}

func TestRegisterByKind(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestRenderer(backend)

	cull := pipeline.NewPipeline("light_cull", pipeline.PipelineTypeCompute)
	forward := pipeline.NewPipeline("forward", pipeline.PipelineTypeRender)
	shadow := pipeline.NewPipeline("shadow", pipeline.PipelineTypeRender)

	if err := r.RegisterPipelines(cull, forward); err != nil {
		t.Fatalf("RegisterPipelines: %v", err)
	}
	if err := r.RegisterShadowPipeline(shadow); err != nil {
		t.Fatalf("RegisterShadowPipeline: %v", err)
	}
	// Registering the same key again builds nothing.
	if err := r.RegisterPipelines(forward); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	want := []string{"compute:light_cull", "render:forward", "shadow:shadow"}
	if strings.Join(backend.registered, ",") != strings.Join(want, ",") {
		t.Errorf("registered = %v, want %v", backend.registered, want)
	}

	if err := r.RegisterShadowPipeline(forward); err == nil {
		t.Error("a render key registered as shadow should fail")
	}
}

func TestLookupChecksKind(t *testing.T) {
	r := newTestRenderer(&fakeBackend{})
	if err := r.RegisterShadowPipeline(pipeline.NewPipeline("shadow", pipeline.PipelineTypeRender)); err != nil {
		t.Fatal(err)
	}

	if _, err := r.lookup("shadow", kindShadow); err != nil {
		t.Errorf("lookup shadow: %v", err)
	}
	if _, err := r.lookup("shadow", kindRender); err == nil || !strings.Contains(err.Error(), "shadow pipeline") {
		t.Errorf("lookup as render: err = %v", err)
	}
	if _, err := r.lookup("missing", kindCompute); err == nil {
		t.Error("lookup of an unregistered key should fail")
	}

	// DrawCall rejects the shadow pipeline before reaching the backend.
	if err := r.DrawCall("shadow", nil, 0, 1, nil); err == nil {
		t.Error("DrawCall with a shadow pipeline should fail")
	}
}

func TestRegisterFailureIsNotCached(t *testing.T) {
	backend := &fakeBackend{failKey: "bloom_down"}
	r := newTestRenderer(backend)

	err := r.RegisterPipelines(pipeline.NewPipeline("bloom_down", pipeline.PipelineTypeRender))
	if err == nil || !strings.Contains(err.Error(), "bloom_down") {
		t.Fatalf("err = %v, want the pipeline key", err)
	}
	if _, err := r.lookup("bloom_down", kindRender); err == nil {
		t.Error("a failed pipeline must not be registered")
	}
}

func TestBufferUsageFor(t *testing.T) {
	tests := []struct {
		binding wgpu.BufferBindingType
		want    wgpu.BufferUsage
	}{
		{wgpu.BufferBindingTypeUniform, wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst},
		{wgpu.BufferBindingTypeStorage, wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst},
		{wgpu.BufferBindingTypeReadOnlyStorage, wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst},
	}
	for _, tt := range tests {
		if got := bufferUsageFor(tt.binding); got != tt.want {
			t.Errorf("bufferUsageFor(%v) = %v, want %v", tt.binding, got, tt.want)
		}
	}
}

func TestRenderPassDescriptor(t *testing.T) {
	msaa, resolve, plain, depth := &wgpu.TextureView{}, &wgpu.TextureView{}, &wgpu.TextureView{}, &wgpu.TextureView{}
	targets := RenderPassTargets{
		Label: "Forward",
		Colors: []ColorAttachment{
			{View: msaa, ResolveTarget: resolve},
			{View: plain, Clear: wgpu.Color{A: 1}},
		},
		Depth: depth,
	}

	desc := targets.descriptor()
	if len(desc.ColorAttachments) != 2 {
		t.Fatalf("color attachments = %d", len(desc.ColorAttachments))
	}
	if desc.ColorAttachments[0].StoreOp != wgpu.StoreOpDiscard {
		t.Error("resolved attachment should discard its samples")
	}
	if desc.ColorAttachments[1].StoreOp != wgpu.StoreOpStore || desc.ColorAttachments[1].ClearValue.A != 1 {
		t.Error("single-sampled attachment should be stored with its clear color")
	}
	if desc.DepthStencilAttachment == nil || desc.DepthStencilAttachment.DepthClearValue != 1.0 {
		t.Error("depth should be cleared to 1.0")
	}

	if (RenderPassTargets{Label: "Compose"}).descriptor().DepthStencilAttachment != nil {
		t.Error("no depth view means no depth attachment")
	}
}

func TestMSAASampleCountValid(t *testing.T) {
	for _, c := range []MSAASampleCount{MSAAOff, MSAA4x, MSAA8x, MSAA16x} {
		if !c.Valid() {
			t.Errorf("%d should be valid", c)
		}
	}
	for _, c := range []MSAASampleCount{0, 2, 3, 32} {
		if c.Valid() {
			t.Errorf("%d should be invalid", c)
		}
	}
}
