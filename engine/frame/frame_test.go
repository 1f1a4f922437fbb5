package frame

import (
	"encoding/binary"
	"errors"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// recordingGPU records the name of every encoding call and hands out empty resources.
type recordingGPU struct {
	width, height int
	samples       renderer.MSAASampleCount
	beginFrameErr error

	calls      []string
	registered []string
	writes     []bind_group_provider.BufferWrite
	draws      []drawRecord
	targets    []string
}

type drawRecord struct {
	key           string
	first, count  uint32
	pageOffset    uint32
	shadow        bool
	groupsPerDraw int
}

var _ GPU = &recordingGPU{}

func (g *recordingGPU) record(name string) { g.calls = append(g.calls, name) }

func (g *recordingGPU) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		g.registered = append(g.registered, p.PipelineKey())
	}
	return nil
}

func (g *recordingGPU) RegisterShadowPipeline(p pipeline.Pipeline) error {
	g.registered = append(g.registered, p.PipelineKey())
	return nil
}

func (g *recordingGPU) SurfaceSize() (int, int) { return g.width, g.height }
func (g *recordingGPU) SampleCount() renderer.MSAASampleCount { return g.samples }

func (g *recordingGPU) CreateRenderTarget(label string, width, height int, format wgpu.TextureFormat, sampleCount uint32) (*renderer.RenderTarget, error) {
	g.targets = append(g.targets, label)
	return &renderer.RenderTarget{Width: uint32(width), Height: uint32(height), Format: format, SampleCount: sampleCount}, nil
}

func (g *recordingGPU) CreateShadowAtlas(width, height, layers int) (*renderer.ShadowAtlas, error) {
	return &renderer.ShadowAtlas{LayerViews: make([]*wgpu.TextureView, layers), Width: uint32(width), Height: uint32(height)}, nil
}

func (g *recordingGPU) CreateComparisonSampler() (*wgpu.Sampler, error) { return nil, nil }

func (g *recordingGPU) InitBindGroup(bind_group_provider.BindGroupProvider, wgpu.BindGroupLayoutDescriptor, map[int]wgpu.BufferUsage, map[int]uint64) error {
	return nil
}

func (g *recordingGPU) InitTextureView(bind_group_provider.BindGroupProvider, int, common.TextureStagingData) error {
	return nil
}

func (g *recordingGPU) InitSampler(bind_group_provider.BindGroupProvider, int, common.SamplerStagingData) error {
	return nil
}

func (g *recordingGPU) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	g.writes = append(g.writes, writes...)
}

func (g *recordingGPU) BeginComputeFrame() error { g.record("BeginComputeFrame"); return nil }

func (g *recordingGPU) DispatchCompute(key string, _ bind_group_provider.BindGroupProvider, _ [3]uint32) {
	g.record("DispatchCompute " + key)
}

func (g *recordingGPU) EndComputeFrame() { g.record("EndComputeFrame") }
func (g *recordingGPU) BeginShadowFrame() error { g.record("BeginShadowFrame"); return nil }
func (g *recordingGPU) BeginShadowPass(*wgpu.TextureView) { g.record("BeginShadowPass") }
func (g *recordingGPU) SetShadowViewport(_, _, _, _ uint32) { g.record("SetShadowViewport") }

func (g *recordingGPU) ShadowDrawCall(key string, _ bind_group_provider.BindGroupProvider, first, count uint32, groups []bind_group_provider.BindGroupProvider, offset uint32) error {
	g.record("ShadowDrawCall " + key)
	g.draws = append(g.draws, drawRecord{key: key, first: first, count: count, pageOffset: offset, shadow: true, groupsPerDraw: len(groups)})
	return nil
}

func (g *recordingGPU) EndShadowPass() { g.record("EndShadowPass") }
func (g *recordingGPU) EndShadowFrame() { g.record("EndShadowFrame") }

func (g *recordingGPU) BeginFrame() error {
	g.record("BeginFrame")
	return g.beginFrameErr
}

func (g *recordingGPU) SurfaceView() *wgpu.TextureView { return nil }

func (g *recordingGPU) BeginRenderPass(targets renderer.RenderPassTargets) error {
	g.record("BeginRenderPass " + targets.Label)
	return nil
}

func (g *recordingGPU) DrawCall(key string, _ bind_group_provider.BindGroupProvider, first, count uint32, groups []bind_group_provider.BindGroupProvider) error {
	g.record("DrawCall " + key)
	g.draws = append(g.draws, drawRecord{key: key, first: first, count: count, groupsPerDraw: len(groups)})
	return nil
}

func (g *recordingGPU) DrawFullscreen(key string, _ []bind_group_provider.BindGroupProvider) error {
	g.record("DrawFullscreen " + key)
	return nil
}

func (g *recordingGPU) EndRenderPass() { g.record("EndRenderPass") }
func (g *recordingGPU) EndFrame() { g.record("EndFrame") }
func (g *recordingGPU) Present() { g.record("Present") }

// index returns the position of the first call with the given prefix, or -1.
func (g *recordingGPU) index(prefix string) int {
	return slices.IndexFunc(g.calls, func(c string) bool { return strings.HasPrefix(c, prefix) })
}

func (g *recordingGPU) count(prefix string) int {
	n := 0
	for _, c := range g.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func newTestPool(t *testing.T) worker.DynamicWorkerPool {
	t.Helper()
	pool := worker.NewDynamicWorkerPool(max(runtime.NumCPU(), 2), 256, 1*time.Second)
	t.Cleanup(func() { pool.Stop() })
	return pool
}

func newSetUpFrame(t *testing.T, gpu *recordingGPU, options ...FrameBuilderOption) Frame {
	t.Helper()
	options = append([]FrameBuilderOption{WithWorkerPool(newTestPool(t))}, options...)
	f := NewFrame(gpu, options...)
	if err := f.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	t.Cleanup(f.Release)
	return f
}

func testCamera() camera.Camera {
	return camera.NewCamera(
		camera.WithPosition(0, 2, 8),
		camera.WithTarget(0, 0, 0),
		camera.WithAspect(16.0/9.0),
	)
}

func testMesh(name string) model.Model {
	return model.NewModel(
		model.WithName(name),
		model.WithMeshProvider(bind_group_provider.NewBindGroupProvider(name)),
		model.WithIndices([]uint32{0, 1, 2}),
	)
}

func testInputs() *Inputs {
	cube := testMesh("cube")
	sun := light.NewLight(light.LightTypeDirectional,
		light.WithDirection(-0.3, -1, -0.2),
		light.WithCastsShadows(true),
	)
	return &Inputs{
		Cameras: []camera.Camera{testCamera()},
		Lights: []light.GPULight{
			light.ToGPULight(sun, [3]float32{}),
			light.ToGPULight(light.NewLight(light.LightTypePoint, light.WithPosition(0, 1, 0), light.WithRange(5)), [3]float32{}),
		},
		Models: []model.Instance{
			{Model: cube, Transform: model.IdentityTransform(), CastsShadow: true, ReceivesShadow: true},
			{Model: cube, Transform: model.IdentityTransform(), CastsShadow: true, Outlined: true},
		},
		Bloom: postprocess.BloomSettings{Enabled: true, Threshold: 1, Knee: 0.5, Scatter: 0.7, Intensity: 1, MipCount: 3},
		Post:  postprocess.NeutralPostSettings(),
	}
}

func TestSetupRegistersPipelinesInPassOrder(t *testing.T) {
	gpu := &recordingGPU{width: 320, height: 180, samples: renderer.MSAAOff}
	newSetUpFrame(t, gpu)

	want := []string{
		KeyLightCull,
		KeyShadowDepth, KeyShadowDepthSkinned,
		KeyForward, KeyForwardSkinned,
		KeyBloomPrefilter, KeyBloomDownsample, KeyBloomUpsample, KeyBloomCombine,
		KeyCompose,
	}
	if !slices.Equal(gpu.registered, want) {
		t.Errorf("registered = %v, want %v", gpu.registered, want)
	}
}

func TestTickBeforeSetup(t *testing.T) {
	f := NewFrame(&recordingGPU{width: 1, height: 1})
	if err := f.Tick(testInputs()); !errors.Is(err, ErrNotSetUp) {
		t.Errorf("Tick() error = %v, want ErrNotSetUp", err)
	}
}

func TestTickSkipsWithoutWork(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		in            *Inputs
	}{
		{"nil inputs", 320, 180, nil},
		{"no cameras", 320, 180, &Inputs{}},
		{"zero width surface", 0, 180, testInputs()},
		{"zero height surface", 320, 0, testInputs()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpu := &recordingGPU{width: tt.width, height: tt.height, samples: renderer.MSAAOff}
			f := newSetUpFrame(t, gpu)
			if err := f.Tick(tt.in); err != nil {
				t.Fatalf("Tick() error = %v", err)
			}
			if len(gpu.calls) != 0 {
				t.Errorf("encoded %v, want nothing", gpu.calls)
			}
			if !f.Stats().Skipped {
				t.Error("Stats().Skipped = false, want true")
			}
		})
	}
}

func TestTickPassOrder(t *testing.T) {
	gpu := &recordingGPU{width: 320, height: 180, samples: renderer.MSAA4x}
	f := newSetUpFrame(t, gpu)
	if err := f.Tick(testInputs()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	order := []string{
		"DispatchCompute " + KeyLightCull,
		"BeginShadowFrame",
		"ShadowDrawCall " + KeyShadowDepth,
		"EndShadowFrame",
		"BeginFrame",
		"BeginRenderPass Forward",
		"DrawCall " + KeyForward,
		"DrawFullscreen " + KeyBloomPrefilter,
		"DrawFullscreen " + KeyBloomDownsample,
		"DrawFullscreen " + KeyBloomUpsample,
		"DrawFullscreen " + KeyBloomCombine,
		"BeginRenderPass Compose",
		"DrawFullscreen " + KeyCompose,
		"EndFrame",
		"Present",
	}
	last := -1
	for _, name := range order {
		i := gpu.index(name)
		if i < 0 {
			t.Fatalf("%q was never encoded; calls = %v", name, gpu.calls)
		}
		if i <= last {
			t.Errorf("%q encoded at %d, before the previous pass at %d", name, i, last)
		}
		last = i
	}

	s := f.Stats()
	if s.Skipped || s.Lights != 2 || s.StaticBatches != 1 || s.BloomLevels != 3 {
		t.Errorf("Stats() = %+v", s)
	}
	if s.Pages == 0 {
		t.Error("Stats().Pages = 0, want the sun's pages")
	}
}

func TestTickDrawsShadowPagesWithOffsets(t *testing.T) {
	gpu := &recordingGPU{width: 320, height: 180, samples: renderer.MSAAOff}
	f := newSetUpFrame(t, gpu)
	if err := f.Tick(testInputs()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	pages := f.Stats().Pages
	if got := gpu.count("SetShadowViewport"); got != pages {
		t.Errorf("viewports = %d, want one per page (%d)", got, pages)
	}
	var offsets []uint32
	for _, d := range gpu.draws {
		if d.shadow {
			offsets = append(offsets, d.pageOffset)
			if d.groupsPerDraw != 2 {
				t.Errorf("shadow draw bound %d groups, want 2", d.groupsPerDraw)
			}
		}
	}
	slices.Sort(offsets)
	for i, off := range offsets {
		if off != uint32(i)*256 {
			t.Fatalf("page offsets = %v, want consecutive 256-byte windows", offsets)
		}
	}
}

func TestTickCPUCullingUploadsLists(t *testing.T) {
	gpu := &recordingGPU{width: 320, height: 180, samples: renderer.MSAAOff}
	f := newSetUpFrame(t, gpu, WithCPUCulling(true))
	in := testInputs()
	if err := f.Tick(in); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if gpu.index("DispatchCompute") >= 0 {
		t.Error("light cull dispatched with CPU culling enabled")
	}

	want := light.CullLights(newTestPool(t), in.Lights, []common.Frustum{in.Cameras[0].Frustum()}, light.DefaultMaxLightsPerCamera)
	fr := f.(*frame)
	var counts []byte
	for _, w := range gpu.writes {
		if w.Provider == fr.res.cull && w.Binding == cullCounts {
			counts = w.Data
		}
	}
	if len(counts) < 4 {
		t.Fatalf("visible counts were not uploaded")
	}
	if got := binary.LittleEndian.Uint32(counts); got != want.Counts[0] {
		t.Errorf("uploaded count = %d, want %d", got, want.Counts[0])
	}
	if !f.Stats().CPUCulled {
		t.Error("Stats().CPUCulled = false after CPU culling")
	}
	if f.Stats().VisibleLights != light.ClampCount(want.Counts[0], light.DefaultMaxLightsPerCamera) {
		t.Errorf("Stats().VisibleLights = %d, want %d", f.Stats().VisibleLights, want.Counts[0])
	}
}

func TestTickGPUCullingZeroesCounts(t *testing.T) {
	gpu := &recordingGPU{width: 320, height: 180, samples: renderer.MSAAOff}
	f := newSetUpFrame(t, gpu)
	if err := f.Tick(testInputs()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if st := f.Stats(); st.CPUCulled || st.VisibleLights != 0 {
		t.Errorf("Stats() = %+v, want no visible light count on the GPU path", st)
	}
	fr := f.(*frame)
	for _, w := range gpu.writes {
		if w.Provider == fr.res.cull && w.Binding == cullCounts {
			if len(w.Data) != MaxCameras*4 || slices.ContainsFunc(w.Data, func(b byte) bool { return b != 0 }) {
				t.Errorf("counts write = %v, want %d zero bytes", w.Data, MaxCameras*4)
			}
			return
		}
	}
	t.Error("visible counts were not reset")
}

func TestTickSurfaceUnavailable(t *testing.T) {
	gpu := &recordingGPU{width: 320, height: 180, samples: renderer.MSAAOff, beginFrameErr: errors.New("lost")}
	f := newSetUpFrame(t, gpu)
	if err := f.Tick(testInputs()); err != nil {
		t.Fatalf("Tick() error = %v, want nil for a skipped frame", err)
	}
	if gpu.index("BeginRenderPass") >= 0 || gpu.index("Present") >= 0 {
		t.Errorf("encoded after a failed BeginFrame: %v", gpu.calls)
	}
}

func TestTickReusesSizedTargets(t *testing.T) {
	gpu := &recordingGPU{width: 320, height: 180, samples: renderer.MSAA4x}
	f := newSetUpFrame(t, gpu)
	in := testInputs()
	if err := f.Tick(in); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	created := len(gpu.targets)
	if err := f.Tick(in); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(gpu.targets) != created {
		t.Errorf("second frame created %d targets, want none", len(gpu.targets)-created)
	}

	gpu.width, gpu.height = 640, 360
	if err := f.Tick(in); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(gpu.targets) == created {
		t.Error("resize did not recreate the forward targets")
	}
}

func TestPlanBloom(t *testing.T) {
	tests := []struct {
		name      string
		prefilter postprocess.PrefilterMode
		mips      int
		keys      []string
	}{
		{
			name:      "tent9",
			prefilter: postprocess.PrefilterTent9,
			mips:      3,
			keys: []string{
				KeyBloomPrefilter,
				KeyBloomDownsample, KeyBloomDownsample,
				KeyBloomUpsample, KeyBloomUpsample,
				KeyBloomCombine,
			},
		},
		{
			name:      "gaussian",
			prefilter: postprocess.PrefilterGaussian,
			mips:      2,
			keys: []string{
				KeyBloomPrefilter, KeyBloomPrefilter,
				KeyBloomDownsample,
				KeyBloomUpsample,
				KeyBloomCombine,
			},
		},
		{
			name:      "single level",
			prefilter: postprocess.PrefilterTent9,
			mips:      1,
			keys:      []string{KeyBloomPrefilter, KeyBloomCombine},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := postprocess.BloomSettings{Enabled: true, MipCount: tt.mips, Prefilter: tt.prefilter}
			steps := planBloom(640, 360, s)
			var keys []string
			for _, st := range steps {
				keys = append(keys, st.key)
			}
			if !slices.Equal(keys, tt.keys) {
				t.Fatalf("keys = %v, want %v", keys, tt.keys)
			}

			sizes := postprocess.MipSizes(640, 360, tt.mips)
			for _, st := range steps {
				if st.target == "down0" && st.size != sizes[0] {
					t.Errorf("down0 size = %v, want %v", st.size, sizes[0])
				}
			}
			if first := steps[0]; first.source != targetScene || !first.applyThreshold {
				t.Errorf("first step = %+v, want thresholded scene source", first)
			}
			if combine := steps[len(steps)-1]; combine.target != targetBloom || combine.size != sizes[0] {
				t.Errorf("combine step = %+v", combine)
			}
		})
	}
}

func TestPlanBloomUpsampleChain(t *testing.T) {
	steps := planBloom(640, 360, postprocess.BloomSettings{Enabled: true, MipCount: 3})
	var ups []bloomStep
	for _, st := range steps {
		if st.key == KeyBloomUpsample {
			ups = append(ups, st)
		}
	}
	if len(ups) != 2 {
		t.Fatalf("upsample steps = %d, want 2", len(ups))
	}
	if ups[0].source != "down1" || ups[0].secondary != "down2" || ups[0].target != "up1" {
		t.Errorf("first upsample = %+v", ups[0])
	}
	if ups[1].source != "down0" || ups[1].secondary != "up1" || ups[1].target != "up0" {
		t.Errorf("second upsample = %+v", ups[1])
	}
	if ups[0].texelSize != [2]float32{1.0 / 80, 1.0 / 45} {
		t.Errorf("first upsample texel = %v, want the coarser level's", ups[0].texelSize)
	}
}

func TestPlanBloomInactive(t *testing.T) {
	if steps := planBloom(640, 360, postprocess.BloomSettings{MipCount: 4}); steps != nil {
		t.Errorf("disabled bloom planned %d steps", len(steps))
	}
	if steps := planBloom(640, 360, postprocess.BloomSettings{Enabled: true}); steps != nil {
		t.Errorf("zero-level bloom planned %d steps", len(steps))
	}
}

func TestBuildBatches(t *testing.T) {
	cube, sphere := testMesh("cube"), testMesh("sphere")
	empty := model.NewModel(model.WithName("empty"))
	instances := []model.Instance{
		{Model: cube, CastsShadow: true},
		{Model: sphere},
		{Model: cube, CastsShadow: true, Outlined: true},
		{Model: empty},
		{Model: nil},
		{Model: cube},
		{Model: sphere},
	}

	set := buildBatches(instances)
	want := []batch{
		{mesh: cube.MeshProvider(), first: 0, count: 2, castsShadow: true},
		{mesh: sphere.MeshProvider(), first: 2, count: 2},
		{mesh: cube.MeshProvider(), first: 4, count: 1},
	}
	if !slices.Equal(set.batches, want) {
		t.Errorf("batches = %+v, want %+v", set.batches, want)
	}
	if len(set.models) != 5 {
		t.Errorf("models = %d, want 5", len(set.models))
	}
	if !set.outlined {
		t.Error("outlined = false, want true")
	}
	if set.models[1].FlagsBones[0]&model.FlagOutlined == 0 {
		t.Error("second cube instance lost its outline flag")
	}
}

func TestBuildBatchesCapsInstances(t *testing.T) {
	cube := testMesh("cube")
	instances := make([]model.Instance, MaxInstances+10)
	for i := range instances {
		instances[i] = model.Instance{Model: cube}
	}
	set := buildBatches(instances)
	if len(set.models) != MaxInstances {
		t.Errorf("models = %d, want %d", len(set.models), MaxInstances)
	}
	if len(set.batches) != 1 || set.batches[0].count != MaxInstances {
		t.Errorf("batches = %+v", set.batches)
	}
}

func TestInputsCameraClamp(t *testing.T) {
	cams := []camera.Camera{testCamera(), testCamera()}
	tests := []struct {
		active int
		want   int
	}{
		{0, 0},
		{1, 1},
		{2, 0},
		{-1, 0},
	}
	for _, tt := range tests {
		in := &Inputs{Cameras: cams, ActiveCamera: tt.active}
		if got := in.camera(); got != tt.want {
			t.Errorf("camera() with ActiveCamera %d = %d, want %d", tt.active, got, tt.want)
		}
	}
}

func TestMarshalUint32s(t *testing.T) {
	if got := marshalUint32s(nil); len(got) != 4 {
		t.Errorf("empty = %d bytes, want 4", len(got))
	}
	got := marshalUint32s([]uint32{1, 0x01020304})
	if binary.LittleEndian.Uint32(got[0:]) != 1 || binary.LittleEndian.Uint32(got[4:]) != 0x01020304 {
		t.Errorf("marshalUint32s = %v", got)
	}
}

func TestBuildPipelinesWithValidation(t *testing.T) {
	pipelines, err := buildPipelines(true)
	if err != nil {
		t.Fatalf("buildPipelines(true) error = %v", err)
	}
	for _, spec := range pipelineSpecs() {
		if pipelines[spec.key] == nil {
			t.Errorf("pipeline %s missing", spec.key)
		}
	}
}
