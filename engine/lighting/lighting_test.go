package lighting

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

func approxVec4(a, b mgl32.Vec4) bool {
	for i := range 4 {
		if math.Abs(float64(a[i]-b[i])) > 1e-5 {
			return false
		}
	}
	return true
}

func defaultParams() GPUForwardParams {
	return GPUForwardParams{Epsilon: DefaultEpsilon, NearBlack: DefaultNearBlack, MaxLightsPerCamera: 8}
}

// quad is a fragment of a floor quad facing straight up.
func quad() Surface {
	return Surface{
		World:     mgl32.Vec3{0, 0, 0},
		Normal:    mgl32.Vec3{0, 2, 0},
		BaseColor: mgl32.Vec4{0.5, 0.25, 1, 1},
	}
}

// sun points straight down at the quad.
func sun(castsShadow bool) light.GPULight {
	l := light.NewLight(light.LightTypeDirectional,
		light.WithDirection(0, -1, 0),
		light.WithColor(1, 0.5, 0.5),
		light.WithIntensity(2),
		light.WithCastsShadows(castsShadow),
		light.WithShadowVolume(4, 0.1, 20),
	)
	return light.ToGPULight(l, [3]float32{})
}

func TestShadeDirectionalQuad(t *testing.T) {
	p := defaultParams()
	got := Shade(p, []light.GPULight{sun(false)}, []uint32{0}, ShadowInputs{}, quad())

	// base * (epsilon + color * intensity * n.l) with n.l = 1
	want := mgl32.Vec4{0.5 * (0.02 + 2), 0.25 * (0.02 + 1), 1 * (0.02 + 1), 1}
	if !approxVec4(got, want) {
		t.Errorf("Shade() = %v, want %v", got, want)
	}
}

func TestShadeZeroLightsNearBlack(t *testing.T) {
	p := defaultParams()
	p.NearBlack = 0.05
	s := quad()
	got := Shade(p, []light.GPULight{sun(false)}, nil, ShadowInputs{}, s)
	want := mgl32.Vec4{0.5 * 0.05, 0.25 * 0.05, 0.05, 1}
	if !approxVec4(got, want) {
		t.Errorf("Shade() = %v, want %v", got, want)
	}
	if got == (mgl32.Vec4{0, 0, 0, 1}) || got == s.BaseColor {
		t.Error("zero lights must be neither black nor unlit")
	}
}

func TestShadeUnallocatedPageEqualsShadowDisabled(t *testing.T) {
	cfg := shadow.AtlasConfig{TileResolution: 4, AtlasTilesW: 2, AtlasTilesH: 2, AtlasLayers: 1, VirtualGridSize: 2}
	atlas := shadow.NewDepthAtlas(cfg)
	atlas.Fill(0, [4]uint32{0, 0, 8, 8}, 0)
	sh := ShadowInputs{
		Params: shadow.NewShadowParams(cfg, 0.001, 0.01),
		Table:  make([]shadow.GPUShadowPageEntry, shadow.PageTableSize),
		Atlas:  atlas,
	}

	lights := []light.GPULight{sun(true)}
	receiving := quad()
	receiving.Flags = model.FlagReceivesShadow

	withUnallocated := Shade(defaultParams(), lights, []uint32{0}, sh, receiving)
	disabled := Shade(defaultParams(), lights, []uint32{0}, ShadowInputs{}, quad())
	if withUnallocated != disabled {
		t.Errorf("unallocated page %v differs from shadow disabled %v", withUnallocated, disabled)
	}
}

func TestShadeOccludedByAllocatedPage(t *testing.T) {
	cfg := shadow.AtlasConfig{TileResolution: 4, AtlasTilesW: 4, AtlasTilesH: 4, AtlasLayers: 1, VirtualGridSize: 2}
	lights := []light.GPULight{sun(true)}
	pt := shadow.NewPageTable(cfg)
	pt.Allocate(lights)

	atlas := shadow.NewDepthAtlas(cfg)
	for _, p := range pt.Pages() {
		atlas.Fill(p.Layer, p.Rect, 0)
	}
	sh := ShadowInputs{Params: shadow.NewShadowParams(cfg, 0.001, 0.01), Table: pt.Entries(), Atlas: atlas}

	s := quad()
	s.Flags = model.FlagReceivesShadow
	got := Shade(defaultParams(), lights, []uint32{0}, sh, s)
	want := s.BaseColor.Vec3().Mul(DefaultEpsilon).Vec4(1)
	if !approxVec4(got, want) {
		t.Errorf("fully occluded Shade() = %v, want epsilon floor %v", got, want)
	}

	// The same fragment without the receive flag ignores the atlas.
	lit := Shade(defaultParams(), lights, []uint32{0}, sh, quad())
	if approxVec4(lit, want) {
		t.Error("non-receiving fragment should not be shadowed")
	}
}

func TestShadeLightKinds(t *testing.T) {
	p := GPUForwardParams{MaxLightsPerCamera: 8}
	white := mgl32.Vec4{1, 1, 1, 1}
	s := Surface{World: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}, BaseColor: white}

	tests := []struct {
		name  string
		light light.Light
		want  float32
	}{
		{"ambient ignores normal", light.NewLight(light.LightTypeAmbient, light.WithIntensity(0.3)), 0.3},
		{"hemispheric facing sky", light.NewLight(light.LightTypeHemispheric, light.WithColor(1, 1, 1), light.WithGroundColor(0, 0, 0)), 1},
		{"point at half range", light.NewLight(light.LightTypePoint, light.WithPosition(0, 2, 0), light.WithRange(4)), 0.25},
		{"point beyond range", light.NewLight(light.LightTypePoint, light.WithPosition(0, 5, 0), light.WithRange(4)), 0},
		{"spot inside cone", light.NewLight(light.LightTypeSpot, light.WithPosition(0, 1, 0), light.WithDirection(0, -1, 0), light.WithRange(100)), 0.98010004},
		{"spot outside cone", light.NewLight(light.LightTypeSpot, light.WithPosition(5, 1, 0), light.WithDirection(0, -1, 0), light.WithRange(100)), 0},
		{"directional from below", light.NewLight(light.LightTypeDirectional, light.WithDirection(0, 1, 0)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := light.ToGPULight(tt.light, [3]float32{})
			got := Shade(p, []light.GPULight{g}, []uint32{0}, ShadowInputs{}, s)
			if math.Abs(float64(got[1]-tt.want)) > 1e-4 {
				t.Errorf("Shade().g = %v, want %v", got[1], tt.want)
			}
		})
	}
}

func TestShadeSkipsOutOfRangeIndex(t *testing.T) {
	p := defaultParams()
	got := Shade(p, nil, []uint32{3}, ShadowInputs{}, quad())
	want := quad().BaseColor.Vec3().Mul(DefaultEpsilon).Vec4(1)
	if !approxVec4(got, want) {
		t.Errorf("Shade() = %v, want %v", got, want)
	}
}

func TestOutline(t *testing.T) {
	if Outline(model.FlagOutlined).W() != 1 {
		t.Error("outlined flag should write alpha 1")
	}
	if Outline(model.FlagReceivesShadow).W() != 0 {
		t.Error("non-outlined instance should write alpha 0")
	}
}

func TestForwardParamsMarshal(t *testing.T) {
	p := GPUForwardParams{Epsilon: 0.5, MaxLightsPerCamera: 7, CameraIndex: 2}
	buf := p.Marshal()
	if p.Size() != 16 || len(buf) != 16 {
		t.Fatalf("size = %d, len = %d", p.Size(), len(buf))
	}
	if buf[8] != 7 || buf[12] != 2 {
		t.Errorf("u32 fields = %d, %d", buf[8], buf[12])
	}
}
