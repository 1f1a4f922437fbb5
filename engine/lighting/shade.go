package lighting

import (
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// ShadowInputs bundles the shadow resources read by the forward pass.
// A nil Atlas disables shadow sampling.
type ShadowInputs struct {
	Params shadow.GPUShadowParams
	Table  []shadow.GPUShadowPageEntry
	Atlas  shadow.DepthSampler
}

// Surface is one shaded fragment.
type Surface struct {
	// World is the world-space position.
	World mgl32.Vec3
	// Normal is the interpolated normal; it is normalized before use.
	Normal mgl32.Vec3
	// BaseColor is the vertex color multiplied by the instance base color.
	BaseColor mgl32.Vec4
	// Flags are the instance flags (model.FlagReceivesShadow, model.FlagOutlined).
	Flags uint32
}

// Shade evaluates the forward lighting of one fragment on the CPU, mirroring the
// fragment stage of ForwardShaderSource.
//
// Parameters:
//   - params: the forward parameters
//   - lights: the frame's packed lights
//   - visible: the clamped visible-light indices of the shaded camera
//   - sh: the shadow resources
//   - s: the fragment
//
// Returns:
//   - mgl32.Vec4: the lit HDR color
func Shade(params GPUForwardParams, lights []light.GPULight, visible []uint32, sh ShadowInputs, s Surface) mgl32.Vec4 {
	base := s.BaseColor.Vec3()
	if len(visible) == 0 {
		return base.Mul(params.NearBlack).Vec4(s.BaseColor.W())
	}

	n := s.Normal.Normalize()
	receives := s.Flags&model.FlagReceivesShadow != 0
	var total mgl32.Vec3
	for _, idx := range visible {
		if int(idx) >= len(lights) {
			continue
		}
		total = total.Add(contribution(&lights[idx], idx, n, s.World, receives, sh))
	}

	lit := mgl32.Vec3{params.Epsilon, params.Epsilon, params.Epsilon}.Add(total)
	return mgl32.Vec3{base[0] * lit[0], base[1] * lit[1], base[2] * lit[2]}.Vec4(s.BaseColor.W())
}

// Outline returns the outline mask written to the second render target.
//
// Parameters:
//   - flags: the instance flags
//
// Returns:
//   - mgl32.Vec4: alpha 1 for outlined instances, 0 otherwise
func Outline(flags uint32) mgl32.Vec4 {
	if flags&model.FlagOutlined != 0 {
		return mgl32.Vec4{0, 0, 0, 1}
	}
	return mgl32.Vec4{}
}

func contribution(l *light.GPULight, index uint32, n, world mgl32.Vec3, receives bool, sh ShadowInputs) mgl32.Vec3 {
	intensity := l.IntensityRange[0]
	color := mgl32.Vec3{l.Color[0], l.Color[1], l.Color[2]}

	switch l.Kind() {
	case light.LightTypeAmbient:
		return color.Mul(intensity)
	case light.LightTypeHemispheric:
		ground := mgl32.Vec3{l.GroundColor[0], l.GroundColor[1], l.GroundColor[2]}
		t := 0.5*n.Y() + 0.5
		return ground.Mul(1 - t).Add(color.Mul(t)).Mul(intensity)
	}

	dir := mgl32.Vec3{l.Direction[0], l.Direction[1], l.Direction[2]}
	lv := dir.Mul(-1)
	attenuation := float32(1)
	if k := l.Kind(); k == light.LightTypePoint || k == light.LightTypeSpot {
		toLight := mgl32.Vec3{l.Position[0], l.Position[1], l.Position[2]}.Sub(world)
		dist := toLight.Len()
		lv = toLight.Mul(1 / max(dist, 1e-6))
		falloff := mgl32.Clamp(1-dist/max(l.Radius(), 1e-6), 0, 1)
		attenuation = falloff * falloff
		if k == light.LightTypeSpot {
			attenuation *= smoothstep(l.IntensityRange[3], l.IntensityRange[2], lv.Mul(-1).Dot(dir))
		}
	}

	ndotl := max(n.Dot(lv), 0)
	visibility := float32(1)
	if receives && l.CastsShadow() && sh.Atlas != nil {
		visibility = shadow.Factor(sh.Params, sh.Table, sh.Atlas, index, l.ViewProj, world, ndotl)
	}
	return color.Mul(intensity * ndotl * attenuation * visibility)
}

func smoothstep(edge0, edge1, x float32) float32 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := mgl32.Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}
