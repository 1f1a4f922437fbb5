package light

import (
	"math"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultShadowHalfExtent is the default orthographic half-extent (in world units)
// used for the directional light shadow frustum. Controls how much of the scene
// around the focus point is captured by the light's virtual shadow map.
const DefaultShadowHalfExtent float32 = 40.0

// DefaultShadowNear is the default near plane for light shadow projections.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the default far plane for directional light shadow projections.
// Spot and point lights use their influence radius instead.
const DefaultShadowFar float32 = 200.0

// pointShadowFov is the vertical field of view used for a point light's single
// shadow projection along its direction.
const pointShadowFov = math.Pi / 2

// ShadowMatrices computes the view, projection and combined view-projection matrices
// of a shadow-casting light.
//
// Directional lights use an orthographic volume centered on the focus point (typically
// the active camera position) looking along the light direction. Spot lights use a
// perspective whose field of view covers the outer cone and whose far plane is the
// influence radius. Point lights use a single 90 degree perspective along their direction.
// Other kinds have no shadow projection.
//
// Parameters:
//   - l: the light
//   - focus: world-space center of directional shadow volumes
//
// Returns:
//   - view: the light view matrix
//   - proj: the light projection matrix
//   - viewProj: proj * view
//   - ok: false if the light kind has no shadow projection
func ShadowMatrices(l Light, focus [3]float32) (view, proj, viewProj [16]float32, ok bool) {
	dir := l.Direction()
	if dir.Len() == 0 {
		dir = mgl32.Vec3{0, -1, 0}
	}
	vol := l.ShadowVolume()
	extent, near, far := vol.HalfExtent, vol.Near, vol.Far

	// Choose a stable up vector that isn't parallel to the light direction.
	up := mgl32.Vec3{0, 1, 0}
	if mgl32.Abs(dir.Y()) > 0.99 {
		up = mgl32.Vec3{1, 0, 0}
	}

	switch l.Type() {
	case LightTypeDirectional:
		// Position the eye behind the focus, opposite the light direction, so the
		// volume spans [near, far] centered on the focus.
		center := mgl32.Vec3(focus)
		eye := center.Sub(dir.Mul(far * 0.5))
		common.LookAt(view[:], eye, center, up)
		common.Orthographic(proj[:], -extent, extent, -extent, extent, near, far)
	case LightTypeSpot, LightTypePoint:
		p := l.Position()
		common.LookAt(view[:], p, p.Add(dir), up)
		fov := float32(pointShadowFov)
		if l.Type() == LightTypeSpot {
			outer := common.Clamp(l.OuterCone(), -1, 1)
			fov = common.Clamp(2*float32(math.Acos(float64(outer))), 0.01, math.Pi-0.01)
		}
		spotFar := l.Range()
		if spotFar <= near {
			spotFar = near + 1
		}
		common.Perspective(proj[:], fov, 1, near, spotFar)
	default:
		return view, proj, viewProj, false
	}

	common.Mul4(viewProj[:], proj[:], view[:])
	return view, proj, viewProj, true
}
