package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption configures a Light during NewLight.
type LightBuilderOption func(*lightImpl)

// WithPosition sets the world-space position.
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.SetPosition(mgl32.Vec3{x, y, z})
	}
}

// WithDirection sets the direction light travels in. It is normalized.
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.SetDirection(mgl32.Vec3{x, y, z})
	}
}

// WithColor sets the linear RGB color, the sky color of a hemispheric light.
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.sky = mgl32.Vec3{r, g, b}
	}
}

// WithGroundColor sets the ground color of a hemispheric light.
func WithGroundColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.ground = mgl32.Vec3{r, g, b}
	}
}

// WithIntensity sets the scalar intensity multiplier.
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithRange sets the influence radius of point and spot lights.
func WithRange(radius float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.radius = radius
	}
}

// WithSpotCone sets the inner and outer spot half-angles. The shaders compare against
// cosines, so the angles are stored as such.
//
// Parameters:
//   - innerDeg: inner half-angle in degrees
//   - outerDeg: outer half-angle in degrees
//
// Returns:
//   - LightBuilderOption: the option
func WithSpotCone(innerDeg, outerDeg float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.SetSpotCone(innerDeg, outerDeg)
	}
}

// WithEnabled sets whether the light is submitted.
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}

// WithCastsShadows sets whether the light gets pages in the shadow atlas.
func WithCastsShadows(castsShadows bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadows = castsShadows
	}
}

// WithShadowVolume sets the bounds of the shadow projection.
//
// Parameters:
//   - halfExtent: orthographic half-size in world units, directional lights only
//   - near: near plane distance
//   - far: far plane distance of a directional light
//
// Returns:
//   - LightBuilderOption: the option
func WithShadowVolume(halfExtent, near, far float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.volume = ShadowVolume{HalfExtent: halfExtent, Near: near, Far: far}
	}
}
