package light

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source. The numeric values are written to
// kind_flags.x and must match the constants in the WGSL shaders.
type LightType uint32

const (
	// LightTypeDirectional has a direction and no position, with infinite extent.
	LightTypeDirectional LightType = iota

	// LightTypePoint emits in all directions and fades out at its radius.
	LightTypePoint

	// LightTypeSpot emits in a cone along its direction, fading with distance and with the
	// angle from the cone axis.
	LightTypeSpot

	// LightTypeAmbient is a constant, direction-less contribution with infinite extent.
	LightTypeAmbient

	// LightTypeHemispheric blends between a ground color and a sky color by the surface
	// normal's vertical component. Has infinite extent.
	LightTypeHemispheric
)

// FlagCastsShadow is bit 0 of kind_flags.y: the light renders pages into the shadow atlas.
const FlagCastsShadow uint32 = 1 << 0

var lightTypeNames = [...]string{"directional", "point", "spot", "ambient", "hemispheric"}

func (t LightType) String() string {
	if int(t) < len(lightTypeNames) {
		return lightTypeNames[t]
	}
	return "unknown"
}

// Infinite reports whether lights of this type ignore frustum culling.
//
// Returns:
//   - bool: true for directional, ambient and hemispheric lights
func (t LightType) Infinite() bool {
	switch t {
	case LightTypeDirectional, LightTypeAmbient, LightTypeHemispheric:
		return true
	}
	return false
}

// ShadowVolume bounds the shadow projection of a light. HalfExtent is the orthographic
// half-size of a directional light's volume in world units; spot and point lights use
// their radius as the far plane instead of Far.
type ShadowVolume struct {
	HalfExtent float32
	Near       float32
	Far        float32
}

// DefaultShadowVolume is the shadow volume of a new light.
var DefaultShadowVolume = ShadowVolume{
	HalfExtent: DefaultShadowHalfExtent,
	Near:       DefaultShadowNear,
	Far:        DefaultShadowFar,
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	lightType LightType
	position  mgl32.Vec3
	direction mgl32.Vec3
	sky       mgl32.Vec3
	ground    mgl32.Vec3
	intensity float32
	radius    float32

	// cosines of the spot half-angles
	cosInner float32
	cosOuter float32

	enabled bool
	shadows bool
	volume  ShadowVolume
}

// Light is the host-side description of a light source. Lights are packed into the GPU light
// buffer once per frame and never written by the GPU. Properties a kind does not use, such
// as the cone of a point light, are carried but ignored.
type Light interface {
	Type() LightType

	// Position returns the world-space position. Infinite lights ignore it.
	Position() mgl32.Vec3

	// Direction returns the unit direction light travels in: the light direction of a
	// directional light and the cone axis of a spot light.
	Direction() mgl32.Vec3

	// Color returns the linear RGB color, the sky color of a hemispheric light.
	Color() mgl32.Vec3

	// GroundColor returns the ground color of a hemispheric light.
	GroundColor() mgl32.Vec3

	Intensity() float32

	// Range returns the influence radius used for culling and distance falloff. A finite
	// light with a radius <= 0 never lights anything.
	Range() float32

	// InnerCone returns the cosine of the spot half-angle with full intensity.
	InnerCone() float32

	// OuterCone returns the cosine of the spot half-angle where intensity reaches zero.
	OuterCone() float32

	// Enabled reports whether the light is submitted this frame.
	Enabled() bool

	// CastsShadows reports whether the light renders into the shadow atlas.
	CastsShadows() bool

	// ShadowVolume returns the bounds of the light's shadow projection.
	ShadowVolume() ShadowVolume

	SetPosition(p mgl32.Vec3)

	// SetDirection sets the direction, normalized. A zero vector is kept as is and treated
	// as straight down when a shadow projection is built.
	SetDirection(d mgl32.Vec3)

	SetColor(c mgl32.Vec3)
	SetGroundColor(c mgl32.Vec3)
	SetIntensity(intensity float32)
	SetRange(radius float32)

	// SetSpotCone sets the inner and outer spot half-angles in degrees.
	//
	// Parameters:
	//   - innerDeg: half-angle up to which the light is at full strength
	//   - outerDeg: half-angle at which the light reaches zero
	SetSpotCone(innerDeg, outerDeg float32)

	SetEnabled(enabled bool)
	SetCastsShadows(castsShadows bool)
	SetShadowVolume(v ShadowVolume)
}

var _ Light = &lightImpl{}

// NewLight creates an enabled white light of intensity 1 and radius 10 pointing down, with
// a 25/35 degree spot cone and no shadows, then applies opts.
//
// Parameters:
//   - lightType: the kind of light to create
//   - opts: options applied in order
//
// Returns:
//   - Light: the new light
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType: lightType,
		direction: mgl32.Vec3{0, -1, 0},
		sky:       mgl32.Vec3{1, 1, 1},
		intensity: 1,
		radius:    10,
		cosInner:  cosDeg(25),
		cosOuter:  cosDeg(35),
		enabled:   true,
		volume:    DefaultShadowVolume,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec3 {
	return l.sky
}

func (l *lightImpl) GroundColor() mgl32.Vec3 {
	return l.ground
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Range() float32 {
	return l.radius
}

func (l *lightImpl) InnerCone() float32 {
	return l.cosInner
}

func (l *lightImpl) OuterCone() float32 {
	return l.cosOuter
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) CastsShadows() bool {
	return l.shadows
}

func (l *lightImpl) ShadowVolume() ShadowVolume {
	return l.volume
}

func (l *lightImpl) SetPosition(p mgl32.Vec3) {
	l.position = p
}

func (l *lightImpl) SetDirection(d mgl32.Vec3) {
	if d.Len() == 0 {
		l.direction = d
		return
	}
	l.direction = d.Normalize()
}

func (l *lightImpl) SetColor(c mgl32.Vec3) {
	l.sky = c
}

func (l *lightImpl) SetGroundColor(c mgl32.Vec3) {
	l.ground = c
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.intensity = intensity
}

func (l *lightImpl) SetRange(radius float32) {
	l.radius = radius
}

func (l *lightImpl) SetSpotCone(innerDeg, outerDeg float32) {
	l.cosInner = cosDeg(innerDeg)
	l.cosOuter = cosDeg(outerDeg)
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.enabled = enabled
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.shadows = castsShadows
}

func (l *lightImpl) SetShadowVolume(v ShadowVolume) {
	l.volume = v
}

func cosDeg(deg float32) float32 {
	return float32(math.Cos(float64(mgl32.DegToRad(deg))))
}
