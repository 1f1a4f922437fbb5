package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxGPULights is the maximum number of lights that can be marshaled into the
// GPU storage buffer per frame. Lights beyond this budget are dropped by the registry
// in submission order.
const MaxGPULights = 1024

// GPULightSource is the canonical WGSL definition of the Light struct.
// Matches GPULight layout exactly (288 bytes, std430 aligned).
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct layout exactly (see GPULightSource).
// Size: 288 bytes (std430 / WGSL aligned).
type GPULight struct {
	Position       [4]float32  // offset   0: world-space position, w = 1
	Direction      [4]float32  // offset  16: normalized direction, w = 0
	Color          [4]float32  // offset  32: RGB color (sky color for hemispheric)
	GroundColor    [4]float32  // offset  48: RGB ground color (hemispheric)
	View           [16]float32 // offset  64: shadow view matrix
	Projection     [16]float32 // offset 128: shadow projection matrix
	ViewProj       [16]float32 // offset 192: shadow view-projection matrix
	IntensityRange [4]float32  // offset 256: x intensity, y radius, z cos inner, w cos outer
	KindFlags      [4]uint32   // offset 272: x kind, y flags (bit 0 casts shadow)
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (288)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 288-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, g.Size())
	putVec4(buf[0:], g.Position)
	putVec4(buf[16:], g.Direction)
	putVec4(buf[32:], g.Color)
	putVec4(buf[48:], g.GroundColor)
	putMat4(buf[64:], g.View)
	putMat4(buf[128:], g.Projection)
	putMat4(buf[192:], g.ViewProj)
	putVec4(buf[256:], g.IntensityRange)
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[272+i*4:], g.KindFlags[i])
	}
	return buf
}

// Kind returns the light type encoded in kind_flags.x.
func (g *GPULight) Kind() LightType {
	return LightType(g.KindFlags[0])
}

// CastsShadow reports whether flag bit 0 is set.
func (g *GPULight) CastsShadow() bool {
	return g.KindFlags[1]&FlagCastsShadow != 0
}

// Radius returns the influence radius used for culling.
func (g *GPULight) Radius() float32 {
	return g.IntensityRange[1]
}

// Center returns the world-space position used as the culling sphere center.
func (g *GPULight) Center() [3]float32 {
	return [3]float32{g.Position[0], g.Position[1], g.Position[2]}
}

// GPUCullUniformsSource is the canonical WGSL definition of the CullUniforms struct.
// Matches GPUCullUniforms layout exactly (16 bytes).
//
//go:embed assets/light_cull_uniforms.wgsl
var GPUCullUniformsSource string

// GPUCullUniforms holds the per-frame parameters of the light culling compute pass.
// Matches the WGSL CullUniforms struct layout exactly (see GPUCullUniformsSource).
// Size: 16 bytes.
type GPUCullUniforms struct {
	LightCount         uint32 // offset  0: number of lights in the light buffer
	CameraCount        uint32 // offset  4: number of frustums in the frustum buffer
	MaxLightsPerCamera uint32 // offset  8: row stride and cap of visible_indices
	_pad               uint32 // offset 12: padding to 16-byte alignment
}

// Size returns the size of the GPUCullUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (u *GPUCullUniforms) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the GPUCullUniforms struct into a byte buffer suitable for
// GPU uniform upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (u *GPUCullUniforms) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], u.LightCount)
	binary.LittleEndian.PutUint32(buf[4:8], u.CameraCount)
	binary.LittleEndian.PutUint32(buf[8:12], u.MaxLightsPerCamera)
	binary.LittleEndian.PutUint32(buf[12:16], 0) // padding
	return buf
}

// ToGPULight converts a Light into its GPU-aligned representation. Shadow matrices
// are filled only for shadow-casting lights whose kind has a shadow projection;
// the casts-shadow flag is cleared otherwise.
//
// Parameters:
//   - l: the light to convert
//   - focus: world-space center used for directional shadow volumes
//
// Returns:
//   - GPULight: the GPU-aligned light
func ToGPULight(l Light, focus [3]float32) GPULight {
	g := GPULight{
		Position:       l.Position().Vec4(1),
		Direction:      l.Direction().Vec4(0),
		Color:          l.Color().Vec4(1),
		GroundColor:    l.GroundColor().Vec4(1),
		IntensityRange: [4]float32{l.Intensity(), l.Range(), l.InnerCone(), l.OuterCone()},
		KindFlags:      [4]uint32{uint32(l.Type()), 0, 0, 0},
	}
	if l.CastsShadows() {
		if view, proj, vp, ok := ShadowMatrices(l, focus); ok {
			g.View, g.Projection, g.ViewProj = view, proj, vp
			g.KindFlags[1] |= FlagCastsShadow
		}
	}
	return g
}

// MarshalLights packs a slice of GPU lights into one contiguous storage buffer payload.
// An empty slice yields a single zeroed light so the storage binding is never empty.
//
// Parameters:
//   - lights: the lights to pack
//
// Returns:
//   - []byte: the packed lights
func MarshalLights(lights []GPULight) []byte {
	if len(lights) == 0 {
		var zero GPULight
		return zero.Marshal()
	}
	out := make([]byte, 0, len(lights)*lights[0].Size())
	for i := range lights {
		out = append(out, lights[i].Marshal()...)
	}
	return out
}

func putVec4(buf []byte, v [4]float32) {
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v[i]))
	}
}

func putMat4(buf []byte, m [16]float32) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(m[i]))
	}
}
