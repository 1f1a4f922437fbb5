package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUCameraSource is the canonical WGSL definition of the Camera struct.
// Matches GPUCamera layout exactly (272 bytes, std430 aligned).
//
//go:embed assets/camera.wgsl
var GPUCameraSource string

// GPUFrustumSource is the canonical WGSL definition of the Frustum struct.
// Matches GPUFrustum layout exactly (96 bytes).
//
//go:embed assets/frustum.wgsl
var GPUFrustumSource string

// GPUCamera is the GPU-aligned representation of one camera.
// Matches the WGSL Camera struct layout exactly (see GPUCameraSource).
// Size: 272 bytes.
type GPUCamera struct {
	Position   [4]float32  // offset   0: world-space position, w = 1
	Forward    [4]float32  // offset  16: normalized view direction, w = 0
	Up         [4]float32  // offset  32: up vector, w = 0
	NearFar    [4]float32  // offset  48: x near, y far, z aspect, w vertical fov (radians)
	KindFlags  [4]uint32   // offset  64: x kind, y flags
	Projection [16]float32 // offset  80: projection matrix (mat4x4<f32>)
	View       [16]float32 // offset 144: view matrix (mat4x4<f32>)
	ViewProj   [16]float32 // offset 208: combined view-projection matrix (mat4x4<f32>)
}

// Size returns the size of the GPUCamera struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (272)
func (g *GPUCamera) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCamera struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCamera) Marshal() []byte {
	buf := make([]byte, g.Size())
	putVec4(buf[0:], g.Position)
	putVec4(buf[16:], g.Forward)
	putVec4(buf[32:], g.Up)
	putVec4(buf[48:], g.NearFar)
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], g.KindFlags[i])
	}
	putMat4(buf[80:], g.Projection)
	putMat4(buf[144:], g.View)
	putMat4(buf[208:], g.ViewProj)
	return buf
}

// GPUFrustum holds the six normalized planes of one camera as (nx, ny, nz, d).
// Plane order is Left, Right, Bottom, Top, Near, Far. Size: 96 bytes.
type GPUFrustum struct {
	Planes [6][4]float32
}

// Size returns the size of the GPUFrustum struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPUFrustum) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUFrustum struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUFrustum) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i, p := range g.Planes {
		putVec4(buf[i*16:], p)
	}
	return buf
}

// MarshalCameras packs a slice of cameras into one contiguous storage buffer payload.
//
// Parameters:
//   - cams: the cameras to pack
//
// Returns:
//   - []byte: the packed cameras, len(cams) * 272 bytes
func MarshalCameras(cams []GPUCamera) []byte {
	var zero GPUCamera
	out := make([]byte, 0, len(cams)*zero.Size())
	for i := range cams {
		out = append(out, cams[i].Marshal()...)
	}
	return out
}

// MarshalFrustums packs a slice of frustums into one contiguous storage buffer payload.
//
// Parameters:
//   - frustums: the frustums to pack
//
// Returns:
//   - []byte: the packed planes, len(frustums) * 96 bytes
func MarshalFrustums(frustums []GPUFrustum) []byte {
	var zero GPUFrustum
	out := make([]byte, 0, len(frustums)*zero.Size())
	for i := range frustums {
		out = append(out, frustums[i].Marshal()...)
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
