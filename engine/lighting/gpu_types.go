package lighting

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// Default lighting floors.
const (
	DefaultEpsilon   float32 = 0.02
	DefaultNearBlack float32 = 0.02
)

// GPUForwardParamsSource is the canonical WGSL definition of the ForwardParams struct.
// Matches GPUForwardParams layout exactly (16 bytes).
//
//go:embed assets/forward_params.wgsl
var GPUForwardParamsSource string

// forwardCommonSource holds the bindings and fragment stage shared by both forward variants.
//
//go:embed assets/forward_common.wgsl
var forwardCommonSource string

//go:embed assets/forward_vertex.wgsl
var forwardVertexSource string

//go:embed assets/forward_vertex_skinned.wgsl
var forwardVertexSkinnedSource string

// ForwardShaderSource is the forward lighting shader for static geometry.
var ForwardShaderSource = forwardCommonSource + "\n" + forwardVertexSource

// ForwardSkinnedShaderSource is the forward lighting shader for skinned geometry.
var ForwardSkinnedShaderSource = forwardCommonSource + "\n" + forwardVertexSkinnedSource

// GPUForwardParams holds the per-frame parameters of the forward lighting pass.
// Matches the WGSL ForwardParams struct layout exactly (see GPUForwardParamsSource).
// Size: 16 bytes.
type GPUForwardParams struct {
	Epsilon            float32 // offset  0: additive floor applied when lights are visible
	NearBlack          float32 // offset  4: multiplier applied when no light is visible
	MaxLightsPerCamera uint32  // offset  8: row stride and cap of the visible lists
	CameraIndex        uint32  // offset 12: row of the shaded camera
}

// Size returns the size of the GPUForwardParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (p *GPUForwardParams) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes the GPUForwardParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (p *GPUForwardParams) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.Epsilon))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.NearBlack))
	binary.LittleEndian.PutUint32(buf[8:12], p.MaxLightsPerCamera)
	binary.LittleEndian.PutUint32(buf[12:16], p.CameraIndex)
	return buf
}
