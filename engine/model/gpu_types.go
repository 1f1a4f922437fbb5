package model

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct for static mesh pipelines.
// Matches GPUVertex layout exactly (64 bytes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is the GPU-aligned representation of a single mesh vertex for static (non-skinned) models.
// Matches the WGSL VertexInput struct layout exactly (see GPUVertexSource).
// Size: 64 bytes (tightly packed vertex attributes, no padding required).
type GPUVertex struct {
	Position [3]float32 // offset  0: vertex position in model space (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal for lighting (12 bytes)
	TexCoord [2]float32 // offset 24: UV texture coordinate (8 bytes)
	Color    [4]float32 // offset 32: per-vertex RGBA color (16 bytes)
	Tangent  [4]float32 // offset 48: tangent vector (xyz) + handedness (w) (16 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 64)
	g.put(buf)
	return buf
}

func (g *GPUVertex) put(buf []byte) {
	putFloats(buf[0:], g.Position[:])
	putFloats(buf[12:], g.Normal[:])
	putFloats(buf[24:], g.TexCoord[:])
	putFloats(buf[32:], g.Color[:])
	putFloats(buf[48:], g.Tangent[:])
}

// GPUSkinnedVertexSource is the canonical WGSL definition of the VertexInput struct for skinned mesh pipelines.
// Matches GPUSkinnedVertex layout exactly (96 bytes).
//
//go:embed assets/skinned_vertex.wgsl
var GPUSkinnedVertexSource string

// GPUSkinnedVertex is the GPU-aligned representation of a single mesh vertex for skinned models.
// It extends GPUVertex with up to four joint influences.
// Matches the WGSL VertexInput struct layout for skinned pipelines (see GPUSkinnedVertexSource).
// Size: 96 bytes (64 base vertex + 32 skinning data).
type GPUSkinnedVertex struct {
	GPUVertex              // offset  0: base vertex data (64 bytes)
	BoneIndices [4]uint32  // offset 64: palette-relative indices of up to 4 influencing bones
	BoneWeights [4]float32 // offset 80: blend weights for each bone (sum to 1.0)
}

// Size returns the size of the GPUSkinnedVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUSkinnedVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSkinnedVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload.
func (g *GPUSkinnedVertex) Marshal() []byte {
	buf := make([]byte, 96)
	g.GPUVertex.put(buf)
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], g.BoneIndices[i])
	}
	putFloats(buf[80:], g.BoneWeights[:])
	return buf
}

// ComputeBoundingRadius calculates the bounding sphere radius of a set of model-space
// positions. The radius is the maximum distance from the origin across all positions.
//
// Parameters:
//   - positions: the vertex positions
//
// Returns:
//   - float32: the maximum distance from the origin
func ComputeBoundingRadius(positions [][3]float32) float32 {
	var maxDistSq float32
	for _, p := range positions {
		distSq := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}
	return float32(math.Sqrt(float64(maxDistSq)))
}

// GPUModelSource is the canonical WGSL definition of the Model struct for per-instance data.
// Matches GPUModel layout exactly (144 bytes).
//
//go:embed assets/model.wgsl
var GPUModelSource string

// GPUModel is the GPU-aligned representation of one drawable instance.
// Matches the WGSL Model struct layout exactly (see GPUModelSource).
// Size: 144 bytes.
type GPUModel struct {
	World       [16]float32 // offset   0: model-to-world matrix
	Translation [4]float32  // offset  64: world translation, w = 1
	Rotation    [4]float32  // offset  80: rotation quaternion (x, y, z, w)
	Scale       [4]float32  // offset  96: per-axis scale, w unused
	BaseColor   [4]float32  // offset 112: RGBA base color
	FlagsBones  [4]uint32   // offset 128: x flags, y bone offset, z bone count
}

// Size returns the size of the GPUModel struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUModel) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUModel struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 144-byte buffer ready for GPU upload.
func (g *GPUModel) Marshal() []byte {
	buf := make([]byte, g.Size())
	putFloats(buf[0:], g.World[:])
	putFloats(buf[64:], g.Translation[:])
	putFloats(buf[80:], g.Rotation[:])
	putFloats(buf[96:], g.Scale[:])
	putFloats(buf[112:], g.BaseColor[:])
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[128+i*4:], g.FlagsBones[i])
	}
	return buf
}

// MarshalModels packs a slice of instances into one contiguous storage buffer payload.
// An empty slice yields a single zeroed instance so the storage binding is never empty.
//
// Parameters:
//   - models: the instances to pack
//
// Returns:
//   - []byte: the packed instances
func MarshalModels(models []GPUModel) []byte {
	if len(models) == 0 {
		var zero GPUModel
		return zero.Marshal()
	}
	out := make([]byte, 0, len(models)*models[0].Size())
	for i := range models {
		out = append(out, models[i].Marshal()...)
	}
	return out
}

// MarshalBones packs a bone palette into a storage buffer payload of mat4x4<f32> entries.
// An empty palette yields a single identity matrix so the storage binding is never empty.
//
// Parameters:
//   - bones: the skinning matrices
//
// Returns:
//   - []byte: the packed matrices
func MarshalBones(bones [][16]float32) []byte {
	if len(bones) == 0 {
		bones = [][16]float32{identity4()}
	}
	out := make([]byte, len(bones)*64)
	for i := range bones {
		putFloats(out[i*64:], bones[i][:])
	}
	return out
}

func putFloats(buf []byte, v []float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
}
