package common

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Matrices are handed to the GPU as flat column-major [16]float32 arrays, the same memory
// layout as mgl32.Mat4. The helpers below write into such slices.

// glToWebGPUDepth remaps OpenGL clip depth [-w, w] onto the WebGPU range [0, w].
var glToWebGPUDepth = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

func toMat4(m []float32) mgl32.Mat4 {
	var out mgl32.Mat4
	copy(out[:], m)
	return out
}

// Identity resets a 4x4 matrix to identity.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	ident := mgl32.Ident4()
	copy(m, ident[:])
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// The returned slice shares memory with the input.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(unsafe.Sizeof(zero))*len(data))
}

// Mul4 stores a * b in out. out may alias a or b.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	m := toMat4(a).Mul4(toMat4(b))
	copy(out, m[:])
}

// Perspective writes a right-handed perspective projection with depth in [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	m := glToWebGPUDepth.Mul4(mgl32.Perspective(fovY, aspect, near, far))
	copy(out, m[:])
}

// Orthographic writes an orthographic projection with depth in [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - left, right, bottom, top: view volume extents
//   - near, far: depth range (far must differ from near)
func Orthographic(out []float32, left, right, bottom, top, near, far float32) {
	m := glToWebGPUDepth.Mul4(mgl32.Ortho(left, right, bottom, top, near, far))
	copy(out, m[:])
}

// ComposeTRS writes the model matrix T * R * S.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - t: translation in world space
//   - q: rotation quaternion (x, y, z, w), expected to be normalized
//   - s: scale factors along each axis
func ComposeTRS(out []float32, t [3]float32, q [4]float32, s [3]float32) {
	rot := mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}
	m := mgl32.Translate3D(t[0], t[1], t[2]).Mul4(rot.Mat4()).Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	copy(out, m[:])
}

// CropToCell builds a matrix that scales and translates NDC so that one cell of a
// grid x grid subdivision of the [-1, 1] square fills the whole clip range. Cell
// (0, 0) is the top-left cell in texture space, matching the UV mapping
// u = 0.5*x + 0.5, v = 0.5 - 0.5*y.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - grid: cells per axis (values below 1 are treated as 1)
//   - cellX, cellY: the cell coordinates in [0, grid)
func CropToCell(out []float32, grid, cellX, cellY uint32) {
	g := float32(max(grid, 1))
	// cell center in NDC, y flipped
	cx := -1 + (2*float32(cellX)+1)/g
	cy := 1 - (2*float32(cellY)+1)/g

	m := mgl32.Translate3D(-cx*g, -cy*g, 0).Mul4(mgl32.Scale3D(g, g, 1))
	copy(out, m[:])
}

// TransformVec4 returns m * v.
func TransformVec4(m []float32, v [4]float32) [4]float32 {
	return toMat4(m).Mul4x1(v)
}

// LookAt writes a right-handed view matrix for an eye looking at center. An eye placed on
// its target looks down -Z.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eye: camera position in world space
//   - center: target point the camera looks at
//   - up: up vector, must not be parallel to center - eye
func LookAt(out []float32, eye, center, up mgl32.Vec3) {
	if center.ApproxEqual(eye) {
		center = eye.Sub(mgl32.Vec3{0, 0, 1})
	}
	m := mgl32.LookAtV(eye, center, up)
	copy(out, m[:])
}
