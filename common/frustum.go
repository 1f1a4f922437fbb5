package common

import (
	"math"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// Uses the Gribb/Hartmann method adjusted for the WebGPU clip volume, where z is
// in [0, w] rather than [-w, w], so the near plane is row 2 alone.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: 16 float32 values representing the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj []float32) Frustum {
	var f Frustum

	// M[row][col] lives at viewProj[col*4 + row], so row i is (m[i], m[4+i], m[8+i], m[12+i]).
	row := func(i int) [4]float32 {
		return [4]float32{viewProj[i], viewProj[4+i], viewProj[8+i], viewProj[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(index int, v [4]float32) {
		f.Planes[index] = Plane{Normal: [3]float32{v[0], v[1], v[2]}, Distance: v[3]}
	}
	set(FrustumLeft, add4(r3, r0))
	set(FrustumRight, sub4(r3, r0))
	set(FrustumBottom, add4(r3, r1))
	set(FrustumTop, sub4(r3, r1))
	set(FrustumNear, r2)
	set(FrustumFar, sub4(r3, r2))

	for i := range f.Planes {
		f.normalizePlane(i)
	}

	return f
}

// SignedDistance returns the signed distance from point p to the plane.
// Positive values are on the inside (normal-facing) half-space.
//
// Parameters:
//   - p: the world-space point
//
// Returns:
//   - float32: the signed distance
func (pl Plane) SignedDistance(p [3]float32) float32 {
	return pl.Normal[0]*p[0] + pl.Normal[1]*p[1] + pl.Normal[2]*p[2] + pl.Distance
}

// SphereVisible reports whether a bounding sphere intersects or lies inside the frustum.
// A sphere is rejected only when it is strictly more than its radius outside a plane,
// so a sphere exactly touching a plane from outside is still visible. A radius <= 0
// is never visible.
//
// Parameters:
//   - center: sphere center in world space
//   - radius: sphere radius
//
// Returns:
//   - bool: true if the sphere is potentially visible
func (f Frustum) SphereVisible(center [3]float32, radius float32) bool {
	if radius <= 0 {
		return false
	}
	for _, p := range f.Planes {
		if p.SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}

// Vec4s returns the planes packed as (nx, ny, nz, d), the layout consumed by GPU culling.
//
// Returns:
//   - [6][4]float32: the packed planes in Left, Right, Bottom, Top, Near, Far order
func (f Frustum) Vec4s() [6][4]float32 {
	var out [6][4]float32
	for i, p := range f.Planes {
		out[i] = [4]float32{p.Normal[0], p.Normal[1], p.Normal[2], p.Distance}
	}
	return out
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := float32(math.Sqrt(float64(
		p.Normal[0]*p.Normal[0] +
			p.Normal[1]*p.Normal[1] +
			p.Normal[2]*p.Normal[2],
	)))

	if length > 0 {
		invLen := 1.0 / length
		p.Normal[0] *= invLen
		p.Normal[1] *= invLen
		p.Normal[2] *= invLen
		p.Distance *= invLen
	}
}

func add4(a, b [4]float32) [4]float32 {
	return [4]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}

func sub4(a, b [4]float32) [4]float32 {
	return [4]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]}
}
