package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraKind selects the projection model used by a camera.
type CameraKind uint32

const (
	// CameraKindPerspective uses a symmetric perspective projection.
	CameraKindPerspective CameraKind = iota
	// CameraKindOrthographic uses an orthographic projection sized by OrthoHeight.
	CameraKindOrthographic
)

type cameraImpl struct {
	mu *sync.Mutex

	kind  CameraKind
	flags uint32

	position [3]float32
	forward  [3]float32
	up       [3]float32

	fov         float32
	aspect      float32
	near        float32
	far         float32
	orthoHeight float32

	viewMatrix           [16]float32
	projectionMatrix     [16]float32
	viewProjectionMatrix [16]float32
	frustum              common.Frustum
}

// Camera defines one viewport camera. The host places it with SetPosition/SetForward (or LookAt)
// and the camera keeps its view, projection and view-projection matrices and frustum planes in
// sync after every mutation.
type Camera interface {
	// Kind returns the projection model.
	//
	// Returns:
	//   - CameraKind: perspective or orthographic
	Kind() CameraKind

	// Flags returns the host-defined flag bits carried to the GPU in kind_flags.y.
	//
	// Returns:
	//   - uint32: the flag bits
	Flags() uint32

	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - [3]float32: the position
	Position() [3]float32

	// Forward returns the normalized view direction.
	//
	// Returns:
	//   - [3]float32: the view direction
	Forward() [3]float32

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - [3]float32: the up vector
	Up() [3]float32

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns the current combined view-projection matrix (column-major).
	//
	// Returns:
	//   - [16]float32: the combined view-projection matrix
	ViewProjectionMatrix() [16]float32

	// Frustum returns the normalized frustum planes extracted from the view-projection matrix.
	//
	// Returns:
	//   - common.Frustum: the camera frustum
	Frustum() common.Frustum

	// GPU returns the camera packed in its GPU layout.
	//
	// Returns:
	//   - GPUCamera: the GPU representation
	GPU() GPUCamera

	// GPUFrustum returns the frustum planes packed in their GPU layout.
	//
	// Returns:
	//   - GPUFrustum: the GPU representation of the frustum
	GPUFrustum() GPUFrustum

	// SetPosition moves the camera.
	//
	// Parameters:
	//   - x, y, z: world-space position
	SetPosition(x, y, z float32)

	// SetForward points the camera along a direction. Zero vectors are ignored.
	//
	// Parameters:
	//   - x, y, z: view direction (normalized internally)
	SetForward(x, y, z float32)

	// LookAt points the camera at a world-space target.
	//
	// Parameters:
	//   - x, y, z: the target point
	LookAt(x, y, z float32)

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - x, y, z: up vector components
	SetUp(x, y, z float32)

	// SetFov sets the vertical field of view in radians.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height). Called by the host on viewport resize.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetClip sets the near and far clipping plane distances.
	//
	// Parameters:
	//   - near: near plane distance
	//   - far: far plane distance
	SetClip(near, far float32)

	// SetFlags replaces the host-defined flag bits.
	//
	// Parameters:
	//   - flags: the new flag bits
	SetFlags(flags uint32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new perspective Camera at the origin looking down -Z.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:          &sync.Mutex{},
		kind:        CameraKindPerspective,
		forward:     [3]float32{0, 0, -1},
		up:          [3]float32{0, 1, 0},
		fov:         mgl32.DegToRad(45),
		aspect:      1.0,
		near:        0.1,
		far:         100.0,
		orthoHeight: 10.0,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Kind() CameraKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind
}

func (c *cameraImpl) Flags() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

func (c *cameraImpl) Position() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Forward() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forward
}

func (c *cameraImpl) Up() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *cameraImpl) GPU() GPUCamera {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GPUCamera{
		Position:   [4]float32{c.position[0], c.position[1], c.position[2], 1},
		Forward:    [4]float32{c.forward[0], c.forward[1], c.forward[2], 0},
		Up:         [4]float32{c.up[0], c.up[1], c.up[2], 0},
		NearFar:    [4]float32{c.near, c.far, c.aspect, c.fov},
		KindFlags:  [4]uint32{uint32(c.kind), c.flags, 0, 0},
		Projection: c.projectionMatrix,
		View:       c.viewMatrix,
		ViewProj:   c.viewProjectionMatrix,
	}
}

func (c *cameraImpl) GPUFrustum() GPUFrustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GPUFrustum{Planes: c.frustum.Vec4s()}
}

func (c *cameraImpl) SetPosition(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetForward(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setForward(x, y, z)
	c.updateMatrices()
}

func (c *cameraImpl) LookAt(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setForward(x-c.position[0], y-c.position[1], z-c.position[2])
	c.updateMatrices()
}

func (c *cameraImpl) SetUp(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetClip(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SetFlags(flags uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = flags
}

// setForward normalizes and stores a view direction. Caller must hold the mutex.
func (c *cameraImpl) setForward(x, y, z float32) {
	f := mgl32.Vec3{x, y, z}
	if f.Len() == 0 {
		return
	}
	c.forward = f.Normalize()
}

// updateMatrices recalculates the view, projection and view-projection matrices and the frustum.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	eye := mgl32.Vec3(c.position)
	common.LookAt(c.viewMatrix[:], eye, eye.Add(c.forward), c.up)

	switch c.kind {
	case CameraKindOrthographic:
		halfH := c.orthoHeight / 2
		halfW := halfH * c.aspect
		common.Orthographic(c.projectionMatrix[:], -halfW, halfW, -halfH, halfH, c.near, c.far)
	default:
		common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	}

	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
	c.frustum = common.ExtractFrustumFromMatrix(c.viewProjectionMatrix[:])
}
