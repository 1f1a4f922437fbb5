package camera

// CameraBuilderOption configures a Camera during construction.
type CameraBuilderOption func(*cameraImpl)

// WithKind sets the camera's projection model.
//
// Parameters:
//   - kind: perspective or orthographic
//
// Returns:
//   - CameraBuilderOption: a function that sets the projection model
func WithKind(kind CameraKind) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.kind = kind
	}
}

// WithPosition sets the camera's world-space position.
//
// Parameters:
//   - x, y, z: the position
//
// Returns:
//   - CameraBuilderOption: a function that sets the position
func WithPosition(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = [3]float32{x, y, z}
	}
}

// WithTarget points the camera at a world-space target. Apply after WithPosition.
//
// Parameters:
//   - x, y, z: the target point
//
// Returns:
//   - CameraBuilderOption: a function that sets the view direction
func WithTarget(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.setForward(x-c.position[0], y-c.position[1], z-c.position[2])
	}
}

// WithUp sets the up vector the view matrix is built around.
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = [3]float32{x, y, z}
	}
}

// WithFov sets the vertical field of view in radians. Orthographic cameras ignore it.
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the aspect ratio (width / height).
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithClip sets the near and far plane distances.
func WithClip(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
		c.far = far
	}
}

// WithOrthoHeight sets the vertical extent of an orthographic camera's view volume.
//
// Parameters:
//   - height: world-space height of the view volume
//
// Returns:
//   - CameraBuilderOption: a function that sets the orthographic height
func WithOrthoHeight(height float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.orthoHeight = height
	}
}

// WithFlags sets host-defined flag bits carried in kind_flags.y.
func WithFlags(flags uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.flags = flags
	}
}
