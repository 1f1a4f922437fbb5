package model

import (
	"github.com/Carmen-Shannon/oxy-render/common"
)

// Model flag bits written to flags_bones.x of GPUModel.
const (
	// FlagReceivesShadow marks an instance whose fragments sample the shadow atlas.
	FlagReceivesShadow uint32 = 1 << 0

	// FlagOutlined marks an instance that writes to the outline mask.
	FlagOutlined uint32 = 1 << 1
)

// --- Transform & Skeleton Types ---

// Transform represents a decomposed translation, rotation and scale.
type Transform struct {
	// Translation is the position offset.
	Translation [3]float32

	// Rotation is the orientation as a quaternion (x, y, z, w).
	Rotation [4]float32

	// Scale is the scale factor along each axis.
	Scale [3]float32
}

// IdentityTransform returns a transform with no translation, no rotation and unit scale.
//
// Returns:
//   - Transform: the identity transform
func IdentityTransform() Transform {
	return Transform{Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}}
}

// Matrix composes the transform into a column-major T * R * S matrix.
//
// Returns:
//   - [16]float32: the composed matrix
func (t Transform) Matrix() [16]float32 {
	var m [16]float32
	common.ComposeTRS(m[:], t.Translation, t.Rotation, t.Scale)
	return m
}

// Bone represents a single bone in a skeleton hierarchy.
type Bone struct {
	// Name is the bone's identifier (for debugging).
	Name string

	// ParentIndex is the index of the parent bone (-1 for root bones). Parents must
	// precede their children in Skeleton.Bones.
	ParentIndex int32

	// InverseBindMatrix transforms from model space to bone space at bind pose.
	InverseBindMatrix [16]float32

	// LocalTransform is the bone's pose relative to its parent, supplied by the host.
	LocalTransform Transform
}

// Skeleton represents a bone hierarchy whose pose produces a skinning matrix palette.
type Skeleton struct {
	// Bones is the array of all bones in the skeleton, parents before children.
	Bones []Bone
}

// --- Instance Types ---

// Instance is one drawable occurrence of a Model in the current frame.
type Instance struct {
	// Model is the mesh drawn by this instance.
	Model Model

	// Transform places the instance in world space.
	Transform Transform

	// BaseColor is the RGBA albedo multiplied into the lit result.
	BaseColor [4]float32

	// ReceivesShadow enables shadow lookups for this instance's fragments.
	ReceivesShadow bool

	// CastsShadow includes the instance in the shadow pass.
	CastsShadow bool

	// Outlined marks the instance in the outline mask.
	Outlined bool

	// BoneOffset is the index of the instance's first matrix in the frame's bone palette.
	BoneOffset uint32

	// BoneCount is the number of palette matrices owned by the instance.
	BoneCount uint32
}

// ShadowRelevant reports whether the instance is drawn by the shadow pass.
//
// Returns:
//   - bool: true if the instance casts shadows and has a mesh
func (in *Instance) ShadowRelevant() bool {
	return in.CastsShadow && in.Model != nil
}

// GPU builds the per-frame GPU representation of the instance.
//
// Returns:
//   - GPUModel: the GPU-aligned instance data
func (in *Instance) GPU() GPUModel {
	t := in.Transform
	var flags uint32
	if in.ReceivesShadow {
		flags |= FlagReceivesShadow
	}
	if in.Outlined {
		flags |= FlagOutlined
	}
	return GPUModel{
		World:       t.Matrix(),
		Translation: [4]float32{t.Translation[0], t.Translation[1], t.Translation[2], 1},
		Rotation:    t.Rotation,
		Scale:       [4]float32{t.Scale[0], t.Scale[1], t.Scale[2], 0},
		BaseColor:   in.BaseColor,
		FlagsBones:  [4]uint32{flags, in.BoneOffset, in.BoneCount, 0},
	}
}
