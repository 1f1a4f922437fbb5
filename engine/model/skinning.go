package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MaxJointInfluences is the number of joints that can influence one skinned vertex.
const MaxJointInfluences = 4

// SkinMatrix blends the palette matrices of up to four joints by their weights:
// sum of weights[k] * M[joints[k]]. A joint index at or beyond len(palette) contributes
// the identity matrix, so a malformed palette degrades to the bind pose instead of
// reading out of range.
//
// Parameters:
//   - joints: palette-relative joint indices
//   - weights: blend weights
//   - palette: the instance's skinning matrices
//
// Returns:
//   - mgl32.Mat4: the blended skinning matrix
func SkinMatrix(joints [MaxJointInfluences]uint32, weights [MaxJointInfluences]float32, palette [][16]float32) mgl32.Mat4 {
	var skin mgl32.Mat4
	for k := range MaxJointInfluences {
		m := mgl32.Ident4()
		if int(joints[k]) < len(palette) {
			m = mgl32.Mat4(palette[joints[k]])
		}
		skin = skin.Add(m.Mul(weights[k]))
	}
	return skin
}

// SkinPosition applies SkinMatrix to a model-space position.
//
// Parameters:
//   - pos: the bind-pose position
//   - joints: palette-relative joint indices
//   - weights: blend weights
//   - palette: the instance's skinning matrices
//
// Returns:
//   - [3]float32: the skinned position
func SkinPosition(pos [3]float32, joints [MaxJointInfluences]uint32, weights [MaxJointInfluences]float32, palette [][16]float32) [3]float32 {
	skin := SkinMatrix(joints, weights, palette)
	return skin.Mul4x1(mgl32.Vec4{pos[0], pos[1], pos[2], 1}).Vec3()
}

// Palette computes the skinning matrices of the skeleton's current pose. Each entry is the
// bone's world pose multiplied by its inverse bind matrix; a bone whose parent index is out
// of range or not yet visited is treated as a root.
//
// Returns:
//   - [][16]float32: one skinning matrix per bone
func (s *Skeleton) Palette() [][16]float32 {
	if s == nil {
		return nil
	}
	world := make([]mgl32.Mat4, len(s.Bones))
	out := make([][16]float32, len(s.Bones))
	for i, b := range s.Bones {
		local := mgl32.Mat4(b.LocalTransform.Matrix())
		if p := int(b.ParentIndex); p >= 0 && p < i {
			world[i] = world[p].Mul4(local)
		} else {
			world[i] = local
		}
		out[i] = world[i].Mul4(mgl32.Mat4(b.InverseBindMatrix))
	}
	return out
}

func identity4() [16]float32 {
	return mgl32.Ident4()
}
