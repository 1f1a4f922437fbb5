package model

import (
	"encoding/binary"
	"math"
	"testing"
)

func approx3(a, b [3]float32) bool {
	for i := range 3 {
		if math.Abs(float64(a[i]-b[i])) > 1e-5 {
			return false
		}
	}
	return true
}

func translation(x, y, z float32) [16]float32 {
	m := identity4()
	m[12], m[13], m[14] = x, y, z
	return m
}

func TestSkinPosition(t *testing.T) {
	palette := [][16]float32{translation(1, 0, 0), translation(0, 2, 0)}
	pos := [3]float32{1, 1, 1}
	tests := []struct {
		name    string
		joints  [4]uint32
		weights [4]float32
		want    [3]float32
	}{
		{"single joint", [4]uint32{0, 0, 0, 0}, [4]float32{1, 0, 0, 0}, [3]float32{2, 1, 1}},
		{"half and half", [4]uint32{0, 1, 0, 0}, [4]float32{0.5, 0.5, 0, 0}, [3]float32{1.5, 2, 1}},
		{"out of range joint is identity", [4]uint32{7, 0, 0, 0}, [4]float32{1, 0, 0, 0}, pos},
		{"mixed out of range", [4]uint32{9, 1, 0, 0}, [4]float32{0.5, 0.5, 0, 0}, [3]float32{1, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SkinPosition(pos, tt.joints, tt.weights, palette)
			if !approx3(got, tt.want) {
				t.Errorf("SkinPosition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSkinPositionEmptyPalette(t *testing.T) {
	pos := [3]float32{3, -2, 5}
	got := SkinPosition(pos, [4]uint32{0, 1, 2, 3}, [4]float32{0.25, 0.25, 0.25, 0.25}, nil)
	if !approx3(got, pos) {
		t.Errorf("SkinPosition() = %v, want %v", got, pos)
	}
}

func TestSkeletonPalette(t *testing.T) {
	root := IdentityTransform()
	root.Translation = [3]float32{0, 1, 0}
	child := IdentityTransform()
	child.Translation = [3]float32{2, 0, 0}

	s := &Skeleton{Bones: []Bone{
		{Name: "root", ParentIndex: -1, InverseBindMatrix: identity4(), LocalTransform: root},
		{Name: "child", ParentIndex: 0, InverseBindMatrix: translation(-2, -1, 0), LocalTransform: child},
	}}
	palette := s.Palette()
	if len(palette) != 2 {
		t.Fatalf("len(Palette()) = %d, want 2", len(palette))
	}
	// The child's pose matches its bind pose, so its skinning matrix is the identity.
	got := SkinPosition([3]float32{4, 5, 6}, [4]uint32{1}, [4]float32{1}, palette)
	if !approx3(got, [3]float32{4, 5, 6}) {
		t.Errorf("bind pose skinning moved vertex to %v", got)
	}
	var nilSkeleton *Skeleton
	if nilSkeleton.Palette() != nil {
		t.Error("nil skeleton should produce a nil palette")
	}
}

func TestInstanceGPU(t *testing.T) {
	in := Instance{
		Model:          NewModel(WithName("quad")),
		Transform:      IdentityTransform(),
		BaseColor:      [4]float32{0.2, 0.4, 0.6, 1},
		ReceivesShadow: true,
		Outlined:       true,
		BoneOffset:     5,
		BoneCount:      3,
	}
	in.Transform.Translation = [3]float32{1, 2, 3}
	g := in.GPU()

	if g.Size() != 144 {
		t.Fatalf("Size() = %d, want 144", g.Size())
	}
	buf := g.Marshal()
	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(buf[off:]) }

	if f32(48) != 1 || f32(52) != 2 || f32(56) != 3 {
		t.Errorf("world translation column = (%v, %v, %v)", f32(48), f32(52), f32(56))
	}
	if f32(64) != 1 || f32(68) != 2 || f32(72) != 3 || f32(76) != 1 {
		t.Errorf("translation = (%v, %v, %v, %v)", f32(64), f32(68), f32(72), f32(76))
	}
	if f32(112) != 0.2 || f32(124) != 1 {
		t.Errorf("base_color = (%v, ..., %v)", f32(112), f32(124))
	}
	if got := u32(128); got != FlagReceivesShadow|FlagOutlined {
		t.Errorf("flags = %b, want %b", got, FlagReceivesShadow|FlagOutlined)
	}
	if u32(132) != 5 || u32(136) != 3 {
		t.Errorf("bones = (%d, %d), want (5, 3)", u32(132), u32(136))
	}
	if in.ShadowRelevant() {
		t.Error("instance without CastsShadow should not be shadow relevant")
	}
}

func TestVertexSizes(t *testing.T) {
	var v GPUVertex
	var sv GPUSkinnedVertex
	if v.Size() != 64 || len(v.Marshal()) != 64 {
		t.Errorf("GPUVertex size = %d", v.Size())
	}
	if sv.Size() != 96 || len(sv.Marshal()) != 96 {
		t.Errorf("GPUSkinnedVertex size = %d", sv.Size())
	}
	sv.BoneIndices = [4]uint32{1, 2, 3, 4}
	buf := sv.Marshal()
	if binary.LittleEndian.Uint32(buf[76:]) != 4 {
		t.Error("bone index 3 not at offset 76")
	}
}

func TestBuilderDerivesBounds(t *testing.T) {
	m := NewModel(
		WithVertices([]GPUVertex{{Position: [3]float32{3, 4, 0}}, {Position: [3]float32{1, 0, 0}}}),
		WithIndices([]uint32{0, 1, 0}),
	)
	if m.BoundingRadius() != 5 {
		t.Errorf("BoundingRadius() = %v, want 5", m.BoundingRadius())
	}
	if m.IndexCount() != 3 || len(m.IndexData()) != 12 {
		t.Errorf("IndexCount() = %d, len(IndexData()) = %d", m.IndexCount(), len(m.IndexData()))
	}
	if len(m.VertexData()) != 128 || m.Skinned() {
		t.Errorf("len(VertexData()) = %d, Skinned() = %v", len(m.VertexData()), m.Skinned())
	}
}

func TestMarshalBonesEmpty(t *testing.T) {
	buf := MarshalBones(nil)
	if len(buf) != 64 {
		t.Fatalf("len = %d, want 64", len(buf))
	}
	if math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])) != 1 {
		t.Error("empty palette should marshal an identity matrix")
	}
}

func TestSkinnedBuilderAndOverride(t *testing.T) {
	m := NewModel(
		WithName("arm"),
		WithSkinnedVertices([]GPUSkinnedVertex{{GPUVertex: GPUVertex{Position: [3]float32{0, 2, 0}}}}),
		WithBoundingRadius(7),
	)
	if !m.Skinned() || m.Skeleton() != nil {
		t.Errorf("Skinned() = %v, Skeleton() = %v", m.Skinned(), m.Skeleton())
	}
	if m.BoundingRadius() != 7 {
		t.Errorf("BoundingRadius() = %v, want the override 7", m.BoundingRadius())
	}
	if m.IndexCount() != 0 || m.MeshProvider() != nil {
		t.Error("a model without indices or provider has nothing to draw")
	}
	if len(m.VertexData()) != 96 || m.Name() != "arm" {
		t.Errorf("len(VertexData()) = %d, Name() = %q", len(m.VertexData()), m.Name())
	}
}
