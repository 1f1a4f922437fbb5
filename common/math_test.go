package common

import (
	"math"
	"testing"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestComposeTRSIdentityRotation(t *testing.T) {
	var m [16]float32
	ComposeTRS(m[:], [3]float32{1, 2, 3}, [4]float32{0, 0, 0, 1}, [3]float32{2, 3, 4})

	got := TransformVec4(m[:], [4]float32{1, 1, 1, 1})
	want := [4]float32{3, 5, 7, 1}
	for i := range got {
		if !approx(got[i], want[i]) {
			t.Fatalf("TransformVec4 = %v, want %v", got, want)
		}
	}
}

func TestComposeTRSQuarterTurnY(t *testing.T) {
	var m [16]float32
	s := float32(math.Sqrt2 / 2)
	ComposeTRS(m[:], [3]float32{}, [4]float32{0, s, 0, s}, [3]float32{1, 1, 1})

	// +X rotated 90 degrees about +Y lands on -Z.
	got := TransformVec4(m[:], [4]float32{1, 0, 0, 0})
	want := [4]float32{0, 0, -1, 0}
	for i := range got {
		if !approx(got[i], want[i]) {
			t.Fatalf("rotated = %v, want %v", got, want)
		}
	}
}

func TestOrthographicDepthRange(t *testing.T) {
	var m [16]float32
	Orthographic(m[:], -1, 1, -1, 1, 1, 11)

	near := TransformVec4(m[:], [4]float32{0, 0, -1, 1})
	far := TransformVec4(m[:], [4]float32{0, 0, -11, 1})
	if !approx(near[2], 0) || !approx(far[2], 1) {
		t.Errorf("depth range = [%v, %v], want [0, 1]", near[2], far[2])
	}
}

func TestCropToCell(t *testing.T) {
	tests := []struct {
		name         string
		grid, cx, cy uint32
		in           [2]float32
		want         [2]float32
	}{
		{"single cell is identity", 1, 0, 0, [2]float32{0.3, -0.7}, [2]float32{0.3, -0.7}},
		{"top-left cell center", 2, 0, 0, [2]float32{-0.5, 0.5}, [2]float32{0, 0}},
		{"bottom-right cell corner", 2, 1, 1, [2]float32{1, -1}, [2]float32{1, -1}},
		{"top-left cell corner", 4, 0, 0, [2]float32{-1, 1}, [2]float32{-1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m [16]float32
			CropToCell(m[:], tt.grid, tt.cx, tt.cy)
			got := TransformVec4(m[:], [4]float32{tt.in[0], tt.in[1], 0.5, 1})
			if !approx(got[0], tt.want[0]) || !approx(got[1], tt.want[1]) || !approx(got[2], 0.5) {
				t.Errorf("crop(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDivCeil(t *testing.T) {
	tests := []struct {
		n, d, want uint32
	}{
		{0, 64, 0},
		{1, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := DivCeil(tt.n, tt.d); got != tt.want {
			t.Errorf("DivCeil(%d, %d) = %d, want %d", tt.n, tt.d, got, tt.want)
		}
	}
}
