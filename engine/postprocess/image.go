package postprocess

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Image is a linear float RGBA image used by the CPU rendition of the bloom and compose
// passes. Sampling is bilinear with clamp-to-edge addressing, like the passes' linear sampler.
type Image struct {
	Width, Height int
	Pix           []mgl32.Vec4
}

// NewImage allocates a zeroed image. Dimensions below 1 are raised to 1.
//
// Parameters:
//   - width, height: the image size in pixels
//
// Returns:
//   - *Image: the new image
func NewImage(width, height int) *Image {
	width, height = max(width, 1), max(height, 1)
	return &Image{Width: width, Height: height, Pix: make([]mgl32.Vec4, width*height)}
}

// Fill sets every pixel to c.
func (m *Image) Fill(c mgl32.Vec4) {
	for i := range m.Pix {
		m.Pix[i] = c
	}
}

// At returns the pixel at (x, y), clamping the coordinates to the image.
func (m *Image) At(x, y int) mgl32.Vec4 {
	x = min(max(x, 0), m.Width-1)
	y = min(max(y, 0), m.Height-1)
	return m.Pix[y*m.Width+x]
}

// Set writes the pixel at (x, y). Out of range coordinates are ignored.
func (m *Image) Set(x, y int, c mgl32.Vec4) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = c
}

// TexelSize returns the size of one texel in UV units.
func (m *Image) TexelSize() mgl32.Vec2 {
	return mgl32.Vec2{1 / float32(m.Width), 1 / float32(m.Height)}
}

// Sample returns the bilinear sample at uv with texel centers at (i + 0.5) / size.
//
// Parameters:
//   - uv: the normalized coordinate
//
// Returns:
//   - mgl32.Vec4: the filtered color
func (m *Image) Sample(uv mgl32.Vec2) mgl32.Vec4 {
	fx := uv.X()*float32(m.Width) - 0.5
	fy := uv.Y()*float32(m.Height) - 0.5
	x0 := int(math.Floor(float64(fx)))
	y0 := int(math.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	top := lerp4(m.At(x0, y0), m.At(x0+1, y0), tx)
	bottom := lerp4(m.At(x0, y0+1), m.At(x0+1, y0+1), tx)
	return lerp4(top, bottom, ty)
}

// render evaluates fn at the center of every pixel.
func (m *Image) render(fn func(uv mgl32.Vec2) mgl32.Vec4) {
	for y := range m.Height {
		for x := range m.Width {
			uv := mgl32.Vec2{(float32(x) + 0.5) / float32(m.Width), (float32(y) + 0.5) / float32(m.Height)}
			m.Pix[y*m.Width+x] = fn(uv)
		}
	}
}

func lerp4(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}

func lerp3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func smoothstep(edge0, edge1, x float32) float32 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := mgl32.Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}
