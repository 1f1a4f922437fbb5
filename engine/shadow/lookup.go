package shadow

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DepthSampler performs comparison sampling of the shadow atlas. It mirrors a WebGPU
// comparison sampler with the LessEqual function: the result is 1 when ref <= stored depth.
type DepthSampler interface {
	// SampleCompare compares ref against the atlas depth at uv of one layer.
	//
	// Parameters:
	//   - layer: the atlas layer
	//   - uv: the atlas UV in [0, 1]
	//   - ref: the reference depth
	//
	// Returns:
	//   - float32: 1 if lit, 0 if occluded
	SampleCompare(layer uint32, uv [2]float32, ref float32) float32
}

// Bias returns the slope-scaled depth bias max(biasMin, biasSlope * (1 - ndotl)).
//
// Parameters:
//   - biasMin: lower bound
//   - biasSlope: growth with grazing angle
//   - ndotl: cosine between the surface normal and the light direction
//
// Returns:
//   - float32: the bias
func Bias(biasMin, biasSlope, ndotl float32) float32 {
	return max(biasMin, biasSlope*(1-ndotl))
}

// ProjectToAtlas maps a world position into a light's shadow space.
//
// Parameters:
//   - lightViewProj: the light's view-projection
//   - world: the world-space position
//
// Returns:
//   - uv: (x*0.5+0.5, 0.5-y*0.5) of the light NDC
//   - depth: the light NDC depth
//   - ok: false if the position lies outside [0, 1] in uv or depth
func ProjectToAtlas(lightViewProj [16]float32, world mgl32.Vec3) (uv mgl32.Vec2, depth float32, ok bool) {
	clip := mgl32.Mat4(lightViewProj).Mul4x1(world.Vec4(1))
	if clip.W() <= 0 {
		return uv, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	uv = mgl32.Vec2{ndc.X()*0.5 + 0.5, 0.5 - ndc.Y()*0.5}
	depth = ndc.Z()
	if uv.X() < 0 || uv.X() > 1 || uv.Y() < 0 || uv.Y() > 1 || depth < 0 || depth > 1 {
		return uv, depth, false
	}
	return uv, depth, true
}

// Factor computes the shadow term of one light at one surface point, following the forward
// shader: project into light space, locate the grid cell, read the page table slot and
// run an N x N PCF kernel over the page's tile. Positions outside the light volume and
// unallocated pages yield 1 (fully lit).
//
// Parameters:
//   - params: the shadow sampling parameters
//   - table: the page table entries in slot order
//   - atlas: the depth sampler
//   - lightIndex: index of the light in the frame's light array
//   - lightViewProj: the light's view-projection
//   - world: the surface position
//   - ndotl: the surface's unclamped Lambert cosine for the light
//
// Returns:
//   - float32: the visible fraction in [0, 1]
func Factor(params GPUShadowParams, table []GPUShadowPageEntry, atlas DepthSampler, lightIndex uint32, lightViewProj [16]float32, world mgl32.Vec3, ndotl float32) float32 {
	uv, depth, ok := ProjectToAtlas(lightViewProj, world)
	if !ok {
		return 1
	}

	grid := max(params.Grid, 1)
	g := float32(grid)
	gx := min(uint32(max(math.Floor(float64(uv.X()*g)), 0)), grid-1)
	gy := min(uint32(max(math.Floor(float64(uv.Y()*g)), 0)), grid-1)

	slot := Slot(lightIndex, gx, gy)
	if int(slot) >= len(table) {
		return 1
	}
	page := table[slot]
	if !page.Allocated() {
		return 1
	}

	local := mgl32.Vec2{fract(uv.X() * g), fract(uv.Y() * g)}
	scale := mgl32.Vec2{page.ScaleOffset[0], page.ScaleOffset[1]}
	offset := mgl32.Vec2{page.ScaleOffset[2], page.ScaleOffset[3]}
	center := mgl32.Vec2{local.X()*scale.X() + offset.X(), local.Y()*scale.Y() + offset.Y()}

	// Keep taps inside the page's tile, half a texel in from each edge.
	half := mgl32.Vec2{params.TexelSize[0] * 0.5, params.TexelSize[1] * 0.5}
	lo := offset.Add(half)
	hi := offset.Add(scale).Sub(half)

	ref := depth - Bias(params.BiasMin, params.BiasSlope, ndotl)
	radius := int(params.Smoothing)
	var sum float32
	var taps float32
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			tap := mgl32.Vec2{
				mgl32.Clamp(center.X()+float32(x)*params.TexelSize[0], lo.X(), hi.X()),
				mgl32.Clamp(center.Y()+float32(y)*params.TexelSize[1], lo.Y(), hi.Y()),
			}
			sum += atlas.SampleCompare(page.Layer, [2]float32{tap.X(), tap.Y()}, ref)
			taps++
		}
	}
	return sum / taps
}

func fract(v float32) float32 {
	return v - float32(math.Floor(float64(v)))
}

// DepthAtlas is an in-memory depth texture array implementing DepthSampler with
// nearest-texel lookups. It backs CPU shading of the forward pass.
type DepthAtlas struct {
	Width, Height uint32
	Layers        [][]float32
}

var _ DepthSampler = &DepthAtlas{}

// NewDepthAtlas creates an atlas for the configuration with every texel cleared to 1.
//
// Parameters:
//   - cfg: the atlas configuration
//
// Returns:
//   - *DepthAtlas: the cleared atlas
func NewDepthAtlas(cfg AtlasConfig) *DepthAtlas {
	w, h := cfg.Size()
	a := &DepthAtlas{Width: w, Height: h, Layers: make([][]float32, cfg.AtlasLayers)}
	for i := range a.Layers {
		a.Layers[i] = make([]float32, int(w)*int(h))
		for j := range a.Layers[i] {
			a.Layers[i][j] = 1
		}
	}
	return a
}

// Fill writes depth into a texel rectangle of one layer.
//
// Parameters:
//   - layer: the atlas layer
//   - rect: x, y, width, height in texels
//   - depth: the value to write
func (a *DepthAtlas) Fill(layer uint32, rect [4]uint32, depth float32) {
	if int(layer) >= len(a.Layers) {
		return
	}
	for y := rect[1]; y < min(rect[1]+rect[3], a.Height); y++ {
		for x := rect[0]; x < min(rect[0]+rect[2], a.Width); x++ {
			a.Layers[layer][y*a.Width+x] = depth
		}
	}
}

func (a *DepthAtlas) SampleCompare(layer uint32, uv [2]float32, ref float32) float32 {
	if int(layer) >= len(a.Layers) || a.Width == 0 || a.Height == 0 {
		return 1
	}
	x := min(uint32(max(uv[0]*float32(a.Width), 0)), a.Width-1)
	y := min(uint32(max(uv[1]*float32(a.Height), 0)), a.Height-1)
	if ref <= a.Layers[layer][y*a.Width+x] {
		return 1
	}
	return 0
}
