package postprocess

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var luma = mgl32.Vec3{0.2126, 0.7152, 0.0722}

// ComposeInputs are the textures read by the compose pass. Bloom, Outline and AO are optional.
type ComposeInputs struct {
	Scene   *Image
	Bloom   *Image
	Outline *Image
	AO      *Image
	Time    float32
}

// Reinhard maps an HDR value into [0, 1) with x/(x+1). Negative input is treated as 0.
func Reinhard(x float32) float32 {
	x = max(x, 0)
	return x / (x + 1)
}

// Compose runs the compose pass on the CPU with the same effect order as
// ComposeShaderSource and returns a new image the size of the scene.
//
// Parameters:
//   - in: the pass inputs
//   - post: the compose settings
//   - bloom: the bloom settings; only Intensity and Active are read
//
// Returns:
//   - *Image: the display color
func Compose(in ComposeInputs, post PostSettings, bloom BloomSettings) *Image {
	scene := in.Scene
	out := NewImage(scene.Width, scene.Height)
	if !post.Enabled {
		copy(out.Pix, scene.Pix)
		return out
	}

	p := NewPostParams(post, bloom, uint32(scene.Width), uint32(scene.Height), in.Time, in.AO != nil, in.Outline != nil)
	if in.Bloom == nil {
		p.Flags &^= PostFlagBloom
	}
	out.render(func(uv mgl32.Vec2) mgl32.Vec4 {
		return composePixel(&p, in, uv).Vec4(1)
	})
	return out
}

func composePixel(p *GPUPostParams, in ComposeInputs, uv mgl32.Vec2) mgl32.Vec3 {
	t := mgl32.Vec2{p.TexelSize[0], p.TexelSize[1]}
	at := func(q mgl32.Vec2) mgl32.Vec3 { return in.Scene.Sample(q).Vec3() }
	color := at(uv)

	if p.ChromaticAberration > 0 {
		offset := uv.Sub(mgl32.Vec2{0.5, 0.5}).Mul(p.ChromaticAberration)
		color[0] = at(uv.Add(offset))[0]
		color[2] = at(uv.Sub(offset))[2]
	}

	if p.Blur > 0 {
		color = lerp3(color, tent9(uv, t, at), mgl32.Clamp(p.Blur, 0, 1))
	}

	if p.Sharpen > 0 {
		neighbors := at(uv.Add(mgl32.Vec2{t.X(), 0})).
			Add(at(uv.Sub(mgl32.Vec2{t.X(), 0}))).
			Add(at(uv.Add(mgl32.Vec2{0, t.Y()}))).
			Add(at(uv.Sub(mgl32.Vec2{0, t.Y()}))).
			Mul(0.25)
		color = maxZero(color.Add(color.Sub(neighbors).Mul(p.Sharpen)))
	}

	var edge float32
	if p.Flags&PostFlagOutline != 0 {
		edge = OutlineEdge(in.Outline, uv, t, p.OutlineWidth, p.OutlineQuality, p.OutlineThreshold)
	}

	for i := range 3 {
		color[i] = Reinhard(color[i] * p.Exposure)
	}

	if p.PosterizeLevels >= 2 {
		color = Posterize(color, p.PosterizeLevels)
	}
	if p.CellShadeBands >= 2 {
		color = CellShade(color, p.CellShadeBands)
	}

	if p.Flags&PostFlagBloom != 0 {
		color = color.Add(in.Bloom.Sample(uv).Vec3().Mul(p.BloomIntensity))
	}

	if p.Flags&PostFlagSSAO != 0 {
		ao := max(in.AO.Sample(uv)[0], 0)
		color = color.Mul(lerp(1, pow(ao, p.SSAOPower), p.SSAOStrength))
	}

	color = Grade(color, p.Saturation, p.Contrast, p.Gamma)

	dist := uv.Sub(mgl32.Vec2{0.5, 0.5}).Len()
	color = color.Mul(1 - smoothstep(p.VignetteInner, p.VignetteOuter, dist)*p.VignetteStrength)

	if p.Grain > 0 {
		cell := mgl32.Vec2{uv.X()/t.X() + p.Time, uv.Y()/t.Y() + p.Time}
		n := (hash12(cell) - 0.5) * p.Grain
		color = color.Add(mgl32.Vec3{n, n, n})
	}

	outline := mgl32.Vec3{p.OutlineColor[0], p.OutlineColor[1], p.OutlineColor[2]}
	color = lerp3(color, outline, mgl32.Clamp(edge*p.OutlineStrength, 0, 1))

	for i := range 3 {
		color[i] = mgl32.Clamp(color[i], 0, 1)
	}
	return color
}

// OutlineEdge searches the outline mask around uv for the largest alpha and returns how far it
// exceeds the center alpha. Edges weaker than threshold are dropped.
//
// Parameters:
//   - mask: the outline target; alpha 1 marks outlined geometry
//   - uv: the pixel center
//   - texel: the output texel size
//   - width: the search radius in texels, at least 1
//   - quality: the fraction of taps visited along each axis, in (0, 1]
//   - threshold: the minimum reported edge
//
// Returns:
//   - float32: the edge strength in [0, 1]
func OutlineEdge(mask *Image, uv, texel mgl32.Vec2, width, quality, threshold float32) float32 {
	if mask == nil {
		return 0
	}
	radius := int(math.Ceil(float64(max(width, 1))))
	stride := max(int(math.Round(float64(1/max(quality, 0.05)))), 1)
	center := mask.Sample(uv)[3]
	maxAlpha := center
	for y := -radius; y <= radius; y += stride {
		for x := -radius; x <= radius; x += stride {
			q := uv.Add(mgl32.Vec2{float32(x) * texel.X(), float32(y) * texel.Y()})
			maxAlpha = max(maxAlpha, mask.Sample(q)[3])
		}
	}
	edge := mgl32.Clamp(maxAlpha-center, 0, 1)
	if edge < threshold {
		return 0
	}
	return edge
}

// Posterize quantizes each channel to the given number of levels.
func Posterize(c mgl32.Vec3, levels float32) mgl32.Vec3 {
	steps := levels - 1
	for i := range 3 {
		c[i] = float32(math.RoundToEven(float64(c[i]*steps))) / steps
	}
	return c
}

// CellShade scales the color so its luma snaps up to the next of the given number of bands.
func CellShade(c mgl32.Vec3, bands float32) mgl32.Vec3 {
	l := c.Dot(luma)
	banded := float32(math.Ceil(float64(l*bands))) / bands
	return c.Mul(banded / max(l, 1e-4))
}

// Grade applies saturation around luma, contrast around mid grey, then gamma.
func Grade(c mgl32.Vec3, saturation, contrast, gamma float32) mgl32.Vec3 {
	l := c.Dot(luma)
	c = lerp3(mgl32.Vec3{l, l, l}, c, saturation)
	c = c.Sub(mgl32.Vec3{0.5, 0.5, 0.5}).Mul(contrast).Add(mgl32.Vec3{0.5, 0.5, 0.5})
	inv := 1 / max(gamma, 1e-4)
	for i := range 3 {
		c[i] = pow(max(c[i], 0), inv)
	}
	return c
}

func hash12(p mgl32.Vec2) float32 {
	v := math.Sin(float64(p.X()*12.9898+p.Y()*78.233)) * 43758.5453
	return float32(v - math.Floor(v))
}

func maxZero(c mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{max(c[0], 0), max(c[1], 0), max(c[2], 0)}
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func pow(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}
