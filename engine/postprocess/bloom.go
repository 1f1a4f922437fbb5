package postprocess

import (
	"github.com/go-gl/mathgl/mgl32"
)

// minKnee keeps the soft-knee smoothstep from collapsing to a step.
const minKnee = 1e-5

// gaussianWeights are the center and one-sided weights of the 9-tap separable gaussian.
var gaussianWeights = [5]float32{0.227027, 0.1945946, 0.1216216, 0.054054, 0.016216}

// MipSizes returns the size of each bloom chain level. Level k is the source size shifted
// right by k+1, never below one pixel.
//
// Parameters:
//   - width, height: the size of the forward color target
//   - count: the number of levels
//
// Returns:
//   - [][2]uint32: width and height per level, empty if count < 1
func MipSizes(width, height uint32, count int) [][2]uint32 {
	if count < 1 {
		return nil
	}
	sizes := make([][2]uint32, count)
	for k := range count {
		shift := uint(k + 1)
		sizes[k] = [2]uint32{max(width>>shift, 1), max(height>>shift, 1)}
	}
	return sizes
}

// SoftKnee returns the prefilter weight for a pixel brightness: the excess over threshold
// plus a smoothstep-squared ramp over [threshold-knee, threshold+knee] scaled by knee/4.
//
// Parameters:
//   - brightness: the maximum color channel
//   - threshold: the bloom threshold
//   - knee: the half width of the soft region
//
// Returns:
//   - float32: the brightness weight
func SoftKnee(brightness, threshold, knee float32) float32 {
	knee = max(knee, minKnee)
	s := smoothstep(threshold-knee, threshold+knee, brightness)
	return max(brightness-threshold, 0) + s*s*knee*0.25
}

// Threshold applies the soft knee to a color while preserving its hue.
func Threshold(c mgl32.Vec3, threshold, knee float32) mgl32.Vec3 {
	b := max(c[0], c[1], c[2])
	return c.Mul(SoftKnee(b, threshold, knee) / max(b, 1e-4))
}

// BloomChain holds every level produced by RunBloom.
type BloomChain struct {
	// Down holds the prefiltered level 0 and each downsampled level.
	Down []*Image
	// Up holds the upsampled levels; the last entry aliases the last Down level.
	Up []*Image
	// Output is the combined contribution read by the compose pass.
	Output *Image
}

// RunBloom executes the bloom chain on the CPU in the pass order of the GPU chain:
// prefilter, downsample to the last level, upsample back to level 0, combine.
//
// Parameters:
//   - src: the forward color
//   - s: the bloom settings
//
// Returns:
//   - *BloomChain: every level, or nil when the chain is inactive
func RunBloom(src *Image, s BloomSettings) *BloomChain {
	if src == nil || !s.Active() {
		return nil
	}
	sizes := MipSizes(uint32(src.Width), uint32(src.Height), s.MipCount)
	chain := &BloomChain{Down: make([]*Image, len(sizes)), Up: make([]*Image, len(sizes))}

	chain.Down[0] = Prefilter(src, sizes[0], s)
	for i := 1; i < len(sizes); i++ {
		chain.Down[i] = Downsample(chain.Down[i-1], sizes[i], s.Filter)
	}

	last := len(sizes) - 1
	chain.Up[last] = chain.Down[last]
	for i := last - 1; i >= 0; i-- {
		chain.Up[i] = Upsample(chain.Down[i], chain.Up[i+1], s.Scatter)
	}

	chain.Output = Combine(chain.Up[0])
	return chain
}

// Prefilter thresholds and blurs src into a new image of the given size.
//
// Parameters:
//   - src: the forward color
//   - size: the level 0 size
//   - s: the bloom settings
//
// Returns:
//   - *Image: the prefiltered level 0
func Prefilter(src *Image, size [2]uint32, s BloomSettings) *Image {
	t := src.TexelSize()
	tap := func(img *Image, uv mgl32.Vec2, threshold bool) mgl32.Vec3 {
		c := img.Sample(uv).Vec3()
		if threshold {
			return Threshold(c, s.Threshold, s.Knee)
		}
		return c
	}

	if s.Prefilter == PrefilterGaussian {
		horizontal := NewImage(int(size[0]), int(size[1]))
		horizontal.render(func(uv mgl32.Vec2) mgl32.Vec4 {
			return gaussian(src, uv, mgl32.Vec2{t.X(), 0}, func(img *Image, p mgl32.Vec2) mgl32.Vec3 { return tap(img, p, true) }).Vec4(1)
		})
		out := NewImage(int(size[0]), int(size[1]))
		out.render(func(uv mgl32.Vec2) mgl32.Vec4 {
			return gaussian(horizontal, uv, mgl32.Vec2{0, t.Y()}, func(img *Image, p mgl32.Vec2) mgl32.Vec3 { return tap(img, p, false) }).Vec4(1)
		})
		return out
	}

	out := NewImage(int(size[0]), int(size[1]))
	out.render(func(uv mgl32.Vec2) mgl32.Vec4 {
		return tent9(uv, t, func(p mgl32.Vec2) mgl32.Vec3 { return tap(src, p, true) }).Vec4(1)
	})
	return out
}

// Downsample filters src into a new image of the given size with five taps: the center
// and the four diagonals at twice the source texel stride.
//
// Parameters:
//   - src: the previous level
//   - size: the new level size
//   - mode: the tap weighting
//
// Returns:
//   - *Image: the downsampled level
func Downsample(src *Image, size [2]uint32, mode FilterMode) *Image {
	d := src.TexelSize().Mul(2)
	out := NewImage(int(size[0]), int(size[1]))
	out.render(func(uv mgl32.Vec2) mgl32.Vec4 {
		center := src.Sample(uv).Vec3()
		corners := src.Sample(uv.Add(mgl32.Vec2{-d.X(), -d.Y()})).Vec3().
			Add(src.Sample(uv.Add(mgl32.Vec2{d.X(), -d.Y()})).Vec3()).
			Add(src.Sample(uv.Add(mgl32.Vec2{-d.X(), d.Y()})).Vec3()).
			Add(src.Sample(uv.Add(mgl32.Vec2{d.X(), d.Y()})).Vec3())
		if mode == FilterBox {
			return center.Add(corners).Mul(0.2).Vec4(1)
		}
		return center.Mul(0.5).Add(corners.Mul(0.125)).Vec4(1)
	})
	return out
}

// Upsample tent-filters the coarser level at one texel stride and blends it over the
// matching downsampled level: mix(down, tent(coarser), scatter).
//
// Parameters:
//   - down: the downsampled level at the target size
//   - coarser: the upsampled level below it
//   - scatter: the blend factor
//
// Returns:
//   - *Image: the upsampled level
func Upsample(down, coarser *Image, scatter float32) *Image {
	t := coarser.TexelSize()
	out := NewImage(down.Width, down.Height)
	out.render(func(uv mgl32.Vec2) mgl32.Vec4 {
		blurred := tent9(uv, t, func(p mgl32.Vec2) mgl32.Vec3 { return coarser.Sample(p).Vec3() })
		return lerp3(down.Sample(uv).Vec3(), blurred, scatter).Vec4(1)
	})
	return out
}

// Combine copies the final upsampled level into the bloom output.
func Combine(up *Image) *Image {
	out := NewImage(up.Width, up.Height)
	copy(out.Pix, up.Pix)
	return out
}

func tent9(uv, texel mgl32.Vec2, tap func(mgl32.Vec2) mgl32.Vec3) mgl32.Vec3 {
	var sum mgl32.Vec3
	for y := -1; y <= 1; y++ {
		for x := -1; x <= 1; x++ {
			w := float32((2-abs(x))*(2-abs(y))) / 16
			p := uv.Add(mgl32.Vec2{float32(x) * texel.X(), float32(y) * texel.Y()})
			sum = sum.Add(tap(p).Mul(w))
		}
	}
	return sum
}

func gaussian(img *Image, uv, step mgl32.Vec2, tap func(*Image, mgl32.Vec2) mgl32.Vec3) mgl32.Vec3 {
	sum := tap(img, uv).Mul(gaussianWeights[0])
	for i := 1; i < len(gaussianWeights); i++ {
		offset := step.Mul(float32(i))
		sum = sum.Add(tap(img, uv.Add(offset)).Mul(gaussianWeights[i]))
		sum = sum.Add(tap(img, uv.Sub(offset)).Mul(gaussianWeights[i]))
	}
	return sum
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
