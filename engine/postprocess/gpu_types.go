package postprocess

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// Compose flag bits carried in GPUPostParams.Flags.
const (
	PostFlagBloom   uint32 = 1 << 0
	PostFlagSSAO    uint32 = 1 << 1
	PostFlagOutline uint32 = 1 << 2
)

// GPUBloomParamsSource is the canonical WGSL definition of the BloomParams struct.
// Matches GPUBloomParams layout exactly (48 bytes).
//
//go:embed assets/bloom_params.wgsl
var GPUBloomParamsSource string

// GPUPostParamsSource is the canonical WGSL definition of the PostParams struct.
// Matches GPUPostParams layout exactly (128 bytes).
//
//go:embed assets/post_params.wgsl
var GPUPostParamsSource string

//go:embed assets/bloom_common.wgsl
var bloomCommonSource string

//go:embed assets/bloom_prefilter.wgsl
var bloomPrefilterSource string

//go:embed assets/bloom_downsample.wgsl
var bloomDownsampleSource string

//go:embed assets/bloom_upsample.wgsl
var bloomUpsampleSource string

//go:embed assets/bloom_combine.wgsl
var bloomCombineSource string

// ComposeShaderSource is the full-screen compose shader.
//
//go:embed assets/compose.wgsl
var ComposeShaderSource string

// Bloom stage shaders. Each shares the fullscreen vertex stage and the group 0 bindings.
var (
	BloomPrefilterShaderSource  = bloomCommonSource + "\n" + bloomPrefilterSource
	BloomDownsampleShaderSource = bloomCommonSource + "\n" + bloomDownsampleSource
	BloomUpsampleShaderSource   = bloomCommonSource + "\n" + bloomUpsampleSource
	BloomCombineShaderSource    = bloomCommonSource + "\n" + bloomCombineSource
)

// GPUBloomParams holds the parameters of one bloom stage draw.
// Matches the WGSL BloomParams struct layout exactly (see GPUBloomParamsSource).
// Size: 48 bytes.
type GPUBloomParams struct {
	Threshold      float32    // offset  0
	Knee           float32    // offset  4
	Scatter        float32    // offset  8
	Intensity      float32    // offset 12
	TexelSize      [2]float32 // offset 16: texel size of the sampled texture
	Direction      [2]float32 // offset 24: gaussian axis
	FilterMode     uint32     // offset 32
	PrefilterMode  uint32     // offset 36
	ApplyThreshold uint32     // offset 40: set on the first prefilter pass only
	_              uint32     // offset 44
}

// NewBloomParams builds the stage parameters shared by every draw of the chain. Callers
// set TexelSize, Direction and ApplyThreshold per stage.
//
// Parameters:
//   - s: the bloom settings
//
// Returns:
//   - GPUBloomParams: the parameter block
func NewBloomParams(s BloomSettings) GPUBloomParams {
	return GPUBloomParams{
		Threshold:     s.Threshold,
		Knee:          s.Knee,
		Scatter:       s.Scatter,
		Intensity:     s.Intensity,
		FilterMode:    uint32(s.Filter),
		PrefilterMode: uint32(s.Prefilter),
	}
}

// Size returns the size of the GPUBloomParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (p *GPUBloomParams) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes the GPUBloomParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (p *GPUBloomParams) Marshal() []byte {
	buf := make([]byte, 48)
	putFloats(buf[0:], p.Threshold, p.Knee, p.Scatter, p.Intensity,
		p.TexelSize[0], p.TexelSize[1], p.Direction[0], p.Direction[1])
	binary.LittleEndian.PutUint32(buf[32:], p.FilterMode)
	binary.LittleEndian.PutUint32(buf[36:], p.PrefilterMode)
	binary.LittleEndian.PutUint32(buf[40:], p.ApplyThreshold)
	return buf
}

// GPUPostParams holds the compose pass parameters. Field order is positional and must
// match the WGSL PostParams struct (see GPUPostParamsSource).
// Size: 128 bytes.
type GPUPostParams struct {
	Exposure            float32    // offset   0
	Gamma               float32    // offset   4
	Saturation          float32    // offset   8
	Contrast            float32    // offset  12
	VignetteStrength    float32    // offset  16
	VignetteInner       float32    // offset  20
	VignetteOuter       float32    // offset  24
	Grain               float32    // offset  28
	ChromaticAberration float32    // offset  32
	Blur                float32    // offset  36
	Sharpen             float32    // offset  40
	BloomIntensity      float32    // offset  44
	OutlineStrength     float32    // offset  48
	OutlineThreshold    float32    // offset  52
	OutlineWidth        float32    // offset  56
	OutlineQuality      float32    // offset  60
	OutlineColor        [4]float32 // offset  64
	SSAOStrength        float32    // offset  80
	SSAOPower           float32    // offset  84
	PosterizeLevels     float32    // offset  88
	CellShadeBands      float32    // offset  92
	TexelSize           [2]float32 // offset  96: texel size of the output
	Time                float32    // offset 104: seconds, seeds the grain hash
	Enabled             uint32     // offset 108: 0 copies the scene unchanged
	Flags               uint32     // offset 112: PostFlag bits
	_                   [3]uint32  // offset 116
}

// NewPostParams builds the compose parameter block for one frame.
//
// Parameters:
//   - post: the compose settings
//   - bloom: the bloom settings; its intensity scales the bloom add
//   - width, height: the output size in pixels
//   - time: elapsed seconds
//   - hasAO: whether an ambient occlusion texture is bound
//   - hasOutline: whether any instance is outlined this frame
//
// Returns:
//   - GPUPostParams: the parameter block
func NewPostParams(post PostSettings, bloom BloomSettings, width, height uint32, time float32, hasAO, hasOutline bool) GPUPostParams {
	p := GPUPostParams{
		Exposure:            post.Exposure,
		Gamma:               post.Gamma,
		Saturation:          post.Saturation,
		Contrast:            post.Contrast,
		VignetteStrength:    post.VignetteStrength,
		VignetteInner:       post.VignetteInner,
		VignetteOuter:       post.VignetteOuter,
		Grain:               post.Grain,
		ChromaticAberration: post.ChromaticAberration,
		Blur:                post.Blur,
		Sharpen:             post.Sharpen,
		BloomIntensity:      bloom.Intensity,
		OutlineStrength:     post.OutlineStrength,
		OutlineThreshold:    post.OutlineThreshold,
		OutlineWidth:        post.OutlineWidth,
		OutlineQuality:      post.OutlineQuality,
		OutlineColor:        post.OutlineColor,
		SSAOStrength:        post.SSAOStrength,
		SSAOPower:           post.SSAOPower,
		PosterizeLevels:     post.PosterizeLevels,
		CellShadeBands:      post.CellShadeBands,
		TexelSize:           [2]float32{1 / float32(max(width, 1)), 1 / float32(max(height, 1))},
		Time:                time,
	}
	if post.Enabled {
		p.Enabled = 1
	}
	if bloom.Active() && bloom.Intensity > 0 {
		p.Flags |= PostFlagBloom
	}
	if hasAO && post.SSAOStrength > 0 {
		p.Flags |= PostFlagSSAO
	}
	if hasOutline && post.OutlineStrength > 0 {
		p.Flags |= PostFlagOutline
	}
	return p
}

// Size returns the size of the GPUPostParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (128)
func (p *GPUPostParams) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes the GPUPostParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 128-byte buffer ready for GPU upload
func (p *GPUPostParams) Marshal() []byte {
	buf := make([]byte, 128)
	putFloats(buf[0:], p.Exposure, p.Gamma, p.Saturation, p.Contrast,
		p.VignetteStrength, p.VignetteInner, p.VignetteOuter, p.Grain,
		p.ChromaticAberration, p.Blur, p.Sharpen, p.BloomIntensity,
		p.OutlineStrength, p.OutlineThreshold, p.OutlineWidth, p.OutlineQuality)
	putFloats(buf[64:], p.OutlineColor[:]...)
	putFloats(buf[80:], p.SSAOStrength, p.SSAOPower, p.PosterizeLevels, p.CellShadeBands,
		p.TexelSize[0], p.TexelSize[1], p.Time)
	binary.LittleEndian.PutUint32(buf[108:], p.Enabled)
	binary.LittleEndian.PutUint32(buf[112:], p.Flags)
	return buf
}

func putFloats(buf []byte, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}
