package shadow

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// PageDrawStride is the byte stride between page draw uniforms in the dynamic uniform buffer.
// It equals the minimum uniform buffer offset alignment guaranteed by WebGPU.
const PageDrawStride = 256

// DepthShaderSource renders static geometry into one atlas page.
//
//go:embed assets/shadow_depth.wgsl
var DepthShaderSource string

// DepthSkinnedShaderSource renders skinned geometry into one atlas page.
//
//go:embed assets/shadow_depth_skinned.wgsl
var DepthSkinnedShaderSource string

// GPUShadowPageEntrySource is the canonical WGSL definition of the ShadowPageEntry struct.
// Matches GPUShadowPageEntry layout exactly (32 bytes).
//
//go:embed assets/shadow_page.wgsl
var GPUShadowPageEntrySource string

// GPUShadowPageEntry is one slot of the shadow page table.
// Matches the WGSL ShadowPageEntry struct layout exactly (see GPUShadowPageEntrySource).
// Size: 32 bytes. An all-zero ScaleOffset marks an unallocated page.
type GPUShadowPageEntry struct {
	ScaleOffset [4]float32 // offset  0: xy scale, zw offset into atlas UV
	Layer       uint32     // offset 16: atlas layer
	LightIndex  uint32     // offset 20: owning light
	GridX       uint32     // offset 24: owning grid column
	GridY       uint32     // offset 28: owning grid row
}

// Size returns the size of the GPUShadowPageEntry struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (e *GPUShadowPageEntry) Size() int {
	return int(unsafe.Sizeof(*e))
}

// Allocated reports whether the entry refers to an atlas tile.
//
// Returns:
//   - bool: false if ScaleOffset is all zero
func (e GPUShadowPageEntry) Allocated() bool {
	return e.ScaleOffset != [4]float32{}
}

// Marshal serializes the GPUShadowPageEntry struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (e *GPUShadowPageEntry) Marshal() []byte {
	buf := make([]byte, 32)
	e.put(buf)
	return buf
}

func (e *GPUShadowPageEntry) put(buf []byte) {
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(e.ScaleOffset[i]))
	}
	binary.LittleEndian.PutUint32(buf[16:20], e.Layer)
	binary.LittleEndian.PutUint32(buf[20:24], e.LightIndex)
	binary.LittleEndian.PutUint32(buf[24:28], e.GridX)
	binary.LittleEndian.PutUint32(buf[28:32], e.GridY)
}

// MarshalPageEntries packs page table entries into one contiguous storage buffer payload.
//
// Parameters:
//   - entries: the entries to pack
//
// Returns:
//   - []byte: len(entries) * 32 bytes
func MarshalPageEntries(entries []GPUShadowPageEntry) []byte {
	buf := make([]byte, len(entries)*32)
	for i := range entries {
		entries[i].put(buf[i*32:])
	}
	return buf
}

// GPUShadowParamsSource is the canonical WGSL definition of the ShadowParams struct.
// Matches GPUShadowParams layout exactly (32 bytes).
//
//go:embed assets/shadow_params.wgsl
var GPUShadowParamsSource string

// GPUShadowParams holds the shadow sampling parameters of the forward pass.
// Matches the WGSL ShadowParams struct layout exactly (see GPUShadowParamsSource).
// Size: 32 bytes.
type GPUShadowParams struct {
	BiasMin   float32    // offset  0: lower bound of the depth bias
	BiasSlope float32    // offset  4: bias growth with 1 - n.l
	Grid      uint32     // offset  8: virtual grid cells per axis
	Smoothing uint32     // offset 12: PCF kernel radius
	TexelSize [2]float32 // offset 16: UV size of one atlas texel
	Layers    uint32     // offset 24: atlas layer count
	_pad      uint32     // offset 28: padding to 32 bytes
}

// Size returns the size of the GPUShadowParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (p *GPUShadowParams) Size() int {
	return int(unsafe.Sizeof(*p))
}

// Marshal serializes the GPUShadowParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (p *GPUShadowParams) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.BiasMin))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.BiasSlope))
	binary.LittleEndian.PutUint32(buf[8:12], p.Grid)
	binary.LittleEndian.PutUint32(buf[12:16], p.Smoothing)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(p.TexelSize[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(p.TexelSize[1]))
	binary.LittleEndian.PutUint32(buf[24:28], p.Layers)
	binary.LittleEndian.PutUint32(buf[28:32], 0) // padding
	return buf
}

// NewShadowParams builds the shadow sampling parameters from the atlas configuration and
// the bias settings.
//
// Parameters:
//   - cfg: the atlas configuration
//   - biasMin: lower bound of the depth bias
//   - biasSlope: bias growth with 1 - n.l
//
// Returns:
//   - GPUShadowParams: the parameters
func NewShadowParams(cfg AtlasConfig, biasMin, biasSlope float32) GPUShadowParams {
	return GPUShadowParams{
		BiasMin:   biasMin,
		BiasSlope: biasSlope,
		Grid:      cfg.VirtualGridSize,
		Smoothing: cfg.Smoothing,
		TexelSize: cfg.TexelSize(),
		Layers:    cfg.AtlasLayers,
	}
}

// GPUPageDrawSource is the canonical WGSL definition of the PageDraw struct.
// Matches GPUPageDraw layout exactly (64 bytes, placed at PageDrawStride intervals).
//
//go:embed assets/page_draw.wgsl
var GPUPageDrawSource string

// GPUPageDraw is the per-page uniform of the shadow depth pass.
// Matches the WGSL PageDraw struct layout exactly (see GPUPageDrawSource).
// Size: 64 bytes.
type GPUPageDraw struct {
	ViewProj [16]float32 // offset 0: page-cropped light view-projection
}

// Size returns the size of the GPUPageDraw struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (d *GPUPageDraw) Size() int {
	return int(unsafe.Sizeof(*d))
}

// Marshal serializes the GPUPageDraw struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (d *GPUPageDraw) Marshal() []byte {
	buf := make([]byte, 64)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(d.ViewProj[i]))
	}
	return buf
}

// MarshalPageDraws packs one page draw uniform per page at PageDrawStride intervals for
// binding with a dynamic offset. An empty page list yields one zeroed stride.
//
// Parameters:
//   - pages: the allocated pages
//
// Returns:
//   - []byte: max(1, len(pages)) * PageDrawStride bytes
func MarshalPageDraws(pages []Page) []byte {
	buf := make([]byte, max(1, len(pages))*PageDrawStride)
	for i, p := range pages {
		d := GPUPageDraw{ViewProj: p.ViewProj}
		copy(buf[i*PageDrawStride:], d.Marshal())
	}
	return buf
}
