package shadow

import (
	"errors"
	"fmt"
)

// ErrInvalidAtlas is returned by AtlasConfig.Validate for unusable atlas dimensions.
var ErrInvalidAtlas = errors.New("shadow: invalid atlas configuration")

// Default atlas configuration values.
const (
	DefaultTileResolution  = 512
	DefaultAtlasTilesW     = 8
	DefaultAtlasTilesH     = 8
	DefaultAtlasLayers     = 2
	DefaultVirtualGridSize = 4
	DefaultSmoothing       = 1
)

// MaxSmoothing bounds the PCF kernel radius so the kernel stays at most 9x9 taps.
const MaxSmoothing = 4

// AtlasConfig describes the shared shadow atlas and the virtual grid each light is split into.
type AtlasConfig struct {
	// TileResolution is the width and height in texels of one atlas tile (page).
	TileResolution uint32
	// AtlasTilesW is the number of tile columns per atlas layer.
	AtlasTilesW uint32
	// AtlasTilesH is the number of tile rows per atlas layer.
	AtlasTilesH uint32
	// AtlasLayers is the number of layers of the depth texture array.
	AtlasLayers uint32
	// VirtualGridSize is the number of grid cells per axis of each light's shadow volume.
	VirtualGridSize uint32
	// Smoothing is the PCF kernel radius; the kernel is (2*Smoothing+1) squared taps.
	Smoothing uint32
}

// DefaultAtlasConfig returns the default atlas configuration.
//
// Returns:
//   - AtlasConfig: a 4096x4096x2 atlas of 512 texel tiles with a 4x4 virtual grid
func DefaultAtlasConfig() AtlasConfig {
	return AtlasConfig{
		TileResolution:  DefaultTileResolution,
		AtlasTilesW:     DefaultAtlasTilesW,
		AtlasTilesH:     DefaultAtlasTilesH,
		AtlasLayers:     DefaultAtlasLayers,
		VirtualGridSize: DefaultVirtualGridSize,
		Smoothing:       DefaultSmoothing,
	}
}

// Validate reports every unusable field of the configuration. The returned error wraps
// ErrInvalidAtlas.
//
// Returns:
//   - error: nil if the configuration is usable
func (c AtlasConfig) Validate() error {
	var errs []error
	check := func(name string, v uint32) {
		if v == 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAtlas, name))
		}
	}
	check("tile_resolution", c.TileResolution)
	check("atlas_tiles_w", c.AtlasTilesW)
	check("atlas_tiles_h", c.AtlasTilesH)
	check("atlas_layers", c.AtlasLayers)
	check("virtual_grid_size", c.VirtualGridSize)
	if c.Smoothing > MaxSmoothing {
		errs = append(errs, fmt.Errorf("%w: smoothing %d exceeds %d", ErrInvalidAtlas, c.Smoothing, MaxSmoothing))
	}
	return errors.Join(errs...)
}

// Capacity returns the number of tiles across all atlas layers.
//
// Returns:
//   - uint32: AtlasTilesW * AtlasTilesH * AtlasLayers
func (c AtlasConfig) Capacity() uint32 {
	return c.AtlasTilesW * c.AtlasTilesH * c.AtlasLayers
}

// Size returns the texel dimensions of one atlas layer.
//
// Returns:
//   - width: TileResolution * AtlasTilesW
//   - height: TileResolution * AtlasTilesH
func (c AtlasConfig) Size() (width, height uint32) {
	return c.TileResolution * c.AtlasTilesW, c.TileResolution * c.AtlasTilesH
}

// TexelSize returns the UV size of one atlas texel.
//
// Returns:
//   - [2]float32: (1/width, 1/height), or zero for an empty atlas
func (c AtlasConfig) TexelSize() [2]float32 {
	w, h := c.Size()
	if w == 0 || h == 0 {
		return [2]float32{}
	}
	return [2]float32{1 / float32(w), 1 / float32(h)}
}

// Tile resolves a linear tile number to its layer and tile coordinates. Tiles fill a layer
// row by row before moving to the next layer.
//
// Parameters:
//   - t: the linear tile number
//
// Returns:
//   - layer: t / (W*H)
//   - tx: t mod W
//   - ty: (t / W) mod H
func (c AtlasConfig) Tile(t uint32) (layer, tx, ty uint32) {
	perLayer := c.AtlasTilesW * c.AtlasTilesH
	return t / perLayer, t % c.AtlasTilesW, (t / c.AtlasTilesW) % c.AtlasTilesH
}
