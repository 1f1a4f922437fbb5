package shadow

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
)

// PageTableSize is the fixed number of slots of the shadow page table.
const PageTableSize = 1024

// PageKey identifies one grid cell of one light's virtual shadow map.
type PageKey struct {
	Light uint32
	GX    uint32
	GY    uint32
}

// Slot hashes a page key to its page table slot: (light + gy + gx) mod PageTableSize.
// Distinct keys may share a slot; the later write wins.
//
// Parameters:
//   - lightIndex: index of the light in the frame's light array
//   - gx: grid cell column
//   - gy: grid cell row
//
// Returns:
//   - uint32: the slot index
func Slot(lightIndex, gx, gy uint32) uint32 {
	return (lightIndex + gy + gx) % PageTableSize
}

// Page is one allocated atlas tile and the key that owns it this frame.
type Page struct {
	Slot  uint32
	Key   PageKey
	Tile  uint32
	Layer uint32
	// Rect is the tile's destination rectangle in atlas texels (x, y, width, height).
	Rect [4]uint32
	// ViewProj is the light's view-projection cropped to the page's grid cell.
	ViewProj [16]float32
}

// PageTable assigns atlas tiles to (light, cell) keys once per frame.
// The zero value is not usable; create one with NewPageTable.
type PageTable struct {
	cfg      AtlasConfig
	entries  [PageTableSize]GPUShadowPageEntry
	keys     [PageTableSize]PageKey
	occupied [PageTableSize]bool
	pages    []Page
}

// NewPageTable creates an empty page table for the given atlas.
//
// Parameters:
//   - cfg: the atlas configuration
//
// Returns:
//   - *PageTable: the page table
func NewPageTable(cfg AtlasConfig) *PageTable {
	return &PageTable{cfg: cfg}
}

// Config returns the atlas configuration the table allocates into.
func (pt *PageTable) Config() AtlasConfig {
	return pt.cfg
}

// Reset clears every slot.
func (pt *PageTable) Reset() {
	pt.entries = [PageTableSize]GPUShadowPageEntry{}
	pt.keys = [PageTableSize]PageKey{}
	pt.occupied = [PageTableSize]bool{}
	pt.pages = pt.pages[:0]
}

// Allocate rebuilds the table for the frame's lights. Every cell of every shadow-casting light
// is written to its slot in light-ascending, then row, then column order, so a later key
// silently replaces an earlier one that hashed to the same slot. Occupied slots are then
// assigned atlas tiles in ascending slot order; slots beyond the atlas capacity stay unallocated.
//
// Parameters:
//   - lights: the frame's packed lights, indexed as on the GPU
func (pt *PageTable) Allocate(lights []light.GPULight) {
	pt.Reset()
	grid := pt.cfg.VirtualGridSize
	for i := range lights {
		if !lights[i].CastsShadow() {
			continue
		}
		for gy := range grid {
			for gx := range grid {
				s := Slot(uint32(i), gx, gy)
				pt.keys[s] = PageKey{Light: uint32(i), GX: gx, GY: gy}
				pt.occupied[s] = true
			}
		}
	}

	capacity := pt.cfg.Capacity()
	w, h := float32(pt.cfg.AtlasTilesW), float32(pt.cfg.AtlasTilesH)
	res := pt.cfg.TileResolution
	var tile uint32
	for s := range uint32(PageTableSize) {
		if !pt.occupied[s] {
			continue
		}
		if tile >= capacity {
			break
		}
		key := pt.keys[s]
		layer, tx, ty := pt.cfg.Tile(tile)
		pt.entries[s] = GPUShadowPageEntry{
			ScaleOffset: [4]float32{1 / w, 1 / h, float32(tx) / w, float32(ty) / h},
			Layer:       layer,
			LightIndex:  key.Light,
			GridX:       key.GX,
			GridY:       key.GY,
		}
		pt.pages = append(pt.pages, Page{
			Slot:     s,
			Key:      key,
			Tile:     tile,
			Layer:    layer,
			Rect:     [4]uint32{tx * res, ty * res, res, res},
			ViewProj: PageViewProj(lights[key.Light].ViewProj, grid, key.GX, key.GY),
		})
		tile++
	}
}

// Entry returns the page table entry stored in a slot.
//
// Parameters:
//   - slot: the slot index
//
// Returns:
//   - GPUShadowPageEntry: the entry, all zero if unallocated or out of range
func (pt *PageTable) Entry(slot uint32) GPUShadowPageEntry {
	if slot >= PageTableSize {
		return GPUShadowPageEntry{}
	}
	return pt.entries[slot]
}

// Lookup returns the entry that the forward pass would read for a key.
//
// Parameters:
//   - key: the page key
//
// Returns:
//   - GPUShadowPageEntry: the entry in the key's slot
func (pt *PageTable) Lookup(key PageKey) GPUShadowPageEntry {
	return pt.entries[Slot(key.Light, key.GX, key.GY)]
}

// Entries returns a copy of the full table in slot order.
func (pt *PageTable) Entries() []GPUShadowPageEntry {
	out := make([]GPUShadowPageEntry, PageTableSize)
	copy(out, pt.entries[:])
	return out
}

// Pages returns the pages allocated by the last Allocate call in slot order.
func (pt *PageTable) Pages() []Page {
	return pt.pages
}

// PagesByLayer groups the allocated pages by atlas layer.
//
// Returns:
//   - [][]Page: one slice per atlas layer
func (pt *PageTable) PagesByLayer() [][]Page {
	out := make([][]Page, pt.cfg.AtlasLayers)
	for _, p := range pt.pages {
		out[p.Layer] = append(out[p.Layer], p)
	}
	return out
}

// Marshal serializes the full table for upload to the page table storage buffer.
//
// Returns:
//   - []byte: PageTableSize * 32 bytes
func (pt *PageTable) Marshal() []byte {
	return MarshalPageEntries(pt.entries[:])
}

// PageViewProj scopes a light's view-projection to one cell of its virtual grid, so the
// cell fills the whole clip volume of the page's tile.
//
// Parameters:
//   - lightViewProj: the light's full view-projection
//   - grid: the virtual grid size
//   - gx: grid cell column
//   - gy: grid cell row
//
// Returns:
//   - [16]float32: crop * lightViewProj
func PageViewProj(lightViewProj [16]float32, grid, gx, gy uint32) [16]float32 {
	var crop, out [16]float32
	common.CropToCell(crop[:], grid, gx, gy)
	common.Mul4(out[:], crop[:], lightViewProj[:])
	return out
}
