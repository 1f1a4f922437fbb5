package shadow

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

func caster() light.GPULight {
	l := light.GPULight{KindFlags: [4]uint32{uint32(light.LightTypeDirectional), light.FlagCastsShadow}}
	common.Identity(l.ViewProj[:])
	return l
}

func smallAtlas() AtlasConfig {
	return AtlasConfig{TileResolution: 4, AtlasTilesW: 2, AtlasTilesH: 2, AtlasLayers: 1, VirtualGridSize: 2}
}

func TestAtlasConfigValidate(t *testing.T) {
	if err := DefaultAtlasConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*AtlasConfig)
		field  string
	}{
		{"zero tile resolution", func(c *AtlasConfig) { c.TileResolution = 0 }, "tile_resolution"},
		{"zero tiles wide", func(c *AtlasConfig) { c.AtlasTilesW = 0 }, "atlas_tiles_w"},
		{"zero tiles high", func(c *AtlasConfig) { c.AtlasTilesH = 0 }, "atlas_tiles_h"},
		{"zero layers", func(c *AtlasConfig) { c.AtlasLayers = 0 }, "atlas_layers"},
		{"zero grid", func(c *AtlasConfig) { c.VirtualGridSize = 0 }, "virtual_grid_size"},
		{"huge smoothing", func(c *AtlasConfig) { c.Smoothing = MaxSmoothing + 1 }, "smoothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAtlasConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidAtlas) {
				t.Fatalf("Validate() = %v, want ErrInvalidAtlas", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestAtlasTile(t *testing.T) {
	cfg := AtlasConfig{AtlasTilesW: 3, AtlasTilesH: 2, AtlasLayers: 2}
	tests := []struct {
		tile          uint32
		layer, tx, ty uint32
	}{
		{0, 0, 0, 0},
		{2, 0, 2, 0},
		{3, 0, 0, 1},
		{5, 0, 2, 1},
		{6, 1, 0, 0},
		{10, 1, 1, 1},
	}
	for _, tt := range tests {
		layer, tx, ty := cfg.Tile(tt.tile)
		if layer != tt.layer || tx != tt.tx || ty != tt.ty {
			t.Errorf("Tile(%d) = (%d, %d, %d), want (%d, %d, %d)", tt.tile, layer, tx, ty, tt.layer, tt.tx, tt.ty)
		}
	}
}

func TestSlotDeterministic(t *testing.T) {
	tests := []struct {
		light, gx, gy, want uint32
	}{
		{0, 0, 0, 0},
		{3, 1, 2, 6},
		{1023, 1, 0, 0},
		{1000, 20, 10, 6},
	}
	for _, tt := range tests {
		if got := Slot(tt.light, tt.gx, tt.gy); got != tt.want {
			t.Errorf("Slot(%d, %d, %d) = %d, want %d", tt.light, tt.gx, tt.gy, got, tt.want)
		}
		if Slot(tt.light, tt.gx, tt.gy) != Slot(tt.light, tt.gx, tt.gy) {
			t.Error("Slot is not deterministic")
		}
	}
}

func TestAllocateCollisionOverwrites(t *testing.T) {
	pt := NewPageTable(smallAtlas())
	pt.Allocate([]light.GPULight{caster()})

	// Cells (1, 0) and (0, 1) of light 0 both hash to slot 1; row-major order writes (0, 1) last.
	e := pt.Entry(1)
	if !e.Allocated() {
		t.Fatal("slot 1 should be allocated")
	}
	if e.GridX != 0 || e.GridY != 1 {
		t.Errorf("slot 1 owned by cell (%d, %d), want (0, 1)", e.GridX, e.GridY)
	}
	if got := len(pt.Pages()); got != 3 {
		t.Errorf("len(Pages()) = %d, want 3 distinct slots", got)
	}
	if pt.Lookup(PageKey{Light: 0, GX: 1, GY: 0}) != e {
		t.Error("colliding keys should read the same slot")
	}
}

func TestAllocateScaleOffset(t *testing.T) {
	pt := NewPageTable(smallAtlas())
	pt.Allocate([]light.GPULight{caster()})

	want := map[uint32][4]float32{
		0: {0.5, 0.5, 0, 0},
		1: {0.5, 0.5, 0.5, 0},
		2: {0.5, 0.5, 0, 0.5},
	}
	for slot, so := range want {
		if got := pt.Entry(slot).ScaleOffset; got != so {
			t.Errorf("slot %d scale_offset = %v, want %v", slot, got, so)
		}
	}
	if pt.Entry(3).Allocated() {
		t.Error("slot 3 should be unallocated")
	}
	pages := pt.Pages()
	if pages[1].Rect != [4]uint32{4, 0, 4, 4} {
		t.Errorf("page 1 rect = %v", pages[1].Rect)
	}
}

func TestAllocateSkipsNonCasters(t *testing.T) {
	pt := NewPageTable(smallAtlas())
	nonCaster := caster()
	nonCaster.KindFlags[1] = 0
	pt.Allocate([]light.GPULight{nonCaster, caster()})

	if pt.Entry(0).Allocated() {
		t.Error("slot 0 belongs only to the non-casting light and must stay empty")
	}
	for _, p := range pt.Pages() {
		if p.Key.Light != 1 {
			t.Errorf("page for light %d, want only light 1", p.Key.Light)
		}
	}
}

func TestAllocateCapacityExhausted(t *testing.T) {
	cfg := smallAtlas()
	cfg.AtlasTilesW, cfg.AtlasTilesH = 1, 1
	pt := NewPageTable(cfg)
	pt.Allocate([]light.GPULight{caster()})

	if got := len(pt.Pages()); got != 1 {
		t.Fatalf("len(Pages()) = %d, want 1", got)
	}
	if !pt.Entry(0).Allocated() {
		t.Error("lowest slot should receive the only tile")
	}
	if pt.Entry(1).Allocated() || pt.Entry(2).Allocated() {
		t.Error("slots beyond capacity must stay unallocated")
	}
	if len(pt.Marshal()) != PageTableSize*32 {
		t.Errorf("len(Marshal()) = %d", len(pt.Marshal()))
	}
}

func TestPageViewProjFillsCell(t *testing.T) {
	var id [16]float32
	common.Identity(id[:])
	vp := PageViewProj(id, 2, 1, 0)

	// The top-right quadrant center of the light NDC maps to the page center.
	clip := common.TransformVec4(vp[:], [4]float32{0.5, 0.5, 0.3, 1})
	if clip[0] != 0 || clip[1] != 0 || clip[2] != 0.3 {
		t.Errorf("cell center maps to %v, want (0, 0, 0.3)", clip)
	}
}

func TestFactor(t *testing.T) {
	cfg := smallAtlas()
	pt := NewPageTable(cfg)
	lights := []light.GPULight{caster()}
	pt.Allocate(lights)
	params := NewShadowParams(cfg, 0.001, 0.01)

	atlas := NewDepthAtlas(cfg)
	// Occluder at depth 0.2 across the tile of slot 0 (cell (0, 0), upper-left quadrant).
	atlas.Fill(0, pt.Pages()[0].Rect, 0.2)

	vp := lights[0].ViewProj
	tests := []struct {
		name  string
		world mgl32.Vec3
		table []GPUShadowPageEntry
		want  float32
	}{
		{"occluded in cell (0, 0)", mgl32.Vec3{-0.5, 0.5, 0.5}, pt.Entries(), 0},
		{"in front of occluder", mgl32.Vec3{-0.5, 0.5, 0.1}, pt.Entries(), 1},
		{"outside light volume", mgl32.Vec3{-2, 0.5, 0.5}, pt.Entries(), 1},
		{"depth beyond far", mgl32.Vec3{-0.5, 0.5, 1.5}, pt.Entries(), 1},
		{"unallocated page", mgl32.Vec3{-0.5, 0.5, 0.5}, make([]GPUShadowPageEntry, PageTableSize), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Factor(params, tt.table, atlas, 0, vp, tt.world, 1); got != tt.want {
				t.Errorf("Factor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBias(t *testing.T) {
	if got := Bias(0.001, 0.01, 1); got != 0.001 {
		t.Errorf("Bias at normal incidence = %v, want 0.001", got)
	}
	if got := Bias(0.001, 0.01, 0); got != 0.01 {
		t.Errorf("Bias at grazing incidence = %v, want 0.01", got)
	}
}

func TestGPUSizes(t *testing.T) {
	var e GPUShadowPageEntry
	var p GPUShadowParams
	var d GPUPageDraw
	if e.Size() != 32 || p.Size() != 32 || d.Size() != 64 {
		t.Errorf("sizes = %d, %d, %d", e.Size(), p.Size(), d.Size())
	}
	if got := len(MarshalPageDraws(nil)); got != PageDrawStride {
		t.Errorf("len(MarshalPageDraws(nil)) = %d", got)
	}
}
