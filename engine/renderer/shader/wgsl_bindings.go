package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupDeclRegex captures group, binding, address space, name and type of declarations
// like "@group(0) @binding(0) var<uniform> camera: Camera;" and handle types without an
// address space.
var bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

// textureKind describes a WGSL texture base type.
type textureKind struct {
	dimension    wgpu.TextureViewDimension
	multisampled bool
	depth        bool
	storage      bool
}

var textureKinds = map[string]textureKind{
	"texture_1d":                    {dimension: wgpu.TextureViewDimension1D},
	"texture_2d":                    {dimension: wgpu.TextureViewDimension2D},
	"texture_2d_array":              {dimension: wgpu.TextureViewDimension2DArray},
	"texture_3d":                    {dimension: wgpu.TextureViewDimension3D},
	"texture_cube":                  {dimension: wgpu.TextureViewDimensionCube},
	"texture_cube_array":            {dimension: wgpu.TextureViewDimensionCubeArray},
	"texture_multisampled_2d":       {dimension: wgpu.TextureViewDimension2D, multisampled: true},
	"texture_depth_2d":              {dimension: wgpu.TextureViewDimension2D, depth: true},
	"texture_depth_2d_array":        {dimension: wgpu.TextureViewDimension2DArray, depth: true},
	"texture_depth_cube":            {dimension: wgpu.TextureViewDimensionCube, depth: true},
	"texture_depth_cube_array":      {dimension: wgpu.TextureViewDimensionCubeArray, depth: true},
	"texture_depth_multisampled_2d": {dimension: wgpu.TextureViewDimension2D, multisampled: true, depth: true},
	"texture_storage_1d":            {dimension: wgpu.TextureViewDimension1D, storage: true},
	"texture_storage_2d":            {dimension: wgpu.TextureViewDimension2D, storage: true},
	"texture_storage_2d_array":      {dimension: wgpu.TextureViewDimension2DArray, storage: true},
	"texture_storage_3d":            {dimension: wgpu.TextureViewDimension3D, storage: true},
}

var samplerTypes = map[string]wgpu.SamplerBindingType{
	"sampler":            wgpu.SamplerBindingTypeFiltering,
	"sampler_comparison": wgpu.SamplerBindingTypeComparison,
}

var sampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var storageAccess = map[string]wgpu.StorageTextureAccess{
	"read":       wgpu.StorageTextureAccessReadOnly,
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// texelFormats lists the storage texel formats WGSL accepts.
var texelFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba8snorm":  wgpu.TextureFormatRGBA8Snorm,
	"rgba8uint":   wgpu.TextureFormatRGBA8Uint,
	"rgba8sint":   wgpu.TextureFormatRGBA8Sint,
	"rgba16uint":  wgpu.TextureFormatRGBA16Uint,
	"rgba16sint":  wgpu.TextureFormatRGBA16Sint,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"r32sint":     wgpu.TextureFormatR32Sint,
	"r32float":    wgpu.TextureFormatR32Float,
	"rg32uint":    wgpu.TextureFormatRG32Uint,
	"rg32sint":    wgpu.TextureFormatRG32Sint,
	"rg32float":   wgpu.TextureFormatRG32Float,
	"rgba32uint":  wgpu.TextureFormatRGBA32Uint,
	"rgba32sint":  wgpu.TextureFormatRGBA32Sint,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
}

// bindGroupLayouts collects every @group/@binding declaration into one layout descriptor per
// group, entries sorted by binding, each visible to the given stage. Buffer entries get the
// size of their bound type as MinBindingSize.
//
// Parameters:
//   - visibility: the stage that declares the bindings
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
//   - map[int]map[int]string: variable names keyed by group and binding
func (src wgslSource) bindGroupLayouts(visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	typeLayouts, _ := resolveStructs(src.structs)
	entries := make(map[int][]wgpu.BindGroupLayoutEntry)
	names := make(map[int]map[int]string)

	for _, m := range bindGroupDeclRegex.FindAllStringSubmatch(src.text, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		typeName := strings.TrimSpace(m[5])

		entry := classifyResource(uint32(binding), visibility, m[3], typeName)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if layout, ok := resolveTypeLayout(typeName, typeLayouts); ok {
				entry.Buffer.MinBindingSize = layout.size
			}
		}
		entries[group] = append(entries[group], entry)

		if names[group] == nil {
			names[group] = make(map[int]string)
		}
		names[group][binding] = m[4]
	}

	layouts := make(map[int]wgpu.BindGroupLayoutDescriptor, len(entries))
	for group, list := range entries {
		slices.SortFunc(list, func(a, b wgpu.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
		layouts[group] = wgpu.BindGroupLayoutDescriptor{Entries: list}
	}
	return layouts, names
}

// classifyResource builds the layout entry for one declaration. A declaration with an address
// space is a buffer; otherwise the type name selects a sampler, a sampled or depth texture,
// or a storage texture. Unknown types leave the entry without a resource.
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}

	space, access, _ := strings.Cut(addressSpace, ",")
	switch strings.TrimSpace(space) {
	case "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		return entry
	case "storage":
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.TrimSpace(access) == "read_write" {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
		return entry
	}

	if sampler, ok := samplerTypes[typeName]; ok {
		entry.Sampler.Type = sampler
		return entry
	}

	base, params := splitTypeParams(typeName)
	kind, ok := textureKinds[base]
	if !ok {
		return entry
	}

	if kind.storage {
		format, mode, _ := strings.Cut(params, ",")
		entry.StorageTexture.ViewDimension = kind.dimension
		entry.StorageTexture.Format = texelFormats[strings.TrimSpace(format)]
		entry.StorageTexture.Access = storageAccess[strings.TrimSpace(mode)]
		return entry
	}

	entry.Texture.ViewDimension = kind.dimension
	entry.Texture.Multisampled = kind.multisampled
	if kind.depth {
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
	} else {
		entry.Texture.SampleType = sampleTypes[params]
	}
	return entry
}
