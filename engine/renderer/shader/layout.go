package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// StructLayout is the host-shareable memory layout of a WGSL struct: its size, its alignment
// and the byte offset of each non-builtin field. A runtime-sized array member counts as one
// element, which makes Size the minimum binding size.
type StructLayout struct {
	Size    uint64
	Align   uint64
	Offsets map[string]uint64
}

// StructLayouts computes the layout of every struct declared in a WGSL source. Structs whose
// fields cannot all be resolved are left out.
//
// Parameters:
//   - source: WGSL source, comments allowed
//
// Returns:
//   - map[string]StructLayout: layouts by struct name
func StructLayouts(source string) map[string]StructLayout {
	_, layouts := resolveStructs(newWGSLSource(source).structs)
	return layouts
}

// primitiveLayouts holds the size and alignment of every scalar, vector, matrix and atomic type.
var primitiveLayouts = buildPrimitiveLayouts()

func buildPrimitiveLayouts() map[string]wgslTypeLayout {
	layouts := map[string]wgslTypeLayout{
		"bool":        {4, 4},
		"atomic<u32>": {4, 4},
		"atomic<i32>": {4, 4},
	}

	scalars := []struct {
		name, short string
		size        uint64
	}{
		{"f32", "f", 4},
		{"i32", "i", 4},
		{"u32", "u", 4},
		{"f16", "h", 2},
	}
	for _, s := range scalars {
		layouts[s.name] = wgslTypeLayout{s.size, s.size}
		for n := uint64(2); n <= 4; n++ {
			v := vectorLayout(n, s.size)
			layouts[fmt.Sprintf("vec%d<%s>", n, s.name)] = v
			layouts[fmt.Sprintf("vec%d%s", n, s.short)] = v
		}
	}

	// matCxR<f32> is C columns of vecR<f32>, each padded to the column alignment.
	for c := uint64(2); c <= 4; c++ {
		for r := uint64(2); r <= 4; r++ {
			col := vectorLayout(r, 4)
			m := wgslTypeLayout{c * roundUpAlign(col.align, col.size), col.align}
			layouts[fmt.Sprintf("mat%dx%d<f32>", c, r)] = m
			layouts[fmt.Sprintf("mat%dx%df", c, r)] = m
		}
	}
	return layouts
}

// vectorLayout is the layout of an n-component vector of scalars of the given size.
// vec3 aligns like vec4.
func vectorLayout(n, scalar uint64) wgslTypeLayout {
	align := scalar * 4
	if n == 2 {
		align = scalar * 2
	}
	return wgslTypeLayout{n * scalar, align}
}

// roundUpAlign rounds value up to a multiple of alignment, a power of two. Zero leaves value as is.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// arrayElement splits "array<T, N>" or "array<T>" into its element type and count.
// A count of 0 marks a runtime-sized array.
func arrayElement(typeName string) (elem string, count uint64, ok bool) {
	if !strings.HasPrefix(typeName, "array<") || !strings.HasSuffix(typeName, ">") {
		return "", 0, false
	}
	inner := typeName[len("array<") : len(typeName)-1]
	elem, countText, sized := strings.Cut(inner, ",")
	elem = strings.TrimSpace(elem)
	if !sized {
		return elem, 0, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(countText), 10, 64)
	if err != nil || count == 0 {
		return "", 0, false
	}
	return elem, count, true
}

// resolveTypeLayout resolves a type against the primitives and the structs resolved so far.
// A runtime-sized array resolves to one element.
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := primitiveLayouts[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	elem, count, ok := arrayElement(typeName)
	if !ok {
		return wgslTypeLayout{}, false
	}
	elemLayout, ok := resolveTypeLayout(elem, knownTypes)
	if !ok {
		return wgslTypeLayout{}, false
	}
	stride := roundUpAlign(elemLayout.align, elemLayout.size)
	return wgslTypeLayout{max(count, 1) * stride, elemLayout.align}, true
}

// structLayout places each field at the next offset aligned for its type and rounds the size up
// to the largest field alignment. A trailing runtime-sized array whose element is not known
// yet ends the struct at the current offset. Builtin fields take no space.
func structLayout(ps parsedStruct, knownTypes map[string]wgslTypeLayout) (StructLayout, bool) {
	layout := StructLayout{Align: 1, Offsets: make(map[string]uint64, len(ps.fields))}
	offset := uint64(0)

	for _, field := range ps.fields {
		if field.isBuiltin {
			continue
		}

		fl, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			_, count, isArray := arrayElement(field.typeName)
			if !isArray || count != 0 || offset == 0 {
				return StructLayout{}, false
			}
			layout.Offsets[field.name] = roundUpAlign(layout.Align, offset)
			layout.Size = roundUpAlign(layout.Align, offset)
			return layout, true
		}

		offset = roundUpAlign(fl.align, offset)
		layout.Offsets[field.name] = offset
		offset += fl.size
		layout.Align = max(layout.Align, fl.align)
	}

	layout.Size = roundUpAlign(layout.Align, offset)
	return layout, true
}

// resolveStructs lays out every struct, repeating until no further struct resolves so that
// declaration order does not matter.
func resolveStructs(structs []parsedStruct) (map[string]wgslTypeLayout, map[string]StructLayout) {
	known := make(map[string]wgslTypeLayout, len(structs))
	layouts := make(map[string]StructLayout, len(structs))
	pending := append([]parsedStruct(nil), structs...)

	for len(pending) > 0 {
		var next []parsedStruct
		for _, ps := range pending {
			layout, ok := structLayout(ps, known)
			if !ok {
				next = append(next, ps)
				continue
			}
			layouts[ps.name] = layout
			known[ps.name] = wgslTypeLayout{layout.Size, layout.Align}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return known, layouts
}
