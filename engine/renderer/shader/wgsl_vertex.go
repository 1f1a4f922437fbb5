package shader

import (
	"fmt"
	"regexp"

	"github.com/cogentcore/webgpu/wgpu"
)

// returnTypeRegex captures the type a function returns.
var returnTypeRegex = regexp.MustCompile(`->\s*(\w+)`)

// vertexAttribute is the vertex format of a WGSL type and its tightly packed byte size.
type vertexAttribute struct {
	format wgpu.VertexFormat
	size   uint64
}

var vertexAttributes = buildVertexAttributes()

func buildVertexAttributes() map[string]vertexAttribute {
	scalars := []struct {
		name, short string
		size        uint64
		formats     map[uint64]wgpu.VertexFormat
	}{
		{"f32", "f", 4, map[uint64]wgpu.VertexFormat{
			1: wgpu.VertexFormatFloat32, 2: wgpu.VertexFormatFloat32x2,
			3: wgpu.VertexFormatFloat32x3, 4: wgpu.VertexFormatFloat32x4,
		}},
		{"i32", "i", 4, map[uint64]wgpu.VertexFormat{
			1: wgpu.VertexFormatSint32, 2: wgpu.VertexFormatSint32x2,
			3: wgpu.VertexFormatSint32x3, 4: wgpu.VertexFormatSint32x4,
		}},
		{"u32", "u", 4, map[uint64]wgpu.VertexFormat{
			1: wgpu.VertexFormatUint32, 2: wgpu.VertexFormatUint32x2,
			3: wgpu.VertexFormatUint32x3, 4: wgpu.VertexFormatUint32x4,
		}},
		{"f16", "h", 2, map[uint64]wgpu.VertexFormat{
			2: wgpu.VertexFormatFloat16x2, 4: wgpu.VertexFormatFloat16x4,
		}},
	}

	attrs := make(map[string]vertexAttribute)
	for _, s := range scalars {
		for n, format := range s.formats {
			a := vertexAttribute{format, n * s.size}
			if n == 1 {
				attrs[s.name] = a
				continue
			}
			attrs[fmt.Sprintf("vec%d<%s>", n, s.name)] = a
			attrs[fmt.Sprintf("vec%d%s", n, s.short)] = a
		}
	}
	return attrs
}

// vertexLayouts builds one vertex buffer layout per vertex input struct, keyed by declaration
// order. A vertex input has at least one @location member and no builtins, and no function
// returns it, which rules out stage outputs. Structs with a member that is not a vertex
// format are skipped.
func (src wgslSource) vertexLayouts() map[int][]wgpu.VertexBufferLayout {
	returned := make(map[string]bool)
	for _, m := range returnTypeRegex.FindAllStringSubmatch(src.text, -1) {
		returned[m[1]] = true
	}

	layouts := make(map[int][]wgpu.VertexBufferLayout)
	for _, ps := range src.structs {
		if returned[ps.name] || !ps.isVertexInput() {
			continue
		}
		if layout, ok := vertexBufferLayout(ps); ok {
			layouts[len(layouts)] = []wgpu.VertexBufferLayout{layout}
		}
	}
	return layouts
}

func (ps parsedStruct) isVertexInput() bool {
	located := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		located = located || f.location >= 0
	}
	return located
}

// vertexBufferLayout packs the members of ps back to back in declaration order.
func vertexBufferLayout(ps parsedStruct) (wgpu.VertexBufferLayout, bool) {
	layout := wgpu.VertexBufferLayout{
		StepMode:   wgpu.VertexStepModeVertex,
		Attributes: make([]wgpu.VertexAttribute, 0, len(ps.fields)),
	}
	for _, f := range ps.fields {
		a, ok := vertexAttributes[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
			Format:         a.format,
			Offset:         layout.ArrayStride,
			ShaderLocation: uint32(f.location),
		})
		layout.ArrayStride += a.size
	}
	return layout, true
}
