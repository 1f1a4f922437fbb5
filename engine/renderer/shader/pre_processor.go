package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/lighting"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
)

// wgslStruct is a struct definition shared between Go and WGSL: the embedded WGSL source
// injected by @oxy:include and the type name @oxy:group declarations refer to.
type wgslStruct struct {
	source string
	name   string
}

// structTypes holds every struct an annotation may name. Each source is embedded next to the
// Go type mirroring its layout.
var structTypes = map[AnnotationArg]wgslStruct{
	AnnotationArgCamera:            {camera.GPUCameraSource, "Camera"},
	AnnotationArgFrustum:           {camera.GPUFrustumSource, "Frustum"},
	AnnotationArgLight:             {light.GPULightSource, "Light"},
	AnnotationArgLightCullUniforms: {light.GPUCullUniformsSource, "CullUniforms"},
	annotationArgVertex:            {model.GPUVertexSource, "VertexInput"},
	annotationArgSkinnedVertex:     {model.GPUSkinnedVertexSource, "VertexInput"},
	AnnotationArgModel:             {model.GPUModelSource, "Model"},
	AnnotationArgShadowPage:        {shadow.GPUShadowPageEntrySource, "ShadowPageEntry"},
	AnnotationArgShadowParams:      {shadow.GPUShadowParamsSource, "ShadowParams"},
	AnnotationArgPageDraw:          {shadow.GPUPageDrawSource, "PageDraw"},
	AnnotationArgForwardParams:     {lighting.GPUForwardParamsSource, "ForwardParams"},
	AnnotationArgBloomParams:       {postprocess.GPUBloomParamsSource, "BloomParams"},
	AnnotationArgPostParams:        {postprocess.GPUPostParamsSource, "PostParams"},
}

// addressSpaces maps an address space argument to the var qualifier it generates.
var addressSpaces = map[AnnotationArg]string{
	annotationArgStorageTypeUniform:   "var<uniform>",
	annotationArgStorageTypeRead:      "var<storage, read>",
	annotationArgStorageTypeReadWrite: "var<storage, read_write>",
}

// bindingType splits an @oxy:group type argument into its struct key and whether it is
// wrapped in array<>.
func bindingType(arg AnnotationArg) (AnnotationArg, bool) {
	inner, ok := strings.CutPrefix(string(arg), "array<")
	if !ok {
		return arg, false
	}
	return AnnotationArg(strings.TrimSuffix(inner, ">")), true
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// declarations holds the group, provider and dynamic annotations of the last Process call.
	declarations []Annotation
}

// PreProcessor expands the @oxy: annotations of a WGSL source and records the ones the
// frame wires resources by.
//
// @oxy:include injects a struct source; a struct already included is not injected again.
// @oxy:group becomes a @group/@binding declaration. @oxy:provider and @oxy:dynamic emit no
// WGSL.
type PreProcessor interface {
	// Process expands the annotations of source. Declarations are reset first.
	//
	// Parameters:
	//   - source: WGSL source with @oxy: annotation comments
	//
	// Returns:
	//   - string: plain WGSL
	//   - error: the first malformed annotation, with its line
	Process(source string) (string, error)

	// Declarations returns the group, provider and dynamic annotations of the last Process
	// call in source order, or nil before the first.
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor over the engine's shared struct types.
func NewPreProcessor() PreProcessor {
	return &preProcessor{}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = nil
	included := make(map[AnnotationArg]bool)

	lines := strings.Split(source, "\n")
	var sb strings.Builder
	sb.Grow(len(source))

	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			sb.WriteString(line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if included[a.Args[0]] {
				continue
			}
			included[a.Args[0]] = true
			sb.WriteString(structTypes[a.Args[0]].source)

		case AnnotationTypeBindingGroup:
			key, isArray := bindingType(a.Args[2])
			typeName := structTypes[key].name
			if isArray {
				typeName = "array<" + typeName + ">"
			}
			fmt.Fprintf(&sb, "@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, addressSpaces[a.Args[0]], a.Args[1], typeName)
			p.declarations = append(p.declarations, *a)

		case AnnotationTypeProvider, AnnotationTypeDynamic:
			p.declarations = append(p.declarations, *a)
		}
	}
	return sb.String(), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
