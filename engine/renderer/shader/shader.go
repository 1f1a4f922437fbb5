package shader

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrDiscontinuousBindGroups is returned when the bind group indices used by a shader or
// pipeline do not form a contiguous range starting at 0.
var ErrDiscontinuousBindGroups = errors.New("shader: bind group indices are not contiguous from 0")

// ShaderType is the pipeline stage a shader object represents. One WGSL source may hold
// several stages; each is parsed into its own Shader.
type ShaderType int

const (
	// ShaderTypeCompute selects the @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex selects the @vertex entry point and parses vertex input layouts.
	ShaderTypeVertex

	// ShaderTypeFragment selects the @fragment entry point.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	}
	return fmt.Sprintf("ShaderType(%d)", int(t))
}

// shader is the implementation of the Shader interface. Everything but the source is derived
// from it once, at parse time.
type shader struct {
	key        string
	shaderType ShaderType
	source     string
	entryPoint string

	layouts       map[int]wgpu.BindGroupLayoutDescriptor
	varNames      map[int]map[int]string
	vertexLayouts map[int][]wgpu.VertexBufferLayout
	workgroupSize [3]uint32

	pp PreProcessor
}

// Shader is one stage of a pipeline: pre-processed WGSL plus the metadata the renderer needs
// to build a pipeline and its bind groups without reflecting on the GPU module.
type Shader interface {
	// Key returns the unique identifier of the shader, used as the module label.
	Key() string

	// ShaderType returns the stage this shader represents.
	ShaderType() ShaderType

	// Source returns the pre-processed WGSL source, with every include expanded.
	Source() string

	// EntryPoint returns the name of the stage's entry point function.
	EntryPoint() string

	// BindGroupLayoutDescriptor returns the layout descriptor of one group, or an empty
	// descriptor if the shader declares nothing in it.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the group's entries, sorted by binding
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors returns every declared group's layout descriptor. Entries are
	// visible to this shader's stage only; pipelines merge stages.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName returns the WGSL variable bound at group and binding, or "".
	BindGroupVarName(group, binding int) string

	// VertexLayout returns the vertex buffer layout of the key-th vertex input struct.
	VertexLayout(key int) []wgpu.VertexBufferLayout

	// VertexLayouts returns every vertex buffer layout, keyed by declaration order. Only
	// vertex shaders have any.
	VertexLayouts() map[int][]wgpu.VertexBufferLayout

	// WorkgroupSize returns the @workgroup_size of a compute shader, 1 for omitted
	// dimensions, and zeros for other stages.
	WorkgroupSize() [3]uint32

	// Declarations returns the @oxy: annotations of the source. The frame uses them to find
	// bindings by role.
	//
	// Returns:
	//   - []Annotation: annotations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// ParseShader pre-processes WGSL source and extracts everything a pipeline needs from it:
// the entry point for the given stage, bind group layouts (with dynamic offsets applied),
// vertex buffer layouts for vertex shaders and the workgroup size for compute shaders.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the stage this shader object represents
//   - source: the raw WGSL source, possibly containing @oxy: annotations
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if pre-processing fails or the stage has no entry point
func ParseShader(key string, shaderType ShaderType, source string) (Shader, error) {
	if source == "" {
		return nil, fmt.Errorf("shader: %s has an empty source", key)
	}
	s := &shader{key: key, shaderType: shaderType, pp: NewPreProcessor()}
	if err := s.parseSource(source); err != nil {
		return nil, err
	}
	return s, nil
}

// NewShader is ParseShader for embedded sources that are known to be valid. It panics if
// the source cannot be parsed.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - shaderType: the stage this shader object represents
//   - source: the raw WGSL source
//
// Returns:
//   - Shader: the parsed shader
func NewShader(key string, shaderType ShaderType, source string) Shader {
	s, err := ParseShader(key, shaderType, source)
	if err != nil {
		panic(err.Error())
	}
	return s
}

// CheckContiguousGroups verifies that the union of bind group indices across the given
// shaders is exactly 0..n-1.
//
// Parameters:
//   - shaders: the shaders making up one pipeline; nil entries are ignored
//
// Returns:
//   - error: an error wrapping ErrDiscontinuousBindGroups naming the first missing index
func CheckContiguousGroups(shaders ...Shader) error {
	seen := make(map[int]bool)
	for _, s := range shaders {
		if s == nil {
			continue
		}
		for g := range s.BindGroupLayoutDescriptors() {
			seen[g] = true
		}
	}
	groups := slices.Sorted(maps.Keys(seen))
	for i, g := range groups {
		if g != i {
			return fmt.Errorf("%w: group %d is missing (found %v)", ErrDiscontinuousBindGroups, i, groups)
		}
	}
	return nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.layouts[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.layouts
}

func (s *shader) BindGroupVarName(group, binding int) string {
	return s.varNames[group][binding]
}

func (s *shader) VertexLayout(key int) []wgpu.VertexBufferLayout {
	return s.vertexLayouts[key]
}

func (s *shader) VertexLayouts() map[int][]wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workgroupSize
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

// stageVisibility maps a shader type to the visibility of the bindings it declares.
var stageVisibility = map[ShaderType]wgpu.ShaderStage{
	ShaderTypeVertex:   wgpu.ShaderStageVertex,
	ShaderTypeFragment: wgpu.ShaderStageFragment,
	ShaderTypeCompute:  wgpu.ShaderStageCompute,
}

// parseSource pre-processes raw and derives the entry point, the bind group layouts, and the
// vertex layouts or workgroup size depending on the stage.
func (s *shader) parseSource(raw string) error {
	var err error
	if s.source, err = s.pp.Process(raw); err != nil {
		return fmt.Errorf("shader: failed to pre-process %s: %w", s.key, err)
	}

	src := newWGSLSource(s.source)
	if s.entryPoint = src.entryPoint(s.shaderType); s.entryPoint == "" {
		return fmt.Errorf("shader: %s has no entry point for its stage", s.key)
	}

	switch s.shaderType {
	case ShaderTypeVertex:
		s.vertexLayouts = src.vertexLayouts()
	case ShaderTypeCompute:
		s.workgroupSize = src.workgroupSize()
	}
	s.layouts, s.varNames = src.bindGroupLayouts(stageVisibility[s.shaderType])
	return s.applyDynamicOffsets()
}

// applyDynamicOffsets sets HasDynamicOffset on every uniform binding named by an
// @oxy:dynamic annotation.
func (s *shader) applyDynamicOffsets() error {
	for _, d := range s.pp.Declarations() {
		if d.Type != AnnotationTypeDynamic {
			continue
		}
		desc, ok := s.layouts[*d.Group]
		if !ok {
			return fmt.Errorf("shader: %s line %d: dynamic offset on undeclared group %d", s.key, d.Line, *d.Group)
		}
		i := slices.IndexFunc(desc.Entries, func(e wgpu.BindGroupLayoutEntry) bool {
			return int(e.Binding) == *d.Binding
		})
		if i < 0 {
			return fmt.Errorf("shader: %s line %d: dynamic offset on undeclared binding %d", s.key, d.Line, *d.Binding)
		}
		if desc.Entries[i].Buffer.Type != wgpu.BufferBindingTypeUniform {
			return fmt.Errorf("shader: %s line %d: dynamic offset requires a uniform binding", s.key, d.Line)
		}
		desc.Entries[i].Buffer.HasDynamicOffset = true
	}
	return nil
}
