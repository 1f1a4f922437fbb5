package shader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// annotationPrefix marks an annotation inside a WGSL line comment.
const annotationPrefix = "@oxy:"

// AnnotationType is the name following @oxy: on an annotation line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct definition
	// into the shader at the annotation site. The struct source is embedded from the
	// corresponding Go GPU type's .wgsl asset file. This annotation does not produce
	// a declaration and is consumed entirely during pre-processing.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include camera
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration
	// and appends an Annotation to the PreProcessor's declarations list. The declaration
	// carries the group index, binding index, and the resolved struct type, enabling the
	// frame orchestrator to match bindings to buffers without string lookups.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 0 storage_uniform camera camera
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider registers a resource provider identity for a group and binding
	// without generating any WGSL output. The WGSL binding declaration remains hand-written
	// in the shader source directly below the annotation. This is used for bindings that
	// contain raw WGSL types (textures, samplers, flat arrays of primitives) which have no
	// corresponding registered struct in the pre-processor's struct registry.
	//
	// An optional binding role can be appended after the provider identity to declare the
	// semantic purpose of an individual binding within a multi-binding provider group.
	//
	// Syntax:
	//   //@oxy:provider <group> <binding> <provider_identity>
	//   //@oxy:provider <group> <binding> <provider_identity> <binding_role>
	//
	// Examples:
	//   //@oxy:provider 2 0 shadow shadow_atlas
	//   //@oxy:provider 0 3 visible_lights visible_indices
	AnnotationTypeProvider AnnotationType = "provider"

	// AnnotationTypeDynamic marks a uniform binding as using a dynamic offset. It produces
	// no WGSL output; the generated bind group layout entry for the binding gets
	// HasDynamicOffset set, and draws supply the offset when binding the group.
	//
	// Syntax: //@oxy:dynamic <group> <binding>
	//
	// Example: //@oxy:dynamic 0 0
	AnnotationTypeDynamic AnnotationType = "dynamic"
)

// Annotation is one parsed @oxy: comment line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = struct type key (e.g. "camera")
	//   - group:    [0] = address space, [1] = var name, [2] = WGSL type key
	//   - provider: [0] = provider identity (e.g. "shadow"), [1] = binding role (optional, e.g. "shadow_atlas")
	//   - dynamic:  empty
	Args []AnnotationArg

	// Line is the 1-based source line.
	Line int

	// Group and Binding are nil for include annotations.
	Group   *int
	Binding *int
}

// Role returns the binding role of a provider annotation, or the empty string when none was given.
//
// Returns:
//   - AnnotationArg: the binding role
func (a Annotation) Role() AnnotationArg {
	if a.Type != AnnotationTypeProvider || len(a.Args) < 2 {
		return ""
	}
	return a.Args[1]
}

// AnnotationArg is one annotation argument: a struct type key, an address space, a
// provider identity or a binding role.
type AnnotationArg string

// ── Struct type arguments ──────────────────────────────────────────────────────
// Keys of structTypes. Usable with @oxy:include and as the type of @oxy:group, optionally
// wrapped in array<>.

const (
	// AnnotationArgCamera identifies the Camera struct.
	// Source: engine/camera/assets/camera.wgsl
	AnnotationArgCamera AnnotationArg = "camera"

	// AnnotationArgFrustum identifies the Frustum struct of six packed planes.
	// Source: engine/camera/assets/frustum.wgsl
	AnnotationArgFrustum AnnotationArg = "frustum"

	// AnnotationArgLight identifies the Light struct for per-light GPU data.
	// Source: engine/light/assets/light.wgsl
	AnnotationArgLight AnnotationArg = "light"

	// AnnotationArgLightCullUniforms identifies the CullUniforms struct of the light culling pass.
	// Source: engine/light/assets/light_cull_uniforms.wgsl
	AnnotationArgLightCullUniforms AnnotationArg = "light_cull_uniforms"

	// annotationArgVertex identifies the VertexInput struct for static meshes.
	// Source: engine/model/assets/vertex.wgsl
	annotationArgVertex AnnotationArg = "vertex"

	// annotationArgSkinnedVertex identifies the VertexInput struct for skinned meshes with joint weights.
	// Source: engine/model/assets/skinned_vertex.wgsl
	annotationArgSkinnedVertex AnnotationArg = "skinned_vertex"

	// AnnotationArgModel identifies the Model struct holding per-instance transforms and flags.
	// Source: engine/model/assets/model.wgsl
	AnnotationArgModel AnnotationArg = "model"

	// AnnotationArgShadowPage identifies the ShadowPageEntry struct of the page table.
	// Source: engine/shadow/assets/shadow_page.wgsl
	AnnotationArgShadowPage AnnotationArg = "shadow_page"

	// AnnotationArgShadowParams identifies the ShadowParams struct describing the atlas.
	// Source: engine/shadow/assets/shadow_params.wgsl
	AnnotationArgShadowParams AnnotationArg = "shadow_params"

	// AnnotationArgPageDraw identifies the PageDraw struct bound once per shadow page draw.
	// Source: engine/shadow/assets/page_draw.wgsl
	AnnotationArgPageDraw AnnotationArg = "page_draw"

	// AnnotationArgForwardParams identifies the ForwardParams struct of the forward lighting pass.
	// Source: engine/lighting/assets/forward_params.wgsl
	AnnotationArgForwardParams AnnotationArg = "forward_params"

	// AnnotationArgBloomParams identifies the BloomParams struct shared by every bloom stage.
	// Source: engine/postprocess/assets/bloom_params.wgsl
	AnnotationArgBloomParams AnnotationArg = "bloom_params"

	// AnnotationArgPostParams identifies the PostParams struct of the compose pass.
	// Source: engine/postprocess/assets/post_params.wgsl
	AnnotationArgPostParams AnnotationArg = "post_params"
)

// ── Address space arguments ────────────────────────────────────────────────────
// These specify the WGSL variable address space in @oxy:group annotations.
// They map to WGSL var<> declarations.

const (
	// annotationArgStorageTypeUniform maps to var<uniform> in WGSL.
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"

	// annotationArgStorageTypeRead maps to var<storage, read> in WGSL.
	annotationArgStorageTypeRead AnnotationArg = "storage_read"

	// annotationArgStorageTypeReadWrite maps to var<storage, read_write> in WGSL.
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// ── Provider identity arguments ────────────────────────────────────────────────
// These identify which frame-level resource owns a binding. Used in @oxy:provider
// annotations and matched by the frame orchestrator when it builds bind groups.

const (
	// AnnotationArgVisibleLights identifies the per-camera visible light lists written by culling.
	AnnotationArgVisibleLights AnnotationArg = "visible_lights"

	// AnnotationArgShadow identifies the shadow atlas texture and its comparison sampler.
	AnnotationArgShadow AnnotationArg = "shadow"

	// AnnotationArgSkinning identifies the flat joint matrix palette of skinned instances.
	AnnotationArgSkinning AnnotationArg = "skinning"

	// AnnotationArgBloom identifies the textures and sampler of one bloom stage.
	AnnotationArgBloom AnnotationArg = "bloom"

	// AnnotationArgCompose identifies the textures and sampler of the compose pass.
	AnnotationArgCompose AnnotationArg = "compose"
)

// ── Binding role arguments ─────────────────────────────────────────────────────
// These qualify individual bindings within a provider group. They appear as the optional
// fourth argument of an @oxy:provider annotation.

const (
	// AnnotationArgVisibleIndices identifies the flat array of visible light indices.
	AnnotationArgVisibleIndices AnnotationArg = "visible_indices"

	// AnnotationArgVisibleCounts identifies the per-camera visible light counters.
	AnnotationArgVisibleCounts AnnotationArg = "visible_counts"

	// AnnotationArgShadowAtlas identifies the depth texture array holding shadow pages.
	AnnotationArgShadowAtlas AnnotationArg = "shadow_atlas"

	// AnnotationArgShadowSampler identifies the comparison sampler used for PCF.
	AnnotationArgShadowSampler AnnotationArg = "shadow_sampler"

	// AnnotationArgBones identifies the joint matrix palette buffer.
	AnnotationArgBones AnnotationArg = "bones"

	// AnnotationArgSourceTexture identifies the texture a bloom stage reads.
	AnnotationArgSourceTexture AnnotationArg = "source_texture"

	// AnnotationArgSecondaryTexture identifies the coarser level read by a bloom upsample stage.
	AnnotationArgSecondaryTexture AnnotationArg = "secondary_texture"

	// AnnotationArgLinearSampler identifies a clamped bilinear sampler.
	AnnotationArgLinearSampler AnnotationArg = "linear_sampler"

	// AnnotationArgSceneTexture identifies the resolved HDR scene color.
	AnnotationArgSceneTexture AnnotationArg = "scene_texture"

	// AnnotationArgBloomTexture identifies the final bloom texture.
	AnnotationArgBloomTexture AnnotationArg = "bloom_texture"

	// AnnotationArgOutlineTexture identifies the outline mask written by the forward pass.
	AnnotationArgOutlineTexture AnnotationArg = "outline_texture"

	// AnnotationArgAOTexture identifies the ambient occlusion texture.
	AnnotationArgAOTexture AnnotationArg = "ao_texture"
)

// providerIdentities holds the identities accepted by @oxy:provider.
var providerIdentities = map[AnnotationArg]bool{
	AnnotationArgVisibleLights: true,
	AnnotationArgShadow:        true,
	AnnotationArgSkinning:      true,
	AnnotationArgBloom:         true,
	AnnotationArgCompose:       true,
}

// bindingRoles holds the roles accepted as the optional last @oxy:provider argument.
var bindingRoles = map[AnnotationArg]bool{
	AnnotationArgVisibleIndices:   true,
	AnnotationArgVisibleCounts:    true,
	AnnotationArgShadowAtlas:      true,
	AnnotationArgShadowSampler:    true,
	AnnotationArgBones:            true,
	AnnotationArgSourceTexture:    true,
	AnnotationArgSecondaryTexture: true,
	AnnotationArgLinearSampler:    true,
	AnnotationArgSceneTexture:     true,
	AnnotationArgBloomTexture:     true,
	AnnotationArgOutlineTexture:   true,
	AnnotationArgAOTexture:        true,
}

// ErrMalformedAnnotation is wrapped by every annotation parse error.
var ErrMalformedAnnotation = errors.New("malformed @oxy annotation")

// annotationSyntax describes the arguments one annotation type takes after its name.
type annotationSyntax struct {
	// minArgs and maxArgs bound the argument count.
	minArgs, maxArgs int
	usage            string

	// indexed annotations start with a group and a binding.
	indexed bool

	// check validates the arguments after group and binding.
	check func(args []string) error
}

var annotationSyntaxes = map[AnnotationType]annotationSyntax{
	annotationTypeInclude: {
		minArgs: 1, maxArgs: 1, usage: "struct type",
		check: func(args []string) error {
			if _, ok := structTypes[AnnotationArg(args[0])]; !ok {
				return fmt.Errorf("unknown struct type %q", args[0])
			}
			return nil
		},
	},
	AnnotationTypeBindingGroup: {
		minArgs: 5, maxArgs: 5, usage: "group, binding, address space, var name, struct type",
		indexed: true,
		check: func(args []string) error {
			if _, ok := addressSpaces[AnnotationArg(args[0])]; !ok {
				return fmt.Errorf("unknown address space %q", args[0])
			}
			key, isArray := bindingType(AnnotationArg(args[2]))
			if _, ok := structTypes[key]; !ok {
				if isArray {
					return fmt.Errorf("unknown array element type %q", key)
				}
				return fmt.Errorf("unknown struct type %q", key)
			}
			return nil
		},
	},
	AnnotationTypeProvider: {
		minArgs: 3, maxArgs: 4, usage: "group, binding, provider identity[, binding role]",
		indexed: true,
		check: func(args []string) error {
			if !providerIdentities[AnnotationArg(args[0])] {
				return fmt.Errorf("unknown provider identity %q", args[0])
			}
			if len(args) == 2 && !bindingRoles[AnnotationArg(args[1])] {
				return fmt.Errorf("unknown binding role %q", args[1])
			}
			return nil
		},
	},
	AnnotationTypeDynamic: {
		minArgs: 2, maxArgs: 2, usage: "group, binding",
		indexed: true,
	},
}

// parseAnnotation parses one WGSL source line. Lines without the @oxy: prefix yield nil
// and no error.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: an error wrapping ErrMalformedAnnotation that names the line
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	_, after, ok := strings.Cut(strings.TrimSpace(line), annotationPrefix)
	if !ok {
		return nil, nil
	}
	fail := func(err error) (*Annotation, error) {
		return nil, fmt.Errorf("line %d: %w: %w", lineNum, ErrMalformedAnnotation, err)
	}

	fields := strings.Fields(after)
	if len(fields) == 0 {
		return fail(errors.New("empty annotation"))
	}
	kind := AnnotationType(fields[0])
	syntax, ok := annotationSyntaxes[kind]
	if !ok {
		return fail(fmt.Errorf("unknown annotation type %q", fields[0]))
	}
	args := fields[1:]
	if len(args) < syntax.minArgs || len(args) > syntax.maxArgs {
		return fail(fmt.Errorf("%s takes %s", kind, syntax.usage))
	}

	a := &Annotation{Type: kind, Line: lineNum}
	if syntax.indexed {
		group, binding, err := parseGroupBinding(args[0], args[1])
		if err != nil {
			return fail(err)
		}
		a.Group, a.Binding = &group, &binding
		args = args[2:]
	}
	if syntax.check != nil {
		if err := syntax.check(args); err != nil {
			return fail(fmt.Errorf("%s: %w", kind, err))
		}
	}
	for _, arg := range args {
		a.Args = append(a.Args, AnnotationArg(arg))
	}
	return a, nil
}

func parseGroupBinding(group, binding string) (int, int, error) {
	g, err := strconv.Atoi(group)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid group %q", group)
	}
	b, err := strconv.Atoi(binding)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid binding %q", binding)
	}
	if g < 0 || b < 0 {
		return 0, 0, errors.New("negative group or binding")
	}
	return g, b, nil
}

// FindRole returns the group and binding of the first provider declaration carrying the
// given binding role.
//
// Parameters:
//   - decls: declarations collected by the pre-processor
//   - role: the binding role to look up
//
// Returns:
//   - int: the group index
//   - int: the binding index
//   - bool: false when no declaration carries the role
func FindRole(decls []Annotation, role AnnotationArg) (int, int, bool) {
	for _, d := range decls {
		if d.Role() == role {
			return *d.Group, *d.Binding, true
		}
	}
	return -1, -1, false
}
