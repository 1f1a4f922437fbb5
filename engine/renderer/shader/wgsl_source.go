package shader

import (
	"regexp"
	"strconv"
	"strings"
)

// wgslSource is pre-processed WGSL with its comments removed and its struct declarations
// parsed once, shared by every metadata query a shader makes.
type wgslSource struct {
	text    string
	structs []parsedStruct
}

// parsedStruct is one struct declaration. Its fields keep declaration order.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// parsedField is a struct member. location is -1 when the member has no @location.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// wgslTypeLayout is the host-shareable size and alignment of a WGSL type.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

var (
	structBlockRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	entryPointRegex    = regexp.MustCompile(`(?s)@(vertex|fragment|compute)\b.*?\bfn\s+(\w+)`)
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(([^)]*)\)`)
)

// stageAttributes maps a shader type to the attribute marking its entry point.
var stageAttributes = map[ShaderType]string{
	ShaderTypeVertex:   "vertex",
	ShaderTypeFragment: "fragment",
	ShaderTypeCompute:  "compute",
}

func newWGSLSource(raw string) wgslSource {
	text := stripComments(raw)
	return wgslSource{text: text, structs: parseStructBlocks(text)}
}

// entryPoint returns the name of the first function carrying the stage attribute of
// shaderType, or "" if there is none.
func (src wgslSource) entryPoint(shaderType ShaderType) string {
	attr, ok := stageAttributes[shaderType]
	if !ok {
		return ""
	}
	for _, m := range entryPointRegex.FindAllStringSubmatch(src.text, -1) {
		if m[1] == attr {
			return m[2]
		}
	}
	return ""
}

// workgroupSize returns the @workgroup_size dimensions. Omitted or non-literal dimensions
// are 1, as is every dimension when the attribute is absent.
func (src wgslSource) workgroupSize() [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupSizeRegex.FindStringSubmatch(src.text)
	if m == nil {
		return size
	}
	for i, arg := range splitAtTopLevelCommas(m[1]) {
		if i >= len(size) {
			break
		}
		if v, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 32); err == nil && v > 0 {
			size[i] = uint32(v)
		}
	}
	return size
}

// stripComments removes line comments and nested block comments in one pass. Newlines are
// kept so line structure survives.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))

	depth := 0
	for i := 0; i < len(source); i++ {
		c := source[i]
		var next byte
		if i+1 < len(source) {
			next = source[i+1]
		}

		switch {
		case c == '/' && next == '*':
			depth++
			i++
		case depth > 0 && c == '*' && next == '/':
			depth--
			i++
		case depth > 0:
			if c == '\n' {
				sb.WriteByte(c)
			}
		case c == '/' && next == '/':
			for i < len(source) && source[i] != '\n' {
				i++
			}
			if i < len(source) {
				sb.WriteByte('\n')
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// parseStructBlocks finds every struct declaration in comment-free source.
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		ps := parsedStruct{name: m[1]}
		for _, member := range splitAtTopLevelCommas(m[2]) {
			if field, ok := parseField(member); ok {
				ps.fields = append(ps.fields, field)
			}
		}
		structs = append(structs, ps)
	}
	return structs
}

// parseField reads one struct member: any number of attributes followed by "name: type".
func parseField(member string) (parsedField, bool) {
	field := parsedField{location: -1}
	rest := strings.TrimSpace(member)

	for strings.HasPrefix(rest, "@") {
		name, arg, remaining := splitAttribute(rest[1:])
		switch name {
		case "builtin":
			field.isBuiltin = true
		case "location":
			if loc, err := strconv.Atoi(arg); err == nil {
				field.location = loc
			}
		}
		rest = strings.TrimSpace(remaining)
	}

	name, typeName, ok := strings.Cut(rest, ":")
	if !ok {
		return parsedField{}, false
	}
	field.name = strings.TrimSpace(name)
	field.typeName = strings.TrimSpace(typeName)
	if field.name == "" || field.typeName == "" {
		return parsedField{}, false
	}
	return field, true
}

// splitAttribute splits "name(arg) rest" or "name rest" after the leading '@'.
func splitAttribute(s string) (name, arg, rest string) {
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == '(' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if end < 0 {
		return s, "", ""
	}
	name = s[:end]
	rest = s[end:]
	if rest[0] != '(' {
		return name, "", rest
	}
	closing := strings.IndexByte(rest, ')')
	if closing < 0 {
		return name, "", ""
	}
	return name, strings.TrimSpace(rest[1:closing]), rest[closing+1:]
}

// splitAtTopLevelCommas splits s at commas outside angle brackets, so array<T, N> stays whole.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// splitTypeParams splits "texture_2d<f32>" into "texture_2d" and "f32". A type without
// parameters returns an empty params string.
func splitTypeParams(typeName string) (base, params string) {
	base, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return base, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}
