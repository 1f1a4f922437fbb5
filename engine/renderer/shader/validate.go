package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

var (
	// ErrInvalidWGSL is returned by Validate when naga rejects the pre-processed source.
	ErrInvalidWGSL = errors.New("shader: invalid WGSL")

	// ErrValidatorUnsupported is returned by Validate when the source uses a feature naga
	// does not implement yet. The source may still be valid for the GPU driver.
	ErrValidatorUnsupported = errors.New("shader: validator does not support this source")
)

// unsupportedMarkers are substrings of naga errors that denote a missing naga feature
// rather than a defect in the shader.
var unsupportedMarkers = []string{
	"not yet implemented",
	"not supported",
	"lowering error",
	"atomic",
	"unsupported expression",
	"SPIR-V generation error",
}

// Validate compiles the pre-processed WGSL source of s to SPIR-V with naga. It catches
// syntax and type errors at setup time, before the GPU driver sees the module.
//
// Parameters:
//   - s: the parsed shader to validate
//
// Returns:
//   - error: nil on success, an error wrapping ErrValidatorUnsupported for naga
//     limitations, or an error wrapping ErrInvalidWGSL otherwise
func Validate(s Shader) error {
	spirv, err := naga.Compile(s.Source())
	if err != nil {
		return classifyCompileError(s.Key(), err)
	}
	if len(spirv) < 4 || binary.LittleEndian.Uint32(spirv[:4]) != spirvMagic {
		return fmt.Errorf("%w: %s: compiler produced no SPIR-V module", ErrInvalidWGSL, s.Key())
	}
	return nil
}

func classifyCompileError(key string, err error) error {
	msg := err.Error()
	for _, marker := range unsupportedMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %s: %v", ErrValidatorUnsupported, key, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrInvalidWGSL, key, err)
}
