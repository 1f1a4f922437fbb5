package postprocess

import (
	"errors"
	"fmt"
)

// ErrUnknownMode is returned when a filter or prefilter name is not recognized.
var ErrUnknownMode = errors.New("postprocess: unknown mode")

// FilterMode selects the 5-tap kernel used by the bloom downsample stage.
type FilterMode uint32

const (
	// FilterTent weights the center tap 1/2 and each diagonal 1/8.
	FilterTent FilterMode = iota
	// FilterBox weights all five taps equally.
	FilterBox
)

// PrefilterMode selects the blur applied alongside the bloom soft-knee threshold.
type PrefilterMode uint32

const (
	// PrefilterTent9 is a single 3x3 tent pass.
	PrefilterTent9 PrefilterMode = iota
	// PrefilterGaussian is a separable 9-tap gaussian run as a horizontal then a vertical pass.
	PrefilterGaussian
)

// ParseFilterMode converts a configuration name into a FilterMode.
//
// Parameters:
//   - name: "tent" or "box"; empty selects tent
//
// Returns:
//   - FilterMode: the parsed mode, FilterTent on error
//   - error: wraps ErrUnknownMode for any other name
func ParseFilterMode(name string) (FilterMode, error) {
	switch name {
	case "", "tent":
		return FilterTent, nil
	case "box":
		return FilterBox, nil
	}
	return FilterTent, fmt.Errorf("%w: filter %q", ErrUnknownMode, name)
}

// String returns the configuration name of the mode.
func (m FilterMode) String() string {
	if m == FilterBox {
		return "box"
	}
	return "tent"
}

// ParsePrefilterMode converts a configuration name into a PrefilterMode.
//
// Parameters:
//   - name: "tent9" or "gaussian"; empty selects tent9
//
// Returns:
//   - PrefilterMode: the parsed mode, PrefilterTent9 on error
//   - error: wraps ErrUnknownMode for any other name
func ParsePrefilterMode(name string) (PrefilterMode, error) {
	switch name {
	case "", "tent9":
		return PrefilterTent9, nil
	case "gaussian":
		return PrefilterGaussian, nil
	}
	return PrefilterTent9, fmt.Errorf("%w: prefilter %q", ErrUnknownMode, name)
}

// String returns the configuration name of the mode.
func (m PrefilterMode) String() string {
	if m == PrefilterGaussian {
		return "gaussian"
	}
	return "tent9"
}

// BloomSettings configures the bloom chain for one frame.
type BloomSettings struct {
	Enabled   bool
	Threshold float32
	Knee      float32
	// Scatter blends each upsampled level with the matching downsampled level; 1 keeps only the upsample.
	Scatter   float32
	Intensity float32
	// MipCount is the number of chain levels, the first at half resolution.
	MipCount  int
	Filter    FilterMode
	Prefilter PrefilterMode
}

// Active reports whether the chain produces a contribution.
func (s BloomSettings) Active() bool {
	return s.Enabled && s.MipCount > 0
}

// PostSettings configures the compose pass. When Enabled is false the pass copies the
// forward color unchanged.
type PostSettings struct {
	Enabled             bool
	Exposure            float32
	Gamma               float32
	Saturation          float32
	Contrast            float32
	VignetteStrength    float32
	VignetteInner       float32
	VignetteOuter       float32
	Grain               float32
	ChromaticAberration float32
	Blur                float32
	Sharpen             float32
	PosterizeLevels     float32
	CellShadeBands      float32
	OutlineStrength     float32
	OutlineThreshold    float32
	OutlineWidth        float32
	OutlineQuality      float32
	OutlineColor        [4]float32
	SSAOStrength        float32
	SSAOPower           float32
}

// NeutralPostSettings returns an enabled stack whose grading leaves a tonemapped color unchanged.
//
// Returns:
//   - PostSettings: exposure, gamma, saturation and contrast of 1 with every optional effect off
func NeutralPostSettings() PostSettings {
	return PostSettings{
		Enabled:        true,
		Exposure:       1,
		Gamma:          1,
		Saturation:     1,
		Contrast:       1,
		VignetteInner:  0.4,
		VignetteOuter:  0.9,
		OutlineWidth:   1,
		OutlineQuality: 1,
		OutlineColor:   [4]float32{0, 0, 0, 1},
		SSAOPower:      1,
	}
}
