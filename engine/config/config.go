// Package config loads the renderer settings from a TOML file. Every section has defaults, so a
// file only needs to name the keys it changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
)

// ErrInvalid is wrapped by every validation failure returned from Load, Parse and Validate.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the full set of renderer settings.
type Config struct {
	Shadow   ShadowConfig   `toml:"shadow"`
	Culling  CullingConfig  `toml:"culling"`
	Lighting LightingConfig `toml:"lighting"`
	Bloom    BloomConfig    `toml:"bloom"`
	Post     PostConfig     `toml:"post"`
	Renderer RendererConfig `toml:"renderer"`
	Log      LogConfig      `toml:"log"`
}

// ShadowConfig configures the virtual shadow atlas and the depth bias applied when sampling it.
type ShadowConfig struct {
	TileResolution  uint32  `toml:"tile_resolution"`
	AtlasTilesW     uint32  `toml:"atlas_tiles_w"`
	AtlasTilesH     uint32  `toml:"atlas_tiles_h"`
	AtlasLayers     uint32  `toml:"atlas_layers"`
	VirtualGridSize uint32  `toml:"virtual_grid_size"`
	Smoothing       uint32  `toml:"smoothing"`
	BiasMin         float32 `toml:"bias_min"`
	BiasSlope       float32 `toml:"bias_slope"`
}

// CullingConfig configures the per-camera visible light lists.
type CullingConfig struct {
	MaxLightsPerCamera uint32 `toml:"max_lights_per_camera"`
	// CPUFallback culls on the CPU worker pool instead of the compute pass.
	CPUFallback bool `toml:"cpu_fallback"`
}

// LightingConfig configures the forward pass floor terms.
type LightingConfig struct {
	Epsilon   float32 `toml:"epsilon"`
	NearBlack float32 `toml:"near_black"`
}

// BloomConfig configures the bloom chain.
type BloomConfig struct {
	Enabled   bool    `toml:"enabled"`
	Threshold float32 `toml:"threshold"`
	Knee      float32 `toml:"knee"`
	Scatter   float32 `toml:"scatter"`
	Intensity float32 `toml:"intensity"`
	MipCount  int     `toml:"mip_count"`
	Filter    string  `toml:"filter"`
	Prefilter string  `toml:"prefilter"`
}

// PostConfig configures the compose pass.
type PostConfig struct {
	Enabled             bool       `toml:"enabled"`
	Exposure            float32    `toml:"exposure"`
	Gamma               float32    `toml:"gamma"`
	Saturation          float32    `toml:"saturation"`
	Contrast            float32    `toml:"contrast"`
	VignetteStrength    float32    `toml:"vignette_strength"`
	VignetteInner       float32    `toml:"vignette_inner"`
	VignetteOuter       float32    `toml:"vignette_outer"`
	Grain               float32    `toml:"grain"`
	ChromaticAberration float32    `toml:"chromatic_aberration"`
	Blur                float32    `toml:"blur"`
	Sharpen             float32    `toml:"sharpen"`
	PosterizeLevels     float32    `toml:"posterize_levels"`
	CellShadeBands      float32    `toml:"cell_shade_bands"`
	OutlineStrength     float32    `toml:"outline_strength"`
	OutlineThreshold    float32    `toml:"outline_threshold"`
	OutlineWidth        float32    `toml:"outline_width"`
	OutlineQuality      float32    `toml:"outline_quality"`
	OutlineColor        [4]float32 `toml:"outline_color"`
	SSAOStrength        float32    `toml:"ssao_strength"`
	SSAOPower           float32    `toml:"ssao_power"`
}

// RendererConfig configures device and surface creation.
type RendererConfig struct {
	// PresentMode is "vsync" or "uncapped".
	PresentMode string `toml:"present_mode"`
	// MSAA is the forward pass sample count, 1 or 4.
	MSAA                 uint32 `toml:"msaa"`
	ValidateShaders      bool   `toml:"validate_shaders"`
	ForceFallbackAdapter bool   `toml:"force_fallback_adapter"`
}

// LogConfig selects the slog handler installed by the host.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the settings used for any key a file leaves out.
//
// Returns:
//   - *Config: a fresh default configuration
func Default() *Config {
	return &Config{
		Shadow: ShadowConfig{
			TileResolution:  512,
			AtlasTilesW:     8,
			AtlasTilesH:     8,
			AtlasLayers:     2,
			VirtualGridSize: 4,
			Smoothing:       1,
			BiasMin:         0.0005,
			BiasSlope:       0.005,
		},
		Culling: CullingConfig{
			MaxLightsPerCamera: 64,
		},
		Lighting: LightingConfig{
			Epsilon:   0.02,
			NearBlack: 0.02,
		},
		Bloom: BloomConfig{
			Enabled:   true,
			Threshold: 1.0,
			Knee:      0.5,
			Scatter:   0.7,
			Intensity: 0.8,
			MipCount:  5,
			Filter:    "tent",
			Prefilter: "tent9",
		},
		Post: PostConfig{
			Enabled:          true,
			Exposure:         1.0,
			Gamma:            2.2,
			Saturation:       1.0,
			Contrast:         1.0,
			VignetteInner:    0.4,
			VignetteOuter:    0.9,
			OutlineThreshold: 0.5,
			OutlineWidth:     1.0,
			OutlineQuality:   1.0,
			OutlineColor:     [4]float32{0, 0, 0, 1},
			SSAOPower:        1.0,
		},
		Renderer: RendererConfig{
			PresentMode:     "vsync",
			MSAA:            1,
			ValidateShaders: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML file over the defaults and validates the result.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - *Config: the merged configuration
//   - error: error if the file cannot be decoded or the result is invalid
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults and validates the result.
//
// Parameters:
//   - data: TOML document
//
// Returns:
//   - *Config: the merged configuration
//   - error: error if the text cannot be decoded or the result is invalid
func Parse(data string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes the configuration as TOML into w.
//
// Parameters:
//   - w: the destination writer
//
// Returns:
//   - error: error if encoding or writing fails
func (c *Config) Write(w io.Writer) error {
	var buffer bytes.Buffer
	if err := toml.NewEncoder(&buffer).Encode(c); err != nil {
		return fmt.Errorf("config: failed to encode: %w", err)
	}
	_, err := w.Write(buffer.Bytes())
	return err
}

// Save writes the configuration to path, creating or truncating the file.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: error if the file cannot be written
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: failed to create %s: %w", path, err)
	}
	defer f.Close()
	return c.Write(f)
}

// Validate checks every section and returns all problems joined together, each wrapping ErrInvalid.
//
// Returns:
//   - error: nil when the configuration is usable
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if err := c.Shadow.Atlas().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	if c.Shadow.BiasMin < 0 || c.Shadow.BiasSlope < 0 {
		invalid("shadow bias terms must be non-negative")
	}
	if c.Culling.MaxLightsPerCamera == 0 {
		invalid("culling.max_lights_per_camera must be > 0")
	}
	if c.Lighting.Epsilon < 0 || c.Lighting.NearBlack < 0 {
		invalid("lighting floor terms must be non-negative")
	}
	if c.Bloom.MipCount < 1 {
		invalid("bloom.mip_count must be >= 1, got %d", c.Bloom.MipCount)
	}
	if _, err := postprocess.ParseFilterMode(c.Bloom.Filter); err != nil {
		invalid("bloom.filter: %v", err)
	}
	if _, err := postprocess.ParsePrefilterMode(c.Bloom.Prefilter); err != nil {
		invalid("bloom.prefilter: %v", err)
	}
	if c.Bloom.Scatter < 0 || c.Bloom.Scatter > 1 {
		invalid("bloom.scatter must be in [0, 1], got %v", c.Bloom.Scatter)
	}
	if c.Post.Gamma <= 0 {
		invalid("post.gamma must be > 0, got %v", c.Post.Gamma)
	}
	if c.Post.VignetteOuter < c.Post.VignetteInner {
		invalid("post.vignette_outer must be >= post.vignette_inner")
	}
	switch c.Renderer.PresentMode {
	case "vsync", "uncapped":
	default:
		invalid("renderer.present_mode must be \"vsync\" or \"uncapped\", got %q", c.Renderer.PresentMode)
	}
	if c.Renderer.MSAA != 1 && c.Renderer.MSAA != 4 {
		invalid("renderer.msaa must be 1 or 4, got %d", c.Renderer.MSAA)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		invalid("log.format must be \"text\" or \"json\", got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

// Atlas returns the allocator configuration described by the shadow section.
func (s ShadowConfig) Atlas() shadow.AtlasConfig {
	return shadow.AtlasConfig{
		TileResolution:  s.TileResolution,
		AtlasTilesW:     s.AtlasTilesW,
		AtlasTilesH:     s.AtlasTilesH,
		AtlasLayers:     s.AtlasLayers,
		VirtualGridSize: s.VirtualGridSize,
		Smoothing:       s.Smoothing,
	}
}

// Settings converts the bloom section into chain settings. Unknown filter names fall back to
// the defaults; Validate reports them.
func (b BloomConfig) Settings() postprocess.BloomSettings {
	filter, _ := postprocess.ParseFilterMode(b.Filter)
	prefilter, _ := postprocess.ParsePrefilterMode(b.Prefilter)
	return postprocess.BloomSettings{
		Enabled:   b.Enabled,
		Threshold: b.Threshold,
		Knee:      b.Knee,
		Scatter:   b.Scatter,
		Intensity: b.Intensity,
		MipCount:  b.MipCount,
		Filter:    filter,
		Prefilter: prefilter,
	}
}

// Settings converts the post section into compose settings.
func (p PostConfig) Settings() postprocess.PostSettings {
	return postprocess.PostSettings{
		Enabled:             p.Enabled,
		Exposure:            p.Exposure,
		Gamma:               p.Gamma,
		Saturation:          p.Saturation,
		Contrast:            p.Contrast,
		VignetteStrength:    p.VignetteStrength,
		VignetteInner:       p.VignetteInner,
		VignetteOuter:       p.VignetteOuter,
		Grain:               p.Grain,
		ChromaticAberration: p.ChromaticAberration,
		Blur:                p.Blur,
		Sharpen:             p.Sharpen,
		PosterizeLevels:     p.PosterizeLevels,
		CellShadeBands:      p.CellShadeBands,
		OutlineStrength:     p.OutlineStrength,
		OutlineThreshold:    p.OutlineThreshold,
		OutlineWidth:        p.OutlineWidth,
		OutlineQuality:      p.OutlineQuality,
		OutlineColor:        p.OutlineColor,
		SSAOStrength:        p.SSAOStrength,
		SSAOPower:           p.SSAOPower,
	}
}

// Logger builds the slog logger described by the log section.
//
// Parameters:
//   - w: the destination writer
//
// Returns:
//   - *slog.Logger: the configured logger
//   - error: error if level or format is invalid
func (l LogConfig) Logger(w io.Writer) (*slog.Logger, error) {
	return logger.New(w, logger.Options{Level: l.Level, Format: l.Format})
}
