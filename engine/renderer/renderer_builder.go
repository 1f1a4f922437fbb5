package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
)

// RendererBuilderOption configures a renderer before NewRenderer creates its device.
type RendererBuilderOption func(*renderer)

// WithConfig applies the [renderer] table of the configuration file. An unknown present mode
// or sample count is logged and left at its default.
//
// Parameters:
//   - cfg: the renderer configuration
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithConfig(cfg config.RendererConfig) RendererBuilderOption {
	return func(r *renderer) {
		mode, err := ParsePresentMode(cfg.PresentMode)
		if err != nil {
			logger.Logger().Warn("renderer: present mode ignored", "error", err)
		}
		r.settings.presentMode = mode

		if msaa := MSAASampleCount(cfg.MSAA); msaa.Valid() {
			r.settings.msaa = msaa
		} else {
			logger.Logger().Warn("renderer: msaa ignored", "msaa", cfg.MSAA)
		}

		r.settings.fallbackAdapter = cfg.ForceFallbackAdapter
		r.settings.validateShaders = cfg.ValidateShaders
	}
}

// WithPresentMode sets how frames are delivered to the display.
//
// Parameters:
//   - mode: PresentModeVSync or PresentModeUncapped
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.settings.presentMode = mode
	}
}

// WithMSAA sets the sample count of pipelines that do not fix their own. Defaults to MSAA4x.
//
// Parameters:
//   - count: the sample count
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.settings.msaa = count
	}
}

// WithForceSoftwareRenderer requests the fallback (software) adapter. A software Vulkan ICD
// such as lavapipe or SwiftShader must be installed.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.settings.fallbackAdapter = force
	}
}

// WithShaderValidation compiles every shader with naga before the driver sees it, so WGSL
// errors surface with the shader key at registration.
//
// Parameters:
//   - validate: true to validate at registration
//
// Returns:
//   - RendererBuilderOption: option function to apply
func WithShaderValidation(validate bool) RendererBuilderOption {
	return func(r *renderer) {
		r.settings.validateShaders = validate
	}
}
