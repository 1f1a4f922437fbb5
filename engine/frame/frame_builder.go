package frame

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
)

// FrameBuilderOption is a functional option for configuring a Frame.
type FrameBuilderOption func(*frame)

// WithAtlas sets the shadow atlas and virtual grid configuration.
//
// Parameters:
//   - cfg: the atlas configuration
//
// Returns:
//   - FrameBuilderOption: a function that applies the atlas configuration
func WithAtlas(cfg shadow.AtlasConfig) FrameBuilderOption {
	return func(f *frame) {
		f.atlasConfig = cfg
	}
}

// WithShadowBias sets the depth bias applied when sampling shadow pages.
//
// Parameters:
//   - biasMin: lower bound of the bias
//   - biasSlope: bias growth with 1 - n.l
//
// Returns:
//   - FrameBuilderOption: a function that applies the bias terms
func WithShadowBias(biasMin, biasSlope float32) FrameBuilderOption {
	return func(f *frame) {
		f.biasMin = biasMin
		f.biasSlope = biasSlope
	}
}

// WithMaxLightsPerCamera sets the capacity of each camera's visible-light list.
//
// Parameters:
//   - n: the capacity
//
// Returns:
//   - FrameBuilderOption: a function that applies the capacity
func WithMaxLightsPerCamera(n uint32) FrameBuilderOption {
	return func(f *frame) {
		f.maxLightsPerCamera = n
	}
}

// WithCPUCulling culls lights on the worker pool and uploads the lists instead of
// dispatching the compute pass.
//
// Parameters:
//   - enabled: whether to cull on the CPU
//
// Returns:
//   - FrameBuilderOption: a function that applies the setting
func WithCPUCulling(enabled bool) FrameBuilderOption {
	return func(f *frame) {
		f.cpuCulling = enabled
	}
}

// WithLightingFloor sets the forward pass floor terms.
//
// Parameters:
//   - epsilon: additive floor when lights are visible
//   - nearBlack: multiplier when no light is visible
//
// Returns:
//   - FrameBuilderOption: a function that applies the floor terms
func WithLightingFloor(epsilon, nearBlack float32) FrameBuilderOption {
	return func(f *frame) {
		f.epsilon = epsilon
		f.nearBlack = nearBlack
	}
}

// WithShaderValidation compiles every shader with naga during Setup.
//
// Parameters:
//   - enabled: whether to validate
//
// Returns:
//   - FrameBuilderOption: a function that applies the setting
func WithShaderValidation(enabled bool) FrameBuilderOption {
	return func(f *frame) {
		f.validateShaders = enabled
	}
}

// WithWorkerPool sets the pool used for per-frame CPU work. The caller keeps ownership and
// stops it; without this option Setup starts a pool that Release stops.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - FrameBuilderOption: a function that applies the pool
func WithWorkerPool(pool worker.DynamicWorkerPool) FrameBuilderOption {
	return func(f *frame) {
		f.pool = pool
		f.ownsPool = false
	}
}

// WithConfig applies the shadow, culling, lighting and renderer sections of a configuration.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - FrameBuilderOption: a function that applies the configuration
func WithConfig(cfg *config.Config) FrameBuilderOption {
	return func(f *frame) {
		if cfg == nil {
			return
		}
		f.atlasConfig = cfg.Shadow.Atlas()
		f.biasMin = cfg.Shadow.BiasMin
		f.biasSlope = cfg.Shadow.BiasSlope
		f.maxLightsPerCamera = cfg.Culling.MaxLightsPerCamera
		f.cpuCulling = cfg.Culling.CPUFallback
		f.epsilon = cfg.Lighting.Epsilon
		f.nearBlack = cfg.Lighting.NearBlack
		f.validateShaders = cfg.Renderer.ValidateShaders
	}
}
