package light

import (
	"slices"
	"sync"
)

// registryImpl is the implementation of the Registry interface.
type registryImpl struct {
	mu     sync.RWMutex
	lights []Light
}

// Registry holds the host's lights and packs them into the flat GPU light array once per
// frame. Disabled lights are skipped and at most MaxGPULights lights are packed, in
// registration order.
type Registry interface {
	// Add registers a light. Adding the same light twice has no effect.
	//
	// Parameters:
	//   - l: the light to register
	Add(l Light)

	// Remove unregisters a light.
	//
	// Parameters:
	//   - l: the light to remove
	Remove(l Light)

	// Clear removes every light.
	Clear()

	// Lights returns a snapshot of the registered lights in registration order.
	//
	// Returns:
	//   - []Light: the registered lights
	Lights() []Light

	// Pack converts the enabled lights into their GPU representation.
	//
	// Parameters:
	//   - focus: world-space center for directional shadow volumes
	//
	// Returns:
	//   - []GPULight: the packed lights, at most MaxGPULights entries
	Pack(focus [3]float32) []GPULight
}

var _ Registry = &registryImpl{}

// NewRegistry creates an empty light registry.
//
// Parameters:
//   - lights: optional initial lights
//
// Returns:
//   - Registry: the new registry
func NewRegistry(lights ...Light) Registry {
	r := &registryImpl{}
	for _, l := range lights {
		r.Add(l)
	}
	return r
}

func (r *registryImpl) Add(l Light) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.lights, l) {
		return
	}
	r.lights = append(r.lights, l)
}

func (r *registryImpl) Remove(l Light) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.lights, l); i >= 0 {
		r.lights = slices.Delete(r.lights, i, i+1)
	}
}

func (r *registryImpl) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lights = nil
}

func (r *registryImpl) Lights() []Light {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.lights)
}

func (r *registryImpl) Pack(focus [3]float32) []GPULight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]GPULight, 0, min(len(r.lights), MaxGPULights))
	for _, l := range r.lights {
		if !l.Enabled() {
			continue
		}
		if len(out) == MaxGPULights {
			break
		}
		out = append(out, ToGPULight(l, focus))
	}
	return out
}
