package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrBindingConflict is returned when two stages declare the same group and binding with
// different resource types.
var ErrBindingConflict = errors.New("pipeline: stages disagree on a binding")

// MergeBindGroupLayouts merges the bind group layouts of the given stages. A binding shared by
// several stages keeps one entry whose visibility is the union of theirs and which has a
// dynamic offset if any stage declares one. Entries stay sorted by binding.
//
// Parameters:
//   - stages: the shaders of one pipeline; nil entries are ignored
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
//   - error: an error wrapping ErrBindingConflict naming both declarations
func MergeBindGroupLayouts(stages ...shader.Shader) (map[int]wgpu.BindGroupLayoutDescriptor, error) {
	type declared struct {
		entry wgpu.BindGroupLayoutEntry
		owner shader.Shader
	}
	groups := make(map[int]map[uint32]declared)

	for _, s := range stages {
		if s == nil {
			continue
		}
		for g, desc := range s.BindGroupLayoutDescriptors() {
			if groups[g] == nil {
				groups[g] = make(map[uint32]declared)
			}
			for _, e := range desc.Entries {
				prev, seen := groups[g][e.Binding]
				if !seen {
					groups[g][e.Binding] = declared{e, s}
					continue
				}
				if !sameResource(prev.entry, e) {
					return nil, fmt.Errorf("%w: group %d binding %d is %q in %s and %q in %s",
						ErrBindingConflict, g, e.Binding,
						prev.owner.BindGroupVarName(g, int(e.Binding)), prev.owner.Key(),
						s.BindGroupVarName(g, int(e.Binding)), s.Key())
				}
				prev.entry.Visibility |= e.Visibility
				prev.entry.Buffer.HasDynamicOffset = prev.entry.Buffer.HasDynamicOffset || e.Buffer.HasDynamicOffset
				prev.entry.Buffer.MinBindingSize = max(prev.entry.Buffer.MinBindingSize, e.Buffer.MinBindingSize)
				groups[g][e.Binding] = prev
			}
		}
	}

	merged := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, bindings := range groups {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
		for _, d := range bindings {
			entries = append(entries, d.entry)
		}
		slices.SortFunc(entries, func(a, b wgpu.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
		merged[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return merged, nil
}

// sameResource reports whether two entries bind the same kind of resource.
func sameResource(a, b wgpu.BindGroupLayoutEntry) bool {
	return a.Buffer.Type == b.Buffer.Type &&
		a.Sampler.Type == b.Sampler.Type &&
		a.Texture.SampleType == b.Texture.SampleType &&
		a.Texture.ViewDimension == b.Texture.ViewDimension &&
		a.Texture.Multisampled == b.Texture.Multisampled &&
		a.StorageTexture.Format == b.StorageTexture.Format &&
		a.StorageTexture.Access == b.StorageTexture.Access
}
