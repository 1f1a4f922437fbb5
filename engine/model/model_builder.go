package model

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
)

// ModelBuilderOption configures a Model during construction.
type ModelBuilderOption func(*model)

// WithName sets the model name, used as the label of its GPU buffers.
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithSkeleton attaches a bone hierarchy. A non-nil skeleton marks the model as skinned.
//
// Parameters:
//   - skeleton: the skeleton, or nil to detach it
//
// Returns:
//   - ModelBuilderOption: a function that applies the skeleton to a model
func WithSkeleton(skeleton *Skeleton) ModelBuilderOption {
	return func(m *model) {
		m.skeleton = skeleton
		m.skinned = skeleton != nil
	}
}

// WithMeshProvider sets the provider the vertex and index buffers are uploaded into.
func WithMeshProvider(provider bind_group_provider.BindGroupProvider) ModelBuilderOption {
	return func(m *model) {
		m.mesh = provider
	}
}

// WithBoundingRadius overrides the radius derived by WithVertices or WithSkinnedVertices.
// Apply it after them.
func WithBoundingRadius(radius float32) ModelBuilderOption {
	return func(m *model) {
		m.radius = radius
	}
}

// WithVertices sets static vertex data and derives the bounding radius.
//
// Parameters:
//   - vertices: the static vertices
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertices to a model
func WithVertices(vertices []GPUVertex) ModelBuilderOption {
	return withVertices(vertices, false, func(v GPUVertex) [3]float32 { return v.Position })
}

// WithSkinnedVertices sets skinned vertex data, derives the bounding radius of the bind pose
// and marks the model as skinned.
//
// Parameters:
//   - vertices: the skinned vertices
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertices to a model
func WithSkinnedVertices(vertices []GPUSkinnedVertex) ModelBuilderOption {
	return withVertices(vertices, true, func(v GPUSkinnedVertex) [3]float32 { return v.Position })
}

func withVertices[V any](vertices []V, skinned bool, position func(V) [3]float32) ModelBuilderOption {
	return func(m *model) {
		positions := make([][3]float32, len(vertices))
		for i, v := range vertices {
			positions[i] = position(v)
		}
		m.vertices = common.SliceToBytes(vertices)
		m.radius = ComputeBoundingRadius(positions)
		m.skinned = skinned
	}
}

// WithIndices sets the triangle list indices.
func WithIndices(indices []uint32) ModelBuilderOption {
	return func(m *model) {
		m.indices = common.SliceToBytes(indices)
	}
}
