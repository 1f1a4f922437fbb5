package model

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
)

// indexSize is the byte size of one index; meshes use uint32 indices only.
const indexSize = 4

// model is the implementation of the Model interface. It is immutable once built.
type model struct {
	name     string
	skeleton *Skeleton
	skinned  bool
	radius   float32

	vertices []byte
	indices  []byte

	mesh bind_group_provider.BindGroupProvider
}

// Model is one drawable mesh: CPU-side vertex and index bytes in the layout of GPUVertex or
// GPUSkinnedVertex, plus the provider that holds them on the GPU once the renderer uploads
// them. Instances reference a Model and add the per-draw transform, color and flags.
type Model interface {
	Name() string

	// Skinned reports whether the vertices use the GPUSkinnedVertex layout. Skinned models are
	// drawn by the skinned forward and shadow pipelines.
	Skinned() bool

	// Skeleton returns the bone hierarchy, or nil for static models.
	Skeleton() *Skeleton

	// MeshProvider returns the provider the renderer uploads the vertex and index buffers
	// into. Draws of a model without one are skipped.
	MeshProvider() bind_group_provider.BindGroupProvider

	// VertexData returns the interleaved vertex bytes.
	VertexData() []byte

	// IndexData returns the uint32 index bytes.
	IndexData() []byte

	// IndexCount returns the number of indices to draw.
	//
	// Returns:
	//   - int: len(IndexData()) / 4
	IndexCount() int

	// BoundingRadius returns the radius of the bounding sphere around the model origin, used
	// for frustum culling of its instances.
	BoundingRadius() float32
}

var _ Model = &model{}

// NewModel creates a Model from the given options.
//
// Parameters:
//   - options: the options to apply, in order
//
// Returns:
//   - Model: the configured model
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Skinned() bool {
	return m.skinned
}

func (m *model) Skeleton() *Skeleton {
	return m.skeleton
}

func (m *model) MeshProvider() bind_group_provider.BindGroupProvider {
	return m.mesh
}

func (m *model) VertexData() []byte {
	return m.vertices
}

func (m *model) IndexData() []byte {
	return m.indices
}

func (m *model) IndexCount() int {
	return len(m.indices) / indexSize
}

func (m *model) BoundingRadius() float32 {
	return m.radius
}
