package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// BufferWrite stages bytes into the buffer at Binding of Provider, starting at Offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  int
	Offset   uint64
	Data     []byte
}

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	label string

	// bindGroup is created by the renderer and always owned.
	bindGroup *wgpu.BindGroup
	// bindGroupLayout is usually the registered pipeline's own layout, in which case it is borrowed.
	bindGroupLayout *wgpu.BindGroupLayout
	borrowedLayout  bool

	buffers  bindings[*wgpu.Buffer]
	views    bindings[*wgpu.TextureView]
	samplers bindings[*wgpu.Sampler]

	// Mesh providers carry vertex and index buffers instead of a bind group.
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   int
}

// BindGroupProvider holds the GPU resources behind one bind group of a pass, or the vertex and
// index buffers of a mesh.
//
// A pass creates one provider per group with the pipeline's layout (WithBindGroupLayout),
// attaches the views and samplers it shares with other passes, then lets Renderer.InitBindGroup
// create the remaining buffers and the bind group. Resources that belong to another provider or
// to a render target are borrowed; Release leaves them alone.
type BindGroupProvider interface {
	// Release releases every owned GPU resource and forgets all bindings.
	Release()

	// Label returns the debug label, also used for the GPU objects created for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the bind group, nil until Renderer.InitBindGroup ran.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the layout the bind group is created against.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the buffer at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// TextureView returns the texture view at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.TextureView: the texture view or nil
	TextureView(binding int) *wgpu.TextureView

	// Sampler returns the sampler at a binding, or nil.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler or nil
	Sampler(binding int) *wgpu.Sampler

	// VertexBuffer returns the mesh vertex buffer, or nil.
	VertexBuffer() *wgpu.Buffer

	// IndexBuffer returns the mesh index buffer, or nil.
	IndexBuffer() *wgpu.Buffer

	// IndexCount returns the number of indices drawn per mesh instance.
	IndexCount() int

	// SetBindGroup stores the bind group created by the renderer.
	SetBindGroup(bg *wgpu.BindGroup)

	// SetBindGroupLayout stores an owned layout, created by the renderer when the provider had none.
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer stores an owned buffer at a binding.
	SetBuffer(binding int, buf *wgpu.Buffer)

	// SetTextureView stores an owned texture view at a binding.
	SetTextureView(binding int, tv *wgpu.TextureView)

	// SetSampler stores an owned sampler at a binding.
	SetSampler(binding int, s *wgpu.Sampler)

	// BorrowBuffer binds a buffer owned elsewhere, so two pipelines read the same storage.
	// InitBindGroup binds it instead of creating a buffer.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the shared buffer
	BorrowBuffer(binding int, buf *wgpu.Buffer)

	// BorrowTextureView binds a texture view owned elsewhere, usually a render target.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the shared texture view
	BorrowTextureView(binding int, tv *wgpu.TextureView)

	// BorrowSampler binds a sampler owned elsewhere.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the shared sampler
	BorrowSampler(binding int, s *wgpu.Sampler)

	// BorrowAll borrows every buffer, texture view and sampler of src at the same bindings.
	// The skinned variant of a pass uses it to bind the groups it has in common with the static one.
	//
	// Parameters:
	//   - src: the provider owning the resources
	BorrowAll(src BindGroupProvider)

	// Borrowed reports whether Release will leave the resource at a binding alone.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - bool: true if the buffer, view or sampler at the binding is borrowed
	Borrowed(binding int) bool

	// SetVertexBuffer stores the mesh vertex buffer created by Renderer.InitMeshBuffers.
	SetVertexBuffer(buf *wgpu.Buffer)

	// SetIndexBuffer stores the mesh index buffer created by Renderer.InitMeshBuffers.
	SetIndexBuffer(buf *wgpu.Buffer)

	// SetIndexCount sets the number of indices drawn per mesh instance.
	SetIndexCount(count int)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty provider.
//
// Parameters:
//   - label: debug label for the provider and its GPU objects
//   - options: layout and borrowed resources to start with
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:    label,
		buffers:  newBindings[*wgpu.Buffer](),
		views:    newBindings[*wgpu.TextureView](),
		samplers: newBindings[*wgpu.Sampler](),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers.get(binding)
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.views.get(binding)
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers.get(binding)
}

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) IndexBuffer() *wgpu.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) {
	p.bindGroupLayout = bgl
	p.borrowedLayout = false
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers.set(binding, buf)
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	p.views.set(binding, tv)
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	p.samplers.set(binding, s)
}

func (p *bindGroupProvider) BorrowBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers.borrow(binding, buf)
}

func (p *bindGroupProvider) BorrowTextureView(binding int, tv *wgpu.TextureView) {
	p.views.borrow(binding, tv)
}

func (p *bindGroupProvider) BorrowSampler(binding int, s *wgpu.Sampler) {
	p.samplers.borrow(binding, s)
}

func (p *bindGroupProvider) BorrowAll(src BindGroupProvider) {
	s, ok := src.(*bindGroupProvider)
	if !ok {
		return
	}
	for b, buf := range s.buffers.res {
		p.buffers.borrow(b, buf)
	}
	for b, tv := range s.views.res {
		p.views.borrow(b, tv)
	}
	for b, smp := range s.samplers.res {
		p.samplers.borrow(b, smp)
	}
}

func (p *bindGroupProvider) Borrowed(binding int) bool {
	return p.buffers.borrowed[binding] || p.views.borrowed[binding] || p.samplers.borrowed[binding]
}

func (p *bindGroupProvider) SetVertexBuffer(buf *wgpu.Buffer) {
	p.vertexBuffer = buf
}

func (p *bindGroupProvider) SetIndexBuffer(buf *wgpu.Buffer) {
	p.indexBuffer = buf
}

func (p *bindGroupProvider) SetIndexCount(count int) {
	p.indexCount = count
}

func (p *bindGroupProvider) Release() {
	p.views.release()
	p.samplers.release()
	p.buffers.release()

	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.bindGroupLayout != nil && !p.borrowedLayout {
		p.bindGroupLayout.Release()
	}
	p.bindGroupLayout = nil
	if p.vertexBuffer != nil {
		p.vertexBuffer.Release()
		p.vertexBuffer = nil
	}
	if p.indexBuffer != nil {
		p.indexBuffer.Release()
		p.indexBuffer = nil
	}
}
