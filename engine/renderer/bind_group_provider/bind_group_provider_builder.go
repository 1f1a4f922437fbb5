package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption configures a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBindGroupLayout creates the bind group against an existing layout, usually the group
// layout of a registered pipeline. The layout is borrowed and not released by Release.
//
// Parameters:
//   - bgl: the bind group layout
//
// Returns:
//   - BindGroupProviderOption: option function to apply
func WithBindGroupLayout(bgl *wgpu.BindGroupLayout) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindGroupLayout = bgl
		p.borrowedLayout = bgl != nil
	}
}

// WithBorrowedBuffers borrows buffers owned by src, keyed by this provider's binding and
// mapped to src's binding.
//
// Parameters:
//   - src: the provider owning the buffers
//   - bindings: destination binding to source binding
//
// Returns:
//   - BindGroupProviderOption: option function to apply
func WithBorrowedBuffers(src BindGroupProvider, bindings map[int]int) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for dst, from := range bindings {
			p.buffers.borrow(dst, src.Buffer(from))
		}
	}
}

// WithBorrowedTextureView borrows a texture view owned elsewhere, such as a render target.
//
// Parameters:
//   - binding: the binding index
//   - tv: the shared texture view
//
// Returns:
//   - BindGroupProviderOption: option function to apply
func WithBorrowedTextureView(binding int, tv *wgpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.views.borrow(binding, tv)
	}
}

// WithBorrowedSampler borrows a sampler owned elsewhere.
//
// Parameters:
//   - binding: the binding index
//   - s: the shared sampler
//
// Returns:
//   - BindGroupProviderOption: option function to apply
func WithBorrowedSampler(binding int, s *wgpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers.borrow(binding, s)
	}
}

// WithSharedGroup borrows every resource of src at the same bindings. See BorrowAll.
//
// Parameters:
//   - src: the provider owning the resources
//
// Returns:
//   - BindGroupProviderOption: option function to apply
func WithSharedGroup(src BindGroupProvider) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.BorrowAll(src)
	}
}
