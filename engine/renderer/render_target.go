package renderer

import "github.com/cogentcore/webgpu/wgpu"

// RenderTarget is an offscreen 2D texture used as a color or depth attachment and, when
// single-sampled, sampled by later passes.
type RenderTarget struct {
	Texture     *wgpu.Texture
	View        *wgpu.TextureView
	Width       uint32
	Height      uint32
	Format      wgpu.TextureFormat
	SampleCount uint32
}

// Release releases the view and the texture of the target. Safe to call on nil.
func (t *RenderTarget) Release() {
	if t == nil {
		return
	}
	if t.View != nil {
		t.View.Release()
		t.View = nil
	}
	if t.Texture != nil {
		t.Texture.Release()
		t.Texture = nil
	}
}

// ShadowAtlas is the Depth32Float 2D array texture holding every shadow page.
// ArrayView is bound by the forward pass; LayerViews[i] is the depth attachment used while
// rendering the pages of layer i.
type ShadowAtlas struct {
	Texture    *wgpu.Texture
	ArrayView  *wgpu.TextureView
	LayerViews []*wgpu.TextureView
	Width      uint32
	Height     uint32
}

// Release releases every view and the texture of the atlas. Safe to call on nil.
func (a *ShadowAtlas) Release() {
	if a == nil {
		return
	}
	for i, v := range a.LayerViews {
		if v != nil {
			v.Release()
		}
		a.LayerViews[i] = nil
	}
	a.LayerViews = nil
	if a.ArrayView != nil {
		a.ArrayView.Release()
		a.ArrayView = nil
	}
	if a.Texture != nil {
		a.Texture.Release()
		a.Texture = nil
	}
}

// ColorAttachment describes one color target of a render pass. When ResolveTarget is set the
// multisampled View is resolved into it and its own contents are discarded.
type ColorAttachment struct {
	View          *wgpu.TextureView
	ResolveTarget *wgpu.TextureView
	Clear         wgpu.Color
}

// RenderPassTargets describes the attachments of a render pass begun with BeginRenderPass.
type RenderPassTargets struct {
	Label  string
	Colors []ColorAttachment
	// Depth is optional; it is cleared to 1.0 and discarded at the end of the pass.
	Depth *wgpu.TextureView
}
