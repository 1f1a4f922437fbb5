package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

func (b *wgpuRendererBackendImpl) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(vertexData) > 0 {
		buf, err := b.filledBuffer(provider.Label()+" Vertices", wgpu.BufferUsageVertex, vertexData)
		if err != nil {
			return err
		}
		provider.SetVertexBuffer(buf)
	}
	if len(indexData) > 0 {
		buf, err := b.filledBuffer(provider.Label()+" Indices", wgpu.BufferUsageIndex, indexData)
		if err != nil {
			return err
		}
		provider.SetIndexBuffer(buf)
	}
	provider.SetIndexCount(indexCount)
	return nil
}

// filledBuffer creates a copy-destination buffer of the given usage holding data.
func (b *wgpuRendererBackendImpl) filledBuffer(label string, usage wgpu.BufferUsage, data []byte) (*wgpu.Buffer, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

func (b *wgpuRendererBackendImpl) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(descriptor.Entries) == 0 {
		return nil
	}

	layout := provider.BindGroupLayout()
	if layout == nil {
		var err error
		if layout, err = b.device.CreateBindGroupLayout(&descriptor); err != nil {
			return fmt.Errorf("%s: layout: %w", provider.Label(), err)
		}
		provider.SetBindGroupLayout(layout)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(descriptor.Entries))
	for _, layoutEntry := range descriptor.Entries {
		entry, err := b.bindGroupEntry(provider, layoutEntry, bufferUsageOverrides, bufferSizeOverrides)
		if err != nil {
			return fmt.Errorf("%s: binding %d: %w", provider.Label(), layoutEntry.Binding, err)
		}
		entries = append(entries, entry)
	}

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label(),
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%s: bind group: %w", provider.Label(), err)
	}
	provider.SetBindGroup(group)
	return nil
}

// bindGroupEntry resolves one layout entry against provider. Texture and sampler bindings must
// already be present; a missing buffer is created from the entry's binding type.
func (b *wgpuRendererBackendImpl) bindGroupEntry(
	provider bind_group_provider.BindGroupProvider,
	layoutEntry wgpu.BindGroupLayoutEntry,
	usageOverrides map[int]wgpu.BufferUsage,
	sizeOverrides map[int]uint64,
) (wgpu.BindGroupEntry, error) {
	binding := int(layoutEntry.Binding)
	entry := wgpu.BindGroupEntry{Binding: layoutEntry.Binding}

	switch {
	case layoutEntry.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
		if entry.TextureView = provider.TextureView(binding); entry.TextureView == nil {
			return entry, errors.New("no texture view")
		}
		return entry, nil

	case layoutEntry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
		if entry.Sampler = provider.Sampler(binding); entry.Sampler == nil {
			return entry, errors.New("no sampler")
		}
		return entry, nil
	}

	buf := provider.Buffer(binding)
	if buf == nil {
		size := layoutEntry.Buffer.MinBindingSize
		if override, ok := sizeOverrides[binding]; ok {
			size = override
		}
		var err error
		buf, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("%s %d", provider.Label(), binding),
			Size:  size,
			Usage: bufferUsageFor(layoutEntry.Buffer.Type) | usageOverrides[binding],
		})
		if err != nil {
			return entry, err
		}
		provider.SetBuffer(binding, buf)
	}

	entry.Buffer = buf
	entry.Size = wgpu.WholeSize
	// A dynamic-offset binding sees one element; the offset passed at draw time picks which.
	if layoutEntry.Buffer.HasDynamicOffset {
		entry.Size = layoutEntry.Buffer.MinBindingSize
	}
	return entry, nil
}

// bufferUsageFor is the usage of a buffer created for a binding of type t. Every buffer is
// written from the CPU.
func bufferUsageFor(t wgpu.BufferBindingType) wgpu.BufferUsage {
	switch t {
	case wgpu.BufferBindingTypeUniform:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	case wgpu.BufferBindingTypeStorage, wgpu.BufferBindingTypeReadOnlyStorage:
		return wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	default:
		return wgpu.BufferUsageCopyDst
	}
}

func (b *wgpuRendererBackendImpl) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := wgpu.Extent3D{
		Width:              stagingData.Width,
		Height:             stagingData.Height,
		DepthOrArrayLayers: 1,
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         provider.Label(),
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        common.Coalesce(stagingData.Format, wgpu.TextureFormatRGBA8UnormSrgb),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("%s: texture: %w", provider.Label(), err)
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: tex, Aspect: wgpu.TextureAspectAll},
		stagingData.Pixels,
		&wgpu.TextureDataLayout{BytesPerRow: stagingData.Width * 4, RowsPerImage: stagingData.Height},
		&size,
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("%s: texture view: %w", provider.Label(), err)
	}
	provider.SetTextureView(bindingKey, view)
	return nil
}

func (b *wgpuRendererBackendImpl) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := samplerStagingData
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         provider.Label(),
		AddressModeU:  common.Coalesce(s.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(s.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(s.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(s.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(s.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(s.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   s.LodMinClamp,
		LodMaxClamp:   common.Coalesce(s.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(s.MaxAnisotropy, 1),
		Compare:       s.Compare,
	})
	if err != nil {
		return fmt.Errorf("%s: sampler: %w", provider.Label(), err)
	}
	provider.SetSampler(bindingKey, samp)
	return nil
}

func (b *wgpuRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		if len(w.Data) == 0 {
			continue
		}
		if buf := w.Provider.Buffer(w.Binding); buf != nil {
			b.queue.WriteBuffer(buf, w.Offset, w.Data)
		}
	}
}

func (b *wgpuRendererBackendImpl) CreateRenderTarget(label string, width, height int, format wgpu.TextureFormat, sampleCount uint32) (*RenderTarget, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	target := &RenderTarget{
		Width:       uint32(max(width, 1)),
		Height:      uint32(max(height, 1)),
		Format:      format,
		SampleCount: max(sampleCount, 1),
	}

	// Multisampled targets are only ever resolved, never sampled.
	usage := wgpu.TextureUsageRenderAttachment
	if target.SampleCount == 1 {
		usage |= wgpu.TextureUsageTextureBinding
	}

	var err error
	target.Texture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: target.Width, Height: target.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   target.SampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("render target %q: %w", label, err)
	}

	if target.View, err = target.Texture.CreateView(nil); err != nil {
		target.Release()
		return nil, fmt.Errorf("render target %q view: %w", label, err)
	}
	return target, nil
}

func (b *wgpuRendererBackendImpl) CreateShadowAtlas(width, height, layers int) (*ShadowAtlas, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	layerCount := uint32(max(layers, 1))
	atlas := &ShadowAtlas{Width: uint32(width), Height: uint32(height)}

	var err error
	atlas.Texture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Shadow Atlas",
		Size:          wgpu.Extent3D{Width: atlas.Width, Height: atlas.Height, DepthOrArrayLayers: layerCount},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        shadowDepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("shadow atlas: %w", err)
	}

	// One array view for sampling, one 2D view per layer for rendering.
	atlas.ArrayView, err = atlas.Texture.CreateView(atlasView("Shadow Atlas", wgpu.TextureViewDimension2DArray, 0, layerCount))
	if err != nil {
		atlas.Release()
		return nil, fmt.Errorf("shadow atlas array view: %w", err)
	}
	atlas.LayerViews = make([]*wgpu.TextureView, layerCount)
	for i := range layerCount {
		label := fmt.Sprintf("Shadow Atlas Layer %d", i)
		if atlas.LayerViews[i], err = atlas.Texture.CreateView(atlasView(label, wgpu.TextureViewDimension2D, i, 1)); err != nil {
			atlas.Release()
			return nil, fmt.Errorf("shadow atlas layer %d view: %w", i, err)
		}
	}

	logger.Logger().Debug("renderer: shadow atlas created",
		"width", width,
		"height", height,
		"layers", layerCount,
	)
	return atlas, nil
}

// atlasView describes a depth-only view over count layers of the atlas starting at base.
func atlasView(label string, dim wgpu.TextureViewDimension, base, count uint32) *wgpu.TextureViewDescriptor {
	return &wgpu.TextureViewDescriptor{
		Label:           label,
		Format:          shadowDepthFormat,
		Dimension:       dim,
		MipLevelCount:   1,
		BaseArrayLayer:  base,
		ArrayLayerCount: count,
		Aspect:          wgpu.TextureAspectDepthOnly,
	}
}

func (b *wgpuRendererBackendImpl) CreateComparisonSampler() (*wgpu.Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Shadow Compare",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		Compare:       wgpu.CompareFunctionLessEqual,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("comparison sampler: %w", err)
	}
	return samp, nil
}
