package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// submission is a command encoder that is opened, recorded into and submitted as one command buffer.
type submission struct {
	label   string
	encoder *wgpu.CommandEncoder
}

func (s *submission) open(device *wgpu.Device) error {
	if s.encoder != nil {
		return fmt.Errorf("%s already open", s.label)
	}
	encoder, err := device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: s.label})
	if err != nil {
		return fmt.Errorf("%s: %w", s.label, err)
	}
	s.encoder = encoder
	return nil
}

// submit finishes the encoder and submits its command buffer. The encoder is released either way.
func (s *submission) submit(queue *wgpu.Queue) error {
	encoder := s.encoder
	if encoder == nil {
		return nil
	}
	s.encoder = nil
	defer encoder.Release()

	commands, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("%s: %w", s.label, err)
	}
	defer commands.Release()
	queue.Submit(commands)
	return nil
}

// endPass ends and releases *pass if one is open.
func endPass(pass **wgpu.RenderPassEncoder) {
	if *pass == nil {
		return
	}
	(*pass).End()
	(*pass).Release()
	*pass = nil
}

// setBindGroups binds each provider at its index. Group 0 gets offsets when non-nil.
func setBindGroups(pass *wgpu.RenderPassEncoder, groups []bind_group_provider.BindGroupProvider, groupZeroOffsets []uint32) {
	for i, bg := range groups {
		var offsets []uint32
		if i == 0 {
			offsets = groupZeroOffsets
		}
		pass.SetBindGroup(uint32(i), bg.BindGroup(), offsets)
	}
}

// drawMesh draws instanceCount instances of an indexed uint32 mesh.
func drawMesh(pass *wgpu.RenderPassEncoder, mesh bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32) {
	pass.SetVertexBuffer(0, mesh.VertexBuffer(), 0, wgpu.WholeSize)
	pass.SetIndexBuffer(mesh.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(uint32(mesh.IndexCount()), instanceCount, 0, 0, firstInstance)
}

// ── Compute ─────────────────────────────────────────────────────────

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.compute.open(b.device)
}

func (b *wgpuRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.compute.encoder == nil {
		return
	}
	pass := b.compute.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: p.PipelineKey()})
	pass.SetPipeline(p.Pipeline().(*wgpu.ComputePipeline))
	pass.SetBindGroup(0, computeProvider.BindGroup(), nil)
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
	pass.Release()
}

func (b *wgpuRendererBackendImpl) EndComputeFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.compute.submit(b.queue); err != nil {
		logger.Logger().Warn("renderer: compute submission dropped", "error", err)
	}
}

// ── Shadow ──────────────────────────────────────────────────────────

func (b *wgpuRendererBackendImpl) BeginShadowFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shadow.open(b.device)
}

func (b *wgpuRendererBackendImpl) BeginShadowPass(layerView *wgpu.TextureView) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shadow.encoder == nil {
		return
	}
	endPass(&b.shadowPass)
	// The layer is stored: the forward pass samples it.
	b.shadowPass = b.shadow.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Shadow Layer",
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            layerView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
}

func (b *wgpuRendererBackendImpl) SetShadowViewport(x, y, width, height uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shadowPass == nil {
		return
	}
	b.shadowPass.SetViewport(float32(x), float32(y), float32(width), float32(height), 0, 1)
	b.shadowPass.SetScissorRect(x, y, width, height)
}

func (b *wgpuRendererBackendImpl) ShadowDrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider, pageOffset uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shadowPass == nil {
		return
	}
	b.shadowPass.SetPipeline(p.Pipeline().(*wgpu.RenderPipeline))
	setBindGroups(b.shadowPass, bindGroups, []uint32{pageOffset})
	drawMesh(b.shadowPass, meshProvider, firstInstance, instanceCount)
}

func (b *wgpuRendererBackendImpl) EndShadowPass() {
	b.mu.Lock()
	defer b.mu.Unlock()
	endPass(&b.shadowPass)
}

func (b *wgpuRendererBackendImpl) EndShadowFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	endPass(&b.shadowPass)
	if err := b.shadow.submit(b.queue); err != nil {
		logger.Logger().Warn("renderer: shadow submission dropped", "error", err)
	}
}

// ── Surface ─────────────────────────────────────────────────────────

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Acquiring a second swapchain texture before presenting the first is a validation error.
	if b.frameTexture != nil {
		return errors.New("previous frame not presented")
	}

	texture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return err
	}
	if err := b.surf.open(b.device); err != nil {
		view.Release()
		texture.Release()
		return err
	}

	b.frameTexture, b.frameView = texture, view
	return nil
}

func (b *wgpuRendererBackendImpl) SurfaceView() *wgpu.TextureView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frameView
}

func (b *wgpuRendererBackendImpl) BeginRenderPass(targets RenderPassTargets) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surf.encoder == nil {
		return fmt.Errorf("render pass %q begun outside a frame", targets.Label)
	}
	if b.framePass != nil {
		return fmt.Errorf("render pass %q begun while another pass is open", targets.Label)
	}
	b.framePass = b.surf.encoder.BeginRenderPass(targets.descriptor())
	return nil
}

// descriptor builds the pass descriptor. Color attachments are cleared; a multisampled
// attachment is resolved and its samples discarded. Depth is cleared to 1.0 and discarded.
func (t RenderPassTargets) descriptor() *wgpu.RenderPassDescriptor {
	colors := make([]wgpu.RenderPassColorAttachment, len(t.Colors))
	for i, c := range t.Colors {
		store := wgpu.StoreOpStore
		if c.ResolveTarget != nil {
			store = wgpu.StoreOpDiscard
		}
		colors[i] = wgpu.RenderPassColorAttachment{
			View:          c.View,
			ResolveTarget: c.ResolveTarget,
			LoadOp:        wgpu.LoadOpClear,
			StoreOp:       store,
			ClearValue:    c.Clear,
		}
	}

	desc := &wgpu.RenderPassDescriptor{Label: t.Label, ColorAttachments: colors}
	if t.Depth != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            t.Depth,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		}
	}
	return desc
}

func (b *wgpuRendererBackendImpl) DrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, firstInstance, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.SetPipeline(p.Pipeline().(*wgpu.RenderPipeline))
	setBindGroups(b.framePass, bindGroups, nil)
	drawMesh(b.framePass, meshProvider, firstInstance, instanceCount)
}

func (b *wgpuRendererBackendImpl) DrawFullscreen(p pipeline.Pipeline, bindGroups []bind_group_provider.BindGroupProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.SetPipeline(p.Pipeline().(*wgpu.RenderPipeline))
	setBindGroups(b.framePass, bindGroups, nil)
	b.framePass.Draw(3, 1, 0, 0)
}

func (b *wgpuRendererBackendImpl) EndRenderPass() {
	b.mu.Lock()
	defer b.mu.Unlock()
	endPass(&b.framePass)
}

// EndFrame submits the surface work. The swapchain texture stays held until Present.
func (b *wgpuRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	endPass(&b.framePass)
	if err := b.surf.submit(b.queue); err != nil {
		logger.Logger().Warn("renderer: frame submission dropped", "error", err)
	}
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameTexture == nil {
		return
	}
	b.surface.Present()

	b.frameView.Release()
	b.frameTexture.Release()
	b.frameView, b.frameTexture = nil, nil
}
