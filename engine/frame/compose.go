package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// Compose bindings.
const (
	composeParams  = 0
	composeScene   = 1
	composeBloom   = 2
	composeOutline = 3
	composeAO      = 4
	composeSampler = 5
)

// composeResources is the compose bind group. Inputs the frame does not produce are bound
// to 1x1 constant textures: black bloom and white ambient occlusion.
type composeResources struct {
	provider bind_group_provider.BindGroupProvider
	ao       *wgpu.TextureView
	hasBloom bool
}

func (c *composeResources) release() {
	if c == nil || c.provider == nil {
		return
	}
	c.provider.Release()
	c.provider = nil
}

// ensureCompose rebuilds the compose bind group when the host's AO texture changes.
// ensureSized and ensureBloom drop it whenever the textures it samples are recreated.
func (f *frame) ensureCompose(ao *wgpu.TextureView) error {
	if f.compose != nil && f.compose.ao == ao {
		return nil
	}
	f.compose.release()
	f.compose = nil

	c := &composeResources{ao: ao}
	c.provider = bind_group_provider.NewBindGroupProvider("Compose",
		bind_group_provider.WithBindGroupLayout(f.pipelines[KeyCompose].BindGroupLayout(0)),
	)
	if err := f.bindCompose(c); err != nil {
		c.release()
		return err
	}
	f.compose = c
	logger.Logger().Debug("frame: compose inputs bound", "bloom", c.hasBloom, "ao", ao != nil)
	return nil
}

func (f *frame) bindCompose(c *composeResources) error {
	p := c.provider
	p.BorrowTextureView(composeScene, f.sized.hdr.View)
	p.BorrowTextureView(composeOutline, f.sized.outline.View)

	if out := f.bloom.output(); out != nil {
		p.BorrowTextureView(composeBloom, out.View)
		c.hasBloom = true
	} else if err := f.gpu.InitTextureView(p, composeBloom, common.SolidTexture(0, 0, 0, 255)); err != nil {
		return fmt.Errorf("frame: compose bloom fallback: %w", err)
	}

	if c.ao != nil {
		p.BorrowTextureView(composeAO, c.ao)
	} else if err := f.gpu.InitTextureView(p, composeAO, common.SolidTexture(255, 255, 255, 255)); err != nil {
		return fmt.Errorf("frame: compose ao fallback: %w", err)
	}

	if err := f.gpu.InitSampler(p, composeSampler, common.ClampedLinearSampler()); err != nil {
		return fmt.Errorf("frame: compose sampler: %w", err)
	}
	return f.initGroup(p, KeyCompose, 0, nil)
}
