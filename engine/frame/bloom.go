package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
)

// Bloom stage bindings.
const (
	bloomParams    = 0
	bloomSource    = 1
	bloomSampler   = 2
	bloomSecondary = 3
)

// Named targets of the bloom plan. Levels are "down<k>" and "up<k>".
const (
	targetScene = "scene"
	targetBlur  = "blur"
	targetBloom = "bloom"
)

// bloomStep is one fullscreen draw of the bloom chain.
type bloomStep struct {
	key string
	// source and secondary name the sampled targets; secondary is only set for upsampling.
	source, secondary string
	target            string
	size              [2]uint32
	texelSize         [2]float32
	direction         [2]float32
	applyThreshold    bool
}

// planBloom lays out the chain for a forward target size: prefilter into level 0 (two
// passes for the gaussian variant), downsample to the last level, upsample back to level 0
// blending with the matching downsampled level, then combine into the bloom output.
//
// Parameters:
//   - width, height: the forward target size
//   - s: the bloom settings
//
// Returns:
//   - []bloomStep: the draws in submission order, nil when the chain is inactive
func planBloom(width, height uint32, s postprocess.BloomSettings) []bloomStep {
	if !s.Active() {
		return nil
	}
	sizes := postprocess.MipSizes(width, height, s.MipCount)
	last := len(sizes) - 1
	texel := func(size [2]uint32) [2]float32 {
		return [2]float32{1 / float32(size[0]), 1 / float32(size[1])}
	}
	down := func(k int) string { return fmt.Sprintf("down%d", k) }
	up := func(k int) string {
		if k == last {
			return down(k)
		}
		return fmt.Sprintf("up%d", k)
	}
	scene := texel([2]uint32{max(width, 1), max(height, 1)})

	var steps []bloomStep
	if s.Prefilter == postprocess.PrefilterGaussian {
		steps = append(steps,
			bloomStep{key: KeyBloomPrefilter, source: targetScene, target: targetBlur, size: sizes[0], texelSize: scene, direction: [2]float32{1, 0}, applyThreshold: true},
			bloomStep{key: KeyBloomPrefilter, source: targetBlur, target: down(0), size: sizes[0], texelSize: scene, direction: [2]float32{0, 1}},
		)
	} else {
		steps = append(steps, bloomStep{key: KeyBloomPrefilter, source: targetScene, target: down(0), size: sizes[0], texelSize: scene, applyThreshold: true})
	}
	for k := 1; k <= last; k++ {
		steps = append(steps, bloomStep{key: KeyBloomDownsample, source: down(k - 1), target: down(k), size: sizes[k], texelSize: texel(sizes[k-1])})
	}
	for k := last - 1; k >= 0; k-- {
		steps = append(steps, bloomStep{key: KeyBloomUpsample, source: down(k), secondary: up(k + 1), target: up(k), size: sizes[k], texelSize: texel(sizes[k+1])})
	}
	steps = append(steps, bloomStep{key: KeyBloomCombine, source: up(0), target: targetBloom, size: sizes[0], texelSize: texel(sizes[0])})
	return steps
}

// bloomResources are the targets and per-draw bind groups of one bloom plan.
type bloomResources struct {
	settings  postprocess.BloomSettings
	steps     []bloomStep
	targets   map[string]*renderer.RenderTarget
	providers []bind_group_provider.BindGroupProvider
}

func (b *bloomResources) release() {
	if b == nil {
		return
	}
	for _, p := range b.providers {
		p.Release()
	}
	b.providers = nil
	for name, t := range b.targets {
		t.Release()
		delete(b.targets, name)
	}
}

// output returns the combined bloom texture, or nil when the chain is inactive.
func (b *bloomResources) output() *renderer.RenderTarget {
	if b == nil {
		return nil
	}
	return b.targets[targetBloom]
}

// sameLayout reports whether two settings produce the same targets and draws.
func sameLayout(a, b postprocess.BloomSettings) bool {
	return a.Active() == b.Active() && a.MipCount == b.MipCount && a.Prefilter == b.Prefilter
}

// ensureBloom rebuilds the chain when its layout changes. Parameter-only changes are
// written each frame and keep the existing resources.
func (f *frame) ensureBloom(s postprocess.BloomSettings) error {
	if f.bloom != nil && sameLayout(f.bloom.settings, s) {
		f.bloom.settings = s
		return nil
	}
	f.compose.release()
	f.compose = nil
	f.bloom.release()
	f.bloom = nil

	b := &bloomResources{settings: s, targets: make(map[string]*renderer.RenderTarget)}
	b.steps = planBloom(f.sized.width, f.sized.height, s)
	if err := f.createBloom(b); err != nil {
		b.release()
		return err
	}
	f.bloom = b
	logger.Logger().Debug("frame: bloom chain built", "levels", s.MipCount, "draws", len(b.steps), "prefilter", s.Prefilter.String())
	return nil
}

func (f *frame) createBloom(b *bloomResources) error {
	for _, step := range b.steps {
		if _, ok := b.targets[step.target]; ok {
			continue
		}
		t, err := f.gpu.CreateRenderTarget("Bloom "+step.target, int(step.size[0]), int(step.size[1]), HDRFormat, 1)
		if err != nil {
			return fmt.Errorf("frame: bloom target %s: %w", step.target, err)
		}
		b.targets[step.target] = t
	}

	view := func(name string) *renderer.RenderTarget {
		if name == targetScene {
			return f.sized.hdr
		}
		return b.targets[name]
	}
	for i, step := range b.steps {
		options := []bind_group_provider.BindGroupProviderOption{
			bind_group_provider.WithBindGroupLayout(f.pipelines[step.key].BindGroupLayout(0)),
			bind_group_provider.WithBorrowedTextureView(bloomSource, view(step.source).View),
		}
		if step.secondary != "" {
			options = append(options, bind_group_provider.WithBorrowedTextureView(bloomSecondary, view(step.secondary).View))
		}
		p := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("Bloom %d %s", i, step.key), options...)
		b.providers = append(b.providers, p)
		if err := f.gpu.InitSampler(p, bloomSampler, common.ClampedLinearSampler()); err != nil {
			return fmt.Errorf("frame: bloom sampler: %w", err)
		}
		if err := f.initGroup(p, step.key, 0, nil); err != nil {
			return err
		}
	}
	return nil
}

// bloomWrites stages the parameters of every draw for the current settings.
func (b *bloomResources) writes() []bind_group_provider.BufferWrite {
	if b == nil {
		return nil
	}
	base := postprocess.NewBloomParams(b.settings)
	writes := make([]bind_group_provider.BufferWrite, 0, len(b.steps))
	for i, step := range b.steps {
		params := base
		params.TexelSize = step.texelSize
		params.Direction = step.direction
		if step.applyThreshold {
			params.ApplyThreshold = 1
		}
		writes = append(writes, bind_group_provider.BufferWrite{
			Provider: b.providers[i],
			Binding:  bloomParams,
			Data:     params.Marshal(),
		})
	}
	return writes
}
