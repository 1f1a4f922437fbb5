package main

import (
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/frame"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	gridSize      = 5
	gridSpacing   = 3.0
	maxPointLight = 72
	orbitRadius   = 7.0
)

// demo is a lit grid of cubes on a ground plane with orbiting point lights and a shadowed sun.
// The tick goroutine animates it and the render goroutine snapshots it into frame inputs.
type demo struct {
	mu sync.Mutex

	cam    camera.Camera
	lights light.Registry
	sun    light.Light
	points []light.Light

	cube, ground model.Model

	bloom    postprocess.BloomSettings
	post     postprocess.PostSettings
	outlines bool
	paused   bool
	time     float32
}

func newDemo(cfg *config.Config) *demo {
	d := &demo{
		cam: camera.NewCamera(
			camera.WithPosition(0, 9, 16),
			camera.WithTarget(0, 0, 0),
			camera.WithFov(float32(50*math.Pi/180)),
			camera.WithAspect(16.0/9.0),
			camera.WithClip(0.1, 200),
		),
		sun: light.NewLight(light.LightTypeDirectional,
			light.WithDirection(-0.4, -1, -0.3),
			light.WithColor(1, 0.95, 0.85),
			light.WithIntensity(2.5),
			light.WithCastsShadows(true),
			light.WithShadowVolume(20, 0.1, 60),
		),
		cube:     newMesh("Cube", cubeVertices(0.8), cubeIndices()),
		ground:   newMesh("Ground", planeVertices(gridSize*gridSpacing), []uint32{0, 1, 2, 0, 2, 3}),
		bloom:    cfg.Bloom.Settings(),
		post:     cfg.Post.Settings(),
		outlines: true,
	}

	d.lights = light.NewRegistry(
		light.NewLight(light.LightTypeHemispheric,
			light.WithColor(0.35, 0.4, 0.5),
			light.WithGroundColor(0.12, 0.1, 0.08),
			light.WithIntensity(0.6),
		),
		d.sun,
	)
	for i := range maxPointLight {
		hue := float64(i) / maxPointLight * 2 * math.Pi
		l := light.NewLight(light.LightTypePoint,
			light.WithColor(float32(0.5+0.5*math.Cos(hue)), float32(0.5+0.5*math.Cos(hue-2.1)), float32(0.5+0.5*math.Cos(hue+2.1))),
			light.WithIntensity(4),
			light.WithRange(5),
			light.WithEnabled(i < 8),
		)
		d.points = append(d.points, l)
		d.lights.Add(l)
	}
	d.place()
	return d
}

func newMesh(name string, vertices []model.GPUVertex, indices []uint32) model.Model {
	return model.NewModel(
		model.WithName(name),
		model.WithMeshProvider(bind_group_provider.NewBindGroupProvider(name+" Mesh")),
		model.WithVertices(vertices),
		model.WithIndices(indices),
	)
}

// upload creates the vertex and index buffers of the demo meshes.
func (d *demo) upload(r renderer.Renderer) error {
	for _, m := range []model.Model{d.cube, d.ground} {
		if err := r.InitMeshBuffers(m.MeshProvider(), m.VertexData(), m.IndexData(), m.IndexCount()); err != nil {
			return fmt.Errorf("demo: upload %s: %w", m.Name(), err)
		}
	}
	return nil
}

func (d *demo) release() {
	for _, m := range []model.Model{d.cube, d.ground} {
		m.MeshProvider().Release()
	}
}

// tick advances the light animation.
func (d *demo) tick(dt float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paused {
		return
	}
	d.time += dt
	d.place()
}

// place moves the point lights along their orbits. Caller holds mu.
func (d *demo) place() {
	for i, l := range d.points {
		phase := float64(d.time)*0.4 + float64(i)/float64(len(d.points))*2*math.Pi
		ring := orbitRadius * (0.4 + 0.6*float64(i%3)/2)
		l.SetPosition(mgl32.Vec3{
			float32(ring * math.Cos(phase)),
			1.2 + 0.5*float32(math.Sin(phase*3)),
			float32(ring * math.Sin(phase)),
		})
	}
}

// key applies the interactive toggles.
func (d *demo) key(code uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch code {
	case common.KeyB:
		d.bloom.Enabled = !d.bloom.Enabled
	case common.KeyG:
		if d.bloom.Prefilter == postprocess.PrefilterGaussian {
			d.bloom.Prefilter = postprocess.PrefilterTent9
		} else {
			d.bloom.Prefilter = postprocess.PrefilterGaussian
		}
	case common.KeyO:
		d.outlines = !d.outlines
	case common.KeyP:
		d.post.Enabled = !d.post.Enabled
	case common.KeySpace:
		d.paused = !d.paused
	default:
		if code < common.Key1 || code > common.Key9 {
			return
		}
		active := int(code-common.Key1+1) * maxPointLight / 9
		for i, l := range d.points {
			l.SetEnabled(i < active)
		}
	}
	logger.Logger().Info("demo: settings changed",
		"bloom", d.bloom.Enabled,
		"prefilter", d.bloom.Prefilter.String(),
		"post", d.post.Enabled,
		"outlines", d.outlines,
		"paused", d.paused,
	)
}

// inputs snapshots the demo into the inputs of one frame.
func (d *demo) inputs(width, height int) *frame.Inputs {
	d.mu.Lock()
	defer d.mu.Unlock()

	if width > 0 && height > 0 {
		d.cam.SetAspect(float32(width) / float32(height))
	}

	instances := make([]model.Instance, 0, gridSize*gridSize+1)
	ground := model.IdentityTransform()
	instances = append(instances, model.Instance{
		Model:          d.ground,
		Transform:      ground,
		BaseColor:      [4]float32{0.55, 0.55, 0.6, 1},
		ReceivesShadow: true,
	})
	half := float32(gridSize-1) * gridSpacing / 2
	for z := range gridSize {
		for x := range gridSize {
			t := model.IdentityTransform()
			t.Translation = [3]float32{float32(x)*gridSpacing - half, 0.8, float32(z)*gridSpacing - half}
			instances = append(instances, model.Instance{
				Model:          d.cube,
				Transform:      t,
				BaseColor:      [4]float32{0.8, 0.3 + 0.1*float32(x), 0.3 + 0.1*float32(z), 1},
				ReceivesShadow: true,
				CastsShadow:    true,
				Outlined:       d.outlines && x == gridSize/2 && z == gridSize/2,
			})
		}
	}

	return &frame.Inputs{
		Cameras: []camera.Camera{d.cam},
		Lights:  d.lights.Pack([3]float32{}),
		Models:  instances,
		Bloom:   d.bloom,
		Post:    d.post,
		Time:    d.time,
	}
}

// cubeVertices builds a cube of the given half size with per-face normals.
func cubeVertices(h float32) []model.GPUVertex {
	faces := []struct {
		normal, u, v [3]float32
	}{
		{[3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{0, 0, -1}, [3]float32{-1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{1, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}},
		{[3]float32{-1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}},
		{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}},
		{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	out := make([]model.GPUVertex, 0, 24)
	for _, f := range faces {
		for _, c := range corners {
			var p [3]float32
			for i := range 3 {
				p[i] = (f.normal[i] + c[0]*f.u[i] + c[1]*f.v[i]) * h
			}
			out = append(out, model.GPUVertex{
				Position: p,
				Normal:   f.normal,
				TexCoord: [2]float32{(c[0] + 1) / 2, (c[1] + 1) / 2},
				Color:    [4]float32{1, 1, 1, 1},
				Tangent:  [4]float32{f.u[0], f.u[1], f.u[2], 1},
			})
		}
	}
	return out
}

func cubeIndices() []uint32 {
	out := make([]uint32, 0, 36)
	for f := range uint32(6) {
		b := f * 4
		out = append(out, b, b+1, b+2, b, b+2, b+3)
	}
	return out
}

// planeVertices builds an upward-facing square of the given half size at y = 0.
func planeVertices(h float32) []model.GPUVertex {
	corners := [4][2]float32{{-1, 1}, {1, 1}, {1, -1}, {-1, -1}}
	out := make([]model.GPUVertex, 0, 4)
	for _, c := range corners {
		out = append(out, model.GPUVertex{
			Position: [3]float32{c[0] * h, 0, c[1] * h},
			Normal:   [3]float32{0, 1, 0},
			TexCoord: [2]float32{(c[0] + 1) / 2, (c[1] + 1) / 2},
			Color:    [4]float32{1, 1, 1, 1},
			Tangent:  [4]float32{1, 0, 0, 1},
		})
	}
	return out
}
