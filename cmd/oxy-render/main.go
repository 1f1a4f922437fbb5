// Command oxy-render opens a window and renders a lit demo scene through the full frame
// pipeline: light culling, paged shadows, forward lighting, bloom and compose.
//
// Keys: B toggles bloom, G switches the bloom prefilter, O toggles outlines, P toggles the
// post-process stack, Space pauses the animation and 1-9 scale the number of point lights.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-render/engine"
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/frame"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	writeConfig := flag.String("write-config", "", "write the default configuration to this path and exit")
	profile := flag.Bool("profile", false, "log frame timings and stats")
	flag.Parse()

	if err := run(*configPath, *writeConfig, *profile); err != nil {
		fmt.Fprintln(os.Stderr, "oxy-render:", err)
		os.Exit(1)
	}
}

func run(configPath, writeConfig string, profile bool) error {
	if writeConfig != "" {
		return config.Default().Save(writeConfig)
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// ── Logging ─────────────────────────────────────────────────────
	log, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return err
	}
	logger.SetLogger(log)

	// ── Window + Renderer ───────────────────────────────────────────
	win, err := window.NewWindow(
		window.WithTitle("oxy-render"),
		window.WithSize(1280, 720),
	)
	if err != nil {
		return err
	}
	r := renderer.NewRenderer(renderer.BackendTypeWGPU, win, renderer.WithConfig(cfg.Renderer))

	// ── Scene ───────────────────────────────────────────────────────
	d := newDemo(cfg)
	if err := d.upload(r); err != nil {
		return err
	}
	defer d.release()

	// ── Engine ──────────────────────────────────────────────────────
	eng := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithFrame(frame.NewFrame(r, frame.WithConfig(cfg))),
		engine.WithInputs(func(float32) *frame.Inputs {
			return d.inputs(r.SurfaceSize())
		}),
		engine.WithProfiling(profile),
		engine.WithTickRate(60),
	)
	eng.SetTickCallback(d.tick)
	win.SetKeyDownCallback(d.key)

	log.Info("oxy-render: starting",
		"present_mode", cfg.Renderer.PresentMode,
		"msaa", cfg.Renderer.MSAA,
		"gpu_culling", !cfg.Culling.CPUFallback,
	)
	return eng.Run()
}
