package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/frame"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window    window.Window
	renderer  renderer.Renderer
	frame     frame.Frame
	minimized atomic.Bool

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	inputsCallback func(deltaTime float32) *frame.Inputs

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	renderErr error
}

// Engine is the render host. It runs a fixed-rate tick loop for the caller's simulation and
// a render loop that hands the caller's frame inputs to the frame encoder, while the calling
// goroutine pumps window events.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer frames are encoded with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance
	Renderer() renderer.Renderer

	// Frame returns the frame encoder.
	//
	// Returns:
	//   - frame.Frame: the frame instance
	Frame() frame.Frame

	// EnableProfiler enables performance reports through the logger.
	EnableProfiler()

	// DisableProfiler disables performance reports.
	DisableProfiler()

	// SetTickRate sets the tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetInputsCallback registers the function that builds the inputs of each rendered frame.
	// It runs on the render goroutine; returning nil skips the frame.
	//
	// Parameters:
	//   - callback: function receiving the render delta time in seconds
	SetInputsCallback(callback func(deltaTime float32) *frame.Inputs)

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run sets up the frame encoder, starts the tick and render loops and pumps window events
	// until the window closes or Quit is called. Frame resources are released before it returns.
	//
	// Returns:
	//   - error: a setup error, or the error that stopped the render loop
	Run() error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine from its window, renderer and frame options.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.renderer != nil && e.frame == nil {
		e.frame = frame.NewFrame(e.renderer)
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}
	return e
}

// resize reconfigures the surface. A zero-sized framebuffer pauses rendering instead, since
// the surface cannot be configured without area.
func (e *engine) resize(width, height int) {
	if width <= 0 || height <= 0 {
		e.minimized.Store(true)
		return
	}
	e.minimized.Store(false)
	if e.renderer != nil {
		e.renderer.Resize(width, height)
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Frame() frame.Frame {
	return e.frame
}

func (e *engine) Run() error {
	if e.window == nil || e.frame == nil {
		return errors.New("engine: a window and a renderer are required")
	}
	if err := e.frame.Setup(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer e.frame.Release()

	e.running.Store(true)
	e.handle()
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			// The render goroutine must stop presenting before the surface's window goes away.
			e.wg.Wait()
			_ = e.window.Close()
		default:
		}
	})
	e.window.ProcessMessages()

	e.signalQuit()
	e.wg.Wait()
	// Already closed when Quit stopped the loop.
	_ = e.window.Close()
	return e.renderErr
}

// Quit signals all engine goroutines to stop and shuts down the engine.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines, tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Each iteration builds the frame inputs and encodes one frame. A frame error stops the engine.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Logger().Error("engine: render goroutine recovered from panic", "panic", r)
			e.renderErr = fmt.Errorf("engine: render panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if e.minimized.Load() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		var in *frame.Inputs
		if e.inputsCallback != nil {
			in = e.inputsCallback(dt)
		}
		built := time.Now()
		if err := e.frame.Tick(in); err != nil {
			logger.Logger().Error("engine: frame failed", "error", err)
			e.renderErr = err
			e.signalQuit()
			return
		}

		if e.profilingEnabled.Load() {
			e.profiler.Record("inputs", built.Sub(now))
			e.profiler.Record("frame", time.Since(built))
			if _, ok := e.profiler.Tick(); ok {
				logFrameStats(e.frame.Stats())
			}
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// EnableProfiler enables performance reports through the logger.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance reports.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Non-blocking send; a pending update is replaced by the newer rate.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetInputsCallback(callback func(deltaTime float32) *frame.Inputs) {
	e.inputsCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

// frameDuration converts a rate cap into a minimum frame duration, zero when uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

func logFrameStats(s frame.Stats) {
	args := []any{
		"lights", s.Lights,
		"shadow_pages", s.Pages,
		"static_batches", s.StaticBatches,
		"skinned_batches", s.SkinnedBatches,
		"bloom_levels", s.BloomLevels,
	}
	if s.CPUCulled {
		args = append(args, "visible_lights", s.VisibleLights)
	}
	logger.Logger().Info("engine: frame stats", args...)
}
