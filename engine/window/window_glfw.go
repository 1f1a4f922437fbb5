package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwPlatform is a GLFW window without a client API; WebGPU owns the surface.
type glfwPlatform struct {
	window *glfw.Window
}

var _ platform = &glfwPlatform{}

// openGLFW initializes GLFW and creates the window for w, reporting resizes and key presses
// back to it. The framebuffer size replaces w's requested size, since the two differ on
// high-DPI displays.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
func openGLFW(w *engineWindow) (*glfwPlatform, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create GLFW window: %w", err)
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)

	win.SetKeyCallback(func(win *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		switch {
		case action != glfw.Press:
		case key == glfw.KeyEscape:
			win.SetShouldClose(true)
		default:
			w.keyPressed(uint32(key))
		}
	})
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.framebufferResized(width, height)
	})

	w.width, w.height = win.GetFramebufferSize()
	return &glfwPlatform{window: win}, nil
}

// surfaceDescriptor wraps the native window handle.
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func (p *glfwPlatform) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(p.window)
}

func (p *glfwPlatform) shouldClose() bool {
	return p.window.ShouldClose()
}

// poll handles pending events without blocking.
func (p *glfwPlatform) poll() {
	glfw.PollEvents()
}

func (p *glfwPlatform) destroy() error {
	p.window.Destroy()
	glfw.Terminate()
	return nil
}
