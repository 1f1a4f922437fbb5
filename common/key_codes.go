package common

// Key codes delivered by window key callbacks. They match GLFW key codes, which use ASCII
// values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyB     = 66 // bloom on/off
	KeyG     = 71 // gaussian/tent9 bloom prefilter
	KeyO     = 79 // outlines on/off
	KeyP     = 80 // post-process stack on/off
	KeySpace = 32 // pause animation

	Key1 = 49
	Key9 = 57
)
