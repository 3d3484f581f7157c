package common

// Key codes delivered by the window key callbacks. Printable keys use their ASCII value,
// the rest match GLFW.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyF   = 70  // F key (ASCII), frames the scene
	KeyR   = 82  // R key (ASCII), resets the camera
	KeyEsc = 256 // Escape key (GLFW)

	KeyLeftShift  = 340 // Left Shift (GLFW)
	KeyRightShift = 344 // Right Shift (GLFW)
)

// IsShift reports whether a key code is either shift key.
func IsShift(keyCode uint32) bool {
	return keyCode == KeyLeftShift || keyCode == KeyRightShift
}
