package gpu

import "github.com/cogentcore/webgpu/wgpu"

// deviceConfig collects the builder options applied before a device is created.
type deviceConfig struct {
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	width, height        int
	vsync                bool
	forceFallbackAdapter bool

	// retainLists caps the executed lists a headless device keeps. Zero keeps all of them.
	retainLists int
}

// DeviceBuilderOption is a functional option applied during NewDevice.
type DeviceBuilderOption func(*deviceConfig)

// WithSurface sets the window surface the wgpu device presents to.
//
// Parameters:
//   - desc: the platform surface descriptor, usually from window.Window.SurfaceDescriptor
//
// Returns:
//   - DeviceBuilderOption: a function that applies the surface option
func WithSurface(desc *wgpu.SurfaceDescriptor) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.surfaceDescriptor = desc
	}
}

// WithSize sets the initial swap chain size.
//
// Parameters:
//   - width: the swap chain width in pixels
//   - height: the swap chain height in pixels
//
// Returns:
//   - DeviceBuilderOption: a function that applies the size option
func WithSize(width, height int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.width = width
		c.height = height
	}
}

// WithVSync sets the initial presentation mode.
//
// Parameters:
//   - vsync: FIFO presentation when true, immediate otherwise
//
// Returns:
//   - DeviceBuilderOption: a function that applies the vsync option
func WithVSync(vsync bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.vsync = vsync
	}
}

// WithForceSoftwareRenderer forces a CPU fallback adapter. This requires a software Vulkan
// ICD such as lavapipe or SwiftShader to be installed.
//
// Parameters:
//   - force: true to request the fallback adapter
//
// Returns:
//   - DeviceBuilderOption: a function that applies the fallback option
func WithForceSoftwareRenderer(force bool) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithRetainedLists caps how many executed command lists the headless device keeps for
// Executed, dropping the oldest first. Zero keeps every list. Other devices ignore it.
//
// Parameters:
//   - n: the number of most recent lists to keep
//
// Returns:
//   - DeviceBuilderOption: a function that applies the retention option
func WithRetainedLists(n int) DeviceBuilderOption {
	return func(c *deviceConfig) {
		c.retainLists = max(n, 0)
	}
}
