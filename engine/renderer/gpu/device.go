package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// BackendType identifies the Device implementation.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU device.
	BackendTypeWGPU BackendType = iota

	// BackendTypeHeadless selects the recording device, which executes nothing on a GPU and
	// keeps every executed command list for inspection.
	BackendTypeHeadless
)

func (b BackendType) String() string {
	switch b {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeHeadless:
		return "headless"
	default:
		return "unknown"
	}
}

// DefaultRetainedLists is the number of executed lists a headless device created by NewDevice
// keeps. NewHeadlessDevice keeps all of them.
const DefaultRetainedLists = 64

// SwapChainDepthFormat is the depth format of the swap chain depth attachment.
const SwapChainDepthFormat = wgpu.TextureFormatDepth24PlusStencil8

// swapChainColorFormat is the color format reported by devices without a surface. The wgpu
// device uses the first format the surface supports instead.
const swapChainColorFormat = wgpu.TextureFormatBGRA8Unorm

// Device owns GPU resources and executes recorded command lists. It is the explicit render
// context handed to every component that creates resources; there is no global device.
type Device interface {
	// Backend returns the implementation type.
	Backend() BackendType

	// CreateBuffer creates a buffer, optionally seeded with data.
	//
	// Parameters:
	//   - desc: the buffer description
	//   - data: initial contents, may be nil
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: an error if the device rejected the description
	CreateBuffer(desc BufferDesc, data []byte) (Buffer, error)

	// CreateTexture creates a texture, optionally uploading data into mip 0 of layer 0.
	//
	// Parameters:
	//   - desc: the texture description
	//   - data: initial pixels, may be nil
	//
	// Returns:
	//   - Texture: the created texture
	//   - error: an error if the device rejected the description
	CreateTexture(desc TextureDesc, data *ImageData) (Texture, error)

	// ReleaseTexture frees the GPU objects behind a texture. The texture must not be bound
	// by any unexecuted command list.
	ReleaseTexture(tex Texture)

	// CreateProgram compiles a program and creates its binding layouts.
	//
	// Parameters:
	//   - desc: the program description
	//
	// Returns:
	//   - Program: the compiled program
	//   - error: an error if compilation failed
	CreateProgram(desc ProgramDesc) (Program, error)

	// NewCommandRecorder creates a recorder bound to this device.
	NewCommandRecorder(label string) CommandRecorder

	// ExecuteCommandBuffer executes a finished recorder's commands and resets the recorder.
	// Executions are serialized; the order of independently recorded lists is the caller's.
	//
	// Parameters:
	//   - rec: a recorder created by this device and sealed with Finish
	//
	// Returns:
	//   - error: an error if the recorder was not finished or execution failed
	ExecuteCommandBuffer(rec CommandRecorder) error

	// SwapChain returns the presentation color and depth textures.
	SwapChain() (color Texture, depth Texture)

	// ResizeSwapChain resizes the presentation surface. Equal dimensions are a no-op.
	ResizeSwapChain(width, height int) error

	// Present shows the current swap chain image.
	//
	// Parameters:
	//   - vsync: wait for vertical blank when true
	Present(vsync bool) error

	// Close releases every device object.
	Close()
}

// NewDevice creates a device of the given backend type.
//
// Parameters:
//   - backendType: the implementation to create
//   - options: builder options applied before the device is created
//
// Returns:
//   - Device: the created device
//   - error: an error if the adapter or device could not be acquired
func NewDevice(backendType BackendType, options ...DeviceBuilderOption) (Device, error) {
	cfg := &deviceConfig{
		width:       1280,
		height:      720,
		vsync:       true,
		retainLists: DefaultRetainedLists,
	}
	for _, opt := range options {
		opt(cfg)
	}

	switch backendType {
	case BackendTypeHeadless:
		return newHeadlessDevice(cfg), nil
	case BackendTypeWGPU:
		if cfg.surfaceDescriptor == nil {
			return nil, fmt.Errorf("%w: wgpu device requires a surface descriptor", ErrInvalidDescriptor)
		}
		return newWGPUDevice(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown backend %d", ErrInvalidDescriptor, backendType)
	}
}
