package renderer

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/lumen/common"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/material"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// Sizes of the textures the renderer creates at startup and when baking environments.
const (
	DefaultEnvironmentSize = 1024
	DefaultIrradianceSize  = 32
	DefaultBRDFLUTSize     = 256

	// QuadStride is the size of one fullscreen quad vertex: float3 position, float2 uv.
	QuadStride = 20
)

// EnvironmentFormat is the format of every cube the environment baker writes. Storage
// bindings are always rgba16float, so the two-channel BRDF LUT uses it as well.
const EnvironmentFormat = wgpu.TextureFormatRGBA16Float

// quadVertices is the fullscreen quad in clip space with top-left uv origin.
var quadVertices = []float32{
	-1, -1, 0, 0, 1,
	1, -1, 0, 1, 1,
	1, 1, 0, 1, 0,
	-1, 1, 0, 0, 0,
}

var quadIndices = []uint32{0, 1, 2, 2, 3, 0}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	device  gpu.Device
	library shader.Library

	quadVB gpu.Buffer
	quadIB gpu.Buffer

	black2D   gpu.Texture
	blackCube gpu.Texture
	brdfLUT   gpu.Texture

	// Pre-creation config collected from builder options
	shaderDir      string
	envSize        int
	irradianceSize int
	brdfSize       int
}

// Renderer is the device-global rendering context: the device, the shader library and the
// resources every scene renderer shares. It replaces process-wide singletons; everything that
// draws receives the Renderer explicitly.
type Renderer interface {
	// Device returns the device every resource is created on.
	Device() gpu.Device

	// Shaders returns the shader library holding the built-in and loaded shaders.
	Shaders() shader.Library

	// QuadVertexBuffer returns the fullscreen quad vertices, QuadStride bytes each.
	QuadVertexBuffer() gpu.Buffer

	// QuadIndexBuffer returns the six indices of the fullscreen quad.
	QuadIndexBuffer() gpu.Buffer

	// BlackTexture returns the 1x1 opaque black 2D texture bound to empty 2D slots.
	BlackTexture() gpu.Texture

	// BlackCubeTexture returns the 1x1 black cube bound to empty cube slots.
	BlackCubeTexture() gpu.Texture

	// BRDFLUT returns the split-sum BRDF lookup table baked at startup.
	BRDFLUT() gpu.Texture

	// NewMaterial creates a material of a library shader with the renderer's black textures
	// as slot defaults. An unknown shader name is fatal.
	//
	// Parameters:
	//   - shaderName: the library name of the shader
	//   - options: variadic list of MaterialBuilderOption functions
	//
	// Returns:
	//   - material.Material: the new material
	NewMaterial(shaderName string, options ...material.MaterialBuilderOption) material.Material

	// CreateHDRTexture uploads floating-point RGBA pixels as an RGBA16Float 2D texture, the
	// source format BakeEnvironment expects.
	//
	// Parameters:
	//   - label: the texture label
	//   - width, height: the size in pixels
	//   - rgba: width*height*4 values
	//
	// Returns:
	//   - gpu.Texture: the uploaded texture
	//   - error: a size mismatch or device error
	CreateHDRTexture(label string, width, height int, rgba []float32) (gpu.Texture, error)

	EnvironmentBaker

	// WatchShaders reloads shaders from the configured shader directory when their files
	// change, until ctx is cancelled.
	WatchShaders(ctx context.Context) error

	// Close releases the renderer's textures. The device stays open.
	Close()
}

var _ Renderer = &renderer{}

// NewRenderer creates the rendering context on a device: it compiles the built-in shaders,
// loads any shaders from the configured directory over them, uploads the fullscreen quad and
// the black textures, and bakes the BRDF LUT.
//
// Parameters:
//   - device: the device to render with
//   - options: variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the new context
//   - error: a shader or device error
func NewRenderer(device gpu.Device, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:             &sync.Mutex{},
		device:         device,
		library:        shader.NewLibrary(device),
		envSize:        DefaultEnvironmentSize,
		irradianceSize: DefaultIrradianceSize,
		brdfSize:       DefaultBRDFLUTSize,
	}
	for _, opt := range options {
		opt(r)
	}

	if err := r.library.LoadBuiltins(); err != nil {
		return nil, fmt.Errorf("renderer: loading built-in shaders: %w", err)
	}
	if r.shaderDir != "" {
		if err := r.library.Load(r.shaderDir); err != nil {
			return nil, fmt.Errorf("renderer: loading shaders from %s: %w", r.shaderDir, err)
		}
	}
	if err := r.createQuad(); err != nil {
		return nil, err
	}
	if err := r.createDefaultTextures(); err != nil {
		return nil, err
	}
	if err := r.bakeBRDFLUT(); err != nil {
		return nil, err
	}
	logger.Info("renderer ready", "backend", device.Backend(), "shaders", len(r.library.Names()))
	return r, nil
}

func (r *renderer) createQuad() error {
	vertexData := make([]byte, len(quadVertices)*4)
	for i, v := range quadVertices {
		binary.LittleEndian.PutUint32(vertexData[i*4:], math.Float32bits(v))
	}
	indexData := make([]byte, len(quadIndices)*4)
	for i, idx := range quadIndices {
		binary.LittleEndian.PutUint32(indexData[i*4:], idx)
	}

	var err error
	r.quadVB, err = r.device.CreateBuffer(gpu.BufferDesc{
		Label:  "Fullscreen Quad Vertices",
		Kind:   gpu.BufferKindVertex,
		Size:   len(vertexData),
		Stride: QuadStride,
	}, vertexData)
	if err != nil {
		return fmt.Errorf("renderer: creating quad: %w", err)
	}
	r.quadIB, err = r.device.CreateBuffer(gpu.BufferDesc{
		Label:  "Fullscreen Quad Indices",
		Kind:   gpu.BufferKindIndex,
		Size:   len(indexData),
		Stride: 4,
	}, indexData)
	if err != nil {
		return fmt.Errorf("renderer: creating quad: %w", err)
	}
	return nil
}

func (r *renderer) createDefaultTextures() error {
	var err error
	r.black2D, err = r.device.CreateTexture(gpu.TextureDesc{
		Label:  "Black",
		Width:  1,
		Height: 1,
		Format: wgpu.TextureFormatRGBA8Unorm,
		Usage:  gpu.TextureUsageSampled,
		Wrap:   wgpu.AddressModeRepeat,
		Filter: wgpu.FilterModeLinear,
	}, &gpu.ImageData{Pixels: []byte{0, 0, 0, 255}, BytesPerRow: 4})
	if err != nil {
		return fmt.Errorf("renderer: creating black texture: %w", err)
	}
	r.blackCube, err = r.device.CreateTexture(gpu.TextureDesc{
		Label:  "Black Cube",
		Width:  1,
		Height: 1,
		Cube:   true,
		Format: EnvironmentFormat,
		Usage:  gpu.TextureUsageSampled,
		Wrap:   wgpu.AddressModeClampToEdge,
		Filter: wgpu.FilterModeLinear,
	}, nil)
	if err != nil {
		return fmt.Errorf("renderer: creating black cube: %w", err)
	}
	return nil
}

// bakeBRDFLUT fills the BRDF LUT with one dispatch and executes it immediately.
func (r *renderer) bakeBRDFLUT() error {
	var err error
	r.brdfLUT, err = r.device.CreateTexture(gpu.TextureDesc{
		Label:  "BRDF LUT",
		Width:  r.brdfSize,
		Height: r.brdfSize,
		Format: EnvironmentFormat,
		Usage:  gpu.TextureUsageStorage | gpu.TextureUsageSampled,
		Wrap:   wgpu.AddressModeClampToEdge,
		Filter: wgpu.FilterModeLinear,
	}, nil)
	if err != nil {
		return fmt.Errorf("renderer: creating brdf lut: %w", err)
	}

	cs := r.library.GetCompute(shader.BRDFShader)
	groups := ThreadGroups(r.brdfSize)
	rec := r.device.NewCommandRecorder("BRDF LUT")
	rec.SetStorageTextures(0, []gpu.StorageView{{Texture: r.brdfLUT}})
	rec.Dispatch(cs.Program(), groups, groups, 1)
	rec.Finish()
	if err := r.device.ExecuteCommandBuffer(rec); err != nil {
		return fmt.Errorf("renderer: baking brdf lut: %w", err)
	}
	return nil
}

func (r *renderer) Device() gpu.Device {
	return r.device
}

func (r *renderer) Shaders() shader.Library {
	return r.library
}

func (r *renderer) QuadVertexBuffer() gpu.Buffer {
	return r.quadVB
}

func (r *renderer) QuadIndexBuffer() gpu.Buffer {
	return r.quadIB
}

func (r *renderer) BlackTexture() gpu.Texture {
	return r.black2D
}

func (r *renderer) BlackCubeTexture() gpu.Texture {
	return r.blackCube
}

func (r *renderer) BRDFLUT() gpu.Texture {
	return r.brdfLUT
}

func (r *renderer) NewMaterial(shaderName string, options ...material.MaterialBuilderOption) material.Material {
	s := r.library.Get(shaderName)
	opts := append([]material.MaterialBuilderOption{material.WithDefaultTextures(r.black2D, r.blackCube)}, options...)
	return material.NewMaterial(s, opts...)
}

func (r *renderer) CreateHDRTexture(label string, width, height int, rgba []float32) (gpu.Texture, error) {
	if len(rgba) != width*height*4 {
		return nil, fmt.Errorf("%w: %s has %d values for %dx%d rgba", gpu.ErrInvalidDescriptor, label, len(rgba), width, height)
	}
	return r.device.CreateTexture(gpu.TextureDesc{
		Label:  label,
		Width:  width,
		Height: height,
		Format: EnvironmentFormat,
		Usage:  gpu.TextureUsageSampled,
		Wrap:   wgpu.AddressModeRepeat,
		Filter: wgpu.FilterModeLinear,
	}, &gpu.ImageData{Pixels: common.HalfBytes(rgba), BytesPerRow: width * gpu.BytesPerPixel(EnvironmentFormat)})
}

func (r *renderer) WatchShaders(ctx context.Context) error {
	if r.shaderDir == "" {
		logger.Warn("shader hot reload requested without a shader directory")
		return nil
	}
	return r.library.Watch(ctx)
}

func (r *renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range []gpu.Texture{r.black2D, r.blackCube, r.brdfLUT} {
		if t != nil {
			r.device.ReleaseTexture(t)
		}
	}
	r.black2D, r.blackCube, r.brdfLUT = nil, nil, nil
}
