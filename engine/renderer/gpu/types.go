package gpu

import (
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
)

// Stage identifies the shader stage a binding or upload targets.
type Stage int

const (
	// StageVertex is the vertex stage of a render program.
	StageVertex Stage = iota

	// StagePixel is the fragment stage of a render program.
	StagePixel

	// StageCompute is the single stage of a compute program.
	StageCompute
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StagePixel:
		return "pixel"
	case StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// TextureUsage is a bit set describing how a texture will be bound.
type TextureUsage uint32

const (
	// TextureUsageSampled allows the texture to be bound as a shader resource.
	TextureUsageSampled TextureUsage = 1 << iota

	// TextureUsageRenderTarget allows the texture to be bound as a color attachment.
	TextureUsageRenderTarget

	// TextureUsageDepthStencil allows the texture to be bound as a depth-stencil attachment.
	TextureUsageDepthStencil

	// TextureUsageStorage allows compute programs to write individual mips of the texture.
	TextureUsageStorage
)

// TextureDesc describes a texture to be created by a Device.
type TextureDesc struct {
	Label  string
	Width  int
	Height int

	// MipCount is the number of mip levels. Zero is treated as one.
	MipCount int

	Format wgpu.TextureFormat

	// Cube marks a six-layer cube map. Cube textures are exposed to shaders as cube views
	// and to storage bindings as 2D arrays.
	Cube bool

	Usage TextureUsage

	// Wrap and Filter describe the sampler paired with the texture when it is bound through
	// CommandRecorder.SetSamplers.
	Wrap       wgpu.AddressMode
	Filter     wgpu.FilterMode
	Anisotropy uint16
}

// Layers returns the number of array layers the description allocates.
func (d TextureDesc) Layers() int {
	if d.Cube {
		return 6
	}
	return 1
}

// Mips returns the mip count with the zero value normalized to one.
func (d TextureDesc) Mips() int {
	if d.MipCount < 1 {
		return 1
	}
	return d.MipCount
}

// ImageData is CPU pixel data uploaded into mip 0, layer 0 of a new texture.
type ImageData struct {
	Pixels      []byte
	BytesPerRow int
}

// BufferKind identifies how a buffer is bound.
type BufferKind int

const (
	// BufferKindVertex buffers are bound with SetVertexBuffer.
	BufferKindVertex BufferKind = iota

	// BufferKindIndex buffers hold 32-bit indices and are bound with SetIndexBuffer.
	BufferKindIndex

	// BufferKindConstant buffers hold shader constants and are bound with SetConstantBufferData.
	BufferKindConstant
)

// BufferDesc describes a buffer to be created by a Device.
type BufferDesc struct {
	Label string
	Kind  BufferKind

	// Size is the capacity in bytes. Uploads larger than Size are rejected.
	Size int

	// Stride is the vertex stride for vertex buffers.
	Stride int
}

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float64
}

// Viewport maps normalized device coordinates to a render target region.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is a scissor rectangle in pixels.
type Rect struct {
	X, Y, Width, Height uint32
}

// RasterizerDesc controls primitive assembly for a draw.
type RasterizerDesc struct {
	CullMode  wgpu.CullMode
	FrontFace wgpu.FrontFace
	Wireframe bool
}

// BlendDesc controls the color target blend for a draw.
type BlendDesc struct {
	Enabled   bool
	Color     wgpu.BlendComponent
	Alpha     wgpu.BlendComponent
	WriteMask wgpu.ColorWriteMask
}

// DepthStencilDesc controls depth testing and stencil operations for a draw.
type DepthStencilDesc struct {
	DepthEnabled     bool
	DepthWrite       bool
	DepthCompare     wgpu.CompareFunction
	StencilEnabled   bool
	StencilReadMask  uint32
	StencilWriteMask uint32
	StencilFront     wgpu.StencilFaceState
	StencilBack      wgpu.StencilFaceState
}

// StateSnapshot is the immutable rasterizer/blend/depth triple captured for one draw.
// Snapshots are values; changing a material's flags after a draw was recorded does not
// affect the recorded draw.
type StateSnapshot struct {
	Rasterizer   RasterizerDesc
	Blend        BlendDesc
	DepthStencil DepthStencilDesc
}

// DefaultStateSnapshot returns back-face culled, opaque, depth-tested state.
//
// Returns:
//   - StateSnapshot: the default state triple
func DefaultStateSnapshot() StateSnapshot {
	return StateSnapshot{
		Rasterizer: RasterizerDesc{
			CullMode:  wgpu.CullModeBack,
			FrontFace: wgpu.FrontFaceCCW,
		},
		Blend: BlendDesc{
			Color:     wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorZero, Operation: wgpu.BlendOperationAdd},
			Alpha:     wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorZero, Operation: wgpu.BlendOperationAdd},
			WriteMask: wgpu.ColorWriteMaskAll,
		},
		DepthStencil: DepthStencilDesc{
			DepthEnabled: true,
			DepthWrite:   true,
			DepthCompare: wgpu.CompareFunctionLessEqual,
			StencilFront: wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:  wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	}
}

// GraphicsState is everything SetGraphicsPipelineState binds: the program, the per-draw
// state snapshot, the topology and the input layout the vertex buffer is read with.
type GraphicsState struct {
	Program     Program
	State       StateSnapshot
	Topology    wgpu.PrimitiveTopology
	InputLayout *wgpu.VertexBufferLayout
}

// StorageView selects one mip of a texture for a compute storage binding.
type StorageView struct {
	Texture  Texture
	MipLevel int
}

// ProgramDesc describes a compiled program. Render programs set VertexEntry and FragmentEntry;
// compute programs set ComputeEntry.
type ProgramDesc struct {
	Label  string
	Source string

	VertexEntry   string
	FragmentEntry string
	ComputeEntry  string

	// VertexLayout is the vertex input layout parsed from the source, nil for compute programs.
	VertexLayout *wgpu.VertexBufferLayout

	// BindGroupLayouts are the binding layouts keyed by group index.
	BindGroupLayouts map[int]wgpu.BindGroupLayoutDescriptor

	WorkgroupSize [3]uint32
}

// IsCompute reports whether the description is for a compute program.
func (d ProgramDesc) IsCompute() bool {
	return d.ComputeEntry != ""
}

// Groups returns the bind group indices in ascending order.
func (d ProgramDesc) Groups() []int {
	groups := make([]int, 0, len(d.BindGroupLayouts))
	for g := range d.BindGroupLayouts {
		groups = append(groups, g)
	}
	slices.Sort(groups)
	return groups
}

// IsDepthFormat reports whether f is a depth or depth-stencil format.
func IsDepthFormat(f wgpu.TextureFormat) bool {
	switch f {
	case wgpu.TextureFormatDepth16Unorm,
		wgpu.TextureFormatDepth24Plus,
		wgpu.TextureFormatDepth24PlusStencil8,
		wgpu.TextureFormatDepth32Float,
		wgpu.TextureFormatDepth32FloatStencil8:
		return true
	default:
		return false
	}
}

// BytesPerPixel returns the texel size of the uncompressed color formats the engine uses,
// or zero for formats it never uploads from the CPU.
func BytesPerPixel(f wgpu.TextureFormat) int {
	switch f {
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb,
		wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb,
		wgpu.TextureFormatRG16Float, wgpu.TextureFormatR32Float:
		return 4
	case wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRG32Float:
		return 8
	case wgpu.TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}
