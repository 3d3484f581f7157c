package gpu

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// Texture is a device texture. Identity is stable for the life of the object; recreating a
// texture (for example on render target resize) always produces a new identity.
type Texture interface {
	// ID returns the unique identity of the texture.
	//
	// Returns:
	//   - string: a UUID assigned at creation
	ID() string

	// Label returns the debug label supplied at creation.
	Label() string

	// Desc returns the description the texture was created from.
	Desc() TextureDesc

	Width() int
	Height() int
	MipCount() int
	Format() wgpu.TextureFormat

	// IsCube reports whether the texture is a six-face cube map.
	IsCube() bool

	// IsDepth reports whether the texture has a depth or depth-stencil format.
	IsDepth() bool
}

// Buffer is a device buffer. Every buffer keeps a CPU copy of the bytes most recently
// uploaded to it by an executed command list.
type Buffer interface {
	ID() string
	Label() string
	Kind() BufferKind

	// Size returns the capacity in bytes.
	Size() int

	// Stride returns the vertex stride, zero for non-vertex buffers.
	Stride() int

	// Contents returns a copy of the last bytes uploaded to the buffer.
	//
	// Returns:
	//   - []byte: the CPU copy, sized to the buffer capacity
	Contents() []byte
}

// Program is a compiled render or compute program.
type Program interface {
	ID() string
	Label() string
	Desc() ProgramDesc
	IsCompute() bool
}

// texture is the shared Texture implementation. GPU handles are nil on the headless device.
type texture struct {
	id   string
	desc TextureDesc

	handle *wgpu.Texture
	view   *wgpu.TextureView

	// surface marks the swap chain color texture whose handle is re-acquired every frame.
	surface bool
}

var _ Texture = &texture{}

func newTexture(desc TextureDesc) *texture {
	if desc.MipCount < 1 {
		desc.MipCount = 1
	}
	return &texture{
		id:   uuid.New().String(),
		desc: desc,
	}
}

func (t *texture) ID() string                 { return t.id }
func (t *texture) Label() string              { return t.desc.Label }
func (t *texture) Desc() TextureDesc          { return t.desc }
func (t *texture) Width() int                 { return t.desc.Width }
func (t *texture) Height() int                { return t.desc.Height }
func (t *texture) MipCount() int              { return t.desc.Mips() }
func (t *texture) Format() wgpu.TextureFormat { return t.desc.Format }
func (t *texture) IsCube() bool               { return t.desc.Cube }
func (t *texture) IsDepth() bool              { return IsDepthFormat(t.desc.Format) }

func (t *texture) release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.handle != nil && !t.surface {
		t.handle.Release()
	}
	t.handle = nil
}

// buffer is the shared Buffer implementation.
type buffer struct {
	mu   *sync.Mutex
	id   string
	desc BufferDesc

	contents []byte

	// handle is nil for constant buffers, whose bytes are staged through the device's
	// uniform ring at execution time, and for every buffer on the headless device.
	handle *wgpu.Buffer
}

var _ Buffer = &buffer{}

func newBuffer(desc BufferDesc, data []byte) *buffer {
	b := &buffer{
		mu:       &sync.Mutex{},
		id:       uuid.New().String(),
		desc:     desc,
		contents: make([]byte, desc.Size),
	}
	copy(b.contents, data)
	return b
}

func (b *buffer) ID() string       { return b.id }
func (b *buffer) Label() string    { return b.desc.Label }
func (b *buffer) Kind() BufferKind { return b.desc.Kind }
func (b *buffer) Size() int        { return b.desc.Size }
func (b *buffer) Stride() int      { return b.desc.Stride }

func (b *buffer) Contents() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.contents...)
}

// store replaces the CPU copy with data. Bytes past len(data) are left as they were, which
// matches write-discard semantics for callers that always upload the full layout.
func (b *buffer) store(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.contents, data)
}

// program is the shared Program implementation.
type program struct {
	id   string
	desc ProgramDesc

	module           *wgpu.ShaderModule
	bindGroupLayouts []*wgpu.BindGroupLayout
	pipelineLayout   *wgpu.PipelineLayout
	compute          *wgpu.ComputePipeline
}

var _ Program = &program{}

func newProgram(desc ProgramDesc) *program {
	return &program{
		id:   uuid.New().String(),
		desc: desc,
	}
}

func (p *program) ID() string        { return p.id }
func (p *program) Label() string     { return p.desc.Label }
func (p *program) Desc() ProgramDesc { return p.desc }
func (p *program) IsCompute() bool   { return p.desc.IsCompute() }
