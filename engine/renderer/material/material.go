package material

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
)

var (
	// ErrUniformNotFound is returned for a uniform name no material buffer declares.
	ErrUniformNotFound = errors.New("material: uniform not found")

	// ErrUniformTypeMismatch is returned when a value's type or size differs from the
	// declaration.
	ErrUniformTypeMismatch = errors.New("material: uniform type mismatch")

	// ErrResourceNotFound is returned for a texture name no material resource declares.
	ErrResourceNotFound = errors.New("material: resource not found")

	// ErrTextureKindMismatch is returned when a cube texture is set on a 2D slot or the
	// other way around.
	ErrTextureKindMismatch = errors.New("material: texture kind mismatch")
)

// Flags are the render flags of a material.
type Flags uint32

const (
	FlagTwoSided         Flags = 1
	FlagDisableDepthTest Flags = 2
	FlagWireframe        Flags = 4
	FlagTransparent      Flags = 8
)

// Has reports whether every bit of flag is set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// material is the implementation of the Material interface.
type material struct {
	name       string
	shader     shader.Shader
	reflection *shader.Reflection

	// buffers holds the raw bytes of each stage's material constant buffer.
	buffers map[gpu.Stage][]byte

	// textures is indexed by t-register; defaults fill slots nothing was set on.
	textures  []gpu.Texture
	slotKinds []shader.ResourceKind
	black2D   gpu.Texture
	blackCube gpu.Texture

	flags       Flags
	states      gpu.StateSnapshot
	stateBuilds int
}

// Material is an instance of a Shader: the bytes of its material constant buffers, the
// textures bound to its material resources and the render state derived from its flags.
//
// Uniform and texture names are resolved against the shader's reflection at the time the
// material was created. A material is shared by pointer and is not safe for concurrent
// mutation.
type Material interface {
	// Name returns the material name.
	Name() string

	// Shader returns the shader the material instantiates.
	Shader() shader.Shader

	// SetUniform writes a value into the material buffer that declares name. An undeclared
	// name or a type mismatch is a contract violation and panics.
	//
	// Parameters:
	//   - name: the declared uniform name
	//   - value: the value to write
	SetUniform(name string, value Uniform)

	// TrySetUniform is SetUniform returning ErrUniformNotFound or ErrUniformTypeMismatch
	// instead of panicking.
	TrySetUniform(name string, value Uniform) error

	// GetUniform reads a uniform back as its declared type. An undeclared name panics.
	//
	// Parameters:
	//   - name: the declared uniform name
	//
	// Returns:
	//   - Uniform: the current value
	GetUniform(name string) Uniform

	// SetTexture binds a texture to a declared material resource. An undeclared name panics.
	//
	// Parameters:
	//   - name: the declared resource name
	//   - texture: the texture to bind
	SetTexture(name string, texture gpu.Texture)

	// TrySetTexture is SetTexture returning ErrResourceNotFound or ErrTextureKindMismatch
	// instead of panicking.
	TrySetTexture(name string, texture gpu.Texture) error

	// Texture returns the texture bound to a declared resource, or the default for its kind
	// when none was set.
	Texture(name string) gpu.Texture

	// Textures returns the texture slots indexed by register, ready to bind from register 0.
	//
	// Returns:
	//   - []gpu.Texture: max material register + 1 slots
	Textures() []gpu.Texture

	// Buffer returns the raw bytes of a stage's material constant buffer.
	//
	// Returns:
	//   - []byte: the buffer bytes, or nil when the stage declares no material buffer
	Buffer(stage gpu.Stage) []byte

	// BufferLayout returns the reflected layout of a stage's material constant buffer.
	BufferLayout(stage gpu.Stage) *shader.ConstantBufferLayout

	// Flags returns the current render flags.
	Flags() Flags

	// SetFlags replaces the render flags. The state snapshot is rebuilt only when the flags
	// change.
	SetFlags(flags Flags)

	// States returns the rasterizer, blend and depth-stencil state for the current flags.
	States() gpu.StateSnapshot

	// IsTransparent reports whether FlagTransparent is set.
	IsTransparent() bool
}

var _ Material = &material{}

// NewMaterial creates a material for a shader with zeroed buffers.
//
// Parameters:
//   - s: the shader to instantiate
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(s shader.Shader, options ...MaterialBuilderOption) Material {
	m := &material{
		name:       s.Name(),
		shader:     s,
		reflection: s.Reflection(),
		buffers:    make(map[gpu.Stage][]byte),
	}
	for _, stage := range []gpu.Stage{gpu.StageVertex, gpu.StagePixel} {
		if layout := m.reflection.MaterialBuffer(stage); layout != nil {
			m.buffers[stage] = make([]byte, layout.Size)
		}
	}

	slots := 0
	for _, r := range m.reflection.MaterialResources() {
		if r.Kind != shader.ResourceKindSampler {
			slots = max(slots, r.Register+1)
		}
	}
	m.textures = make([]gpu.Texture, slots)
	m.slotKinds = make([]shader.ResourceKind, slots)
	for _, r := range m.reflection.MaterialResources() {
		if r.Kind != shader.ResourceKindSampler {
			m.slotKinds[r.Register] = r.Kind
		}
	}

	for _, opt := range options {
		opt(m)
	}
	m.states = buildStates(m.flags)
	m.stateBuilds = 1
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Shader() shader.Shader {
	return m.shader
}

func (m *material) SetUniform(name string, value Uniform) {
	if err := m.TrySetUniform(name, value); err != nil {
		m.violation(err)
	}
}

func (m *material) TrySetUniform(name string, value Uniform) error {
	layout, u, ok := m.findUniform(name)
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrUniformNotFound, name, m.name)
	}
	if value.Type() != u.Type || len(value.Bytes()) != u.Size {
		return fmt.Errorf("%w: %q is %s (%d bytes), got %s", ErrUniformTypeMismatch, name, u.Type, u.Size, value)
	}
	copy(m.buffers[layout.Stage][u.Offset:], value.Bytes())
	return nil
}

func (m *material) GetUniform(name string) Uniform {
	layout, u, ok := m.findUniform(name)
	if !ok {
		m.violation(fmt.Errorf("%w: %q in %s", ErrUniformNotFound, name, m.name))
	}
	data := m.buffers[layout.Stage][u.Offset : u.Offset+u.Size]
	return Uniform{typ: u.Type, data: append([]byte(nil), data...)}
}

func (m *material) SetTexture(name string, texture gpu.Texture) {
	if err := m.TrySetTexture(name, texture); err != nil {
		m.violation(err)
	}
}

func (m *material) TrySetTexture(name string, texture gpu.Texture) error {
	r, ok := m.findResource(name)
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrResourceNotFound, name, m.name)
	}
	if texture != nil && texture.IsCube() != (r.Kind == shader.ResourceKindTextureCube) {
		return fmt.Errorf("%w: %q is a %s, got texture %q", ErrTextureKindMismatch, name, r.Kind, texture.Label())
	}
	m.textures[r.Register] = texture
	return nil
}

func (m *material) Texture(name string) gpu.Texture {
	r, ok := m.findResource(name)
	if !ok {
		m.violation(fmt.Errorf("%w: %q in %s", ErrResourceNotFound, name, m.name))
	}
	return m.slot(r.Register)
}

func (m *material) Textures() []gpu.Texture {
	out := make([]gpu.Texture, len(m.textures))
	for i := range out {
		out[i] = m.slot(i)
	}
	return out
}

// slot returns the texture at a register, falling back to the black texture of the slot's
// kind.
func (m *material) slot(register int) gpu.Texture {
	if t := m.textures[register]; t != nil {
		return t
	}
	if m.slotKinds[register] == shader.ResourceKindTextureCube {
		return m.blackCube
	}
	return m.black2D
}

func (m *material) Buffer(stage gpu.Stage) []byte {
	return m.buffers[stage]
}

func (m *material) BufferLayout(stage gpu.Stage) *shader.ConstantBufferLayout {
	return m.reflection.MaterialBuffer(stage)
}

func (m *material) Flags() Flags {
	return m.flags
}

func (m *material) SetFlags(flags Flags) {
	if flags == m.flags {
		return
	}
	m.flags = flags
	m.states = buildStates(flags)
	m.stateBuilds++
}

func (m *material) States() gpu.StateSnapshot {
	return m.states
}

func (m *material) IsTransparent() bool {
	return m.flags.Has(FlagTransparent)
}

func (m *material) findUniform(name string) (*shader.ConstantBufferLayout, shader.UniformLayout, bool) {
	for _, stage := range []gpu.Stage{gpu.StageVertex, gpu.StagePixel} {
		layout := m.reflection.MaterialBuffer(stage)
		if layout == nil {
			continue
		}
		if u, ok := layout.FindUniform(name); ok {
			return layout, u, true
		}
	}
	return nil, shader.UniformLayout{}, false
}

func (m *material) findResource(name string) (shader.ResourceDeclaration, bool) {
	r, ok := m.reflection.FindResource(name)
	if !ok || r.Class != shader.ClassMaterial || r.Kind == shader.ResourceKindSampler {
		return shader.ResourceDeclaration{}, false
	}
	return r, true
}

func (m *material) violation(err error) {
	logger.Error("material contract violation", "material", m.name, "shader", m.shader.Name(), "err", err)
	panic(err)
}
