package shader

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Entry point names every shader must define.
const (
	VertexEntryPoint  = "VSMain"
	PixelEntryPoint   = "PSMain"
	ComputeEntryPoint = "CSMain"
)

// compiled is everything produced from one version of a shader source.
type compiled struct {
	reflection    *Reflection
	wgsl          string
	program       gpu.Program
	vertexLayout  *wgpu.VertexBufferLayout
	workgroupSize [3]uint32

	// constantBuffers holds one device buffer per reflected cbuffer, keyed by stage and
	// register.
	constantBuffers map[gpu.Stage]map[int]gpu.Buffer
}

// shader is the implementation of the Shader and ComputeShader interfaces.
type shader struct {
	mu      *sync.Mutex
	device  gpu.Device
	name    string
	source  string
	compute bool
	current *compiled
}

// Shader is a render program compiled from the declaration dialect, together with its
// reflection and one constant buffer per reflected cbuffer.
type Shader interface {
	// Name returns the shader name, the file stem for shaders loaded from disk.
	Name() string

	// Source returns the source in the declaration dialect.
	Source() string

	// WGSL returns the lowered WGSL the program was compiled from.
	WGSL() string

	// Reflection returns the reflected constant buffers and resources.
	//
	// Returns:
	//   - *Reflection: the reflection of the current source
	Reflection() *Reflection

	// Program returns the compiled device program.
	Program() gpu.Program

	// VertexLayout returns the vertex input layout parsed from the source, or nil when the
	// shader reads no vertex buffer.
	VertexLayout() *wgpu.VertexBufferLayout

	// ConstantBuffer returns the device buffer backing the cbuffer at a stage's register.
	//
	// Parameters:
	//   - stage: gpu.StageVertex or gpu.StagePixel
	//   - register: the b-register number
	//
	// Returns:
	//   - gpu.Buffer: the buffer, or nil when nothing is declared there
	ConstantBuffer(stage gpu.Stage, register int) gpu.Buffer

	// Reload recompiles the shader from new source. Reflection is re-run; on failure the
	// previous program stays in place.
	//
	// Parameters:
	//   - source: the new source
	//
	// Returns:
	//   - error: the compile or reflection error
	Reload(source string) error
}

// ComputeShader is a compute program compiled from the declaration dialect.
type ComputeShader interface {
	Name() string
	Source() string
	WGSL() string
	Reflection() *Reflection
	Program() gpu.Program

	// ConstantBuffer returns the device buffer backing the cbuffer at a register.
	ConstantBuffer(register int) gpu.Buffer

	// WorkgroupSize returns the @workgroup_size of the CSMain entry point.
	WorkgroupSize() [3]uint32

	Reload(source string) error
}

var (
	_ Shader        = &shader{}
	_ ComputeShader = &computeShader{}
)

// computeShader narrows shader to the ComputeShader method set.
type computeShader struct {
	*shader
}

// NewShader compiles a render shader. Compilation failures are fatal.
//
// Parameters:
//   - device: the device to create the program and constant buffers on
//   - name: the shader name
//   - source: the source in the declaration dialect
//
// Returns:
//   - Shader: the compiled shader
func NewShader(device gpu.Device, name, source string) Shader {
	s, err := newShader(device, name, source, false)
	if err != nil {
		logger.Error("shader compilation failed", "shader", name, "err", err)
		panic(fmt.Sprintf("shader: compiling %s: %v", name, err))
	}
	return s
}

// NewComputeShader compiles a compute shader. Compilation failures are fatal.
//
// Parameters:
//   - device: the device to create the program and constant buffers on
//   - name: the shader name
//   - source: the source in the declaration dialect
//
// Returns:
//   - ComputeShader: the compiled shader
func NewComputeShader(device gpu.Device, name, source string) ComputeShader {
	s, err := newShader(device, name, source, true)
	if err != nil {
		logger.Error("compute shader compilation failed", "shader", name, "err", err)
		panic(fmt.Sprintf("shader: compiling %s: %v", name, err))
	}
	return &computeShader{s}
}

func newShader(device gpu.Device, name, source string, compute bool) (*shader, error) {
	c, err := compile(device, name, source, compute)
	if err != nil {
		return nil, err
	}
	return &shader{
		mu:      &sync.Mutex{},
		device:  device,
		name:    name,
		source:  source,
		compute: compute,
		current: c,
	}, nil
}

// compile reflects, lowers and compiles one source.
func compile(device gpu.Device, name, source string, compute bool) (*compiled, error) {
	pp := NewPreProcessor()
	wgsl, err := pp.Process(source, compute)
	if err != nil {
		return nil, err
	}
	refl := pp.Reflection()
	entries := parseEntryPoints(wgsl)

	desc := gpu.ProgramDesc{Label: name, Source: wgsl}
	visibility := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	if compute {
		if entries["compute"] != ComputeEntryPoint {
			return nil, fmt.Errorf("%w: @compute fn %s", ErrMissingEntryPoint, ComputeEntryPoint)
		}
		desc.ComputeEntry = ComputeEntryPoint
		desc.WorkgroupSize = parseWorkgroupSize(wgsl)
		visibility = wgpu.ShaderStageCompute
	} else {
		if entries["vertex"] != VertexEntryPoint || entries["fragment"] != PixelEntryPoint {
			return nil, fmt.Errorf("%w: @vertex fn %s and @fragment fn %s", ErrMissingEntryPoint, VertexEntryPoint, PixelEntryPoint)
		}
		desc.VertexEntry = VertexEntryPoint
		desc.FragmentEntry = PixelEntryPoint
		desc.VertexLayout = parseVertexLayout(wgsl)
	}
	desc.BindGroupLayouts = parseBindGroupLayouts(wgsl, visibility)

	prog, err := device.CreateProgram(desc)
	if err != nil {
		return nil, fmt.Errorf("creating program: %w", err)
	}

	c := &compiled{
		reflection:      refl,
		wgsl:            wgsl,
		program:         prog,
		vertexLayout:    desc.VertexLayout,
		workgroupSize:   desc.WorkgroupSize,
		constantBuffers: make(map[gpu.Stage]map[int]gpu.Buffer),
	}
	for _, b := range refl.Buffers {
		buf, err := device.CreateBuffer(gpu.BufferDesc{
			Label: fmt.Sprintf("%s.%s", name, b.Name),
			Kind:  gpu.BufferKindConstant,
			Size:  b.Size,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("creating constant buffer %s: %w", b.Name, err)
		}
		if c.constantBuffers[b.Stage] == nil {
			c.constantBuffers[b.Stage] = make(map[int]gpu.Buffer)
		}
		c.constantBuffers[b.Stage][b.Register] = buf
	}
	return c, nil
}

func (s *shader) get() *compiled {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *shader) Name() string {
	return s.name
}

func (s *shader) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *shader) WGSL() string {
	return s.get().wgsl
}

func (s *shader) Reflection() *Reflection {
	return s.get().reflection
}

func (s *shader) Program() gpu.Program {
	return s.get().program
}

func (s *shader) VertexLayout() *wgpu.VertexBufferLayout {
	return s.get().vertexLayout
}

func (s *shader) ConstantBuffer(stage gpu.Stage, register int) gpu.Buffer {
	return s.get().constantBuffers[stage][register]
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.get().workgroupSize
}

func (s *shader) Reload(source string) error {
	c, err := compile(s.device, s.name, source, s.compute)
	if err != nil {
		return fmt.Errorf("shader: reloading %s: %w", s.name, err)
	}

	s.mu.Lock()
	prev := s.current
	s.current, s.source = c, source
	s.mu.Unlock()

	for _, stage := range []gpu.Stage{gpu.StageVertex, gpu.StagePixel} {
		before, after := prev.reflection.MaterialBuffer(stage), c.reflection.MaterialBuffer(stage)
		if (before == nil) != (after == nil) || (before != nil && before.Size != after.Size) {
			logger.Warn("material layout changed on reload, existing materials must be recreated", "shader", s.name, "stage", stage)
		}
	}
	logger.Info("shader reloaded", "shader", s.name)
	return nil
}

func (c *computeShader) ConstantBuffer(register int) gpu.Buffer {
	return c.shader.ConstantBuffer(gpu.StageCompute, register)
}
