package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/render_target"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrInputLayoutMismatch is returned when an input layout does not match the vertex inputs
// of the pipeline's shader.
var ErrInputLayoutMismatch = errors.New("pipeline: input layout does not match shader vertex inputs")

// vertexFormatSizes holds the byte size of each vertex element format an InputLayout may use.
var vertexFormatSizes = map[wgpu.VertexFormat]uint64{
	wgpu.VertexFormatFloat32:   4,
	wgpu.VertexFormatFloat32x2: 8,
	wgpu.VertexFormatFloat32x3: 12,
	wgpu.VertexFormatFloat32x4: 16,
	wgpu.VertexFormatSint32:    4,
	wgpu.VertexFormatSint32x4:  16,
	wgpu.VertexFormatUint32:    4,
	wgpu.VertexFormatUint32x4:  16,
}

// InputElement is one attribute of an interleaved vertex buffer. Elements are bound to
// consecutive shader locations in order.
type InputElement struct {
	Name   string
	Format wgpu.VertexFormat
}

// InputLayout describes an interleaved vertex buffer.
type InputLayout []InputElement

// Stride returns the size of one vertex in bytes.
func (l InputLayout) Stride() uint64 {
	var stride uint64
	for _, e := range l {
		stride += vertexFormatSizes[e.Format]
	}
	return stride
}

// VertexBufferLayout converts the layout into the wgpu description bound with a draw.
//
// Returns:
//   - *wgpu.VertexBufferLayout: the packed layout, or nil for an empty layout
func (l InputLayout) VertexBufferLayout() *wgpu.VertexBufferLayout {
	if len(l) == 0 {
		return nil
	}
	out := &wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
	for i, e := range l {
		out.Attributes = append(out.Attributes, wgpu.VertexAttribute{
			Format:         e.Format,
			Offset:         out.ArrayStride,
			ShaderLocation: uint32(i),
		})
		out.ArrayStride += vertexFormatSizes[e.Format]
	}
	return out
}

// Validate checks the layout against the vertex inputs reflected from a shader: the element
// counts must match and each location's format must equal the element format.
//
// Parameters:
//   - inputs: the reflected vertex inputs, nil for shaders without a vertex buffer
//
// Returns:
//   - error: ErrInputLayoutMismatch describing the first difference
func (l InputLayout) Validate(inputs *wgpu.VertexBufferLayout) error {
	var attrs []wgpu.VertexAttribute
	if inputs != nil {
		attrs = inputs.Attributes
	}
	if len(attrs) != len(l) {
		return fmt.Errorf("%w: %d elements, shader reads %d", ErrInputLayoutMismatch, len(l), len(attrs))
	}
	for _, a := range attrs {
		i := int(a.ShaderLocation)
		if i >= len(l) {
			return fmt.Errorf("%w: shader location %d has no element", ErrInputLayoutMismatch, i)
		}
		if _, ok := vertexFormatSizes[l[i].Format]; !ok {
			return fmt.Errorf("%w: element %s has unsupported format %v", ErrInputLayoutMismatch, l[i].Name, l[i].Format)
		}
		if l[i].Format != a.Format {
			return fmt.Errorf("%w: element %s is %v, location %d is %v", ErrInputLayoutMismatch, l[i].Name, l[i].Format, i, a.Format)
		}
	}
	return nil
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	shader      shader.Shader
	inputLayout InputLayout
	topology    wgpu.PrimitiveTopology

	// target is nil when the pipeline draws to the swap chain.
	target render_target.RenderTarget

	states gpu.StateSnapshot
}

// Pipeline bundles a shader with its input layout, topology, target and a default state
// triple.
//
// The scene renderer never mutates a shared pipeline per draw; it passes each material's
// state snapshot to GraphicsState instead. The Set*State methods replace the default triple
// used by draws that have no material.
type Pipeline interface {
	// Shader returns the shader the pipeline draws with.
	Shader() shader.Shader

	// InputLayout returns the vertex buffer layout the pipeline reads.
	InputLayout() InputLayout

	// Topology returns the primitive topology.
	Topology() wgpu.PrimitiveTopology

	// Target returns the render target the pipeline draws into, or nil for the swap chain.
	Target() render_target.RenderTarget

	// States returns the default state triple.
	States() gpu.StateSnapshot

	// SetRasterizerState replaces the default rasterizer description.
	SetRasterizerState(desc gpu.RasterizerDesc)

	// SetBlendState replaces the default blend description.
	SetBlendState(desc gpu.BlendDesc)

	// SetDepthStencilState replaces the default depth-stencil description.
	SetDepthStencilState(desc gpu.DepthStencilDesc)

	// GraphicsState combines the pipeline with a per-draw state snapshot, ready for
	// CommandRecorder.SetGraphicsPipelineState.
	//
	// Parameters:
	//   - states: the state triple of the draw
	//
	// Returns:
	//   - gpu.GraphicsState: the program, states, topology and input layout
	GraphicsState(states gpu.StateSnapshot) gpu.GraphicsState
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a pipeline. A missing shader or an input layout that does not match
// the shader's vertex inputs is fatal.
//
// Parameters:
//   - options: variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the new pipeline
func NewPipeline(options ...PipelineBuilderOption) Pipeline {
	p, err := newPipeline(options...)
	if err != nil {
		logger.Error("pipeline creation failed", "err", err)
		panic(fmt.Sprintf("pipeline: %v", err))
	}
	return p
}

func newPipeline(options ...PipelineBuilderOption) (*pipeline, error) {
	p := &pipeline{
		topology: wgpu.PrimitiveTopologyTriangleList,
		states:   gpu.DefaultStateSnapshot(),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.shader == nil {
		return nil, errors.New("pipeline has no shader")
	}
	if err := p.inputLayout.Validate(p.shader.VertexLayout()); err != nil {
		return nil, fmt.Errorf("shader %s: %w", p.shader.Name(), err)
	}
	return p, nil
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) InputLayout() InputLayout {
	return p.inputLayout
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) Target() render_target.RenderTarget {
	return p.target
}

func (p *pipeline) States() gpu.StateSnapshot {
	return p.states
}

func (p *pipeline) SetRasterizerState(desc gpu.RasterizerDesc) {
	p.states.Rasterizer = desc
}

func (p *pipeline) SetBlendState(desc gpu.BlendDesc) {
	p.states.Blend = desc
}

func (p *pipeline) SetDepthStencilState(desc gpu.DepthStencilDesc) {
	p.states.DepthStencil = desc
}

func (p *pipeline) GraphicsState(states gpu.StateSnapshot) gpu.GraphicsState {
	return gpu.GraphicsState{
		Program:     p.shader.Program(),
		State:       states,
		Topology:    p.topology,
		InputLayout: p.inputLayout.VertexBufferLayout(),
	}
}
