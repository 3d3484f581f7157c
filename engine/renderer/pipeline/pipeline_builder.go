package pipeline

import (
	"github.com/Carmen-Shannon/lumen/engine/renderer/render_target"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithShader sets the shader for this pipeline.
//
// Parameters:
//   - s: the shader to draw with
//
// Returns:
//   - PipelineBuilderOption: a function that sets the shader for this pipeline
func WithShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.shader = s
	}
}

// WithInputLayout sets the vertex buffer layout. It must match the shader's vertex inputs.
//
// Parameters:
//   - elements: the vertex elements in location order
//
// Returns:
//   - PipelineBuilderOption: a function that sets the input layout for this pipeline
func WithInputLayout(elements ...InputElement) PipelineBuilderOption {
	return func(p *pipeline) {
		p.inputLayout = InputLayout(elements)
	}
}

// WithTopology sets the primitive topology. Pipelines default to triangle lists.
//
// Parameters:
//   - topology: the primitive topology
//
// Returns:
//   - PipelineBuilderOption: a function that sets the topology for this pipeline
func WithTopology(topology wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.topology = topology
	}
}

// WithTarget sets the render target the pipeline draws into. Pipelines without a target
// draw to the swap chain.
//
// Parameters:
//   - target: the render target
//
// Returns:
//   - PipelineBuilderOption: a function that sets the target for this pipeline
func WithTarget(target render_target.RenderTarget) PipelineBuilderOption {
	return func(p *pipeline) {
		p.target = target
	}
}
