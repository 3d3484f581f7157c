package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/render_target"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var meshLayout = []InputElement{
	{"POSITION", wgpu.VertexFormatFloat32x3},
	{"TEX_COORD", wgpu.VertexFormatFloat32x2},
	{"NORMAL", wgpu.VertexFormatFloat32x3},
	{"TANGENT", wgpu.VertexFormatFloat32x3},
	{"BITANGENT", wgpu.VertexFormatFloat32x3},
}

func loadLibrary(t *testing.T, d gpu.Device) shader.Library {
	t.Helper()
	lib := shader.NewLibrary(d)
	require.NoError(t, lib.LoadBuiltins())
	return lib
}

func TestNewPipelineValidatesInputLayout(t *testing.T) {
	d := gpu.NewHeadlessDevice(64, 64)
	lib := loadLibrary(t, d)
	target := render_target.NewRenderTarget(d)

	p := NewPipeline(
		WithShader(lib.Get(shader.MeshPBRShader)),
		WithInputLayout(meshLayout...),
		WithTarget(target),
	)
	assert.Equal(t, uint64(56), p.InputLayout().Stride())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, target, p.Target())

	assert.Panics(t, func() {
		NewPipeline(WithShader(lib.Get(shader.MeshPBRShader)), WithInputLayout(meshLayout[:4]...))
	})

	swapped := append([]InputElement(nil), meshLayout...)
	swapped[1], swapped[2] = swapped[2], swapped[1]
	_, err := newPipeline(WithShader(lib.Get(shader.MeshPBRShader)), WithInputLayout(swapped...))
	assert.ErrorIs(t, err, ErrInputLayoutMismatch)

	_, err = newPipeline()
	assert.Error(t, err)
}

func TestGraphicsStateCarriesSnapshot(t *testing.T) {
	d := gpu.NewHeadlessDevice(64, 64)
	lib := loadLibrary(t, d)
	quad := lib.Get(shader.FullscreenQuadShader)
	p := NewPipeline(
		WithShader(quad),
		WithInputLayout(InputElement{"POSITION", wgpu.VertexFormatFloat32x3}, InputElement{"TEX_COORD", wgpu.VertexFormatFloat32x2}),
	)
	assert.Nil(t, p.Target())

	snapshot := gpu.DefaultStateSnapshot()
	snapshot.Rasterizer.CullMode = wgpu.CullModeNone
	gs := p.GraphicsState(snapshot)

	assert.Equal(t, quad.Program().ID(), gs.Program.ID())
	assert.Equal(t, wgpu.CullModeNone, gs.State.Rasterizer.CullMode)
	require.NotNil(t, gs.InputLayout)
	assert.Equal(t, uint64(20), gs.InputLayout.ArrayStride)
	assert.Equal(t, uint64(12), gs.InputLayout.Attributes[1].Offset)
	assert.Equal(t, wgpu.CullModeBack, p.States().Rasterizer.CullMode)
}

func TestSetStatesReplaceDefaults(t *testing.T) {
	d := gpu.NewHeadlessDevice(64, 64)
	p := NewPipeline(
		WithShader(loadLibrary(t, d).Get(shader.FullscreenQuadShader)),
		WithInputLayout(InputElement{"POSITION", wgpu.VertexFormatFloat32x3}, InputElement{"TEX_COORD", wgpu.VertexFormatFloat32x2}),
		WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
	)
	p.SetRasterizerState(gpu.RasterizerDesc{CullMode: wgpu.CullModeFront})
	p.SetBlendState(gpu.BlendDesc{Enabled: true})
	p.SetDepthStencilState(gpu.DepthStencilDesc{DepthCompare: wgpu.CompareFunctionAlways})

	s := p.States()
	assert.Equal(t, wgpu.CullModeFront, s.Rasterizer.CullMode)
	assert.True(t, s.Blend.Enabled)
	assert.Equal(t, wgpu.CompareFunctionAlways, s.DepthStencil.DepthCompare)
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleStrip, p.Topology())
}

func TestInputLayoutWithoutVertexInputs(t *testing.T) {
	var empty InputLayout
	assert.NoError(t, empty.Validate(nil))
	assert.Nil(t, empty.VertexBufferLayout())
	assert.ErrorIs(t, InputLayout(meshLayout).Validate(nil), ErrInputLayoutMismatch)
}
