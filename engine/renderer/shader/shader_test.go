package shader

import (
	"testing"

	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renderSource = `
cbuffer VSSystem : register(b0) {
    float4x4 u_Model;
};

cbuffer PSMaterial : register(b0) {
    float4 u_Color;
};

struct VSInput {
    @location(0) a_Position: vec3<f32>,
    @location(1) a_TexCoord: vec2<f32>,
};

struct VSOutput {
    @builtin(position) position: vec4<f32>,
};

@vertex
fn VSMain(in: VSInput) -> VSOutput {
    var out: VSOutput;
    out.position = VSSystem.u_Model * vec4<f32>(in.a_Position, 1.0);
    return out;
}

@fragment
fn PSMain(in: VSOutput) -> @location(0) vec4<f32> {
    return PSMaterial.u_Color;
}
`

const computeSource = `
cbuffer Uniforms : register(b0) { float u_Roughness; };
RWTexture2DArray<float4> o_Output : register(u0);

@compute @workgroup_size(32, 32, 1)
fn CSMain(@builtin(global_invocation_id) id: vec3<u32>) {
    textureStore(o_Output, vec2<i32>(id.xy), i32(id.z), vec4<f32>(Uniforms.u_Roughness));
}
`

func TestNewShader(t *testing.T) {
	d := gpu.NewHeadlessDevice(64, 64)
	s := NewShader(d, "flat", renderSource)

	assert.Equal(t, "flat", s.Name())
	assert.Equal(t, renderSource, s.Source())
	assert.False(t, s.Program().IsCompute())
	assert.Equal(t, VertexEntryPoint, s.Program().Desc().VertexEntry)

	require.NotNil(t, s.VertexLayout())
	assert.Equal(t, uint64(20), s.VertexLayout().ArrayStride)

	vs := s.ConstantBuffer(gpu.StageVertex, 0)
	require.NotNil(t, vs)
	assert.Equal(t, 64, vs.Size())
	assert.Equal(t, "flat.VSSystem", vs.Label())
	assert.Equal(t, gpu.BufferKindConstant, vs.Kind())

	ps := s.ConstantBuffer(gpu.StagePixel, 0)
	require.NotNil(t, ps)
	assert.Equal(t, 16, ps.Size())
	assert.Nil(t, s.ConstantBuffer(gpu.StagePixel, 3))

	layouts := s.Program().Desc().BindGroupLayouts
	assert.Contains(t, layouts, GroupVertexConstants)
	assert.Contains(t, layouts, GroupPixelConstants)
}

func TestNewComputeShader(t *testing.T) {
	d := gpu.NewHeadlessDevice(64, 64)
	s := NewComputeShader(d, "fill", computeSource)

	assert.True(t, s.Program().IsCompute())
	assert.Equal(t, [3]uint32{32, 32, 1}, s.WorkgroupSize())
	require.NotNil(t, s.ConstantBuffer(0))
	assert.Equal(t, 16, s.ConstantBuffer(0).Size())
	assert.Contains(t, s.WGSL(), "texture_storage_2d_array<rgba16float, write>")
}

func TestNewShaderPanicsOnMissingEntryPoint(t *testing.T) {
	d := gpu.NewHeadlessDevice(64, 64)
	assert.Panics(t, func() {
		NewShader(d, "broken", "@vertex fn VSMain() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }")
	})
	assert.Panics(t, func() { NewComputeShader(d, "broken", renderSource) })

	_, err := newShader(d, "broken", "@compute @workgroup_size(1) fn Main() {}", true)
	assert.ErrorIs(t, err, ErrMissingEntryPoint)
}

func TestReloadKeepsPreviousProgramOnFailure(t *testing.T) {
	d := gpu.NewHeadlessDevice(64, 64)
	s := NewShader(d, "flat", renderSource)
	prog := s.Program()

	err := s.Reload("cbuffer PSMaterial : register(b0) { half u_Color; };")
	assert.ErrorIs(t, err, ErrUnknownUniformType)
	assert.Equal(t, prog.ID(), s.Program().ID())
	assert.Equal(t, renderSource, s.Source())
}

func TestReloadReflectsNewSource(t *testing.T) {
	d := gpu.NewHeadlessDevice(64, 64)
	s := NewShader(d, "flat", renderSource)
	prog := s.Program()

	changed := replaceOnce(renderSource, "float4 u_Color;", "float4 u_Color;\n    float u_Alpha;")
	require.NoError(t, s.Reload(changed))

	assert.NotEqual(t, prog.ID(), s.Program().ID())
	assert.Equal(t, 32, s.Reflection().MaterialBuffer(gpu.StagePixel).Size)
	assert.Equal(t, 32, s.ConstantBuffer(gpu.StagePixel, 0).Size())
}
