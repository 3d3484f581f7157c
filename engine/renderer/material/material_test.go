package material

import (
	"testing"

	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const surfaceSource = `
cbuffer VSMaterial : register(b1) {
    float4x4 u_Offset;
};

cbuffer PSMaterialBuffer : register(b0) {
    float4 AlbedoColor;
    float Metalness;
    bool UseAlbedoMap;
};

Texture2D u_AlbedoTexture : register(t0);
TextureCube u_ReflectionTexture : register(t2);
SamplerState u_AlbedoSampler : register(s0);
TextureCube sys_EnvRadianceTex : register(t4);

struct VSInput {
    @location(0) a_Position: vec3<f32>,
};

struct VSOutput {
    @builtin(position) position: vec4<f32>,
};

@vertex
fn VSMain(in: VSInput) -> VSOutput {
    var out: VSOutput;
    out.position = VSMaterial.u_Offset * vec4<f32>(in.a_Position, 1.0);
    return out;
}

@fragment
fn PSMain(in: VSOutput) -> @location(0) vec4<f32> {
    return PSMaterialBuffer.AlbedoColor * PSMaterialBuffer.Metalness;
}
`

type fixture struct {
	device    gpu.HeadlessDevice
	shader    shader.Shader
	black2D   gpu.Texture
	blackCube gpu.Texture
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	d := gpu.NewHeadlessDevice(64, 64)
	black2D, err := d.CreateTexture(gpu.TextureDesc{Label: "black", Width: 1, Height: 1, Format: wgpu.TextureFormatRGBA8Unorm}, nil)
	require.NoError(t, err)
	blackCube, err := d.CreateTexture(gpu.TextureDesc{Label: "black cube", Width: 1, Height: 1, Cube: true, Format: wgpu.TextureFormatRGBA8Unorm}, nil)
	require.NoError(t, err)
	return fixture{
		device:    d,
		shader:    shader.NewShader(d, "surface", surfaceSource),
		black2D:   black2D,
		blackCube: blackCube,
	}
}

func (f fixture) material(options ...MaterialBuilderOption) Material {
	return NewMaterial(f.shader, append([]MaterialBuilderOption{WithDefaultTextures(f.black2D, f.blackCube)}, options...)...)
}

func TestUniformRoundTrip(t *testing.T) {
	m := newFixture(t).material()

	m.SetUniform("Metalness", Float(0.5))
	assert.Equal(t, float32(0.5), m.GetUniform("Metalness").AsFloat())

	color := mgl32.Vec4{0.1, 0.2, 0.3, 1}
	m.SetUniform("AlbedoColor", Vec4(color))
	assert.Equal(t, color, m.GetUniform("AlbedoColor").AsVec4())

	m.SetUniform("UseAlbedoMap", Bool(true))
	assert.True(t, m.GetUniform("UseAlbedoMap").AsBool())

	offset := mgl32.Translate3D(1, 2, 3)
	m.SetUniform("u_Offset", Mat4(offset))
	assert.Equal(t, offset, m.GetUniform("u_Offset").AsMat4())
}

func TestUniformWritesAtReflectedOffset(t *testing.T) {
	m := newFixture(t).material()
	m.SetUniform("Metalness", Float(1))

	ps := m.Buffer(gpu.StagePixel)
	require.Len(t, ps, 32)
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, ps[16:20])
	assert.Equal(t, make([]byte, 16), ps[:16])

	assert.Len(t, m.Buffer(gpu.StageVertex), 64)
	assert.Equal(t, "PSMaterialBuffer", m.BufferLayout(gpu.StagePixel).Name)
	assert.Nil(t, m.Buffer(gpu.StageCompute))
}

func TestSetUniformViolations(t *testing.T) {
	m := newFixture(t).material()

	assert.ErrorIs(t, m.TrySetUniform("Missing", Float(1)), ErrUniformNotFound)
	assert.ErrorIs(t, m.TrySetUniform("Metalness", Vec2(mgl32.Vec2{1, 2})), ErrUniformTypeMismatch)
	assert.ErrorIs(t, m.TrySetUniform("UseAlbedoMap", UInt(1)), ErrUniformTypeMismatch)

	assert.Panics(t, func() { m.SetUniform("Missing", Float(1)) })
	assert.Panics(t, func() { m.SetUniform("Metalness", Int(1)) })
	assert.Panics(t, func() { m.GetUniform("Missing") })
}

func TestTextureSlots(t *testing.T) {
	f := newFixture(t)
	m := f.material()

	slots := m.Textures()
	require.Len(t, slots, 3)
	assert.Equal(t, f.black2D.ID(), slots[0].ID())
	assert.Equal(t, f.black2D.ID(), slots[1].ID())
	assert.Equal(t, f.blackCube.ID(), slots[2].ID())

	albedo, err := f.device.CreateTexture(gpu.TextureDesc{Label: "albedo", Width: 4, Height: 4}, nil)
	require.NoError(t, err)
	m.SetTexture("u_AlbedoTexture", albedo)
	assert.Equal(t, albedo.ID(), m.Textures()[0].ID())
	assert.Equal(t, albedo.ID(), m.Texture("u_AlbedoTexture").ID())

	m.SetTexture("u_AlbedoTexture", nil)
	assert.Equal(t, f.black2D.ID(), m.Texture("u_AlbedoTexture").ID())
}

func TestSetTextureViolations(t *testing.T) {
	f := newFixture(t)
	m := f.material()

	assert.ErrorIs(t, m.TrySetTexture("u_Missing", f.black2D), ErrResourceNotFound)
	assert.ErrorIs(t, m.TrySetTexture("sys_EnvRadianceTex", f.blackCube), ErrResourceNotFound)
	assert.ErrorIs(t, m.TrySetTexture("u_AlbedoSampler", f.black2D), ErrResourceNotFound)
	assert.ErrorIs(t, m.TrySetTexture("u_ReflectionTexture", f.black2D), ErrTextureKindMismatch)
	assert.ErrorIs(t, m.TrySetTexture("u_AlbedoTexture", f.blackCube), ErrTextureKindMismatch)
	assert.Panics(t, func() { m.SetTexture("u_Missing", f.black2D) })
}

func TestFlagsDeriveStates(t *testing.T) {
	m := newFixture(t).material()

	s := m.States()
	assert.Equal(t, wgpu.CullModeBack, s.Rasterizer.CullMode)
	assert.Equal(t, wgpu.FrontFaceCCW, s.Rasterizer.FrontFace)
	assert.False(t, s.Blend.Enabled)
	assert.True(t, s.DepthStencil.DepthEnabled)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, s.DepthStencil.DepthCompare)
	assert.Equal(t, wgpu.StencilOperationIncrementClamp, s.DepthStencil.StencilFront.PassOp)
	assert.Equal(t, s.DepthStencil.StencilFront, s.DepthStencil.StencilBack)
	assert.Equal(t, uint32(0xFF), s.DepthStencil.StencilReadMask)

	m.SetFlags(FlagTwoSided | FlagTransparent | FlagDisableDepthTest | FlagWireframe)
	s = m.States()
	assert.Equal(t, wgpu.CullModeNone, s.Rasterizer.CullMode)
	assert.True(t, s.Rasterizer.Wireframe)
	assert.True(t, s.Blend.Enabled)
	assert.Equal(t, wgpu.BlendFactorSrcAlpha, s.Blend.Color.SrcFactor)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, s.Blend.Alpha.DstFactor)
	assert.False(t, s.DepthStencil.DepthWrite)
	assert.Equal(t, wgpu.CompareFunctionAlways, s.DepthStencil.DepthCompare)
	assert.True(t, m.IsTransparent())
}

func TestSetFlagsCachesOnWrite(t *testing.T) {
	m := newFixture(t).material(WithFlags(FlagTransparent)).(*material)
	assert.Equal(t, 1, m.stateBuilds)
	assert.True(t, m.States().Blend.Enabled)

	m.SetFlags(FlagTransparent)
	assert.Equal(t, 1, m.stateBuilds)

	m.SetFlags(FlagTwoSided)
	assert.Equal(t, 2, m.stateBuilds)
	assert.False(t, m.IsTransparent())
}

func TestMaterialName(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "surface", f.material().Name())
	assert.Equal(t, "gold", f.material(WithName("gold")).Name())
}

func TestUniformAccessorsCheckType(t *testing.T) {
	assert.Panics(t, func() { Float(1).AsVec3() })
	assert.Equal(t, int32(-3), Int(-3).AsInt())
	assert.Equal(t, uint32(7), UInt(7).AsUInt())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, Vec3(mgl32.Vec3{1, 2, 3}).AsVec3())
	assert.Len(t, LightArray(make([]byte, 800)).Bytes(), 800)
}
