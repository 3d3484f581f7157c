package shader

import (
	"testing"

	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const materialSource = `
cbuffer VSSystem : register(b0) {
    float4x4 u_ViewProjection;
    float4x4 u_Model;
};

cbuffer PSMaterial : register(b1) {
    float4 u_AlbedoColor;
    float u_Metalness;
    float u_Roughness;
    bool u_UseNormalMap;
};

Texture2D u_AlbedoTexture : register(t0);
Texture2D u_NormalTexture : register(t1);
SamplerState u_AlbedoSampler : register(s0);
TextureCube sys_EnvRadianceTex : register(t4);
`

func TestReflectPacksUniforms(t *testing.T) {
	refl, err := Reflect(materialSource, false)
	require.NoError(t, err)
	require.Len(t, refl.Buffers, 2)

	vs := refl.Buffer(gpu.StageVertex, 0)
	require.NotNil(t, vs)
	assert.Equal(t, ClassSystem, vs.Class)
	assert.Equal(t, 128, vs.Size)

	ps := refl.MaterialBuffer(gpu.StagePixel)
	require.NotNil(t, ps)
	assert.Equal(t, "PSMaterial", ps.Name)
	assert.Equal(t, 1, ps.Register)
	assert.Equal(t, 32, ps.Size)
	assert.True(t, ps.IsFinalized())

	roughness, ok := ps.FindUniform("u_Roughness")
	require.True(t, ok)
	assert.Equal(t, 20, roughness.Offset)
	assert.Equal(t, UniformTypeFloat, roughness.Type)
	assert.Equal(t, gpu.StagePixel, roughness.Stage)

	_, ok = ps.FindUniform("u_Missing")
	assert.False(t, ok)
	assert.Nil(t, refl.MaterialBuffer(gpu.StageVertex))
}

func TestReflectClassifiesResources(t *testing.T) {
	refl, err := Reflect(materialSource, false)
	require.NoError(t, err)

	material := refl.MaterialResources()
	require.Len(t, material, 3)
	assert.Equal(t, "u_AlbedoTexture", material[0].Name)

	system := refl.SystemResources()
	require.Len(t, system, 1)
	assert.Equal(t, ResourceKindTextureCube, system[0].Kind)
	assert.Equal(t, 4, system[0].Register)

	sampler, ok := refl.FindResource("u_AlbedoSampler")
	require.True(t, ok)
	assert.Equal(t, ResourceKindSampler, sampler.Kind)
}

func TestReflectIsPure(t *testing.T) {
	a, err := Reflect(materialSource, false)
	require.NoError(t, err)
	b, err := Reflect(materialSource, false)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReflectBindTagOverridesName(t *testing.T) {
	src := `
//@lumen:bind pixel material
cbuffer Surface : register(b2) { float4 u_Tint; };

//@lumen:bind system
Texture2D u_ShadowMap : register(t3);
`
	refl, err := Reflect(src, false)
	require.NoError(t, err)

	b := refl.MaterialBuffer(gpu.StagePixel)
	require.NotNil(t, b)
	assert.Equal(t, "Surface", b.Name)

	res, ok := refl.FindResource("u_ShadowMap")
	require.True(t, ok)
	assert.Equal(t, ClassSystem, res.Class)
}

func TestReflectIgnoresComments(t *testing.T) {
	src := `
// cbuffer PSMaterial : register(b0) { float u_Old; };
/* Texture2D u_Old : register(t0); /* nested */ */
cbuffer PSMaterial : register(b0) { float u_New; };
`
	refl, err := Reflect(src, false)
	require.NoError(t, err)
	require.Len(t, refl.Buffers, 1)
	_, ok := refl.Buffers[0].FindUniform("u_New")
	assert.True(t, ok)
	assert.Empty(t, refl.Resources)
}

func TestReflectLightArray(t *testing.T) {
	refl, err := Reflect(`cbuffer PSSystem : register(b0) { Light u_Lights[10]; };`, false)
	require.NoError(t, err)
	assert.True(t, refl.UsesLights())

	u, ok := refl.Buffers[0].FindUniform("u_Lights")
	require.True(t, ok)
	assert.Equal(t, 800, u.Size)
}

func TestReflectComputeIsSystem(t *testing.T) {
	src := `
cbuffer Uniforms : register(b0) { float u_Roughness; };
TextureCube u_Input : register(t0);
RWTexture2DArray<float4> o_Output : register(u0);
`
	refl, err := Reflect(src, true)
	require.NoError(t, err)
	assert.Equal(t, gpu.StageCompute, refl.Buffers[0].Stage)
	assert.Empty(t, refl.MaterialResources())

	out, ok := refl.FindResource("o_Output")
	require.True(t, ok)
	assert.True(t, out.Kind.IsStorage())
	assert.Equal(t, "float4", out.ElementType)
}

func TestReflectErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   error
	}{
		{"unknown type", `cbuffer PSMaterial : register(b0) { double u_X; };`, ErrUnknownUniformType},
		{"unknown signature", `cbuffer Surface : register(b0) { float u_X; };`, ErrUnknownBufferSignature},
		{"empty buffer", `cbuffer PSMaterial : register(b0) { };`, ErrEmptyConstantBuffer},
		{"duplicate material", `
cbuffer PSMaterialA : register(b0) { float u_A; };
cbuffer PSMaterialB : register(b1) { float u_B; };`, ErrDuplicateMaterialBuffer},
		{"duplicate buffer register", `
cbuffer PSSystem : register(b0) { float u_A; };
cbuffer PSMaterial : register(b0) { float u_B; };`, ErrDuplicateRegister},
		{"duplicate texture register", `
Texture2D u_A : register(t0);
TextureCube u_B : register(t0);`, ErrDuplicateRegister},
		{"wrong register class", `Texture2D u_A : register(s0);`, ErrInvalidRegister},
		{"storage in render shader", `RWTexture2D<float4> u_A : register(u0);`, ErrInvalidRegister},
		{"tag without stage", "//@lumen:bind material\ncbuffer Surface : register(b0) { float u_A; };", ErrInvalidAnnotation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reflect(tt.source, false)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConstantBufferLayoutFinalize(t *testing.T) {
	b := NewConstantBufferLayout("PSMaterial", 0, gpu.StagePixel, ClassMaterial)
	b.AddUniform("u_A", UniformTypeVec3)
	b.AddUniform("u_B", UniformTypeFloat)
	b.AddUniform("u_C", UniformTypeFloat)
	b.Finalize()
	assert.Equal(t, 32, b.Size)

	b.Finalize()
	assert.Equal(t, 32, b.Size)
	assert.Panics(t, func() { b.AddUniform("u_D", UniformTypeFloat) })
}

func TestParseUniformType(t *testing.T) {
	typ, err := ParseUniformType("matrix")
	require.NoError(t, err)
	assert.Equal(t, UniformTypeMat4, typ)
	assert.Equal(t, 64, typ.Size())
	assert.Equal(t, "mat4x4<f32>", typ.WGSL())

	_, err = ParseUniformType("half")
	assert.ErrorIs(t, err, ErrUnknownUniformType)
	assert.Equal(t, "None", UniformTypeNone.String())
	assert.Equal(t, "SamplerState", ResourceKindSampler.String())
}
