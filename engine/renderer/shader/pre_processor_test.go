package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessLowersDeclarations(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process(materialSource, false)
	require.NoError(t, err)

	assert.Contains(t, out, "struct VSSystemData {\n    u_ViewProjection: mat4x4<f32>,\n    u_Model: mat4x4<f32>,\n};")
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> VSSystem: VSSystemData;")
	assert.Contains(t, out, "@group(1) @binding(1) var<uniform> PSMaterial: PSMaterialData;")
	assert.Contains(t, out, "u_UseNormalMap: u32,")
	assert.Contains(t, out, "@group(2) @binding(0) var u_AlbedoTexture: texture_2d<f32>;")
	assert.Contains(t, out, "@group(2) @binding(4) var sys_EnvRadianceTex: texture_cube<f32>;")
	assert.Contains(t, out, "@group(3) @binding(0) var u_AlbedoSampler: sampler;")
	assert.NotContains(t, out, "cbuffer")
	assert.NotContains(t, out, "register(")

	require.NotNil(t, pp.Reflection())
	assert.Len(t, pp.Reflection().Buffers, 2)
}

func TestProcessLowersComputeBindings(t *testing.T) {
	src := `
cbuffer Uniforms : register(b0) { float u_Roughness; };
RWTexture2DArray<float4> o_Output : register(u0);
RWTexture2D<float4> o_LUT : register(u1);
`
	out, err := NewPreProcessor().Process(src, true)
	require.NoError(t, err)
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> Uniforms: UniformsData;")
	assert.Contains(t, out, "@group(1) @binding(0) var o_Output: texture_storage_2d_array<rgba16float, write>;")
	assert.Contains(t, out, "@group(1) @binding(1) var o_LUT: texture_storage_2d<rgba16float, write>;")
}

func TestProcessInjectsLightOnce(t *testing.T) {
	src := "//@lumen:include light\ncbuffer PSSystem : register(b0) { Light u_Lights[10]; };\n"
	out, err := NewPreProcessor().Process(src, false)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "struct Light {"))
	assert.Contains(t, out, "u_Lights: array<Light, 10>,")

	out, err = NewPreProcessor().Process("cbuffer PSSystem : register(b0) { Light u_Lights[10]; };", false)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "struct Light {"))
}

func TestProcessRejectsMisalignedUniforms(t *testing.T) {
	src := `cbuffer PSMaterial : register(b0) { float u_Metalness; float3 u_Tint; };`
	_, err := NewPreProcessor().Process(src, false)
	assert.ErrorIs(t, err, ErrMisalignedUniform)

	src = `cbuffer PSMaterial : register(b0) { float3 u_Tint; float u_Metalness; };`
	_, err = NewPreProcessor().Process(src, false)
	assert.NoError(t, err)
}

func TestProcessRejectsBadAnnotations(t *testing.T) {
	for _, line := range []string{
		"//@lumen:",
		"//@lumen:bind geometry material",
		"//@lumen:bind vertex everything",
		"//@lumen:include shadow",
		"//@lumen:frobnicate",
	} {
		_, err := NewPreProcessor().Process(line+"\n", false)
		assert.ErrorIs(t, err, ErrInvalidAnnotation, line)
	}
}

func TestParseAnnotation(t *testing.T) {
	a, err := parseAnnotation("   //  @lumen:bind vertex material", 7)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, AnnotationTypeBind, a.Type)
	assert.True(t, a.HasStage)
	assert.Equal(t, ClassMaterial, a.Class)
	assert.Equal(t, 7, a.Line)

	a, err = parseAnnotation("// plain comment", 1)
	assert.NoError(t, err)
	assert.Nil(t, a)

	a, err = parseAnnotation("let x = 1; //@lumen:bind system", 1)
	assert.NoError(t, err)
	assert.Nil(t, a)
}
