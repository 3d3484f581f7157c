package shader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replaceOnce(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}

func TestLoadBuiltins(t *testing.T) {
	lib := NewLibrary(gpu.NewHeadlessDevice(64, 64))
	require.NoError(t, lib.LoadBuiltins())

	for _, name := range []string{MeshPBRShader, GridShader, SkyboxShader, CompositeShader, FullscreenQuadShader} {
		assert.NotPanics(t, func() { lib.Get(name) }, name)
	}
	for _, name := range []string{EquirectToCubeShader, EnvironmentPrefilterShader, IrradianceShader, BRDFShader} {
		assert.NotPanics(t, func() { lib.GetCompute(name) }, name)
	}
	assert.Len(t, lib.Names(), 9)
}

func TestBuiltinMeshShaderLayout(t *testing.T) {
	lib := NewLibrary(gpu.NewHeadlessDevice(64, 64))
	require.NoError(t, lib.LoadBuiltins())
	pbr := lib.Get(MeshPBRShader)

	assert.Equal(t, uint64(56), pbr.VertexLayout().ArrayStride)
	assert.True(t, pbr.Reflection().UsesLights())

	lights := pbr.ConstantBuffer(gpu.StagePixel, 0)
	require.NotNil(t, lights)
	assert.Equal(t, 800, lights.Size())

	transform := pbr.Reflection().Buffer(gpu.StageVertex, 0)
	require.NotNil(t, transform)
	camera, ok := transform.FindUniform("u_CameraPosition")
	require.True(t, ok)
	assert.Equal(t, 192, camera.Offset)

	for _, name := range []string{"sys_EnvRadianceTex", "sys_EnvIrradianceTex", "sys_BRDFLUTTexture"} {
		res, ok := pbr.Reflection().FindResource(name)
		require.True(t, ok, name)
		assert.Equal(t, ClassSystem, res.Class)
	}
	assert.Equal(t, uint64(20), lib.Get(FullscreenQuadShader).VertexLayout().ArrayStride)
}

func TestBuiltinComputeWorkgroups(t *testing.T) {
	lib := NewLibrary(gpu.NewHeadlessDevice(64, 64))
	require.NoError(t, lib.LoadBuiltins())
	for _, name := range []string{EquirectToCubeShader, EnvironmentPrefilterShader, IrradianceShader, BRDFShader} {
		assert.Equal(t, [3]uint32{32, 32, 1}, lib.GetCompute(name).WorkgroupSize(), name)
	}
}

func TestLibraryGetPanicsOnMiss(t *testing.T) {
	lib := NewLibrary(gpu.NewHeadlessDevice(64, 64))
	assert.Panics(t, func() { lib.Get("missing") })
	assert.Panics(t, func() { lib.GetCompute("missing") })
	assert.False(t, lib.Has("missing"))
}

func TestLibraryLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flat.wgsl"), []byte(renderSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fill.wgsl"), []byte(computeSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	lib := NewLibrary(gpu.NewHeadlessDevice(64, 64))
	require.NoError(t, lib.Load(dir))

	assert.Equal(t, []string{"fill", "flat"}, lib.Names())
	assert.NotPanics(t, func() { lib.Get("flat") })
	assert.NotPanics(t, func() { lib.GetCompute("fill") })
	assert.Panics(t, func() { lib.Get("fill") })
}

func TestLibraryLoadReportsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flat.wgsl"), []byte(renderSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.wgsl"), []byte("cbuffer X : register(b0) { float u_A; };"), 0o644))

	lib := NewLibrary(gpu.NewHeadlessDevice(64, 64))
	err := lib.Load(dir)
	assert.ErrorIs(t, err, ErrUnknownBufferSignature)
	assert.True(t, lib.Has("flat"))
	assert.False(t, lib.Has("broken"))
}

func TestLibraryReloadFileKeepsProgramOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flat.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(renderSource), 0o644))

	lib := NewLibrary(gpu.NewHeadlessDevice(64, 64)).(*library)
	require.NoError(t, lib.Load(dir))
	prog := lib.Get("flat").Program()

	require.NoError(t, os.WriteFile(path, []byte("not a shader"), 0o644))
	lib.reloadFile(path)
	assert.Equal(t, prog.ID(), lib.Get("flat").Program().ID())

	require.NoError(t, os.WriteFile(path, []byte(replaceOnce(renderSource, "u_Color;", "u_Color;\n    float u_Alpha;")), 0o644))
	lib.reloadFile(path)
	assert.NotEqual(t, prog.ID(), lib.Get("flat").Program().ID())
}

func TestIsComputeSource(t *testing.T) {
	assert.True(t, IsComputeSource(computeSource))
	assert.False(t, IsComputeSource(renderSource))
	assert.False(t, IsComputeSource("// @compute\nfn f() {}"))
}
