package renderer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (Renderer, gpu.HeadlessDevice) {
	t.Helper()
	d := gpu.NewHeadlessDevice(320, 200)
	r, err := NewRenderer(d, options...)
	require.NoError(t, err)
	return r, d
}

// executedList returns the commands of the last executed list with the given label.
func executedList(t *testing.T, d gpu.HeadlessDevice, label string) []gpu.Command {
	t.Helper()
	executed := d.Executed()
	for i := len(executed) - 1; i >= 0; i-- {
		if executed[i].Label == label {
			return executed[i].Commands
		}
	}
	require.Failf(t, "list not executed", "no list labelled %q", label)
	return nil
}

func commandsOf[T gpu.Command](cmds []gpu.Command) []T {
	var out []T
	for _, c := range cmds {
		if cmd, ok := c.(T); ok {
			out = append(out, cmd)
		}
	}
	return out
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func TestNewRendererCreatesSharedResources(t *testing.T) {
	r, _ := newTestRenderer(t)

	assert.Equal(t, 4*QuadStride, r.QuadVertexBuffer().Size())
	assert.Equal(t, QuadStride, r.QuadVertexBuffer().Stride())
	vb := r.QuadVertexBuffer().Contents()
	assert.Equal(t, float32(-1), f32(vb[0:]))
	assert.Equal(t, float32(1), f32(vb[16:]))
	assert.Equal(t, float32(1), f32(vb[2*QuadStride:]))

	ib := r.QuadIndexBuffer().Contents()
	require.Len(t, ib, 24)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(ib[12:]))

	assert.False(t, r.BlackTexture().IsCube())
	assert.Equal(t, 1, r.BlackTexture().Width())
	assert.True(t, r.BlackCubeTexture().IsCube())

	lut := r.BRDFLUT()
	assert.Equal(t, DefaultBRDFLUTSize, lut.Width())
	assert.Equal(t, EnvironmentFormat, lut.Format())
	assert.False(t, lut.IsCube())

	for _, name := range []string{shader.MeshPBRShader, shader.GridShader, shader.SkyboxShader, shader.CompositeShader, shader.FullscreenQuadShader} {
		assert.True(t, r.Shaders().Has(name), name)
	}
}

func TestBRDFLUTDispatchedOnce(t *testing.T) {
	_, d := newTestRenderer(t)

	cmds := executedList(t, d, "BRDF LUT")
	dispatches := commandsOf[gpu.DispatchCmd](cmds)
	require.Len(t, dispatches, 1)
	assert.Equal(t, [3]uint32{8, 8, 1}, [3]uint32{dispatches[0].X, dispatches[0].Y, dispatches[0].Z})

	storage := commandsOf[gpu.BindStorageTexturesCmd](cmds)
	require.Len(t, storage, 1)
	assert.Equal(t, 0, storage[0].Views[0].MipLevel)
}

func TestNewMaterialUsesBlackDefaults(t *testing.T) {
	r, _ := newTestRenderer(t)
	m := r.NewMaterial(shader.MeshPBRShader)

	assert.Equal(t, shader.MeshPBRShader, m.Name())
	textures := m.Textures()
	require.Len(t, textures, 4)
	for _, tex := range textures {
		assert.Equal(t, r.BlackTexture().ID(), tex.ID())
	}
	assert.Panics(t, func() { r.NewMaterial("missing_shader") })
}

func TestCreateHDRTexture(t *testing.T) {
	r, _ := newTestRenderer(t)

	tex, err := r.CreateHDRTexture("sky", 4, 2, make([]float32, 4*2*4))
	require.NoError(t, err)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, tex.Format())
	assert.Equal(t, 4, tex.Width())

	_, err = r.CreateHDRTexture("short", 4, 2, make([]float32, 3))
	assert.ErrorIs(t, err, gpu.ErrInvalidDescriptor)
}

func TestBakeEnvironmentTextureShapes(t *testing.T) {
	r, _ := newTestRenderer(t)
	src, err := r.CreateHDRTexture("sky.hdr", 8, 4, make([]float32, 8*4*4))
	require.NoError(t, err)

	env, err := r.BakeEnvironment("sky.hdr", src)
	require.NoError(t, err)
	require.True(t, env.IsValid())

	assert.True(t, env.Irradiance.IsCube())
	assert.Equal(t, 32, env.Irradiance.Width())
	assert.Equal(t, 32, env.Irradiance.Height())
	assert.Equal(t, 1, env.Irradiance.MipCount())

	assert.True(t, env.Radiance.IsCube())
	assert.Equal(t, 1024, env.Radiance.Width())
	assert.Equal(t, 1024, env.Radiance.Height())
	assert.Equal(t, 11, env.Radiance.MipCount())
	assert.Equal(t, "sky.hdr", env.Name)
}

func TestBakeEnvironmentRecordsOneList(t *testing.T) {
	r, d := newTestRenderer(t)
	src, err := r.CreateHDRTexture("sky", 8, 4, make([]float32, 8*4*4))
	require.NoError(t, err)
	before := len(d.Executed())

	_, err = r.BakeEnvironment("sky", src)
	require.NoError(t, err)
	require.Len(t, d.Executed(), before+1)

	cmds := executedList(t, d, "Environment sky")

	dispatches := commandsOf[gpu.DispatchCmd](cmds)
	require.Len(t, dispatches, 12)
	groups := make([][3]uint32, len(dispatches))
	for i, dc := range dispatches {
		groups[i] = [3]uint32{dc.X, dc.Y, dc.Z}
	}
	assert.Equal(t, [][3]uint32{
		{32, 32, 6},
		{16, 16, 6}, {8, 8, 6}, {4, 4, 6}, {2, 2, 6}, {1, 1, 6},
		{1, 1, 6}, {1, 1, 6}, {1, 1, 6}, {1, 1, 6}, {1, 1, 6},
		{1, 1, 6},
	}, groups)

	mips := commandsOf[gpu.GenerateMipsCmd](cmds)
	require.Len(t, mips, 1)
	assert.Equal(t, 11, mips[0].Texture.MipCount())

	copies := commandsOf[gpu.CopyTextureCmd](cmds)
	require.Len(t, copies, 6)
	for face, c := range copies {
		layer, mip := gpu.SplitSubresource(c.Subresource, 11)
		assert.Equal(t, face, layer)
		assert.Equal(t, 0, mip)
	}

	uploads := commandsOf[gpu.UploadConstantsCmd](cmds)
	require.Len(t, uploads, 10)
	for i, u := range uploads {
		assert.Equal(t, gpu.StageCompute, u.Stage)
		assert.Equal(t, float32(i+1)/10, f32(u.Data))
	}

	storage := commandsOf[gpu.BindStorageTexturesCmd](cmds)
	require.Len(t, storage, 12)
	for m := 1; m <= 10; m++ {
		assert.Equal(t, m, storage[m].Views[0].MipLevel)
	}
}

func TestBakeEnvironmentSmallSize(t *testing.T) {
	r, _ := newTestRenderer(t, WithEnvironmentSize(64), WithIrradianceSize(16))
	src, err := r.CreateHDRTexture("sky", 8, 4, make([]float32, 8*4*4))
	require.NoError(t, err)

	env, err := r.BakeEnvironment("sky", src)
	require.NoError(t, err)
	assert.Equal(t, 7, env.Radiance.MipCount())
	assert.Equal(t, 16, env.Irradiance.Width())

	_, err = r.BakeEnvironment("none", nil)
	assert.ErrorIs(t, err, gpu.ErrInvalidDescriptor)
}

func TestEnvironmentHelpers(t *testing.T) {
	assert.Equal(t, uint32(32), ThreadGroups(1024))
	assert.Equal(t, uint32(1), ThreadGroups(16))
	assert.Equal(t, uint32(1), ThreadGroups(0))

	for m := 0; m <= 10; m++ {
		assert.Equal(t, float32(m)/10, PrefilterRoughness(m, 11), "mip %d", m)
	}
	assert.Equal(t, float32(9)/10, PrefilterRoughness(9, 11))
	assert.Equal(t, float32(1), PrefilterRoughness(1, 1))

	assert.Equal(t, 11, MipCount(1024))
	assert.Equal(t, 1, MipCount(1))
	assert.Equal(t, 1, MipCount(0))
}

func TestWatchShadersWithoutDirectory(t *testing.T) {
	r, _ := newTestRenderer(t)
	assert.NoError(t, r.WatchShaders(t.Context()))
}

func TestClose(t *testing.T) {
	r, _ := newTestRenderer(t)
	r.Close()
	assert.Nil(t, r.BlackTexture())
	assert.Nil(t, r.BRDFLUT())
}
