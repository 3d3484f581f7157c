package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/lumen/engine/camera"
	"github.com/Carmen-Shannon/lumen/engine/light"
	"github.com/Carmen-Shannon/lumen/engine/model"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/material"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recoverErr runs f and returns the error it panicked with.
func recoverErr(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			}
		}
	}()
	f()
	return nil
}

type sceneFixture struct {
	renderer Renderer
	device   gpu.HeadlessDevice
	scene    SceneRenderer
	camera   camera.Camera
}

func newSceneFixture(t *testing.T, options ...SceneRendererBuilderOption) *sceneFixture {
	t.Helper()
	r, d := newTestRenderer(t, WithEnvironmentSize(64), WithIrradianceSize(16))
	opts := append([]SceneRendererBuilderOption{WithSize(320, 200)}, options...)
	s, err := NewSceneRenderer(r, opts...)
	require.NoError(t, err)
	return &sceneFixture{renderer: r, device: d, scene: s, camera: camera.NewCamera()}
}

// twoPartMesh is a cube split into two submeshes of 18 indices with their own materials.
func (f *sceneFixture) twoPartMesh(t *testing.T, first, second material.Material) *model.Mesh {
	t.Helper()
	cube, err := model.CreateCube(f.device, first)
	require.NoError(t, err)
	m := *cube
	m.Submeshes = []model.Submesh{
		{Name: "first", VertexCount: 24, IndexOffset: 0, IndexCount: 18, MaterialIndex: 0},
		{Name: "second", VertexCount: 24, IndexOffset: 18, IndexCount: 18, MaterialIndex: 1},
	}
	m.Materials = []material.Material{first, second}
	return &m
}

func draws(cmds []gpu.Command) []gpu.DrawIndexedCmd {
	return commandsOf[gpu.DrawIndexedCmd](cmds)
}

func TestSceneRendererTargets(t *testing.T) {
	f := newSceneFixture(t)

	geometry := f.scene.GeometryTarget()
	assert.Equal(t, 320, geometry.Width())
	assert.Equal(t, 200, geometry.Height())
	assert.Equal(t, EnvironmentFormat, geometry.ColorAttachment(0).Format())
	require.NotNil(t, geometry.DepthAttachment())

	final := f.scene.FinalImage()
	assert.Equal(t, 320, final.Width())
	assert.NotEqual(t, geometry.ColorAttachment(0).ID(), final.ID())
	assert.Equal(t, StateIdle, f.scene.State())
}

func TestPreRenderPutsOpaqueFirst(t *testing.T) {
	f := newSceneFixture(t)
	transparent := f.renderer.NewMaterial(shader.MeshPBRShader, material.WithFlags(material.FlagTransparent))
	opaque := f.renderer.NewMaterial(shader.MeshPBRShader)
	mesh := f.twoPartMesh(t, transparent, opaque)

	f.scene.BeginScene(f.camera, nil)
	f.scene.SubmitMesh(mesh, mgl32.Ident4())
	list := f.scene.DrawList()
	require.Len(t, list, 2)
	assert.True(t, list[0].Material.IsTransparent())

	s := f.scene.(*sceneRenderer)
	s.preRender()
	require.Len(t, s.drawList, 2)
	assert.False(t, s.drawList[0].Material.IsTransparent())
	assert.True(t, s.drawList[1].Material.IsTransparent())
	assert.Equal(t, "second", s.drawList[0].Submesh.Name)
}

func TestPreRenderKeepsSubmissionOrderWithinGroups(t *testing.T) {
	f := newSceneFixture(t)
	transparent := f.renderer.NewMaterial(shader.MeshPBRShader, material.WithFlags(material.FlagTransparent))
	opaque := f.renderer.NewMaterial(shader.MeshPBRShader)
	a := f.twoPartMesh(t, opaque, transparent)
	b := f.twoPartMesh(t, opaque, transparent)

	// Submitted as opaque, transparent, opaque, transparent.
	f.scene.BeginScene(f.camera, nil)
	f.scene.SubmitMesh(a, mgl32.Translate3D(1, 0, 0))
	f.scene.SubmitMesh(b, mgl32.Translate3D(2, 0, 0))
	require.Len(t, f.scene.DrawList(), 4)

	s := f.scene.(*sceneRenderer)
	s.preRender()
	require.Len(t, s.drawList, 4)

	want := []struct {
		transparent bool
		x           float32
		submesh     string
	}{
		{false, 1, "first"},
		{false, 2, "first"},
		{true, 1, "second"},
		{true, 2, "second"},
	}
	for i, w := range want {
		dc := s.drawList[i]
		assert.Equal(t, w.transparent, dc.Material.IsTransparent(), "draw %d", i)
		assert.Equal(t, w.x, dc.Transform.Col(3).X(), "draw %d", i)
		assert.Equal(t, w.submesh, dc.Submesh.Name, "draw %d", i)
	}
}

func TestFlushDrawOrder(t *testing.T) {
	f := newSceneFixture(t)
	transparent := f.renderer.NewMaterial(shader.MeshPBRShader, material.WithFlags(material.FlagTransparent))
	opaque := f.renderer.NewMaterial(shader.MeshPBRShader)
	mesh := f.twoPartMesh(t, transparent, opaque)

	f.scene.BeginScene(f.camera, nil)
	f.scene.SubmitMesh(mesh, mgl32.Translate3D(1, 2, 3))
	require.NoError(t, f.scene.Flush())

	got := draws(executedList(t, f.device, "Scene"))
	require.Len(t, got, 6)
	// skybox, opaque, transparent, grid, composite, blit
	assert.Equal(t, uint32(6), got[0].IndexCount)
	assert.Equal(t, uint32(18), got[1].StartIndex)
	assert.Equal(t, uint32(0), got[2].StartIndex)
	assert.Equal(t, uint32(18), got[2].IndexCount)
	assert.Equal(t, uint32(6), got[3].IndexCount)
	assert.Equal(t, uint32(6), got[4].IndexCount)
	assert.Equal(t, uint32(6), got[5].IndexCount)

	assert.Equal(t, StateIdle, f.scene.State())
	assert.Empty(t, f.scene.DrawList())
}

func TestFlushRecordsWireframeFill(t *testing.T) {
	f := newSceneFixture(t)
	cube, err := model.CreateCube(f.device, f.renderer.NewMaterial(shader.MeshPBRShader, material.WithFlags(material.FlagWireframe)))
	require.NoError(t, err)

	f.scene.BeginScene(f.camera, nil)
	f.scene.SubmitMesh(cube, mgl32.Ident4())
	require.NoError(t, f.scene.Flush())

	var wireframe int
	for _, c := range commandsOf[gpu.SetPipelineStateCmd](executedList(t, f.device, "Scene")) {
		if c.State.State.Rasterizer.Wireframe {
			wireframe++
		}
	}
	assert.Equal(t, 1, wireframe)
}

func TestFlushWithoutSwapChain(t *testing.T) {
	f := newSceneFixture(t, WithSwapChainTarget(false))
	cube, err := model.CreateCube(f.device, f.renderer.NewMaterial(shader.MeshPBRShader))
	require.NoError(t, err)

	f.scene.BeginScene(f.camera, nil)
	f.scene.SubmitMesh(cube, mgl32.Ident4())
	require.NoError(t, f.scene.Flush())

	cmds := executedList(t, f.device, "Scene")
	assert.Len(t, draws(cmds), 4)

	swapColor, _ := f.device.SwapChain()
	for _, c := range commandsOf[gpu.SetRenderTargetsCmd](cmds) {
		for _, color := range c.Colors {
			assert.NotEqual(t, swapColor.ID(), color.ID())
		}
	}
}

func TestFlushWithoutGrid(t *testing.T) {
	f := newSceneFixture(t, WithGrid(false))

	f.scene.BeginScene(f.camera, nil)
	require.NoError(t, f.scene.Flush())
	assert.Len(t, draws(executedList(t, f.device, "Scene")), 3)
}

func TestSceneOperationsOutOfOrder(t *testing.T) {
	f := newSceneFixture(t)

	err := recoverErr(func() { _ = f.scene.Flush() })
	assert.ErrorIs(t, err, ErrInvalidState)

	err = recoverErr(func() { f.scene.SubmitMesh(nil, mgl32.Ident4()) })
	assert.ErrorIs(t, err, ErrInvalidState)

	f.scene.BeginScene(f.camera, nil)
	err = recoverErr(func() { f.scene.BeginScene(f.camera, nil) })
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateSceneBegun, f.scene.State())
}

func TestSubmitMeshIgnoresInvalidMeshes(t *testing.T) {
	f := newSceneFixture(t)

	f.scene.BeginScene(f.camera, nil)
	f.scene.SubmitMesh(nil, mgl32.Ident4())
	f.scene.SubmitMesh(&model.Mesh{Name: "empty"}, mgl32.Ident4())
	assert.Empty(t, f.scene.DrawList())
}

func TestSubmitMeshOverrides(t *testing.T) {
	f := newSceneFixture(t)
	own0 := f.renderer.NewMaterial(shader.MeshPBRShader, material.WithName("own0"))
	own1 := f.renderer.NewMaterial(shader.MeshPBRShader, material.WithName("own1"))
	override := f.renderer.NewMaterial(shader.MeshPBRShader, material.WithName("override"))
	mesh := f.twoPartMesh(t, own0, own1)

	f.scene.BeginScene(f.camera, nil)
	f.scene.SubmitMesh(mesh, mgl32.Ident4(), nil, override)

	list := f.scene.DrawList()
	require.Len(t, list, 2)
	assert.Equal(t, "own0", list[0].Material.Name())
	assert.Equal(t, "override", list[1].Material.Name())
}

func TestExposureHandle(t *testing.T) {
	f := newSceneFixture(t)
	*f.scene.Exposure() = 1.5

	f.scene.BeginScene(f.camera, nil)
	require.NoError(t, f.scene.Flush())

	s := f.scene.(*sceneRenderer)
	assert.Equal(t, float32(1.5), s.compositeMaterial.GetUniform("u_Exposure").AsFloat())

	f.scene.SetExposure(0.8)
	assert.Equal(t, float32(0.8), *f.scene.Exposure())
}

func TestLightsUploadedToMeshShader(t *testing.T) {
	f := newSceneFixture(t)
	env := light.NewEnvironment()
	env.AddLight(light.NewPointLight(mgl32.Vec3{1, 0.5, 0.25}, 3, mgl32.Vec3{0, 4, 0}))
	env.AddLight(light.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1, mgl32.Vec3{0, -1, 0}))

	f.scene.BeginScene(f.camera, env)
	require.NoError(t, f.scene.Flush())

	mesh := f.renderer.Shaders().Get(shader.MeshPBRShader)
	lightsBuffer := mesh.ConstantBuffer(gpu.StagePixel, 0)
	var uploads []gpu.UploadConstantsCmd
	for _, u := range commandsOf[gpu.UploadConstantsCmd](executedList(t, f.device, "Scene")) {
		if u.Buffer.ID() == lightsBuffer.ID() {
			uploads = append(uploads, u)
		}
	}
	require.Len(t, uploads, 1)
	assert.Equal(t, env.MarshalLights(), uploads[0].Data)
}

func TestEnvironmentBoundToMeshDraws(t *testing.T) {
	f := newSceneFixture(t, WithGrid(false))
	src, err := f.renderer.CreateHDRTexture("sky", 8, 4, make([]float32, 8*4*4))
	require.NoError(t, err)
	envMap, err := f.renderer.BakeEnvironment("sky", src)
	require.NoError(t, err)
	env := light.NewEnvironment()
	env.SetEnvironmentMap(envMap)
	cube, err := model.CreateCube(f.device, f.renderer.NewMaterial(shader.MeshPBRShader))
	require.NoError(t, err)

	f.scene.BeginScene(f.camera, env)
	f.scene.SubmitMesh(cube, mgl32.Ident4())
	require.NoError(t, f.scene.Flush())

	bound := map[int]string{}
	for _, c := range commandsOf[gpu.BindTexturesCmd](executedList(t, f.device, "Scene")) {
		if c.Stage == gpu.StagePixel && c.Start >= 4 {
			bound[c.Start] = c.Textures[0].ID()
		}
	}
	assert.Equal(t, envMap.Radiance.ID(), bound[4])
	assert.Equal(t, envMap.Irradiance.ID(), bound[5])
	assert.Equal(t, f.renderer.BRDFLUT().ID(), bound[6])
}

func TestEnvironmentDefaultsToBlack(t *testing.T) {
	f := newSceneFixture(t, WithGrid(false))
	cube, err := model.CreateCube(f.device, f.renderer.NewMaterial(shader.MeshPBRShader))
	require.NoError(t, err)

	f.scene.BeginScene(f.camera, light.NewEnvironment())
	f.scene.SubmitMesh(cube, mgl32.Ident4())
	require.NoError(t, f.scene.Flush())

	for _, c := range commandsOf[gpu.BindTexturesCmd](executedList(t, f.device, "Scene")) {
		if c.Stage == gpu.StagePixel && (c.Start == 4 || c.Start == 5) {
			assert.Equal(t, f.renderer.BlackCubeTexture().ID(), c.Textures[0].ID())
		}
	}
}

func TestSceneResize(t *testing.T) {
	f := newSceneFixture(t)

	f.scene.Resize(100, 50)
	assert.Equal(t, 100, f.scene.GeometryTarget().Width())
	assert.Equal(t, 50, f.scene.FinalImage().Height())
	color, _ := f.device.SwapChain()
	assert.Equal(t, 100, color.Width())

	f.scene.Resize(0, 10)
	assert.Equal(t, 100, f.scene.GeometryTarget().Width())

	f.scene.BeginScene(f.camera, nil)
	require.NoError(t, f.scene.Flush())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "SceneBegun", StateSceneBegun.String())
	assert.Equal(t, "Unknown", State(9).String())
}
