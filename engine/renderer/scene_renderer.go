package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/lumen/engine/camera"
	"github.com/Carmen-Shannon/lumen/engine/light"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/model"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/material"
	"github.com/Carmen-Shannon/lumen/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/lumen/engine/renderer/render_target"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrInvalidState is the contract violation raised when scene operations are called out of
// order.
var ErrInvalidState = errors.New("renderer: scene operation out of order")

// Names of the system uniforms and resources the scene renderer writes.
const (
	uniformProjection     = "u_Projection"
	uniformView           = "u_View"
	uniformModel          = "u_Model"
	uniformCameraPosition = "u_CameraPosition"
	uniformLights         = "u_Lights"

	resourceEnvRadiance   = "sys_EnvRadianceTex"
	resourceEnvIrradiance = "sys_EnvIrradianceTex"
	resourceBRDFLUT       = "sys_BRDFLUTTexture"
)

// Grid and swap chain constants.
const (
	gridSize = 1000
)

var (
	// DefaultGeometryClearColor is the clear color of the geometry target.
	DefaultGeometryClearColor = gpu.Color{R: 0.1, G: 0.2, B: 0.3, A: 1}

	// SwapChainClearColor is the clear color of the swap chain before the final blit.
	SwapChainClearColor = gpu.Color{R: 0.3, G: 0.3, B: 0.3, A: 1}

	// MeshInputLayout is the vertex layout of model.Vertex.
	MeshInputLayout = []pipeline.InputElement{
		{Name: "POSITION", Format: wgpu.VertexFormatFloat32x3},
		{Name: "TEX_COORD", Format: wgpu.VertexFormatFloat32x2},
		{Name: "NORMAL", Format: wgpu.VertexFormatFloat32x3},
		{Name: "TANGENT", Format: wgpu.VertexFormatFloat32x3},
		{Name: "BITANGENT", Format: wgpu.VertexFormatFloat32x3},
	}

	// QuadInputLayout is the vertex layout of the fullscreen quad.
	QuadInputLayout = []pipeline.InputElement{
		{Name: "POSITION", Format: wgpu.VertexFormatFloat32x3},
		{Name: "TEX_COORD", Format: wgpu.VertexFormatFloat32x2},
	}
)

// State is the position of a SceneRenderer in its per-frame cycle.
type State int

const (
	StateIdle State = iota
	StateSceneBegun
	StatePassesRecorded
	StateFlushed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSceneBegun:
		return "SceneBegun"
	case StatePassesRecorded:
		return "PassesRecorded"
	case StateFlushed:
		return "Flushed"
	default:
		return "Unknown"
	}
}

// DrawCommand is one submesh queued for the geometry pass.
type DrawCommand struct {
	Mesh      *model.Mesh
	Submesh   model.Submesh
	Material  material.Material
	Transform mgl32.Mat4
}

// sceneRenderer is the implementation of the SceneRenderer interface.
type sceneRenderer struct {
	mu       *sync.Mutex
	renderer Renderer
	device   gpu.Device
	recorder gpu.CommandRecorder

	state State

	// Pre-creation config collected from builder options
	width           int
	height          int
	clearColor      gpu.Color
	targetSwapChain bool
	gridEnabled     bool
	gridTexture     gpu.Texture
	exposure        float32

	geometry  render_target.RenderTarget
	composite render_target.RenderTarget

	meshPipeline       pipeline.Pipeline
	gridPipeline       pipeline.Pipeline
	skyboxPipeline     pipeline.Pipeline
	compositePipeline  pipeline.Pipeline
	fullscreenPipeline pipeline.Pipeline

	// pipelines caches geometry pipelines by shader name for materials of other shaders.
	pipelines map[string]pipeline.Pipeline

	// transforms holds one VS system buffer per shader drawn in the geometry pass.
	transforms map[string]*systemBuffer

	gridMesh          *model.Mesh
	gridMaterial      material.Material
	skyboxMaterial    material.Material
	compositeMaterial material.Material
	blitMaterial      material.Material

	viewProjection mgl32.Mat4
	view           mgl32.Mat4
	projection     mgl32.Mat4
	cameraPosition mgl32.Vec3
	lights         []byte
	envRadiance    gpu.Texture
	envIrradiance  gpu.Texture

	drawList []DrawCommand
}

// SceneRenderer draws a scene in three fixed passes: geometry into an HDR target, composite
// with tone mapping into an LDR target, and optionally a blit of the result to the swap chain.
//
// Each frame is BeginScene, any number of SubmitMesh calls, then Flush. Calling them out of
// that order is a contract violation and panics with ErrInvalidState.
type SceneRenderer interface {
	// BeginScene starts a frame seen through cam and lit by env. A nil env or one without an
	// environment map renders with black image-based lighting.
	//
	// Parameters:
	//   - cam: the camera supplying view, projection and position
	//   - env: the lights and environment map of the frame
	BeginScene(cam camera.Camera, env *light.Environment)

	// SubmitMesh queues every submesh of a mesh. overrides[i], when present and non-nil,
	// replaces the mesh's own material for submesh i. Invalid meshes are ignored.
	//
	// Parameters:
	//   - mesh: the mesh to draw
	//   - transform: the model-to-world matrix
	//   - overrides: optional per-submesh material overrides
	SubmitMesh(mesh *model.Mesh, transform mgl32.Mat4, overrides ...material.Material)

	// Flush records the geometry, composite and swap chain passes, executes them and returns
	// to Idle with an empty draw list.
	//
	// Returns:
	//   - error: the device error from executing the frame
	Flush() error

	// Resize changes the size of both render targets and, when targeting it, the swap chain.
	Resize(width, height int)

	// SetExposure sets the exposure the composite pass tone maps with.
	SetExposure(exposure float32)

	// Exposure returns a handle to the exposure for editor widgets to write through.
	Exposure() *float32

	// FinalImage returns the tone-mapped color attachment of the composite target.
	FinalImage() gpu.Texture

	// GeometryTarget returns the HDR target the geometry pass draws into.
	GeometryTarget() render_target.RenderTarget

	// DrawList returns the draw commands queued since BeginScene.
	DrawList() []DrawCommand

	// State returns the position in the frame cycle.
	State() State
}

var _ SceneRenderer = &sceneRenderer{}

// NewSceneRenderer creates the render targets, pipelines and fixed materials of the scene
// passes. Missing built-in shaders or mismatched input layouts are fatal.
//
// Parameters:
//   - r: the rendering context
//   - options: variadic list of SceneRendererBuilderOption functions
//
// Returns:
//   - SceneRenderer: the new scene renderer
//   - error: a device error creating the grid mesh
func NewSceneRenderer(r Renderer, options ...SceneRendererBuilderOption) (SceneRenderer, error) {
	s := &sceneRenderer{
		mu:              &sync.Mutex{},
		renderer:        r,
		device:          r.Device(),
		width:           1280,
		height:          720,
		clearColor:      DefaultGeometryClearColor,
		targetSwapChain: true,
		gridEnabled:     true,
		exposure:        0.3,
		pipelines:       make(map[string]pipeline.Pipeline),
		transforms:      make(map[string]*systemBuffer),
	}
	for _, opt := range options {
		opt(s)
	}
	s.recorder = s.device.NewCommandRecorder("Scene")

	s.geometry = render_target.NewRenderTarget(s.device,
		render_target.WithLabel("Geometry"),
		render_target.WithSize(s.width, s.height),
		render_target.WithClearColor(s.clearColor),
		render_target.WithAttachments(
			render_target.Attachment{Format: wgpu.TextureFormatRGBA16Float, Wrap: wgpu.AddressModeClampToEdge, Filter: wgpu.FilterModeLinear},
			render_target.Attachment{Format: gpu.SwapChainDepthFormat},
		),
	)
	s.composite = render_target.NewRenderTarget(s.device,
		render_target.WithLabel("Composite"),
		render_target.WithSize(s.width, s.height),
		render_target.WithAttachments(
			render_target.Attachment{Format: wgpu.TextureFormatRGBA8Unorm, Wrap: wgpu.AddressModeClampToEdge, Filter: wgpu.FilterModeLinear},
		),
	)

	lib := r.Shaders()
	s.meshPipeline = s.geometryPipeline(lib.Get(shader.MeshPBRShader))
	s.gridPipeline = s.geometryPipeline(lib.Get(shader.GridShader))
	s.skyboxPipeline = pipeline.NewPipeline(
		pipeline.WithShader(lib.Get(shader.SkyboxShader)),
		pipeline.WithInputLayout(QuadInputLayout...),
		pipeline.WithTarget(s.geometry),
	)
	s.compositePipeline = pipeline.NewPipeline(
		pipeline.WithShader(lib.Get(shader.CompositeShader)),
		pipeline.WithInputLayout(QuadInputLayout...),
		pipeline.WithTarget(s.composite),
	)
	s.fullscreenPipeline = pipeline.NewPipeline(
		pipeline.WithShader(lib.Get(shader.FullscreenQuadShader)),
		pipeline.WithInputLayout(QuadInputLayout...),
	)

	s.gridMaterial = r.NewMaterial(shader.GridShader,
		material.WithName("Grid"),
		material.WithFlags(material.FlagTwoSided|material.FlagTransparent),
	)
	if s.gridTexture != nil {
		s.gridMaterial.SetTexture("u_GridTexture", s.gridTexture)
	}
	gridMesh, err := model.CreatePlane(s.device, gridSize, gridSize, s.gridMaterial)
	if err != nil {
		return nil, fmt.Errorf("renderer: creating grid: %w", err)
	}
	s.gridMesh = gridMesh

	s.skyboxMaterial = r.NewMaterial(shader.SkyboxShader,
		material.WithName("Skybox"),
		material.WithFlags(material.FlagDisableDepthTest),
	)
	s.skyboxMaterial.SetUniform("u_Intensity", material.Float(1))
	s.skyboxMaterial.SetUniform("u_TextureLod", material.Float(0))

	s.compositeMaterial = r.NewMaterial(shader.CompositeShader,
		material.WithName("Composite"),
		material.WithFlags(material.FlagDisableDepthTest),
	)
	s.blitMaterial = r.NewMaterial(shader.FullscreenQuadShader,
		material.WithName("Swap Chain Blit"),
		material.WithFlags(material.FlagDisableDepthTest),
	)

	s.envRadiance = r.BlackCubeTexture()
	s.envIrradiance = r.BlackCubeTexture()
	s.lights = light.MarshalLights(nil)
	return s, nil
}

// geometryPipeline builds a mesh-layout pipeline into the geometry target.
func (s *sceneRenderer) geometryPipeline(sh shader.Shader) pipeline.Pipeline {
	p := pipeline.NewPipeline(
		pipeline.WithShader(sh),
		pipeline.WithInputLayout(MeshInputLayout...),
		pipeline.WithTarget(s.geometry),
	)
	s.pipelines[sh.Name()] = p
	return p
}

// violation logs and panics with ErrInvalidState.
func (s *sceneRenderer) violation(op string, want State) {
	logger.Error("scene operation out of order", "op", op, "state", s.state, "want", want)
	panic(fmt.Errorf("%w: %s in state %s, want %s", ErrInvalidState, op, s.state, want))
}

func (s *sceneRenderer) BeginScene(cam camera.Camera, env *light.Environment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		s.violation("BeginScene", StateIdle)
	}

	s.view = cam.View()
	s.projection = cam.Projection()
	s.viewProjection = s.projection.Mul4(s.view)
	s.cameraPosition = cam.Position()

	s.lights = light.MarshalLights(nil)
	s.envRadiance = s.renderer.BlackCubeTexture()
	s.envIrradiance = s.renderer.BlackCubeTexture()
	if env != nil {
		s.lights = env.MarshalLights()
		if m := env.EnvironmentMap(); m.IsValid() {
			s.envRadiance = m.Radiance
			s.envIrradiance = m.Irradiance
		}
	}
	s.drawList = s.drawList[:0]
	s.state = StateSceneBegun
}

func (s *sceneRenderer) SubmitMesh(mesh *model.Mesh, transform mgl32.Mat4, overrides ...material.Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSceneBegun {
		s.violation("SubmitMesh", StateSceneBegun)
	}
	if !mesh.IsValid() {
		return
	}
	for i, sub := range mesh.Submeshes {
		var mat material.Material
		if i < len(overrides) && overrides[i] != nil {
			mat = overrides[i]
		} else {
			mat = mesh.Material(i)
		}
		if mat == nil {
			logger.Warn("submesh has no material, skipping", "mesh", mesh.Name, "submesh", sub.Name)
			continue
		}
		s.drawList = append(s.drawList, DrawCommand{
			Mesh:      mesh,
			Submesh:   sub,
			Material:  mat,
			Transform: transform,
		})
	}
}

func (s *sceneRenderer) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSceneBegun {
		s.violation("Flush", StateSceneBegun)
	}

	s.preRender()
	s.geometryPass()
	s.compositePass()
	if s.targetSwapChain {
		s.swapChainPass()
	}
	s.recorder.Finish()
	s.state = StatePassesRecorded

	err := s.device.ExecuteCommandBuffer(s.recorder)
	s.state = StateFlushed
	if err != nil {
		s.recorder.Reset()
		logger.Error("scene flush failed", "draws", len(s.drawList), "err", err)
	}
	s.drawList = s.drawList[:0]
	s.state = StateIdle
	if err != nil {
		return fmt.Errorf("renderer: flushing scene: %w", err)
	}
	return nil
}

// preRender moves transparent draws behind opaque ones, keeping submission order within
// each group. Transparent draws are not depth sorted.
func (s *sceneRenderer) preRender() {
	sorted := make([]DrawCommand, 0, len(s.drawList))
	for _, dc := range s.drawList {
		if !dc.Material.IsTransparent() {
			sorted = append(sorted, dc)
		}
	}
	for _, dc := range s.drawList {
		if dc.Material.IsTransparent() {
			sorted = append(sorted, dc)
		}
	}
	s.drawList = sorted
}

func (s *sceneRenderer) beginTarget(rt render_target.RenderTarget) {
	rec := s.recorder
	rec.SetRenderTargets(rt.ColorAttachments(), rt.DepthAttachment())
	for _, c := range rt.ColorAttachments() {
		rec.ClearRenderTarget(c, rt.ClearColor())
	}
	if depth := rt.DepthAttachment(); depth != nil {
		rec.ClearDepthStencil(depth)
	}
	rec.SetViewport(rt.Viewport())
	rec.SetScissorRect(gpu.Rect{Width: uint32(rt.Width()), Height: uint32(rt.Height())})
}

func (s *sceneRenderer) geometryPass() {
	s.beginTarget(s.geometry)
	s.drawSkybox()

	mesh := s.meshPipeline.Shader()
	if b := mesh.Reflection().Buffer(gpu.StagePixel, 0); b != nil && b.Class == shader.ClassSystem {
		sys := s.systemBuffer(mesh, gpu.StagePixel, 0)
		sys.set(uniformLights, s.lights)
		sys.upload(s.recorder)
	}

	for _, dc := range s.drawList {
		s.drawMesh(dc)
	}
	if s.gridEnabled {
		s.drawMesh(DrawCommand{
			Mesh:      s.gridMesh,
			Submesh:   s.gridMesh.Submeshes[0],
			Material:  s.gridMaterial,
			Transform: mgl32.Ident4(),
		})
	}
}

func (s *sceneRenderer) drawSkybox() {
	inv := s.viewProjection.Inv()
	s.skyboxMaterial.SetUniform("u_InvViewProjMatrix", material.Mat4(inv))
	s.skyboxMaterial.SetTexture("u_Texture", s.envRadiance)
	s.drawQuad(s.skyboxPipeline, s.skyboxMaterial)
}

// drawMesh records one geometry draw. The pipeline is chosen by the material's shader.
func (s *sceneRenderer) drawMesh(dc DrawCommand) {
	rec := s.recorder
	mat := dc.Material
	sh := mat.Shader()
	p := s.pipelineFor(sh)

	rec.SetGraphicsPipelineState(p.GraphicsState(mat.States()))

	sys := s.systemBuffer(sh, gpu.StageVertex, 0)
	sys.set(uniformProjection, material.Mat4(s.projection).Bytes())
	sys.set(uniformView, material.Mat4(s.view).Bytes())
	sys.set(uniformModel, material.Mat4(dc.Transform).Bytes())
	sys.setOptional(uniformCameraPosition, material.Vec3(s.cameraPosition).Bytes())
	sys.upload(rec)

	s.bindMaterial(mat)
	s.bindEnvironment(sh)

	rec.SetVertexBuffer(dc.Mesh.VB)
	rec.SetIndexBuffer(dc.Mesh.IB)
	rec.DrawIndexed(dc.Submesh.IndexCount, dc.Submesh.IndexOffset, dc.Submesh.VertexOffset)
}

// bindMaterial uploads the material buffers and binds its textures and samplers from
// register 0.
func (s *sceneRenderer) bindMaterial(mat material.Material) {
	rec := s.recorder
	sh := mat.Shader()
	for _, stage := range []gpu.Stage{gpu.StageVertex, gpu.StagePixel} {
		layout := mat.BufferLayout(stage)
		if layout == nil {
			continue
		}
		rec.SetConstantBufferData(stage, layout.Register, sh.ConstantBuffer(stage, layout.Register), mat.Buffer(stage))
	}
	if textures := mat.Textures(); len(textures) > 0 {
		rec.SetShaderResources(gpu.StagePixel, 0, textures)
		rec.SetSamplers(gpu.StagePixel, 0, textures)
	}
}

// bindEnvironment binds the image-based lighting resources a shader declares.
func (s *sceneRenderer) bindEnvironment(sh shader.Shader) {
	refl := sh.Reflection()
	for name, tex := range map[string]gpu.Texture{
		resourceEnvRadiance:   s.envRadiance,
		resourceEnvIrradiance: s.envIrradiance,
		resourceBRDFLUT:       s.renderer.BRDFLUT(),
	} {
		res, ok := refl.FindResource(name)
		if !ok {
			continue
		}
		s.recorder.SetShaderResources(gpu.StagePixel, res.Register, []gpu.Texture{tex})
		s.recorder.SetSamplers(gpu.StagePixel, res.Register, []gpu.Texture{tex})
	}
}

func (s *sceneRenderer) compositePass() {
	s.beginTarget(s.composite)
	s.compositeMaterial.SetTexture("u_SceneTexture", s.geometry.ColorAttachment(0))
	s.compositeMaterial.SetUniform("u_Exposure", material.Float(s.exposure))
	s.drawQuad(s.compositePipeline, s.compositeMaterial)
}

func (s *sceneRenderer) swapChainPass() {
	rec := s.recorder
	color, depth := s.device.SwapChain()
	rec.SetRenderTargets([]gpu.Texture{color}, depth)
	rec.ClearRenderTarget(color, SwapChainClearColor)
	rec.ClearDepthStencil(depth)
	rec.SetViewport(gpu.Viewport{Width: float32(color.Width()), Height: float32(color.Height()), MaxDepth: 1})
	rec.SetScissorRect(gpu.Rect{Width: uint32(color.Width()), Height: uint32(color.Height())})

	s.blitMaterial.SetTexture("u_SceneTexture", s.composite.ColorAttachment(0))
	s.drawQuad(s.fullscreenPipeline, s.blitMaterial)
}

func (s *sceneRenderer) drawQuad(p pipeline.Pipeline, mat material.Material) {
	rec := s.recorder
	rec.SetGraphicsPipelineState(p.GraphicsState(mat.States()))
	s.bindMaterial(mat)
	rec.SetVertexBuffer(s.renderer.QuadVertexBuffer())
	rec.SetIndexBuffer(s.renderer.QuadIndexBuffer())
	rec.DrawIndexed(uint32(len(quadIndices)), 0, 0)
}

// pipelineFor returns the geometry pipeline of a shader, creating it on first use.
func (s *sceneRenderer) pipelineFor(sh shader.Shader) pipeline.Pipeline {
	if p, ok := s.pipelines[sh.Name()]; ok && p.Shader() == sh {
		return p
	}
	return s.geometryPipeline(sh)
}

func (s *sceneRenderer) systemBuffer(sh shader.Shader, stage gpu.Stage, register int) *systemBuffer {
	key := fmt.Sprintf("%s/%s/%d", sh.Name(), stage, register)
	if b, ok := s.transforms[key]; ok && b.shader == sh {
		return b
	}
	layout := sh.Reflection().Buffer(stage, register)
	if layout == nil || layout.Class != shader.ClassSystem {
		logger.Error("shader has no system buffer", "shader", sh.Name(), "stage", stage, "register", register)
		panic(fmt.Sprintf("renderer: shader %s declares no %s system buffer at b%d", sh.Name(), stage, register))
	}
	b := &systemBuffer{
		shader: sh,
		layout: layout,
		buffer: sh.ConstantBuffer(stage, register),
		data:   make([]byte, layout.Size),
	}
	s.transforms[key] = b
	return b
}

func (s *sceneRenderer) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width <= 0 || height <= 0 {
		return
	}
	s.width, s.height = width, height
	s.geometry.Resize(width, height)
	s.composite.Resize(width, height)
	if s.targetSwapChain {
		if err := s.device.ResizeSwapChain(width, height); err != nil {
			logger.Error("swap chain resize failed", "width", width, "height", height, "err", err)
		}
	}
}

func (s *sceneRenderer) SetExposure(exposure float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exposure = exposure
}

func (s *sceneRenderer) Exposure() *float32 {
	return &s.exposure
}

func (s *sceneRenderer) FinalImage() gpu.Texture {
	return s.composite.ColorAttachment(0)
}

func (s *sceneRenderer) GeometryTarget() render_target.RenderTarget {
	return s.geometry
}

func (s *sceneRenderer) DrawList() []DrawCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DrawCommand(nil), s.drawList...)
}

func (s *sceneRenderer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
