package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/lumen/common"
	"github.com/Carmen-Shannon/lumen/engine/asset"
	"github.com/Carmen-Shannon/lumen/engine/camera"
	"github.com/Carmen-Shannon/lumen/engine/config"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/profiler"
	"github.com/Carmen-Shannon/lumen/engine/renderer"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/scene"
	"github.com/Carmen-Shannon/lumen/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoWindow is returned by Run for engines created without a window.
var ErrNoWindow = errors.New("engine: no window to run")

// GridTexturePath is the texture tiled across the ground grid, relative to the asset root.
// The grid samples black when it is missing.
const GridTexturePath = "textures/grid.png"

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	cfg config.Config

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window        window.Window
	device        gpu.Device
	renderer      renderer.Renderer
	sceneRenderer renderer.SceneRenderer
	assets        asset.AssetManager
	camera        camera.Camera

	// frameMu serializes frames with scene swaps and swap chain resizes.
	frameMu *sync.Mutex
	scene   scene.Scene

	// pendingSize holds the last window size reported by the resize callback. The render
	// loop applies it before its next frame.
	pendingSize chan [2]int

	input inputState

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	stopWatch context.CancelFunc
}

// inputState is the mouse and keyboard state the camera bindings need between events.
// Only touched on the window thread.
type inputState struct {
	shift    bool
	dragging bool
}

// Engine owns the device, renderers, asset manager, camera and the active scene, and runs the
// tick and render loops against a window or headlessly.
type Engine interface {
	// Config returns the configuration the engine was created with.
	Config() config.Config

	// Window returns the window, or nil for headless engines.
	Window() window.Window

	// Device returns the GPU device every resource is created on.
	Device() gpu.Device

	// Renderer returns the shared renderer.
	Renderer() renderer.Renderer

	// SceneRenderer returns the scene renderer frames are drawn with.
	SceneRenderer() renderer.SceneRenderer

	// Assets returns the asset manager scenes load through.
	Assets() asset.AssetManager

	// Camera returns the editor camera.
	Camera() camera.Camera

	// Scene returns the active scene.
	Scene() scene.Scene

	// SetScene replaces the active scene. Its assets are loaded before it is shown; load
	// errors are logged and the scene is shown without the failed assets.
	//
	// Parameters:
	//   - s: the scene to show
	SetScene(s scene.Scene)

	// EnableProfiler enables frame and memory statistics in the log.
	EnableProfiler()

	// DisableProfiler disables frame and memory statistics.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap. Pass 0 to uncap.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// RenderFrame draws the active scene once and presents it.
	//
	// Returns:
	//   - error: a frame or present error
	RenderFrame() error

	// RunFrames renders a fixed number of frames on the calling goroutine, without ticks.
	// Used for headless runs.
	//
	// Parameters:
	//   - n: the number of frames
	//
	// Returns:
	//   - error: the first frame error
	RunFrames(n int) error

	// Run starts the tick and render loops and processes window messages until the window
	// closes or Quit is called. Blocks.
	//
	// Returns:
	//   - error: ErrNoWindow for headless engines
	Run() error

	// Quit signals the loops to stop. Safe to call multiple times.
	Quit()

	// Close stops the loops and releases the renderer, the device and the window.
	Close()
}

// NewEngine creates an Engine from a configuration: the device (headless or presenting to a
// window), the renderer and scene renderer, the asset manager, the editor camera and the
// start-up scene.
//
// Parameters:
//   - cfg: the engine configuration
//   - options: functional options overriding parts of the engine
//
// Returns:
//   - Engine: the newly created engine
//   - error: a configuration, device or renderer error
func NewEngine(cfg config.Config, options ...EngineBuilderOption) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}

	e := &engine{
		cfg:             cfg,
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		frameMu:         &sync.Mutex{},
		pendingSize:     make(chan [2]int, 1),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}

	if err := e.createDevice(); err != nil {
		return nil, err
	}

	rendererOpts := []renderer.RendererBuilderOption{}
	if cfg.Assets.ShaderDir != "" {
		rendererOpts = append(rendererOpts, renderer.WithShaderDir(cfg.Assets.ShaderDir))
	}
	r, err := renderer.NewRenderer(e.device, rendererOpts...)
	if err != nil {
		e.device.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.renderer = r

	e.assets = asset.NewAssetManager(r,
		asset.WithRoot(cfg.Assets.Root),
		asset.WithWorkers(cfg.Assets.DecodeWorkers),
	)

	width, height := e.size()
	srOpts := []renderer.SceneRendererBuilderOption{
		renderer.WithSize(width, height),
		renderer.WithExposure(cfg.Renderer.Exposure),
		renderer.WithSwapChainTarget(cfg.Renderer.TargetSwapChain),
	}
	if grid, err := e.assets.LoadTexture(GridTexturePath); err == nil {
		srOpts = append(srOpts, renderer.WithGridTexture(grid))
	} else {
		logger.Debug("grid texture unavailable", "path", GridTexturePath, "err", err)
	}
	sr, err := renderer.NewSceneRenderer(r, srOpts...)
	if err != nil {
		r.Close()
		e.device.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.sceneRenderer = sr

	e.camera = camera.NewCamera(camera.WithController(camera.NewEditorController()))
	e.camera.SetViewportSize(width, height)

	if e.scene == nil {
		s, err := scene.FromConfig(cfg.Scene)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.scene = s
	}
	e.loadScene(e.scene)

	if cfg.Assets.HotReload {
		e.watchShaders()
	}
	if e.window != nil {
		e.bindWindow()
	}

	logger.Info("engine created",
		"backend", e.device.Backend(),
		"width", width, "height", height,
		"scene", e.scene.Name(),
		"objects", len(e.scene.Objects()),
	)
	return e, nil
}

// createDevice creates the configured device unless one was injected. A presenting device
// gets a window from the configuration when none was supplied.
func (e *engine) createDevice() error {
	if e.device != nil {
		return nil
	}
	rc := e.cfg.Renderer
	if rc.Headless {
		d, err := gpu.NewDevice(gpu.BackendTypeHeadless, gpu.WithSize(e.cfg.Window.Width, e.cfg.Window.Height))
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		e.device = d
		return nil
	}

	if e.window == nil {
		e.window = window.NewWindow(
			window.WithTitle(e.cfg.Window.Title),
			window.WithSize(e.cfg.Window.Width, e.cfg.Window.Height),
		)
	}
	d, err := gpu.NewDevice(gpu.BackendTypeWGPU,
		gpu.WithSurface(e.window.SurfaceDescriptor()),
		gpu.WithSize(e.window.Width(), e.window.Height()),
		gpu.WithVSync(rc.VSync),
		gpu.WithForceSoftwareRenderer(rc.ForceSoftware),
	)
	if err != nil {
		_ = e.window.Close()
		return fmt.Errorf("engine: %w", err)
	}
	e.device = d
	return nil
}

func (e *engine) size() (int, int) {
	if e.window != nil {
		return e.window.Width(), e.window.Height()
	}
	return e.cfg.Window.Width, e.cfg.Window.Height
}

func (e *engine) loadScene(s scene.Scene) {
	if err := s.LoadAssets(e.assets); err != nil {
		logger.Warn("scene loaded with missing assets", "scene", s.Name(), "err", err)
	}
}

func (e *engine) watchShaders() {
	ctx, cancel := context.WithCancel(context.Background())
	e.stopWatch = cancel
	go func() {
		if err := e.renderer.WatchShaders(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("shader watcher stopped", "err", err)
		}
	}()
}

// bindWindow routes window events to the swap chain and the editor camera: left drag orbits,
// middle or shift-left drag pans, the wheel zooms, R resets and F frames the scene.
func (e *engine) bindWindow() {
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			_ = e.window.Close()
		default:
		}
	})

	e.window.SetResizeCallback(func(width, height int) {
		if width <= 0 || height <= 0 {
			return
		}
		// Keep only the latest size.
		select {
		case <-e.pendingSize:
		default:
		}
		e.pendingSize <- [2]int{width, height}
	})

	e.window.SetMouseButtonCallback(func(button window.MouseButton, pressed bool, x, y int32) {
		ctrl := e.camera.Controller()
		if ctrl == nil {
			return
		}
		if !pressed {
			if e.input.dragging {
				ctrl.EndDrag()
				e.input.dragging = false
			}
			return
		}
		switch button {
		case window.MouseButtonLeft:
			ctrl.BeginDrag(x, y, e.input.shift)
			e.input.dragging = true
		case window.MouseButtonMiddle:
			ctrl.BeginDrag(x, y, true)
			e.input.dragging = true
		}
	})

	e.window.SetMouseMoveCallback(func(x, y int32) {
		if ctrl := e.camera.Controller(); ctrl != nil {
			ctrl.Drag(x, y)
		}
	})

	e.window.SetScrollCallback(func(delta float32) {
		if ctrl := e.camera.Controller(); ctrl != nil {
			ctrl.Zoom(delta)
		}
	})

	e.window.SetKeyDownCallback(func(keyCode uint32) {
		switch {
		case common.IsShift(keyCode):
			e.input.shift = true
		case keyCode == common.KeyR:
			e.resetCamera()
		case keyCode == common.KeyF:
			e.frameScene()
		}
	})

	e.window.SetKeyUpCallback(func(keyCode uint32) {
		if common.IsShift(keyCode) {
			e.input.shift = false
		}
	})
}

func (e *engine) resetCamera() {
	e.camera.SetController(camera.NewEditorController())
	e.input.dragging = false
}

// frameScene points the controller at the enabled meshes of the active scene.
func (e *engine) frameScene() {
	ctrl := e.camera.Controller()
	if ctrl == nil {
		return
	}
	center, radius, ok := sceneBounds(e.Scene(), e.assets)
	if !ok {
		return
	}
	ctrl.SetTarget(center)
	ctrl.SetRadius(radius * 2.5)
}

// sceneBounds returns a sphere around the enabled mesh objects of a scene. Mesh bounding
// radii are scaled by the largest axis of their object's scale.
func sceneBounds(s scene.Scene, assets asset.AssetManager) (mgl32.Vec3, float32, bool) {
	type sphere struct {
		c mgl32.Vec3
		r float32
	}
	var spheres []sphere
	for _, obj := range s.Objects() {
		if !obj.Enabled() || obj.MeshPath() == "" {
			continue
		}
		mesh := assets.GetMesh(obj.MeshPath())
		if !mesh.IsValid() {
			continue
		}
		t := obj.Transform()
		scale := max(t.Scale[0], t.Scale[1], t.Scale[2])
		spheres = append(spheres, sphere{c: t.Position, r: mesh.BoundingRadius * scale})
	}
	if len(spheres) == 0 {
		return mgl32.Vec3{}, 0, false
	}

	var center mgl32.Vec3
	for _, sp := range spheres {
		center = center.Add(sp.c)
	}
	center = center.Mul(1 / float32(len(spheres)))

	var radius float32
	for _, sp := range spheres {
		radius = max(radius, sp.c.Sub(center).Len()+sp.r)
	}
	if radius <= 0 {
		radius = 1
	}
	return center, radius, true
}

func (e *engine) Config() config.Config {
	return e.cfg
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Device() gpu.Device {
	return e.device
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) SceneRenderer() renderer.SceneRenderer {
	return e.sceneRenderer
}

func (e *engine) Assets() asset.AssetManager {
	return e.assets
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Scene() scene.Scene {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.scene
}

func (e *engine) SetScene(s scene.Scene) {
	e.loadScene(s)
	e.frameMu.Lock()
	e.scene = s
	e.frameMu.Unlock()
	logger.Info("scene activated", "scene", s.Name(), "objects", len(s.Objects()))
}

func (e *engine) RenderFrame() error {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	select {
	case size := <-e.pendingSize:
		e.sceneRenderer.Resize(size[0], size[1])
		e.camera.SetViewportSize(size[0], size[1])
	default:
	}

	e.camera.Update()
	if err := e.scene.Render(e.sceneRenderer, e.assets, e.camera); err != nil {
		return err
	}
	if !e.cfg.Renderer.TargetSwapChain {
		return nil
	}
	return e.device.Present(e.cfg.Renderer.VSync)
}

func (e *engine) RunFrames(n int) error {
	last := time.Now()
	for i := 0; i < n; i++ {
		if err := e.RenderFrame(); err != nil {
			return fmt.Errorf("engine: frame %d: %w", i, err)
		}
		now := time.Now()
		e.afterFrame(float32(now.Sub(last).Seconds()))
		last = now
	}
	return nil
}

func (e *engine) Run() error {
	if e.window == nil {
		return ErrNoWindow
	}
	e.running.Store(true)
	e.handle()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
	return nil
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit. The window closes
// itself on its own thread once it sees the channel closed.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

func (e *engine) Close() {
	e.signalQuit()
	e.wg.Wait()
	if e.stopWatch != nil {
		e.stopWatch()
	}
	if e.assets != nil {
		e.assets.Close()
	}
	if e.renderer != nil {
		e.renderer.Close()
	}
	if e.device != nil {
		e.device.Close()
	}
	if e.window != nil && e.window.IsRunning() {
		_ = e.window.Close()
	}
}

// handle launches the tick and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// A frame error is logged and the loop continues with the next frame. A panic, such as a
// frame contract violation, is logged and stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("render loop stopped", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if err := e.RenderFrame(); err != nil {
				logger.Error("frame failed", "err", err)
			}
			e.afterFrame(dt)

			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

func (e *engine) afterFrame(dt float32) {
	if e.renderCallback != nil {
		e.renderCallback(dt)
	}
	if e.profilingEnabled.Load() {
		e.profiler.Tick(e.device)
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickDuration(fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Replace any pending update that the tick loop has not picked up yet.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

func tickDuration(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
