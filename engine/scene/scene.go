package scene

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/lumen/engine/asset"
	"github.com/Carmen-Shannon/lumen/engine/camera"
	"github.com/Carmen-Shannon/lumen/engine/game_object"
	"github.com/Carmen-Shannon/lumen/engine/light"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/model"
	"github.com/Carmen-Shannon/lumen/engine/renderer"
)

// State is the play state of a scene.
type State int

const (
	// StateEdit renders the scene for editing.
	StateEdit State = iota

	// StateRunning renders the scene while it plays.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateEdit:
		return "Edit"
	case StateRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// Scene is a registry of GameObjects rendered through a SceneRenderer. Meshes and environment
// maps are referenced by asset path and resolved through an AssetManager each frame.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// State returns the scene's play state.
	State() State

	// SetState switches between editing and running.
	SetState(state State)

	// Add registers an object and returns its ID. Objects without an ID are assigned the next
	// free one.
	//
	// Parameters:
	//   - obj: the object to register
	//
	// Returns:
	//   - uint64: the object's ID
	Add(obj game_object.GameObject) uint64

	// Remove unregisters an object.
	//
	// Parameters:
	//   - id: the object's ID
	//
	// Returns:
	//   - bool: false when no object has that ID
	Remove(id uint64) bool

	// Get returns the object with an ID, or nil.
	Get(id uint64) game_object.GameObject

	// Find returns the first object, in ID order, with a name, or nil.
	//
	// Parameters:
	//   - name: the object's tag
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Find(name string) game_object.GameObject

	// Objects returns every registered object in ID order.
	Objects() []game_object.GameObject

	// Environment builds the lighting of one frame: the directional and point lights of the
	// enabled objects and the environment map of the first sky light.
	//
	// Parameters:
	//   - assets: the asset manager the sky light's map is loaded through
	//
	// Returns:
	//   - *light.Environment: the frame's lighting
	Environment(assets asset.AssetManager) *light.Environment

	// LoadAssets loads every mesh and environment map the scene refers to, decoding them in
	// parallel.
	//
	// Parameters:
	//   - assets: the asset manager to load through
	//
	// Returns:
	//   - error: the first load error; the remaining assets are still loaded
	LoadAssets(assets asset.AssetManager) error

	// Render draws one frame: BeginScene with the frame's Environment, one SubmitMesh per
	// enabled mesh object, then Flush.
	//
	// Parameters:
	//   - sr: the scene renderer to record into
	//   - assets: the asset manager meshes are resolved through
	//   - cam: the camera to render from
	//
	// Returns:
	//   - error: the Flush error
	Render(sr renderer.SceneRenderer, assets asset.AssetManager, cam camera.Camera) error
}

type scene struct {
	mu *sync.RWMutex

	name  string
	state State

	registry map[uint64]game_object.GameObject
	nextID   uint64

	// failed holds asset paths that failed to load, so a broken file is reported once
	// instead of every frame.
	failed map[string]bool
}

var _ Scene = &scene{}

// NewScene creates an empty scene in the edit state.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:       &sync.RWMutex{},
		name:     name,
		registry: make(map[uint64]game_object.GameObject),
		nextID:   1,
		failed:   make(map[string]bool),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *scene) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(obj)
}

func (s *scene) add(obj game_object.GameObject) uint64 {
	if obj.ID() == 0 {
		obj.SetID(s.nextID)
	}
	if obj.ID() >= s.nextID {
		s.nextID = obj.ID() + 1
	}
	s.registry[obj.ID()] = obj
	return obj.ID()
}

func (s *scene) Remove(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registry[id]; !ok {
		return false
	}
	delete(s.registry, id)
	return true
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Find(name string) game_object.GameObject {
	for _, obj := range s.Objects() {
		if obj.Name() == name {
			return obj
		}
	}
	return nil
}

func (s *scene) Objects() []game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects()
}

func (s *scene) objects() []game_object.GameObject {
	ids := make([]uint64, 0, len(s.registry))
	for id := range s.registry {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	objs := make([]game_object.GameObject, len(ids))
	for i, id := range ids {
		objs[i] = s.registry[id]
	}
	return objs
}

func (s *scene) Environment(assets asset.AssetManager) *light.Environment {
	env := light.NewEnvironment()
	skyDone := false
	for _, obj := range s.Objects() {
		if !obj.Enabled() {
			continue
		}
		if sky := obj.SkyLight(); sky != nil && !skyDone {
			skyDone = true
			if m := s.environmentMap(assets, sky.EnvironmentPath); m.IsValid() {
				env.SetEnvironmentMap(m)
			}
		}
		if l := obj.Light(); l != nil {
			pos := obj.Transform().Position
			switch l.Kind {
			case game_object.LightDirectional:
				env.AddLight(light.NewDirectionalLight(l.Color, l.Intensity, pos.Mul(-1)))
			case game_object.LightPoint:
				env.AddLight(light.NewPointLight(l.Color, l.Intensity, pos))
			}
		}
	}
	return env
}

func (s *scene) LoadAssets(assets asset.AssetManager) error {
	var paths []string
	for _, obj := range s.Objects() {
		if sky := obj.SkyLight(); sky != nil && sky.EnvironmentPath != "" {
			paths = append(paths, sky.EnvironmentPath)
		}
		if p := obj.MeshPath(); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	if err := assets.Preload(paths...); err != nil {
		return fmt.Errorf("scene: loading assets of %s: %w", s.Name(), err)
	}
	return nil
}

func (s *scene) Render(sr renderer.SceneRenderer, assets asset.AssetManager, cam camera.Camera) error {
	env := s.Environment(assets)
	sr.BeginScene(cam, env)
	for _, obj := range s.Objects() {
		if !obj.Enabled() || obj.MeshPath() == "" {
			continue
		}
		mesh := s.mesh(assets, obj.MeshPath())
		if !mesh.IsValid() {
			continue
		}
		sr.SubmitMesh(mesh, obj.Matrix(), obj.MaterialOverrides()...)
	}
	return sr.Flush()
}

// mesh returns a cached mesh, loading it on first use.
func (s *scene) mesh(assets asset.AssetManager, path string) *model.Mesh {
	if m := assets.GetMesh(path); m.IsValid() {
		return m
	}
	if s.hasFailed(path) {
		return nil
	}
	m, err := assets.LoadMesh(path)
	if err != nil {
		s.markFailed(path, err)
		return nil
	}
	return m
}

// environmentMap returns a cached environment map, baking it on first use.
func (s *scene) environmentMap(assets asset.AssetManager, path string) *light.EnvironmentMap {
	if path == "" {
		return nil
	}
	if m := assets.GetEnvironmentMap(path); m.IsValid() {
		return m
	}
	if s.hasFailed(path) {
		return nil
	}
	m, err := assets.LoadEnvironmentMap(path)
	if err != nil {
		s.markFailed(path, err)
		return nil
	}
	return m
}

func (s *scene) hasFailed(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed[path]
}

func (s *scene) markFailed(path string, err error) {
	s.mu.Lock()
	s.failed[path] = true
	s.mu.Unlock()
	logger.Warn("scene asset unavailable", "scene", s.Name(), "path", path, "err", err)
}
