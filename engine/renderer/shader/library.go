package shader

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/fsnotify/fsnotify"
)

// shaderExt is the file extension of shader sources.
const shaderExt = ".wgsl"

// builtinShaders holds the engine's own shaders.
//
//go:embed assets/*.wgsl
var builtinShaders embed.FS

// Names of the built-in shaders.
const (
	MeshPBRShader              = "mesh_pbr_shader"
	GridShader                 = "grid_shader"
	SkyboxShader               = "skybox_shader"
	CompositeShader            = "composite_shader"
	FullscreenQuadShader       = "fullscreen_quad_shader"
	EquirectToCubeShader       = "environment_equirect_to_cube"
	EnvironmentPrefilterShader = "environment_prefilter"
	IrradianceShader           = "environment_irradiance"
	BRDFShader                 = "environment_brdf"
)

// library is the implementation of the Library interface.
type library struct {
	mu      *sync.Mutex
	device  gpu.Device
	shaders map[string]Shader
	compute map[string]ComputeShader

	// dirs are the directories loaded from disk, watched by Watch.
	dirs []string
}

// Library maps names to compiled render and compute shaders.
type Library interface {
	// LoadBuiltins compiles the shaders embedded in the engine.
	//
	// Returns:
	//   - error: the joined compile errors, if any
	LoadBuiltins() error

	// Load compiles every .wgsl file in dir. Each file's stem is its shader name; sources
	// with a @compute entry point become compute shaders. Shaders with names already in the
	// library are replaced.
	//
	// Parameters:
	//   - dir: the directory to load
	//
	// Returns:
	//   - error: the joined read and compile errors, if any
	Load(dir string) error

	// Add compiles source under name, replacing any shader of the same name.
	//
	// Parameters:
	//   - name: the shader name
	//   - source: the source in the declaration dialect
	//
	// Returns:
	//   - error: the compile error
	Add(name, source string) error

	// Get returns a render shader. An unknown name is fatal.
	Get(name string) Shader

	// GetCompute returns a compute shader. An unknown name is fatal.
	GetCompute(name string) ComputeShader

	// Has reports whether a render or compute shader with the name exists.
	Has(name string) bool

	// Names returns every shader name, sorted.
	Names() []string

	// Watch reloads shaders whose files change in any directory passed to Load, until ctx
	// is cancelled. A failed reload is logged and the previous program is kept.
	//
	// Parameters:
	//   - ctx: cancels the watch
	//
	// Returns:
	//   - error: an error if the file watcher could not be started
	Watch(ctx context.Context) error
}

var _ Library = &library{}

// NewLibrary creates an empty Library compiling onto device.
//
// Parameters:
//   - device: the device programs are created on
//
// Returns:
//   - Library: an empty library
func NewLibrary(device gpu.Device) Library {
	return &library{
		mu:      &sync.Mutex{},
		device:  device,
		shaders: make(map[string]Shader),
		compute: make(map[string]ComputeShader),
	}
}

// IsComputeSource reports whether source declares a @compute entry point.
func IsComputeSource(source string) bool {
	return strings.Contains(maskComments(source), "@compute")
}

func (l *library) LoadBuiltins() error {
	return l.loadFS(builtinShaders, "assets")
}

func (l *library) Load(dir string) error {
	if err := l.loadFS(os.DirFS(dir), "."); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !slices.Contains(l.dirs, dir) {
		l.dirs = append(l.dirs, dir)
	}
	return nil
}

func (l *library) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("shader: reading %s: %w", dir, err)
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != shaderExt {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, e.Name())))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := l.Add(strings.TrimSuffix(e.Name(), shaderExt), string(data)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *library) Add(name, source string) error {
	compute := IsComputeSource(source)
	s, err := newShader(l.device, name, source, compute)
	if err != nil {
		return fmt.Errorf("shader: compiling %s: %w", name, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.shaders, name)
	delete(l.compute, name)
	if compute {
		l.compute[name] = &computeShader{s}
	} else {
		l.shaders[name] = s
	}
	logger.Debug("shader loaded", "shader", name, "compute", compute)
	return nil
}

func (l *library) Get(name string) Shader {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.shaders[name]
	if !ok {
		logger.Error("shader not found", "shader", name)
		panic(fmt.Sprintf("shader: shader %q not found", name))
	}
	return s
}

func (l *library) GetCompute(name string) ComputeShader {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.compute[name]
	if !ok {
		logger.Error("compute shader not found", "shader", name)
		panic(fmt.Sprintf("shader: compute shader %q not found", name))
	}
	return s
}

func (l *library) Has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, render := l.shaders[name]
	_, compute := l.compute[name]
	return render || compute
}

func (l *library) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.shaders)+len(l.compute))
	for name := range l.shaders {
		names = append(names, name)
	}
	for name := range l.compute {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (l *library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("shader: starting watcher: %w", err)
	}
	l.mu.Lock()
	dirs := slices.Clone(l.dirs)
	l.mu.Unlock()
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("shader: watching %s: %w", dir, err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-watcher.Events:
				if !ok {
					return
				}
				if e.Op&(fsnotify.Write|fsnotify.Create) != 0 && filepath.Ext(e.Name) == shaderExt {
					l.reloadFile(e.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("shader watcher error", "err", err)
			}
		}
	}()
	return nil
}

// reloadFile recompiles the shader backed by path, keeping the previous program on failure.
func (l *library) reloadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("shader reload failed", "path", path, "err", err)
		return
	}
	name := strings.TrimSuffix(filepath.Base(path), shaderExt)

	l.mu.Lock()
	var reloader interface{ Reload(string) error }
	if s, ok := l.shaders[name]; ok {
		reloader = s
	} else if s, ok := l.compute[name]; ok {
		reloader = s
	}
	l.mu.Unlock()

	if reloader == nil {
		err = l.Add(name, string(data))
	} else {
		err = reloader.Reload(string(data))
	}
	if err != nil {
		logger.Error("shader reload failed, keeping previous program", "shader", name, "err", err)
	}
}
