// Package asset loads textures, meshes and environment maps from disk, uploads them through
// the renderer and caches the results by path.
package asset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/lumen/common"
	"github.com/Carmen-Shannon/lumen/engine/light"
	"github.com/Carmen-Shannon/lumen/engine/loader"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/model"
	"github.com/Carmen-Shannon/lumen/engine/renderer"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/material"
	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// TextureMipCount is the number of mips uploaded textures get, clamped to their size.
	TextureMipCount = 6

	// TextureAnisotropy is the sampler anisotropy of uploaded textures.
	TextureAnisotropy = 16

	defaultWorkers = 4
)

// ErrClosed is returned by Preload once the manager is closed.
var ErrClosed = errors.New("asset: manager is closed")

// assetKind classifies a path by its extension.
type assetKind int

const (
	kindUnknown assetKind = iota
	kindTexture
	kindMesh
	kindEnvironment
)

func kindOf(path string) assetKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return kindTexture
	case ".gltf", ".glb":
		return kindMesh
	case ".hdr":
		return kindEnvironment
	default:
		return kindUnknown
	}
}

// decoded is the CPU side of an asset, produced on a pool worker and uploaded on the caller.
type decoded struct {
	path string
	kind assetKind

	bgra          []byte
	width, height int

	hdr  *common.HDRImage
	mesh *loader.ImportedMesh

	err error
}

// assetManager is the implementation of the AssetManager interface.
type assetManager struct {
	mu *sync.Mutex

	renderer renderer.Renderer
	importer loader.Importer
	pool     worker.DynamicWorkerPool
	closed   bool

	textures     map[string]gpu.Texture
	meshes       map[string]*model.Mesh
	environments map[string]*light.EnvironmentMap

	// Pre-creation config collected from builder options
	root    string
	workers int
}

// AssetManager loads and caches the assets a scene refers to by path. Relative paths are
// resolved against the configured root. Every loader returns the cached asset when the path
// was loaded before.
type AssetManager interface {
	// LoadTexture decodes an image file and uploads it as a mipmapped BGRA8 texture.
	//
	// Parameters:
	//   - path: the image file
	//
	// Returns:
	//   - gpu.Texture: the uploaded texture
	//   - error: a decode or device error
	LoadTexture(path string) (gpu.Texture, error)

	// LoadMesh imports a glTF file and builds a mesh_pbr material for each of its materials.
	//
	// Parameters:
	//   - path: the .gltf or .glb file
	//
	// Returns:
	//   - *model.Mesh: the uploaded mesh
	//   - error: an import, texture or device error
	LoadMesh(path string) (*model.Mesh, error)

	// LoadEnvironmentMap decodes a Radiance .hdr file and bakes it into radiance and
	// irradiance cubes.
	//
	// Parameters:
	//   - path: the .hdr file
	//
	// Returns:
	//   - *light.EnvironmentMap: the baked map
	//   - error: a decode or bake error
	LoadEnvironmentMap(path string) (*light.EnvironmentMap, error)

	// GetTexture returns a loaded texture, or nil when the path was never loaded.
	GetTexture(path string) gpu.Texture

	// GetMesh returns a loaded mesh, or an invalid nil mesh when the path was never loaded.
	GetMesh(path string) *model.Mesh

	// GetEnvironmentMap returns a baked map, or an invalid nil map when the path was never
	// loaded.
	GetEnvironmentMap(path string) *light.EnvironmentMap

	// Preload decodes every path in parallel on the worker pool, then uploads the results
	// one by one on the calling goroutine. Paths already cached are skipped.
	//
	// Parameters:
	//   - paths: texture, mesh and .hdr files in any order
	//
	// Returns:
	//   - error: the first decode or upload error; the remaining paths are still loaded
	Preload(paths ...string) error

	// Root returns the directory relative paths are resolved against.
	Root() string

	// Close stops the decode worker pool. Cached assets stay readable and the single-path
	// loaders keep working on the calling goroutine; Preload returns ErrClosed. Calling
	// Close again does nothing.
	Close()
}

var _ AssetManager = &assetManager{}

// NewAssetManager creates an empty asset manager that uploads through r.
//
// Parameters:
//   - r: the rendering context assets are created with
//   - options: variadic list of AssetManagerBuilderOption functions
//
// Returns:
//   - AssetManager: the new manager
func NewAssetManager(r renderer.Renderer, options ...AssetManagerBuilderOption) AssetManager {
	m := &assetManager{
		mu:           &sync.Mutex{},
		renderer:     r,
		textures:     make(map[string]gpu.Texture),
		meshes:       make(map[string]*model.Mesh),
		environments: make(map[string]*light.EnvironmentMap),
		workers:      defaultWorkers,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.importer == nil {
		m.importer = loader.NewImporter()
	}
	m.pool = worker.NewDynamicWorkerPool(m.workers, 256, 1*time.Second)
	return m
}

func (m *assetManager) Root() string {
	return m.root
}

func (m *assetManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	m.pool.Stop()
}

// resolve turns a caller path into the cache key and file path.
func (m *assetManager) resolve(path string) string {
	if m.root == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(m.root, path)
}

// lookup reads one of the caches under the manager lock.
func lookup[V any](m *assetManager, cache map[string]V, key string) V {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cache[key]
}

func (m *assetManager) GetTexture(path string) gpu.Texture {
	return lookup(m, m.textures, m.resolve(path))
}

func (m *assetManager) GetMesh(path string) *model.Mesh {
	return lookup(m, m.meshes, m.resolve(path))
}

func (m *assetManager) GetEnvironmentMap(path string) *light.EnvironmentMap {
	return lookup(m, m.environments, m.resolve(path))
}

func (m *assetManager) LoadTexture(path string) (gpu.Texture, error) {
	key := m.resolve(path)
	if tex := lookup(m, m.textures, key); tex != nil {
		return tex, nil
	}
	d := decodeTexture(key)
	if d.err != nil {
		return nil, d.err
	}
	return m.uploadTexture(d)
}

func (m *assetManager) LoadMesh(path string) (*model.Mesh, error) {
	key := m.resolve(path)
	if mesh := lookup(m, m.meshes, key); mesh != nil {
		return mesh, nil
	}
	d := m.decodeMesh(key)
	if d.err != nil {
		return nil, d.err
	}
	return m.uploadMesh(d)
}

func (m *assetManager) LoadEnvironmentMap(path string) (*light.EnvironmentMap, error) {
	key := m.resolve(path)
	if env := lookup(m, m.environments, key); env != nil {
		return env, nil
	}
	d := decodeEnvironment(key)
	if d.err != nil {
		return nil, d.err
	}
	return m.uploadEnvironment(d)
}

func (m *assetManager) Preload(paths ...string) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	var pending []string
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		key := m.resolve(p)
		if seen[key] || m.cached(key) {
			continue
		}
		seen[key] = true
		pending = append(pending, key)
	}
	if len(pending) == 0 {
		return nil
	}

	results := make([]decoded, len(pending))
	var wg sync.WaitGroup
	for i, key := range pending {
		wg.Add(1)
		idx, k := i, key
		m.pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				results[idx] = m.decode(k)
				return nil, results[idx].err
			},
		})
	}
	wg.Wait()

	var firstErr error
	for _, d := range results {
		err := d.err
		if err == nil {
			err = m.upload(d)
		}
		if err != nil {
			logger.Warn("preload failed", "path", d.path, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	logger.Debug("preloaded assets", "count", len(pending), "workers", m.workers)
	return firstErr
}

func (m *assetManager) cached(key string) bool {
	switch kindOf(key) {
	case kindTexture:
		return lookup(m, m.textures, key) != nil
	case kindMesh:
		return lookup(m, m.meshes, key) != nil
	case kindEnvironment:
		return lookup(m, m.environments, key) != nil
	}
	return false
}

// decode runs the CPU half of a load. It is safe to call from pool workers.
func (m *assetManager) decode(key string) decoded {
	switch kindOf(key) {
	case kindTexture:
		return decodeTexture(key)
	case kindMesh:
		return m.decodeMesh(key)
	case kindEnvironment:
		return decodeEnvironment(key)
	}
	return decoded{path: key, err: fmt.Errorf("asset: unsupported file type %q", filepath.Ext(key))}
}

// upload runs the GPU half of a load on the caller goroutine.
func (m *assetManager) upload(d decoded) error {
	var err error
	switch d.kind {
	case kindTexture:
		_, err = m.uploadTexture(d)
	case kindMesh:
		_, err = m.uploadMesh(d)
	case kindEnvironment:
		_, err = m.uploadEnvironment(d)
	}
	return err
}

func decodeTexture(key string) decoded {
	d := decoded{path: key, kind: kindTexture}
	img, err := common.DecodeImageFile(key)
	if err != nil {
		d.err = err
		return d
	}
	d.bgra, d.width, d.height = common.ToBGRA(img)
	return d
}

func (m *assetManager) decodeMesh(key string) decoded {
	d := decoded{path: key, kind: kindMesh}
	d.mesh, d.err = m.importer.Import(key)
	return d
}

func decodeEnvironment(key string) decoded {
	d := decoded{path: key, kind: kindEnvironment}
	d.hdr, d.err = common.DecodeHDRFile(key)
	return d
}

func (m *assetManager) uploadTexture(d decoded) (gpu.Texture, error) {
	tex, err := m.createTexture(d.path, d.bgra, d.width, d.height, wgpu.AddressModeRepeat)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.textures[d.path] = tex
	m.mu.Unlock()
	logger.Debug("loaded texture", "path", d.path, "width", d.width, "height", d.height, "mips", tex.MipCount())
	return tex, nil
}

// createTexture uploads BGRA8 pixels and records their mip chain.
func (m *assetManager) createTexture(label string, bgra []byte, width, height int, wrap wgpu.AddressMode) (gpu.Texture, error) {
	device := m.renderer.Device()
	mips := min(TextureMipCount, renderer.MipCount(max(width, height)))
	tex, err := device.CreateTexture(gpu.TextureDesc{
		Label:      label,
		Width:      width,
		Height:     height,
		MipCount:   mips,
		Format:     wgpu.TextureFormatBGRA8Unorm,
		Usage:      gpu.TextureUsageSampled,
		Wrap:       wrap,
		Filter:     wgpu.FilterModeLinear,
		Anisotropy: TextureAnisotropy,
	}, &gpu.ImageData{Pixels: bgra, BytesPerRow: width * 4})
	if err != nil {
		return nil, fmt.Errorf("asset: uploading %s: %w", label, err)
	}
	if mips > 1 {
		rec := device.NewCommandRecorder("Mips " + filepath.Base(label))
		rec.GenerateMips(tex)
		rec.Finish()
		if err := device.ExecuteCommandBuffer(rec); err != nil {
			return nil, fmt.Errorf("asset: generating mips for %s: %w", label, err)
		}
	}
	return tex, nil
}

// importedTexture loads a texture referenced by a model, applying its channel selection and
// wrap mode. Textures shared by several materials are uploaded once.
func (m *assetManager) importedTexture(it *common.ImportedTexture) (gpu.Texture, error) {
	key := it.Key()
	if tex := lookup(m, m.textures, key); tex != nil {
		return tex, nil
	}

	img, err := it.Decode()
	if err != nil {
		return nil, err
	}
	bgra, w, h := common.ToBGRA(img)
	common.SelectChannel(bgra, it.Channel)

	tex, err := m.createTexture(key, bgra, w, h, it.Wrap)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.textures[key] = tex
	m.mu.Unlock()
	return tex, nil
}

func (m *assetManager) uploadMesh(d decoded) (*model.Mesh, error) {
	imported := d.mesh
	mats := make([]material.Material, len(imported.Materials))
	for i, imp := range imported.Materials {
		mat, err := m.meshMaterial(imp)
		if err != nil {
			return nil, fmt.Errorf("asset: material %d of %s: %w", i, d.path, err)
		}
		mats[i] = mat
	}

	mesh, err := model.NewMesh(m.renderer.Device(), imported.Vertices, imported.Indices,
		model.WithName(imported.Name),
		model.WithPath(d.path),
		model.WithSubmeshes(imported.Submeshes...),
		model.WithMaterials(mats...),
	)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.meshes[d.path] = mesh
	m.mu.Unlock()
	logger.Debug("loaded mesh", "path", d.path, "submeshes", len(mesh.Submeshes), "materials", len(mats))
	return mesh, nil
}

// meshMaterial builds the mesh_pbr material of one imported material.
func (m *assetManager) meshMaterial(imp *common.ImportedMaterial) (material.Material, error) {
	var flags material.Flags
	if imp.Transparent {
		flags |= material.FlagTransparent
	}
	if imp.TwoSided {
		flags |= material.FlagTwoSided
	}
	mat := m.renderer.NewMaterial(shader.MeshPBRShader, material.WithName(imp.Name), material.WithFlags(flags))

	c := imp.AlbedoColor
	mat.SetUniform("u_AlbedoColor", material.Vec4(mgl32.Vec4{c[0], c[1], c[2], c[3]}))
	mat.SetUniform("u_Metalness", material.Float(imp.Metalness))
	mat.SetUniform("u_Roughness", material.Float(imp.Roughness))
	mat.SetUniform("u_Emission", material.Float(imp.Emission))
	mat.SetUniform("u_EnvMapIntensity", material.Float(1))

	maps := []struct {
		tex     *common.ImportedTexture
		texture string
		flag    string
	}{
		{imp.AlbedoTexture, "u_AlbedoTexture", "u_UseAlbedoMap"},
		{imp.NormalTexture, "u_NormalTexture", "u_UseNormalMap"},
		{imp.MetalnessTexture, "u_MetalnessTexture", "u_UseMetalnessMap"},
		{imp.RoughnessTexture, "u_RoughnessTexture", "u_UseRoughnessMap"},
	}
	for _, mp := range maps {
		if mp.tex == nil {
			mat.SetUniform(mp.flag, material.Bool(false))
			continue
		}
		tex, err := m.importedTexture(mp.tex)
		if err != nil {
			// A missing map falls back to the factor instead of failing the mesh.
			logger.Warn("texture unavailable, using material factor", "material", imp.Name, "texture", mp.tex.Name, "err", err)
			mat.SetUniform(mp.flag, material.Bool(false))
			continue
		}
		mat.SetTexture(mp.texture, tex)
		mat.SetUniform(mp.flag, material.Bool(true))
	}
	return mat, nil
}

func (m *assetManager) uploadEnvironment(d decoded) (*light.EnvironmentMap, error) {
	src, err := m.renderer.CreateHDRTexture(d.path, d.hdr.Width, d.hdr.Height, d.hdr.Pix)
	if err != nil {
		return nil, fmt.Errorf("asset: uploading %s: %w", d.path, err)
	}
	// The bake copies everything it needs out of the equirect source.
	env, err := m.renderer.BakeEnvironment(d.path, src)
	m.renderer.Device().ReleaseTexture(src)
	if err != nil {
		return nil, fmt.Errorf("asset: baking %s: %w", d.path, err)
	}
	m.mu.Lock()
	m.environments[d.path] = env
	m.mu.Unlock()
	logger.Info("baked environment", "path", d.path, "radiance_mips", env.Radiance.MipCount())
	return env, nil
}
