package loader

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/lumen/common"
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/model"
)

var (
	// ErrUnsupportedFormat is returned for files no backend can read.
	ErrUnsupportedFormat = errors.New("loader: unsupported model format")

	// ErrEmptyMesh is returned for files without triangle geometry.
	ErrEmptyMesh = errors.New("loader: model has no geometry")
)

// ImportedMesh is the CPU side of a model file: one vertex and index stream shared by every
// submesh, plus the materials the submeshes reference.
type ImportedMesh struct {
	Name string
	Path string

	Vertices  []model.Vertex
	Indices   []uint32
	Submeshes []model.Submesh
	Materials []*common.ImportedMaterial
}

// BackendType identifies a model file format.
type BackendType int

const (
	// BackendTypeGLTF reads glTF 2.0 JSON and GLB files.
	BackendTypeGLTF BackendType = iota
)

// importer is the implementation of the Importer interface.
type importer struct {
	backends map[BackendType]importerBackend

	// Pre-creation config collected from builder options
	textureDir string
}

// Importer reads model files into ImportedMesh values. It holds no cache; the asset manager
// caches the uploaded results.
type Importer interface {
	// Import reads a model file, choosing the backend by extension.
	//
	// Parameters:
	//   - path: the model file
	//
	// Returns:
	//   - *ImportedMesh: the merged geometry, submeshes and materials
	//   - error: ErrUnsupportedFormat, ErrEmptyMesh, or a parse error
	Import(path string) (*ImportedMesh, error)

	// ImportReader reads a model from a stream.
	//
	// Parameters:
	//   - name: the name given to the result
	//   - backend: the format of the stream
	//   - r: the reader providing model data
	//   - isBinary: true for the binary container of the format
	//
	// Returns:
	//   - *ImportedMesh: the merged geometry, submeshes and materials
	//   - error: error if loading fails
	ImportReader(name string, backend BackendType, r io.Reader, isBinary bool) (*ImportedMesh, error)
}

var _ Importer = &importer{}

// NewImporter creates an Importer with every known backend.
//
// Parameters:
//   - options: a variadic list of ImporterBuilderOption functions
//
// Returns:
//   - Importer: the new importer
func NewImporter(options ...ImporterBuilderOption) Importer {
	imp := &importer{
		textureDir: "textures",
	}
	for _, option := range options {
		option(imp)
	}
	imp.backends = map[BackendType]importerBackend{
		BackendTypeGLTF: newGLTFImporter(imp.textureDir),
	}
	return imp
}

func (imp *importer) Import(path string) (*ImportedMesh, error) {
	backend, err := imp.resolveBackend(path)
	if err != nil {
		return nil, err
	}
	mesh, err := backend.Import(path)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", path, err)
	}
	logger.Debug("model imported", "path", path, "vertices", len(mesh.Vertices), "submeshes", len(mesh.Submeshes), "materials", len(mesh.Materials))
	return mesh, nil
}

func (imp *importer) ImportReader(name string, backend BackendType, r io.Reader, isBinary bool) (*ImportedMesh, error) {
	b, ok := imp.backends[backend]
	if !ok {
		return nil, fmt.Errorf("%w: backend %d", ErrUnsupportedFormat, backend)
	}
	mesh, err := b.ImportReader(name, r, isBinary)
	if err != nil {
		return nil, fmt.Errorf("failed to import %q from reader: %w", name, err)
	}
	return mesh, nil
}

// resolveBackend selects a backend by file extension.
func (imp *importer) resolveBackend(path string) (importerBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		return imp.backends[BackendTypeGLTF], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
