package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/lumen/engine/model"
)

// gltfImporter is the importerBackend for .gltf and .glb files.
type gltfImporter struct {
	textureDir string
}

var _ importerBackend = &gltfImporter{}

func newGLTFImporter(textureDir string) *gltfImporter {
	return &gltfImporter{textureDir: textureDir}
}

func (imp *gltfImporter) Import(path string) (*ImportedMesh, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mesh, err := imp.importFromParser(parser, name)
	if err != nil {
		return nil, err
	}
	mesh.Path = path
	return mesh, nil
}

func (imp *gltfImporter) ImportReader(name string, r io.Reader, isBinary bool) (*ImportedMesh, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isBinary); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return imp.importFromParser(parser, name)
}

// importFromParser merges every primitive into one vertex and index stream. Indices stay
// local to their primitive; the submesh VertexOffset rebases them at draw time.
func (imp *gltfImporter) importFromParser(parser gltfParser, name string) (*ImportedMesh, error) {
	doc := parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document after parsing")
	}
	if len(doc.ExtensionsRequired) > 0 {
		return nil, fmt.Errorf("%w: required extensions %v", ErrUnsupportedFormat, doc.ExtensionsRequired)
	}

	prims, err := newGLTFMeshExtractor(parser).ExtractPrimitives()
	if err != nil {
		return nil, fmt.Errorf("mesh extraction failed: %w", err)
	}
	if len(prims) == 0 {
		return nil, fmt.Errorf("%w: %s contains no triangle primitives", ErrEmptyMesh, name)
	}

	materials, err := newGLTFMaterialExtractor(parser, imp.textureDir).ExtractAllMaterials()
	if err != nil {
		return nil, fmt.Errorf("material extraction failed: %w", err)
	}

	out := &ImportedMesh{Name: name, Materials: materials}
	defaultMaterial := -1
	for _, p := range prims {
		materialIndex := p.MaterialIndex
		if materialIndex < 0 || materialIndex >= len(materials) {
			if defaultMaterial < 0 {
				defaultMaterial = len(out.Materials)
				out.Materials = append(out.Materials, defaultImportedMaterial())
			}
			materialIndex = defaultMaterial
		}
		out.Submeshes = append(out.Submeshes, model.Submesh{
			Name:          p.Name,
			VertexOffset:  int32(len(out.Vertices)),
			VertexCount:   uint32(len(p.Vertices)),
			IndexOffset:   uint32(len(out.Indices)),
			IndexCount:    uint32(len(p.Indices)),
			MaterialIndex: materialIndex,
		})
		out.Vertices = append(out.Vertices, p.Vertices...)
		out.Indices = append(out.Indices, p.Indices...)
	}
	return out, nil
}
