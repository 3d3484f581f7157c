package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/lumen/common"
	"github.com/Carmen-Shannon/lumen/engine/logger"

	"github.com/cogentcore/webgpu/wgpu"
)

// gltfMaterialExtractorImpl is the implementation of the gltfMaterialExtractor interface.
type gltfMaterialExtractorImpl struct {
	parser     gltfParser
	textureDir string
}

// gltfMaterialExtractor maps glTF metallic-roughness materials onto ImportedMaterial.
type gltfMaterialExtractor interface {
	// ExtractMaterial converts one material. Embedded images are copied into the texture;
	// external images are resolved to a path and left for the caller to load.
	//
	// Parameters:
	//   - materialIndex: the index of the material in the document
	//
	// Returns:
	//   - *common.ImportedMaterial: the converted material
	//   - error: an out-of-range reference or a corrupt embedded image
	ExtractMaterial(materialIndex int) (*common.ImportedMaterial, error)

	// ExtractAllMaterials converts every material of the document in order.
	ExtractAllMaterials() ([]*common.ImportedMaterial, error)
}

var _ gltfMaterialExtractor = &gltfMaterialExtractorImpl{}

// newGLTFMaterialExtractor creates a material extractor. textureDir names the sibling
// directory external textures are looked up in first.
func newGLTFMaterialExtractor(parser gltfParser, textureDir string) gltfMaterialExtractor {
	return &gltfMaterialExtractorImpl{parser: parser, textureDir: textureDir}
}

// defaultImportedMaterial is used for primitives that reference no material.
func defaultImportedMaterial() *common.ImportedMaterial {
	return &common.ImportedMaterial{
		Name:        "Default",
		AlbedoColor: [4]float32{1, 1, 1, 1},
		Metalness:   0,
		Roughness:   1,
	}
}

func (e *gltfMaterialExtractorImpl) ExtractMaterial(materialIndex int) (*common.ImportedMaterial, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if materialIndex < 0 || materialIndex >= len(doc.Materials) {
		return nil, fmt.Errorf("material index %d out of range", materialIndex)
	}
	mat := &doc.Materials[materialIndex]

	// Defaults from the glTF schema.
	result := &common.ImportedMaterial{
		Name:        mat.Name,
		AlbedoColor: [4]float32{1, 1, 1, 1},
		Metalness:   1,
		Roughness:   1,
		TwoSided:    mat.DoubleSided,
	}
	if result.Name == "" {
		result.Name = fmt.Sprintf("material_%d", materialIndex)
	}

	if pbr := mat.PbrMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			result.AlbedoColor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			result.Metalness = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			result.Roughness = *pbr.RoughnessFactor
		}

		if pbr.BaseColorTexture != nil {
			tex, err := e.loadTexture(pbr.BaseColorTexture.Index, "albedo")
			if err != nil {
				return nil, fmt.Errorf("material %q: base color texture: %w", result.Name, err)
			}
			result.AlbedoTexture = tex
		}

		// Metalness is packed in blue and roughness in green.
		if pbr.MetallicRoughnessTexture != nil {
			tex, err := e.loadTexture(pbr.MetallicRoughnessTexture.Index, "metallic_roughness")
			if err != nil {
				return nil, fmt.Errorf("material %q: metallic-roughness texture: %w", result.Name, err)
			}
			if tex != nil {
				metal, rough := *tex, *tex
				metal.Channel = common.ChannelBlue
				rough.Channel = common.ChannelGreen
				result.MetalnessTexture = &metal
				result.RoughnessTexture = &rough
			}
		}
	}

	if mat.NormalTexture != nil {
		tex, err := e.loadTexture(mat.NormalTexture.Index, "normal")
		if err != nil {
			return nil, fmt.Errorf("material %q: normal texture: %w", result.Name, err)
		}
		result.NormalTexture = tex
	}

	if ef := mat.EmissiveFactor; ef != nil {
		result.Emission = max(ef[0], ef[1], ef[2])
	}

	if mat.AlphaMode == gltfAlphaModeBlend || result.AlbedoColor[3] < 1 {
		result.Transparent = true
	}
	return result, nil
}

func (e *gltfMaterialExtractorImpl) ExtractAllMaterials() ([]*common.ImportedMaterial, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	materials := make([]*common.ImportedMaterial, len(doc.Materials))
	for i := range doc.Materials {
		mat, err := e.ExtractMaterial(i)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		materials[i] = mat
	}
	return materials, nil
}

// loadTexture resolves a texture index. Embedded images (buffer views or data URIs) carry
// their bytes; external images carry a resolved path.
func (e *gltfMaterialExtractorImpl) loadTexture(textureIndex int, role string) (*common.ImportedTexture, error) {
	doc := e.parser.Document()
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", textureIndex)
	}
	tex := &doc.Textures[textureIndex]
	if tex.Source == nil {
		return nil, nil
	}
	if *tex.Source < 0 || *tex.Source >= len(doc.Images) {
		return nil, fmt.Errorf("image index %d out of range", *tex.Source)
	}
	img := &doc.Images[*tex.Source]

	result := &common.ImportedTexture{
		Name:     img.Name,
		MimeType: img.MimeType,
	}
	if result.Name == "" {
		result.Name = fmt.Sprintf("%s_%d", role, textureIndex)
	}
	if tex.Sampler != nil && *tex.Sampler >= 0 && *tex.Sampler < len(doc.Samplers) {
		if s := doc.Samplers[*tex.Sampler]; s.WrapS != nil {
			result.Wrap = gltfWrapToAddressMode(*s.WrapS)
		}
	}

	switch {
	case img.BufferView != nil:
		data, err := e.parser.ReadBufferView(*img.BufferView)
		if err != nil {
			return nil, fmt.Errorf("failed to read image buffer view: %w", err)
		}
		result.Data = data
	case strings.HasPrefix(img.URI, "data:"):
		data, mimeType, err := decodeDataURI(img.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image data URI: %w", err)
		}
		result.Data = data
		if result.MimeType == "" {
			result.MimeType = mimeType
		}
	case img.URI != "":
		result.Path = e.resolveTexturePath(img.URI)
	default:
		return nil, nil
	}
	return result, nil
}

// resolveTexturePath returns <dir>/<textureDir>/<file> when that directory exists next to
// the model, and the URI relative to the model otherwise.
func (e *gltfMaterialExtractorImpl) resolveTexturePath(uri string) string {
	base := e.parser.BaseDir()
	if e.textureDir != "" {
		dir := filepath.Join(base, e.textureDir)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return filepath.Join(dir, filepath.Base(filepath.FromSlash(uri)))
		}
	}
	path := filepath.Join(base, filepath.FromSlash(uri))
	if _, err := os.Stat(path); err != nil {
		logger.Warn("texture file not found", "uri", uri, "path", path)
	}
	return path
}

// gltfWrapToAddressMode converts a glTF wrap constant to a wgpu address mode.
func gltfWrapToAddressMode(wrap int) wgpu.AddressMode {
	switch wrap {
	case gltfWrapClampToEdge:
		return wgpu.AddressModeClampToEdge
	case gltfWrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}
