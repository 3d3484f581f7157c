package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/lumen/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

// docBuilder assembles a glTF document and its single binary buffer.
type docBuilder struct {
	doc gltfDocument
	bin []byte
}

func newDocBuilder() *docBuilder {
	return &docBuilder{doc: gltfDocument{Asset: gltfAsset{Version: "2.0"}}}
}

func (b *docBuilder) view(data []byte) int {
	for len(b.bin)%4 != 0 {
		b.bin = append(b.bin, 0)
	}
	b.doc.BufferViews = append(b.doc.BufferViews, gltfBufferView{ByteOffset: len(b.bin), ByteLength: len(data)})
	b.bin = append(b.bin, data...)
	return len(b.doc.BufferViews) - 1
}

func (b *docBuilder) floats(typ string, vals ...float32) int {
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	view := b.view(data)
	b.doc.Accessors = append(b.doc.Accessors, gltfAccessor{
		BufferView:    &view,
		ComponentType: gltfComponentTypeFloat,
		Count:         len(vals) / componentCount(typ),
		Type:          typ,
	})
	return len(b.doc.Accessors) - 1
}

func (b *docBuilder) indices(vals ...uint16) int {
	data := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[i*2:], v)
	}
	view := b.view(data)
	b.doc.Accessors = append(b.doc.Accessors, gltfAccessor{
		BufferView:    &view,
		ComponentType: gltfComponentTypeUnsignedShort,
		Count:         len(vals),
		Type:          gltfAccessorTypeScalar,
	})
	return len(b.doc.Accessors) - 1
}

func (b *docBuilder) gltf(t *testing.T) []byte {
	t.Helper()
	doc := b.doc
	doc.Buffers = []gltfBuffer{{
		URI:        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b.bin),
		ByteLength: len(b.bin),
	}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func (b *docBuilder) glb(t *testing.T) []byte {
	t.Helper()
	doc := b.doc
	doc.Buffers = []gltfBuffer{{ByteLength: len(b.bin)}}
	js, err := json.Marshal(doc)
	require.NoError(t, err)
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}
	bin := append([]byte(nil), b.bin...)
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	var out bytes.Buffer
	write := func(v any) { require.NoError(t, binary.Write(&out, binary.LittleEndian, v)) }
	write(gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(12 + 8 + len(js) + 8 + len(bin))})
	write(gltfGLBChunkHeader{ChunkLength: uint32(len(js)), ChunkType: gltfGLBChunkJSON})
	out.Write(js)
	write(gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN})
	out.Write(bin)
	return out.Bytes()
}

// twoPrimitiveDoc is a translated, blended triangle with UVs and a quad in the XZ plane
// without normals or a material.
func twoPrimitiveDoc() *docBuilder {
	b := newDocBuilder()
	triPos := b.floats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	triNrm := b.floats(gltfAccessorTypeVec3, 0, 0, 1, 0, 0, 1, 0, 0, 1)
	triUV := b.floats(gltfAccessorTypeVec2, 0, 0, 1, 0, 0, 1)
	triIdx := b.indices(0, 1, 2)
	quadPos := b.floats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 1, 0, 1, 0, 0, 1)
	quadIdx := b.indices(0, 2, 1, 0, 3, 2)

	b.doc.Meshes = []gltfMesh{
		{Name: "tri", Primitives: []gltfPrimitive{{
			Attributes: map[string]int{"POSITION": triPos, "NORMAL": triNrm, "TEXCOORD_0": triUV},
			Indices:    &triIdx,
			Material:   ptr(0),
		}}},
		{Name: "quad", Primitives: []gltfPrimitive{{
			Attributes: map[string]int{"POSITION": quadPos},
			Indices:    &quadIdx,
		}}},
	}
	b.doc.Nodes = []gltfNode{
		{Name: "root", Children: []int{1, 2}, Translation: &[3]float32{0, 1, 0}},
		{Mesh: ptr(0)},
		{Mesh: ptr(1), Translation: &[3]float32{0, -1, 0}},
	}
	b.doc.Scenes = []gltfScene{{Nodes: []int{0}}}
	b.doc.Materials = []gltfMaterial{{
		Name: "glass",
		PbrMetallicRoughness: &gltfPbrMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 0.5, 0.25, 0.5},
			MetallicFactor:  ptr(float32(0.2)),
			RoughnessFactor: ptr(float32(0.7)),
		},
		AlphaMode:   gltfAlphaModeBlend,
		DoubleSided: true,
	}}
	return b
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestImportMergesPrimitives(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scene.gltf", twoPrimitiveDoc().gltf(t))

	m, err := NewImporter().Import(path)
	require.NoError(t, err)
	assert.Equal(t, "scene", m.Name)
	assert.Equal(t, path, m.Path)

	require.Len(t, m.Submeshes, 2)
	require.Len(t, m.Vertices, 7)
	require.Len(t, m.Indices, 9)

	tri, quad := m.Submeshes[0], m.Submeshes[1]
	assert.Equal(t, "tri", tri.Name)
	assert.Equal(t, uint32(3), tri.IndexCount)
	assert.Equal(t, int32(3), quad.VertexOffset)
	assert.Equal(t, uint32(4), quad.VertexCount)
	assert.Equal(t, uint32(3), quad.IndexOffset)
	assert.Equal(t, uint32(6), quad.IndexCount)
	// indices stay local to their submesh
	assert.Equal(t, []uint32{0, 2, 1, 0, 3, 2}, m.Indices[3:])
}

func TestImportAppliesNodeTransforms(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scene.gltf", twoPrimitiveDoc().gltf(t))

	m, err := NewImporter().Import(path)
	require.NoError(t, err)

	assert.InDelta(t, 1, m.Vertices[0].Position.Y(), 1e-6)
	assert.InDelta(t, 2, m.Vertices[2].Position.Y(), 1e-6)
	assert.InDelta(t, 0, m.Vertices[3].Position.Y(), 1e-6)
}

func TestImportGeneratesMissingAttributes(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scene.gltf", twoPrimitiveDoc().gltf(t))

	m, err := NewImporter().Import(path)
	require.NoError(t, err)

	for _, v := range m.Vertices[3:] {
		assert.InDelta(t, 1, v.Normal.Y(), 1e-5)
	}
	for _, v := range m.Vertices {
		assert.InDelta(t, 1, v.Tangent.Len(), 1e-4)
		assert.InDelta(t, 1, v.Bitangent.Len(), 1e-4)
		assert.InDelta(t, 0, v.Tangent.Dot(v.Normal), 1e-4)
	}
	assert.InDelta(t, 1, m.Vertices[0].Tangent.X(), 1e-5)
}

func TestImportMaterials(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scene.gltf", twoPrimitiveDoc().gltf(t))

	m, err := NewImporter().Import(path)
	require.NoError(t, err)
	require.Len(t, m.Materials, 2)

	glass := m.Materials[m.Submeshes[0].MaterialIndex]
	assert.Equal(t, "glass", glass.Name)
	assert.Equal(t, [4]float32{1, 0.5, 0.25, 0.5}, glass.AlbedoColor)
	assert.Equal(t, float32(0.2), glass.Metalness)
	assert.Equal(t, float32(0.7), glass.Roughness)
	assert.True(t, glass.Transparent)
	assert.True(t, glass.TwoSided)

	def := m.Materials[m.Submeshes[1].MaterialIndex]
	assert.Equal(t, "Default", def.Name)
	assert.False(t, def.Transparent)
}

func TestImportGLBReader(t *testing.T) {
	data := twoPrimitiveDoc().glb(t)

	m, err := NewImporter().ImportReader("embedded", BackendTypeGLTF, bytes.NewReader(data), true)
	require.NoError(t, err)
	assert.Equal(t, "embedded", m.Name)
	assert.Len(t, m.Submeshes, 2)
	assert.Len(t, m.Vertices, 7)

	path := writeFile(t, t.TempDir(), "scene.glb", data)
	fromFile, err := NewImporter().Import(path)
	require.NoError(t, err)
	assert.Equal(t, m.Indices, fromFile.Indices)
}

func texturedDoc() *docBuilder {
	b := newDocBuilder()
	pos := b.floats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	b.doc.Meshes = []gltfMesh{{Primitives: []gltfPrimitive{{
		Attributes: map[string]int{"POSITION": pos},
		Material:   ptr(0),
	}}}}
	b.doc.Images = []gltfImage{{URI: "maps/albedo.png"}, {URI: "mr.png"}}
	b.doc.Samplers = []gltfSampler{{WrapS: ptr(gltfWrapMirroredRepeat)}}
	b.doc.Textures = []gltfTexture{{Source: ptr(0), Sampler: ptr(0)}, {Source: ptr(1)}}
	b.doc.Materials = []gltfMaterial{{
		PbrMetallicRoughness: &gltfPbrMetallicRoughness{
			BaseColorTexture:         &gltfTextureInfo{Index: 0},
			MetallicRoughnessTexture: &gltfTextureInfo{Index: 1},
		},
	}}
	return b
}

func TestImportResolvesTexturesDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "textures"), 0o755))
	path := writeFile(t, dir, "model.gltf", texturedDoc().gltf(t))

	m, err := NewImporter().Import(path)
	require.NoError(t, err)
	mat := m.Materials[0]
	require.NotNil(t, mat.AlbedoTexture)
	assert.Equal(t, filepath.Join(dir, "textures", "albedo.png"), mat.AlbedoTexture.Path)
	assert.Equal(t, wgpu.AddressModeMirrorRepeat, mat.AlbedoTexture.Wrap)
	assert.Equal(t, "material_0", mat.Name)
	assert.Equal(t, float32(1), mat.Metalness)
}

func TestImportResolvesTexturesNextToModel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "model.gltf", texturedDoc().gltf(t))

	m, err := NewImporter().Import(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "maps", "albedo.png"), m.Materials[0].AlbedoTexture.Path)

	m, err = NewImporter(WithTextureDir("")).Import(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mr.png"), m.Materials[0].RoughnessTexture.Path)
}

func TestImportSplitsMetallicRoughness(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.gltf", texturedDoc().gltf(t))

	m, err := NewImporter().Import(path)
	require.NoError(t, err)
	mat := m.Materials[0]
	require.NotNil(t, mat.MetalnessTexture)
	require.NotNil(t, mat.RoughnessTexture)
	assert.Equal(t, common.ChannelBlue, mat.MetalnessTexture.Channel)
	assert.Equal(t, common.ChannelGreen, mat.RoughnessTexture.Channel)
	assert.NotEqual(t, mat.MetalnessTexture.Key(), mat.RoughnessTexture.Key())
}

func TestImportErrors(t *testing.T) {
	dir := t.TempDir()
	imp := NewImporter()

	_, err := imp.Import(writeFile(t, dir, "mesh.fbx", []byte("x")))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = imp.Import(writeFile(t, dir, "old.gltf", []byte(`{"asset":{"version":"1.0"}}`)))
	assert.ErrorIs(t, err, errInvalidGLTFVersion)

	_, err = imp.Import(writeFile(t, dir, "empty.gltf", []byte(`{"asset":{"version":"2.0"}}`)))
	assert.ErrorIs(t, err, ErrEmptyMesh)

	b := newDocBuilder()
	pos := b.floats(gltfAccessorTypeVec3, 0, 0, 0, 1, 0, 0, 0, 1, 0)
	idx := b.indices(0, 1, 7)
	b.doc.Meshes = []gltfMesh{{Primitives: []gltfPrimitive{{Attributes: map[string]int{"POSITION": pos}, Indices: &idx}}}}
	_, err = imp.Import(writeFile(t, dir, "bad.gltf", b.gltf(t)))
	assert.Error(t, err)

	_, err = imp.ImportReader("bad", BackendTypeGLTF, bytes.NewReader([]byte("nope-not-glb")), true)
	assert.ErrorIs(t, err, errInvalidGLBMagic)
}

func TestNodeMatrix(t *testing.T) {
	n := &gltfNode{
		Translation: &[3]float32{1, 2, 3},
		Rotation:    &[4]float32{0, 0, 0, 1},
		Scale:       &[3]float32{2, 2, 2},
	}
	p := mgl32.TransformCoordinate(mgl32.Vec3{1, 0, 0}, nodeMatrix(n))
	assert.InDelta(t, 3, p.X(), 1e-6)
	assert.InDelta(t, 2, p.Y(), 1e-6)

	m := mgl32.Translate3D(5, 0, 0)
	arr := [16]float32(m)
	assert.Equal(t, m, nodeMatrix(&gltfNode{Matrix: &arr}))
}
