package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/lumen/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfPrimitiveData is one triangle primitive with its vertices moved into model space.
type gltfPrimitiveData struct {
	Name          string
	Vertices      []model.Vertex
	Indices       []uint32
	MaterialIndex int
}

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
}

// gltfMeshExtractor turns the meshes of a parsed document into flat primitives.
type gltfMeshExtractor interface {
	// ExtractPrimitives walks the default scene and returns every primitive with the world
	// transform of its node applied. Documents without nodes yield each mesh untransformed.
	//
	// Returns:
	//   - []gltfPrimitiveData: the primitives in scene order
	//   - error: an accessor error
	ExtractPrimitives() ([]gltfPrimitiveData, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

func newGLTFMeshExtractor(parser gltfParser) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser}
}

func (e *gltfMeshExtractorImpl) ExtractPrimitives() ([]gltfPrimitiveData, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	var out []gltfPrimitiveData
	if len(doc.Nodes) == 0 {
		for i := range doc.Meshes {
			prims, err := e.extractMesh(i, mgl32.Ident4())
			if err != nil {
				return nil, err
			}
			out = append(out, prims...)
		}
		return out, nil
	}

	var visit func(node int, parent mgl32.Mat4, depth int) error
	visit = func(node int, parent mgl32.Mat4, depth int) error {
		if node < 0 || node >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", node)
		}
		if depth > len(doc.Nodes) {
			return fmt.Errorf("node %d is part of a cycle", node)
		}
		n := &doc.Nodes[node]
		world := parent.Mul4(nodeMatrix(n))
		if n.Mesh != nil {
			prims, err := e.extractMesh(*n.Mesh, world)
			if err != nil {
				return err
			}
			out = append(out, prims...)
		}
		for _, child := range n.Children {
			if err := visit(child, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range sceneRoots(doc) {
		if err := visit(root, mgl32.Ident4(), 0); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// sceneRoots returns the root nodes of the default scene, or every node no other node
// references when the document has no scenes.
func sceneRoots(doc *gltfDocument) []int {
	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			scene = *doc.Scene
		}
		return doc.Scenes[scene].Nodes
	}
	child := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, isChild := range child {
		if !isChild {
			roots = append(roots, i)
		}
	}
	return roots
}

// nodeMatrix returns the local transform of a node: its matrix, or T*R*S.
func nodeMatrix(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}
	m := mgl32.Ident4()
	if t := n.Translation; t != nil {
		m = m.Mul4(mgl32.Translate3D(t[0], t[1], t[2]))
	}
	if r := n.Rotation; r != nil {
		q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
		m = m.Mul4(q.Normalize().Mat4())
	}
	if s := n.Scale; s != nil {
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}

func (e *gltfMeshExtractorImpl) extractMesh(meshIndex int, world mgl32.Mat4) ([]gltfPrimitiveData, error) {
	doc := e.parser.Document()
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", meshIndex)
	}
	mesh := &doc.Meshes[meshIndex]

	out := make([]gltfPrimitiveData, 0, len(mesh.Primitives))
	for i := range mesh.Primitives {
		prim, err := e.extractPrimitive(&mesh.Primitives[i], world)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, i, err)
		}
		prim.Name = mesh.Name
		if prim.Name == "" {
			prim.Name = fmt.Sprintf("mesh_%d", meshIndex)
		}
		if len(mesh.Primitives) > 1 {
			prim.Name = fmt.Sprintf("%s_prim%d", prim.Name, i)
		}
		out = append(out, prim)
	}
	return out, nil
}

func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, world mgl32.Mat4) (gltfPrimitiveData, error) {
	var data gltfPrimitiveData
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return data, fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return data, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadFloats(posAccessor, 3)
	if err != nil {
		return data, fmt.Errorf("failed to read positions: %w", err)
	}

	vertices := make([]model.Vertex, len(positions))
	for i, p := range positions {
		vertices[i].Position = mgl32.Vec3{p[0], p[1], p[2]}
	}

	hasNormals := false
	if acc, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.ReadFloats(acc, 3)
		if err != nil {
			return data, fmt.Errorf("failed to read normals: %w", err)
		}
		for i := range min(len(normals), len(vertices)) {
			vertices[i].Normal = mgl32.Vec3{normals[i][0], normals[i][1], normals[i][2]}
		}
		hasNormals = true
	}

	if acc, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := e.parser.ReadFloats(acc, 2)
		if err != nil {
			return data, fmt.Errorf("failed to read texcoords: %w", err)
		}
		for i := range min(len(uvs), len(vertices)) {
			vertices[i].UV = mgl32.Vec2{uvs[i][0], uvs[i][1]}
		}
	}

	// glTF TANGENT is xyz direction plus w handedness.
	var handedness []float32
	if acc, ok := prim.Attributes["TANGENT"]; ok && hasNormals {
		tangents, err := e.parser.ReadFloats(acc, 4)
		if err != nil {
			return data, fmt.Errorf("failed to read tangents: %w", err)
		}
		handedness = make([]float32, len(vertices))
		for i := range min(len(tangents), len(vertices)) {
			vertices[i].Tangent = mgl32.Vec3{tangents[i][0], tangents[i][1], tangents[i][2]}
			handedness[i] = tangents[i][3]
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = e.parser.ReadIndices(*prim.Indices)
		if err != nil {
			return data, fmt.Errorf("failed to read indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return data, fmt.Errorf("index %d exceeds %d vertices", idx, len(vertices))
		}
	}

	if !hasNormals {
		generateNormals(vertices, indices)
	}
	if handedness == nil {
		model.GenerateTangents(vertices, indices)
	} else {
		for i := range vertices {
			w := handedness[i]
			if w == 0 {
				w = 1
			}
			vertices[i].Bitangent = vertices[i].Normal.Cross(vertices[i].Tangent).Mul(w)
		}
	}
	transformVertices(vertices, world)

	data.Vertices = vertices
	data.Indices = indices
	if prim.Material != nil {
		data.MaterialIndex = *prim.Material
	} else {
		data.MaterialIndex = -1
	}
	return data, nil
}

// transformVertices moves vertices into model space. Normals use the inverse transpose;
// tangent frames follow the upper 3x3.
func transformVertices(vertices []model.Vertex, world mgl32.Mat4) {
	if world == mgl32.Ident4() {
		return
	}
	basis := world.Mat3()
	normalMatrix := basis.Inv().Transpose()
	for i := range vertices {
		v := &vertices[i]
		v.Position = mgl32.TransformCoordinate(v.Position, world)
		v.Normal = safeNormalize(normalMatrix.Mul3x1(v.Normal))
		v.Tangent = safeNormalize(basis.Mul3x1(v.Tangent))
		v.Bitangent = safeNormalize(basis.Mul3x1(v.Bitangent))
	}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() < 1e-12 {
		return v
	}
	return v.Normalize()
}

// generateNormals computes smooth vertex normals by accumulating area-weighted face normals
// onto every vertex of each triangle.
func generateNormals(vertices []model.Vertex, indices []uint32) {
	accum := make([]mgl32.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0 := vertices[i0].Position
		face := vertices[i1].Position.Sub(p0).Cross(vertices[i2].Position.Sub(p0))
		for _, idx := range []uint32{i0, i1, i2} {
			accum[idx] = accum[idx].Add(face)
		}
	}
	for i := range vertices {
		if accum[i].Len() < 1e-6 {
			vertices[i].Normal = mgl32.Vec3{0, 1, 0}
			continue
		}
		vertices[i].Normal = accum[i].Normalize()
	}
}
