package model

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// VertexSize is the size of one interleaved Vertex in bytes.
const VertexSize = 56

// Vertex is the interleaved vertex layout read by mesh_pbr_shader and grid_shader.
// Size: 56 bytes, tightly packed.
type Vertex struct {
	Position  mgl32.Vec3 // offset  0
	UV        mgl32.Vec2 // offset 12
	Normal    mgl32.Vec3 // offset 20
	Tangent   mgl32.Vec3 // offset 32
	Bitangent mgl32.Vec3 // offset 44
}

// Marshal serializes the vertex into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: VertexSize bytes in little-endian order
func (v *Vertex) Marshal() []byte {
	buf := make([]byte, VertexSize)
	v.marshalInto(buf)
	return buf
}

func (v *Vertex) marshalInto(buf []byte) {
	off := 0
	put := func(f float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
		off += 4
	}
	for _, f := range v.Position {
		put(f)
	}
	for _, f := range v.UV {
		put(f)
	}
	for _, f := range v.Normal {
		put(f)
	}
	for _, f := range v.Tangent {
		put(f)
	}
	for _, f := range v.Bitangent {
		put(f)
	}
}

// MarshalVertices packs a vertex slice into one buffer.
//
// Parameters:
//   - vertices: the vertices to pack
//
// Returns:
//   - []byte: len(vertices)*VertexSize bytes
func MarshalVertices(vertices []Vertex) []byte {
	buf := make([]byte, len(vertices)*VertexSize)
	for i := range vertices {
		vertices[i].marshalInto(buf[i*VertexSize:])
	}
	return buf
}

// MarshalIndices packs 32-bit indices in little-endian order.
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf
}

// ComputeBoundingRadius returns the maximum distance from the origin across all vertex
// positions.
//
// Parameters:
//   - vertices: the vertex data to compute the bounding radius from
//
// Returns:
//   - float32: the maximum distance from the origin
func ComputeBoundingRadius(vertices []Vertex) float32 {
	var maxDistSq float32
	for _, v := range vertices {
		if d := v.Position.Dot(v.Position); d > maxDistSq {
			maxDistSq = d
		}
	}
	return float32(math.Sqrt(float64(maxDistSq)))
}

// GenerateTangents fills Tangent and Bitangent of every vertex from the triangle UV
// gradients. Vertices shared between triangles receive the normalized sum. Degenerate UVs
// fall back to an arbitrary basis perpendicular to the normal.
//
// Parameters:
//   - vertices: the vertices to update in place
//   - indices: the triangle list indexing vertices
func GenerateTangents(vertices []Vertex, indices []uint32) {
	tan := make([]mgl32.Vec3, len(vertices))
	bitan := make([]mgl32.Vec3, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= len(vertices) || int(i1) >= len(vertices) || int(i2) >= len(vertices) {
			continue
		}
		v0, v1, v2 := vertices[i0], vertices[i1], vertices[i2]
		e1 := v1.Position.Sub(v0.Position)
		e2 := v2.Position.Sub(v0.Position)
		d1 := v1.UV.Sub(v0.UV)
		d2 := v2.UV.Sub(v0.UV)
		det := d1[0]*d2[1] - d2[0]*d1[1]
		if det == 0 {
			continue
		}
		r := 1 / det
		t := e1.Mul(d2[1]).Sub(e2.Mul(d1[1])).Mul(r)
		b := e2.Mul(d1[0]).Sub(e1.Mul(d2[0])).Mul(r)
		for _, idx := range []uint32{i0, i1, i2} {
			tan[idx] = tan[idx].Add(t)
			bitan[idx] = bitan[idx].Add(b)
		}
	}
	for i := range vertices {
		n := vertices[i].Normal
		t := tan[i]
		if t.Len() == 0 {
			t = orthogonal(n)
		}
		// Gram-Schmidt against the normal.
		t = t.Sub(n.Mul(n.Dot(t)))
		if t.Len() == 0 {
			t = orthogonal(n)
		}
		t = t.Normalize()
		b := bitan[i]
		if b.Len() == 0 {
			b = n.Cross(t)
		}
		vertices[i].Tangent = t
		vertices[i].Bitangent = b.Normalize()
	}
}

// orthogonal returns a unit vector perpendicular to n, or +X when n is zero.
func orthogonal(n mgl32.Vec3) mgl32.Vec3 {
	if n.Len() == 0 {
		return mgl32.Vec3{1, 0, 0}
	}
	axis := mgl32.Vec3{1, 0, 0}
	if math.Abs(float64(n[0])) > 0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return n.Cross(axis).Normalize()
}
