package model

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/material"
)

// ErrInvalidMesh is returned for geometry that cannot be uploaded.
var ErrInvalidMesh = errors.New("model: invalid mesh")

// Submesh is a range of a Mesh's index buffer drawn with one material.
type Submesh struct {
	Name string

	// VertexOffset is added to every index of the range.
	VertexOffset int32
	VertexCount  uint32

	// IndexOffset is the first index of the range, in indices.
	IndexOffset uint32
	IndexCount  uint32

	// MaterialIndex selects the material from Mesh.Materials.
	MaterialIndex int
}

// Mesh is GPU geometry split into submeshes together with the materials they draw with.
// A nil or empty Mesh is the invalid handle returned for asset misses.
type Mesh struct {
	Name string

	// Path is the file the mesh was imported from, empty for generated meshes.
	Path string

	VB gpu.Buffer
	IB gpu.Buffer

	Submeshes []Submesh
	Materials []material.Material

	BoundingRadius float32
}

// IsValid reports whether the mesh has buffers and at least one submesh.
func (m *Mesh) IsValid() bool {
	return m != nil && m.VB != nil && m.IB != nil && len(m.Submeshes) > 0
}

// Material returns the material a submesh draws with, or nil when its index is out of range.
//
// Parameters:
//   - submesh: the index into Submeshes
//
// Returns:
//   - material.Material: the material or nil
func (m *Mesh) Material(submesh int) material.Material {
	if submesh < 0 || submesh >= len(m.Submeshes) {
		return nil
	}
	idx := m.Submeshes[submesh].MaterialIndex
	if idx < 0 || idx >= len(m.Materials) {
		return nil
	}
	return m.Materials[idx]
}

// NewMesh uploads vertices and indices into new buffers. Without a WithSubmeshes option the
// whole index range becomes one submesh drawn with material 0.
//
// Parameters:
//   - device: the device to create the buffers on
//   - vertices: the interleaved vertices
//   - indices: the triangle list
//   - options: variadic list of MeshBuilderOption functions
//
// Returns:
//   - *Mesh: the uploaded mesh
//   - error: ErrInvalidMesh for empty geometry, or a device error
func NewMesh(device gpu.Device, vertices []Vertex, indices []uint32, options ...MeshBuilderOption) (*Mesh, error) {
	m := &Mesh{Name: "Mesh"}
	for _, opt := range options {
		opt(m)
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("%w: %s has %d vertices and %d indices", ErrInvalidMesh, m.Name, len(vertices), len(indices))
	}
	if len(m.Submeshes) == 0 {
		m.Submeshes = []Submesh{{
			Name:        m.Name,
			VertexCount: uint32(len(vertices)),
			IndexCount:  uint32(len(indices)),
		}}
	}
	for _, s := range m.Submeshes {
		if int(s.IndexOffset+s.IndexCount) > len(indices) {
			return nil, fmt.Errorf("%w: submesh %s reads past %d indices", ErrInvalidMesh, s.Name, len(indices))
		}
	}

	vb, err := device.CreateBuffer(gpu.BufferDesc{
		Label:  m.Name + " Vertices",
		Kind:   gpu.BufferKindVertex,
		Size:   len(vertices) * VertexSize,
		Stride: VertexSize,
	}, MarshalVertices(vertices))
	if err != nil {
		return nil, fmt.Errorf("model: uploading %s: %w", m.Name, err)
	}
	ib, err := device.CreateBuffer(gpu.BufferDesc{
		Label:  m.Name + " Indices",
		Kind:   gpu.BufferKindIndex,
		Size:   len(indices) * 4,
		Stride: 4,
	}, MarshalIndices(indices))
	if err != nil {
		return nil, fmt.Errorf("model: uploading %s: %w", m.Name, err)
	}
	m.VB, m.IB = vb, ib
	m.BoundingRadius = ComputeBoundingRadius(vertices)
	return m, nil
}
