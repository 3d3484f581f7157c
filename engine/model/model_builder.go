package model

import "github.com/Carmen-Shannon/lumen/engine/renderer/material"

// MeshBuilderOption is a function that configures a Mesh during NewMesh.
type MeshBuilderOption func(*Mesh)

// WithName sets the mesh name used for buffer labels and logging.
//
// Parameters:
//   - name: the mesh name
//
// Returns:
//   - MeshBuilderOption: a function that applies the name option to a mesh
func WithName(name string) MeshBuilderOption {
	return func(m *Mesh) {
		m.Name = name
	}
}

// WithPath records the file the mesh was imported from.
func WithPath(path string) MeshBuilderOption {
	return func(m *Mesh) {
		m.Path = path
	}
}

// WithSubmeshes sets the index ranges of the mesh.
//
// Parameters:
//   - submeshes: the ranges, each naming a material by index
//
// Returns:
//   - MeshBuilderOption: a function that applies the submeshes option to a mesh
func WithSubmeshes(submeshes ...Submesh) MeshBuilderOption {
	return func(m *Mesh) {
		m.Submeshes = submeshes
	}
}

// WithMaterials sets the materials submeshes index into.
//
// Parameters:
//   - mats: the materials
//
// Returns:
//   - MeshBuilderOption: a function that applies the materials option to a mesh
func WithMaterials(mats ...material.Material) MeshBuilderOption {
	return func(m *Mesh) {
		m.Materials = mats
	}
}
