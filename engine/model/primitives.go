package model

import (
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
	"github.com/Carmen-Shannon/lumen/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// maxPlaneUVScale caps how often a plane's texture repeats along each axis.
const maxPlaneUVScale = 100

// CreatePlane builds an XZ plane centred on the origin facing +Y. UVs repeat once per unit
// of size, up to 100 times.
//
// Parameters:
//   - device: the device to upload to
//   - width: the extent along X
//   - depth: the extent along Z
//   - mat: the material of the single submesh, may be nil
//
// Returns:
//   - *Mesh: the plane
//   - error: a device error
func CreatePlane(device gpu.Device, width, depth float32, mat material.Material) (*Mesh, error) {
	hw, hd := width/2, depth/2
	u := min(width, maxPlaneUVScale)
	v := min(depth, maxPlaneUVScale)
	up := mgl32.Vec3{0, 1, 0}
	vertices := []Vertex{
		{Position: mgl32.Vec3{-hw, 0, hd}, UV: mgl32.Vec2{0, 0}, Normal: up},
		{Position: mgl32.Vec3{hw, 0, hd}, UV: mgl32.Vec2{u, 0}, Normal: up},
		{Position: mgl32.Vec3{hw, 0, -hd}, UV: mgl32.Vec2{u, v}, Normal: up},
		{Position: mgl32.Vec3{-hw, 0, -hd}, UV: mgl32.Vec2{0, v}, Normal: up},
	}
	indices := []uint32{0, 1, 2, 2, 3, 0}
	GenerateTangents(vertices, indices)
	return NewMesh(device, vertices, indices, WithName("Plane"), withMaterial(mat))
}

// cubeFaces lists the normal, right and up axes of each cube face.
var cubeFaces = [6][3]mgl32.Vec3{
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
}

// CreateCube builds a unit cube centred on the origin with four vertices per face.
//
// Parameters:
//   - device: the device to upload to
//   - mat: the material of the single submesh, may be nil
//
// Returns:
//   - *Mesh: the cube
//   - error: a device error
func CreateCube(device gpu.Device, mat material.Material) (*Mesh, error) {
	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range cubeFaces {
		n, r, up := f[0], f[1], f[2]
		base := uint32(len(vertices))
		center := n.Mul(0.5)
		corners := [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
		for _, c := range corners {
			pos := center.Add(r.Mul(c[0] * 0.5)).Add(up.Mul(c[1] * 0.5))
			vertices = append(vertices, Vertex{
				Position:  pos,
				UV:        mgl32.Vec2{(c[0] + 1) / 2, (1 - c[1]) / 2},
				Normal:    n,
				Tangent:   r,
				Bitangent: up,
			})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return NewMesh(device, vertices, indices, WithName("Cube"), withMaterial(mat))
}

func withMaterial(mat material.Material) MeshBuilderOption {
	return func(m *Mesh) {
		if mat != nil {
			m.Materials = []material.Material{mat}
		}
	}
}
