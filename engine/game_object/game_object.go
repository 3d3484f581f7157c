package game_object

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/lumen/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform places an object in the world. Rotation holds Euler angles in degrees.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

// IdentityTransform returns a transform at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix returns the model matrix: scale first, then rotation about X, Y and Z, then
// translation.
func (t Transform) Matrix() mgl32.Mat4 {
	rot := mgl32.HomogRotate3DZ(mgl32.DegToRad(t.Rotation[2])).
		Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(t.Rotation[1]))).
		Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(t.Rotation[0])))
	return mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2]).
		Mul4(rot).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// SkyLight lights the scene with a baked environment map.
type SkyLight struct {
	// EnvironmentPath is the .hdr file the map is baked from.
	EnvironmentPath string
	Intensity       float32
}

// LightKind selects how a LightComponent is turned into a renderer light.
type LightKind int

const (
	// LightDirectional shines from the object's position towards the origin.
	LightDirectional LightKind = iota

	// LightPoint shines from the object's position in every direction.
	LightPoint
)

func (k LightKind) String() string {
	switch k {
	case LightDirectional:
		return "directional"
	case LightPoint:
		return "point"
	default:
		return "unknown"
	}
}

// LightComponent is an analytic light attached to an object.
type LightComponent struct {
	Kind      LightKind
	Color     mgl32.Vec3
	Intensity float32
}

type gameObject struct {
	id      uint64
	name    string
	enabled atomic.Bool

	transform Transform

	meshPath  string
	overrides []material.Material

	skyLight *SkyLight
	light    *LightComponent
}

// GameObject is a scene entity: a named transform that may carry a mesh, a sky light and an
// analytic light. Meshes are referenced by asset path and resolved through the asset manager
// when the scene renders.
type GameObject interface {
	// ID returns the object's unique identifier, zero until the object is added to a scene.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// Name returns the object's tag.
	Name() string

	// Enabled returns whether this object is rendered.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Transform returns a copy of the object's transform.
	Transform() Transform

	// Matrix returns the object's model matrix.
	Matrix() mgl32.Mat4

	// MeshPath returns the asset path of the object's mesh, empty when it has none.
	MeshPath() string

	// MaterialOverrides returns the per-submesh materials drawn instead of the mesh's own.
	// Nil entries keep the mesh material.
	MaterialOverrides() []material.Material

	// SkyLight returns the object's sky light, or nil.
	SkyLight() *SkyLight

	// Light returns the object's analytic light, or nil.
	Light() *LightComponent

	// SetID sets the object's unique identifier.
	SetID(id uint64)

	// SetName sets the object's tag.
	SetName(name string)

	// SetEnabled sets whether the object is rendered.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetPosition moves the object.
	//
	// Parameters:
	//   - x, y, z: new position components
	SetPosition(x, y, z float32)

	// SetRotation sets the object's Euler angles.
	//
	// Parameters:
	//   - rx, ry, rz: rotation about each axis in degrees
	SetRotation(rx, ry, rz float32)

	// SetScale sets the object's scale.
	//
	// Parameters:
	//   - sx, sy, sz: new scale factors
	SetScale(sx, sy, sz float32)

	// SetMesh assigns a mesh by asset path together with optional per-submesh overrides.
	// An empty path removes the mesh.
	//
	// Parameters:
	//   - path: the mesh asset path
	//   - overrides: materials replacing the mesh's own, by submesh index
	SetMesh(path string, overrides ...material.Material)

	// SetSkyLight attaches a sky light. Pass nil to detach.
	SetSkyLight(sky *SkyLight)

	// SetLight attaches an analytic light. Pass nil to detach.
	SetLight(l *LightComponent)
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new enabled GameObject configured with the given options.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		name:      "Unnamed",
		transform: IdentityTransform(),
	}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	return obj
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) Name() string {
	return g.name
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) Transform() Transform {
	return g.transform
}

func (g *gameObject) Matrix() mgl32.Mat4 {
	return g.transform.Matrix()
}

func (g *gameObject) MeshPath() string {
	return g.meshPath
}

func (g *gameObject) MaterialOverrides() []material.Material {
	return g.overrides
}

func (g *gameObject) SkyLight() *SkyLight {
	return g.skyLight
}

func (g *gameObject) Light() *LightComponent {
	return g.light
}

func (g *gameObject) SetID(id uint64) {
	g.id = id
}

func (g *gameObject) SetName(name string) {
	g.name = name
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) SetPosition(x, y, z float32) {
	g.transform.Position = mgl32.Vec3{x, y, z}
}

func (g *gameObject) SetRotation(rx, ry, rz float32) {
	g.transform.Rotation = mgl32.Vec3{rx, ry, rz}
}

func (g *gameObject) SetScale(sx, sy, sz float32) {
	g.transform.Scale = mgl32.Vec3{sx, sy, sz}
}

func (g *gameObject) SetMesh(path string, overrides ...material.Material) {
	g.meshPath = path
	g.overrides = overrides
}

func (g *gameObject) SetSkyLight(sky *SkyLight) {
	g.skyLight = sky
}

func (g *gameObject) SetLight(l *LightComponent) {
	g.light = l
}
