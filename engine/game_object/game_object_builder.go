package game_object

import (
	"github.com/Carmen-Shannon/lumen/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithName sets the tag the object is found by.
//
// Parameters:
//   - name: the object's tag
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the name
func WithName(name string) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.name = name
	}
}

// WithEnabled sets whether the GameObject is rendered. Objects start enabled.
//
// Parameters:
//   - enabled: true to render the object, false to skip it
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithTransform replaces the whole transform.
func WithTransform(t Transform) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.transform = t
	}
}

// WithPosition sets the initial position of the GameObject.
//
// Parameters:
//   - x: the x position
//   - y: the y position
//   - z: the z position
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the initial position
func WithPosition(x, y, z float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.transform.Position = mgl32.Vec3{x, y, z}
	}
}

// WithScale sets the initial scale of the GameObject.
//
// Parameters:
//   - sx: the x scale factor
//   - sy: the y scale factor
//   - sz: the z scale factor
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the initial scale
func WithScale(sx, sy, sz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.transform.Scale = mgl32.Vec3{sx, sy, sz}
	}
}

// WithRotation sets the initial rotation of the GameObject in degrees.
//
// Parameters:
//   - rx: the x rotation angle
//   - ry: the y rotation angle
//   - rz: the z rotation angle
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the initial rotation
func WithRotation(rx, ry, rz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.transform.Rotation = mgl32.Vec3{rx, ry, rz}
	}
}

// WithMesh assigns a mesh by asset path, with optional per-submesh material overrides.
//
// Parameters:
//   - path: the mesh asset path
//   - overrides: materials replacing the mesh's own, by submesh index
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the mesh
func WithMesh(path string, overrides ...material.Material) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.meshPath = path
		obj.overrides = overrides
	}
}

// WithSkyLight attaches a sky light baked from an .hdr environment.
func WithSkyLight(environmentPath string, intensity float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.skyLight = &SkyLight{EnvironmentPath: environmentPath, Intensity: intensity}
	}
}

// WithDirectionalLight attaches a directional light. The light points from the object's
// position towards the origin.
//
// Parameters:
//   - color: the linear light color
//   - intensity: the light intensity
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the attached light
func WithDirectionalLight(color mgl32.Vec3, intensity float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.light = &LightComponent{Kind: LightDirectional, Color: color, Intensity: intensity}
	}
}

// WithPointLight attaches a point light at the object's position.
func WithPointLight(color mgl32.Vec3, intensity float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.light = &LightComponent{Kind: LightPoint, Color: color, Intensity: intensity}
	}
}
