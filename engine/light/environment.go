package light

import (
	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
)

// EnvironmentMap is a baked image-based lighting environment.
type EnvironmentMap struct {
	// Name is the source the map was baked from, usually its file path.
	Name string

	// Radiance is the prefiltered specular cube. Mip m holds roughness m/(mips-1).
	Radiance gpu.Texture

	// Irradiance is the diffuse convolution cube.
	Irradiance gpu.Texture
}

// IsValid reports whether both cubes of the map exist.
func (m *EnvironmentMap) IsValid() bool {
	return m != nil && m.Radiance != nil && m.Irradiance != nil
}

// Environment is the lighting submitted with a scene: up to MaxLightCount lights and an
// optional environment map. Scenes build a fresh Environment every frame.
type Environment struct {
	lights []Light
	envMap *EnvironmentMap
}

// NewEnvironment creates an empty Environment.
//
// Returns:
//   - *Environment: an environment with no lights and no map
func NewEnvironment() *Environment {
	return &Environment{
		lights: make([]Light, 0, MaxLightCount),
	}
}

// AddLight appends a light. Lights past MaxLightCount are dropped with a warning since the
// shader light array has a fixed size.
//
// Parameters:
//   - l: the light to add
//
// Returns:
//   - bool: false if the light was dropped
func (e *Environment) AddLight(l Light) bool {
	if len(e.lights) >= MaxLightCount {
		logger.Warn("environment light limit reached, dropping light", "max", MaxLightCount, "type", l.Type())
		return false
	}
	e.lights = append(e.lights, l)
	return true
}

// Lights returns the lights in insertion order.
func (e *Environment) Lights() []Light {
	return e.lights
}

// SetEnvironmentMap sets the image-based lighting map. A nil map disables image-based
// lighting; renderers bind black cubes instead.
func (e *Environment) SetEnvironmentMap(m *EnvironmentMap) {
	e.envMap = m
}

// EnvironmentMap returns the image-based lighting map, which may be nil.
func (e *Environment) EnvironmentMap() *EnvironmentMap {
	return e.envMap
}

// MarshalLights returns the light array in its GPU layout.
//
// Returns:
//   - []byte: MaxLightCount*GPULightSize bytes
func (e *Environment) MarshalLights() []byte {
	return MarshalLights(e.lights)
}
