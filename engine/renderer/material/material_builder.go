package material

import "github.com/Carmen-Shannon/lumen/engine/renderer/gpu"

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material. Materials default to the
// name of their shader.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithFlags is an option builder that sets the initial render flags.
//
// Parameters:
//   - flags: the render flags
//
// Returns:
//   - MaterialBuilderOption: a function that applies the flags option to a material
func WithFlags(flags Flags) MaterialBuilderOption {
	return func(m *material) {
		m.flags = flags
	}
}

// WithDefaultTextures is an option builder that sets the textures reported for slots no
// texture was set on, one for 2D slots and one for cube slots.
//
// Parameters:
//   - black2D: the default for Texture2D slots
//   - blackCube: the default for TextureCube slots
//
// Returns:
//   - MaterialBuilderOption: a function that applies the default textures to a material
func WithDefaultTextures(black2D, blackCube gpu.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.black2D, m.blackCube = black2D, blackCube
	}
}
