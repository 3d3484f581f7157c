package renderer

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithShaderDir loads every .wgsl file in dir after the built-in shaders, replacing built-ins
// of the same name. The directory is also the one WatchShaders observes.
//
// Parameters:
//   - dir: the shader directory
//
// Returns:
//   - RendererBuilderOption: a function that applies the shader directory option to a renderer
func WithShaderDir(dir string) RendererBuilderOption {
	return func(r *renderer) {
		r.shaderDir = dir
	}
}

// WithEnvironmentSize sets the face size of baked environment cubes. The size must be a power
// of two; the prefiltered cube gets log2(size)+1 mips.
//
// Parameters:
//   - size: the face size in pixels, 1024 by default
//
// Returns:
//   - RendererBuilderOption: a function that applies the environment size option to a renderer
func WithEnvironmentSize(size int) RendererBuilderOption {
	return func(r *renderer) {
		r.envSize = size
	}
}

// WithIrradianceSize sets the face size of baked irradiance cubes, 32 by default.
func WithIrradianceSize(size int) RendererBuilderOption {
	return func(r *renderer) {
		r.irradianceSize = size
	}
}

// WithBRDFLUTSize sets the size of the BRDF lookup table, 256 by default.
func WithBRDFLUTSize(size int) RendererBuilderOption {
	return func(r *renderer) {
		r.brdfSize = size
	}
}
