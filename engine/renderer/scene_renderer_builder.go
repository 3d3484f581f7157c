package renderer

import "github.com/Carmen-Shannon/lumen/engine/renderer/gpu"

// SceneRendererBuilderOption is a functional option applied to a scene renderer during
// construction via NewSceneRenderer.
type SceneRendererBuilderOption func(*sceneRenderer)

// WithSize sets the initial size of the geometry and composite targets, 1280x720 by default.
//
// Parameters:
//   - width: the target width in pixels
//   - height: the target height in pixels
//
// Returns:
//   - SceneRendererBuilderOption: a function that applies the size option to a scene renderer
func WithSize(width, height int) SceneRendererBuilderOption {
	return func(s *sceneRenderer) {
		s.width, s.height = width, height
	}
}

// WithClearColor sets the clear color of the geometry target.
func WithClearColor(c gpu.Color) SceneRendererBuilderOption {
	return func(s *sceneRenderer) {
		s.clearColor = c
	}
}

// WithSwapChainTarget controls whether Flush blits the composite result to the swap chain.
// Editors that show FinalImage in a viewport disable it.
//
// Parameters:
//   - target: true to draw to the swap chain (the default)
//
// Returns:
//   - SceneRendererBuilderOption: a function that applies the swap chain option to a scene renderer
func WithSwapChainTarget(target bool) SceneRendererBuilderOption {
	return func(s *sceneRenderer) {
		s.targetSwapChain = target
	}
}

// WithGrid controls whether the ground grid is drawn after the scene.
func WithGrid(enabled bool) SceneRendererBuilderOption {
	return func(s *sceneRenderer) {
		s.gridEnabled = enabled
	}
}

// WithGridTexture sets the texture tiled across the ground grid. Without it the grid samples
// the black texture.
//
// Parameters:
//   - tex: the grid texture, usually mirror-wrapped with a full mip chain
//
// Returns:
//   - SceneRendererBuilderOption: a function that applies the grid texture option to a scene renderer
func WithGridTexture(tex gpu.Texture) SceneRendererBuilderOption {
	return func(s *sceneRenderer) {
		s.gridTexture = tex
	}
}

// WithExposure sets the initial exposure, 0.3 by default.
func WithExposure(exposure float32) SceneRendererBuilderOption {
	return func(s *sceneRenderer) {
		s.exposure = exposure
	}
}
