package scene

import (
	"github.com/Carmen-Shannon/lumen/engine/game_object"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithState sets the initial play state.
//
// Parameters:
//   - state: the play state
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithState(state State) SceneBuilderOption {
	return func(s *scene) {
		s.state = state
	}
}

// WithObjects adds initial objects to the scene.
// Objects without IDs will be assigned new IDs.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(s *scene) {
		for _, obj := range objects {
			s.add(obj)
		}
	}
}
