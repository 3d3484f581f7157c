package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestCameraWithoutController(t *testing.T) {
	c := NewCamera(WithPosition(mgl32.Vec3{0, 0, 5}))
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, c.Position())

	// The origin sits 5 units in front of the eye.
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, -5, float64(p[2]), 1e-5)
}

func TestCameraFollowsController(t *testing.T) {
	ctrl := NewEditorController(WithRadius(10), WithElevation(0), WithAzimuth(0))
	c := NewCamera(WithController(ctrl))
	assert.InDelta(t, 10, float64(c.Position()[2]), 1e-4)

	ctrl.SetTarget(mgl32.Vec3{1, 0, 0})
	c.Update()
	assert.InDelta(t, 1, float64(c.Position()[0]), 1e-4)
}

func TestSetViewportSizeIgnoresZero(t *testing.T) {
	c := NewCamera()
	c.SetViewportSize(800, 400)
	assert.Equal(t, float32(2), c.Aspect())
	c.SetViewportSize(0, 400)
	assert.Equal(t, float32(2), c.Aspect())
}

func TestViewProjection(t *testing.T) {
	c := NewCamera()
	assert.True(t, c.ViewProjection().ApproxEqual(c.Projection().Mul4(c.View())))
}

func TestZoomClampsRadius(t *testing.T) {
	ctrl := NewEditorController(WithRadius(2), WithRadiusBounds(1, 3))
	for range 100 {
		ctrl.Zoom(1)
	}
	assert.Equal(t, float32(1), ctrl.Radius())
	ctrl.SetRadius(50)
	assert.Equal(t, float32(3), ctrl.Radius())
}

func TestOrbitClampsElevation(t *testing.T) {
	ctrl := NewEditorController()
	ctrl.Orbit(0, 10)
	assert.Less(t, ctrl.Elevation(), float32(1.571))
	assert.Greater(t, ctrl.Position()[1], float32(0))
}

func TestDragOrbitsAndPans(t *testing.T) {
	ctrl := NewEditorController(WithElevation(0), WithAzimuth(0))

	ctrl.Drag(10, 10)
	assert.Equal(t, float32(0), ctrl.Azimuth())

	ctrl.BeginDrag(0, 0, false)
	ctrl.Drag(100, 0)
	assert.InDelta(t, -0.5, float64(ctrl.Azimuth()), 1e-5)
	ctrl.EndDrag()
	assert.False(t, ctrl.Dragging())

	before := ctrl.Target()
	ctrl.BeginDrag(0, 0, true)
	ctrl.Drag(0, 50)
	ctrl.EndDrag()
	assert.Greater(t, ctrl.Target()[1], before[1])
	assert.InDelta(t, -0.5, float64(ctrl.Azimuth()), 1e-5)
}
