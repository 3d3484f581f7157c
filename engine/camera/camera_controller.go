package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController drives a camera's eye and target. The editor controller orbits a pivot,
// pans it in the view plane and zooms along the view direction.
type CameraController interface {
	// Position returns the eye position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position in world space
	Position() mgl32.Vec3

	// Target returns the pivot the eye looks at.
	Target() mgl32.Vec3

	// SetTarget moves the pivot, keeping radius, azimuth and elevation.
	//
	// Parameters:
	//   - target: the new pivot
	SetTarget(target mgl32.Vec3)

	// Orbit rotates the eye around the pivot. Elevation is clamped to the controller bounds.
	//
	// Parameters:
	//   - dAzimuth: change of the horizontal angle in radians
	//   - dElevation: change of the vertical angle in radians
	Orbit(dAzimuth, dElevation float32)

	// Pan moves eye and pivot together in the view plane.
	//
	// Parameters:
	//   - dx: movement along the camera right axis, in units of the pan speed
	//   - dy: movement along the camera up axis, in units of the pan speed
	Pan(dx, dy float32)

	// Zoom moves the eye towards the pivot for positive deltas. The radius is clamped.
	//
	// Parameters:
	//   - delta: scroll amount
	Zoom(delta float32)

	// BeginDrag starts a mouse drag at the cursor position.
	//
	// Parameters:
	//   - x, y: the cursor position in pixels
	//   - pan: true to pan instead of orbiting for the duration of the drag
	BeginDrag(x, y int32, pan bool)

	// Drag applies cursor movement since the previous call. Without an active drag this does
	// nothing.
	Drag(x, y int32)

	// EndDrag finishes the current drag.
	EndDrag()

	// Dragging reports whether a drag is active.
	Dragging() bool

	Radius() float32
	SetRadius(radius float32)
	Azimuth() float32
	Elevation() float32
}
