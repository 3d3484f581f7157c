package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

type editorController struct {
	mu *sync.Mutex

	position mgl32.Vec3
	target   mgl32.Vec3

	radius    float32
	azimuth   float32 // around +Y, 0 looks down -Z
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32

	dragging bool
	panning  bool
	lastX    int32
	lastY    int32
}

var _ CameraController = &editorController{}

// NewEditorController creates the orbit/pan/zoom controller used by the editor viewport.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the new controller
func NewEditorController(options ...CameraControllerOption) CameraController {
	cc := &editorController{
		mu:        &sync.Mutex{},
		radius:    10.0,
		elevation: float32(math.Pi / 6),

		minRadius:    0.5,
		maxRadius:    500.0,
		minElevation: float32(-math.Pi/2 + 0.05),
		maxElevation: float32(math.Pi/2 - 0.05),

		mouseSensitivity: 0.005,
		zoomSpeed:        1.0,
		panSpeed:         0.002,
	}
	for _, option := range options {
		option(cc)
	}
	cc.updatePosition()
	return cc
}

// updatePosition derives the eye from the spherical coordinates. Must be called with mu held.
func (cc *editorController) updatePosition() {
	cc.radius = mgl32.Clamp(cc.radius, cc.minRadius, cc.maxRadius)
	cc.elevation = mgl32.Clamp(cc.elevation, cc.minElevation, cc.maxElevation)

	cosElev := float32(math.Cos(float64(cc.elevation)))
	sinElev := float32(math.Sin(float64(cc.elevation)))
	cosAzim := float32(math.Cos(float64(cc.azimuth)))
	sinAzim := float32(math.Sin(float64(cc.azimuth)))

	cc.position = cc.target.Add(mgl32.Vec3{
		cc.radius * cosElev * sinAzim,
		cc.radius * sinElev,
		cc.radius * cosElev * cosAzim,
	})
}

// axes returns the camera right and up vectors. Must be called with mu held.
func (cc *editorController) axes() (right, up mgl32.Vec3) {
	forward := cc.target.Sub(cc.position)
	if forward.Len() < 1e-8 {
		return mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}
	}
	forward = forward.Normalize()
	right = forward.Cross(mgl32.Vec3{0, 1, 0})
	if right.Len() < 1e-8 {
		right = mgl32.Vec3{1, 0, 0}
	}
	right = right.Normalize()
	return right, right.Cross(forward)
}

func (cc *editorController) Position() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *editorController) Target() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *editorController) SetTarget(target mgl32.Vec3) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = target
	cc.updatePosition()
}

func (cc *editorController) Orbit(dAzimuth, dElevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth += dAzimuth
	cc.elevation += dElevation
	cc.updatePosition()
}

func (cc *editorController) Pan(dx, dy float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.pan(dx, dy)
}

// pan scales with the radius so distant views move as fast on screen as close ones.
func (cc *editorController) pan(dx, dy float32) {
	right, up := cc.axes()
	scale := cc.panSpeed * cc.radius
	cc.target = cc.target.Add(right.Mul(dx * scale)).Add(up.Mul(dy * scale))
	cc.updatePosition()
}

func (cc *editorController) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius -= delta * cc.zoomSpeed * max(cc.radius*0.1, 0.1)
	cc.updatePosition()
}

func (cc *editorController) BeginDrag(x, y int32, pan bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.dragging = true
	cc.panning = pan
	cc.lastX, cc.lastY = x, y
}

func (cc *editorController) Drag(x, y int32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if !cc.dragging {
		return
	}
	dx := float32(x - cc.lastX)
	dy := float32(y - cc.lastY)
	cc.lastX, cc.lastY = x, y
	if cc.panning {
		cc.pan(-dx, dy)
		return
	}
	cc.azimuth -= dx * cc.mouseSensitivity
	cc.elevation += dy * cc.mouseSensitivity
	cc.updatePosition()
}

func (cc *editorController) EndDrag() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.dragging = false
	cc.panning = false
}

func (cc *editorController) Dragging() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.dragging
}

func (cc *editorController) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *editorController) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = radius
	cc.updatePosition()
}

func (cc *editorController) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *editorController) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}
