package light

import "github.com/go-gl/mathgl/mgl32"

// LightType identifies the kind of light source. The values are the LightType field of the
// GPU Light struct.
type LightType uint32

const (
	// LightTypeDirectional is a light with a direction and no position, such as the sun.
	LightTypeDirectional LightType = iota

	// LightTypePoint emits in all directions from a position and attenuates with distance.
	LightTypePoint

	// LightTypeSpot emits in a cone from a position along a direction.
	LightTypeSpot
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// Default attenuation factors applied to every new light.
const (
	DefaultConstAttenuation     float32 = 1.0
	DefaultLinearAttenuation    float32 = 0.08
	DefaultQuadraticAttenuation float32 = 0.0
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	lightType LightType
	position  mgl32.Vec3
	direction mgl32.Vec3
	color     mgl32.Vec3
	intensity float32
	coneAngle float32

	constAttenuation     float32
	linearAttenuation    float32
	quadraticAttenuation float32
}

// Light defines the interface for a light source submitted with an Environment.
//
// Type-specific properties (the position of a directional light, the direction of a
// point light, the cone angle of anything but a spot light) are kept but not uploaded.
type Light interface {
	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: directional, point or spot
	Type() LightType

	// Position returns the world-space position of the light.
	Position() mgl32.Vec3

	// Direction returns the normalized direction the light travels in.
	Direction() mgl32.Vec3

	// Color returns the RGB color of the light.
	Color() mgl32.Vec3

	// Intensity returns the scalar intensity multiplier.
	Intensity() float32

	// ConeAngle returns the spot light cone angle in radians.
	ConeAngle() float32

	// ConstAttenuation, LinearAttenuation and QuadraticAttenuation return the distance
	// attenuation factors for positioned lights.
	ConstAttenuation() float32
	LinearAttenuation() float32
	QuadraticAttenuation() float32

	// SetPosition sets the world-space position of the light.
	//
	// Parameters:
	//   - position: the new position
	SetPosition(position mgl32.Vec3)

	// SetDirection sets the direction of the light. The direction is normalized; a zero
	// vector is stored as is.
	//
	// Parameters:
	//   - direction: the new direction
	SetDirection(direction mgl32.Vec3)

	// SetColor sets the RGB color of the light.
	SetColor(color mgl32.Vec3)

	// SetIntensity sets the scalar intensity multiplier.
	SetIntensity(intensity float32)
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with white color, unit intensity,
// a downward direction and the default attenuation, then applies the options.
//
// Parameters:
//   - lightType: the kind of light to create
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType:            lightType,
		direction:            mgl32.Vec3{0, -1, 0},
		color:                mgl32.Vec3{1, 1, 1},
		intensity:            1.0,
		constAttenuation:     DefaultConstAttenuation,
		linearAttenuation:    DefaultLinearAttenuation,
		quadraticAttenuation: DefaultQuadraticAttenuation,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewDirectionalLight creates a directional light.
func NewDirectionalLight(color mgl32.Vec3, intensity float32, direction mgl32.Vec3) Light {
	return NewLight(LightTypeDirectional, WithColor(color), WithIntensity(intensity), WithDirection(direction))
}

// NewPointLight creates a point light.
func NewPointLight(color mgl32.Vec3, intensity float32, position mgl32.Vec3) Light {
	return NewLight(LightTypePoint, WithColor(color), WithIntensity(intensity), WithPosition(position))
}

// NewSpotLight creates a spot light with a cone angle in radians.
func NewSpotLight(color mgl32.Vec3, intensity float32, position, direction mgl32.Vec3, coneAngle float32) Light {
	return NewLight(LightTypeSpot,
		WithColor(color),
		WithIntensity(intensity),
		WithPosition(position),
		WithDirection(direction),
		WithConeAngle(coneAngle),
	)
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec3 {
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) ConeAngle() float32 {
	return l.coneAngle
}

func (l *lightImpl) ConstAttenuation() float32 {
	return l.constAttenuation
}

func (l *lightImpl) LinearAttenuation() float32 {
	return l.linearAttenuation
}

func (l *lightImpl) QuadraticAttenuation() float32 {
	return l.quadraticAttenuation
}

func (l *lightImpl) SetPosition(position mgl32.Vec3) {
	l.position = position
}

func (l *lightImpl) SetDirection(direction mgl32.Vec3) {
	l.direction = normalize(direction)
}

func (l *lightImpl) SetColor(color mgl32.Vec3) {
	l.color = color
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.intensity = intensity
}
