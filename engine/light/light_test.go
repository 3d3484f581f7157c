package light

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/Carmen-Shannon/lumen/engine/logger"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestGPULightLayout(t *testing.T) {
	l := NewPointLight(mgl32.Vec3{1, 0.5, 0.25}, 3, mgl32.Vec3{1, 2, 3})
	g := ToGPULight(l)
	buf := g.Marshal()
	require.Len(t, buf, GPULightSize)

	assert.Equal(t, float32(1), f32At(buf, 0))
	assert.Equal(t, float32(3), f32At(buf, 8))
	assert.Equal(t, float32(1), f32At(buf, 12), "positioned lights carry w = 1")
	assert.Equal(t, float32(0), f32At(buf, 16), "point lights have no direction")
	assert.Equal(t, float32(0.5), f32At(buf, 36))
	assert.Equal(t, float32(1), f32At(buf, 44))
	assert.Equal(t, float32(3), f32At(buf, 48))
	assert.Equal(t, DefaultConstAttenuation, f32At(buf, 56))
	assert.Equal(t, DefaultLinearAttenuation, f32At(buf, 60))
	assert.Equal(t, uint32(LightTypePoint), binary.LittleEndian.Uint32(buf[68:]))
}

func TestDirectionalLightHasNoPosition(t *testing.T) {
	l := NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1, mgl32.Vec3{0, -2, 0})
	assert.InDelta(t, -1, l.Direction().Y(), 1e-6)

	g := ToGPULight(l)
	assert.Equal(t, [4]float32{}, g.Position)
	assert.Equal(t, [4]float32{0, -1, 0, 0}, g.Direction)
	assert.Equal(t, float32(0), g.ConeAngle)
}

func TestSpotLightKeepsCone(t *testing.T) {
	l := NewSpotLight(mgl32.Vec3{1, 1, 1}, 1, mgl32.Vec3{0, 5, 0}, mgl32.Vec3{0, -1, 0}, 0.5)
	g := ToGPULight(l)
	assert.Equal(t, float32(0.5), g.ConeAngle)
	assert.Equal(t, uint32(LightTypeSpot), g.LightType)
}

func TestZeroDirectionIsKept(t *testing.T) {
	l := NewLight(LightTypeDirectional, WithDirection(mgl32.Vec3{}))
	assert.Equal(t, mgl32.Vec3{}, l.Direction())
}

func TestEnvironmentCapsLights(t *testing.T) {
	logger.SetOutput(io.Discard)
	env := NewEnvironment()
	for i := range MaxLightCount {
		require.True(t, env.AddLight(NewPointLight(mgl32.Vec3{1, 1, 1}, float32(i), mgl32.Vec3{})))
	}
	assert.False(t, env.AddLight(NewPointLight(mgl32.Vec3{1, 1, 1}, 99, mgl32.Vec3{})))
	assert.Len(t, env.Lights(), MaxLightCount)

	buf := env.MarshalLights()
	require.Len(t, buf, MaxLightCount*GPULightSize)
	assert.Equal(t, float32(9), f32At(buf, 9*GPULightSize+48))
}

func TestMarshalLightsZeroFillsUnusedSlots(t *testing.T) {
	env := NewEnvironment()
	env.AddLight(NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 2, mgl32.Vec3{0, 0, -1}))
	buf := env.MarshalLights()
	assert.Equal(t, float32(2), f32At(buf, 48))
	assert.Equal(t, make([]byte, GPULightSize), buf[GPULightSize:2*GPULightSize])
}

func TestEnvironmentMapValidity(t *testing.T) {
	var m *EnvironmentMap
	assert.False(t, m.IsValid())
	assert.False(t, (&EnvironmentMap{Name: "sky"}).IsValid())
	assert.Nil(t, NewEnvironment().EnvironmentMap())
}
