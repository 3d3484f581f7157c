package light

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// MaxLightCount is the number of light slots a shader's Light array holds. Environments
// never carry more lights than this.
const MaxLightCount = 10

// GPULightSize is the byte size of one marshaled GPULight.
const GPULightSize = 80

// GPULightSource is the WGSL definition of the Light struct. Its layout matches GPULight.
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU representation of a single light (80 bytes).
type GPULight struct {
	Position             [4]float32 // offset  0: w = 1 for positioned lights
	Direction            [4]float32 // offset 16: w = 0
	Color                [4]float32 // offset 32: a = 1
	Intensity            float32    // offset 48
	ConeAngle            float32    // offset 52: spot lights only
	ConstAttenuation     float32    // offset 56
	LinearAttenuation    float32    // offset 60
	QuadraticAttenuation float32    // offset 64
	LightType            uint32     // offset 68
	_pad                 [2]float32 // offset 72
}

// Marshal serializes the light into its little-endian GPU layout.
//
// Returns:
//   - []byte: GPULightSize bytes ready for upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, GPULightSize)
	g.marshalInto(buf)
	return buf
}

func (g *GPULight) marshalInto(buf []byte) {
	putVec4 := func(off int, v [4]float32) {
		for i, c := range v {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(c))
		}
	}
	putVec4(0, g.Position)
	putVec4(16, g.Direction)
	putVec4(32, g.Color)
	binary.LittleEndian.PutUint32(buf[48:], math.Float32bits(g.Intensity))
	binary.LittleEndian.PutUint32(buf[52:], math.Float32bits(g.ConeAngle))
	binary.LittleEndian.PutUint32(buf[56:], math.Float32bits(g.ConstAttenuation))
	binary.LittleEndian.PutUint32(buf[60:], math.Float32bits(g.LinearAttenuation))
	binary.LittleEndian.PutUint32(buf[64:], math.Float32bits(g.QuadraticAttenuation))
	binary.LittleEndian.PutUint32(buf[68:], g.LightType)
	clear(buf[72:80])
}

// ToGPULight converts a Light to its GPU representation.
//
// Parameters:
//   - l: the Light to convert
//
// Returns:
//   - GPULight: the GPU layout of the light
func ToGPULight(l Light) GPULight {
	pos, dir, col := l.Position(), l.Direction(), l.Color()
	g := GPULight{
		Color:                [4]float32{col[0], col[1], col[2], 1},
		Intensity:            l.Intensity(),
		ConstAttenuation:     l.ConstAttenuation(),
		LinearAttenuation:    l.LinearAttenuation(),
		QuadraticAttenuation: l.QuadraticAttenuation(),
		LightType:            uint32(l.Type()),
	}
	if l.Type() != LightTypePoint {
		g.Direction = [4]float32{dir[0], dir[1], dir[2], 0}
	}
	if l.Type() != LightTypeDirectional {
		g.Position = [4]float32{pos[0], pos[1], pos[2], 1}
	}
	if l.Type() == LightTypeSpot {
		g.ConeAngle = l.ConeAngle()
	}
	return g
}

// MarshalLights packs up to MaxLightCount lights into the fixed-size array a shader's
// Light uniform expects. Unused slots are zero.
//
// Parameters:
//   - lights: the lights to marshal
//
// Returns:
//   - []byte: MaxLightCount*GPULightSize bytes
func MarshalLights(lights []Light) []byte {
	buf := make([]byte, MaxLightCount*GPULightSize)
	for i, l := range lights {
		if i == MaxLightCount {
			break
		}
		g := ToGPULight(l)
		g.marshalInto(buf[i*GPULightSize : (i+1)*GPULightSize])
	}
	return buf
}
