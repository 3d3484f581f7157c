package material

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/lumen/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// Uniform is a typed uniform value. The type travels with the value so a material can check
// it against the reflected declaration before writing any bytes.
type Uniform struct {
	typ  shader.UniformType
	data []byte
}

// Float creates a float uniform.
func Float(v float32) Uniform {
	return Uniform{typ: shader.UniformTypeFloat, data: putFloats(v)}
}

// Int creates an int uniform.
func Int(v int32) Uniform {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return Uniform{typ: shader.UniformTypeInt, data: buf}
}

// UInt creates a uint uniform.
func UInt(v uint32) Uniform {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return Uniform{typ: shader.UniformTypeUInt, data: buf}
}

// Bool creates a bool uniform, stored as a 32-bit 0 or 1.
func Bool(v bool) Uniform {
	var bit uint32
	if v {
		bit = 1
	}
	u := UInt(bit)
	u.typ = shader.UniformTypeBool
	return u
}

// Vec2 creates a float2 uniform.
func Vec2(v mgl32.Vec2) Uniform {
	return Uniform{typ: shader.UniformTypeVec2, data: putFloats(v[:]...)}
}

// Vec3 creates a float3 uniform.
func Vec3(v mgl32.Vec3) Uniform {
	return Uniform{typ: shader.UniformTypeVec3, data: putFloats(v[:]...)}
}

// Vec4 creates a float4 uniform.
func Vec4(v mgl32.Vec4) Uniform {
	return Uniform{typ: shader.UniformTypeVec4, data: putFloats(v[:]...)}
}

// Mat4 creates a matrix uniform. mgl32 matrices are column-major, as WGSL expects.
func Mat4(v mgl32.Mat4) Uniform {
	return Uniform{typ: shader.UniformTypeMat4, data: putFloats(v[:]...)}
}

// LightArray creates a light array uniform from marshaled lights, as produced by
// light.MarshalLights.
func LightArray(data []byte) Uniform {
	return Uniform{typ: shader.UniformTypeLightArray, data: append([]byte(nil), data...)}
}

// Type returns the uniform's type.
func (u Uniform) Type() shader.UniformType {
	return u.typ
}

// Bytes returns the little-endian encoding written into a constant buffer.
func (u Uniform) Bytes() []byte {
	return u.data
}

func (u Uniform) String() string {
	return fmt.Sprintf("%s(%d bytes)", u.typ, len(u.data))
}

// AsFloat returns the value of a Float uniform and panics for any other type.
func (u Uniform) AsFloat() float32 {
	u.mustBe(shader.UniformTypeFloat)
	return u.float(0)
}

// AsInt returns the value of an Int uniform and panics for any other type.
func (u Uniform) AsInt() int32 {
	u.mustBe(shader.UniformTypeInt)
	return int32(binary.LittleEndian.Uint32(u.data))
}

// AsUInt returns the value of a UInt uniform and panics for any other type.
func (u Uniform) AsUInt() uint32 {
	u.mustBe(shader.UniformTypeUInt)
	return binary.LittleEndian.Uint32(u.data)
}

// AsBool returns the value of a Bool uniform and panics for any other type.
func (u Uniform) AsBool() bool {
	u.mustBe(shader.UniformTypeBool)
	return binary.LittleEndian.Uint32(u.data) != 0
}

// AsVec2 returns the value of a Vec2 uniform and panics for any other type.
func (u Uniform) AsVec2() mgl32.Vec2 {
	u.mustBe(shader.UniformTypeVec2)
	return mgl32.Vec2{u.float(0), u.float(1)}
}

// AsVec3 returns the value of a Vec3 uniform and panics for any other type.
func (u Uniform) AsVec3() mgl32.Vec3 {
	u.mustBe(shader.UniformTypeVec3)
	return mgl32.Vec3{u.float(0), u.float(1), u.float(2)}
}

// AsVec4 returns the value of a Vec4 uniform and panics for any other type.
func (u Uniform) AsVec4() mgl32.Vec4 {
	u.mustBe(shader.UniformTypeVec4)
	return mgl32.Vec4{u.float(0), u.float(1), u.float(2), u.float(3)}
}

// AsMat4 returns the value of a Mat4 uniform and panics for any other type.
func (u Uniform) AsMat4() mgl32.Mat4 {
	u.mustBe(shader.UniformTypeMat4)
	var m mgl32.Mat4
	for i := range m {
		m[i] = u.float(i)
	}
	return m
}

func (u Uniform) mustBe(t shader.UniformType) {
	if u.typ != t {
		panic(fmt.Sprintf("material: uniform of type %s read as %s", u.typ, t))
	}
}

func (u Uniform) float(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(u.data[i*4:]))
}

func putFloats(values ...float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
