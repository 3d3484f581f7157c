// reflection.go extracts constant buffer and resource layouts from shader source written in
// the engine's declaration dialect: WGSL with register-bound declarations of the form
//
//	cbuffer PSMaterial : register(b0) { float4 u_AlbedoColor; float u_Metalness; };
//	TextureCube u_EnvironmentMap : register(t4);
//	SamplerState u_EnvironmentMapSampler : register(s4);
//	RWTexture2DArray<float4> u_Output : register(u0);
//
// Reflection is the single source of truth for every binding: the pre-processor lowers
// the same declarations to WGSL from the Reflection, and materials address uniforms by the
// offsets computed here.
package shader

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/lumen/engine/light"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
)

var (
	// ErrUnknownUniformType is returned for a cbuffer member whose type token is not supported.
	ErrUnknownUniformType = errors.New("shader: unknown uniform type")

	// ErrUnknownBufferSignature is returned for an untagged render cbuffer whose name does not
	// follow the VSSystem/PSSystem/VSMaterial/PSMaterial convention.
	ErrUnknownBufferSignature = errors.New("shader: unknown constant buffer signature")

	// ErrDuplicateMaterialBuffer is returned when a stage declares a second material buffer.
	ErrDuplicateMaterialBuffer = errors.New("shader: duplicate material constant buffer")

	// ErrDuplicateRegister is returned when two declarations share a binding slot.
	ErrDuplicateRegister = errors.New("shader: duplicate register")

	// ErrInvalidRegister is returned when a resource is bound to the wrong register class.
	ErrInvalidRegister = errors.New("shader: invalid register class")

	// ErrMisalignedUniform is returned when a uniform's packed offset breaks WGSL alignment.
	ErrMisalignedUniform = errors.New("shader: misaligned uniform")

	// ErrInvalidAnnotation is returned for a malformed //@lumen: annotation.
	ErrInvalidAnnotation = errors.New("shader: invalid annotation")

	// ErrEmptyConstantBuffer is returned for a cbuffer without members.
	ErrEmptyConstantBuffer = errors.New("shader: empty constant buffer")

	// ErrMissingEntryPoint is returned when a shader lacks a required entry point.
	ErrMissingEntryPoint = errors.New("shader: missing entry point")
)

// UniformType is the type of a single constant buffer member.
type UniformType int

const (
	UniformTypeNone UniformType = iota
	UniformTypeFloat
	UniformTypeInt
	UniformTypeUInt
	UniformTypeBool
	UniformTypeVec2
	UniformTypeVec3
	UniformTypeVec4
	UniformTypeMat4

	// UniformTypeLightArray is a fixed array of light.MaxLightCount Light structs.
	UniformTypeLightArray
)

// uniformTypeInfo describes one UniformType: its packed size, the alignment WGSL requires
// for it in the uniform address space, and its WGSL spelling.
type uniformTypeInfo struct {
	name  string
	size  int
	align int
	wgsl  string
}

var uniformTypes = map[UniformType]uniformTypeInfo{
	UniformTypeFloat:      {"Float", 4, 4, "f32"},
	UniformTypeInt:        {"Int", 4, 4, "i32"},
	UniformTypeUInt:       {"UInt", 4, 4, "u32"},
	UniformTypeBool:       {"Bool", 4, 4, "u32"},
	UniformTypeVec2:       {"Vec2", 8, 8, "vec2<f32>"},
	UniformTypeVec3:       {"Vec3", 12, 16, "vec3<f32>"},
	UniformTypeVec4:       {"Vec4", 16, 16, "vec4<f32>"},
	UniformTypeMat4:       {"Mat4", 64, 16, "mat4x4<f32>"},
	UniformTypeLightArray: {"LightArray", light.GPULightSize * light.MaxLightCount, 16, fmt.Sprintf("array<Light, %d>", light.MaxLightCount)},
}

// uniformTokens maps declaration type tokens to uniform types.
var uniformTokens = map[string]UniformType{
	"float":    UniformTypeFloat,
	"int":      UniformTypeInt,
	"uint":     UniformTypeUInt,
	"bool":     UniformTypeBool,
	"float2":   UniformTypeVec2,
	"float3":   UniformTypeVec3,
	"float4":   UniformTypeVec4,
	"matrix":   UniformTypeMat4,
	"float4x4": UniformTypeMat4,
	"Light":    UniformTypeLightArray,
}

// ParseUniformType maps a declaration type token to its UniformType.
//
// Parameters:
//   - token: the type token, e.g. "float4"
//
// Returns:
//   - UniformType: the parsed type
//   - error: ErrUnknownUniformType for unsupported tokens
func ParseUniformType(token string) (UniformType, error) {
	if t, ok := uniformTokens[token]; ok {
		return t, nil
	}
	return UniformTypeNone, fmt.Errorf("%w: %q", ErrUnknownUniformType, token)
}

// Size returns the packed byte size of the type, zero for UniformTypeNone.
func (t UniformType) Size() int {
	return uniformTypes[t].size
}

// WGSL returns the WGSL type the uniform lowers to.
func (t UniformType) WGSL() string {
	return uniformTypes[t].wgsl
}

func (t UniformType) String() string {
	if info, ok := uniformTypes[t]; ok {
		return info.name
	}
	return "None"
}

// Class separates engine-owned bindings from per-material bindings.
type Class int

const (
	// ClassSystem bindings are filled by the renderer (transforms, lights, environment).
	ClassSystem Class = iota

	// ClassMaterial bindings are filled from a Material.
	ClassMaterial
)

func (c Class) String() string {
	if c == ClassMaterial {
		return "material"
	}
	return "system"
}

// UniformLayout is one member of a constant buffer.
type UniformLayout struct {
	Name     string
	Type     UniformType
	Size     int
	Offset   int
	Register int
	Stage    gpu.Stage
}

// ConstantBufferLayout is the reflected layout of one cbuffer block. Members are packed
// back to back in declaration order; Finalize pads the total to 16 bytes.
type ConstantBufferLayout struct {
	Name     string
	Register int
	Size     int
	Uniforms []UniformLayout
	Stage    gpu.Stage
	Class    Class

	finalized bool
}

// NewConstantBufferLayout creates an empty, unfinalized layout.
//
// Parameters:
//   - name: the cbuffer name
//   - register: the b-register number
//   - stage: the stage the buffer is bound to
//   - class: system or material
//
// Returns:
//   - *ConstantBufferLayout: the new layout
func NewConstantBufferLayout(name string, register int, stage gpu.Stage, class Class) *ConstantBufferLayout {
	return &ConstantBufferLayout{
		Name:     name,
		Register: register,
		Stage:    stage,
		Class:    class,
	}
}

// AddUniform appends a member at the current end of the buffer. Adding to a finalized
// layout is a contract violation and panics.
//
// Parameters:
//   - name: the member name
//   - t: the member type
//
// Returns:
//   - UniformLayout: the appended member
func (b *ConstantBufferLayout) AddUniform(name string, t UniformType) UniformLayout {
	if b.finalized {
		panic(fmt.Sprintf("shader: cannot add uniform %q to finalized buffer %q", name, b.Name))
	}
	u := UniformLayout{
		Name:     name,
		Type:     t,
		Size:     t.Size(),
		Offset:   b.Size,
		Register: b.Register,
		Stage:    b.Stage,
	}
	b.Size += u.Size
	b.Uniforms = append(b.Uniforms, u)
	return u
}

// Finalize rounds the size up to a multiple of 16 and seals the layout. Calling it again
// has no effect.
func (b *ConstantBufferLayout) Finalize() {
	if b.finalized {
		return
	}
	b.Size = (b.Size + 15) / 16 * 16
	b.finalized = true
}

// IsFinalized reports whether Finalize has been called.
func (b *ConstantBufferLayout) IsFinalized() bool {
	return b.finalized
}

// FindUniform looks a member up by name.
//
// Parameters:
//   - name: the member name
//
// Returns:
//   - UniformLayout: the member
//   - bool: false if no member has that name
func (b *ConstantBufferLayout) FindUniform(name string) (UniformLayout, bool) {
	for _, u := range b.Uniforms {
		if u.Name == name {
			return u, true
		}
	}
	return UniformLayout{}, false
}

// ResourceKind is the kind of a texture or sampler declaration.
type ResourceKind int

const (
	ResourceKindTexture2D ResourceKind = iota
	ResourceKindTextureCube
	ResourceKindRWTexture2D
	ResourceKindRWTexture2DArray
	ResourceKindSampler
)

var resourceKinds = map[string]ResourceKind{
	"Texture2D":        ResourceKindTexture2D,
	"TextureCube":      ResourceKindTextureCube,
	"RWTexture2D":      ResourceKindRWTexture2D,
	"RWTexture2DArray": ResourceKindRWTexture2DArray,
	"SamplerState":     ResourceKindSampler,
}

var resourceKindNames = [...]string{
	ResourceKindTexture2D:        "Texture2D",
	ResourceKindTextureCube:      "TextureCube",
	ResourceKindRWTexture2D:      "RWTexture2D",
	ResourceKindRWTexture2DArray: "RWTexture2DArray",
	ResourceKindSampler:          "SamplerState",
}

func (k ResourceKind) String() string {
	if int(k) < 0 || int(k) >= len(resourceKindNames) {
		return "Unknown"
	}
	return resourceKindNames[k]
}

// IsStorage reports whether the resource is a writable storage texture.
func (k ResourceKind) IsStorage() bool {
	return k == ResourceKindRWTexture2D || k == ResourceKindRWTexture2DArray
}

// registerClass returns the register letter the kind must be bound with.
func (k ResourceKind) registerClass() byte {
	switch {
	case k == ResourceKindSampler:
		return 's'
	case k.IsStorage():
		return 'u'
	default:
		return 't'
	}
}

// ResourceDeclaration is one reflected texture, storage texture or sampler.
type ResourceDeclaration struct {
	Name     string
	Kind     ResourceKind
	Register int
	Class    Class

	// ElementType is the template argument of storage textures, e.g. "float4".
	ElementType string
}

// Reflection is everything Reflect extracts from a shader source.
type Reflection struct {
	// Compute is true for compute shaders.
	Compute bool

	// Buffers holds every constant buffer in declaration order.
	Buffers []*ConstantBufferLayout

	// Resources holds every texture and sampler in declaration order.
	Resources []ResourceDeclaration
}

// MaterialBuffer returns the material buffer of a stage, or nil when the stage has none.
func (r *Reflection) MaterialBuffer(stage gpu.Stage) *ConstantBufferLayout {
	for _, b := range r.Buffers {
		if b.Stage == stage && b.Class == ClassMaterial {
			return b
		}
	}
	return nil
}

// SystemBuffers returns the system buffers of a stage in declaration order.
func (r *Reflection) SystemBuffers(stage gpu.Stage) []*ConstantBufferLayout {
	var out []*ConstantBufferLayout
	for _, b := range r.Buffers {
		if b.Stage == stage && b.Class == ClassSystem {
			out = append(out, b)
		}
	}
	return out
}

// Buffer returns the buffer bound at a stage's register, or nil.
func (r *Reflection) Buffer(stage gpu.Stage, register int) *ConstantBufferLayout {
	for _, b := range r.Buffers {
		if b.Stage == stage && b.Register == register {
			return b
		}
	}
	return nil
}

// MaterialResources returns the material-class resources in declaration order.
func (r *Reflection) MaterialResources() []ResourceDeclaration {
	return r.resources(ClassMaterial)
}

// SystemResources returns the system-class resources in declaration order.
func (r *Reflection) SystemResources() []ResourceDeclaration {
	return r.resources(ClassSystem)
}

func (r *Reflection) resources(class Class) []ResourceDeclaration {
	var out []ResourceDeclaration
	for _, res := range r.Resources {
		if res.Class == class {
			out = append(out, res)
		}
	}
	return out
}

// FindResource looks a resource up by name.
func (r *Reflection) FindResource(name string) (ResourceDeclaration, bool) {
	for _, res := range r.Resources {
		if res.Name == name {
			return res, true
		}
	}
	return ResourceDeclaration{}, false
}

// UsesLights reports whether any buffer has a Light array member.
func (r *Reflection) UsesLights() bool {
	for _, b := range r.Buffers {
		for _, u := range b.Uniforms {
			if u.Type == UniformTypeLightArray {
				return true
			}
		}
	}
	return false
}

var (
	// cbufferRegex captures the name, b-register and body of a cbuffer block.
	cbufferRegex = regexp.MustCompile(`\bcbuffer\s+(\w+)\s*:\s*register\(\s*b(\d+)\s*\)\s*\{([^}]*)\}\s*;?`)

	// memberRegex captures the type and name of a cbuffer member, dropping an array suffix.
	memberRegex = regexp.MustCompile(`(\w+)\s+(\w+)\s*(?:\[\s*\w*\s*\])?\s*;`)

	// resourceRegex captures the kind, optional template argument, name, register class and
	// register number of a resource declaration.
	resourceRegex = regexp.MustCompile(`\b(RWTexture2DArray|RWTexture2D|Texture2D|TextureCube|SamplerState)\s*(?:<\s*(\w+)\s*>)?\s+(\w+)\s*:\s*register\(\s*([a-z])(\d+)\s*\)\s*;?`)
)

// declaration is one matched declaration together with its byte span in the source, so the
// pre-processor can replace it in place.
type declaration struct {
	start, end int
	buffer     *ConstantBufferLayout
	resource   *ResourceDeclaration
}

// Reflect extracts the constant buffer and resource layouts of a shader. It is pure: the
// same source always produces the same Reflection.
//
// Parameters:
//   - source: the shader source in the declaration dialect
//   - compute: true for compute shaders
//
// Returns:
//   - *Reflection: the reflected layouts
//   - error: a wrapped sentinel error describing the first invalid declaration
func Reflect(source string, compute bool) (*Reflection, error) {
	refl, _, err := scanDeclarations(source, compute)
	return refl, err
}

func scanDeclarations(source string, compute bool) (*Reflection, []declaration, error) {
	masked := maskComments(source)
	refl := &Reflection{Compute: compute}
	var decls []declaration

	for _, m := range cbufferRegex.FindAllStringSubmatchIndex(masked, -1) {
		name := masked[m[2]:m[3]]
		register, _ := strconv.Atoi(masked[m[4]:m[5]])
		tag, err := tagAbove(source, m[0])
		if err != nil {
			return nil, nil, err
		}
		stage, class, err := classifyBuffer(name, compute, tag)
		if err != nil {
			return nil, nil, err
		}

		buf := NewConstantBufferLayout(name, register, stage, class)
		for _, mm := range memberRegex.FindAllStringSubmatch(masked[m[6]:m[7]], -1) {
			t, err := ParseUniformType(mm[1])
			if err != nil {
				return nil, nil, fmt.Errorf("cbuffer %s member %s: %w", name, mm[2], err)
			}
			buf.AddUniform(mm[2], t)
		}
		if len(buf.Uniforms) == 0 {
			return nil, nil, fmt.Errorf("%w: %q", ErrEmptyConstantBuffer, name)
		}
		buf.Finalize()

		if class == ClassMaterial && refl.MaterialBuffer(stage) != nil {
			return nil, nil, fmt.Errorf("%w: %s declares a second %s material buffer %q", ErrDuplicateMaterialBuffer, stage, stage, name)
		}
		if other := refl.Buffer(stage, register); other != nil {
			return nil, nil, fmt.Errorf("%w: b%d of stage %s is used by %q and %q", ErrDuplicateRegister, register, stage, other.Name, name)
		}
		refl.Buffers = append(refl.Buffers, buf)
		decls = append(decls, declaration{start: m[0], end: m[1], buffer: buf})
	}

	for _, m := range resourceRegex.FindAllStringSubmatchIndex(masked, -1) {
		kind := resourceKinds[masked[m[2]:m[3]]]
		res := ResourceDeclaration{Name: masked[m[6]:m[7]], Kind: kind}
		if m[4] >= 0 {
			res.ElementType = masked[m[4]:m[5]]
		}
		res.Register, _ = strconv.Atoi(masked[m[10]:m[11]])

		if letter := masked[m[8]]; letter != kind.registerClass() {
			return nil, nil, fmt.Errorf("%w: %s %s bound to %c%d, want %c", ErrInvalidRegister, kind, res.Name, letter, res.Register, kind.registerClass())
		}
		if kind.IsStorage() && !compute {
			return nil, nil, fmt.Errorf("%w: storage texture %s in a render shader", ErrInvalidRegister, res.Name)
		}
		for _, other := range refl.Resources {
			if other.Register == res.Register && other.Kind.registerClass() == kind.registerClass() {
				return nil, nil, fmt.Errorf("%w: %c%d is used by %q and %q", ErrDuplicateRegister, kind.registerClass(), res.Register, other.Name, res.Name)
			}
		}

		tag, err := tagAbove(source, m[0])
		if err != nil {
			return nil, nil, err
		}
		res.Class = classifyResource(res.Name, compute, tag)

		refl.Resources = append(refl.Resources, res)
		decls = append(decls, declaration{start: m[0], end: m[1], resource: &res})
	}
	return refl, decls, nil
}

// classifyBuffer decides the stage and class of a cbuffer. An explicit bind tag wins;
// untagged render buffers fall back to the naming convention.
func classifyBuffer(name string, compute bool, tag *Annotation) (gpu.Stage, Class, error) {
	if compute {
		return gpu.StageCompute, ClassSystem, nil
	}
	if tag != nil {
		if !tag.HasStage {
			return 0, 0, fmt.Errorf("%w: line %d: bind tag above cbuffer %s needs a stage", ErrInvalidAnnotation, tag.Line, name)
		}
		return tag.Stage, tag.Class, nil
	}
	switch {
	case strings.Contains(name, "VSSystem"):
		return gpu.StageVertex, ClassSystem, nil
	case strings.Contains(name, "PSSystem"):
		return gpu.StagePixel, ClassSystem, nil
	case strings.Contains(name, "VSMaterial"):
		return gpu.StageVertex, ClassMaterial, nil
	case strings.Contains(name, "PSMaterial"):
		return gpu.StagePixel, ClassMaterial, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrUnknownBufferSignature, name)
}

// classifyResource decides the class of a resource. An explicit bind tag wins; otherwise
// the sys_ prefix marks system resources.
func classifyResource(name string, compute bool, tag *Annotation) Class {
	switch {
	case compute:
		return ClassSystem
	case tag != nil:
		return tag.Class
	case strings.HasPrefix(name, "sys_"):
		return ClassSystem
	default:
		return ClassMaterial
	}
}
