// pre_processor.go lowers the declaration dialect to plain WGSL. Every cbuffer and resource
// declaration found by reflection is replaced in place by a WGSL module-scope variable bound
// according to the engine's binding model:
//
//	register   render shader                 compute shader
//	b<N>       @group(0) vertex, @group(1) pixel   @group(0)
//	u<N>       -                             @group(1)
//	t<N>       @group(2)                     @group(2)
//	s<N>       @group(3)                     @group(3)
//
// The binding index is always the register number. //@lumen:include lines are replaced by
// the struct they name, and the Light struct is injected once whenever a buffer declares a
// Light array.
package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
)

// Bind group indices of the binding model.
const (
	GroupVertexConstants  = 0
	GroupPixelConstants   = 1
	GroupComputeConstants = 0
	GroupStorage          = 1
	GroupTextures         = 2
	GroupSamplers         = 3
)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	reflection *Reflection
}

// PreProcessor reflects a shader and lowers it to WGSL.
type PreProcessor interface {
	// Process reflects source and returns it lowered to WGSL.
	//
	// Parameters:
	//   - source: the shader source in the declaration dialect
	//   - compute: true for compute shaders
	//
	// Returns:
	//   - string: the WGSL source
	//   - error: a reflection, annotation or alignment error
	Process(source string, compute bool) (string, error)

	// Reflection returns the reflection produced by the most recent successful Process call.
	//
	// Returns:
	//   - *Reflection: the reflection, or nil before the first successful call
	Reflection() *Reflection
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{}
}

func (p *preProcessor) Reflection() *Reflection {
	return p.reflection
}

func (p *preProcessor) Process(source string, compute bool) (string, error) {
	// validated against the original source so errors carry its line numbers
	for i, line := range strings.Split(source, "\n") {
		if _, err := parseAnnotation(line, i+1); err != nil {
			return "", err
		}
	}

	refl, decls, err := scanDeclarations(source, compute)
	if err != nil {
		return "", err
	}
	for _, b := range refl.Buffers {
		if err := checkAlignment(b); err != nil {
			return "", err
		}
	}

	slices.SortFunc(decls, func(a, b declaration) int { return a.start - b.start })
	var sb strings.Builder
	cursor := 0
	for _, d := range decls {
		sb.WriteString(source[cursor:d.start])
		if d.buffer != nil {
			sb.WriteString(lowerBuffer(d.buffer))
		} else {
			sb.WriteString(lowerResource(*d.resource))
		}
		cursor = d.end
	}
	sb.WriteString(source[cursor:])

	lines := strings.Split(sb.String(), "\n")
	included := make(map[string]bool)
	for i, line := range lines {
		a, _ := parseAnnotation(line, i+1)
		if a == nil || a.Type != AnnotationTypeInclude {
			continue
		}
		if included[a.Include] {
			lines[i] = ""
			continue
		}
		lines[i] = includeSources[a.Include]
		included[a.Include] = true
	}
	out := strings.Join(lines, "\n")
	if refl.UsesLights() && !included[includeLight] {
		out = includeSources[includeLight] + "\n" + out
	}

	p.reflection = refl
	return out, nil
}

// checkAlignment verifies that the packed offset of every member is also a legal WGSL
// uniform offset for its type.
func checkAlignment(b *ConstantBufferLayout) error {
	for _, u := range b.Uniforms {
		if align := uniformTypes[u.Type].align; u.Offset%align != 0 {
			return fmt.Errorf("%w: %s.%s (%s) at offset %d needs %d-byte alignment", ErrMisalignedUniform, b.Name, u.Name, u.Type, u.Offset, align)
		}
	}
	return nil
}

// bufferGroup returns the bind group of a constant buffer.
func bufferGroup(stage gpu.Stage) int {
	switch stage {
	case gpu.StagePixel:
		return GroupPixelConstants
	case gpu.StageCompute:
		return GroupComputeConstants
	default:
		return GroupVertexConstants
	}
}

// ResourceGroup returns the bind group a resource kind is lowered into.
func ResourceGroup(kind ResourceKind) int {
	switch {
	case kind == ResourceKindSampler:
		return GroupSamplers
	case kind.IsStorage():
		return GroupStorage
	default:
		return GroupTextures
	}
}

func lowerBuffer(b *ConstantBufferLayout) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %sData {\n", b.Name)
	for _, u := range b.Uniforms {
		fmt.Fprintf(&sb, "    %s: %s,\n", u.Name, u.Type.WGSL())
	}
	sb.WriteString("};\n")
	fmt.Fprintf(&sb, "@group(%d) @binding(%d) var<uniform> %s: %sData;", bufferGroup(b.Stage), b.Register, b.Name, b.Name)
	return sb.String()
}

func lowerResource(r ResourceDeclaration) string {
	var wgslType string
	switch r.Kind {
	case ResourceKindTexture2D:
		wgslType = "texture_2d<f32>"
	case ResourceKindTextureCube:
		wgslType = "texture_cube<f32>"
	case ResourceKindRWTexture2D:
		wgslType = "texture_storage_2d<rgba16float, write>"
	case ResourceKindRWTexture2DArray:
		wgslType = "texture_storage_2d_array<rgba16float, write>"
	case ResourceKindSampler:
		wgslType = "sampler"
	}
	return fmt.Sprintf("@group(%d) @binding(%d) var %s: %s;", ResourceGroup(r.Kind), r.Register, r.Name, wgslType)
}
