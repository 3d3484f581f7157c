// annotations.go defines the //@lumen: annotations understood by the shader pre-processor.
// Annotations are single-line comments, so a source that carries them is still valid in the
// declaration dialect.
//
//	//@lumen:bind <vertex|pixel> <system|material>   above a cbuffer
//	//@lumen:bind <system|material>                  above a texture or sampler
//	//@lumen:include <struct>                        injects a registered WGSL struct
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/lumen/engine/light"
	"github.com/Carmen-Shannon/lumen/engine/renderer/gpu"
)

// annotationPrefix marks an annotation inside a line comment.
const annotationPrefix = "@lumen:"

// AnnotationType identifies the kind of annotation.
type AnnotationType string

const (
	// AnnotationTypeBind sets the stage and class of the declaration on the next line,
	// overriding the naming convention.
	AnnotationTypeBind AnnotationType = "bind"

	// AnnotationTypeInclude is replaced by the WGSL source of a registered struct.
	AnnotationTypeInclude AnnotationType = "include"
)

// includeLight is the include argument for the Light struct.
const includeLight = "light"

// includeSources maps include arguments to the WGSL they inject.
var includeSources = map[string]string{
	includeLight: light.GPULightSource,
}

var annotationStages = map[string]gpu.Stage{
	"vertex": gpu.StageVertex,
	"pixel":  gpu.StagePixel,
}

var annotationClasses = map[string]Class{
	"system":   ClassSystem,
	"material": ClassMaterial,
}

// Annotation is one parsed //@lumen: line.
type Annotation struct {
	Type AnnotationType

	// Line is the 1-based source line of the annotation.
	Line int

	// Stage and Class are set by bind annotations. HasStage is false for the resource form,
	// which carries only a class.
	Stage    gpu.Stage
	HasStage bool
	Class    Class

	// Include is the struct key of an include annotation.
	Include string
}

// parseAnnotation parses one source line. Lines without the annotation prefix return nil
// with no error.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the annotation, or nil if the line is not one
//   - error: ErrInvalidAnnotation wrapped with the problem
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	comment, ok := strings.CutPrefix(strings.TrimSpace(line), "//")
	if !ok {
		return nil, nil
	}
	body, ok := strings.CutPrefix(strings.TrimSpace(comment), annotationPrefix)
	if !ok {
		return nil, nil
	}
	args := strings.Fields(body)
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: line %d: empty annotation", ErrInvalidAnnotation, lineNum)
	}

	a := &Annotation{Type: AnnotationType(args[0]), Line: lineNum}
	switch a.Type {
	case AnnotationTypeBind:
		switch len(args) {
		case 2:
		case 3:
			stage, ok := annotationStages[args[1]]
			if !ok {
				return nil, fmt.Errorf("%w: line %d: unknown stage %q", ErrInvalidAnnotation, lineNum, args[1])
			}
			a.Stage, a.HasStage = stage, true
		default:
			return nil, fmt.Errorf("%w: line %d: bind takes [stage] class", ErrInvalidAnnotation, lineNum)
		}
		class, ok := annotationClasses[args[len(args)-1]]
		if !ok {
			return nil, fmt.Errorf("%w: line %d: unknown class %q", ErrInvalidAnnotation, lineNum, args[len(args)-1])
		}
		a.Class = class
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: line %d: include takes exactly one struct", ErrInvalidAnnotation, lineNum)
		}
		if _, ok := includeSources[args[1]]; !ok {
			return nil, fmt.Errorf("%w: line %d: unknown include %q", ErrInvalidAnnotation, lineNum, args[1])
		}
		a.Include = args[1]
	default:
		return nil, fmt.Errorf("%w: line %d: unknown annotation %q", ErrInvalidAnnotation, lineNum, args[0])
	}
	return a, nil
}

// tagAbove returns the bind annotation on the line directly above the line containing
// offset, or nil when that line is not a bind annotation.
func tagAbove(source string, offset int) (*Annotation, error) {
	lineStart := strings.LastIndexByte(source[:offset], '\n')
	if lineStart < 0 {
		return nil, nil
	}
	above := source[:lineStart]
	prev := above[strings.LastIndexByte(above, '\n')+1:]

	a, err := parseAnnotation(prev, strings.Count(above, "\n")+1)
	if err != nil || a == nil || a.Type != AnnotationTypeBind {
		return nil, err
	}
	return a, nil
}
