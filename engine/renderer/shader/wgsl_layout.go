package shader

import (
	"strconv"
	"strings"
)

// typeLayout is the size and alignment of a WGSL type in host-shareable memory.
type typeLayout struct {
	size  uint64
	align uint64
}

// scalarLayouts holds the layouts of the WGSL scalar, vector and matrix types the engine's
// shaders use. Shorthand aliases (vec4f) resolve through the same table.
var scalarLayouts = map[string]typeLayout{
	"f32": {4, 4}, "i32": {4, 4}, "u32": {4, 4}, "bool": {4, 4},

	"vec2<f32>": {8, 8}, "vec2<i32>": {8, 8}, "vec2<u32>": {8, 8},
	"vec3<f32>": {12, 16}, "vec3<i32>": {12, 16}, "vec3<u32>": {12, 16},
	"vec4<f32>": {16, 16}, "vec4<i32>": {16, 16}, "vec4<u32>": {16, 16},

	"mat2x2<f32>": {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat4x4<f32>": {64, 16},
}

// typeAliases maps predeclared WGSL aliases to their long spelling.
var typeAliases = map[string]string{
	"vec2f": "vec2<f32>", "vec3f": "vec3<f32>", "vec4f": "vec4<f32>",
	"vec2i": "vec2<i32>", "vec3i": "vec3<i32>", "vec4i": "vec4<i32>",
	"vec2u": "vec2<u32>", "vec3u": "vec3<u32>", "vec4u": "vec4<u32>",
	"mat2x2f": "mat2x2<f32>", "mat3x3f": "mat3x3<f32>", "mat4x4f": "mat4x4<f32>",
}

func canonicalType(name string) string {
	name = strings.ReplaceAll(name, " ", "")
	if long, ok := typeAliases[name]; ok {
		return long
	}
	return name
}

func alignTo(value, alignment uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) / alignment * alignment
}

// resolveLayout resolves a type against the scalar table and the struct layouts computed so
// far. Fixed-size arrays use the element stride; runtime-sized arrays resolve to one element.
func resolveLayout(name string, structs map[string]typeLayout) (typeLayout, bool) {
	name = canonicalType(name)
	if l, ok := scalarLayouts[name]; ok {
		return l, true
	}
	if l, ok := structs[name]; ok {
		return l, true
	}
	inner, ok := strings.CutPrefix(name, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return typeLayout{}, false
	}
	inner = strings.TrimSuffix(inner, ">")
	elemName, countText, sized := strings.Cut(inner, ",")
	elem, ok := resolveLayout(elemName, structs)
	if !ok {
		return typeLayout{}, false
	}
	stride := alignTo(elem.size, elem.align)
	if !sized {
		return typeLayout{stride, elem.align}, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(countText), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{stride * count, elem.align}, true
}

// structLayout lays out the fields of one struct, or reports false if a field type is not
// known yet.
func structLayout(s wgslStruct, structs map[string]typeLayout) (typeLayout, bool) {
	var offset uint64
	align := uint64(1)
	for _, f := range s.fields {
		if f.builtin {
			continue
		}
		l, ok := resolveLayout(f.typeName, structs)
		if !ok {
			return typeLayout{}, false
		}
		offset = alignTo(offset, l.align) + l.size
		align = max(align, l.align)
	}
	return typeLayout{alignTo(offset, align), align}, true
}

// structLayouts computes the layouts of every struct, repeating until structs that nest other
// structs have all been resolved.
func structLayouts(structs []wgslStruct) map[string]typeLayout {
	resolved := make(map[string]typeLayout, len(structs))
	pending := structs
	for len(pending) > 0 {
		var next []wgslStruct
		for _, s := range pending {
			if l, ok := structLayout(s, resolved); ok {
				resolved[s.name] = l
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return resolved
}
