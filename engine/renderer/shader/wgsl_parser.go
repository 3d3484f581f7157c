package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslField is one field of a parsed WGSL struct.
type wgslField struct {
	name     string
	typeName string

	// location is the @location index, or -1.
	location int
	builtin  bool
}

// wgslStruct is one parsed WGSL struct block.
type wgslStruct struct {
	name   string
	fields []wgslField
}

// vertexFormats maps WGSL vertex input types to wgpu vertex formats and their byte sizes.
var vertexFormats = map[string]struct {
	format wgpu.VertexFormat
	size   uint64
}{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"i32":       {wgpu.VertexFormatSint32, 4},
	"vec4<i32>": {wgpu.VertexFormatSint32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, 16},
}

// textureDimensions maps sampled and storage texture base types to their view dimension.
var textureDimensions = map[string]wgpu.TextureViewDimension{
	"texture_2d":               wgpu.TextureViewDimension2D,
	"texture_2d_array":         wgpu.TextureViewDimension2DArray,
	"texture_cube":             wgpu.TextureViewDimensionCube,
	"texture_3d":               wgpu.TextureViewDimension3D,
	"texture_storage_2d":       wgpu.TextureViewDimension2D,
	"texture_storage_2d_array": wgpu.TextureViewDimension2DArray,
}

// sampleTypes maps the template argument of a sampled texture to its sample type.
var sampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

// texelFormats maps storage texel formats to texture formats.
var texelFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"r32float":    wgpu.TextureFormatR32Float,
}

// storageAccess maps storage access keywords to wgpu access modes.
var storageAccess = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

var (
	// structRegex captures the name and body of a struct block.
	structRegex = regexp.MustCompile(`\bstruct\s+(\w+)\s*\{([^}]*)\}`)

	// fieldRegex captures the name and type of a struct field after its attributes.
	fieldRegex = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)

	// locationRegex captures the index of an @location attribute.
	locationRegex = regexp.MustCompile(`@location\(\s*(\d+)\s*\)`)

	// entryRegex captures the stage attribute and function name of an entry point.
	entryRegex = regexp.MustCompile(`@(vertex|fragment|compute)\b[^{]*?\bfn\s+(\w+)`)

	// workgroupRegex captures up to three @workgroup_size dimensions.
	workgroupRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?(?:,\s*(\d+)\s*)?\)`)

	// bindingRegex captures group, binding, address space, name and type of a module-scope
	// resource variable.
	bindingRegex = regexp.MustCompile(`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// maskComments blanks out line and (nested) block comments with spaces. Newlines and byte
// offsets are preserved, so matches in the masked text index the original source.
func maskComments(source string) string {
	out := []byte(source)
	depth := 0
	for i := 0; i < len(out); i++ {
		switch {
		case depth == 0 && i+1 < len(out) && out[i] == '/' && out[i+1] == '/':
			for i < len(out) && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		case i+1 < len(out) && out[i] == '/' && out[i+1] == '*':
			depth++
			out[i], out[i+1] = ' ', ' '
			i++
		case depth > 0 && i+1 < len(out) && out[i] == '*' && out[i+1] == '/':
			depth--
			out[i], out[i+1] = ' ', ' '
			i++
		case depth > 0 && out[i] != '\n':
			out[i] = ' '
		}
	}
	return string(out)
}

// splitTopLevel splits s at commas that are not nested inside angle brackets, so
// array<Light, 10> stays one field.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// parseStructs parses every struct block in comment-free WGSL.
func parseStructs(source string) []wgslStruct {
	var structs []wgslStruct
	for _, m := range structRegex.FindAllStringSubmatch(source, -1) {
		s := wgslStruct{name: m[1]}
		for _, part := range splitTopLevel(m[2]) {
			part = strings.Join(strings.Fields(part), " ")
			fm := fieldRegex.FindStringSubmatch(part)
			if fm == nil {
				continue
			}
			f := wgslField{
				name:     fm[1],
				typeName: canonicalType(fm[2]),
				location: -1,
				builtin:  strings.Contains(part, "@builtin"),
			}
			if lm := locationRegex.FindStringSubmatch(part); lm != nil {
				f.location, _ = strconv.Atoi(lm[1])
			}
			s.fields = append(s.fields, f)
		}
		structs = append(structs, s)
	}
	return structs
}

// parseVertexLayout builds the vertex buffer layout from the first struct made only of
// @location fields. Vertex outputs are skipped because they carry @builtin(position).
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - *wgpu.VertexBufferLayout: the layout, or nil when the shader has no vertex input struct
func parseVertexLayout(source string) *wgpu.VertexBufferLayout {
	for _, s := range parseStructs(maskComments(source)) {
		if len(s.fields) == 0 || slices.ContainsFunc(s.fields, func(f wgslField) bool { return f.builtin || f.location < 0 }) {
			continue
		}
		layout := &wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
		valid := true
		for _, f := range s.fields {
			vf, ok := vertexFormats[f.typeName]
			if !ok {
				valid = false
				break
			}
			layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
				Format:         vf.format,
				Offset:         layout.ArrayStride,
				ShaderLocation: uint32(f.location),
			})
			layout.ArrayStride += vf.size
		}
		if valid {
			return layout
		}
	}
	return nil
}

// parseEntryPoints returns the entry point function names keyed by stage attribute
// ("vertex", "fragment", "compute").
func parseEntryPoints(source string) map[string]string {
	entries := make(map[string]string)
	for _, m := range entryRegex.FindAllStringSubmatch(maskComments(source), -1) {
		if _, seen := entries[m[1]]; !seen {
			entries[m[1]] = m[2]
		}
	}
	return entries
}

// parseWorkgroupSize returns the first @workgroup_size, with omitted dimensions as 1.
func parseWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupRegex.FindStringSubmatch(maskComments(source))
	if m == nil {
		return size
	}
	for i, dim := range m[1:] {
		if v, err := strconv.ParseUint(dim, 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// parseBindGroupLayouts collects every @group/@binding variable into layout descriptors keyed
// by group, entries sorted by binding. Uniform buffers get their MinBindingSize from the
// layout of the bound struct.
//
// Parameters:
//   - source: the WGSL source
//   - visibility: the stages every entry is visible to
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: layouts keyed by group index
func parseBindGroupLayouts(source string, visibility wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	masked := maskComments(source)
	structs := structLayouts(parseStructs(masked))
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)

	for _, m := range bindingRegex.FindAllStringSubmatch(masked, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		entry := bindingEntry(uint32(binding), visibility, strings.TrimSpace(m[3]), canonicalType(m[5]))
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if l, ok := resolveLayout(m[5], structs); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		}
		groups[group] = append(groups[group], entry)
	}

	layouts := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		slices.SortFunc(entries, func(a, b wgpu.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
		layouts[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return layouts
}

// bindingEntry classifies one resource variable by address space and type.
func bindingEntry(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case typeName == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(typeName, "texture_"):
		base, params, _ := strings.Cut(typeName, "<")
		params = strings.TrimSuffix(params, ">")
		if strings.HasPrefix(base, "texture_storage_") {
			format, access, _ := strings.Cut(params, ",")
			entry.StorageTexture.ViewDimension = textureDimensions[base]
			entry.StorageTexture.Format = texelFormats[format]
			entry.StorageTexture.Access = storageAccess[access]
		} else {
			entry.Texture.ViewDimension = textureDimensions[base]
			entry.Texture.SampleType = sampleTypes[params]
		}
	}
	return entry
}
