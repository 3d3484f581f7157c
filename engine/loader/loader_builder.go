package loader

// ImporterBuilderOption is a functional option for configuring an Importer via NewImporter.
type ImporterBuilderOption func(*importer)

// WithTextureDir sets the name of the directory next to a model that external textures are
// looked up in before falling back to their URI, "textures" by default. An empty name
// disables the lookup.
//
// Parameters:
//   - name: the sibling directory name
//
// Returns:
//   - ImporterBuilderOption: a function that applies the texture directory option to an importer
func WithTextureDir(name string) ImporterBuilderOption {
	return func(imp *importer) {
		imp.textureDir = name
	}
}
