package asset

import "github.com/Carmen-Shannon/lumen/engine/loader"

// AssetManagerBuilderOption is a function that configures an asset manager during construction.
type AssetManagerBuilderOption func(*assetManager)

// WithRoot is an option builder that sets the directory relative asset paths are resolved
// against.
//
// Parameters:
//   - root: the asset directory
//
// Returns:
//   - AssetManagerBuilderOption: a function that applies the root option to an asset manager
func WithRoot(root string) AssetManagerBuilderOption {
	return func(m *assetManager) {
		m.root = root
	}
}

// WithImporter is an option builder that replaces the mesh importer.
func WithImporter(importer loader.Importer) AssetManagerBuilderOption {
	return func(m *assetManager) {
		m.importer = importer
	}
}

// WithWorkers is an option builder that sets the number of Preload decode workers. Values
// below one are ignored.
//
// Parameters:
//   - workers: the maximum pool size
//
// Returns:
//   - AssetManagerBuilderOption: a function that applies the worker count to an asset manager
func WithWorkers(workers int) AssetManagerBuilderOption {
	return func(m *assetManager) {
		if workers > 0 {
			m.workers = workers
		}
	}
}
