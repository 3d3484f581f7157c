package loader

import "io"

// importerBackend reads one model file format into an ImportedMesh.
type importerBackend interface {
	// Import reads a model file.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *ImportedMesh: the merged geometry and materials
	//   - error: error if loading fails
	Import(path string) (*ImportedMesh, error)

	// ImportReader reads a model from a stream.
	//
	// Parameters:
	//   - name: the name given to the result
	//   - r: the reader providing model data
	//   - isBinary: true for the format's binary container
	//
	// Returns:
	//   - *ImportedMesh: the merged geometry and materials
	//   - error: error if loading fails
	ImportReader(name string, r io.Reader, isBinary bool) (*ImportedMesh, error)
}
