package archive

import (
	"context"
	"io/fs"
)

// ErrNotExist is returned, wrapped, by Read when nothing is stored at path.
var ErrNotExist = fs.ErrNotExist

// Storage is a flat blob store keyed by slash-separated paths.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}
