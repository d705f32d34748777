// Package storage defines the object store the article cache is built on.
// Implementations live in the local, gcs and memory subpackages so the cache
// stays independent of where stored articles actually end up.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by GetObject when no object exists at the path.
var ErrNotFound = errors.New("object not found")

// Store reads and writes whole objects addressed by slash-separated paths.
type Store interface {
	// PutObject writes data at path, replacing any previous object, and
	// returns a URI describing where it landed.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject returns the object at path or an error wrapping ErrNotFound.
	GetObject(ctx context.Context, path string) ([]byte, error)
}
