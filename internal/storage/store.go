// Package storage provides the content-addressable staging area used while
// installing artifacts.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ObjectStore stores file content by its SHA-256 hash.
// Staging the same bytes twice yields one object with a raised ref count.
type ObjectStore interface {
	// Put streams r into the store and returns the stored object.
	Put(ctx context.Context, r io.Reader, objectType ObjectType) (*Object, error)

	// Open returns a reader over the object content.
	// Returns ErrNotFound if the object doesn't exist.
	Open(ctx context.Context, hash string) (io.ReadCloser, error)

	// Stat returns the object's descriptor without reading its content.
	Stat(ctx context.Context, hash string) (*Object, error)

	// Exists checks if an object with the given hash exists.
	Exists(ctx context.Context, hash string) (bool, error)

	// Delete removes an object by its content hash.
	Delete(ctx context.Context, hash string) error

	// List returns all object hashes of the given type; "" lists everything.
	List(ctx context.Context, objectType ObjectType) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Object describes a staged file.
type Object struct {
	// Hash is the hex-encoded SHA-256 of the content.
	Hash string

	Type ObjectType

	Size int64

	Metadata Metadata
}

// Metadata stores bookkeeping for a staged object.
type Metadata struct {
	CreatedAt time.Time

	// RefCount counts how many Put calls staged this content.
	RefCount int
}

// ObjectType identifies the role of a staged file.
type ObjectType string

const (
	ObjectTypeDescriptor ObjectType = "descriptor"
	ObjectTypeArtifact   ObjectType = "artifact"
	ObjectTypeMetadata   ObjectType = "metadata"
)

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Hash
}

// IsNotFound returns true if err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
