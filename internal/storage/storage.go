// Package storage contains the flat image store abstraction and its local-disk implementation.
// Names are single path components; the store never creates subdirectories.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrExists is returned by Create when an object with the same name is already stored.
	ErrExists = errors.New("object already exists")
	// ErrNotFound is returned when no object with the given name is stored.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidName is returned for names that are not a single, plain path component.
	ErrInvalidName = errors.New("invalid object name")
)

// ObjectInfo contains basic information about a stored object.
// ContentType is only populated by Open and Create, where the content is at hand.
type ObjectInfo struct {
	Name         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Storage is the image store used by the service layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Create stores r under name. It fails with ErrExists, without touching the stored
	// object, if name is taken. Existence check and creation are a single atomic step.
	Create(ctx context.Context, name string, r io.Reader) (ObjectInfo, error)
	// Stat reports info about a stored object without reading its content.
	Stat(ctx context.Context, name string) (ObjectInfo, error)
	// Open returns the object's content as a streaming reader alongside its info.
	Open(ctx context.Context, name string) (io.ReadCloser, ObjectInfo, error)
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
	// Close releases the store's resources.
	Close() error
}
