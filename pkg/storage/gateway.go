// Package storage persists uploaded bytes under collision-free identifiers.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when no bytes are stored under an identifier.
	ErrNotFound = errors.New("stored file not found")

	// ErrInvalidID is returned for identifiers that could escape the storage area.
	ErrInvalidID = errors.New("invalid stored file identifier")
)

// Gateway is the contract the content library relies on for byte persistence.
type Gateway interface {
	// Store persists r and returns a new identifier derived from suggestedName.
	Store(ctx context.Context, r io.Reader, suggestedName string) (string, error)

	// Retrieve opens the stored bytes. The caller must close the reader.
	Retrieve(ctx context.Context, id string) (io.ReadCloser, error)

	// Delete removes the stored bytes. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	Exists(ctx context.Context, id string) (bool, error)
}
