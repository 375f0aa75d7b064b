package library

import (
	"errors"
	"fmt"

	"github.com/mwantia/folio/pkg/db/store"
	"github.com/mwantia/folio/pkg/storage"
)

var (
	// ErrNotFound is returned when an operation targets an unknown entity.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the parent of every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFileType is returned for uploads with a disallowed extension.
	ErrInvalidFileType = errors.New("invalid file type")

	// ErrStorageUnavailable is returned when the storage gateway fails.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrFileMissing is returned when a document row exists but its file does not.
	ErrFileMissing = errors.New("stored file missing")
)

// ValidationError describes rejected input. It matches ErrValidation and,
// when set, Err with errors.Is.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// notFound converts store misses into ErrNotFound and passes through others.
func notFound(err error, kind string, id uint) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return err
}

// unavailable wraps a gateway failure; a missing file keeps its own identity.
func unavailable(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to %s: %w", op, ErrFileMissing)
	}
	return fmt.Errorf("failed to %s: %w: %v", op, ErrStorageUnavailable, err)
}
