package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrOwnershipMismatch = errors.New("image does not belong to product")
	ErrEmptyFile         = errors.New("file is empty")
	ErrInvalidName       = errors.New("invalid file name")
	ErrDuplicateImage    = errors.New("duplicate image file name")
	ErrInvalidInput      = errors.New("invalid input")

	// ErrStorage wraps filesystem I/O failures of the media store.
	ErrStorage = errors.New("storage error")
	// ErrFetch wraps remote download failures.
	ErrFetch = errors.New("fetch error")
	// ErrPersistence wraps failures of the relational store.
	ErrPersistence = errors.New("persistence error")
)

// NotFoundError reports an entity id that could not be resolved.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func ProductNotFound(id int64) error {
	return &NotFoundError{Entity: "product", ID: id}
}

func ImageNotFound(id int64) error {
	return &NotFoundError{Entity: "image", ID: id}
}

// StorageError tags err as a media store failure.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// FetchError tags err as a remote download failure.
func FetchError(url string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFetch, url, err)
}

// PersistenceError tags err as a relational store failure. Errors that
// already carry a client-facing sentinel are returned unchanged.
func PersistenceError(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrOwnershipMismatch) || errors.Is(err, ErrDuplicateImage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
