package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by every operation on a store that was
	// never initialized or has been closed.
	ErrNotInitialized = errors.New("store not initialized")

	// ErrInvalidFilter is returned when a filter date bound cannot be parsed.
	ErrInvalidFilter = errors.New("invalid filter")
)

// StorageError wraps an error raised by the database engine during schema
// setup, a write or a read.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
