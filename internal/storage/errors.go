package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrKeyExists    = errors.New("object already exists at this key")
	ErrInvalidKey   = errors.New("invalid storage key")
	ErrTooLarge     = errors.New("object exceeds maximum size")
	ErrAccessDenied = errors.New("access denied")
)

// StorageError records the operation and key of a failed call.
type StorageError struct {
	Op  string // "put", "get", "delete", "url" or "exists"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func opError(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Err: err}
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTooLarge reports whether err means the object exceeded MaxSize.
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}
