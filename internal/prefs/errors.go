package prefs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when the backing storage is disabled or unreachable.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrQuotaExceeded is returned when a write would exceed the storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrSerialization is returned when a value is not valid JSON.
	ErrSerialization = errors.New("value is not valid JSON")
)

// StorageError describes a failed preference read or write. Callers are
// expected to degrade to defaults rather than surface it.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("prefs: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
