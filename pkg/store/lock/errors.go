package lock

import (
	"github.com/marmos91/bankd/pkg/store/errors"
)

// NewLockedError creates error for lock conflicts reported by TryLock.
func NewLockedError(path string, conflict *FileLock) *errors.StoreError {
	msg := "resource is locked"
	if conflict != nil {
		msg = "resource is locked by owner " + string(conflict.Owner)
	}
	return &errors.StoreError{
		Code:    errors.ErrLocked,
		Message: msg,
		Path:    path,
	}
}

// NewLockNotFoundError creates error for missing locks.
func NewLockNotFoundError(path string) *errors.StoreError {
	return &errors.StoreError{
		Code:    errors.ErrLockNotFound,
		Message: "lock not found",
		Path:    path,
	}
}

// NewLockAbortedError wraps a context error returned while waiting for a lock.
func NewLockAbortedError(path string, err error) *errors.StoreError {
	return &errors.StoreError{
		Code:    errors.ErrLocked,
		Message: "lock wait aborted",
		Path:    path,
		Err:     err,
	}
}

// NewOSLockError wraps a failure of the operating system lock call.
func NewOSLockError(path string, err error) *errors.StoreError {
	return &errors.StoreError{
		Code:    errors.ErrIOError,
		Message: "fcntl lock failed",
		Path:    path,
		Err:     err,
	}
}
