// Package errors provides error types and error codes for the record store.
// This is a leaf package with no internal dependencies, designed to be imported
// by the lock, record, journal and repository packages without causing
// circular imports.
//
// Import graph: errors <- lock <- record <- repository <- banking
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record does not exist.
	// It is never used for I/O failures.
	ErrNotFound ErrorCode = iota + 1

	// ErrAlreadyExists indicates a unique key (phone, email, account number)
	// is already taken.
	ErrAlreadyExists

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument

	// ErrIOError indicates an open, seek, read, write or sync failure.
	ErrIOError

	// ErrLocked indicates a lock could not be acquired.
	ErrLocked

	// ErrLockNotFound indicates the specified lock does not exist.
	ErrLockNotFound

	// ErrCorrupted indicates a table or journal file has an invalid layout.
	ErrCorrupted

	// ErrInsufficientFunds indicates a debit larger than the balance.
	ErrInsufficientFunds

	// ErrInactive indicates the user or account is deactivated.
	ErrInactive

	// ErrPermissionDenied indicates the caller's role may not perform the operation.
	ErrPermissionDenied

	// ErrConnectionLimitReached indicates connection limit has been reached.
	ErrConnectionLimitReached

	// ErrPartialFailure indicates a multi-record operation failed part way
	// and some of its writes could not be undone.
	ErrPartialFailure

	// ErrConflict indicates a record changed in a way that prevents undoing
	// an earlier write to it.
	ErrConflict
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrIOError:
		return "IOError"
	case ErrLocked:
		return "Locked"
	case ErrLockNotFound:
		return "LockNotFound"
	case ErrCorrupted:
		return "Corrupted"
	case ErrInsufficientFunds:
		return "InsufficientFunds"
	case ErrInactive:
		return "Inactive"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrConnectionLimitReached:
		return "ConnectionLimitReached"
	case ErrPartialFailure:
		return "PartialFailure"
	case ErrConflict:
		return "Conflict"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// StoreError represents a record store error with an error code.
type StoreError struct {
	Code    ErrorCode
	Message string
	Path    string
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path: %s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewNotFoundError creates a NotFound error.
func NewNotFoundError(path, resourceType string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resourceType),
		Path:    path,
	}
}

// NewAlreadyExistsError creates an AlreadyExists error.
func NewAlreadyExistsError(path, what string) *StoreError {
	return &StoreError{
		Code:    ErrAlreadyExists,
		Message: fmt.Sprintf("%s already exists", what),
		Path:    path,
	}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// NewIOError wraps an I/O failure on path.
func NewIOError(path, op string, err error) *StoreError {
	return &StoreError{
		Code:    ErrIOError,
		Message: op,
		Path:    path,
		Err:     err,
	}
}

// NewCorruptedError creates a Corrupted error.
func NewCorruptedError(path, reason string) *StoreError {
	return &StoreError{
		Code:    ErrCorrupted,
		Message: reason,
		Path:    path,
	}
}

// NewInsufficientFundsError creates an InsufficientFunds error.
func NewInsufficientFundsError(accountNumber string) *StoreError {
	return &StoreError{
		Code:    ErrInsufficientFunds,
		Message: "insufficient funds",
		Path:    accountNumber,
	}
}

// NewInactiveError creates an Inactive error.
func NewInactiveError(resourceType string) *StoreError {
	return &StoreError{
		Code:    ErrInactive,
		Message: fmt.Sprintf("%s is inactive", resourceType),
	}
}

// NewPermissionDeniedError creates a PermissionDenied error.
func NewPermissionDeniedError(reason string) *StoreError {
	return &StoreError{
		Code:    ErrPermissionDenied,
		Message: reason,
	}
}

// NewConnectionLimitError creates a connection limit exceeded error.
func NewConnectionLimitError(adapterType string, limit int) *StoreError {
	return &StoreError{
		Code:    ErrConnectionLimitReached,
		Message: fmt.Sprintf("connection limit reached for %s adapter (max: %d)", adapterType, limit),
	}
}

// NewPartialFailureError reports a multi-record operation that failed and
// could not be fully rolled back.
func NewPartialFailureError(operation string, err error) *StoreError {
	return &StoreError{
		Code:    ErrPartialFailure,
		Message: fmt.Sprintf("%s failed and could not be fully rolled back", operation),
		Err:     err,
	}
}

// NewConflictError reports a record that can no longer be reverted.
func NewConflictError(path, reason string) *StoreError {
	return &StoreError{
		Code:    ErrConflict,
		Message: reason,
		Path:    path,
	}
}

// ============================================================================
// Error Type Checking Helpers
// ============================================================================

// CodeOf returns the code of the first StoreError in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var storeErr *StoreError
	if stderrors.As(err, &storeErr) {
		return storeErr.Code
	}
	return 0
}

// IsNotFoundError returns true if the error is a NotFound error.
func IsNotFoundError(err error) bool {
	code := CodeOf(err)
	return code == ErrNotFound || code == ErrLockNotFound
}

// IsIOError returns true if the error is an I/O error.
func IsIOError(err error) bool {
	return CodeOf(err) == ErrIOError
}

// IsAlreadyExistsError returns true if the error is an AlreadyExists error.
func IsAlreadyExistsError(err error) bool {
	return CodeOf(err) == ErrAlreadyExists
}

// IsInsufficientFundsError returns true if the error is an InsufficientFunds error.
func IsInsufficientFundsError(err error) bool {
	return CodeOf(err) == ErrInsufficientFunds
}

// IsLockConflictError returns true if the error is a lock conflict.
func IsLockConflictError(err error) bool {
	return CodeOf(err) == ErrLocked
}

// IsPartialFailureError returns true if the error is a PartialFailure error.
func IsPartialFailureError(err error) bool {
	return CodeOf(err) == ErrPartialFailure
}

// IsConflictError returns true if the error is a Conflict error.
func IsConflictError(err error) bool {
	return CodeOf(err) == ErrConflict
}
