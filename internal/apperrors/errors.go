package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrUnauthorized indicates missing or invalid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// ErrUnknownCollection is returned when a mutation targets a collection that was never declared.
var ErrUnknownCollection = errors.New("unknown collection")

// ErrReadOnlyCollection is returned for mutations against append-only collections such as AuditLog.
var ErrReadOnlyCollection = errors.New("collection is read-only")

// ErrMalformedWorkbook indicates the byte buffer is not a readable spreadsheet container.
var ErrMalformedWorkbook = errors.New("malformed workbook")

// ErrFileNotFound indicates the remote store holds no file matching the requested name.
var ErrFileNotFound = errors.New("remote file not found")

// ErrTransport covers network, auth and unexpected-status failures talking to the remote store.
var ErrTransport = errors.New("remote transport failure")

// ErrConflict indicates the remote revision changed since it was last read.
var ErrConflict = errors.New("remote revision conflict")

// ErrNotReady is returned when a session operation requires a loaded dataset.
var ErrNotReady = errors.New("session not ready")

// ErrBusy is returned when a load or save is already in flight.
var ErrBusy = errors.New("session busy")

// RemoteError carries transport details for a failed remote store call.
// Kind is one of ErrFileNotFound, ErrTransport or ErrConflict.
type RemoteError struct {
	Kind       error
	Op         string
	Path       string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is/As.
func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewRemoteError builds a RemoteError.
func NewRemoteError(kind error, op, path string, statusCode int, err error) *RemoteError {
	return &RemoteError{Kind: kind, Op: op, Path: path, StatusCode: statusCode, Err: err}
}
