package artifact

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error matches exactly one of these with errors.Is.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrVersionNotFound     = errors.New("version not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrDownload            = errors.New("download error")
	ErrIntegrity           = errors.New("integrity error")
	ErrDisk                = errors.New("disk error")
)

// Pipeline stages named in error messages.
const (
	StageConfig  = "config"
	StageResolve = "resolve"
	StageFetch   = "fetch"
)

// Error is a pipeline failure tagged with its stage and kind.
type Error struct {
	Stage string
	Kind  error
	Err   error
	// Hint is an optional remedy shown to the user
	Hint string
}

// NewError tags err with the stage it happened in and its kind.
func NewError(stage string, kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Err: err}
}

func (e *Error) withHint(format string, args ...any) *Error {
	e.Hint = fmt.Sprintf(format, args...)
	return e
}

func (e *Error) Error() string {
	msg := e.Stage + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ChecksumMismatchError reports a staged artifact whose digest differs from
// the published one.
type ChecksumMismatchError struct {
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected sha256 %s, got %s", e.Expected, e.Actual)
}

// InsufficientSpaceError reports a destination volume too small for the
// advertised artifact size.
type InsufficientSpaceError struct {
	Dir       string
	Required  uint64
	Available uint64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient space in %s: need %d bytes, %d available", e.Dir, e.Required, e.Available)
}
