package paperapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// ErrNotFound is matched by status errors for HTTP 404.
var ErrNotFound = errors.New("not found")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	// Body holds the start of the response body, for diagnostics
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is lets errors.Is(err, ErrNotFound) match a 404.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// DecodeError reports a response body that is not valid JSON.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SchemaError reports a response that decoded but lacks a required field.
// This is a breaking change of the upstream contract and is never retried.
type SchemaError struct {
	URL   string
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("malformed response from %s: missing required field %q", e.URL, e.Field)
}

// IsTransient classifies an error returned by the client. Connection
// failures, timeouts, truncated bodies, 5xx/429 statuses and undecodable
// bodies are transient; 4xx statuses, schema violations and cancellation of
// the caller's context are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return true
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}
