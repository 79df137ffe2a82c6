// Package errors provides the error taxonomy used across baykus.
// It extends the standard errors package with wrapping helpers and the
// classification the connector runner and orchestrator rely on.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the investigation pipeline.
var (
	// ErrConnectorTransient marks a connector failure worth retrying (network, timeout, 429, 5xx).
	ErrConnectorTransient = errors.New("connector transient failure")

	// ErrConnectorPermanent marks a connector failure that must not be retried (auth, quota).
	ErrConnectorPermanent = errors.New("connector permanent failure")

	// ErrNormalization marks a malformed connector payload. The result is discarded.
	ErrNormalization = errors.New("normalization error")

	// ErrStorage marks an unreachable or failing persistence layer. Fatal for a run.
	ErrStorage = errors.New("storage error")

	// ErrCancellationRequested is not a failure: the run winds down gracefully.
	ErrCancellationRequested = errors.New("cancellation requested")

	// ErrInvariant marks a violated internal invariant. Fatal for a run.
	ErrInvariant = errors.New("invariant violated")

	// ErrRateLimited indicates the remote service answered 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
)

// wrappedError wraps an error with additional context
type wrappedError struct {
	msg   string
	cause error
}

func (e *wrappedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *wrappedError) Unwrap() error {
	return e.cause
}

// Wrap wraps an error with additional context message.
// If err is nil, Wrap returns nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: msg, cause: err}
}

// Wrapf wraps an error with a formatted context message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: fmt.Sprintf(format, args...), cause: err}
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New is errors.New from the standard library.
func New(msg string) error {
	return errors.New(msg)
}

// Errorf is fmt.Errorf.
func Errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Join returns an error that wraps the given errors, discarding nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// ConnectorError describes a failed connector call.
// It matches ErrConnectorTransient or ErrConnectorPermanent through errors.Is
// depending on Temporary.
type ConnectorError struct {
	Connector  string
	StatusCode int
	Temporary  bool
	Reason     string
	Cause      error
}

func (e *ConnectorError) Error() string {
	kind := "permanent"
	if e.Temporary {
		kind = "transient"
	}
	msg := fmt.Sprintf("connector %s: %s failure", e.Connector, kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// Is maps the error onto the taxonomy sentinels.
func (e *ConnectorError) Is(target error) bool {
	switch target {
	case ErrConnectorTransient:
		return e.Temporary
	case ErrConnectorPermanent:
		return !e.Temporary
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// Transient builds a retryable connector failure.
func Transient(connector string, cause error) error {
	return &ConnectorError{Connector: connector, Temporary: true, Cause: cause}
}

// Permanent builds a non-retryable connector failure.
func Permanent(connector string, cause error) error {
	return &ConnectorError{Connector: connector, Temporary: false, Cause: cause}
}

// FromStatus maps an HTTP status code to a connector failure.
// Returns nil for 2xx/3xx codes.
func FromStatus(connector string, status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusTooManyRequests:
		return &ConnectorError{Connector: connector, StatusCode: status, Temporary: true, Reason: "rate_limited"}
	case status == http.StatusRequestTimeout || status >= 500:
		return &ConnectorError{Connector: connector, StatusCode: status, Temporary: true, Reason: http.StatusText(status)}
	default:
		// 401, 402, 403, 404 y demás 4xx: reintentar no cambia la respuesta
		return &ConnectorError{Connector: connector, StatusCode: status, Temporary: false, Reason: http.StatusText(status)}
	}
}

// Class is the taxonomy bucket an error falls into.
type Class int

const (
	ClassNone Class = iota
	ClassTransient
	ClassPermanent
	ClassNormalization
	ClassStorage
	ClassCancelled
	ClassInvariant
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassNormalization:
		return "normalization"
	case ClassStorage:
		return "storage"
	case ClassCancelled:
		return "cancelled"
	case ClassInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Classify places err in the taxonomy.
// Deadline errors are transient; context cancellation is a cancellation request.
// Unknown errors from connectors are treated as transient.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrCancellationRequested), errors.Is(err, context.Canceled):
		return ClassCancelled
	case errors.Is(err, ErrStorage):
		return ClassStorage
	case errors.Is(err, ErrInvariant):
		return ClassInvariant
	case errors.Is(err, ErrNormalization):
		return ClassNormalization
	case errors.Is(err, ErrConnectorPermanent):
		return ClassPermanent
	case errors.Is(err, ErrConnectorTransient), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	default:
		return ClassTransient
	}
}

// IsRetryable reports whether the runner should try the call again.
func IsRetryable(err error) bool {
	return Classify(err) == ClassTransient
}

// IsFatal reports whether err must abort a run.
func IsFatal(err error) bool {
	c := Classify(err)
	return c == ClassStorage || c == ClassInvariant
}
