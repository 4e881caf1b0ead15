// Package llmerr defines the closed error taxonomy shared by every
// component of the bridge (spec.md §7) and the classifier/recovery
// bookkeeping built on top of it (C11).
package llmerr

import (
	"errors"
	"fmt"
)

// Kind is the closed error taxonomy. New kinds are never added by
// configuration — only by changing this file.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindAuthentication
	KindNetwork
	KindProvider
	KindTimeout
	KindParse
	KindSerialization
	KindDeserialization
	KindInvalidRequest
	KindModelNotFound
	KindContextLengthExceeded
	KindUnsupportedFeature
	KindRateLimitExceeded
	KindCircuitOpen
	KindRequestTooLarge
	KindFile
	// KindValidation and KindFileOperation round out the C11 classifier
	// vocabulary (spec.md §4.11), which is a superset of the §7 taxonomy.
	KindValidation
	KindFileOperation
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindConfiguration:         "configuration",
	KindAuthentication:        "authentication",
	KindNetwork:               "network",
	KindProvider:              "provider",
	KindTimeout:               "timeout",
	KindParse:                 "parse",
	KindSerialization:         "serialization",
	KindDeserialization:       "deserialization",
	KindInvalidRequest:        "invalid_request",
	KindModelNotFound:         "model_not_found",
	KindContextLengthExceeded: "context_length_exceeded",
	KindUnsupportedFeature:    "unsupported_feature",
	KindRateLimitExceeded:     "rate_limit_exceeded",
	KindCircuitOpen:           "circuit_open",
	KindRequestTooLarge:       "request_too_large",
	KindFile:                  "file",
	KindValidation:            "validation",
	KindFileOperation:         "file_operation",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// Error is the library's error type: a kind, a human-readable message,
// an optional wrapped cause, and kind-specific detail fields used by a
// handful of kinds (Provider's status/body, CircuitOpen has none).
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Status and Body are populated for KindProvider.
	Status int
	Body   string

	// Code is an optional provider-supplied error code.
	Code string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, llmerr.Sentinel) comparisons by kind, since
// every *Error constructed by this package's helpers is kind-comparable
// even when messages differ.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}

	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Provider(status int, body string) *Error {
	return &Error{Kind: KindProvider, Message: "provider returned a non-success status", Status: status, Body: body}
}

// Sentinel errors for the fixed set the adapter/breaker/limiter return
// directly, so callers can use errors.Is without constructing an *Error.
var (
	ErrCircuitOpen      = New(KindCircuitOpen, "circuit breaker is open")
	ErrRequestTooLarge  = New(KindRequestTooLarge, "request exceeds the configured size limit")
	ErrModelNotFound    = New(KindModelNotFound, "model not found")
	ErrRateLimitExceeded = New(KindRateLimitExceeded, "rate limit exceeded")
)

// As extracts the *Error from err, per the errors.As convention, so
// callers can inspect Status/Body/Code without a type assertion.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)

	return e, ok
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else
// KindUnknown.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}

	return KindUnknown
}
