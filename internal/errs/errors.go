// Package errs defines the repository-wide error taxonomy.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a HoneError for callers that need to branch on error type
// without string matching (HTTP status mapping, retry decisions, logging).
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindInvalidData Kind = "invalid_data"
	KindBackend     Kind = "backend"
	KindIO          Kind = "io"
	KindCancelled   Kind = "cancelled"
)

// HoneError is the error type returned by every internal component boundary.
type HoneError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *HoneError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HoneError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, errs.NotFound) style sentinel checks per kind.
func (e *HoneError) Is(target error) bool {
	var he *HoneError
	if errors.As(target, &he) {
		return e.Kind == he.Kind
	}
	return false
}

func New(kind Kind, message string) *HoneError {
	return &HoneError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *HoneError {
	return &HoneError{Kind: kind, Message: message, Err: err}
}

// Sentinel values for errors.Is comparisons; the Message field is irrelevant
// for equality since Is() only compares Kind.
var (
	NotFound    = &HoneError{Kind: KindNotFound}
	Conflict    = &HoneError{Kind: KindConflict}
	InvalidData = &HoneError{Kind: KindInvalidData}
	Backend     = &HoneError{Kind: KindBackend}
	IO          = &HoneError{Kind: KindIO}
	Cancelled   = &HoneError{Kind: KindCancelled}
)

// NotFoundf builds a not-found error with a formatted message.
func NotFoundf(format string, args ...any) *HoneError {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Conflictf builds a conflict error with a formatted message.
func Conflictf(format string, args ...any) *HoneError {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

// InvalidDataf builds an invalid-data error with a formatted message.
func InvalidDataf(format string, args ...any) *HoneError {
	return New(KindInvalidData, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind from err, defaulting to KindIO for unrecognized errors.
func KindOf(err error) Kind {
	var he *HoneError
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindIO
}
