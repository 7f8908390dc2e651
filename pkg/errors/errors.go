// Package errors defines the classified error taxonomy shared by the
// docsync storage engines and the type registry. Every failure surfaced by
// the public API carries one of the codes below so callers can decide to
// resynchronize without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies the kind of failure.
type Code string

const (
	// CodeInvalidEntity indicates structural validation failure of an
	// operation or snapshot.
	CodeInvalidEntity Code = "INVALID_ENTITY"
	// CodeNotInitialized indicates a call against a (type, id) pair with no
	// context.
	CodeNotInitialized Code = "NOT_INITIALIZED"
	// CodeAlreadyInitialized indicates a duplicate Init for a (type, id) pair.
	CodeAlreadyInitialized Code = "ALREADY_INITIALIZED"
	// CodeUnexpectedSession indicates a session identity mismatch during Store.
	CodeUnexpectedSession Code = "UNEXPECTED_SESSION_ID"
	// CodeUnexpectedSequence indicates a sequence-number contract violation.
	CodeUnexpectedSequence Code = "UNEXPECTED_SEQUENCE_NUMBER"
	// CodeUnexpectedVersion indicates a version-number contract violation.
	CodeUnexpectedVersion Code = "UNEXPECTED_VERSION_NUMBER"
	// CodeTypeNotFound indicates dispatch to an unregistered document type.
	CodeTypeNotFound Code = "TYPE_NOT_FOUND"
	// CodeDuplicateType indicates registration of an already registered type name.
	CodeDuplicateType Code = "DUPLICATE_TYPE"
	// CodeAlreadyExists indicates a key or version collision in the content store.
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	// CodeNotSupported indicates a document type does not implement the
	// requested primitive.
	CodeNotSupported Code = "NOT_SUPPORTED"
	// CodeTransformFailed wraps an error raised by a document type while
	// transforming or composing operations.
	CodeTransformFailed Code = "TRANSFORM_FAILED"
)

// SyncError is the error type returned by all docsync packages.
type SyncError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	// Entity and Field are set for INVALID_ENTITY errors.
	Entity string `json:"entity,omitempty"`
	Field  string `json:"field,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Entity != "" && e.Field != "" {
		return fmt.Sprintf("[%s] %s: invalid field %q on %s", e.Code, e.Message, e.Field, e.Entity)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *SyncError) Unwrap() error {
	return e.cause
}

// New creates a new classified error.
func New(code Code, message string) *SyncError {
	return &SyncError{Code: code, Message: message}
}

// Newf creates a new classified error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *SyncError {
	return &SyncError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a classification, preserving the cause
// for errors.Is / errors.As.
func Wrap(err error, code Code, message string) *SyncError {
	if err == nil {
		return nil
	}
	return &SyncError{Code: code, Message: message, cause: err}
}

// NewInvalidEntity creates an INVALID_ENTITY error naming the offending field.
func NewInvalidEntity(entity, field, message string) *SyncError {
	return &SyncError{
		Code:    CodeInvalidEntity,
		Message: message,
		Entity:  entity,
		Field:   field,
	}
}

// CodeOf returns the classification of err, or the empty string when err is
// not a SyncError.
func CodeOf(err error) Code {
	var se *SyncError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

func is(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsInvalidEntity reports whether err is a structural validation failure.
func IsInvalidEntity(err error) bool { return is(err, CodeInvalidEntity) }

// IsNotInitialized reports whether err targets an uninitialized context.
func IsNotInitialized(err error) bool { return is(err, CodeNotInitialized) }

// IsAlreadyInitialized reports whether err is a duplicate initialization.
func IsAlreadyInitialized(err error) bool { return is(err, CodeAlreadyInitialized) }

// IsUnexpectedSession reports whether err is a session identity mismatch.
func IsUnexpectedSession(err error) bool { return is(err, CodeUnexpectedSession) }

// IsUnexpectedSequence reports whether err is a sequence contract violation.
func IsUnexpectedSequence(err error) bool { return is(err, CodeUnexpectedSequence) }

// IsUnexpectedVersion reports whether err is a version contract violation.
func IsUnexpectedVersion(err error) bool { return is(err, CodeUnexpectedVersion) }

// IsTypeNotFound reports whether err is a dispatch to an unregistered type.
func IsTypeNotFound(err error) bool { return is(err, CodeTypeNotFound) }

// IsDuplicateType reports whether err is a duplicate type registration.
func IsDuplicateType(err error) bool { return is(err, CodeDuplicateType) }

// IsAlreadyExists reports whether err is a content store collision.
func IsAlreadyExists(err error) bool { return is(err, CodeAlreadyExists) }

// IsNotSupported reports whether err marks an unimplemented type primitive.
func IsNotSupported(err error) bool { return is(err, CodeNotSupported) }

// IsTransformFailed reports whether err wraps a document type failure.
func IsTransformFailed(err error) bool { return is(err, CodeTransformFailed) }
