package passport

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store failures.
type ErrorCode string

const (
	// CodeInvalidArgument indicates empty or malformed input.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// CodeAlreadyExists indicates a create against an occupied id.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeNotFound indicates a read or mutation against an absent id.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeMalformedRecord indicates stored bytes that do not decode.
	CodeMalformedRecord ErrorCode = "MALFORMED_RECORD"

	// CodeUnknownOperation indicates a dispatch to an unmapped operation.
	CodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"
)

// Error is a typed store failure. Message is human-readable; ID names the
// affected record when there is one.
type Error struct {
	Code    ErrorCode
	Message string
	ID      string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.ID != "" {
		msg = fmt.Sprintf("%s (id=%s)", msg, e.ID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsInvalidArgument returns true if err is an INVALID_ARGUMENT error.
func IsInvalidArgument(err error) bool { return CodeOf(err) == CodeInvalidArgument }

// IsAlreadyExists returns true if err is an ALREADY_EXISTS error.
func IsAlreadyExists(err error) bool { return CodeOf(err) == CodeAlreadyExists }

// IsNotFound returns true if err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsMalformedRecord returns true if err is a MALFORMED_RECORD error.
func IsMalformedRecord(err error) bool { return CodeOf(err) == CodeMalformedRecord }

// IsUnknownOperation returns true if err is an UNKNOWN_OPERATION error.
func IsUnknownOperation(err error) bool { return CodeOf(err) == CodeUnknownOperation }

// NewInvalidArgument creates an INVALID_ARGUMENT error.
func NewInvalidArgument(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NewUnknownOperation creates an UNKNOWN_OPERATION error for name.
func NewUnknownOperation(name string) *Error {
	return &Error{
		Code:    CodeUnknownOperation,
		Message: fmt.Sprintf("unknown operation %q", name),
	}
}

func alreadyExists(id string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: "passport already exists", ID: id}
}

func notFound(id string) *Error {
	return &Error{Code: CodeNotFound, Message: "passport does not exist", ID: id}
}

func malformed(id string, err error) *Error {
	return &Error{Code: CodeMalformedRecord, Message: "stored passport is malformed", ID: id, Err: err}
}
