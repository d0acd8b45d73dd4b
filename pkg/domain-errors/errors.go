// Package domainerrors carries coded errors across layers.
//
// Stores return plain (wrapped) infrastructure errors or sentinel facts from
// pkg/platform/sentinel. Services translate those into coded errors so the
// edge (bot dispatcher, CLI) can decide what an actor is allowed to see:
// validation messages are shown verbatim, everything else is replaced with a
// generic text while the full chain is logged.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for the edge.
type Code string

const (
	CodeInternal           Code = "internal_error"
	CodeValidation         Code = "validation_error"
	CodeNotFound           Code = "not_found"
	CodeConfiguration      Code = "configuration_error"
	CodeUnavailable        Code = "unavailable"
	CodeForbidden          Code = "forbidden"
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost coded error in the chain has code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost coded error, or CodeInternal for
// uncoded errors. nil has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// UserMessage returns the text that may be shown to an actor. Only
// validation errors expose their message.
func UserMessage(err error, generic string) string {
	var de *Error
	if errors.As(err, &de) && de.Code == CodeValidation {
		return de.Message
	}
	return generic
}
