package services

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeForbidden         Code = "FORBIDDEN"
	CodeInvalidCredential Code = "INVALID_CREDENTIAL"
)

// Error is a terminal precondition failure. Callers report it as-is and
// never retry it.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error carrying the same code, so errors.Is(err, ErrNotFound)
// holds for every not-found failure regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidCredential:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidState      = &Error{Code: CodeInvalidState, Message: "invalid state"}
	ErrForbidden         = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInvalidCredential = &Error{Code: CodeInvalidCredential, Message: "invalid credential"}
)

func notFound(msg string) error     { return &Error{Code: CodeNotFound, Message: msg} }
func invalidState(msg string) error { return &Error{Code: CodeInvalidState, Message: msg} }

// AsError extracts the service error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
