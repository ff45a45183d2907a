// Package errcode defines the service error model: an integer code that
// mirrors HTTP status semantics plus a human-readable message. Components
// return plain errors; the HTTP edge converts them once.
package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a service status code. Zero means success; the rest mirror the
// HTTP status they map to, except ServerParseError which flags an
// unparseable LLM response.
type Code int

const (
	OK                  Code = 0
	BadRequest          Code = 400
	Unauthorized        Code = 401
	Forbidden           Code = 403
	NotFound            Code = 404
	MethodNotAllowed    Code = 405
	Conflict            Code = 409
	UnprocessableEntity Code = 422
	Internal            Code = 500
	NotImplemented      Code = 501
	BadGateway          Code = 502
	ServiceUnavailable  Code = 503
	GatewayTimeout      Code = 504
	ServerParseError    Code = 520
)

// HTTPStatus returns the HTTP status an error with this code maps to.
func (c Code) HTTPStatus() int {
	switch c {
	case OK:
		return http.StatusOK
	case ServerParseError:
		// Out-of-range for net/http constants but a legal status line.
		return int(ServerParseError)
	default:
		return int(c)
	}
}

// Error carries a code and a message across component boundaries.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode %d: %s", e.Code, e.Message)
}

// New builds an *Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code, keeping the original text.
func Wrap(err error, code Code, msg string) *Error {
	if err == nil {
		return &Error{Code: code, Message: msg}
	}
	return &Error{Code: code, Message: fmt.Sprintf("%s: %v", msg, err)}
}

// Convert extracts the *Error from err's chain, defaulting to Internal for
// untyped errors so unexpected failures never leak a success code.
func Convert(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: Internal, Message: err.Error()}
}

// CodeOf reports the code of err, OK when err is nil.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	return Convert(err).Code
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
