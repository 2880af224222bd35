package authz

import "errors"

// Failure kinds. Every error returned by the engine for a rejected action
// wraps exactly one of these, so callers can pick a transport status with
// errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Error is a tagged engine failure.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(msg string) error     { return &Error{Kind: ErrNotFound, Message: msg} }
func Unauthorized(msg string) error { return &Error{Kind: ErrUnauthorized, Message: msg} }
func Forbidden(msg string) error    { return &Error{Kind: ErrForbidden, Message: msg} }
func BadRequest(msg string) error   { return &Error{Kind: ErrBadRequest, Message: msg} }
