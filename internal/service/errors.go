package service

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a client-visible failure: Msg is safe to return to callers and
// Kind is one of the sentinels above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func notFound(what string) error { return &Error{Kind: ErrNotFound, Msg: what + " not found"} }
func forbidden(msg string) error { return &Error{Kind: ErrForbidden, Msg: msg} }
func invalid(msg string) error { return &Error{Kind: ErrInvalid, Msg: msg} }
func conflict(msg string) error { return &Error{Kind: ErrConflict, Msg: msg} }
func unauthorized(msg string) error { return &Error{Kind: ErrUnauthorized, Msg: msg} }
