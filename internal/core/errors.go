package core

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can tell "fix input" from "retry".
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "authorization"
	KindUnknown       Kind = "unknown"
)

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrValidation   = &Error{Kind: KindValidation, Msg: "validation failed"}
	ErrNotFound     = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict     = &Error{Kind: KindConflict, Msg: "concurrent modification"}
	ErrUnauthorized = &Error{Kind: KindAuthorization, Msg: "not authorized"}
	ErrUnknown      = &Error{Kind: KindUnknown, Msg: "unknown error"}
)

// Error is the typed failure returned by every ledger, family and planning operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Validationf(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Msg: "document changed concurrently, reload and resubmit", Err: err}
}

func Unauthorizedf(op, format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of err, KindUnknown for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Classify returns err unchanged when it is already typed and wraps it as
// KindUnknown otherwise, keeping the original message.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}
