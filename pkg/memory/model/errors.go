package model

import "fmt"

// ErrorKind enumerates the error taxonomy surfaced across the engine.
type ErrorKind string

const (
	NotFound           ErrorKind = "not_found"
	Forbidden          ErrorKind = "forbidden"
	InvalidRequest     ErrorKind = "invalid_request"
	PayloadTooLarge    ErrorKind = "payload_too_large"
	DimIncompatible    ErrorKind = "dim_incompatible"
	ProviderFailure    ErrorKind = "provider_failure"
	SsrfBlocked        ErrorKind = "ssrf_blocked"
	TransactionAborted ErrorKind = "transaction_aborted"
	Internal           ErrorKind = "internal"
)

// Error is the engine-wide structured error. It never carries memory content.
type Error struct {
	Kind      ErrorKind
	Component string
	UserID    string
	ID        string
	Err       error
}

func NewError(kind ErrorKind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &model.Error{Kind: model.NotFound}) style matching
// against the kind when compared with another *Error carrying only a Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithContext attaches non-content identifiers for structured logging.
func (e *Error) WithContext(userID, id string) *Error {
	e.UserID = userID
	e.ID = id
	return e
}

// KindOf returns the ErrorKind of err if it (or something it wraps) is an
// *Error, else Internal.
func KindOf(err error) ErrorKind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return Internal
}
