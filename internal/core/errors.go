package core

import (
	"errors"
)

// Kind classifies a ledger failure so callers can react without parsing
// messages.
type Kind string

const (
	KindPrecondition Kind = "precondition" // no authenticated session
	KindValidation   Kind = "validation"   // rejected input
	KindNotFound     Kind = "not_found"    // referenced record missing
	KindStore        Kind = "store"        // record store call failed
	KindInconsistent Kind = "inconsistent" // balance written but transaction write could not be undone
)

// Error wraps an underlying failure with its Kind and the operation that
// produced it. Error() returns the underlying message verbatim.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error. An err that already is an *Error keeps its kind.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
