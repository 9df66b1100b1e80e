// Package apperrors classifies errors into the kinds used throughout
// the ingestion and query services (spec §7) so the HTTP and consumer
// layers can map them without string-sniffing.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of HTTP status mapping and
// broker ack/nack decisions.
type Kind int

const (
	// KindInternal is the zero value: an uncategorized error, mapped
	// to a 500 / nack-no-requeue by default.
	KindInternal Kind = iota
	// KindBadInput covers unreadable PDFs, malformed events, and
	// disallowed uploads.
	KindBadInput
	// KindExternal covers object store, broker, vector index,
	// relational store, embedding, and LLM failures.
	KindExternal
	// KindPolicyViolation covers safety-gate and ownership denials.
	KindPolicyViolation
	// KindInvariant covers missing required state, dimension
	// mismatches, and empty documents.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindBadInput:
		return "bad_input"
	case KindExternal:
		return "external"
	case KindPolicyViolation:
		return "policy_violation"
	case KindInvariant:
		return "invariant"
	default:
		return "internal"
	}
}

// AppError wraps an underlying error with a Kind and an optional
// transient flag, reported by IsTransient. The event consumer does not
// consult the flag: it nacks every failed message without requeue.
type AppError struct {
	Kind      Kind
	Transient bool
	Err       error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// New wraps err with the given kind. A nil err returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Err: err}
}

// Transient marks err (already classified or not) as a transient
// external failure eligible for operator replay.
func Transient(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Transient: true, Err: err}
}

// KindOf returns the classified Kind of err, or KindInternal if err is
// nil or was never classified.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsTransient reports whether err was marked transient.
func IsTransient(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Transient
	}
	return false
}
