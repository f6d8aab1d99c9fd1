// Package errors defines the typed error kinds used across the federation
// governance core, per the error-handling design: recoverable errors are
// confined to the admin edge, everything else either folds silently into
// idempotent no-ops or is fatal.
package errors

import (
	"github.com/pkg/errors"
)

// New and Wrap are re-exported so call sites only ever import this package.
var (
	New  = errors.New
	Wrap = errors.Wrap
)

// Kind classifies an error for callers that need to decide how to react
// (admin edge vs. block-processing path vs. node shutdown).
type Kind int

const (
	// KindValidation is a bad input at the admin edge: malformed pubkey,
	// targeting a multisig member, wrong hash length. No state change.
	KindValidation Kind = iota
	// KindDuplicateVote is a silent no-op for block-borne votes.
	KindDuplicateVote
	// KindPersistence is a failed write to the poll log or a state store.
	// Fatal: the node's in-memory and on-disk images would otherwise diverge.
	KindPersistence
	// KindInvariantViolation means an event would violate I1-I5. Fatal.
	KindInvariantViolation
	// KindUnknownVote is a VotingData with an unrecognized key byte.
	// The block carrying it is still valid; the vote is skipped.
	KindUnknownVote
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicateVote:
		return "duplicate_vote"
	case KindPersistence:
		return "persistence"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindUnknownVote:
		return "unknown_vote"
	default:
		return "unknown"
	}
}

// TypedError carries a Kind alongside the underlying error so callers can
// switch on severity without string-matching messages.
type TypedError struct {
	Kind Kind
	Err  error
}

func (e *TypedError) Error() string { return e.Err.Error() }
func (e *TypedError) Cause() error  { return e.Err }
func (e *TypedError) Unwrap() error { return e.Err }

func newTyped(kind Kind, msg string) error {
	return &TypedError{Kind: kind, Err: errors.New(msg)}
}

// Validation builds a KindValidation error with a stable, human-readable
// message. The admin edge returns these verbatim to the caller.
func Validation(msg string) error { return newTyped(KindValidation, msg) }

// DuplicateVote builds a KindDuplicateVote error.
func DuplicateVote(msg string) error { return newTyped(KindDuplicateVote, msg) }

// Persistence wraps a lower-level storage error as fatal.
func Persistence(err error, context string) error {
	return &TypedError{Kind: KindPersistence, Err: errors.Wrap(err, context)}
}

// InvariantViolation builds a fatal KindInvariantViolation error.
func InvariantViolation(msg string) error { return newTyped(KindInvariantViolation, msg) }

// UnknownVote builds a KindUnknownVote error.
func UnknownVote(msg string) error { return newTyped(KindUnknownVote, msg) }

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if te, ok := err.(*TypedError); ok {
			return te.Kind == kind
		}
		causer, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = causer.Cause()
	}
	return false
}

// ErrMultisigNotVotable is the stable message required by the admin-edge
// contract for any attempt to target a multisig member with add/kick.
var ErrMultisigNotVotable = Validation("Multisig members can't be voted on")
