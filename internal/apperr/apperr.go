// Package apperr defines the error taxonomy shared by the confidential
// transfer engine and its HTTP surface.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure from spec.md section 7.
type Kind string

const (
	Unauthorized                Kind = "unauthorized"
	BadRequest                  Kind = "bad_request"
	NotFound                    Kind = "not_found"
	InsufficientConfidential    Kind = "insufficient_confidential_balance"
	DecryptionFailed            Kind = "decryption_failed"
	ProofGenerationFailed       Kind = "proof_generation_failed"
	RPCSubmissionFailed         Kind = "rpc_submission_failed"
	KeyDerivationFailed         Kind = "key_derivation_failed"
	DatabaseError               Kind = "database_error"
	// WrongProgramOwner is an existing token account at an expected ATA
	// address that is owned by a program other than Token-2022 (spec.md
	// section 4.2): an unrecoverable setup precondition, distinct from
	// ATAMismatch's owner/mint field mismatch under the right program.
	WrongProgramOwner Kind = "wrong_program_owner"
)

// Error is a typed application error carrying a Kind for HTTP mapping.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from err, defaulting to DatabaseError-grade
// "unknown" treated as 500 by callers that switch on it.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// StatusCode maps a Kind to the HTTP status from spec.md section 7's
// taxonomy table. Unrecognized kinds map to 500, matching the policy
// for DatabaseError-grade unknown failures.
func StatusCode(kind Kind) int {
	switch kind {
	case Unauthorized:
		return 401
	case BadRequest, InsufficientConfidential, WrongProgramOwner:
		return 400
	case NotFound:
		return 404
	case DecryptionFailed, ProofGenerationFailed, RPCSubmissionFailed, KeyDerivationFailed, DatabaseError:
		return 500
	default:
		return 500
	}
}

// InsufficientBalance is the structured payload for
// InsufficientConfidentialBalance (spec.md section 7, scenario B).
type InsufficientBalance struct {
	Available uint64
	Pending   uint64
	Required  uint64
}

func (i *InsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient confidential balance: available=%d pending=%d required=%d",
		i.Available, i.Pending, i.Required)
}

// NewInsufficientBalance wraps an InsufficientBalance as an
// InsufficientConfidential Error, which StatusCode maps to 400 per
// spec.md section 7's HTTP mapping for this kind.
func NewInsufficientBalance(available, pending, required uint64) *Error {
	return Wrap(InsufficientConfidential, "insufficient confidential available balance", &InsufficientBalance{
		Available: available,
		Pending:   pending,
		Required:  required,
	})
}
