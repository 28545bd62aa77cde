// Package apierrors defines the typed error taxonomy shared by every
// component and the HTTP status mapping used to report it to callers.
package apierrors

import (
	"errors"
	"net/http"
)

// Kind classifies an Error into one of the categories a caller can act on.
type Kind string

// Error kinds, matching the taxonomy every component reports through.
const (
	// KindInvalidRequest covers malformed input: unknown access key, stale
	// computation key, out-of-range client id, duplicate uid, and similar.
	KindInvalidRequest Kind = "invalid_request"
	// KindProofInvalid means the external verifier rejected the proof.
	KindProofInvalid Kind = "proof_invalid"
	// KindCommitmentMismatch means parties disagreed on the commitment hash,
	// or the agreed hash didn't match the one derived from the proof.
	KindCommitmentMismatch Kind = "commitment_mismatch"
	// KindPeerFailure means a party returned non-200, timed out, or the
	// network call otherwise failed.
	KindPeerFailure Kind = "peer_failure"
	// KindLocalFailure covers compiler/VM/file-I/O errors local to a party.
	KindLocalFailure Kind = "local_failure"
	// KindQueueFull means the queue bound has been reached. Admission
	// reports this through queue.Full in the AddResult enum rather than
	// this error type, since add_user/add_priority_user report it as a 200
	// response body, not an HTTP failure; the kind and its Code() mapping
	// are kept for completeness of the §7 taxonomy.
	KindQueueFull Kind = "queue_full"
	// KindNotHead means the caller is not (or no longer) the queue head.
	KindNotHead Kind = "not_head"
	// KindCacheNotReady means the consumer cache has not finished its first
	// population yet.
	KindCacheNotReady Kind = "cache_not_ready"
)

// Error is the typed error every component returns. It carries a Kind used
// to pick an HTTP status, a human-readable Message, and an optional Cause
// for wrapping.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// NewInvalidRequest builds a KindInvalidRequest error.
func NewInvalidRequest(message string, cause error) *Error {
	return New(KindInvalidRequest, message, cause)
}

// NewProofInvalid builds a KindProofInvalid error.
func NewProofInvalid(message string, cause error) *Error {
	return New(KindProofInvalid, message, cause)
}

// NewCommitmentMismatch builds a KindCommitmentMismatch error.
func NewCommitmentMismatch(message string, cause error) *Error {
	return New(KindCommitmentMismatch, message, cause)
}

// NewPeerFailure builds a KindPeerFailure error.
func NewPeerFailure(message string, cause error) *Error {
	return New(KindPeerFailure, message, cause)
}

// NewLocalFailure builds a KindLocalFailure error.
func NewLocalFailure(message string, cause error) *Error {
	return New(KindLocalFailure, message, cause)
}

// NewNotHead builds a KindNotHead error.
func NewNotHead(message string) *Error {
	return New(KindNotHead, message, nil)
}

// NewCacheNotReady builds a KindCacheNotReady error.
func NewCacheNotReady(message string) *Error {
	return New(KindCacheNotReady, message, nil)
}

// Code maps err to an HTTP status code. Errors that are not *Error map to
// 500, treating unrecognized errors as internal.
func Code(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInvalidRequest, KindProofInvalid, KindCommitmentMismatch, KindQueueFull, KindNotHead:
		return http.StatusBadRequest
	case KindPeerFailure, KindLocalFailure:
		return http.StatusInternalServerError
	case KindCacheNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
