// Copyright 2025 Radicle Link
//
// Package identity provides sentinel errors for the verification state
// machine. Errors are surfaced, never swallowed, with one exception: an
// under-quorum candidate encountered during a history fold is a draft and
// is skipped, not an error.

package identity

import "errors"

// Sentinel errors for identity verification
var (
	// ErrMalformedDocument is returned when the canonical codec rejects bytes
	ErrMalformedDocument = errors.New("malformed document")

	// ErrMalformedEnvelope is returned when an attestation's signatures are
	// unparseable or required envelope fields are missing
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrNoValidSignatures is returned when no signature both verifies and
	// is eligible under the document's delegations
	ErrNoValidSignatures = errors.New("no valid signatures")

	// ErrQuorum is returned when the signature count does not exceed the
	// document's own quorum threshold
	ErrQuorum = errors.New("quorum not reached")

	// ErrParentQuorum is returned when the signature count does not exceed
	// the parent document's quorum threshold
	ErrParentQuorum = errors.New("parent quorum not reached")

	// ErrRootMismatch is returned when chain-linked attestations disagree
	// on the identity's root
	ErrRootMismatch = errors.New("root mismatch")

	// ErrMissingParent is returned when a document claims to replace a
	// revision but no parent was supplied
	ErrMissingParent = errors.New("missing parent")

	// ErrDanglingParent is returned when a parent was supplied but the
	// document is the root
	ErrDanglingParent = errors.New("dangling parent")

	// ErrParentMismatch is returned when replaces does not equal the
	// parent's revision
	ErrParentMismatch = errors.New("parent mismatch")

	// ErrCyclicDelegation is returned when the indirect delegation graph
	// contains a cycle
	ErrCyclicDelegation = errors.New("cyclic delegation")

	// ErrResolveFailed is returned when the resolver callback failed
	ErrResolveFailed = errors.New("resolve failed")

	// ErrUnresolvedDelegation is returned when eligibility is evaluated
	// against an indirect delegation that was never resolved
	ErrUnresolvedDelegation = errors.New("unresolved indirect delegation")

	// ErrDuplicateDelegation is returned when a delegation set references
	// the same identity twice
	ErrDuplicateDelegation = errors.New("duplicate delegation")

	// ErrEmptyDelegations is returned when a delegation set has no members
	ErrEmptyDelegations = errors.New("empty delegation set")

	// ErrParentNotVerified is returned when a transition is given a parent
	// that has not itself reached the Verified state
	ErrParentNotVerified = errors.New("parent attestation not verified")
)
