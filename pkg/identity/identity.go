// Copyright 2025 Radicle Link
//
// Attestations and the verification state machine.
//
// An attestation is one node in the hash-linked history of an identity:
// the document at one revision, plus detached signatures over that
// revision. Verification moves an attestation through
//
//	Untrusted -> Signed -> Quorum -> Verified
//
// where Signed retains only valid eligible signatures, Quorum checks the
// document's own threshold, and Verified additionally checks quorum
// against the parent's delegations across the replaces-boundary.
// Transitions are monotone; an attestation never drops back to a weaker
// state.

package identity

import (
	"fmt"

	"github.com/jkachmar/radicle-link/pkg/hash"
	"github.com/jkachmar/radicle-link/pkg/keys"
	"github.com/jkachmar/radicle-link/pkg/uri"
)

// Attestation is an identity document bound to its content addresses and
// signatures. ContentID addresses the envelope (the commit), Revision the
// document, and Root the initial revision, which is the identity's stable
// id.
type Attestation[P any, D Delegations] struct {
	ContentID  hash.Hash
	Root       hash.Hash
	Revision   hash.Hash
	Doc        Doc[P, D]
	Signatures keys.Signatures
}

// User is the attestation of a user identity.
type User = Attestation[UserPayload, Direct]

// Project is the attestation of a project identity.
type Project = Attestation[ProjectPayload, Indirect]

// URN returns the stable name of the identity.
func (a Attestation[P, D]) URN() uri.URN {
	return uri.NewURN(a.Root)
}

// SignedBytes returns the bytes each signature covers: the revision's
// multihash form, never the envelope or the parent pointer.
func (a Attestation[P, D]) SignedBytes() []byte {
	return a.Revision.Multihash()
}

// State is the set of predicates proven about an attestation so far.
type State int

const (
	// StateUntrusted is well-formed input with nothing proven.
	StateUntrusted State = iota
	// StateSigned is signed by at least one current key delegation.
	StateSigned
	// StateQuorum is signed by a quorum of the current key delegations.
	StateQuorum
	// StateVerified additionally reaches quorum of the parent's key
	// delegations.
	StateVerified
)

func (s State) String() string {
	switch s {
	case StateUntrusted:
		return "untrusted"
	case StateSigned:
		return "signed"
	case StateQuorum:
		return "quorum"
	case StateVerified:
		return "verified"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Verifying is an attestation under verification, tagged with the
// strongest state proven about it.
type Verifying[P any, D Delegations] struct {
	att   Attestation[P, D]
	state State
}

// NewVerifying wraps arbitrary input in the Untrusted state.
func NewVerifying[P any, D Delegations](att Attestation[P, D]) Verifying[P, D] {
	return Verifying[P, D]{att: att, state: StateUntrusted}
}

// Attestation strips the verification wrapper.
func (v Verifying[P, D]) Attestation() Attestation[P, D] {
	return v.att
}

// State returns the strongest state proven so far.
func (v Verifying[P, D]) State() State {
	return v.state
}

// Signed attempts the transition to the Signed state. Only signatures
// which verify cryptographically over the revision bytes and whose key is
// eligible under the document's own delegations are retained.
func (v Verifying[P, D]) Signed() (Verifying[P, D], error) {
	if v.state >= StateSigned {
		return v, nil
	}

	eligible, err := v.att.Doc.Delegations.Eligible(v.att.Signatures.Keys())
	if err != nil {
		return v, err
	}

	msg := v.att.SignedBytes()
	retained := make(keys.Signatures, len(v.att.Signatures))
	for k, sig := range v.att.Signatures {
		if _, ok := eligible[k]; ok && k.Verify(msg, sig) {
			retained[k] = sig
		}
	}
	if len(retained) == 0 {
		return v, fmt.Errorf("%w: revision %s (content id %s)",
			ErrNoValidSignatures, v.att.Revision, v.att.ContentID)
	}

	v.att.Signatures = retained
	v.state = StateSigned
	return v, nil
}

// Quorum attempts the transition to the Quorum state: the surviving
// signature count must strictly exceed the document's own threshold.
// Called on an Untrusted attestation, it runs Signed first.
func (v Verifying[P, D]) Quorum() (Verifying[P, D], error) {
	if v.state >= StateQuorum {
		return v, nil
	}

	signed, err := v.Signed()
	if err != nil {
		return v, err
	}
	if len(signed.att.Signatures) <= signed.att.Doc.Delegations.QuorumThreshold() {
		return signed, ErrQuorum
	}

	signed.state = StateQuorum
	return signed, nil
}

// Verified attempts the final transition. The parent is the verified
// attestation whose revision this document claims to replace; nil for the
// root. Called on a weaker state, the earlier transitions run first.
func (v Verifying[P, D]) Verified(parent *Verifying[P, D]) (Verifying[P, D], error) {
	if v.state >= StateVerified {
		return v, nil
	}

	quorum, err := v.Quorum()
	if err != nil {
		return v, err
	}
	v = quorum

	if parent != nil && parent.state != StateVerified {
		return v, ErrParentNotVerified
	}

	replaces := v.att.Doc.Replaces
	switch {
	case parent != nil && parent.att.Root != v.att.Root:
		return v, fmt.Errorf("%w: expected %s, actual %s",
			ErrRootMismatch, v.att.Root, parent.att.Root)

	case replaces == nil && parent != nil:
		return v, fmt.Errorf("%w: %s has no previous revision, but a parent %s was supplied",
			ErrDanglingParent, v.att.ContentID, parent.att.ContentID)

	case replaces != nil && parent == nil:
		return v, fmt.Errorf("%w: %s", ErrMissingParent, replaces)

	case replaces == nil && parent == nil:
		// The root: only its own quorum applies.
		v.state = StateVerified
		return v, nil

	default:
		if *replaces != parent.att.Revision {
			return v, fmt.Errorf("%w: expected %s, actual %s",
				ErrParentMismatch, replaces, parent.att.Revision)
		}
		votes, err := parent.att.Doc.Delegations.Eligible(v.att.Signatures.Keys())
		if err != nil {
			return v, err
		}
		if len(votes) <= parent.att.Doc.Delegations.QuorumThreshold() {
			return v, ErrParentQuorum
		}
		v.state = StateVerified
		return v, nil
	}
}

// Folded is the result of a history fold: the most recent verified
// attestation, and the parent it was verified against (nil when the head
// is the root).
type Folded[P any, D Delegations] struct {
	Head   Verifying[P, D]
	Parent *Verifying[P, D]
}

// Verify folds the hash-linked history forward, starting from a Verified
// base. next yields the progeny in forward chronological order, returning
// nil when exhausted.
//
// Candidates that fail the Signed transition abort the fold. Candidates
// that are signed but do not reach their own quorum are drafts and are
// skipped, retaining the previous head. Anything else failing the final
// transition aborts.
func (v Verifying[P, D]) Verify(next func() (*Verifying[P, D], error)) (Folded[P, D], error) {
	if v.state != StateVerified {
		return Folded[P, D]{}, fmt.Errorf("fold base is %s, want verified", v.state)
	}

	acc := Folded[P, D]{Head: v}
	for {
		cur, err := next()
		if err != nil {
			return acc, err
		}
		if cur == nil {
			return acc, nil
		}

		signed, err := cur.Signed()
		if err != nil {
			return acc, err
		}
		quorum, err := signed.Quorum()
		if err != nil {
			// Under-quorum proposals may coexist on the chain without
			// invalidating the identity.
			continue
		}
		head := acc.Head
		verified, err := quorum.Verified(&head)
		if err != nil {
			return acc, err
		}
		acc = Folded[P, D]{Head: verified, Parent: &head}
	}
}
