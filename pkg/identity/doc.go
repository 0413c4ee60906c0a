// Copyright 2025 Radicle Link
//
// The identity document.
//
// A document carries the protocol version (always 0), an optional pointer
// to the revision it supersedes (absent only on the initial revision), the
// per-kind payload, and the delegation set. Its revision is the content
// address of its canonical bytes; signatures are detached over those same
// bytes, never over the envelope.

package identity

import (
	"fmt"

	"github.com/jkachmar/radicle-link/pkg/canonical"
	"github.com/jkachmar/radicle-link/pkg/hash"
)

// Version is the only protocol version in existence.
const Version = 0

// Doc is the identity document, carrying payload P and delegations D.
type Doc[P any, D Delegations] struct {
	Version     int        `json:"version"`
	Replaces    *hash.Hash `json:"replaces,omitempty"`
	Payload     P          `json:"payload"`
	Delegations D          `json:"delegations"`
}

// UserDoc is the document of a user identity: direct delegations only.
type UserDoc = Doc[UserPayload, Direct]

// ProjectDoc is the document of a project identity: indirect delegations
// only.
type ProjectDoc = Doc[ProjectPayload, Indirect]

// NewDoc builds an initial (parent-less) document.
func NewDoc[P any, D Delegations](payload P, delegations D) Doc[P, D] {
	return Doc[P, D]{
		Version:     Version,
		Payload:     payload,
		Delegations: delegations,
	}
}

// Amend derives the successor document of d, replacing prev.
func (d Doc[P, D]) Amend(prev hash.Hash, payload P, delegations D) Doc[P, D] {
	return Doc[P, D]{
		Version:     Version,
		Replaces:    &prev,
		Payload:     payload,
		Delegations: delegations,
	}
}

// Canonical returns the canonical byte form of the document, i.e. the
// bytes that are hashed to form its revision and signed by each key.
func (d Doc[P, D]) Canonical() ([]byte, error) {
	b, err := canonical.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return b, nil
}

// ParseDoc parses canonical bytes into a document, enforcing the closed
// schema and the protocol version.
func ParseDoc[P any, D Delegations](data []byte) (Doc[P, D], error) {
	var d Doc[P, D]
	if err := canonical.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if d.Version != Version {
		return d, fmt.Errorf("%w: unsupported version %d", ErrMalformedDocument, d.Version)
	}
	return d, nil
}
