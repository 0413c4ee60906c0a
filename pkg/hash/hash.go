// Copyright 2025 Radicle Link
//
// Content addresses.
//
// Revisions and attestations are content-addressed by the hash function of
// the underlying object store (sha1 for git). Textually a hash travels as
// a multibase-encoded multihash, preferred base z-base32, which is also
// what the identity's URN is built from. Signatures are computed over the
// multihash bytes so that they stay valid across textual re-encodings.

package hash

import (
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// Sentinel errors for content address handling
var (
	// ErrInvalidLength is returned when a digest is not sha1-sized
	ErrInvalidLength = errors.New("invalid digest length")

	// ErrInvalidEncoding is returned when a textual hash does not decode
	ErrInvalidEncoding = errors.New("invalid hash encoding")

	// ErrUnsupportedHash is returned for multihash codes other than sha1
	ErrUnsupportedHash = errors.New("unsupported hash function")
)

// Hash is a content address in the object store.
type Hash [sha1.Size]byte

// Zero is the all-zero hash, used as a sentinel for "no object".
var Zero Hash

// FromBytes converts a raw sha1 digest into a Hash.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != sha1.Size {
		return h, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Parse decodes the multibase multihash textual form produced by String.
func Parse(s string) (Hash, error) {
	_, raw, err := multibase.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return FromMultihash(raw)
}

// FromMultihash decodes raw multihash bytes.
func FromMultihash(raw []byte) (Hash, error) {
	dec, err := multihash.Decode(raw)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if dec.Code != multihash.SHA1 {
		return Zero, fmt.Errorf("%w: code 0x%x", ErrUnsupportedHash, dec.Code)
	}
	return FromBytes(dec.Digest)
}

// Multihash returns the multihash encoding of the digest.
func (h Hash) Multihash() []byte {
	mh, err := multihash.Encode(h[:], multihash.SHA1)
	if err != nil {
		// Encoding a fixed-size sha1 digest is infallible.
		panic(err)
	}
	return mh
}

// String encodes the multihash in z-base32 multibase.
func (h Hash) String() string {
	s, err := multibase.Encode(multibase.Base32z, h.Multihash())
	if err != nil {
		panic(err)
	}
	return s
}

// IsZero reports whether h is the zero sentinel.
func (h Hash) IsZero() bool {
	return bytes.Equal(h[:], Zero[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
