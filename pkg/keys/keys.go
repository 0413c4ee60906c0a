// Copyright 2025 Radicle Link
//
// Device keys and detached signatures.
//
// A device is identified by an Ed25519 public key. Identity revisions are
// signed with the device's secret key; the signatures travel detached from
// the document, labeled by the public key that produced them.

package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/multiformats/go-multibase"
)

// PublicKey is a 32-byte Ed25519 public key identifying a device.
type PublicKey [ed25519.PublicKeySize]byte

// PublicKeyFromBytes converts a raw 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != ed25519.PublicKeySize {
		return pk, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// ParsePublicKey parses the multibase textual form produced by String.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	_, b, err := multibase.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidKeyEncoding, err)
	}
	return PublicKeyFromBytes(b)
}

// String encodes the key in z-base32 multibase, the preferred base for all
// textual identifiers in the protocol.
func (pk PublicKey) String() string {
	s, err := multibase.Encode(multibase.Base32z, pk[:])
	if err != nil {
		// Base32z is infallible over byte input.
		panic(err)
	}
	return s
}

// Verify reports whether sig is a valid signature by this key over msg.
func (pk PublicKey) Verify(msg []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), msg, sig[:])
}

// MarshalText implements encoding.TextMarshaler, so keys are usable as JSON
// object keys and set elements.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *PublicKey) UnmarshalText(b []byte) error {
	parsed, err := ParsePublicKey(string(b))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// Signature is a detached Ed25519 signature over a revision's bytes.
type Signature [ed25519.SignatureSize]byte

// SignatureFromBytes converts a raw 64-byte slice into a Signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != ed25519.SignatureSize {
		return sig, fmt.Errorf("%w: got %d bytes", ErrInvalidSignatureLength, len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

// ParseSignature parses the multibase textual form produced by String.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	_, b, err := multibase.Decode(s)
	if err != nil {
		return sig, fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}
	return SignatureFromBytes(b)
}

func (sig Signature) String() string {
	s, err := multibase.Encode(multibase.Base32z, sig[:])
	if err != nil {
		panic(err)
	}
	return s
}

// SecretKey holds the Ed25519 private half of a device key.
type SecretKey struct {
	priv ed25519.PrivateKey
}

// Generate creates a new random device key.
func Generate() (SecretKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SecretKey{}, err
	}
	return SecretKey{priv: priv}, nil
}

// FromSeed derives a device key deterministically from a 32-byte seed.
func FromSeed(seed [ed25519.SeedSize]byte) SecretKey {
	return SecretKey{priv: ed25519.NewKeyFromSeed(seed[:])}
}

// Public returns the public half of the key.
func (sk SecretKey) Public() PublicKey {
	pk, err := PublicKeyFromBytes(sk.priv.Public().(ed25519.PublicKey))
	if err != nil {
		panic(err)
	}
	return pk
}

// Sign produces a detached signature over msg.
func (sk SecretKey) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(sk.priv, msg))
	return sig
}

// Signatures maps each signing key to its signature over one revision. Each
// key appears at most once; insertion order is irrelevant.
type Signatures map[PublicKey]Signature

// Keys returns the set of signing keys.
func (s Signatures) Keys() []PublicKey {
	ks := make([]PublicKey, 0, len(s))
	for k := range s {
		ks = append(ks, k)
	}
	return ks
}

// Merge folds other into s, returning s. Signatures by the same key are
// overwritten; the verifier recomputes validity, so last-write-wins is fine.
func (s Signatures) Merge(other Signatures) Signatures {
	for k, v := range other {
		s[k] = v
	}
	return s
}
