// Copyright 2025 Radicle Link
//
// Content address tests.

package hash

import (
	"crypto/sha1"
	"errors"
	"strings"
	"testing"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

func TestRoundTrip(t *testing.T) {
	h := Hash(sha1.Sum([]byte("geez")))

	parsed, err := Parse(h.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != h {
		t.Errorf("round trip mismatch")
	}
}

func TestStringIsZBase32(t *testing.T) {
	h := Hash(sha1.Sum([]byte("geez")))
	if !strings.HasPrefix(h.String(), "h") {
		t.Errorf("expected z-base32 multibase prefix 'h', got %s", h.String())
	}
}

func TestParseRejectsWrongHashFunction(t *testing.T) {
	digest := make([]byte, 32)
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s, err := multibase.Encode(multibase.Base32z, mh)
	if err != nil {
		t.Fatalf("multibase: %v", err)
	}

	if _, err := Parse(s); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("!!!"); !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Errorf("Zero must report IsZero")
	}
	if (Hash(sha1.Sum([]byte("x")))).IsZero() {
		t.Errorf("non-zero hash reported IsZero")
	}
}
