// Copyright 2025 Radicle Link
//
// Envelope trailer tests.

package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/jkachmar/radicle-link/pkg/hash"
	"github.com/jkachmar/radicle-link/pkg/identity"
	"github.com/jkachmar/radicle-link/pkg/keys"
	"github.com/jkachmar/radicle-link/pkg/uri"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	sk1 := keys.FromSeed(desktopSeed)
	sk2 := keys.FromSeed(laptopSeed)

	msg := []byte("revision bytes")
	sigs := keys.Signatures{
		sk1.Public(): sk1.Sign(msg),
		sk2.Public(): sk2.Sign(msg),
	}

	message := encodeMessage(uri.NewURN(hash.Zero), sigs)
	parsed, err := parseSignatures(message)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(parsed))
	}
	for k, sig := range sigs {
		if parsed[k] != sig {
			t.Errorf("signature for %s did not round trip", k)
		}
	}
}

func TestEnvelopeSkipsUnknownTrailers(t *testing.T) {
	sk := keys.FromSeed(desktopSeed)
	msg := []byte("revision bytes")
	sigs := keys.Signatures{sk.Public(): sk.Sign(msg)}

	message := encodeMessage(uri.NewURN(hash.Zero), sigs) +
		"x-rad-unknown something else\n" +
		"Signed-off-by: somebody <some@body>\n"

	parsed, err := parseSignatures(message)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 1 {
		t.Errorf("expected 1 signature, got %d", len(parsed))
	}
}

func TestEnvelopeRejectsNoSignatures(t *testing.T) {
	_, err := parseSignatures("just a subject\n\nno trailers here\n")
	if !errors.Is(err, identity.ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
}

func TestEnvelopeRejectsTruncatedTrailer(t *testing.T) {
	sk := keys.FromSeed(desktopSeed)
	_, err := parseSignatures("subject\n\nx-rad-signature " + sk.Public().String() + "\n")
	if !errors.Is(err, identity.ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
}

func TestEnvelopeEmitOrderStable(t *testing.T) {
	sk1 := keys.FromSeed(desktopSeed)
	sk2 := keys.FromSeed(laptopSeed)
	msg := []byte("revision bytes")
	sigs := keys.Signatures{
		sk1.Public(): sk1.Sign(msg),
		sk2.Public(): sk2.Sign(msg),
	}

	a := encodeMessage(uri.NewURN(hash.Zero), sigs)
	b := encodeMessage(uri.NewURN(hash.Zero), sigs)
	if a != b {
		t.Errorf("emit order must not depend on map iteration")
	}
	if !strings.HasPrefix(a, uri.NewURN(hash.Zero).String()+"\n\n") {
		t.Errorf("subject line must be the urn, got %q", a)
	}
}
