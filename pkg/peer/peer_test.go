// Copyright 2025 Radicle Link
//
// Peer id tests.

package peer

import (
	"errors"
	"testing"

	"github.com/jkachmar/radicle-link/pkg/keys"
)

func TestRoundTrip(t *testing.T) {
	sk, err := keys.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id := FromPublicKey(sk.Public())

	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip mismatch")
	}
	if parsed.PublicKey() != sk.Public() {
		t.Errorf("peer id must preserve the device key")
	}
}

func TestParseRejects(t *testing.T) {
	if _, err := Parse("definitely not a peer id"); !errors.Is(err, ErrInvalidPeerID) {
		t.Fatalf("expected ErrInvalidPeerID, got %v", err)
	}
}
