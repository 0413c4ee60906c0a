// Copyright 2025 Radicle Link
//
// Document codec tests.

package identity

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestUserDocRoundTrip(t *testing.T) {
	k1, k2 := testKey(t), testKey(t)
	doc := NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public(), k2.Public()))

	canon, err := doc.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	parsed, err := ParseDoc[UserPayload, Direct](canon)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	again, err := parsed.Canonical()
	if err != nil {
		t.Fatalf("re-canonical: %v", err)
	}
	if !bytes.Equal(canon, again) {
		t.Errorf("canonical bytes unstable:\n%s\n%s", canon, again)
	}
	if len(parsed.Delegations) != 2 {
		t.Errorf("expected 2 delegations, got %d", len(parsed.Delegations))
	}
}

func TestProjectDocRoundTrip(t *testing.T) {
	uk := testKey(t)
	chantal := verifiedUser(t, "chantal", uk)
	chantalAtt := chantal.Attestation()

	delegations, err := NewIndirect(nil, []*User{&chantalAtt})
	if err != nil {
		t.Fatalf("indirect: %v", err)
	}
	doc := Doc[ProjectPayload, Indirect]{
		Version:     Version,
		Payload:     NewProjectPayload("haskell-emoji", "so important", ""),
		Delegations: delegations,
	}

	canon, err := doc.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if !strings.Contains(string(canon), chantalAtt.URN().String()) {
		t.Errorf("indirect delegation must serialize as a URN, got %s", canon)
	}

	parsed, err := ParseDoc[ProjectPayload, Indirect](canon)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	again, err := parsed.Canonical()
	if err != nil {
		t.Fatalf("re-canonical: %v", err)
	}
	if !bytes.Equal(canon, again) {
		t.Errorf("canonical bytes unstable:\n%s\n%s", canon, again)
	}
}

func TestDocReplacesOmittedOnRoot(t *testing.T) {
	k1 := testKey(t)
	doc := NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public()))

	canon, err := doc.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if strings.Contains(string(canon), "replaces") {
		t.Errorf("root doc must omit replaces, got %s", canon)
	}
	if !strings.Contains(string(canon), `"version":0`) {
		t.Errorf("version must serialize as the integer 0, got %s", canon)
	}
}

func TestDocAmendCarriesReplaces(t *testing.T) {
	k1 := testKey(t)
	doc := NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public()))
	prev := contentID("previous")

	next := doc.Amend(prev, doc.Payload, doc.Delegations)
	canon, err := next.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if !strings.Contains(string(canon), prev.String()) {
		t.Errorf("amended doc must carry replaces, got %s", canon)
	}
}

func TestParseDocRejectsUnknownFields(t *testing.T) {
	k1 := testKey(t)
	doc := NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public()))
	canon, err := doc.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}

	tampered := bytes.Replace(canon, []byte(`"version":0`), []byte(`"sneaky":1,"version":0`), 1)
	if _, err := ParseDoc[UserPayload, Direct](tampered); !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
}

func TestParseDocRejectsWrongVersion(t *testing.T) {
	k1 := testKey(t)
	doc := NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public()))
	canon, err := doc.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}

	tampered := bytes.Replace(canon, []byte(`"version":0`), []byte(`"version":1`), 1)
	if _, err := ParseDoc[UserPayload, Direct](tampered); !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
}

func TestParseDocRejectsEmptyDelegations(t *testing.T) {
	in := []byte(`{"delegations":[],"payload":{"name":"x"},"version":0}`)
	if _, err := ParseDoc[UserPayload, Direct](in); !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
}

func TestDirectDelegationsSorted(t *testing.T) {
	k1, k2, k3 := testKey(t), testKey(t), testKey(t)
	doc := NewDoc(NewUserPayload("x"), DirectFromKeys(k1.Public(), k2.Public(), k3.Public()))

	a, err := doc.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	b, err := doc.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("set serialization must not depend on map order")
	}
}

func TestProjectPayloadDefaultBranch(t *testing.T) {
	p := NewProjectPayload("p", "", "")
	if p.Branch() != DefaultBranch {
		t.Errorf("expected default branch %q, got %q", DefaultBranch, p.Branch())
	}
	q := NewProjectPayload("p", "", "main")
	if q.Branch() != "main" {
		t.Errorf("expected main, got %q", q.Branch())
	}
}
