// Copyright 2025 Radicle Link
//
// Verification state machine tests.
//
// Test categories:
// 1. Signed - signature filtering and NoValidSignatures
// 2. Quorum - majority thresholds over the own delegation set
// 3. Verified - parent boundary rules and parent quorum
// 4. Fold - forward history folds, drafts skipped
// 5. Indirect - project delegations through user identities

package identity

import (
	"crypto/sha1"
	"errors"
	"testing"

	"github.com/jkachmar/radicle-link/pkg/hash"
	"github.com/jkachmar/radicle-link/pkg/keys"
)

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

var seedCounter byte

// testKey generates a deterministic device key for testing
func testKey(t *testing.T) keys.SecretKey {
	t.Helper()
	seedCounter++
	var seed [32]byte
	seed[0] = seedCounter
	seed[31] = 0x5a
	return keys.FromSeed(seed)
}

// contentID derives a fake envelope address for testing
func contentID(label string) hash.Hash {
	return hash.Hash(sha1.Sum([]byte("content:" + label)))
}

// revisionOf derives the revision of a document from its canonical bytes
func revisionOf(t *testing.T, doc UserDoc) hash.Hash {
	t.Helper()
	canon, err := doc.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	return hash.Hash(sha1.Sum(canon))
}

// projectRevisionOf derives the revision of a project document
func projectRevisionOf(t *testing.T, doc ProjectDoc) hash.Hash {
	t.Helper()
	canon, err := doc.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	return hash.Hash(sha1.Sum(canon))
}

// userAtt builds a user attestation signed by the given keys
func userAtt(t *testing.T, label string, doc UserDoc, root *hash.Hash, signers ...keys.SecretKey) User {
	t.Helper()
	rev := revisionOf(t, doc)
	r := rev
	if root != nil {
		r = *root
	}
	sigs := make(keys.Signatures, len(signers))
	for _, sk := range signers {
		sigs[sk.Public()] = sk.Sign(rev.Multihash())
	}
	return User{
		ContentID:  contentID(label),
		Root:       r,
		Revision:   rev,
		Doc:        doc,
		Signatures: sigs,
	}
}

// projectAtt builds a project attestation signed by the given keys
func projectAtt(t *testing.T, label string, doc ProjectDoc, root *hash.Hash, signers ...keys.SecretKey) Project {
	t.Helper()
	rev := projectRevisionOf(t, doc)
	r := rev
	if root != nil {
		r = *root
	}
	sigs := make(keys.Signatures, len(signers))
	for _, sk := range signers {
		sigs[sk.Public()] = sk.Sign(rev.Multihash())
	}
	return Project{
		ContentID:  contentID(label),
		Root:       r,
		Revision:   rev,
		Doc:        doc,
		Signatures: sigs,
	}
}

// progenyOf yields the given attestations in order
func progenyOf[P any, D Delegations](atts ...Attestation[P, D]) func() (*Verifying[P, D], error) {
	i := 0
	return func() (*Verifying[P, D], error) {
		if i == len(atts) {
			return nil, nil
		}
		v := NewVerifying(atts[i])
		i++
		return &v, nil
	}
}

// verifiedUser creates and fully verifies a fresh single-key user
func verifiedUser(t *testing.T, name string, sk keys.SecretKey) Verifying[UserPayload, Direct] {
	t.Helper()
	att := userAtt(t, "root:"+name, NewDoc(NewUserPayload(name), DirectFromKeys(sk.Public())), nil, sk)
	v, err := NewVerifying(att).Verified(nil)
	if err != nil {
		t.Fatalf("verifying root of %s: %v", name, err)
	}
	return v
}

// =============================================================================
// SIGNED
// =============================================================================

func TestSignedRetainsEligibleSignatures(t *testing.T) {
	k1 := testKey(t)
	stranger := testKey(t)

	doc := NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public()))
	att := userAtt(t, "a", doc, nil, k1, stranger)

	signed, err := NewVerifying(att).Signed()
	if err != nil {
		t.Fatalf("signed: %v", err)
	}
	if got := len(signed.Attestation().Signatures); got != 1 {
		t.Errorf("expected 1 surviving signature, got %d", got)
	}
	if _, ok := signed.Attestation().Signatures[k1.Public()]; !ok {
		t.Errorf("delegated signature was dropped")
	}
}

func TestSignedRejectsForgedSignature(t *testing.T) {
	k1 := testKey(t)

	doc := NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public()))
	att := userAtt(t, "a", doc, nil, k1)
	// Corrupt the signature
	sig := att.Signatures[k1.Public()]
	sig[0] ^= 0xff
	att.Signatures[k1.Public()] = sig

	_, err := NewVerifying(att).Signed()
	if !errors.Is(err, ErrNoValidSignatures) {
		t.Fatalf("expected ErrNoValidSignatures, got %v", err)
	}
}

func TestSignedRejectsStrangerOnly(t *testing.T) {
	k1 := testKey(t)
	stranger := testKey(t)

	doc := NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public()))
	att := userAtt(t, "a", doc, nil, stranger)

	_, err := NewVerifying(att).Signed()
	if !errors.Is(err, ErrNoValidSignatures) {
		t.Fatalf("expected ErrNoValidSignatures, got %v", err)
	}
}

// =============================================================================
// QUORUM
// =============================================================================

func TestQuorumThresholds(t *testing.T) {
	k1, k2, k3 := testKey(t), testKey(t), testKey(t)

	cases := []struct {
		name       string
		delegation Direct
		signers    []keys.SecretKey
		reached    bool
	}{
		{"one of one", DirectFromKeys(k1.Public()), []keys.SecretKey{k1}, true},
		{"one of two", DirectFromKeys(k1.Public(), k2.Public()), []keys.SecretKey{k1}, false},
		{"two of two", DirectFromKeys(k1.Public(), k2.Public()), []keys.SecretKey{k1, k2}, true},
		{"two of three", DirectFromKeys(k1.Public(), k2.Public(), k3.Public()), []keys.SecretKey{k1, k2}, true},
		{"one of three", DirectFromKeys(k1.Public(), k2.Public(), k3.Public()), []keys.SecretKey{k1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := NewDoc(NewUserPayload("chantal"), tc.delegation)
			att := userAtt(t, tc.name, doc, nil, tc.signers...)
			_, err := NewVerifying(att).Quorum()
			if tc.reached && err != nil {
				t.Errorf("expected quorum, got %v", err)
			}
			if !tc.reached && !errors.Is(err, ErrQuorum) {
				t.Errorf("expected ErrQuorum, got %v", err)
			}
		})
	}
}

func TestQuorumMonotone(t *testing.T) {
	k1, k2 := testKey(t), testKey(t)
	stranger := testKey(t)

	doc := NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public(), k2.Public()))
	att := userAtt(t, "a", doc, nil, k1, k2, stranger)

	// An extra ineligible signature cannot turn a Quorum into a non-Quorum.
	quorum, err := NewVerifying(att).Quorum()
	if err != nil {
		t.Fatalf("quorum: %v", err)
	}
	if quorum.State() != StateQuorum {
		t.Errorf("expected state quorum, got %s", quorum.State())
	}
}

// =============================================================================
// VERIFIED
// =============================================================================

func TestVerifiedRoot(t *testing.T) {
	k1 := testKey(t)
	v := verifiedUser(t, "chantal", k1)

	if v.State() != StateVerified {
		t.Fatalf("expected verified, got %s", v.State())
	}
	if v.Attestation().Revision != v.Attestation().Root {
		t.Errorf("root attestation revision must equal root")
	}
}

func TestVerifiedIdempotent(t *testing.T) {
	k1 := testKey(t)
	v := verifiedUser(t, "chantal", k1)

	again, err := v.Verified(nil)
	if err != nil {
		t.Fatalf("re-verifying: %v", err)
	}
	if again.State() != StateVerified {
		t.Errorf("expected verified, got %s", again.State())
	}
}

func TestVerifiedDanglingParent(t *testing.T) {
	k1 := testKey(t)
	parent := verifiedUser(t, "chantal", k1)

	// A root doc, but a parent is supplied.
	other := userAtt(t, "other",
		NewDoc(NewUserPayload("chantal"), DirectFromKeys(k1.Public())), nil, k1)
	other.Root = parent.Attestation().Root

	_, err := NewVerifying(other).Verified(&parent)
	if !errors.Is(err, ErrDanglingParent) {
		t.Fatalf("expected ErrDanglingParent, got %v", err)
	}
}

func TestVerifiedMissingParent(t *testing.T) {
	k1 := testKey(t)
	base := verifiedUser(t, "chantal", k1)
	prev := base.Attestation().Revision
	root := base.Attestation().Root

	doc := base.Attestation().Doc.Amend(prev, NewUserPayload("chantal"), DirectFromKeys(k1.Public()))
	att := userAtt(t, "next", doc, &root, k1)

	_, err := NewVerifying(att).Verified(nil)
	if !errors.Is(err, ErrMissingParent) {
		t.Fatalf("expected ErrMissingParent, got %v", err)
	}
}

func TestVerifiedRootMismatch(t *testing.T) {
	k1, k2 := testKey(t), testKey(t)
	chantal := verifiedUser(t, "chantal", k1)
	dylan := verifiedUser(t, "dylan", k2)

	prev := dylan.Attestation().Revision
	root := dylan.Attestation().Root
	doc := dylan.Attestation().Doc.Amend(prev, NewUserPayload("dylan"), DirectFromKeys(k2.Public()))
	att := userAtt(t, "next", doc, &root, k2)

	_, err := NewVerifying(att).Verified(&chantal)
	if !errors.Is(err, ErrRootMismatch) {
		t.Fatalf("expected ErrRootMismatch, got %v", err)
	}
}

func TestVerifiedParentMismatch(t *testing.T) {
	k1 := testKey(t)
	base := verifiedUser(t, "chantal", k1)
	root := base.Attestation().Root

	bogus := contentID("not-a-revision")
	doc := base.Attestation().Doc.Amend(bogus, NewUserPayload("chantal"), DirectFromKeys(k1.Public()))
	att := userAtt(t, "next", doc, &root, k1)

	_, err := NewVerifying(att).Verified(&base)
	if !errors.Is(err, ErrParentMismatch) {
		t.Fatalf("expected ErrParentMismatch, got %v", err)
	}
}

func TestVerifiedParentQuorum(t *testing.T) {
	k1, k2 := testKey(t), testKey(t)

	// Verified head with {K1, K2}: created by K1, co-signed by K2.
	rootAtt := userAtt(t, "root",
		NewDoc(NewUserPayload("dylan"), DirectFromKeys(k1.Public(), k2.Public())), nil, k1, k2)
	base, err := NewVerifying(rootAtt).Verified(nil)
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	root := rootAtt.Root

	// K2 unilaterally revokes K1: passes its own quorum of {K2}, but not
	// the parent's.
	doc := rootAtt.Doc.Amend(rootAtt.Revision, NewUserPayload("dylan"), DirectFromKeys(k2.Public()))
	att := userAtt(t, "revoke", doc, &root, k2)

	_, err = NewVerifying(att).Verified(&base)
	if !errors.Is(err, ErrParentQuorum) {
		t.Fatalf("expected ErrParentQuorum, got %v", err)
	}
}

// =============================================================================
// FOLD
// =============================================================================

func TestFoldCreateUser(t *testing.T) {
	k1 := testKey(t)
	v := verifiedUser(t, "chantal", k1)

	folded, err := v.Verify(progenyOf[UserPayload, Direct]())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if folded.Head.Attestation().Revision != v.Attestation().Root {
		t.Errorf("head revision must equal root")
	}
	if folded.Parent != nil {
		t.Errorf("root head has no parent")
	}
}

func TestFoldSkipsUnderQuorumDraft(t *testing.T) {
	k1, k2 := testKey(t), testKey(t)
	base := verifiedUser(t, "chantal", k1)
	r1 := base.Attestation().Revision
	root := base.Attestation().Root

	// Add a second delegation, signed by K1 only: a draft.
	doc := base.Attestation().Doc.Amend(r1, NewUserPayload("chantal"), DirectFromKeys(k1.Public(), k2.Public()))
	draft := userAtt(t, "draft", doc, &root, k1)

	folded, err := base.Verify(progenyOf(draft))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if folded.Head.Attestation().Revision != r1 {
		t.Errorf("draft must be skipped, head should stay at %s", r1)
	}
}

func TestFoldAdvancesOnCoSign(t *testing.T) {
	k1, k2 := testKey(t), testKey(t)
	base := verifiedUser(t, "chantal", k1)
	r1 := base.Attestation().Revision
	root := base.Attestation().Root

	doc := base.Attestation().Doc.Amend(r1, NewUserPayload("chantal"), DirectFromKeys(k1.Public(), k2.Public()))
	draft := userAtt(t, "draft", doc, &root, k1)
	cosigned := userAtt(t, "cosigned", doc, &root, k1, k2)

	folded, err := base.Verify(progenyOf(draft, cosigned))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if folded.Head.Attestation().Revision != cosigned.Revision {
		t.Errorf("head should advance to the co-signed revision")
	}
	if folded.Parent == nil || folded.Parent.Attestation().Revision != r1 {
		t.Errorf("parent should be the previous head")
	}
}

func TestFoldRevokeATrois(t *testing.T) {
	k1, k2, k3 := testKey(t), testKey(t), testKey(t)

	rootAtt := userAtt(t, "root",
		NewDoc(NewUserPayload("dylan"), DirectFromKeys(k1.Public(), k2.Public(), k3.Public())),
		nil, k1, k2)
	base, err := NewVerifying(rootAtt).Verified(nil)
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	root := rootAtt.Root

	// Remove K3, signed by K1 alone: threshold of the old set is 1, one
	// signature does not exceed it.
	doc := rootAtt.Doc.Amend(rootAtt.Revision, NewUserPayload("dylan"), DirectFromKeys(k1.Public(), k2.Public()))
	solo := userAtt(t, "solo", doc, &root, k1)

	folded, err := base.Verify(progenyOf(solo))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if folded.Head.Attestation().Revision != rootAtt.Revision {
		t.Errorf("under-quorum revocation must be skipped")
	}

	// K2 acks: two signatures against parent threshold 1.
	acked := userAtt(t, "acked", doc, &root, k1, k2)
	folded, err = base.Verify(progenyOf(solo, acked))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if folded.Head.Attestation().Revision != acked.Revision {
		t.Errorf("acked revocation must verify")
	}
}

func TestFoldAbortsOnUnsigned(t *testing.T) {
	k1 := testKey(t)
	stranger := testKey(t)
	base := verifiedUser(t, "chantal", k1)
	root := base.Attestation().Root

	doc := base.Attestation().Doc.Amend(base.Attestation().Revision, NewUserPayload("chantal"), DirectFromKeys(k1.Public()))
	bogus := userAtt(t, "bogus", doc, &root, stranger)

	_, err := base.Verify(progenyOf(bogus))
	if !errors.Is(err, ErrNoValidSignatures) {
		t.Fatalf("expected ErrNoValidSignatures, got %v", err)
	}
}

func TestFoldRootImmutable(t *testing.T) {
	k1, k2 := testKey(t), testKey(t)
	base := verifiedUser(t, "chantal", k1)
	root := base.Attestation().Root

	doc := base.Attestation().Doc.Amend(base.Attestation().Revision, NewUserPayload("chantal"), DirectFromKeys(k1.Public(), k2.Public()))
	next := userAtt(t, "next", doc, &root, k1, k2)

	folded, err := base.Verify(progenyOf(next))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if folded.Head.Attestation().Root != root {
		t.Errorf("root changed along the chain")
	}
}

// =============================================================================
// INDIRECT
// =============================================================================

func TestProjectIndirectDelegation(t *testing.T) {
	uk := testKey(t)
	chantal := verifiedUser(t, "chantal", uk)
	chantalAtt := chantal.Attestation()

	delegations, err := NewIndirect(nil, []*User{&chantalAtt})
	if err != nil {
		t.Fatalf("indirect: %v", err)
	}
	doc := Doc[ProjectPayload, Indirect]{
		Version:     Version,
		Payload:     NewProjectPayload("haskell-emoji", "The most important software package in the world", ""),
		Delegations: delegations,
	}
	att := projectAtt(t, "project", doc, nil, uk)

	v, err := NewVerifying(att).Verified(nil)
	if err != nil {
		t.Fatalf("verify project: %v", err)
	}
	if v.State() != StateVerified {
		t.Errorf("expected verified, got %s", v.State())
	}
}

func TestProjectUpdateNeedsSecondMaintainer(t *testing.T) {
	uk, vk := testKey(t), testKey(t)
	chantal := verifiedUser(t, "chantal", uk)
	dylan := verifiedUser(t, "dylan", vk)
	chantalAtt := chantal.Attestation()
	dylanAtt := dylan.Attestation()

	one, err := NewIndirect(nil, []*User{&chantalAtt})
	if err != nil {
		t.Fatalf("indirect: %v", err)
	}
	rootDoc := Doc[ProjectPayload, Indirect]{
		Version:     Version,
		Payload:     NewProjectPayload("haskell-emoji", "", ""),
		Delegations: one,
	}
	rootAtt := projectAtt(t, "project", rootDoc, nil, uk)
	base, err := NewVerifying(rootAtt).Verified(nil)
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	root := rootAtt.Root

	both, err := NewIndirect(nil, []*User{&chantalAtt, &dylanAtt})
	if err != nil {
		t.Fatalf("indirect: %v", err)
	}
	nextDoc := rootDoc.Amend(rootAtt.Revision, rootDoc.Payload, both)

	// Signed by chantal only: one vote against the new threshold of 1.
	draft := projectAtt(t, "draft", nextDoc, &root, uk)
	folded, err := base.Verify(progenyOf(draft))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if folded.Head.Attestation().Revision != rootAtt.Revision {
		t.Errorf("draft must be skipped")
	}

	// Dylan approves.
	approved := projectAtt(t, "approved", nextDoc, &root, uk, vk)
	folded, err = base.Verify(progenyOf(draft, approved))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if folded.Head.Attestation().Revision != approved.Revision {
		t.Errorf("approved update must verify")
	}
}

func TestIndirectCountsKeyOnce(t *testing.T) {
	uk := testKey(t)
	chantal := verifiedUser(t, "chantal", uk)
	chantalAtt := chantal.Attestation()

	// The same key qualifies both as a raw key and through chantal.
	delegations, err := NewIndirect([]keys.PublicKey{uk.Public()}, []*User{&chantalAtt})
	if err != nil {
		t.Fatalf("indirect: %v", err)
	}

	eligible, err := delegations.Eligible([]keys.PublicKey{uk.Public()})
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(eligible) != 1 {
		t.Errorf("key qualifying through multiple paths must count once, got %d", len(eligible))
	}
	// N=2 (one key, one reference), threshold 1: a single signature is
	// not a quorum even though the key qualifies twice.
	if got := delegations.QuorumThreshold(); got != 1 {
		t.Errorf("expected threshold 1, got %d", got)
	}
}

func TestIndirectUnresolvedFails(t *testing.T) {
	uk := testKey(t)
	chantal := verifiedUser(t, "chantal", uk)
	chantalAtt := chantal.Attestation()

	resolved, err := NewIndirect(nil, []*User{&chantalAtt})
	if err != nil {
		t.Fatalf("indirect: %v", err)
	}
	wire, err := resolved.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var unresolved Indirect
	if err := unresolved.UnmarshalJSON(wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	_, err = unresolved.Eligible([]keys.PublicKey{uk.Public()})
	if !errors.Is(err, ErrUnresolvedDelegation) {
		t.Fatalf("expected ErrUnresolvedDelegation, got %v", err)
	}
}

func TestIndirectRejectsDuplicateIdentity(t *testing.T) {
	uk := testKey(t)
	chantal := verifiedUser(t, "chantal", uk)
	a := chantal.Attestation()
	b := chantal.Attestation()

	_, err := NewIndirect(nil, []*User{&a, &b})
	if !errors.Is(err, ErrDuplicateDelegation) {
		t.Fatalf("expected ErrDuplicateDelegation, got %v", err)
	}
}
