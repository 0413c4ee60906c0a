// Copyright 2025 Radicle Link
//
// Identity handles over storage.
//
// Users and Projects wrap a Storage handle with the produce/consume
// operations of one identity kind: creating the initial attestation,
// co-signing another device's head, amending payload or delegations,
// fast-forwarding onto a co-signed head, and verifying a head by folding
// its history from the root forward.

package storage

import (
	"fmt"

	"github.com/jkachmar/radicle-link/pkg/hash"
	"github.com/jkachmar/radicle-link/pkg/identity"
	"github.com/jkachmar/radicle-link/pkg/keys"
	"github.com/jkachmar/radicle-link/pkg/metrics"
	"github.com/jkachmar/radicle-link/pkg/uri"
)

// Resolver turns a URN into the content id of that identity's current
// head, for cross-identity delegations.
type Resolver func(uri.URN) (hash.Hash, error)

// putAttestation writes the document blob, tree and envelope commit,
// returning the stored attestation. extra carries co-signatures already
// made over the same revision; signer adds the local one.
func putAttestation[P any, D identity.Delegations](
	s *Storage,
	doc identity.Doc[P, D],
	signer keys.SecretKey,
	extra keys.Signatures,
	parents []hash.Hash,
	root *hash.Hash,
) (identity.Attestation[P, D], error) {
	var zero identity.Attestation[P, D]

	canon, err := doc.Canonical()
	if err != nil {
		return zero, err
	}
	revision, err := s.writeBlob(canon)
	if err != nil {
		return zero, err
	}
	tree, err := s.writeDocTree(revision)
	if err != nil {
		return zero, err
	}

	sigs := make(keys.Signatures, len(extra)+1)
	sigs.Merge(extra)
	sigs[signer.Public()] = signer.Sign(revision.Multihash())

	r := revision
	if root != nil {
		r = *root
	}

	contentID, err := s.writeCommit(tree, parents, encodeMessage(uri.NewURN(r), sigs))
	if err != nil {
		return zero, err
	}

	att := identity.Attestation[P, D]{
		ContentID:  contentID,
		Root:       r,
		Revision:   revision,
		Doc:        doc,
		Signatures: sigs,
	}
	if err := s.setRef(att.URN(), contentID); err != nil {
		return zero, err
	}
	return att, nil
}

// getAttestation loads the attestation stored under the given content id.
func getAttestation[P any, D identity.Delegations](s *Storage, id hash.Hash) (identity.Attestation[P, D], error) {
	var zero identity.Attestation[P, D]

	commit, err := s.readCommit(id)
	if err != nil {
		return zero, err
	}
	revision, data, err := s.docBlob(commit)
	if err != nil {
		return zero, err
	}
	doc, err := identity.ParseDoc[P, D](data)
	if err != nil {
		return zero, err
	}
	sigs, err := parseSignatures(commit.Message)
	if err != nil {
		return zero, err
	}

	initial := commit
	for initial.NumParents() > 0 {
		initial, err = initial.Parent(0)
		if err != nil {
			return zero, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
	}
	root, _, err := s.docBlob(initial)
	if err != nil {
		return zero, err
	}

	return identity.Attestation[P, D]{
		ContentID:  id,
		Root:       root,
		Revision:   revision,
		Doc:        doc,
		Signatures: sigs,
	}, nil
}

// foldHistory verifies the chain ending at head, from the root forward.
func foldHistory[P any, D identity.Delegations](
	s *Storage,
	head hash.Hash,
	load func(hash.Hash) (identity.Attestation[P, D], error),
) (identity.Folded[P, D], error) {
	var zero identity.Folded[P, D]

	chain, err := s.firstParentChain(head)
	if err != nil {
		return zero, err
	}

	root, err := load(chain[0])
	if err != nil {
		return zero, err
	}
	base, err := identity.NewVerifying(root).Verified(nil)
	if err != nil {
		return zero, err
	}

	rest := chain[1:]
	i := 0
	folded, err := base.Verify(func() (*identity.Verifying[P, D], error) {
		if i == len(rest) {
			return nil, nil
		}
		att, err := load(rest[i])
		if err != nil {
			return nil, err
		}
		i++
		v := identity.NewVerifying(att)
		return &v, nil
	})
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return zero, err
	}
	metrics.VerificationsTotal.WithLabelValues(metrics.OutcomeVerified).Inc()
	return folded, nil
}

// Users is the handle for user identities.
type Users struct {
	s *Storage
}

// Users returns the user identity handle of the storage.
func (s *Storage) Users() Users {
	return Users{s: s}
}

// Create writes and advertises the initial attestation of a new user.
func (u Users) Create(payload identity.UserPayload, delegations identity.Direct, signer keys.SecretKey) (identity.User, error) {
	doc := identity.NewDoc(payload, delegations)
	return putAttestation(u.s, doc, signer, nil, nil, nil)
}

// CreateFrom co-signs another device's head: a new attestation over the
// same revision, carrying the other signatures plus the signer's.
func (u Users) CreateFrom(other identity.Verifying[identity.UserPayload, identity.Direct], signer keys.SecretKey) (identity.User, error) {
	if other.State() < identity.StateSigned {
		return identity.User{}, fmt.Errorf("co-signing requires a signed attestation, got %s", other.State())
	}
	att := other.Attestation()
	root := att.Root
	return putAttestation(u.s, att.Doc, signer, att.Signatures, []hash.Hash{att.ContentID}, &root)
}

// Update amends the current head. Nil payload or delegations keep the
// current value.
func (u Users) Update(
	cur identity.Verifying[identity.UserPayload, identity.Direct],
	payload *identity.UserPayload,
	delegations identity.Direct,
	signer keys.SecretKey,
) (identity.User, error) {
	if cur.State() < identity.StateSigned {
		return identity.User{}, fmt.Errorf("updating requires a signed attestation, got %s", cur.State())
	}
	att := cur.Attestation()

	p := att.Doc.Payload
	if payload != nil {
		p = *payload
	}
	d := att.Doc.Delegations
	if delegations != nil {
		d = delegations
	}

	doc := att.Doc.Amend(att.Revision, p, d)
	root := att.Root
	return putAttestation(u.s, doc, signer, nil, []hash.Hash{att.ContentID}, &root)
}

// UpdateFrom fast-forwards onto another device's head, acknowledging it
// with the signer's signature.
func (u Users) UpdateFrom(
	cur, other identity.Verifying[identity.UserPayload, identity.Direct],
	signer keys.SecretKey,
) (identity.User, error) {
	if cur.State() < identity.StateSigned || other.State() < identity.StateSigned {
		return identity.User{}, fmt.Errorf("fast-forward requires signed attestations")
	}
	ours, theirs := cur.Attestation(), other.Attestation()
	if ours.Root != theirs.Root {
		return identity.User{}, fmt.Errorf("%w: expected %s, actual %s",
			identity.ErrRootMismatch, ours.Root, theirs.Root)
	}
	root := ours.Root
	return putAttestation(u.s, theirs.Doc, signer, theirs.Signatures,
		[]hash.Hash{ours.ContentID, theirs.ContentID}, &root)
}

// Get loads a user attestation by content id.
func (u Users) Get(id hash.Hash) (identity.User, error) {
	return getAttestation[identity.UserPayload, identity.Direct](u.s, id)
}

// Verify folds the history ending at head and returns the most recent
// verified attestation together with its parent.
func (u Users) Verify(head hash.Hash) (identity.Folded[identity.UserPayload, identity.Direct], error) {
	return foldHistory(u.s, head, u.Get)
}

// Projects is the handle for project identities.
type Projects struct {
	s *Storage
}

// Projects returns the project identity handle of the storage.
func (s *Storage) Projects() Projects {
	return Projects{s: s}
}

// Create writes and advertises the initial attestation of a new project.
func (p Projects) Create(payload identity.ProjectPayload, delegations identity.Indirect, signer keys.SecretKey) (identity.Project, error) {
	doc := identity.NewDoc(payload, delegations)
	return putAttestation(p.s, doc, signer, nil, nil, nil)
}

// CreateFrom co-signs another device's head.
func (p Projects) CreateFrom(other identity.Verifying[identity.ProjectPayload, identity.Indirect], signer keys.SecretKey) (identity.Project, error) {
	if other.State() < identity.StateSigned {
		return identity.Project{}, fmt.Errorf("co-signing requires a signed attestation, got %s", other.State())
	}
	att := other.Attestation()
	root := att.Root
	return putAttestation(p.s, att.Doc, signer, att.Signatures, []hash.Hash{att.ContentID}, &root)
}

// Update amends the current head. A nil payload keeps the current one;
// nil delegations keep the current set.
func (p Projects) Update(
	cur identity.Verifying[identity.ProjectPayload, identity.Indirect],
	payload *identity.ProjectPayload,
	delegations *identity.Indirect,
	signer keys.SecretKey,
) (identity.Project, error) {
	if cur.State() < identity.StateSigned {
		return identity.Project{}, fmt.Errorf("updating requires a signed attestation, got %s", cur.State())
	}
	att := cur.Attestation()

	pl := att.Doc.Payload
	if payload != nil {
		pl = *payload
	}
	d := att.Doc.Delegations
	if delegations != nil {
		d = *delegations
	}

	doc := att.Doc.Amend(att.Revision, pl, d)
	root := att.Root
	return putAttestation(p.s, doc, signer, nil, []hash.Hash{att.ContentID}, &root)
}

// UpdateFrom fast-forwards onto another device's head.
func (p Projects) UpdateFrom(
	cur, other identity.Verifying[identity.ProjectPayload, identity.Indirect],
	signer keys.SecretKey,
) (identity.Project, error) {
	if cur.State() < identity.StateSigned || other.State() < identity.StateSigned {
		return identity.Project{}, fmt.Errorf("fast-forward requires signed attestations")
	}
	ours, theirs := cur.Attestation(), other.Attestation()
	if ours.Root != theirs.Root {
		return identity.Project{}, fmt.Errorf("%w: expected %s, actual %s",
			identity.ErrRootMismatch, ours.Root, theirs.Root)
	}
	root := ours.Root
	return putAttestation(p.s, theirs.Doc, signer, theirs.Signatures,
		[]hash.Hash{ours.ContentID, theirs.ContentID}, &root)
}

// Get loads a project attestation by content id. Indirect delegations
// come out unresolved.
func (p Projects) Get(id hash.Hash) (identity.Project, error) {
	return getAttestation[identity.ProjectPayload, identity.Indirect](p.s, id)
}

// Verify folds the history ending at head, resolving each referenced
// identity to its verified head through resolve. A referenced identity
// already being resolved higher up the call is a cycle and a hard error.
func (p Projects) Verify(head hash.Hash, resolve Resolver) (identity.Folded[identity.ProjectPayload, identity.Indirect], error) {
	visited := make(map[string]struct{})
	return p.verify(head, resolve, visited)
}

func (p Projects) verify(
	head hash.Hash,
	resolve Resolver,
	visited map[string]struct{},
) (identity.Folded[identity.ProjectPayload, identity.Indirect], error) {
	var zero identity.Folded[identity.ProjectPayload, identity.Indirect]

	load := func(id hash.Hash) (identity.Project, error) {
		att, err := p.Get(id)
		if err != nil {
			return att, err
		}
		if err := p.resolveDelegations(att, resolve, visited); err != nil {
			return att, err
		}
		return att, nil
	}

	// Mark the project itself in-progress for the duration of this fold,
	// so a delegation chain leading back here is detected as a cycle.
	probe, err := p.Get(head)
	if err != nil {
		return zero, err
	}
	self := probe.URN().String()
	if _, ok := visited[self]; ok {
		return zero, fmt.Errorf("%w: %s", identity.ErrCyclicDelegation, self)
	}
	visited[self] = struct{}{}
	defer delete(visited, self)

	return foldHistory(p.s, head, load)
}

func (p Projects) resolveDelegations(
	att identity.Project,
	resolve Resolver,
	visited map[string]struct{},
) error {
	urns, err := att.Doc.Delegations.URNs()
	if err != nil {
		return err
	}
	users := p.s.Users()
	for _, urn := range urns {
		if _, ok := visited[urn.String()]; ok {
			return fmt.Errorf("%w: %s", identity.ErrCyclicDelegation, urn)
		}
		id, err := resolve(urn)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", identity.ErrResolveFailed, urn, err)
		}
		folded, err := users.Verify(id)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", identity.ErrResolveFailed, urn, err)
		}
		resolved := folded.Head.Attestation()
		if resolved.Root != urn.ID {
			return fmt.Errorf("%w: %s resolved to %s", identity.ErrResolveFailed, urn, resolved.URN())
		}
		if err := att.Doc.Delegations.Resolve(&resolved); err != nil {
			return err
		}
	}
	return nil
}
