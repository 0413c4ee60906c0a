// Copyright 2025 Radicle Link
//
// Object store handle.
//
// Storage wraps a bare git repository holding the hash-linked identity
// histories. Operations on one handle are serialized by a mutex; separate
// handles over the same on-disk store fall back to git's own filesystem
// locking. Repository init writes the committer identity derived from the
// device key and wires the tracked-remotes file into the main config via
// include.path.

package storage

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/jkachmar/radicle-link/pkg/hash"
	"github.com/jkachmar/radicle-link/pkg/keys"
	"github.com/jkachmar/radicle-link/pkg/peer"
	"github.com/jkachmar/radicle-link/pkg/remotes"
	"github.com/jkachmar/radicle-link/pkg/uri"
)

// docFileName is the tree entry holding the identity document blob.
const docFileName = "id"

// Storage is a mutex-guarded handle on the object store.
type Storage struct {
	mu      sync.Mutex
	repo    *git.Repository
	remotes *remotes.Store
	key     keys.SecretKey
	log     *zap.Logger
}

// Option configures a Storage handle.
type Option func(*Storage)

// WithLogger attaches a logger; the default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Storage) { s.log = log }
}

// Init creates a bare repository at dir and returns a handle on it. It is
// an error if a repository already exists there.
func Init(dir string, key keys.SecretKey, opts ...Option) (*Storage, error) {
	repo, err := git.PlainInit(dir, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return fromRepo(repo, dir, key, opts...)
}

// Open returns a handle on the existing repository at dir.
func Open(dir string, key keys.SecretKey, opts ...Option) (*Storage, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return fromRepo(repo, dir, key, opts...)
}

func fromRepo(repo *git.Repository, dir string, key keys.SecretKey, opts ...Option) (*Storage, error) {
	rem := remotes.Open(afero.NewOsFs(), dir)

	cfg, err := repo.Config()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	cfg.User.Name = "radicle"
	cfg.User.Email = fmt.Sprintf("radicle@%s", peer.FromPublicKey(key.Public()))
	cfg.Raw.Section("include").SetOption("path", rem.Path())
	if err := repo.SetConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	s := &Storage{
		repo:    repo,
		remotes: rem,
		key:     key,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Key returns the device key the handle signs with.
func (s *Storage) Key() keys.SecretKey {
	return s.key
}

// PeerID returns the local peer id of the handle's device key.
func (s *Storage) PeerID() peer.ID {
	return peer.FromPublicKey(s.key.Public())
}

// Track adds remote to the tracked peers of urn.
func (s *Storage) Track(urn uri.URN, remote peer.ID) error {
	return s.remotes.Add(urn, remote)
}

// Untrack removes remote from the tracked peers of urn.
func (s *Storage) Untrack(urn uri.URN, remote peer.ID) error {
	return s.remotes.Remove(urn, remote)
}

// Tracked returns the tracked peers of urn, or of all branch sets when
// urn is nil.
func (s *Storage) Tracked(urn *uri.URN) ([]peer.ID, error) {
	return s.remotes.Tracked(urn)
}

// HasRef reports whether the given fully qualified reference exists.
func (s *Storage) HasRef(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.repo.Storer.Reference(plumbing.ReferenceName(name))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return true, nil
}

// HasURN reports whether the branch the URN names exists under the
// identity's namespace.
func (s *Storage) HasURN(urn uri.URN) (bool, error) {
	return s.HasRef(urn.NamespacedRef())
}

// HasCommit reports whether the commit is reachable from the branch the
// URN advertises.
func (s *Storage) HasCommit(urn uri.URN, oid hash.Hash) (bool, error) {
	if oid.IsZero() {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := object.GetCommit(s.repo.Storer, plumbing.Hash(oid))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			s.log.Debug("commit not found", zap.Stringer("oid", oid))
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	ref, err := s.repo.Storer.Reference(plumbing.ReferenceName(urn.NamespacedRef()))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}

	if ref.Hash() == commit.Hash {
		return true, nil
	}
	tip, err := object.GetCommit(s.repo.Storer, ref.Hash())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	reachable, err := commit.IsAncestor(tip)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return reachable, nil
}

// setRef points the branch the URN advertises at the given commit.
func (s *Storage) setRef(urn uri.URN, commit hash.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := plumbing.NewHashReference(
		plumbing.ReferenceName(urn.NamespacedRef()),
		plumbing.Hash(commit),
	)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return nil
}

// writeBlob stores data as a blob and returns its content address.
func (s *Storage) writeBlob(data []byte) (hash.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return hash.Zero, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return hash.Zero, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	if err := w.Close(); err != nil {
		return hash.Zero, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return hash.Zero, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return hash.Hash(h), nil
}

// writeDocTree stores the single-entry tree holding the document blob.
func (s *Storage) writeDocTree(blob hash.Hash) (hash.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree := &object.Tree{
		Entries: []object.TreeEntry{{
			Name: docFileName,
			Mode: filemode.Regular,
			Hash: plumbing.Hash(blob),
		}},
	}
	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return hash.Zero, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return hash.Zero, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return hash.Hash(h), nil
}

// writeCommit stores the attestation envelope.
func (s *Storage) writeCommit(tree hash.Hash, parents []hash.Hash, message string) (hash.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	who := object.Signature{
		Name:  "radicle",
		Email: fmt.Sprintf("radicle@%s", peer.FromPublicKey(s.key.Public())),
		When:  time.Now(),
	}
	parentHashes := make([]plumbing.Hash, len(parents))
	for i, p := range parents {
		parentHashes[i] = plumbing.Hash(p)
	}
	commit := &object.Commit{
		Author:       who,
		Committer:    who,
		Message:      message,
		TreeHash:     plumbing.Hash(tree),
		ParentHashes: parentHashes,
	}
	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return hash.Zero, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	h, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return hash.Zero, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return hash.Hash(h), nil
}

// readCommit loads an attestation envelope.
func (s *Storage) readCommit(id hash.Hash) (*object.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := object.GetCommit(s.repo.Storer, plumbing.Hash(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return commit, nil
}

// docBlob returns the document blob hash and bytes of a commit's tree.
func (s *Storage) docBlob(commit *object.Commit) (hash.Hash, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := commit.Tree()
	if err != nil {
		return hash.Zero, nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	entry, err := tree.FindEntry(docFileName)
	if err != nil {
		return hash.Zero, nil, fmt.Errorf("%w: %s", ErrNoSuchBlob, docFileName)
	}
	blob, err := object.GetBlob(s.repo.Storer, entry.Hash)
	if err != nil {
		return hash.Zero, nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return hash.Zero, nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return hash.Zero, nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return hash.Hash(entry.Hash), data, nil
}

// firstParentChain returns the content ids from the initial commit to
// head, following first parents.
func (s *Storage) firstParentChain(head hash.Hash) ([]hash.Hash, error) {
	var back []hash.Hash

	cur, err := s.readCommit(head)
	if err != nil {
		return nil, err
	}
	for {
		back = append(back, hash.Hash(cur.Hash))
		if cur.NumParents() == 0 {
			break
		}
		cur, err = cur.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
		}
	}

	chain := make([]hash.Hash, len(back))
	for i, h := range back {
		chain[len(back)-1-i] = h
	}
	return chain, nil
}
