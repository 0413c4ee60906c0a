// Copyright 2025 Radicle Link
//
// Tracked remote peers.
//
// Each repository carries a list of remote peers to fetch identity branch
// sets from, persisted as a standard git config file next to the
// repository and included from the main config via include.path. Every
// tracked (urn, peer) pair contributes a remote section holding the rad
// URL and a fetch refspec mapping the identity's namespace into the
// peer's remote-tracking namespace.
//
// Writers rename a fully written temp file into place, so concurrent
// writers race safely: at least one write succeeds, readers always see a
// consistent snapshot, and a failed write leaves the prior contents
// intact.

package remotes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gitcfg "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/spf13/afero"

	"github.com/jkachmar/radicle-link/pkg/peer"
	"github.com/jkachmar/radicle-link/pkg/uri"
)

// ConfigFileName is the on-disk name of the tracked-remotes file.
const ConfigFileName = "rad-remotes.config"

// Store is the per-repository tracked-remotes table. The file is re-read
// on every operation; the mutex only serializes writers on this handle,
// races between handles or processes are resolved by rename-into-place.
type Store struct {
	fs   afero.Fs
	path string

	mu sync.Mutex
}

// Open returns the store for the repository directory dir. The config
// file is created lazily on the first Add or Remove.
func Open(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, path: filepath.Join(dir, ConfigFileName)}
}

// Path returns the location of the config file, for include.path wiring.
func (s *Store) Path() string {
	return s.path
}

// Add tracks remote for the branch set named by urn.
func (s *Store) Add(urn uri.URN, remote peer.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return err
	}

	sub := cfg.Section("remote").Subsection(subsection(urn, remote))
	sub.SetOption("url", urn.RadURL(remote).String())
	sub.SetOption("fetch", fmt.Sprintf(
		"refs/namespaces/%s/refs/*:refs/namespaces/%s/refs/remotes/%s/*",
		urn.ID, urn.ID, remote,
	))

	return s.save(cfg)
}

// Remove untracks remote for the branch set named by urn. Removing an
// untracked pair is not an error.
func (s *Store) Remove(urn uri.URN, remote peer.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return err
	}

	cfg.Section("remote").RemoveSubsection(subsection(urn, remote))

	return s.save(cfg)
}

// Tracked returns the tracked peers, restricted to urn when non-nil. The
// result reflects one consistent snapshot of the file.
func (s *Store) Tracked(urn *uri.URN) ([]peer.ID, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}

	var prefix string
	if urn != nil {
		prefix = urn.ID.String() + "/"
	}

	var out []peer.ID
	for _, sub := range cfg.Section("remote").Subsections {
		if sub.Option("url") == "" {
			continue
		}
		name := sub.Name
		if prefix != "" {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
		}
		_, peerStr, ok := strings.Cut(name, "/")
		if !ok {
			continue
		}
		id, err := peer.Parse(peerStr)
		if err != nil {
			// Foreign sections in the file are skipped, not an error.
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func subsection(urn uri.URN, remote peer.ID) string {
	return fmt.Sprintf("%s/%s", urn.ID, remote)
}

func (s *Store) load() (*gitcfg.Config, error) {
	cfg := gitcfg.New()

	f, err := s.fs.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	if err := gitcfg.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return cfg, nil
}

func (s *Store) save(cfg *gitcfg.Config) error {
	tmp, err := afero.TempFile(s.fs, filepath.Dir(s.path), ConfigFileName+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := gitcfg.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return err
	}

	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	return nil
}
