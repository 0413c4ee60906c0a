// Copyright 2025 Radicle Link
//
// Wire URLs of the rad-p2p scheme.
//
// The VCS client hands the shim URLs of the form
//
//	rad-p2p://<local-peer>@<remote-peer>[.<socket-addr>]/<root>.git
//
// The local peer selects the stream factory (so multiple in-process peers
// can coexist, notably under test); the remote peer is who to connect to.
// The optional socket address after the remote peer id is a dial hint for
// factories that have no better route to the peer.

package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/jkachmar/radicle-link/pkg/hash"
	"github.com/jkachmar/radicle-link/pkg/peer"
)

// URLScheme is the scheme registered with the VCS client.
const URLScheme = "rad-p2p"

// GitURL is a parsed rad-p2p wire URL.
type GitURL struct {
	LocalPeer  peer.ID
	RemotePeer peer.ID
	// RemoteAddr is the optional socket-address dial hint, "host:port".
	RemoteAddr string
	Repo       hash.Hash
}

func (u GitURL) String() string {
	host := u.RemotePeer.String()
	if u.RemoteAddr != "" {
		host += "." + u.RemoteAddr
	}
	return fmt.Sprintf("%s://%s@%s/%s.git", URLScheme, u.LocalPeer, host, u.Repo)
}

// ParseGitURL parses the textual form produced by String.
func ParseGitURL(s string) (GitURL, error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return GitURL{}, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if parsed.Scheme != URLScheme {
		return GitURL{}, fmt.Errorf("%w: scheme %q", ErrMalformedURL, parsed.Scheme)
	}
	if parsed.User == nil {
		return GitURL{}, fmt.Errorf("%w: missing local peer", ErrMalformedURL)
	}
	return fromParts(parsed.User.Username(), parsed.Hostname(), parsed.Port(), parsed.Path)
}

// FromEndpoint reassembles a GitURL from the endpoint go-git hands the
// registered transport.
func FromEndpoint(ep *transport.Endpoint) (GitURL, error) {
	port := ""
	if ep.Port != 0 {
		port = fmt.Sprintf("%d", ep.Port)
	}
	return fromParts(ep.User, ep.Host, port, ep.Path)
}

func fromParts(localPeer, host, port, path string) (GitURL, error) {
	local, err := peer.Parse(localPeer)
	if err != nil {
		return GitURL{}, fmt.Errorf("%w: local peer: %v", ErrMalformedURL, err)
	}

	// The peer id alphabet has no '.', so anything after the first dot is
	// the socket-address hint.
	remoteStr, addrHost, hasAddr := strings.Cut(host, ".")
	remote, err := peer.Parse(remoteStr)
	if err != nil {
		return GitURL{}, fmt.Errorf("%w: remote peer: %v", ErrMalformedURL, err)
	}
	addr := ""
	if hasAddr {
		if port == "" {
			return GitURL{}, fmt.Errorf("%w: socket address without port", ErrMalformedURL)
		}
		addr = addrHost + ":" + port
	}

	repoStr := strings.TrimPrefix(path, "/")
	repoStr, ok := strings.CutSuffix(repoStr, ".git")
	if !ok || repoStr == "" || strings.Contains(repoStr, "/") {
		return GitURL{}, fmt.Errorf("%w: repository path %q", ErrMalformedURL, path)
	}
	repo, err := hash.Parse(repoStr)
	if err != nil {
		return GitURL{}, fmt.Errorf("%w: repository: %v", ErrMalformedURL, err)
	}

	return GitURL{
		LocalPeer:  local,
		RemotePeer: remote,
		RemoteAddr: addr,
		Repo:       repo,
	}, nil
}
