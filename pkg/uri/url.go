// Copyright 2025 Radicle Link
//
// Peer-addressed replica names.
//
// A URL locates a replica of an identity-rooted branch set at a peer:
//
//	'rad+' <nss> '://' <peer-id> '/' MULTIBASE(<root>) ['/' <path>]
//
// The authority is the peer id to retrieve the repository from. The
// textual form round-trips byte-for-byte.

package uri

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jkachmar/radicle-link/pkg/hash"
	"github.com/jkachmar/radicle-link/pkg/peer"
)

// URL is a peer-addressed replica of the branch set named by URN.
type URL struct {
	Authority peer.ID
	URN       URN
}

// RadURL pairs the URN with the peer to fetch it from.
func (u URN) RadURL(authority peer.ID) URL {
	return URL{Authority: authority, URN: u}
}

func (u URL) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rad+%s://%s/%s", u.URN.Proto.NSS(), u.Authority, u.URN.ID)
	if !u.URN.Path.IsEmpty() {
		b.WriteByte('/')
		b.WriteString(percentEncode(u.URN.Path.String()))
	}
	return b.String()
}

// ParseURL parses the textual form produced by String. Any other scheme,
// any missing component, and any non-round-tripping multihash is rejected.
func ParseURL(s string) (URL, error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return URL{}, fmt.Errorf("%w: %v", ErrInvalidScheme, err)
	}

	rad, nss, ok := strings.Cut(parsed.Scheme, "+")
	if !ok {
		return URL{}, fmt.Errorf("%w: +scheme", ErrMissing)
	}
	if rad != "rad" {
		return URL{}, fmt.Errorf("%w: %q", ErrInvalidScheme, rad)
	}
	proto, err := ProtocolFromNSS(nss)
	if err != nil {
		return URL{}, err
	}

	if parsed.Host == "" {
		return URL{}, fmt.Errorf("%w: authority", ErrMissing)
	}
	authority, err := peer.Parse(parsed.Host)
	if err != nil {
		return URL{}, err
	}

	segments := strings.Split(strings.TrimPrefix(parsed.EscapedPath(), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return URL{}, fmt.Errorf("%w: id", ErrMissing)
	}
	id, err := hash.Parse(segments[0])
	if err != nil {
		return URL{}, err
	}

	var path Path
	for _, segment := range segments[1:] {
		decoded, err := percentDecode(segment)
		if err != nil {
			return URL{}, err
		}
		path, err = path.Join(decoded)
		if err != nil {
			return URL{}, err
		}
	}

	return URL{
		Authority: authority,
		URN:       URN{ID: id, Proto: proto, Path: path},
	}, nil
}
