// Copyright 2025 Radicle Link
//
// Identity-rooted names.
//
// A URN identifies a branch set in a verifiable repository:
//
//	'rad' ':' <nss> ':' MULTIBASE(<root>) ['/' <path>]
//
// where <root> is the content address of the initial (parent-less)
// revision of the identity document, <nss> names the VCS backend, and the
// preferred multibase is z-base32. The textual form round-trips
// byte-for-byte.

package uri

import (
	"fmt"
	"strings"

	"github.com/jkachmar/radicle-link/pkg/hash"
)

// Protocol is the VCS family tag, implying the native wire protocol.
type Protocol int

// The only backend currently supported is git.
const (
	ProtocolGit Protocol = iota
)

// NSS returns the namespace-specific string of the protocol.
func (p Protocol) NSS() string {
	switch p {
	case ProtocolGit:
		return "git"
	default:
		panic(fmt.Sprintf("unknown protocol %d", int(p)))
	}
}

// ProtocolFromNSS parses a namespace-specific string.
func ProtocolFromNSS(s string) (Protocol, error) {
	switch s {
	case "git":
		return ProtocolGit, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidProtocol, s)
	}
}

// URN is the stable name of an identity-rooted branch set.
type URN struct {
	ID    hash.Hash
	Proto Protocol
	Path  Path
}

// NewURN names the identity rooted at id, with an empty path.
func NewURN(id hash.Hash) URN {
	return URN{ID: id, Proto: ProtocolGit}
}

func (u URN) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rad:%s:%s", u.Proto.NSS(), u.ID)
	if !u.Path.IsEmpty() {
		b.WriteByte('/')
		b.WriteString(percentEncode(u.Path.String()))
	}
	return b.String()
}

// ParseURN parses the textual form produced by String.
func ParseURN(s string) (URN, error) {
	components := strings.SplitN(s, ":", 3)
	if len(components) < 1 || components[0] == "" {
		return URN{}, fmt.Errorf("%w: namespace", ErrMissing)
	}
	if components[0] != "rad" {
		return URN{}, fmt.Errorf("%w: %q", ErrInvalidNID, components[0])
	}
	if len(components) < 2 {
		return URN{}, fmt.Errorf("%w: protocol", ErrMissing)
	}
	proto, err := ProtocolFromNSS(components[1])
	if err != nil {
		return URN{}, err
	}
	if len(components) < 3 {
		return URN{}, fmt.Errorf("%w: id and path", ErrMissing)
	}

	idAndPath, err := percentDecode(components[2])
	if err != nil {
		return URN{}, err
	}
	idStr, pathStr, havePath := strings.Cut(idAndPath, "/")
	if idStr == "" {
		return URN{}, fmt.Errorf("%w: id", ErrMissing)
	}
	id, err := hash.Parse(idStr)
	if err != nil {
		return URN{}, err
	}
	var path Path
	if havePath {
		path, err = ParsePath(pathStr)
		if err != nil {
			return URN{}, err
		}
	}

	return URN{ID: id, Proto: proto, Path: path}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (u URN) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *URN) UnmarshalText(b []byte) error {
	parsed, err := ParseURN(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// RefName returns the unqualified branch name the URN points at, `rad/id`
// when the path is empty.
func (u URN) RefName() string {
	branch := u.Path.OrDefault()
	return strings.TrimPrefix(branch, "refs/")
}

// NamespacedRef returns the fully qualified reference of the URN's branch
// under the identity's namespace.
func (u URN) NamespacedRef() string {
	return fmt.Sprintf("refs/namespaces/%s/refs/%s", u.ID, u.RefName())
}
