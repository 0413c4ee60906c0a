// Copyright 2025 Radicle Link
//
// Peer identifiers.
//
// A peer is addressed by the public key of its device. The textual form is
// the z-base32 multibase encoding of the key, and appears as the authority
// component of replica URLs and in tracked-remote config sections.

package peer

import (
	"errors"
	"fmt"

	"github.com/jkachmar/radicle-link/pkg/keys"
)

// ErrInvalidPeerID is returned when a textual peer id does not decode to a
// public key.
var ErrInvalidPeerID = errors.New("invalid peer id")

// ID is the stable identifier of a peer on the network.
type ID struct {
	key keys.PublicKey
}

// FromPublicKey derives the peer id of a device key.
func FromPublicKey(pk keys.PublicKey) ID {
	return ID{key: pk}
}

// Parse decodes the textual form produced by String.
func Parse(s string) (ID, error) {
	pk, err := keys.ParsePublicKey(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return ID{key: pk}, nil
}

// PublicKey returns the device key backing this peer id.
func (id ID) PublicKey() keys.PublicKey {
	return id.key
}

func (id ID) String() string {
	return id.key.String()
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
