// Copyright 2025 Radicle Link
//
// Package uri provides sentinel errors for URN and URL parsing.

package uri

import "errors"

// Sentinel errors for URN/URL parsing
var (
	// ErrMissing is returned when a required component is absent
	ErrMissing = errors.New("missing component")

	// ErrInvalidNID is returned when the namespace identifier is not "rad"
	ErrInvalidNID = errors.New("invalid namespace identifier")

	// ErrInvalidScheme is returned when a URL scheme is not rad+<proto>
	ErrInvalidScheme = errors.New("invalid scheme")

	// ErrInvalidProtocol is returned for unknown VCS protocol tags
	ErrInvalidProtocol = errors.New("invalid protocol")

	// ErrMalformedPath is returned when a path violates the ref format rules
	ErrMalformedPath = errors.New("malformed path")
)
