// Copyright 2025 Radicle Link
//
// Package transport provides sentinel errors for the rad-p2p shim.

package transport

import "errors"

// Sentinel errors for the transport shim
var (
	// ErrMalformedURL is returned when a rad-p2p URL does not parse
	ErrMalformedURL = errors.New("malformed rad-p2p url")

	// ErrMalformedHeader is returned when a header line does not parse
	ErrMalformedHeader = errors.New("malformed header line")

	// ErrUnknownService is returned for service tags outside the protocol
	ErrUnknownService = errors.New("unknown service")

	// ErrNoFactory is returned when no stream factory is registered for
	// the local peer named in the URL
	ErrNoFactory = errors.New("no stream factory for local peer")

	// ErrNoConnection is returned when a stream to the remote peer cannot
	// be opened
	ErrNoConnection = errors.New("no connection to remote peer")
)
