// Copyright 2025 Radicle Link
//
// Package keys provides sentinel errors for key and signature parsing.

package keys

import "errors"

// Sentinel errors for key material handling
var (
	// ErrInvalidKeyLength is returned when a public key is not 32 bytes
	ErrInvalidKeyLength = errors.New("invalid public key length")

	// ErrInvalidKeyEncoding is returned when a textual key does not decode
	ErrInvalidKeyEncoding = errors.New("invalid public key encoding")

	// ErrInvalidSignatureLength is returned when a signature is not 64 bytes
	ErrInvalidSignatureLength = errors.New("invalid signature length")

	// ErrInvalidSignatureEncoding is returned when a textual signature does not decode
	ErrInvalidSignatureEncoding = errors.New("invalid signature encoding")
)
