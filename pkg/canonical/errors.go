// Copyright 2025 Radicle Link
//
// Package canonical provides sentinel errors for the codec.

package canonical

import "errors"

// Sentinel errors for canonical serialization
var (
	// ErrMarshal is returned when a value cannot be canonically serialized
	ErrMarshal = errors.New("canonical marshal failed")

	// ErrUnmarshal is returned when bytes are rejected by the closed schema
	ErrUnmarshal = errors.New("canonical unmarshal failed")
)
