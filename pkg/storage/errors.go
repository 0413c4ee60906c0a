// Copyright 2025 Radicle Link
//
// Package storage provides sentinel errors for object store access.

package storage

import "errors"

// Sentinel errors for storage operations
var (
	// ErrNoSuchBlob is returned when a document blob is missing from a tree
	ErrNoSuchBlob = errors.New("blob not found")

	// ErrNoSuchBranch is returned when an advertised branch does not exist
	ErrNoSuchBranch = errors.New("branch not found")

	// ErrStoreIO is returned when the underlying object store fails
	ErrStoreIO = errors.New("object store failure")
)
