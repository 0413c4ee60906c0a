// Copyright 2025 Radicle Link
//
// Identity document payloads.
//
// Two payload shapes exist: users carry a display name, projects carry a
// name plus optional description and default branch. Payload schemas are
// closed; unknown keys fail parsing. Strings are NFC-normalized on
// construction so the canonical bytes are stable.

package identity

import "github.com/jkachmar/radicle-link/pkg/canonical"

// DefaultBranch is assumed when a project does not name one.
const DefaultBranch = "master"

// UserPayload is the opaque per-kind data of a user identity.
type UserPayload struct {
	Name string `json:"name"`
}

// NewUserPayload builds a user payload with NFC-normalized fields.
func NewUserPayload(name string) UserPayload {
	return UserPayload{Name: canonical.NFC(name)}
}

// ProjectPayload is the opaque per-kind data of a project identity.
type ProjectPayload struct {
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	DefaultBranch *string `json:"default_branch,omitempty"`
}

// NewProjectPayload builds a project payload with NFC-normalized fields.
// description and defaultBranch may be empty, in which case they are
// omitted from the serialized form.
func NewProjectPayload(name, description, defaultBranch string) ProjectPayload {
	p := ProjectPayload{Name: canonical.NFC(name)}
	if description != "" {
		d := canonical.NFC(description)
		p.Description = &d
	}
	if defaultBranch != "" {
		b := canonical.NFC(defaultBranch)
		p.DefaultBranch = &b
	}
	return p
}

// Branch returns the project's default branch, or "master" when unset.
func (p ProjectPayload) Branch() string {
	if p.DefaultBranch == nil {
		return DefaultBranch
	}
	return *p.DefaultBranch
}
