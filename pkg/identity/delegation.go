// Copyright 2025 Radicle Link
//
// Key delegations.
//
// A delegation set names who may sign an identity's revisions. Users
// delegate directly to device keys. Projects delegate indirectly: members
// are either raw keys or references to user identities, where a reference
// stands for the current direct delegations of that identity's verified
// head. A key qualifying through multiple paths is counted once.
//
// The quorum threshold of a set of size N is floor(N/2); reaching quorum
// means strictly more valid eligible signatures than the threshold.

package identity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jkachmar/radicle-link/pkg/keys"
	"github.com/jkachmar/radicle-link/pkg/uri"
)

// Delegations is the part of a document the verifier consults to decide
// signature eligibility and quorum.
type Delegations interface {
	// Eligible returns the subset of candidates authorized to sign under
	// this delegation set.
	Eligible(candidates []keys.PublicKey) (map[keys.PublicKey]struct{}, error)

	// QuorumThreshold returns floor(N/2) for the set size N.
	QuorumThreshold() int
}

// Direct is a set of device keys authorized to sign. Used for users.
type Direct map[keys.PublicKey]struct{}

// DirectFromKeys builds a direct delegation set.
func DirectFromKeys(ks ...keys.PublicKey) Direct {
	d := make(Direct, len(ks))
	for _, k := range ks {
		d[k] = struct{}{}
	}
	return d
}

// Eligible implements Delegations.
func (d Direct) Eligible(candidates []keys.PublicKey) (map[keys.PublicKey]struct{}, error) {
	out := make(map[keys.PublicKey]struct{})
	for _, k := range candidates {
		if _, ok := d[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

// QuorumThreshold implements Delegations.
func (d Direct) QuorumThreshold() int {
	return len(d) / 2
}

// MarshalJSON serializes the set as an array in codepoint order of the
// keys' textual encoding.
func (d Direct) MarshalJSON() ([]byte, error) {
	elems := make([]string, 0, len(d))
	for k := range d {
		elems = append(elems, k.String())
	}
	sort.Strings(elems)
	return json.Marshal(elems)
}

// UnmarshalJSON rejects empty sets and duplicate elements.
func (d *Direct) UnmarshalJSON(b []byte) error {
	var elems []string
	if err := json.Unmarshal(b, &elems); err != nil {
		return err
	}
	if len(elems) == 0 {
		return ErrEmptyDelegations
	}
	set := make(Direct, len(elems))
	for _, e := range elems {
		k, err := keys.ParsePublicKey(e)
		if err != nil {
			return err
		}
		if _, ok := set[k]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateDelegation, e)
		}
		set[k] = struct{}{}
	}
	*d = set
	return nil
}

// Indirect is a delegation set whose members are raw keys or references to
// user identities. Used for projects. References are stored by URN and
// must be resolved to verified user heads before eligibility can be
// evaluated.
type Indirect struct {
	keys map[keys.PublicKey]struct{}
	refs map[string]*User
}

// NewIndirect builds an indirect delegation set from raw keys and already
// resolved user identities. The set must be non-empty and must not
// reference the same identity twice.
func NewIndirect(ks []keys.PublicKey, users []*User) (Indirect, error) {
	ind := Indirect{
		keys: make(map[keys.PublicKey]struct{}, len(ks)),
		refs: make(map[string]*User, len(users)),
	}
	for _, k := range ks {
		ind.keys[k] = struct{}{}
	}
	for _, u := range users {
		urn := u.URN().String()
		if _, ok := ind.refs[urn]; ok {
			return Indirect{}, fmt.Errorf("%w: %s", ErrDuplicateDelegation, urn)
		}
		ind.refs[urn] = u
	}
	if len(ind.keys)+len(ind.refs) == 0 {
		return Indirect{}, ErrEmptyDelegations
	}
	return ind, nil
}

// URNs returns the referenced identities, sorted by textual form.
func (i Indirect) URNs() ([]uri.URN, error) {
	ss := make([]string, 0, len(i.refs))
	for s := range i.refs {
		ss = append(ss, s)
	}
	sort.Strings(ss)
	urns := make([]uri.URN, 0, len(ss))
	for _, s := range ss {
		urn, err := uri.ParseURN(s)
		if err != nil {
			return nil, err
		}
		urns = append(urns, urn)
	}
	return urns, nil
}

// Resolve attaches the verified head of a referenced identity. It is an
// error to resolve an identity the set does not reference.
func (i Indirect) Resolve(u *User) error {
	urn := u.URN().String()
	if _, ok := i.refs[urn]; !ok {
		return fmt.Errorf("%w: %s not referenced", ErrResolveFailed, urn)
	}
	i.refs[urn] = u
	return nil
}

// Eligible implements Delegations. A key is eligible if it appears as a
// raw key, or among the direct delegations of some referenced identity's
// verified head; set semantics count it once either way.
func (i Indirect) Eligible(candidates []keys.PublicKey) (map[keys.PublicKey]struct{}, error) {
	authorized := make(map[keys.PublicKey]struct{}, len(i.keys))
	for k := range i.keys {
		authorized[k] = struct{}{}
	}
	for urn, u := range i.refs {
		if u == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedDelegation, urn)
		}
		for k := range u.Doc.Delegations {
			authorized[k] = struct{}{}
		}
	}

	out := make(map[keys.PublicKey]struct{})
	for _, k := range candidates {
		if _, ok := authorized[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

// QuorumThreshold implements Delegations. N counts raw keys and identity
// references alike.
func (i Indirect) QuorumThreshold() int {
	return (len(i.keys) + len(i.refs)) / 2
}

// MarshalJSON serializes the set as an array in codepoint order of the
// elements' textual encoding, mixing key and URN forms.
func (i Indirect) MarshalJSON() ([]byte, error) {
	elems := make([]string, 0, len(i.keys)+len(i.refs))
	for k := range i.keys {
		elems = append(elems, k.String())
	}
	for urn := range i.refs {
		elems = append(elems, urn)
	}
	sort.Strings(elems)
	return json.Marshal(elems)
}

// UnmarshalJSON parses the wire form. Identity references come out
// unresolved; Resolve must be called for each URN before verification.
func (i *Indirect) UnmarshalJSON(b []byte) error {
	var elems []string
	if err := json.Unmarshal(b, &elems); err != nil {
		return err
	}
	if len(elems) == 0 {
		return ErrEmptyDelegations
	}
	ind := Indirect{
		keys: make(map[keys.PublicKey]struct{}),
		refs: make(map[string]*User),
	}
	for _, e := range elems {
		if strings.HasPrefix(e, "rad:") {
			urn, err := uri.ParseURN(e)
			if err != nil {
				return err
			}
			s := urn.String()
			if _, ok := ind.refs[s]; ok {
				return fmt.Errorf("%w: %s", ErrDuplicateDelegation, s)
			}
			ind.refs[s] = nil
			continue
		}
		k, err := keys.ParsePublicKey(e)
		if err != nil {
			return err
		}
		if _, ok := ind.keys[k]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateDelegation, e)
		}
		ind.keys[k] = struct{}{}
	}
	*i = ind
	return nil
}
