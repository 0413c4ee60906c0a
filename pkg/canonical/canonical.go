// Copyright 2025 Radicle Link
//
// Canonical JSON codec.
//
// The bytes signed by each device and hashed to form a revision must be
// reproducible across implementations. Serialization is JSON restricted to
// its RFC 8785 canonical subset: object keys in codepoint order, no
// insignificant whitespace, integers only, no duplicate keys. Absent
// optional fields are omitted rather than serialized as null, and strings
// are normalized to NFC before they enter a document.
//
// Reading is strict: schemas are closed, unknown fields reject the input.

package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"golang.org/x/text/unicode/norm"
)

// Marshal serializes v and transforms the result into its canonical byte
// form. Two calls with equal v produce byte-identical output.
func Marshal(v interface{}) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarshal, err)
	}
	canon, err := jsoncanonicalizer.Transform(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarshal, err)
	}
	return canon, nil
}

// Unmarshal parses data into v, rejecting unknown fields and trailing
// garbage.
func Unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnmarshal, err)
	}
	// A document is a single JSON value; anything after it is malformed.
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrUnmarshal)
	}
	return nil
}

// NFC normalizes a string to Unicode Normalization Form C. All strings
// stored in identity documents pass through here on construction.
func NFC(s string) string {
	return norm.NFC.String(s)
}
