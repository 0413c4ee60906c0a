// Copyright 2025 Radicle Link
//
// Attestation envelope encoding.
//
// Signatures travel in the commit message as trailers, one per line:
//
//	x-rad-signature <key> <sig>
//
// Readers skip unknown trailers; the emit order follows the textual key
// order, which is irrelevant for correctness since the verifier
// recomputes everything.

package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jkachmar/radicle-link/pkg/identity"
	"github.com/jkachmar/radicle-link/pkg/keys"
	"github.com/jkachmar/radicle-link/pkg/uri"
)

const signatureTrailer = "x-rad-signature"

// encodeMessage renders the commit message of an attestation: the URN as
// the subject line, then the signature trailers.
func encodeMessage(urn uri.URN, sigs keys.Signatures) string {
	lines := make([]string, 0, len(sigs))
	for k, sig := range sigs {
		lines = append(lines, fmt.Sprintf("%s %s %s", signatureTrailer, k, sig))
	}
	sort.Strings(lines)

	var b strings.Builder
	b.WriteString(urn.String())
	b.WriteString("\n\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// parseSignatures extracts the signature trailers from a commit message.
// An attestation without any signature is not a valid envelope.
func parseSignatures(message string) (keys.Signatures, error) {
	sigs := make(keys.Signatures)
	for _, line := range strings.Split(message, "\n") {
		rest, ok := strings.CutPrefix(line, signatureTrailer+" ")
		if !ok {
			continue
		}
		keyStr, sigStr, ok := strings.Cut(rest, " ")
		if !ok {
			return nil, fmt.Errorf("%w: truncated signature trailer", identity.ErrMalformedEnvelope)
		}
		k, err := keys.ParsePublicKey(keyStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", identity.ErrMalformedEnvelope, err)
		}
		sig, err := keys.ParseSignature(strings.TrimSpace(sigStr))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", identity.ErrMalformedEnvelope, err)
		}
		sigs[k] = sig
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: no signatures", identity.ErrMalformedEnvelope)
	}
	return sigs, nil
}
