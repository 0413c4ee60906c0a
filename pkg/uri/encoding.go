// Copyright 2025 Radicle Link
//
// Percent-encoding of URN path components.
//
// Uses the WHATWG path percent-encode set: controls, space, `"`, `<`, `>`,
// backtick, `#`, `?`, `{`, `}`. The stdlib escapers cover different sets,
// so the encoder is spelled out here; decoding reuses net/url.

package uri

import (
	"fmt"
	"net/url"
	"strings"
)

const upperhex = "0123456789ABCDEF"

func shouldPercentEncode(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case ' ', '"', '<', '>', '`', '#', '?', '{', '}':
		return true
	}
	return false
}

func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldPercentEncode(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func percentDecode(s string) (string, error) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPath, err)
	}
	return decoded, nil
}
