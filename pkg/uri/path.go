// Copyright 2025 Radicle Link
//
// URN path component.
//
// The path of a URN names a branch in the identity-rooted branch set, so it
// must be a valid git branch name as specified in git-check-ref-format(1).
// All violated rules are reported together, not just the first.

package uri

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Invalid characters and -sequences acc. to git-check-ref-format(1)
var refFormatRules = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`\.lock$`), "ends with `.lock`"},
	{regexp.MustCompile(`^\.`), "starts with a dot (`.`)"},
	{regexp.MustCompile(`\.\.`), "contains consecutive dots (`..`)"},
	{regexp.MustCompile(`[[:cntrl:]]`), "contains control characters"},
	{regexp.MustCompile(`[~^:?*\[\\]`), "contains reserved characters (`~`, `^`, `:`, `?`, `*`, `[`, `\\`)"},
	{regexp.MustCompile(`@\{`), "contains `@{`"},
	{regexp.MustCompile(`//`), "contains consecutive slashes (`//`)"},
	{regexp.MustCompile(`^@$`), "consists of only the `@` character"},
}

// Path is the path component of a URN. The zero value is the empty path.
type Path struct {
	s string
}

// ParsePath validates s against the ref format rules, trimming leading and
// trailing slashes first.
func ParsePath(s string) (Path, error) {
	trimmed, err := checkRefFormat(s)
	if err != nil {
		return Path{}, err
	}
	return Path{s: trimmed}, nil
}

// Join appends a segment, validating it with the same rules as ParsePath.
func (p Path) Join(segment string) (Path, error) {
	trimmed, err := checkRefFormat(segment)
	if err != nil {
		return Path{}, err
	}
	if p.s == "" {
		return Path{s: trimmed}, nil
	}
	if trimmed == "" {
		return p, nil
	}
	return Path{s: p.s + "/" + trimmed}, nil
}

// IsEmpty reports whether the path has no segments.
func (p Path) IsEmpty() bool {
	return p.s == ""
}

func (p Path) String() string {
	return p.s
}

// OrDefault returns the path, or the canonical identity branch `rad/id`
// when empty.
func (p Path) OrDefault() string {
	if p.s == "" {
		return "rad/id"
	}
	return p.s
}

func checkRefFormat(s string) (string, error) {
	s = strings.Trim(s, "/")

	var violations *multierror.Error
	for _, rule := range refFormatRules {
		if rule.re.MatchString(s) {
			violations = multierror.Append(violations, fmt.Errorf("%w: %s", ErrMalformedPath, rule.reason))
		}
	}
	if err := violations.ErrorOrNil(); err != nil {
		return "", err
	}
	return s, nil
}
