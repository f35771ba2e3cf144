// Package wildcard implements the glob-style pattern matcher used by SCAN's
// MATCH clause: "?" matches any single byte, "*" matches any run of bytes,
// ";" separates alternative sub-patterns, "." is literal, and every other
// byte is literal. A pattern is anchored at both ends.
//
// This is a direct port of the original implementation's approach (build a
// regular expression from the glob, anchored at both ends) rather than a
// hand-rolled glob engine, since that is the simplest faithful translation
// of the semantics and the standard library's regexp package already
// provides it.
package wildcard

import (
	"regexp"
	"strings"
)

// Matcher compiles a glob pattern once and answers IsMatch/IsWild queries
// against it repeatedly, which is how SCAN uses it: compile once per SCAN
// call, then test every candidate key.
type Matcher struct {
	pattern string
	wild    bool
	re      *regexp.Regexp
}

// Compile builds a Matcher for pattern. It never fails: any byte sequence is
// a valid pattern under these rules, since unrecognized bytes are literal.
func Compile(pattern string) *Matcher {
	m := &Matcher{pattern: pattern}

	var expr strings.Builder
	expr.WriteString("^(?:")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '?':
			expr.WriteByte('.')
			m.wild = true
		case '*':
			expr.WriteString(".*")
			m.wild = true
		case '.':
			expr.WriteString(`\.`)
		case ';':
			expr.WriteByte('|')
			m.wild = true
		default:
			if isRegexMeta(c) {
				expr.WriteByte('\\')
			}
			expr.WriteByte(c)
		}
	}
	expr.WriteString(")$")

	if m.wild {
		// The pattern is built from literal-escaped bytes plus the three
		// glob constructs above, so it always compiles.
		m.re = regexp.MustCompile(expr.String())
	}
	return m
}

// isRegexMeta reports whether b needs escaping to be treated as a literal
// inside the regular expression built by Compile. "." is handled by its own
// case in Compile (it's a glob literal with special regex meaning); these
// are the other regex metacharacters a literal pattern byte might contain.
func isRegexMeta(b byte) bool {
	switch b {
	case '\\', '+', '(', ')', '[', ']', '{', '}', '^', '$', '|':
		return true
	}
	return false
}

// IsWild reports whether the pattern contains any of "?", "*", or ";" — if
// not, matching degenerates to a byte-exact compare.
func (m *Matcher) IsWild() bool {
	return m.wild
}

// IsMatch reports whether s matches the compiled pattern.
func (m *Matcher) IsMatch(s string) bool {
	if !m.wild {
		return s == m.pattern
	}
	return m.re.MatchString(s)
}
