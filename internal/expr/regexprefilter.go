package expr

import "strings"

// regexPreFilter is a cheap pre-check run before a `matches`/`not_matches`
// regex comparison, used to skip full regex evaluation for records that
// cannot possibly match. It extracts the literal runs of two or more
// characters from the pattern; if any of them is absent from the candidate
// value, the regex cannot match and evaluation is skipped.
//
// Soundness invariant: the pre-filter must never reject a record the full
// regex would have accepted. A literal run is only kept as required when
// nothing in the pattern can make it optional or non-literal, so the
// pre-filter degrades to "always run the regex" (skip, don't block)
// whenever the pattern contains alternation (`|`), an optional or bounded
// quantifier (`?`, `*`, `{`) or a character class (`[`), and an escaped
// letter or digit (`\d`, `\pL`, `\x41`, ...) ends a literal run rather
// than extending it.
type regexPreFilter struct {
	// requiredSubstrings are literal runs that must all be present
	// (case-sensitively) in the candidate for the regex to have a chance of
	// matching. Empty means the pre-filter could not extract anything useful
	// and the regex must always run.
	requiredSubstrings []string
}

// buildRegexPreFilter analyzes pattern and returns a filter that can quickly
// reject candidates before the real regex engine runs.
func buildRegexPreFilter(pattern string) regexPreFilter {
	if strings.ContainsAny(pattern, "|?*{[") {
		return regexPreFilter{}
	}

	var substrings []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			substrings = append(substrings, cur.String())
			cur.Reset()
		}
	}

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			// Escaped metacharacter: if it escapes a literal char (not an
			// escape sequence like \d, \pL or \x41), treat it as literal text.
			next := pattern[i+1]
			if isRegexClassShorthand(next) {
				flush()
			} else {
				cur.WriteByte(next)
			}
			i += 2
		case isRegexMeta(c):
			flush()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()

	// Only substrings of a meaningful length are useful for pre-filtering;
	// single characters reject almost nothing and aren't worth the cost.
	var required []string
	for _, s := range substrings {
		if len(s) >= 2 {
			required = append(required, s)
		}
	}
	return regexPreFilter{requiredSubstrings: required}
}

// MayMatch reports whether value could possibly match the original regex.
// False means the full regex is guaranteed to reject; true means the full
// regex must still be run to know for sure.
func (f regexPreFilter) MayMatch(value string) bool {
	if len(f.requiredSubstrings) == 0 {
		return true
	}
	for _, s := range f.requiredSubstrings {
		if !strings.Contains(value, s) {
			return false
		}
	}
	return true
}

func isRegexMeta(c byte) bool {
	switch c {
	case '.', '*', '+', '?', '(', ')', '[', ']', '{', '}', '^', '$':
		return true
	}
	return false
}

// isRegexClassShorthand reports whether `\c` is an escape sequence (a class
// such as \d or \pL, an assertion such as \b, or a character code such as
// \n or \x41) rather than an escaped literal; every ASCII letter and digit
// is treated as one.
func isRegexClassShorthand(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
