package domain

import "strings"

// Rules are single-line filter syntax strings. The upstream engine treats
// them as an unordered set, but order in the backing store is preserved
// verbatim so a restored snapshot is byte-for-byte faithful.

// AllowRule returns the allow (unblock) rule for a domain, e.g.
// "@@||example.com^".
func AllowRule(n Name) string {
	return "@@||" + n.String() + "^"
}

// HasAllowRule reports whether the rule list already contains an allow
// rule equivalent to AllowRule(n). Surrounding whitespace on a stored
// line is ignored; the match is otherwise exact.
func HasAllowRule(rules []string, n Name) bool {
	want := AllowRule(n)
	for _, r := range rules {
		if strings.TrimSpace(r) == want {
			return true
		}
	}
	return false
}

// AppendAllowRule returns a new rule list with the allow rule for n
// appended. The input slice is not modified.
func AppendAllowRule(rules []string, n Name) []string {
	out := make([]string, 0, len(rules)+1)
	out = append(out, rules...)
	return append(out, AllowRule(n))
}
