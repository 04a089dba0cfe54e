package license

import "strings"

// NormalizeKey folds a key into its comparison form: lowercase with
// separator characters removed, so "ABCD-1234" and "abcd1234" compare equal.
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if isSeparator(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func isSeparator(r rune) bool {
	switch r {
	case '-', '_', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
