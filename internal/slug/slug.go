// Package slug normalizes free-form identifiers into the lowercase
// tokens used for account tags and categories.
package slug

import (
	"regexp"
	"strings"
)

const maxLen = 40

var reSlug = regexp.MustCompile(`^[a-z0-9_-]{2,40}$`)

// IsSlug reports whether s is already a valid slug token.
func IsSlug(s string) bool { return reSlug.MatchString(s) }

// Slugify lowercases s, keeps [a-z0-9_-], maps runs of other characters
// to a single hyphen, truncates to the maximum length and trims edge
// separators. "CUST001" becomes "cust001", "Köln HQ" becomes "k-ln-hq".
func Slugify(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	lastSep := false
	for _, r := range strings.ToLower(s) {
		keep := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		switch {
		case keep:
			b.WriteRune(r)
			lastSep = r == '-' || r == '_'
		case lastSep:
			// collapse runs
		default:
			b.WriteByte('-')
			lastSep = true
		}
		if b.Len() >= maxLen {
			break
		}
	}
	return strings.Trim(b.String(), "-_")
}
