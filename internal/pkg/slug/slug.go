// Package slug validates and derives URL-safe content slugs.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest slug accepted.
const MaxLength = 200

var (
	validPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	separators   = regexp.MustCompile(`[^a-z0-9]+`)
)

// IsValid reports whether s is a lowercase, hyphen-separated slug.
func IsValid(s string) bool {
	return len(s) > 0 && len(s) <= MaxLength && validPattern.MatchString(s)
}

// FromTitle derives a slug from a human title.
// Accents are stripped, anything else non-alphanumeric becomes a hyphen.
func FromTitle(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	s := separators.ReplaceAllString(strings.ToLower(folded), "-")
	s = strings.Trim(s, "-")

	if len(s) > MaxLength {
		s = strings.TrimRight(s[:MaxLength], "-")
	}
	return s
}
