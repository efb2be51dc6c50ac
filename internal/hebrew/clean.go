// Package hebrew provides the text hygiene the pipeline applies to
// upstream Hebrew passages: markup stripping, cantillation removal,
// similarity normalization, word counting and gematria numerals.
package hebrew

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	shortParenPattern = regexp.MustCompile(`\([^()]{1,5}\)`)
	spaceRunPattern   = regexp.MustCompile(`\s+`)
)

// isCantillation reports whether r falls in the Hebrew accent and
// point block U+0591..U+05C7.
func isCantillation(r rune) bool {
	return r >= 0x0591 && r <= 0x05C7
}

// isHebrewLetter reports whether r is a Hebrew letter (U+05D0..U+05EA).
func isHebrewLetter(r rune) bool {
	return r >= 0x05D0 && r <= 0x05EA
}

// isHebrew reports whether r falls anywhere in the Hebrew block
// U+0590..U+05FF.
func isHebrew(r rune) bool {
	return r >= 0x0590 && r <= 0x05FF
}

// StripTags removes HTML/XML markup.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// StripCantillation removes cantillation marks and points.
func StripCantillation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isCantillation(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Clean applies the leaf cleanup: strip markup, strip cantillation,
// remove 1-5 character parenthesized inserts, collapse whitespace and
// trim.
func Clean(s string) string {
	s = StripTags(s)
	s = StripCantillation(s)
	s = shortParenPattern.ReplaceAllString(s, "")
	s = spaceRunPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeForSimilarity prepares text for token/bigram extraction:
// markup and cantillation stripped, quote-like marks (including
// geresh/gershayim) and any rune that is not a Hebrew letter, Latin
// letter or digit replaced with a space, whitespace runs collapsed.
func NormalizeForSimilarity(s string) string {
	s = StripTags(s)
	s = StripCantillation(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isHebrewLetter(r),
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(spaceRunPattern.ReplaceAllString(b.String(), " "))
}

// Ratio returns the share of codepoints in the Hebrew block over the
// total codepoint count. Empty input scores 0.
func Ratio(s string) float64 {
	total := 0
	hebrew := 0
	for _, r := range s {
		total++
		if isHebrew(r) {
			hebrew++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hebrew) / float64(total)
}

// CountWords counts whitespace-delimited tokens that contain at least
// one alphanumeric or Hebrew codepoint.
func CountWords(s string) int {
	count := 0
	for _, tok := range strings.Fields(s) {
		if isCountable(tok) {
			count++
		}
	}
	return count
}

// Words returns the countable tokens of s in order.
func Words(s string) []string {
	var out []string
	for _, tok := range strings.Fields(s) {
		if isCountable(tok) {
			out = append(out, tok)
		}
	}
	return out
}

func isCountable(tok string) bool {
	for _, r := range tok {
		if isHebrew(r) ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}

// NormalizeRefPrefix prepares a provider ref for prefix matching:
// lowercase, whitespace collapsed, and the "chayim"/"chaim"
// transliteration variants unified.
func NormalizeRefPrefix(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = spaceRunPattern.ReplaceAllString(s, " ")
	return strings.ReplaceAll(s, "chayim", "chaim")
}
