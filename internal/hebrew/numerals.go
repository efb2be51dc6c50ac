package hebrew

import (
	"fmt"
	"strconv"
	"strings"
)

// Vernacular (gematria) numeral conversion. Chapters and paragraphs
// arrive either as integers or as Hebrew letter numerals ("כד" = 24).
// The table covers 1..999, which exceeds the largest chapter count.

var onesLetters = []string{"", "א", "ב", "ג", "ד", "ה", "ו", "ז", "ח", "ט"}
var tensLetters = []string{"", "י", "כ", "ל", "מ", "נ", "ס", "ע", "פ", "צ"}
var hundredsLetters = []string{"", "ק", "ר", "ש", "ת", "תק", "תר", "תש", "תת", "תתק"}

var letterValues = map[rune]int{
	'א': 1, 'ב': 2, 'ג': 3, 'ד': 4, 'ה': 5, 'ו': 6, 'ז': 7, 'ח': 8, 'ט': 9,
	'י': 10, 'כ': 20, 'ל': 30, 'מ': 40, 'נ': 50, 'ס': 60, 'ע': 70, 'פ': 80, 'צ': 90,
	'ק': 100, 'ר': 200, 'ש': 300, 'ת': 400,
	// Final forms carry the same values as their medial counterparts.
	'ך': 20, 'ם': 40, 'ן': 50, 'ף': 80, 'ץ': 90,
}

// ToNumeral renders n (1..999) as a Hebrew numeral, with the
// traditional טו/טז substitutions for 15 and 16.
func ToNumeral(n int) (string, error) {
	if n <= 0 || n > 999 {
		return "", fmt.Errorf("numeral out of range: %d", n)
	}
	var b strings.Builder
	b.WriteString(hundredsLetters[n/100])
	rem := n % 100
	if rem == 15 {
		b.WriteString("טו")
	} else if rem == 16 {
		b.WriteString("טז")
	} else {
		b.WriteString(tensLetters[rem/10])
		b.WriteString(onesLetters[rem%10])
	}
	return b.String(), nil
}

// FromNumeral parses a Hebrew numeral back to its integer value.
// Punctuation (geresh, gershayim, quotes, dots) is ignored.
func FromNumeral(s string) (int, error) {
	total := 0
	seen := false
	for _, r := range s {
		switch r {
		case '׳', '״', '\'', '"', '.', ' ':
			continue
		}
		v, ok := letterValues[r]
		if !ok {
			return 0, fmt.Errorf("not a numeral: %q", s)
		}
		total += v
		seen = true
	}
	if !seen {
		return 0, fmt.Errorf("empty numeral: %q", s)
	}
	return total, nil
}

// ParseNumber accepts either a decimal integer or a Hebrew numeral.
func ParseNumber(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	return FromNumeral(s)
}
