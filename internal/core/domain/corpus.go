package domain

import (
	"fmt"
	"strings"
)

// CorpusID identifies one of the corpora the system can draw from.
type CorpusID string

const (
	// CorpusShulchanArukh is the primary summary-of-law work whose
	// paragraph structure drives alignment.
	CorpusShulchanArukh CorpusID = "shulchan_arukh"

	// CorpusTur is the predecessor code, aligned per chapter.
	CorpusTur CorpusID = "tur"

	// CorpusBeitYosef is the source compendium; its link graph is the
	// authoritative alignment source when available.
	CorpusBeitYosef CorpusID = "beit_yosef"

	// CorpusMishnahBerurah is the later commentary. Its paragraphs align
	// 1-to-1 with the primary and it is only used as companion text.
	CorpusMishnahBerurah CorpusID = "mishnah_berurah"
)

// CorpusInfo carries the provider-facing metadata for a corpus.
type CorpusInfo struct {
	// Label is the English display label, also the provider ref prefix.
	Label string

	// HebrewLabel is used in prompt section headers.
	HebrewLabel string

	// SectionQualified reports whether provider refs carry the section
	// name (e.g. "Tur, Orach Chayim 24").
	SectionQualified bool

	// HasParagraphs reports whether refs address paragraphs, not just
	// chapters.
	HasParagraphs bool

	// RestrictedTo is non-empty when the corpus only exists for one
	// section of the primary.
	RestrictedTo Section
}

var corpusInfos = map[CorpusID]CorpusInfo{
	CorpusShulchanArukh: {
		Label:            "Shulchan Arukh",
		HebrewLabel:      "שולחן ערוך",
		SectionQualified: true,
		HasParagraphs:    true,
	},
	CorpusTur: {
		Label:            "Tur",
		HebrewLabel:      "טור",
		SectionQualified: true,
		HasParagraphs:    false,
	},
	CorpusBeitYosef: {
		Label:            "Beit Yosef",
		HebrewLabel:      "בית יוסף",
		SectionQualified: true,
		HasParagraphs:    true,
	},
	CorpusMishnahBerurah: {
		Label:            "Mishnah Berurah",
		HebrewLabel:      "משנה ברורה",
		SectionQualified: false,
		HasParagraphs:    true,
		RestrictedTo:     SectionOrachChayim,
	},
}

// Info returns the metadata for the corpus. Unknown corpora return the
// zero value; check Valid first.
func (c CorpusID) Info() CorpusInfo {
	return corpusInfos[c]
}

// Valid reports whether the corpus is one of the known variants.
func (c CorpusID) Valid() bool {
	_, ok := corpusInfos[c]
	return ok
}

// AppliesTo reports whether the corpus covers the given section.
func (c CorpusID) AppliesTo(section Section) bool {
	info, ok := corpusInfos[c]
	if !ok {
		return false
	}
	return info.RestrictedTo == "" || info.RestrictedTo == section
}

// AllCorpora returns the known corpora in canonical order.
func AllCorpora() []CorpusID {
	return []CorpusID{CorpusShulchanArukh, CorpusTur, CorpusBeitYosef, CorpusMishnahBerurah}
}

// Section is one of the four top-level divisions of the legal corpus.
type Section string

const (
	SectionOrachChayim    Section = "Orach Chayim"
	SectionYorehDeah      Section = "Yoreh De'ah"
	SectionEvenHaEzer     Section = "Even HaEzer"
	SectionChoshenMishpat Section = "Choshen Mishpat"
)

// AllSections returns the four sections in traditional order.
func AllSections() []Section {
	return []Section{SectionOrachChayim, SectionYorehDeah, SectionEvenHaEzer, SectionChoshenMishpat}
}

// sectionAliases maps normalized transliteration variants to the
// canonical section. The corpus uses both "Chaim" and "Chayim" in
// English transliteration; both must resolve.
var sectionAliases = map[string]Section{
	"orach chayim":    SectionOrachChayim,
	"orach chaim":     SectionOrachChayim,
	"yoreh de'ah":     SectionYorehDeah,
	"yoreh deah":      SectionYorehDeah,
	"even haezer":     SectionEvenHaEzer,
	"even ha'ezer":    SectionEvenHaEzer,
	"choshen mishpat": SectionChoshenMishpat,
}

// ParseSection resolves a section name, accepting transliteration
// variants. Matching is case-insensitive and whitespace-collapsed.
func ParseSection(s string) (Section, error) {
	key := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
	if section, ok := sectionAliases[key]; ok {
		return section, nil
	}
	return "", fmt.Errorf("%w: unknown section %q", ErrInvalidInput, s)
}

// Slug returns the store-key form of the section: lowercase with
// non-alphanumeric runs collapsed to underscore ("orach_chayim").
func (s Section) Slug() string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(string(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Location addresses a point in the primary corpus: a section, a
// chapter (siman) and an optional paragraph (seif). Paragraph 0 means
// the whole chapter.
type Location struct {
	Section   Section
	Chapter   int
	Paragraph int
}

// Validate checks the location fields.
func (l Location) Validate() error {
	if _, err := ParseSection(string(l.Section)); err != nil {
		return err
	}
	if l.Chapter <= 0 {
		return fmt.Errorf("%w: chapter must be positive, got %d", ErrInvalidInput, l.Chapter)
	}
	if l.Paragraph < 0 {
		return fmt.Errorf("%w: paragraph must be non-negative, got %d", ErrInvalidInput, l.Paragraph)
	}
	return nil
}

func (l Location) String() string {
	if l.Paragraph > 0 {
		return fmt.Sprintf("%s %d:%d", l.Section, l.Chapter, l.Paragraph)
	}
	return fmt.Sprintf("%s %d", l.Section, l.Chapter)
}
