package services

import (
	"context"
	"testing"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven/mocks"
)

func TestBuildRef(t *testing.T) {
	r := NewRefResolver(mocks.NewMockTextProvider(), nil)

	tests := []struct {
		corpus domain.CorpusID
		loc    domain.Location
		want   string
	}{
		{domain.CorpusShulchanArukh,
			domain.Location{Section: domain.SectionOrachChayim, Chapter: 24, Paragraph: 1},
			"Shulchan Arukh, Orach Chayim 24:1"},
		{domain.CorpusShulchanArukh,
			domain.Location{Section: domain.SectionOrachChayim, Chapter: 24},
			"Shulchan Arukh, Orach Chayim 24"},
		// The predecessor code is chapter-addressed: the paragraph is
		// dropped.
		{domain.CorpusTur,
			domain.Location{Section: domain.SectionOrachChayim, Chapter: 24, Paragraph: 3},
			"Tur, Orach Chayim 24"},
		{domain.CorpusBeitYosef,
			domain.Location{Section: domain.SectionYorehDeah, Chapter: 87, Paragraph: 2},
			"Beit Yosef, Yoreh De'ah 87:2"},
		// The later commentary is not section-qualified.
		{domain.CorpusMishnahBerurah,
			domain.Location{Section: domain.SectionOrachChayim, Chapter: 24, Paragraph: 1},
			"Mishnah Berurah 24:1"},
	}
	for _, tt := range tests {
		if got := r.BuildRef(tt.corpus, tt.loc); got != tt.want {
			t.Errorf("BuildRef(%s, %v) = %q, want %q", tt.corpus, tt.loc, got, tt.want)
		}
	}
}

func TestBuildRefFromStrings_Vernacular(t *testing.T) {
	r := NewRefResolver(mocks.NewMockTextProvider(), nil)
	got, err := r.BuildRefFromStrings(domain.CorpusShulchanArukh, domain.SectionOrachChayim, "כד", "א")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Shulchan Arukh, Orach Chayim 24:1" {
		t.Errorf("vernacular numerals should convert, got %q", got)
	}

	if _, err := r.BuildRefFromStrings(domain.CorpusTur, domain.SectionOrachChayim, "abc", ""); err == nil {
		t.Error("expected error for a non-numeral chapter")
	}
}

func TestFetchFragments_FlattensNestedArrays(t *testing.T) {
	provider := mocks.NewMockTextProvider()
	provider.SetText("Shulchan Arukh, Orach Chayim 24", &driven.TextPayload{
		Ref: "Shulchan Arukh, Orach Chayim 24",
		He: []any{
			"סעיף ראשון בעברית",
			[]any{"תת סעיף אחד", "תת סעיף שתיים"},
		},
	})
	r := NewRefResolver(provider, nil)

	providerRef, fragments, rawHe, err := r.FetchFragments(context.Background(), "Shulchan Arukh, Orach Chayim 24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if providerRef != "Shulchan Arukh, Orach Chayim 24" {
		t.Errorf("unexpected provider ref %q", providerRef)
	}
	if len(fragments) != 3 || len(rawHe) != 3 {
		t.Fatalf("expected 3 leaves, got %d fragments, %d raw", len(fragments), len(rawHe))
	}

	if got := fragments[0].Path; len(got) != 1 || got[0] != 0 {
		t.Errorf("first leaf path = %v, want [0]", got)
	}
	if got := fragments[1].Path; len(got) != 2 || got[0] != 1 || got[1] != 0 {
		t.Errorf("second leaf path = %v, want [1 0]", got)
	}
	if fragments[1].Ref != "Shulchan Arukh, Orach Chayim 24:2:1" {
		t.Errorf("leaf ref = %q, want colon-addressed 1-based indices", fragments[1].Ref)
	}
}

func TestFetchFragments_CleansAndSkipsEmptyLeaves(t *testing.T) {
	provider := mocks.NewMockTextProvider()
	provider.SetText("ref", &driven.TextPayload{
		Ref: "Canonical Ref 1",
		He:  []any{"<b>שלום</b> (א) עולם", "   ", "<i></i>"},
	})
	r := NewRefResolver(provider, nil)

	_, fragments, _, err := r.FetchFragments(context.Background(), "ref")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fragments) != 1 {
		t.Fatalf("empty-after-clean leaves must be skipped, got %d", len(fragments))
	}
	if fragments[0].Text != "שלום עולם" {
		t.Errorf("leaf not cleaned: %q", fragments[0].Text)
	}
}

func TestFetchFragments_SchemaDrift(t *testing.T) {
	provider := mocks.NewMockTextProvider()
	provider.SetText("ref", &driven.TextPayload{Ref: ""})
	r := NewRefResolver(provider, nil)

	if _, _, _, err := r.FetchFragments(context.Background(), "ref"); err == nil {
		t.Error("missing ref/he must error")
	}
}

func TestFetchLinkedRefs_FiltersByCorpusAndSection(t *testing.T) {
	provider := mocks.NewMockTextProvider()
	provider.SetLinks("Shulchan Arukh, Orach Chayim 24:1", []driven.LinkEntry{
		{Refs: []string{"Tur, Orach Chaim 24"}}, // transliteration variant
		{ExpandedRefs: []string{"Beit Yosef, Orach Chayim 24:1"}},
		{AnchorRef: "Beit Yosef, Orach Chayim 24:1"}, // duplicate via another field
		{SourceRef: "Tur, Yoreh De'ah 87"},           // wrong section
		{Ref: "Mishnah Berurah 24:1"},                // not a secondary corpus
	})
	r := NewRefResolver(provider, nil)

	turRefs, byRefs, err := r.FetchLinkedRefs(context.Background(), "Shulchan Arukh, Orach Chayim 24:1", domain.SectionOrachChayim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turRefs) != 1 || turRefs[0] != "Tur, Orach Chaim 24" {
		t.Errorf("unexpected tur refs: %v", turRefs)
	}
	if len(byRefs) != 1 || byRefs[0] != "Beit Yosef, Orach Chayim 24:1" {
		t.Errorf("duplicates must collapse, got: %v", byRefs)
	}
}
