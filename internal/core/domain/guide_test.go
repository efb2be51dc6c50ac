package domain

import (
	"testing"
	"time"
)

func TestGuideRequest_Fingerprint_Stable(t *testing.T) {
	a := GuideRequest{Section: SectionOrachChayim, Chapter: 24, Paragraph: 1,
		Corpora: []CorpusID{CorpusShulchanArukh, CorpusTur}}
	b := GuideRequest{Section: SectionOrachChayim, Chapter: 24, Paragraph: 1,
		Corpora: []CorpusID{CorpusTur, CorpusShulchanArukh}}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint must not depend on corpora order")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("expected sha256 hex, got %d chars", len(a.Fingerprint()))
	}
}

func TestGuideRequest_Fingerprint_Distinct(t *testing.T) {
	base := GuideRequest{Section: SectionOrachChayim, Chapter: 24, Paragraph: 1,
		Corpora: []CorpusID{CorpusShulchanArukh}}

	other := base
	other.Paragraph = 2
	if base.Fingerprint() == other.Fingerprint() {
		t.Error("different paragraph must change the fingerprint")
	}

	other = base
	other.Corpora = []CorpusID{CorpusShulchanArukh, CorpusTur}
	if base.Fingerprint() == other.Fingerprint() {
		t.Error("different corpora must change the fingerprint")
	}
}

func TestGuideRequest_SortedCorpora_Dedupes(t *testing.T) {
	r := GuideRequest{Corpora: []CorpusID{CorpusTur, CorpusShulchanArukh, CorpusTur}}
	got := r.SortedCorpora()
	if len(got) != 2 {
		t.Fatalf("expected 2 corpora, got %d", len(got))
	}
	if got[0] != CorpusShulchanArukh || got[1] != CorpusTur {
		t.Errorf("expected sorted order, got %v", got)
	}
}

func TestGuideRequest_Validate(t *testing.T) {
	r := GuideRequest{Section: SectionOrachChayim, Chapter: 24, Paragraph: 1,
		Corpora: []CorpusID{CorpusShulchanArukh}}
	if err := r.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	r.Corpora = nil
	if err := r.Validate(); err == nil {
		t.Error("empty corpora should be rejected")
	}

	r.Corpora = []CorpusID{"zohar"}
	if err := r.Validate(); err == nil {
		t.Error("unknown corpus should be rejected")
	}
}

func TestCanonicalGuideRecord_Stale(t *testing.T) {
	now := time.Now()
	rec := &CanonicalGuideRecord{Status: GuideStatusProcessing, UpdatedAt: now.Add(-11 * time.Minute)}
	if !rec.Stale(now, 10*time.Minute) {
		t.Error("11 minutes of inactivity should be stale at a 10 minute threshold")
	}
	rec.UpdatedAt = now.Add(-time.Minute)
	if rec.Stale(now, 10*time.Minute) {
		t.Error("fresh processing record should not be stale")
	}
	rec.Status = GuideStatusReady
	rec.UpdatedAt = now.Add(-time.Hour)
	if rec.Stale(now, 10*time.Minute) {
		t.Error("ready records are never stale")
	}
}

func TestLegacyExplanationKey_Deterministic(t *testing.T) {
	a := LegacyExplanationKey(CorpusTur, "Tur, Orach Chayim 24", 1, "hash", "v3.4-rabbanut", "model-a")
	b := LegacyExplanationKey(CorpusTur, "Tur, Orach Chayim 24", 1, "hash", "v3.4-rabbanut", "model-a")
	if a != b {
		t.Error("legacy key must be deterministic")
	}
	c := LegacyExplanationKey(CorpusTur, "Tur, Orach Chayim 24", 1, "hash", "v3.4-rabbanut", "model-b")
	if a == c {
		t.Error("different model must change the legacy key")
	}
}

func TestRoundConfidence(t *testing.T) {
	if got := RoundConfidence(0.12345); got != 0.123 {
		t.Errorf("expected 0.123, got %f", got)
	}
	if got := RoundConfidence(0.9996); got != 1.0 {
		t.Errorf("expected 1.0, got %f", got)
	}
}
