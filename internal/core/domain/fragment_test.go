package domain

import (
	"strings"
	"testing"
)

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash("ויאמר אלהים יהי אור")
	b := ContentHash("ויאמר אלהים יהי אור")
	if a != b {
		t.Errorf("same input must hash equal: %s vs %s", a, b)
	}
}

func TestContentHash_SingleCharChange(t *testing.T) {
	a := ContentHash("ויאמר אלהים יהי אור")
	b := ContentHash("ויאמר אלהים יהי אוד")
	if a == b {
		t.Error("single character change must produce a distinct hash")
	}
}

func TestCyrb53_SeedsDiffer(t *testing.T) {
	if Cyrb53("text", 0) == Cyrb53("text", 1) {
		t.Error("different seeds should produce different hashes")
	}
}

func TestCyrb53_Is53Bit(t *testing.T) {
	h := Cyrb53("some fairly long input to mix well", 0)
	if h >= 1<<53 {
		t.Errorf("hash exceeds 53 bits: %d", h)
	}
}

func TestChunkID_Format(t *testing.T) {
	id := ChunkID(CorpusShulchanArukh, "Shulchan Arukh, Orach Chayim 24:1", []int{0, 2}, 3)
	want := "shulchan_arukh_shulchan_arukh_orach_chayim_24_1_0_2_chunk_3"
	if id != want {
		t.Errorf("ChunkID = %q, want %q", id, want)
	}
}

func TestChunkID_RootPath(t *testing.T) {
	id := ChunkID(CorpusTur, "Tur, Orach Chayim 24", nil, 1)
	if !strings.Contains(id, "_root_chunk_1") {
		t.Errorf("empty path should render as root: %q", id)
	}
}

func TestNormalizeRefForID_Truncation(t *testing.T) {
	long := strings.Repeat("Abc ", 40)
	got := NormalizeRefForID(long)
	if len(got) > 64 {
		t.Errorf("normalized ref should be capped at 64 chars, got %d", len(got))
	}
	if strings.ToLower(got) != got {
		t.Error("normalized ref should be lowercase")
	}
}

func TestFragment_Paragraph(t *testing.T) {
	f := Fragment{Path: []int{2, 0}}
	p, ok := f.Paragraph()
	if !ok || p != 3 {
		t.Errorf("expected paragraph 3, got %d ok=%t", p, ok)
	}

	f = Fragment{}
	if _, ok := f.Paragraph(); ok {
		t.Error("empty path should not yield a paragraph")
	}
}
