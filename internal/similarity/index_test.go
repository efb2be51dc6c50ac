package similarity

import (
	"testing"
)

func TestScore_Identical(t *testing.T) {
	q := NewProfile("ראובן שמעון לוי יהודה")
	c := NewProfile("ראובן שמעון לוי יהודה")
	if got := Score(q, c); got != 1.0 {
		t.Errorf("identical texts should score 1.0, got %f", got)
	}
}

func TestScore_Disjoint(t *testing.T) {
	q := NewProfile("ראובן שמעון")
	c := NewProfile("זבולון יששכר")
	if got := Score(q, c); got != 0.0 {
		t.Errorf("disjoint texts should score 0.0, got %f", got)
	}
}

func TestScore_EmptyQuery(t *testing.T) {
	q := NewProfile("")
	c := NewProfile("ראובן שמעון")
	if got := Score(q, c); got != 0.0 {
		t.Errorf("empty query should score 0.0, got %f", got)
	}
}

func TestScore_Monotonicity(t *testing.T) {
	// Candidate A's tokens and bigrams are a superset of B's with
	// respect to the query, so score(A) >= score(B).
	q := NewProfile("ראובן שמעון לוי יהודה דן נפתלי")
	b := NewProfile("ראובן שמעון לוי")
	a := NewProfile("ראובן שמעון לוי יהודה")
	if Score(q, a) < Score(q, b) {
		t.Errorf("superset candidate must not score lower: a=%f b=%f", Score(q, a), Score(q, b))
	}
}

func TestProfile_ShortTokensDropped(t *testing.T) {
	p := NewProfile("א ראובן ב שמעון")
	if _, ok := p.Tokens["א"]; ok {
		t.Error("single-rune tokens should be dropped")
	}
	if len(p.Tokens) != 2 {
		t.Errorf("expected 2 tokens, got %d", len(p.Tokens))
	}
}

func TestSelectBest_BelowFloor(t *testing.T) {
	ix := NewIndex(
		[]string{"ref-1", "ref-2"},
		[]string{"זבולון יששכר גד אשר", "בנימין יוסף מנשה אפרים"},
	)
	sel := ix.SelectBest("ראובן שמעון לוי יהודה דן נפתלי עשרים שלושים ארבעים חמישים שישים שבעים")
	if len(sel.Refs) != 0 {
		t.Errorf("no candidate above the floor, expected empty selection, got %v", sel.Refs)
	}
}

func TestSelectBest_KeepsUpstreamOrder(t *testing.T) {
	// ref-2 scores highest but ref-1 also passes the relative
	// threshold; the final list is re-sorted to upstream order.
	ix := NewIndex(
		[]string{"ref-1", "ref-2"},
		[]string{"ראובן שמעון לוי", "ראובן שמעון לוי יהודה"},
	)
	sel := ix.SelectBest("ראובן שמעון לוי יהודה")
	if len(sel.Refs) != 2 {
		t.Fatalf("expected both refs selected, got %v", sel.Refs)
	}
	if sel.Refs[0] != "ref-1" || sel.Refs[1] != "ref-2" {
		t.Errorf("selection must preserve upstream order, got %v", sel.Refs)
	}
	if sel.Best <= 0.9 {
		t.Errorf("expected near-perfect best score, got %f", sel.Best)
	}
}

func TestSelectBest_DeduplicatesRefs(t *testing.T) {
	ix := NewIndex(
		[]string{"ref-1", "ref-1"},
		[]string{"ראובן שמעון לוי יהודה", "ראובן שמעון לוי יהודה"},
	)
	sel := ix.SelectBest("ראובן שמעון לוי יהודה")
	if len(sel.Refs) != 1 {
		t.Errorf("duplicate refs must collapse, got %v", sel.Refs)
	}
}

func TestSelectBest_EmptyIndex(t *testing.T) {
	ix := NewIndex(nil, nil)
	sel := ix.SelectBest("ראובן")
	if len(sel.Refs) != 0 || sel.Best != 0 {
		t.Errorf("empty index should yield empty selection")
	}
}
