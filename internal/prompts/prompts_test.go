package prompts

import (
	"strings"
	"testing"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

func TestExplanation_IncludesSource(t *testing.T) {
	p := Explanation(ExplanationInput{
		CorpusLabel: "שולחן ערוך",
		CurrentText: "טקסט המקור לביאור",
	})
	if !strings.Contains(p, "טקסט המקור לביאור") {
		t.Error("prompt must include the source text")
	}
	if !strings.Contains(p, "שולחן ערוך") {
		t.Error("prompt must name the corpus")
	}
	if !strings.HasSuffix(p, "ביאור:") {
		t.Error("prompt must end with the explanation marker")
	}
}

func TestExplanation_PrevContextOnlyWhenPresent(t *testing.T) {
	without := Explanation(ExplanationInput{CorpusLabel: "טור", CurrentText: "מקור"})
	if strings.Contains(without, "הקטע הקודם") {
		t.Error("no previous-segment block expected without context")
	}

	with := Explanation(ExplanationInput{
		CorpusLabel:     "טור",
		CurrentText:     "מקור",
		PrevText:        "קטע קודם",
		PrevExplanation: "ביאור קודם",
	})
	if !strings.Contains(with, "קטע קודם") || !strings.Contains(with, "ביאור קודם") {
		t.Error("previous-segment block missing")
	}
}

func TestExplanation_CompanionOnlyWhenPresent(t *testing.T) {
	without := Explanation(ExplanationInput{CorpusLabel: "שולחן ערוך", CurrentText: "מקור"})
	if strings.Contains(without, "משנה ברורה") {
		t.Error("no companion block expected without companion text")
	}

	with := Explanation(ExplanationInput{
		CorpusLabel:   "שולחן ערוך",
		CurrentText:   "מקור",
		CompanionText: "דברי המפרש",
	})
	if !strings.Contains(with, "דברי המפרש") {
		t.Error("companion block missing")
	}
}

func TestSummary_SectionStructure(t *testing.T) {
	sections := []SummarySection{
		{Corpus: domain.CorpusTur, Label: "טור", Text: "ביאור הטור"},
		{Corpus: domain.CorpusShulchanArukh, Label: "שולחן ערוך", Text: "ביאור השולחן ערוך"},
		{Corpus: domain.CorpusMishnahBerurah, Label: "משנה ברורה", Text: "ביאור המשנה ברורה"},
	}
	p := Summary(sections)
	if !strings.Contains(p, "ריבוי הדעות") {
		t.Error("multiple corpora with the primary require a majority-of-opinions section")
	}
	if !strings.Contains(p, "הכרעת השולחן ערוך") {
		t.Error("primary present requires a primary-decision section")
	}
	if !strings.Contains(p, "תוספות המשנה ברורה") {
		t.Error("later commentary present requires an additions section")
	}
	if !strings.Contains(p, "למעשה") {
		t.Error("closing practical-ruling section is always present")
	}
	for _, s := range sections {
		if !strings.Contains(p, s.Text) {
			t.Errorf("section text %q missing from prompt", s.Text)
		}
	}
}

func TestSummary_NoPrimarySkipsPrimarySections(t *testing.T) {
	p := Summary([]SummarySection{
		{Corpus: domain.CorpusTur, Label: "טור", Text: "ביאור"},
	})
	if strings.Contains(p, "ריבוי הדעות") || strings.Contains(p, "הכרעת השולחן ערוך") {
		t.Error("primary-dependent sections must be absent without the primary")
	}
}

func TestStripMetaPreamble(t *testing.T) {
	in := "הנה הסיכום שביקשת:\n- סעיף ראשון\n- סעיף שני"
	got := StripMetaPreamble(in)
	if strings.Contains(got, "הנה") {
		t.Errorf("preamble should be stripped, got %q", got)
	}
	if !strings.Contains(got, "סעיף ראשון") {
		t.Error("content lines must survive")
	}
}

func TestStripMetaPreamble_ContentFirst(t *testing.T) {
	in := "- סעיף ראשון\n- סעיף שני"
	if got := StripMetaPreamble(in); got != in {
		t.Errorf("content-first output must be untouched, got %q", got)
	}
}

func TestStripMetaPreamble_OnlyFirstLines(t *testing.T) {
	lines := []string{"- א", "- ב", "- ג", "- ד", "- ה", "- ו", "הנה שורה מאוחרת"}
	in := strings.Join(lines, "\n")
	got := StripMetaPreamble(in)
	if !strings.Contains(got, "הנה שורה מאוחרת") {
		t.Error("lines past the preamble window must survive StripMetaPreamble")
	}
}

func TestStripForbiddenLines(t *testing.T) {
	in := "- סעיף\nלהלן סיכום נוסף\n- עוד סעיף"
	got := StripForbiddenLines(in)
	if strings.Contains(got, "להלן") {
		t.Error("forbidden-phrase lines must be dropped anywhere")
	}
	if !strings.Contains(got, "עוד סעיף") {
		t.Error("regular lines must survive")
	}
}

func TestHasBulletLine(t *testing.T) {
	if !HasBulletLine("פתיח\n- נקודה") {
		t.Error("dash bullet should be recognized")
	}
	if !HasBulletLine("• נקודה") {
		t.Error("bullet dot should be recognized")
	}
	if HasBulletLine("אין כאן תבליטים") {
		t.Error("no bullet expected")
	}
}

func TestSummaryRepair_NamesErrors(t *testing.T) {
	p := SummaryRepair("פלט פסול", []string{"no bullet lines"})
	if !strings.Contains(p, "no bullet lines") || !strings.Contains(p, "פלט פסול") {
		t.Error("repair prompt must carry the validator errors and the bad output")
	}
}
