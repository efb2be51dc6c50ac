// Package prompts holds the Hebrew prompt templates of the generation
// pipeline and the post-processing applied to model output.
//
// Any change to the template text must bump domain.PromptVersion so
// cached explanations are invalidated.
package prompts

import (
	"fmt"
	"strings"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// ExplanationInput is everything the per-chunk explanation prompt can
// include.
type ExplanationInput struct {
	// CorpusLabel is the Hebrew display label of the source corpus.
	CorpusLabel string

	// CurrentText is the chunk to explain.
	CurrentText string

	// PrevText and PrevExplanation, when present, give the model the
	// N-1 context of the preceding chunk.
	PrevText        string
	PrevExplanation string

	// CompanionText is the later commentary covering the same
	// paragraph; supplied only for the primary corpus.
	CompanionText string
}

// Explanation builds the per-chunk explanation prompt.
func Explanation(in ExplanationInput) string {
	var b strings.Builder

	b.WriteString("אתה תלמיד חכם המבאר מקורות הלכתיים לקהל לומדים.\n")
	b.WriteString("הנחיות מחייבות:\n")
	b.WriteString("1. כתוב בעברית בלבד.\n")
	b.WriteString("2. העתק כל מילה מלשון המקור כסדרה והדגש אותה כך: **מילה**.\n")
	b.WriteString("3. באר מונחים קשים בתוך רצף המשפט, בלי סוגריים.\n")
	b.WriteString("4. תרגם ארמית לעברית.\n")
	b.WriteString("5. פתח ראשי תיבות בתוך המשפט.\n")
	b.WriteString("6. כאשר מובאת דעה, ציין את שם בעל הדעה.\n")
	b.WriteString("7. במחלוקת, כתוב בסוף כיצד נפסק להלכה.\n")
	b.WriteString("8. אל תוסיף פתיחה או סיום מעבר לביאור עצמו.\n")

	if in.PrevText != "" && in.PrevExplanation != "" {
		b.WriteString("\nהקטע הקודם:\n")
		b.WriteString(in.PrevText)
		b.WriteString("\nביאור הקטע הקודם:\n")
		b.WriteString(in.PrevExplanation)
		b.WriteString("\n")
	}

	if in.CompanionText != "" {
		b.WriteString("\nדברי המשנה ברורה על הסעיף, לעיון בלבד:\n")
		b.WriteString(in.CompanionText)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nהמקור לביאור (%s):\n", in.CorpusLabel)
	b.WriteString(in.CurrentText)
	b.WriteString("\n\nביאור:")
	return b.String()
}

// ExplanationRepair builds the single repair round prompt for an
// explanation that failed validation.
func ExplanationRepair(source, badOutput string) string {
	var b strings.Builder
	b.WriteString("הביאור הבא אינו עומד בדרישות. כתוב אותו מחדש בעברית בלבד,\n")
	b.WriteString("תוך שמירה על סדר מילות המקור ועל ההדגשות **כך**.\n")
	b.WriteString("\nהמקור:\n")
	b.WriteString(source)
	b.WriteString("\n\nהביאור הדורש תיקון:\n")
	b.WriteString(badOutput)
	b.WriteString("\n\nביאור מתוקן:")
	return b.String()
}

// SummarySection is one corpus block of the summary input.
type SummarySection struct {
	Corpus domain.CorpusID
	Label  string
	Text   string
}

// Summary builds the consolidated summary prompt. Section structure
// depends on which corpora are present: majority-of-opinions when at
// least two corpora joined and the primary is present, a
// primary-decision section when the primary is present, a
// later-commentary-additions section when that corpus is present, and
// always a closing practical-ruling section.
func Summary(sections []SummarySection) string {
	hasPrimary := false
	hasLater := false
	for _, s := range sections {
		switch s.Corpus {
		case domain.CorpusShulchanArukh:
			hasPrimary = true
		case domain.CorpusMishnahBerurah:
			hasLater = true
		}
	}

	var b strings.Builder
	b.WriteString("סכם את הביאורים הבאים לכדי סיכום הלכתי אחד, בעברית בלבד.\n")
	b.WriteString("מבנה הסיכום:\n")
	if len(sections) >= 2 && hasPrimary {
		b.WriteString("- ריבוי הדעות בין המקורות.\n")
	}
	if hasPrimary {
		b.WriteString("- הכרעת השולחן ערוך.\n")
	}
	if hasLater {
		b.WriteString("- תוספות המשנה ברורה.\n")
	}
	b.WriteString("- למעשה: פסק הלכה מעשי.\n")
	b.WriteString("כללים: כל סעיף בשורת מקף נפרדת; הדגש שמות פוסקים **כך**;\n")
	b.WriteString("אל תפתח במילים כגון \"הנה\", \"להלן סיכום\" או כל פתיח אחר.\n\n")

	for _, s := range sections {
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", s.Label, s.Text)
	}
	b.WriteString("סיכום:")
	return b.String()
}

// SummaryRepair builds the repair prompt for a summary that failed
// validation, naming the validator errors.
func SummaryRepair(badOutput string, validationErrors []string) string {
	var b strings.Builder
	b.WriteString("הסיכום הבא נפסל בבדיקה. כתוב אותו מחדש ותקן את הליקויים:\n")
	for _, e := range validationErrors {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	b.WriteString("\nהסיכום הפסול:\n")
	b.WriteString(badOutput)
	b.WriteString("\n\nסיכום מתוקן:")
	return b.String()
}

// metaPreambles are the forbidden opening phrases stripped from model
// output. Comparison is against the trimmed start of a line.
var metaPreambles = []string{
	"הנה",
	"להלן",
	"סיכום מתוקן",
	"ביאור מתוקן",
	"ניסוח מחדש",
	"בוודאי",
	"בשמחה",
	"Here is",
	"Behold",
	"Corrected summary",
	"Rephrased",
}

// maxPreambleLines bounds how deep into the output preamble stripping
// looks: only the first 5 non-empty lines are examined.
const maxPreambleLines = 5

// StripMetaPreamble removes leading meta-chatter lines from model
// output. A line is dropped when its trimmed text begins with one of
// the blacklisted phrases; scanning stops after maxPreambleLines
// non-empty lines or at the first content line.
func StripMetaPreamble(s string) string {
	lines := strings.Split(s, "\n")
	examined := 0
	start := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		examined++
		if examined > maxPreambleLines {
			break
		}
		if hasMetaPrefix(trimmed) {
			start = i + 1
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines[start:], "\n"))
}

// StripForbiddenLines drops every line that begins with a blacklisted
// phrase, anywhere in the text.
func StripForbiddenLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if hasMetaPrefix(strings.TrimSpace(line)) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func hasMetaPrefix(trimmed string) bool {
	for _, p := range metaPreambles {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// HasBulletLine reports whether at least one line is a bullet
// ("- " or "• " prefixed), the shape the summary validator requires.
func HasBulletLine(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "• ") {
			return true
		}
	}
	return false
}
