// Package chunker splits fragments into word-bounded chunks while
// preserving provenance and sentence boundaries.
package chunker

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/hebrew"
)

// Profile bounds the word count of emitted chunks. The last chunk of a
// fragment may fall under MinWords.
type Profile struct {
	MaxWords int
	MinWords int
}

// ExplanationProfile is used for per-fragment explanation chunks.
var ExplanationProfile = Profile{MaxWords: 180, MinWords: 120}

// AlignmentProfileFor adapts the profile to the number of upstream
// fragments in the chapter: fewer fragments get finer chunks.
func AlignmentProfileFor(fragmentCount int) Profile {
	switch {
	case fragmentCount <= 5:
		return Profile{MaxWords: 50, MinWords: 25}
	case fragmentCount <= 20:
		return Profile{MaxWords: 100, MinWords: 50}
	default:
		return Profile{MaxWords: 150, MinWords: 80}
	}
}

// MaxAlignmentChunks caps the total chunks of one alignment run; the
// overflow is dropped from the tail and logged.
const MaxAlignmentChunks = 60

// oversizeSlack is how far past MaxWords a single clause may go before
// it is emitted as its own oversized chunk.
const oversizeSlack = 50

// clause delimiters; kept attached to the clause they terminate.
var delimiters = []rune{'.', ':', '\n'}

// Chunker turns fragments into chunks for one corpus.
type Chunker struct {
	corpus  domain.CorpusID
	profile Profile
	logger  *slog.Logger
}

// New creates a chunker for one corpus and profile.
func New(corpus domain.CorpusID, profile Profile, logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{corpus: corpus, profile: profile, logger: logger}
}

// Chunk splits one fragment. Every emitted chunk inherits the source
// fragment's ref and path verbatim; ordinals continue from startOrdinal
// (1-based) and the next free ordinal is returned.
func (c *Chunker) Chunk(fragment domain.Fragment, startOrdinal int) ([]domain.Chunk, int) {
	texts := c.split(fragment.Text)
	chunks := make([]domain.Chunk, 0, len(texts))
	ordinal := startOrdinal
	for _, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:          domain.ChunkID(c.corpus, fragment.Ref, fragment.Path, ordinal),
			Text:        text,
			ContentHash: domain.ContentHash(text),
			Ref:         fragment.Ref,
			Path:        append([]int(nil), fragment.Path...),
		})
		ordinal++
	}
	return chunks, ordinal
}

// ChunkAll chunks fragments in order with a running ordinal and an
// optional total limit. A limit of 0 means unlimited. Dropped tails are
// logged, never silently swallowed.
func (c *Chunker) ChunkAll(ctx context.Context, fragments []domain.Fragment, limit int) []domain.Chunk {
	var out []domain.Chunk
	ordinal := 1
	for _, f := range fragments {
		var chunks []domain.Chunk
		chunks, ordinal = c.Chunk(f, ordinal)
		out = append(out, chunks...)
		if limit > 0 && len(out) > limit {
			break
		}
	}
	if limit > 0 && len(out) > limit {
		c.logger.Warn("chunk cap exceeded, dropping tail",
			"component", "chunker",
			"corpus", c.corpus,
			"produced", len(out),
			"limit", limit,
		)
		out = out[:limit]
	}
	return out
}

// split cuts one fragment text into chunk bodies.
func (c *Chunker) split(text string) []string {
	if hebrew.CountWords(text) <= c.profile.MaxWords {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	clauses := splitClauses(text)
	if len(clauses) <= 1 {
		return c.splitByWords(text)
	}

	var out []string
	var group []string
	groupWords := 0
	for _, clause := range clauses {
		w := hebrew.CountWords(clause)

		// A clause that alone blows far past the budget gets emitted on
		// its own after flushing whatever accumulated.
		if w > c.profile.MaxWords+oversizeSlack {
			if len(group) > 0 {
				out = append(out, strings.TrimSpace(strings.Join(group, " ")))
				group, groupWords = nil, 0
			}
			out = append(out, strings.TrimSpace(clause))
			continue
		}

		if groupWords+w > c.profile.MaxWords && groupWords >= c.profile.MinWords {
			out = append(out, strings.TrimSpace(strings.Join(group, " ")))
			group, groupWords = nil, 0
		}
		group = append(group, clause)
		groupWords += w
	}
	if len(group) > 0 {
		out = append(out, strings.TrimSpace(strings.Join(group, " ")))
	}
	return out
}

// splitClauses cuts on sentence-or-clause delimiters, keeping each
// delimiter attached to the clause it terminates.
func splitClauses(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if isDelimiter(r) {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func isDelimiter(r rune) bool {
	for _, d := range delimiters {
		if r == d {
			return true
		}
	}
	return false
}

// splitByWords is the fallback when no delimiters are present: plain
// word-count windows of MaxWords.
func (c *Chunker) splitByWords(text string) []string {
	words := strings.Fields(text)
	var out []string
	for start := 0; start < len(words); start += c.profile.MaxWords {
		end := start + c.profile.MaxWords
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out
}
