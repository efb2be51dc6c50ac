// Package similarity scores Hebrew-normalized texts against each other
// with a weighted token/bigram overlap. The index is request-scoped and
// immutable after construction, so it is safe to share across
// concurrent read-only queries.
package similarity

import (
	"sort"
	"strings"

	"github.com/shiurlab/shiur-core/internal/hebrew"
)

const (
	tokenWeight  = 0.7
	bigramWeight = 0.3

	// minBestScore is the floor under which no candidate is kept at all.
	minBestScore = 0.05

	// thresholdFloor and thresholdShare shape the relative cutoff:
	// max(thresholdFloor, thresholdShare * best).
	thresholdFloor = 0.08
	thresholdShare = 0.6

	// maxSelected bounds the refs returned for one query.
	maxSelected = 12
)

// Profile is the token and bigram fingerprint of one text.
type Profile struct {
	Tokens  map[string]struct{}
	Bigrams map[string]struct{}
}

// NewProfile normalizes and tokenizes text. Tokens shorter than two
// runes are dropped; bigrams join adjacent tokens with a single space.
func NewProfile(text string) Profile {
	normalized := hebrew.NormalizeForSimilarity(text)
	fields := strings.Fields(normalized)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}

	p := Profile{
		Tokens:  make(map[string]struct{}, len(tokens)),
		Bigrams: make(map[string]struct{}),
	}
	for _, t := range tokens {
		p.Tokens[t] = struct{}{}
	}
	for i := 0; i+1 < len(tokens); i++ {
		p.Bigrams[tokens[i]+" "+tokens[i+1]] = struct{}{}
	}
	return p
}

// Score computes the weighted overlap of the query profile q against a
// candidate c: 0.7·|Q∩C tokens|/|Q tokens| + 0.3·|Q∩C bigrams|/|Q bigrams|.
// A zero denominator zeroes the corresponding term.
func Score(q, c Profile) float64 {
	score := 0.0
	if len(q.Tokens) > 0 {
		hit := 0
		for t := range q.Tokens {
			if _, ok := c.Tokens[t]; ok {
				hit++
			}
		}
		score += tokenWeight * float64(hit) / float64(len(q.Tokens))
	}
	if len(q.Bigrams) > 0 {
		hit := 0
		for b := range q.Bigrams {
			if _, ok := c.Bigrams[b]; ok {
				hit++
			}
		}
		score += bigramWeight * float64(hit) / float64(len(q.Bigrams))
	}
	return score
}

// Candidate is one indexed passage.
type Candidate struct {
	// Ref is the provider reference of the passage.
	Ref string

	// Order is the upstream reading order, used as the tie-break and
	// for the final re-sort.
	Order int

	Profile Profile
}

// Index holds the candidate profiles of one secondary corpus.
type Index struct {
	candidates []Candidate
}

// NewIndex profiles the given (ref, text) pairs in upstream order.
func NewIndex(refs []string, texts []string) *Index {
	n := len(refs)
	if len(texts) < n {
		n = len(texts)
	}
	candidates := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		candidates = append(candidates, Candidate{
			Ref:     refs[i],
			Order:   i,
			Profile: NewProfile(texts[i]),
		})
	}
	return &Index{candidates: candidates}
}

// Len returns the number of indexed candidates.
func (ix *Index) Len() int { return len(ix.candidates) }

// Selection is the outcome of matching one query against the index.
type Selection struct {
	// Refs are the selected refs, deduplicated, in upstream order.
	Refs []string

	// Best is the top score observed.
	Best float64
}

// SelectBest scores all candidates for queryText and applies the
// selection rule: sort by score descending (upstream order breaks
// ties), drop everything when the best score is under 0.05, keep
// candidates at or above max(0.08, 0.6·best), cap at 12, then restore
// upstream order and deduplicate refs.
func (ix *Index) SelectBest(queryText string) Selection {
	if len(ix.candidates) == 0 {
		return Selection{}
	}
	q := NewProfile(queryText)

	type scored struct {
		Candidate
		score float64
	}
	all := make([]scored, len(ix.candidates))
	for i, c := range ix.candidates {
		all[i] = scored{Candidate: c, score: Score(q, c.Profile)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].Order < all[j].Order
	})

	best := all[0].score
	if best < minBestScore {
		return Selection{Best: best}
	}
	threshold := thresholdShare * best
	if threshold < thresholdFloor {
		threshold = thresholdFloor
	}

	kept := all[:0]
	for _, s := range all {
		if s.score >= threshold {
			kept = append(kept, s)
			if len(kept) == maxSelected {
				break
			}
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Order < kept[j].Order })

	seen := make(map[string]struct{}, len(kept))
	refs := make([]string, 0, len(kept))
	for _, s := range kept {
		if _, ok := seen[s.Ref]; ok {
			continue
		}
		seen[s.Ref] = struct{}{}
		refs = append(refs, s.Ref)
	}
	return Selection{Refs: refs, Best: best}
}
