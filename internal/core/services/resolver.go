package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
	"github.com/shiurlab/shiur-core/internal/hebrew"
)

// RefResolver maps canonical locations to provider reference strings
// and flattens the provider's nested text arrays into ordered,
// individually-referable fragments.
type RefResolver struct {
	provider driven.TextProvider
	logger   *slog.Logger
}

// NewRefResolver creates a resolver over the text provider.
func NewRefResolver(provider driven.TextProvider, logger *slog.Logger) *RefResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefResolver{provider: provider, logger: logger}
}

// BuildRef renders the provider ref for a location, following the
// corpus's prefix and qualifier rules. Paragraph is included only for
// corpora that address paragraphs.
func (r *RefResolver) BuildRef(corpus domain.CorpusID, loc domain.Location) string {
	info := corpus.Info()
	var b strings.Builder
	b.WriteString(info.Label)
	if info.SectionQualified {
		b.WriteString(", ")
		b.WriteString(string(loc.Section))
	}
	fmt.Fprintf(&b, " %d", loc.Chapter)
	if loc.Paragraph > 0 && info.HasParagraphs {
		fmt.Fprintf(&b, ":%d", loc.Paragraph)
	}
	return b.String()
}

// BuildRefFromStrings is BuildRef for callers holding chapter and
// paragraph as strings, which may be decimal or vernacular numerals.
func (r *RefResolver) BuildRefFromStrings(corpus domain.CorpusID, section domain.Section, chapter, paragraph string) (string, error) {
	ch, err := hebrew.ParseNumber(chapter)
	if err != nil {
		return "", fmt.Errorf("%w: chapter %q", domain.ErrInvalidInput, chapter)
	}
	para := 0
	if strings.TrimSpace(paragraph) != "" {
		para, err = hebrew.ParseNumber(paragraph)
		if err != nil {
			return "", fmt.Errorf("%w: paragraph %q", domain.ErrInvalidInput, paragraph)
		}
	}
	return r.BuildRef(corpus, domain.Location{Section: section, Chapter: ch, Paragraph: para}), nil
}

// FetchFragments retrieves the Hebrew text for a ref and flattens the
// nested array by pre-order traversal. The returned providerRef is the
// canonical form the provider answered with; rawHe holds the uncleaned
// leaf strings in the same order as the fragments.
func (r *RefResolver) FetchFragments(ctx context.Context, ref string) (providerRef string, fragments []domain.Fragment, rawHe []string, err error) {
	payload, err := r.provider.FetchText(ctx, ref)
	if err != nil {
		return "", nil, nil, err
	}
	if payload.Ref == "" || payload.He == nil {
		return "", nil, nil, fmt.Errorf("%w: ref %q", domain.ErrUpstreamSchema, ref)
	}

	providerRef = payload.Ref
	flattenText(payload.He, nil, func(path []int, raw string) {
		cleaned := hebrew.Clean(raw)
		if cleaned == "" {
			return
		}
		rawHe = append(rawHe, raw)
		fragments = append(fragments, domain.Fragment{
			Ref:  leafRef(providerRef, path),
			Path: append([]int(nil), path...),
			Text: cleaned,
		})
	})
	return providerRef, fragments, rawHe, nil
}

// flattenText walks the nested string array pre-order, handing each
// leaf its 0-based descent path.
func flattenText(node any, path []int, visit func(path []int, raw string)) {
	switch v := node.(type) {
	case string:
		visit(path, v)
	case []any:
		for i, child := range v {
			flattenText(child, append(path, i), visit)
		}
	case []string:
		for i, child := range v {
			visit(append(path, i), child)
		}
	}
}

// leafRef names one leaf under the canonical ref. A top-level string
// response keeps the ref as-is; nested leaves append their 1-based
// indices colon-separated, the provider's addressing scheme.
func leafRef(providerRef string, path []int) string {
	if len(path) == 0 {
		return providerRef
	}
	var b strings.Builder
	b.WriteString(providerRef)
	for _, p := range path {
		fmt.Fprintf(&b, ":%d", p+1)
	}
	return b.String()
}

// FetchLinkedRefs queries the link graph for a primary paragraph ref
// and splits the results between the two secondary corpora, restricted
// to the given section. Any ref-bearing field of a link entry counts;
// matching is on the normalized prefix.
func (r *RefResolver) FetchLinkedRefs(ctx context.Context, primaryRef string, section domain.Section) (turRefs, beitYosefRefs []string, err error) {
	entries, err := r.provider.FetchLinks(ctx, primaryRef)
	if err != nil {
		return nil, nil, err
	}

	turPrefix := hebrew.NormalizeRefPrefix(fmt.Sprintf("%s, %s", domain.CorpusTur.Info().Label, section))
	byPrefix := hebrew.NormalizeRefPrefix(fmt.Sprintf("%s, %s", domain.CorpusBeitYosef.Info().Label, section))

	seenTur := make(map[string]struct{})
	seenBY := make(map[string]struct{})
	for _, entry := range entries {
		for _, candidate := range entry.AllRefs() {
			normalized := hebrew.NormalizeRefPrefix(candidate)
			switch {
			case strings.HasPrefix(normalized, turPrefix):
				if _, ok := seenTur[candidate]; !ok {
					seenTur[candidate] = struct{}{}
					turRefs = append(turRefs, candidate)
				}
			case strings.HasPrefix(normalized, byPrefix):
				if _, ok := seenBY[candidate]; !ok {
					seenBY[candidate] = struct{}{}
					beitYosefRefs = append(beitYosefRefs, candidate)
				}
			}
		}
	}
	return turRefs, beitYosefRefs, nil
}

// ChapterCount reads the upstream index for a corpus and section and
// returns the chapter count (the first schema dimension), or 0 when
// the index is unavailable.
func (r *RefResolver) ChapterCount(ctx context.Context, corpus domain.CorpusID, section domain.Section) int {
	info := corpus.Info()
	book := info.Label
	if info.SectionQualified {
		book = fmt.Sprintf("%s, %s", info.Label, section)
	}
	idx, err := r.provider.FetchIndex(ctx, book)
	if err != nil || idx == nil || len(idx.Lengths) == 0 {
		return 0
	}
	return idx.Lengths[0]
}
