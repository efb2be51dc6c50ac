package driven

import (
	"context"
)

// TextPayload is the upstream text endpoint response. He is the nested
// string array exactly as returned; flattening is the resolver's job.
type TextPayload struct {
	// Ref is the canonicalized reference string; it may differ
	// textually from the requested ref and is what the system stores.
	Ref string

	// He is the nested Hebrew text: a string, or arbitrarily nested
	// arrays of strings.
	He any

	// Versions optionally carries alternate language versions.
	Versions []TextVersion
}

// TextVersion is one entry of the upstream versions array.
type TextVersion struct {
	Language string
	Text     any
}

// LinkEntry is one object of the upstream links response. Any of the
// ref-bearing fields may hold reference strings.
type LinkEntry struct {
	Refs          []string
	ExpandedRefs0 []string
	ExpandedRefs1 []string
	ExpandedRefs  []string
	Ref           string
	AnchorRef     string
	SourceRef     string
}

// AllRefs collects every reference string the entry carries, in field
// order.
func (e LinkEntry) AllRefs() []string {
	out := make([]string, 0, len(e.Refs)+len(e.ExpandedRefs0)+len(e.ExpandedRefs1)+len(e.ExpandedRefs)+3)
	out = append(out, e.Refs...)
	out = append(out, e.ExpandedRefs0...)
	out = append(out, e.ExpandedRefs1...)
	out = append(out, e.ExpandedRefs...)
	for _, r := range []string{e.Ref, e.AnchorRef, e.SourceRef} {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// IndexInfo is the upstream index metadata for one book.
type IndexInfo struct {
	// Lengths is the schema lengths array; the first dimension is the
	// chapter count for the section.
	Lengths []int
}

// TextProvider is the read-only upstream text API.
type TextProvider interface {
	// FetchText retrieves the Hebrew text for a ref (lang=he,
	// context=0). Returns domain.ErrUpstreamNotFound (or
	// domain.ErrUpstreamSchema) wrapped on non-2xx or malformed
	// responses.
	FetchText(ctx context.Context, ref string) (*TextPayload, error)

	// FetchLinks retrieves the link graph entries anchored at ref.
	FetchLinks(ctx context.Context, ref string) ([]LinkEntry, error)

	// FetchIndex retrieves the index metadata for a book title.
	FetchIndex(ctx context.Context, book string) (*IndexInfo, error)
}
