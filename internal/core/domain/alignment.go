package domain

import (
	"fmt"
	"math"
	"time"
)

// AlignmentSchemaVersion invalidates stored alignment records when the
// record shape or the build procedure changes. Records with an older
// version are treated as absent on read.
const AlignmentSchemaVersion = 2

// AlignmentStatus is the lifecycle state of a chapter alignment record.
type AlignmentStatus string

const (
	AlignmentStatusBuilding AlignmentStatus = "building"
	AlignmentStatusReady    AlignmentStatus = "ready"
	AlignmentStatusFailed   AlignmentStatus = "failed"
)

// AlignmentMode says how the refs for one paragraph/corpus pair were
// obtained.
type AlignmentMode string

const (
	// AlignmentModeLinked means the provider's link graph supplied the
	// refs directly.
	AlignmentModeLinked AlignmentMode = "linked-passages"

	// AlignmentModeSimilarity means lexical similarity selected the refs.
	AlignmentModeSimilarity AlignmentMode = "fallback-similarity"

	// AlignmentModeNone means nothing matched.
	AlignmentModeNone AlignmentMode = "none"
)

// CorpusAlignment is the alignment of one primary paragraph against one
// secondary corpus.
type CorpusAlignment struct {
	// Refs is the ordered, deduplicated list of provider refs.
	Refs []string `json:"refs"`

	// Mode records how the refs were found.
	Mode AlignmentMode `json:"mode"`

	// Score is in [0,1]; 1 for linked passages.
	Score float64 `json:"score"`
}

// ParagraphAlignment maps each secondary corpus to its alignment for
// one paragraph of the primary.
type ParagraphAlignment struct {
	Sources map[CorpusID]CorpusAlignment `json:"sources"`

	// Confidence is the mean of scores across the secondary corpora,
	// rounded to 3 decimals.
	Confidence float64 `json:"confidence"`
}

// RoundConfidence rounds a mean score to 3 decimals for storage.
func RoundConfidence(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// AlignmentRecord is the per-chapter alignment document shared across
// processes. Keyed by "<section-slug>_<chapter>".
type AlignmentRecord struct {
	Key     string
	Section Section
	Chapter int

	Status  AlignmentStatus
	Version int

	// LockExpiresAt is only meaningful while Status is building.
	LockExpiresAt time.Time

	// SourceHash maps each fetched corpus to the content hash of its
	// upstream chapter response.
	SourceHash map[CorpusID]string

	// Paragraphs maps the paragraph number (as string) to its alignment.
	Paragraphs map[string]ParagraphAlignment

	// Error is set only when Status is failed.
	Error string

	SourceCheckedAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AlignmentKey builds the store key for a chapter.
func AlignmentKey(section Section, chapter int) string {
	return fmt.Sprintf("%s_%d", section.Slug(), chapter)
}

// LockExpired reports whether the building lock is past its TTL at t.
func (r *AlignmentRecord) LockExpired(t time.Time) bool {
	return r.Status == AlignmentStatusBuilding && !r.LockExpiresAt.After(t)
}

// Usable reports whether a stored record can be served: ready and at
// the current schema version.
func (r *AlignmentRecord) Usable() bool {
	return r != nil && r.Status == AlignmentStatusReady && r.Version == AlignmentSchemaVersion
}
