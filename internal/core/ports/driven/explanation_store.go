package driven

import (
	"context"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// ExplanationStore is the structured per-chunk explanation archive,
// keyed by (section, chapter, paragraph, corpus, ordinal).
type ExplanationStore interface {
	// Get returns the record at the key or domain.ErrNotFound. Hit
	// semantics (content hash + prompt version) are the caller's job.
	Get(ctx context.Context, key domain.ExplanationKey) (*domain.ExplanationRecord, error)

	// Put upserts the record with server-side timestamps.
	Put(ctx context.Context, rec *domain.ExplanationRecord) error
}

// LegacyExplanationCache is the flat opaque-hash-keyed cache of an
// earlier deployment. It is read as a migration source and written
// forward so legacy-style lookups by preferred model hit immediately;
// the structured archive is authoritative.
type LegacyExplanationCache interface {
	// Get returns the record stored under the opaque key or
	// domain.ErrNotFound.
	Get(ctx context.Context, hashKey string) (*domain.ExplanationRecord, error)

	// Put stores the record under the opaque key.
	Put(ctx context.Context, hashKey string, rec *domain.ExplanationRecord) error
}
