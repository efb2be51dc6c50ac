package driven

import (
	"context"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// BeginOutcome is the result of the canonical single-flight check.
type BeginOutcome int

const (
	// BeginAcquired means the caller now owns the processing lock and
	// must build the guide.
	BeginAcquired BeginOutcome = iota

	// BeginReady means a finished guide exists; serve it.
	BeginReady

	// BeginProcessing means another builder holds a fresh lock; poll.
	BeginProcessing
)

// GuideStore persists canonical guide records and their chunk
// sub-records.
type GuideStore interface {
	// Begin runs the transactional single-flight check for the request
	// fingerprint: ready → BeginReady with the record; processing with
	// recent activity → BeginProcessing; otherwise the record is
	// created or taken over as processing and BeginAcquired returns.
	Begin(ctx context.Context, req domain.GuideRequest, staleAfter time.Duration) (BeginOutcome, *domain.CanonicalGuideRecord, error)

	// Get returns the canonical record or domain.ErrNotFound.
	Get(ctx context.Context, fingerprint string) (*domain.CanonicalGuideRecord, error)

	// GetChunks returns the chunk sub-records in (corpus, ordinal)
	// order.
	GetChunks(ctx context.Context, fingerprint string) ([]domain.GuideChunk, error)

	// SaveReady atomically replaces prior chunk sub-records with the
	// given ones and promotes the canonical record to ready.
	SaveReady(ctx context.Context, rec *domain.CanonicalGuideRecord, chunks []domain.GuideChunk) error

	// MarkFailed sets the record to failed with the reason, which also
	// releases the processing lock.
	MarkFailed(ctx context.Context, fingerprint string, reason string) error

	// Touch bumps updatedAt on a processing record so concurrent
	// callers see the lock as live.
	Touch(ctx context.Context, fingerprint string) error
}
