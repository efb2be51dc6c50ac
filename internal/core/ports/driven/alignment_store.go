package driven

import (
	"context"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// AlignmentStore persists chapter alignment records. Implementations
// must make TryAcquire a single conditional transaction so that
// concurrent builders across processes race safely.
type AlignmentStore interface {
	// Get returns the record for the key or domain.ErrNotFound.
	Get(ctx context.Context, key string) (*domain.AlignmentRecord, error)

	// TryAcquire attempts the build lock in one transaction: it
	// succeeds when the record is absent, not building, or building
	// with an expired lock, in which case the record is written as
	// status=building with lockExpiresAt=now+ttl. On failure the
	// current record is returned so the caller can poll or serve it.
	TryAcquire(ctx context.Context, section domain.Section, chapter int, ttl time.Duration) (acquired bool, current *domain.AlignmentRecord, err error)

	// SaveReady atomically writes the finished record: status=ready,
	// sourceHash, paragraphs, cleared lock, server-side updatedAt.
	SaveReady(ctx context.Context, rec *domain.AlignmentRecord) error

	// MarkFailed records a failed build and clears the lock.
	MarkFailed(ctx context.Context, key string, msg string) error

	// TouchSourceChecked bumps sourceCheckedAt to the server time
	// after a revalidation that found the upstream unchanged.
	TouchSourceChecked(ctx context.Context, key string) error
}
