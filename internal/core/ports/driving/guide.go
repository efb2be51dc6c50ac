package driving

import (
	"context"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// GuideService is the driving port of the generation pipeline.
type GuideService interface {
	// Generate builds (or serves from cache) the study guide for the
	// request. The returned GuideResult is a discriminated outcome;
	// the error return is reserved for infrastructure failures that
	// produced no outcome at all.
	Generate(ctx context.Context, req domain.GuideRequest) (*domain.GuideResult, error)

	// Get loads a finished or in-flight guide by fingerprint.
	Get(ctx context.Context, fingerprint string) (*domain.CanonicalGuideRecord, []domain.GuideChunk, error)

	// Progress reads the progress counters for a running generation.
	Progress(ctx context.Context, fingerprint string) (done, total int, err error)

	// Cancel requests cooperative cancellation of a running
	// generation.
	Cancel(ctx context.Context, fingerprint string) error
}

// AlignmentAdmin exposes chapter alignment for inspection.
type AlignmentAdmin interface {
	// ChapterAlignment returns the (possibly freshly built) alignment
	// record for a chapter.
	ChapterAlignment(ctx context.Context, section domain.Section, chapter int) (*domain.AlignmentRecord, error)
}
