package driven

import (
	"context"
)

// ProgressSink is the client-observable progress channel: an
// append-only counter surface the pipeline updates as chunks complete.
type ProgressSink interface {
	// Init sets the total expected steps and resets done to 0.
	Init(ctx context.Context, fingerprint string, total int) error

	// Increment bumps the done counter by one.
	Increment(ctx context.Context, fingerprint string) error

	// Get reads the counters.
	Get(ctx context.Context, fingerprint string) (done, total int, err error)
}

// CancelProbe exposes the external cooperative cancellation flag the
// orchestrator polls between chunks.
type CancelProbe interface {
	// IsCancelled reads the flag. Missing flag means not cancelled.
	IsCancelled(ctx context.Context, fingerprint string) (bool, error)

	// RequestCancel sets the flag for a running generation.
	RequestCancel(ctx context.Context, fingerprint string) error
}
