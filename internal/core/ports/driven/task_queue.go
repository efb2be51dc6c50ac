package driven

import (
	"context"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// TaskQueue provides reliable background task processing for guide
// generation jobs.
type TaskQueue interface {
	// Enqueue adds a task to the queue for processing.
	Enqueue(ctx context.Context, task *domain.Task) error

	// Dequeue retrieves the next available task, blocking up to
	// timeout. Returns nil when no task is available.
	Dequeue(ctx context.Context, timeout time.Duration) (*domain.Task, error)

	// Ack marks a task as successfully completed.
	Ack(ctx context.Context, taskID string) error

	// Nack marks a task as failed; it may be redelivered until its
	// attempt budget runs out.
	Nack(ctx context.Context, taskID string, reason string) error

	// Ping checks queue backend health.
	Ping(ctx context.Context) error
}
