package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.ProgressSink = (*Progress)(nil)
	_ driven.CancelProbe  = (*Progress)(nil)
)

const (
	progressPrefix = "shiur:progress:"
	cancelPrefix   = "shiur:cancel:"

	// signalTTL bounds how long progress counters and cancel flags
	// outlive the generation that created them.
	signalTTL = 24 * time.Hour
)

// Progress implements the progress counter surface and the cooperative
// cancellation flag on Redis. Counters live in one hash per
// fingerprint; the flag is a plain key.
type Progress struct {
	client *redis.Client
}

// NewProgress creates a new Redis-backed progress adapter.
func NewProgress(client *redis.Client) *Progress {
	return &Progress{client: client}
}

// Init sets the total expected steps and resets done to 0.
func (p *Progress) Init(ctx context.Context, fingerprint string, total int) error {
	key := progressPrefix + fingerprint
	pipe := p.client.Pipeline()
	pipe.HSet(ctx, key, "total", total, "done", 0)
	pipe.Expire(ctx, key, signalTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("progress init %s: %w", fingerprint, err)
	}
	return nil
}

// Increment bumps the done counter by one.
func (p *Progress) Increment(ctx context.Context, fingerprint string) error {
	if err := p.client.HIncrBy(ctx, progressPrefix+fingerprint, "done", 1).Err(); err != nil {
		return fmt.Errorf("progress increment %s: %w", fingerprint, err)
	}
	return nil
}

// Get reads the counters. A missing hash reads as 0/0.
func (p *Progress) Get(ctx context.Context, fingerprint string) (done, total int, err error) {
	values, err := p.client.HGetAll(ctx, progressPrefix+fingerprint).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("progress get %s: %w", fingerprint, err)
	}
	fmt.Sscanf(values["done"], "%d", &done)
	fmt.Sscanf(values["total"], "%d", &total)
	return done, total, nil
}

// IsCancelled reads the cancellation flag; a missing key means not
// cancelled.
func (p *Progress) IsCancelled(ctx context.Context, fingerprint string) (bool, error) {
	n, err := p.client.Exists(ctx, cancelPrefix+fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("cancel probe %s: %w", fingerprint, err)
	}
	return n > 0, nil
}

// RequestCancel sets the cancellation flag.
func (p *Progress) RequestCancel(ctx context.Context, fingerprint string) error {
	if err := p.client.Set(ctx, cancelPrefix+fingerprint, "1", signalTTL).Err(); err != nil {
		return fmt.Errorf("request cancel %s: %w", fingerprint, err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (p *Progress) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
