package services

import (
	"context"
	"sync"

	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.ProgressSink = (*LocalProgress)(nil)
	_ driven.CancelProbe  = (*LocalProgress)(nil)
)

// LocalProgress is an in-process fallback for the progress counter and
// cancellation flag when no shared signal backend is configured.
// Counters are then only visible to this process.
type LocalProgress struct {
	mu        sync.Mutex
	totals    map[string]int
	done      map[string]int
	cancelled map[string]bool
}

// NewLocalProgress creates an empty LocalProgress.
func NewLocalProgress() *LocalProgress {
	return &LocalProgress{
		totals:    make(map[string]int),
		done:      make(map[string]int),
		cancelled: make(map[string]bool),
	}
}

func (p *LocalProgress) Init(ctx context.Context, fingerprint string, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totals[fingerprint] = total
	p.done[fingerprint] = 0
	delete(p.cancelled, fingerprint)
	return nil
}

func (p *LocalProgress) Increment(ctx context.Context, fingerprint string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done[fingerprint]++
	return nil
}

func (p *LocalProgress) Get(ctx context.Context, fingerprint string) (int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done[fingerprint], p.totals[fingerprint], nil
}

func (p *LocalProgress) IsCancelled(ctx context.Context, fingerprint string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled[fingerprint], nil
}

func (p *LocalProgress) RequestCancel(ctx context.Context, fingerprint string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled[fingerprint] = true
	return nil
}
