package mocks

import (
	"context"
	"sync"
)

// MockProgress is an in-memory ProgressSink and CancelProbe.
type MockProgress struct {
	mu        sync.Mutex
	totals    map[string]int
	done      map[string]int
	cancelled map[string]bool
}

// NewMockProgress creates an empty MockProgress.
func NewMockProgress() *MockProgress {
	return &MockProgress{
		totals:    make(map[string]int),
		done:      make(map[string]int),
		cancelled: make(map[string]bool),
	}
}

func (m *MockProgress) Init(ctx context.Context, fingerprint string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[fingerprint] = total
	m.done[fingerprint] = 0
	return nil
}

func (m *MockProgress) Increment(ctx context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[fingerprint]++
	return nil
}

func (m *MockProgress) Get(ctx context.Context, fingerprint string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done[fingerprint], m.totals[fingerprint], nil
}

func (m *MockProgress) IsCancelled(ctx context.Context, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled[fingerprint], nil
}

func (m *MockProgress) RequestCancel(ctx context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[fingerprint] = true
	return nil
}
