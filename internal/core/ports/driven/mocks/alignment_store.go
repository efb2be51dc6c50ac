package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// MockAlignmentStore is an in-memory AlignmentStore whose TryAcquire
// mirrors the conditional-transaction semantics of the real store.
type MockAlignmentStore struct {
	mu      sync.Mutex
	records map[string]*domain.AlignmentRecord

	// ReadyTransitions counts building→ready transitions, for
	// single-flight assertions.
	ReadyTransitions int

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewMockAlignmentStore creates an empty MockAlignmentStore.
func NewMockAlignmentStore() *MockAlignmentStore {
	return &MockAlignmentStore{
		records: make(map[string]*domain.AlignmentRecord),
		Now:     time.Now,
	}
}

// Seed installs a record directly, for test setup.
func (m *MockAlignmentStore) Seed(rec *domain.AlignmentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.Key] = &cp
}

func (m *MockAlignmentStore) Get(ctx context.Context, key string) (*domain.AlignmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockAlignmentStore) TryAcquire(ctx context.Context, section domain.Section, chapter int, ttl time.Duration) (bool, *domain.AlignmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	key := domain.AlignmentKey(section, chapter)

	current, exists := m.records[key]
	if exists && current.Status == domain.AlignmentStatusBuilding && current.LockExpiresAt.After(now) {
		cp := *current
		return false, &cp, nil
	}

	rec := &domain.AlignmentRecord{
		Key:           key,
		Section:       section,
		Chapter:       chapter,
		Status:        domain.AlignmentStatusBuilding,
		Version:       domain.AlignmentSchemaVersion,
		LockExpiresAt: now.Add(ttl),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if exists {
		rec.CreatedAt = current.CreatedAt
		rec.SourceHash = current.SourceHash
		rec.Paragraphs = current.Paragraphs
		rec.SourceCheckedAt = current.SourceCheckedAt
	}
	m.records[key] = rec
	cp := *rec
	return true, &cp, nil
}

func (m *MockAlignmentStore) SaveReady(ctx context.Context, rec *domain.AlignmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	cp := *rec
	cp.Status = domain.AlignmentStatusReady
	cp.Version = domain.AlignmentSchemaVersion
	cp.LockExpiresAt = time.Time{}
	cp.Error = ""
	cp.UpdatedAt = now
	if cp.SourceCheckedAt.IsZero() {
		cp.SourceCheckedAt = now
	}
	if prev, ok := m.records[cp.Key]; ok && !prev.CreatedAt.IsZero() {
		cp.CreatedAt = prev.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	m.records[cp.Key] = &cp
	m.ReadyTransitions++
	return nil
}

func (m *MockAlignmentStore) MarkFailed(ctx context.Context, key string, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		rec = &domain.AlignmentRecord{Key: key, CreatedAt: m.Now()}
		m.records[key] = rec
	}
	rec.Status = domain.AlignmentStatusFailed
	rec.Error = msg
	rec.LockExpiresAt = time.Time{}
	rec.UpdatedAt = m.Now()
	return nil
}

func (m *MockAlignmentStore) TouchSourceChecked(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[key]; ok {
		rec.SourceCheckedAt = m.Now()
		rec.UpdatedAt = m.Now()
	}
	return nil
}
