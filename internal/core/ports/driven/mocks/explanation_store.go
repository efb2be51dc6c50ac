package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// MockExplanationStore is an in-memory structured explanation archive.
type MockExplanationStore struct {
	mu      sync.RWMutex
	records map[domain.ExplanationKey]*domain.ExplanationRecord

	// Puts counts write-backs.
	Puts int
}

// NewMockExplanationStore creates an empty MockExplanationStore.
func NewMockExplanationStore() *MockExplanationStore {
	return &MockExplanationStore{
		records: make(map[domain.ExplanationKey]*domain.ExplanationRecord),
	}
}

func (m *MockExplanationStore) Get(ctx context.Context, key domain.ExplanationKey) (*domain.ExplanationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockExplanationStore) Put(ctx context.Context, rec *domain.ExplanationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	now := time.Now()
	if prev, ok := m.records[rec.Key]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.records[rec.Key] = &cp
	m.Puts++
	return nil
}

// MockLegacyCache is an in-memory flat legacy explanation cache.
type MockLegacyCache struct {
	mu      sync.RWMutex
	records map[string]*domain.ExplanationRecord

	// Gets and Puts count accesses.
	Gets int
	Puts int
}

// NewMockLegacyCache creates an empty MockLegacyCache.
func NewMockLegacyCache() *MockLegacyCache {
	return &MockLegacyCache{records: make(map[string]*domain.ExplanationRecord)}
}

// Seed installs a record under the opaque key.
func (m *MockLegacyCache) Seed(hashKey string, rec *domain.ExplanationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[hashKey] = &cp
}

func (m *MockLegacyCache) Get(ctx context.Context, hashKey string) (*domain.ExplanationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	rec, ok := m.records[hashKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockLegacyCache) Put(ctx context.Context, hashKey string, rec *domain.ExplanationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts++
	cp := *rec
	m.records[hashKey] = &cp
	return nil
}
