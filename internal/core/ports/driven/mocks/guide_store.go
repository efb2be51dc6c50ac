package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// MockGuideStore is an in-memory GuideStore with transactional Begin
// semantics.
type MockGuideStore struct {
	mu      sync.Mutex
	records map[string]*domain.CanonicalGuideRecord
	chunks  map[string][]domain.GuideChunk

	// Acquisitions counts how many Begin calls returned BeginAcquired.
	Acquisitions int

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// NewMockGuideStore creates an empty MockGuideStore.
func NewMockGuideStore() *MockGuideStore {
	return &MockGuideStore{
		records: make(map[string]*domain.CanonicalGuideRecord),
		chunks:  make(map[string][]domain.GuideChunk),
		Now:     time.Now,
	}
}

// Seed installs a canonical record directly.
func (m *MockGuideStore) Seed(rec *domain.CanonicalGuideRecord, chunks []domain.GuideChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.Fingerprint] = &cp
	m.chunks[rec.Fingerprint] = append([]domain.GuideChunk(nil), chunks...)
}

func (m *MockGuideStore) Begin(ctx context.Context, req domain.GuideRequest, staleAfter time.Duration) (driven.BeginOutcome, *domain.CanonicalGuideRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	fp := req.Fingerprint()

	if current, ok := m.records[fp]; ok {
		switch current.Status {
		case domain.GuideStatusReady:
			cp := *current
			return driven.BeginReady, &cp, nil
		case domain.GuideStatusProcessing:
			if !current.Stale(now, staleAfter) {
				cp := *current
				return driven.BeginProcessing, &cp, nil
			}
		}
	}

	rec := &domain.CanonicalGuideRecord{
		Fingerprint: fp,
		Status:      domain.GuideStatusProcessing,
		Section:     req.Section,
		Chapter:     req.Chapter,
		Paragraph:   req.Paragraph,
		Corpora:     req.SortedCorpora(),
		Version:     domain.GuideSchemaVersion,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if prev, ok := m.records[fp]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	m.records[fp] = rec
	m.Acquisitions++
	cp := *rec
	return driven.BeginAcquired, &cp, nil
}

func (m *MockGuideStore) Get(ctx context.Context, fingerprint string) (*domain.CanonicalGuideRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[fingerprint]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockGuideStore) GetChunks(ctx context.Context, fingerprint string) ([]domain.GuideChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.GuideChunk(nil), m.chunks[fingerprint]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Corpus != out[j].Corpus {
			return out[i].Corpus < out[j].Corpus
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out, nil
}

func (m *MockGuideStore) SaveReady(ctx context.Context, rec *domain.CanonicalGuideRecord, chunks []domain.GuideChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	cp := *rec
	cp.Status = domain.GuideStatusReady
	cp.Version = domain.GuideSchemaVersion
	cp.ChunkCount = len(chunks)
	cp.Error = ""
	cp.UpdatedAt = now
	if prev, ok := m.records[cp.Fingerprint]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	m.records[cp.Fingerprint] = &cp
	m.chunks[cp.Fingerprint] = append([]domain.GuideChunk(nil), chunks...)
	return nil
}

func (m *MockGuideStore) MarkFailed(ctx context.Context, fingerprint string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[fingerprint]
	if !ok {
		rec = &domain.CanonicalGuideRecord{Fingerprint: fingerprint, CreatedAt: m.Now()}
		m.records[fingerprint] = rec
	}
	rec.Status = domain.GuideStatusFailed
	rec.Error = reason
	rec.UpdatedAt = m.Now()
	return nil
}

func (m *MockGuideStore) Touch(ctx context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[fingerprint]; ok {
		rec.UpdatedAt = m.Now()
	}
	return nil
}
