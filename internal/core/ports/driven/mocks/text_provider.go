package mocks

import (
	"context"
	"sync"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// MockTextProvider is an in-memory TextProvider for testing. Texts and
// links are registered per ref; unregistered refs return
// domain.ErrUpstreamNotFound.
type MockTextProvider struct {
	mu      sync.RWMutex
	texts   map[string]*driven.TextPayload
	links   map[string][]driven.LinkEntry
	indexes map[string]*driven.IndexInfo

	// TextCalls counts FetchText invocations per ref.
	TextCalls map[string]int

	// LinkCalls counts FetchLinks invocations per ref.
	LinkCalls map[string]int
}

// NewMockTextProvider creates an empty MockTextProvider.
func NewMockTextProvider() *MockTextProvider {
	return &MockTextProvider{
		texts:     make(map[string]*driven.TextPayload),
		links:     make(map[string][]driven.LinkEntry),
		indexes:   make(map[string]*driven.IndexInfo),
		TextCalls: make(map[string]int),
		LinkCalls: make(map[string]int),
	}
}

// SetText registers the payload served for ref. The canonical ref of
// the payload may differ from the lookup ref.
func (m *MockTextProvider) SetText(ref string, payload *driven.TextPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[ref] = payload
}

// SetLinks registers the link entries served for ref.
func (m *MockTextProvider) SetLinks(ref string, entries []driven.LinkEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[ref] = entries
}

// SetIndex registers the index info served for a book.
func (m *MockTextProvider) SetIndex(book string, info *driven.IndexInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[book] = info
}

func (m *MockTextProvider) FetchText(ctx context.Context, ref string) (*driven.TextPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TextCalls[ref]++
	payload, ok := m.texts[ref]
	if !ok {
		return nil, domain.ErrUpstreamNotFound
	}
	return payload, nil
}

func (m *MockTextProvider) FetchLinks(ctx context.Context, ref string) ([]driven.LinkEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkCalls[ref]++
	return m.links[ref], nil
}

func (m *MockTextProvider) FetchIndex(ctx context.Context, book string) (*driven.IndexInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.indexes[book]
	if !ok {
		return nil, domain.ErrUpstreamNotFound
	}
	return info, nil
}
