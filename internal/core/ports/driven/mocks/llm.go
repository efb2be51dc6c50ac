package mocks

import (
	"context"
	"sync"
)

// LLMCall records one Generate invocation.
type LLMCall struct {
	Model  string
	Prompt string
}

// MockLLMClient is a scriptable LLMClient. Responses can be registered
// per model; a model with a registered error always fails with it.
type MockLLMClient struct {
	mu sync.Mutex

	// Response per model. When empty, DefaultResponse is served.
	responses map[string]string
	errors    map[string]error

	// DefaultResponse is served for models with no registered entry.
	DefaultResponse string

	// Calls holds every invocation in order.
	Calls []LLMCall

	// GenerateFn, when set, overrides all scripted behavior.
	GenerateFn func(ctx context.Context, model, prompt string) (string, error)
}

// NewMockLLMClient creates an empty MockLLMClient.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		responses: make(map[string]string),
		errors:    make(map[string]error),
	}
}

// SetResponse scripts a success for the model.
func (m *MockLLMClient) SetResponse(model, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[model] = text
}

// SetError scripts a failure for the model.
func (m *MockLLMClient) SetError(model string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[model] = err
}

// CallCount returns the number of Generate invocations so far.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// CallsForModel returns how many calls targeted the model.
func (m *MockLLMClient) CallsForModel(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Model == model {
			n++
		}
	}
	return n
}

func (m *MockLLMClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, LLMCall{Model: model, Prompt: prompt})
	fn := m.GenerateFn
	err := m.errors[model]
	text, ok := m.responses[model]
	def := m.DefaultResponse
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, model, prompt)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return text, nil
}

func (m *MockLLMClient) Ping(ctx context.Context) error {
	return nil
}
