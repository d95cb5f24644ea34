// Package llmtest provides an in-memory llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/venture-planner/internal/llm"
)

// MockClient implements llm.Client with overridable function fields.
// Every structured request is recorded; it is safe for concurrent use.
type MockClient struct {
	GenerateContentFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GenerateJSONFunc       func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GenerateStructuredFunc func(ctx context.Context, req llm.Request) (string, error)
	GetModelFunc           func(tier llm.ModelTier) string
	CloseFunc              func() error

	mu    sync.Mutex
	calls []llm.Request
}

// ByTag returns a mock that answers structured requests from a table keyed by
// request tag. Values may be a string (returned as the response) or an error.
func ByTag(responses map[string]any) *MockClient {
	return &MockClient{
		GenerateStructuredFunc: func(_ context.Context, req llm.Request) (string, error) {
			v, ok := responses[req.Tag]
			if !ok {
				return "", fmt.Errorf("llmtest: no response scripted for %q", req.Tag)
			}
			switch r := v.(type) {
			case string:
				return r, nil
			case error:
				return "", r
			case func(llm.Request) (string, error):
				return r(req)
			}
			return "", fmt.Errorf("llmtest: unsupported response type %T for %q", v, req.Tag)
		},
	}
}

func (m *MockClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return "", nil
}

func (m *MockClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return "{}", nil
}

func (m *MockClient) GenerateStructured(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.GenerateStructuredFunc != nil {
		return m.GenerateStructuredFunc(ctx, req)
	}
	return "", nil
}

func (m *MockClient) GetModel(tier llm.ModelTier) string {
	if m.GetModelFunc != nil {
		return m.GetModelFunc(tier)
	}
	return "mock-model"
}

func (m *MockClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns a copy of the recorded structured requests.
func (m *MockClient) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.calls...)
}

// CallCount counts recorded requests with the given tag; an empty tag counts all.
func (m *MockClient) CallCount(tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tag == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Tag == tag {
			n++
		}
	}
	return n
}

// Reset forgets recorded requests.
func (m *MockClient) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}
