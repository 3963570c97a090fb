package llm

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockBackend implements Backend without network access. It backs the "mock"
// provider family for offline development and is handy in tests.
type MockBackend struct {
	mu sync.Mutex
	// responses are matched in registration order; the first key found in the
	// prompt wins.
	responses []mockResponse
	fallback  string
	err       error
	delay     time.Duration
	callCount int
}

type mockResponse struct {
	key  string
	text string
}

// NewMockBackend creates a MockBackend with canned responses.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		responses: []mockResponse{
			{key: "ping", text: "pong"},
			{key: "pong", text: "pong"},
			{key: "summary", text: "Summary: the request was handled by the offline mock provider."},
		},
		fallback: "This is a canned response from the mock provider.",
	}
}

// Generate returns the response of the first registered key that appears in
// the prompt, or the fallback text.
func (m *MockBackend) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.callCount++
	err, delay := m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prompt := strings.ToLower(req.Prompt)
	for _, r := range m.responses {
		if strings.Contains(prompt, r.key) {
			return r.text, nil
		}
	}
	return m.fallback, nil
}

// SetResponse registers a response for prompts containing key. Re-registering
// a key replaces its text and keeps its position; "default" sets the fallback.
func (m *MockBackend) SetResponse(key, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key = strings.ToLower(key)
	if key == "default" {
		m.fallback = response
		return
	}
	for i := range m.responses {
		if m.responses[i].key == key {
			m.responses[i].text = response
			return
		}
	}
	m.responses = append(m.responses, mockResponse{key: key, text: response})
}

// SetError makes every subsequent call fail with err (nil restores success).
func (m *MockBackend) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes every call wait d before answering.
func (m *MockBackend) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// CallCount returns how many times Generate was called.
func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
