package dedupe

import (
	"context"
)

// MockLLMClient returns queued responses (or errors) in order, then falls
// back to Response. Calls counts every Generate invocation.
type MockLLMClient struct {
	Response string
	Err      error
	Queue    []func() (string, error)
	Calls    int
}

func (m *MockLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	m.Calls++
	if len(m.Queue) > 0 {
		next := m.Queue[0]
		m.Queue = m.Queue[1:]
		return next()
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
