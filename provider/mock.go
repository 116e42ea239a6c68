package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZaguanLabs/transctl"
)

// MockProvider is a mock translator for testing and dry runs. It returns
// the configured translation for a text, or the text prefixed with the
// target language, which keeps every protection marker intact.
type MockProvider struct {
	Translations map[string]string // Map of source text to translation
	Failures     map[string]error  // Texts whose translation fails

	mu       sync.Mutex
	requests []transctl.TranslateRequest
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock provider with default translations.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Translations: map[string]string{
			"Hello":                "Hola",
			"World":                "Mundo",
			"Hello World":          "Hola Mundo",
			"Welcome to our site.": "Bienvenido a nuestro sitio.",
		},
		Failures: make(map[string]error),
	}
}

// Translate returns the mock translation of req.Text.
func (m *MockProvider) Translate(ctx context.Context, req transctl.TranslateRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := m.Failures[req.Text]; ok {
		return "", err
	}
	if translation, ok := m.Translations[req.Text]; ok {
		return translation, nil
	}
	return fmt.Sprintf("[%s] %s", req.TargetLang, req.Text), nil
}

// CallCount returns the number of Translate calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockProvider) Requests() []transctl.TranslateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transctl.TranslateRequest(nil), m.requests...)
}

// Reset forgets the recorded requests.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// Close is a no-op.
func (m *MockProvider) Close() error {
	return nil
}
