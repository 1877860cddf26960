package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockOCR is an OCRProvider for testing.
type MockOCR struct {
	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // Fail after N requests (0 = never)
	Result     any // Returned for every image when ResultFor is nil
	ResultFor  func(imagePath string) (any, error)

	mu           sync.Mutex
	requestCount atomic.Int64
	parsedPaths  []string
}

// NewMockOCR creates a new mock OCR provider with sensible defaults.
func NewMockOCR() *MockOCR {
	return &MockOCR{
		Result: map[string]any{
			"blocks": []any{
				map[string]any{"text": "mock text", "bbox": []any{0.0, 0.0, 10.0, 10.0}},
			},
		},
	}
}

// Name returns the provider identifier.
func (m *MockOCR) Name() string { return MockName }

// Parse records the call and returns the configured result.
func (m *MockOCR) Parse(ctx context.Context, imagePath string) (any, error) {
	count := m.requestCount.Add(1)

	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	m.mu.Lock()
	m.parsedPaths = append(m.parsedPaths, imagePath)
	m.mu.Unlock()

	if m.ShouldFail || (m.FailAfter > 0 && count > int64(m.FailAfter)) {
		return nil, fmt.Errorf("mock OCR failure")
	}
	if m.ResultFor != nil {
		return m.ResultFor(imagePath)
	}
	return m.Result, nil
}

// ParsedPaths returns the image paths passed to Parse, in call order.
func (m *MockOCR) ParsedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.parsedPaths...)
}

// RequestCount returns the number of Parse calls.
func (m *MockOCR) RequestCount() int64 { return m.requestCount.Load() }

// MockTranslator is a Translator for testing.
type MockTranslator struct {
	// Configurable behavior
	ShouldFail  bool
	FailAfter   int    // Fail after N requests (0 = never)
	Response    string // Returned for every prompt when ResponseFor is nil
	ResponseFor func(prompt string) (string, error)

	mu           sync.Mutex
	requestCount atomic.Int64
	prompts      []string
}

// NewMockTranslator creates a new mock translator.
func NewMockTranslator() *MockTranslator {
	return &MockTranslator{Response: "translated"}
}

// Name returns the provider identifier.
func (m *MockTranslator) Name() string { return MockName }

// Generate records the prompt and returns the configured response.
func (m *MockTranslator) Generate(ctx context.Context, prompt string) (string, error) {
	count := m.requestCount.Add(1)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.ShouldFail || (m.FailAfter > 0 && count > int64(m.FailAfter)) {
		return "", fmt.Errorf("mock translation failure")
	}
	if m.ResponseFor != nil {
		return m.ResponseFor(prompt)
	}
	return m.Response, nil
}

// Prompts returns the prompts passed to Generate, in call order.
func (m *MockTranslator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// RequestCount returns the number of Generate calls.
func (m *MockTranslator) RequestCount() int64 { return m.requestCount.Load() }

var _ OCRProvider = (*MockOCR)(nil)
var _ Translator = (*MockTranslator)(nil)
