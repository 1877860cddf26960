// Package providers holds the clients for the two external services the
// pipeline depends on: the OCR service and the language-model service.
package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// OCRProvider extracts text from a page image, returning the raw decoded
// JSON-like value for the normalizer to interpret.
type OCRProvider interface {
	// Name returns the provider identifier (e.g. "http", "tesseract").
	Name() string

	// Parse runs OCR on the image at path and returns the decoded response.
	Parse(ctx context.Context, imagePath string) (any, error)
}

// Translator generates text from a prompt. It satisfies the pipeline's
// TextGenerator contract.
type Translator interface {
	// Name returns the client identifier (e.g. "ollama", "openai").
	Name() string

	// Generate sends a prompt and returns the model's text output.
	Generate(ctx context.Context, prompt string) (string, error)
}

// OCRPluginFunc is an in-process OCR callable. Plugins are registered by
// name at startup and selected by configuration, replacing the HTTP client
// entirely when configured.
type OCRPluginFunc func(ctx context.Context, imagePath string) (any, error)

var (
	pluginMu sync.RWMutex
	plugins  = map[string]OCRPluginFunc{}
)

// RegisterOCRPlugin makes an in-process OCR callable selectable via config.
// Later registrations with the same name replace earlier ones.
func RegisterOCRPlugin(name string, fn OCRPluginFunc) {
	pluginMu.Lock()
	defer pluginMu.Unlock()
	plugins[name] = fn
}

// OCRPluginNames lists registered plugin names, sorted.
func OCRPluginNames() []string {
	pluginMu.RLock()
	defer pluginMu.RUnlock()
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// pluginOCR adapts a registered callable to the OCRProvider interface.
type pluginOCR struct {
	name string
	fn   OCRPluginFunc
}

// NewPluginOCR resolves a registered plugin by name.
func NewPluginOCR(name string) (OCRProvider, error) {
	pluginMu.RLock()
	fn, ok := plugins[name]
	pluginMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown OCR plugin %q (registered: %v)", name, OCRPluginNames())
	}
	return &pluginOCR{name: name, fn: fn}, nil
}

func (p *pluginOCR) Name() string { return p.name }

func (p *pluginOCR) Parse(ctx context.Context, imagePath string) (any, error) {
	result, err := p.fn(ctx, imagePath)
	if err != nil {
		return nil, fmt.Errorf("OCR plugin %s: %w", p.name, err)
	}
	if _, ok := result.(map[string]any); !ok {
		return nil, fmt.Errorf("OCR plugin %s: result must be a JSON object", p.name)
	}
	return result, nil
}
