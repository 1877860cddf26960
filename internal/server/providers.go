package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kyamashita/honyaku/internal/config"
	"github.com/kyamashita/honyaku/internal/providers"
)

// providerSet holds the active OCR and translation clients behind a lock so
// a config reload can swap them while jobs are running. It satisfies both
// provider interfaces itself, so the runner never holds a stale client.
type providerSet struct {
	mu         sync.RWMutex
	ocr        providers.OCRProvider
	translator providers.Translator
}

func newProviderSet() *providerSet {
	return &providerSet{}
}

// Reload rebuilds both clients from the config. On error the previous
// clients stay active.
func (p *providerSet) Reload(cfg *config.Config) error {
	ocr, err := buildOCRProvider(cfg.OCR)
	if err != nil {
		return err
	}
	translator, err := buildTranslator(cfg.Translate)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.ocr = ocr
	p.translator = translator
	p.mu.Unlock()
	return nil
}

func (p *providerSet) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ocr != nil {
		return p.ocr.Name()
	}
	return ""
}

func (p *providerSet) Parse(ctx context.Context, imagePath string) (any, error) {
	p.mu.RLock()
	ocr := p.ocr
	p.mu.RUnlock()
	if ocr == nil {
		return nil, fmt.Errorf("ocr provider not configured")
	}
	return ocr.Parse(ctx, imagePath)
}

// translatorView exposes the set's translator half under its own Name, so
// OCR and translator report independently.
type translatorView struct {
	set *providerSet
}

func (t translatorView) Name() string {
	t.set.mu.RLock()
	defer t.set.mu.RUnlock()
	if t.set.translator != nil {
		return t.set.translator.Name()
	}
	return ""
}

func (t translatorView) Generate(ctx context.Context, prompt string) (string, error) {
	t.set.mu.RLock()
	translator := t.set.translator
	t.set.mu.RUnlock()
	if translator == nil {
		return "", fmt.Errorf("translator not configured")
	}
	return translator.Generate(ctx, prompt)
}

func buildOCRProvider(cfg config.OCRCfg) (providers.OCRProvider, error) {
	if cfg.Plugin != "" {
		return providers.NewPluginOCR(cfg.Plugin)
	}
	return providers.NewHTTPOCRClient(providers.HTTPOCRConfig{
		BaseURL:    cfg.BaseURL,
		ParsePaths: cfg.ParsePathList(),
		Model:      cfg.Model,
		Prompt:     cfg.Prompt,
		APIKey:     config.ResolveEnvVars(cfg.APIKey),
		Timeout:    secondsToDuration(cfg.TimeoutSec),
	}), nil
}

func buildTranslator(cfg config.TranslateCfg) (providers.Translator, error) {
	var translator providers.Translator
	switch cfg.Type {
	case "", "ollama":
		translator = providers.NewOllamaClient(providers.OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: secondsToDuration(cfg.TimeoutSec),
		})
	case "openai":
		translator = providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:  config.ResolveEnvVars(cfg.APIKey),
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: secondsToDuration(cfg.TimeoutSec),
		})
	default:
		return nil, fmt.Errorf("unknown translator type: %s", cfg.Type)
	}

	// Rate limit is requests per second in config; the bucket works in
	// requests per minute.
	return providers.NewRateLimitedTranslator(translator, int(cfg.RateLimit*60)), nil
}

func secondsToDuration(sec float64) time.Duration {
	if sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}
